package github_handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/go-github/v73/github"
	"github.com/shurcooL/githubv4"
)

// GraphQLErrorEntry is one element of the errors array of a GraphQL response.
type GraphQLErrorEntry struct {
	Message   string            `json:"message"`
	Type      string            `json:"type,omitempty"`
	Path      []interface{}     `json:"path,omitempty"`
	Locations []GraphQLLocation `json:"locations,omitempty"`
}

// GraphQLLocation points at the part of the query an error refers to.
type GraphQLLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// GraphQLResponse is the body of a GraphQL response. GitHub reports query
// errors inside a 200 response, so Errors is checked on every call.
type GraphQLResponse[T any] struct {
	Data   *T                  `json:"data,omitempty"`
	Errors []GraphQLErrorEntry `json:"errors,omitempty"`
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// GraphQLClient executes GraphQL calls through the same pipeline, transport
// and credentials as the REST client it wraps.
type GraphQLClient struct {
	rest *RESTClient
	v4   *githubv4.Client
}

// NewGraphQLClient wraps rest for calls to its configured GraphQL URL.
func NewGraphQLClient(rest *RESTClient) *GraphQLClient {
	hc := &http.Client{
		Transport: &captureTransport{Transport: rest.HTTPClient(AuthModeDefault).Transport},
	}
	return &GraphQLClient{
		rest: rest,
		v4:   githubv4.NewEnterpriseClient(rest.config.GraphQLURL, hc),
	}
}

// REST returns the wrapped REST client.
func (g *GraphQLClient) REST() *RESTClient {
	return g.rest
}

// Query posts query and variables and decodes the data into a T.
//
// A response whose errors include RateLimitedMarker fails with
// *RateLimitingError no matter what else it contains. Any other non-empty
// errors fail with *GraphQLError. Otherwise the decoded response is returned
// untouched, even when it has no data.
func Query[T any](
	ctx context.Context,
	g *GraphQLClient,
	query string,
	variables map[string]interface{},
	opts *RequestOptions,
) (*GraphQLResponse[T], *github.Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	reqOpts := *opts
	reqOpts.Body = graphQLRequest{Query: query, Variables: variables}

	out := new(GraphQLResponse[T])
	resp, err := g.rest.do(ctx, http.MethodPost, g.rest.config.GraphQLURL, &reqOpts, MetricGraphQLRequest, out,
		func(resp *github.Response) error {
			return checkGraphQLErrors(resp, out.Errors)
		})
	return out, resp, err
}

// Raw runs query and leaves the data undecoded.
func (g *GraphQLClient) Raw(
	ctx context.Context,
	query string,
	variables map[string]interface{},
	opts *RequestOptions,
) (*GraphQLResponse[json.RawMessage], *github.Response, error) {
	return Query[json.RawMessage](ctx, g, query, variables, opts)
}

// QueryStruct runs a struct-shaped query with githubv4 over the authenticated
// transport. Its errors are classified like those of Query: a 2xx body with
// errors gives *RateLimitingError or *GraphQLError, and a non-2xx status keeps
// the status GitHub answered with.
func (g *GraphQLClient) QueryStruct(ctx context.Context, q interface{}, variables map[string]interface{}) error {
	p := g.rest.pipeline
	cl := newCall(ctx, http.MethodPost, g.rest.config.GraphQLURL, nil, MetricGraphQLRequest)
	defer cl.release()

	// Auth is injected by the transport, so only the timing steps apply here.
	if err := p.before(cl, p.stampStart, p.applyTimeout); err != nil {
		return p.after(cl, nil, err)
	}

	captured := &capturedResponse{}
	err := g.v4.Query(context.WithValue(cl.ctx, capturedResponseKey{}, captured), q, variables)
	if err != nil {
		err = captured.classify(err)
	}
	return p.after(cl, captured.response(), err)
}

type capturedResponseKey struct{}

// capturedResponse holds the last HTTP response seen for one githubv4 call.
type capturedResponse struct {
	resp *http.Response
	body []byte
}

func (c *capturedResponse) response() *github.Response {
	if c.resp == nil {
		return nil
	}
	return &github.Response{Response: c.resp}
}

// classify maps a githubv4 error onto the errors Query would have returned
// for the same response. Errors raised before a response arrived pass through.
func (c *capturedResponse) classify(err error) error {
	if c.resp == nil {
		return err
	}

	replay := *c.resp
	replay.Body = io.NopCloser(bytes.NewReader(c.body))
	if checkErr := github.CheckResponse(&replay); checkErr != nil {
		return checkErr
	}

	var body GraphQLResponse[json.RawMessage]
	if json.Unmarshal(c.body, &body) == nil {
		if gqlErr := checkGraphQLErrors(c.response(), body.Errors); gqlErr != nil {
			return gqlErr
		}
	}
	return &GraphQLError{Message: err.Error(), Err: err, Response: c.resp}
}

// captureTransport buffers response bodies for calls whose context carries a
// *capturedResponse, so QueryStruct can classify them after githubv4 is done.
type captureTransport struct {
	Transport http.RoundTripper
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	transport := t.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	resp, err := transport.RoundTrip(req)
	captured, ok := req.Context().Value(capturedResponseKey{}).(*capturedResponse)
	if err != nil || !ok {
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	captured.resp, captured.body = resp, body
	return resp, nil
}

// checkGraphQLErrors inspects the errors of a GraphQL response that succeeded
// at the HTTP level. Rate limiting takes precedence over every other error.
func checkGraphQLErrors(resp *github.Response, errs []GraphQLErrorEntry) error {
	var httpResp *http.Response
	if resp != nil {
		httpResp = resp.Response
	}

	for _, e := range errs {
		if e.Type == RateLimitedMarker {
			return &RateLimitingError{
				Response:      httpResp,
				ResetAt:       rateLimitResetAt(httpResp),
				GraphQLErrors: errs,
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}

	msg := errs[0].Message
	if len(errs) > 1 {
		msg = fmt.Sprintf("%s and %d more errors", msg, len(errs)-1)
	}
	return &GraphQLError{Message: msg, Errors: errs, Response: httpResp}
}
