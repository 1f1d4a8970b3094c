package github_handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v73/github"
	"github.com/yosida95/uritemplate/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MyCarrier-DevOps/goLibGitHubClient/logger"
)

// AuthMode selects which credential the auth step injects for one request.
type AuthMode int

const (
	// AuthModeDefault lets the client pick its usual credential.
	AuthModeDefault AuthMode = iota
	// AuthModeJWT authenticates as the GitHub App itself.
	AuthModeJWT
	// AuthModeInstallation authenticates as one installation of the app.
	AuthModeInstallation
)

func (m AuthMode) String() string {
	switch m {
	case AuthModeJWT:
		return "jwt"
	case AuthModeInstallation:
		return "installation"
	default:
		return "default"
	}
}

// HeaderProvider returns the authentication headers for one request. It is
// called once per request so rotated credentials are picked up immediately.
type HeaderProvider func(ctx context.Context, mode AuthMode) (http.Header, error)

// RequestOptions carries the per-call inputs of a REST or GraphQL call.
type RequestOptions struct {
	// Params fills the {name} placeholders of the path template.
	Params map[string]string
	Query  url.Values
	// Body is JSON encoded when non-nil.
	Body    interface{}
	Headers http.Header
	// AuthMode defaults to the client's usual credential.
	AuthMode AuthMode
	// MetricName overrides the metric name of the API family.
	MetricName string
}

// call is the state of one request as it moves through the pipeline.
type call struct {
	ctx          context.Context
	method       string
	pathTemplate string
	opts         RequestOptions
	metricName   string

	url     string
	header  http.Header
	start   time.Time
	timeout time.Duration
	cancel  context.CancelFunc
	span    trace.Span
}

func newCall(ctx context.Context, method, pathTemplate string, opts *RequestOptions, metricName string) *call {
	c := &call{
		// Rate limit handling is the caller's decision, so go-github must not
		// short-circuit calls from a previously seen limit.
		ctx:          context.WithValue(ctx, github.BypassRateLimitCheck, true),
		method:       method,
		pathTemplate: pathTemplate,
		metricName:   metricName,
		header:       make(http.Header),
	}
	if opts != nil {
		c.opts = *opts
		if opts.MetricName != "" {
			c.metricName = opts.MetricName
		}
	}
	return c
}

// release ends the span and frees the timeout timer once the call has completed.
func (c *call) release() {
	if c.span != nil {
		c.span.End()
	}
	if c.cancel != nil {
		c.cancel()
	}
}

type requestStep func(*call) error

// pipeline applies the request steps and the response steps of every call.
// Order on the way out: stampStart, applyTimeout, expandURL, injectAuth.
// Order on the way back: recordInstrumentation, classifyFailure.
type pipeline struct {
	timeout time.Duration
	headers HeaderProvider
	log     logger.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer
	now     func() time.Time
}

func (p *pipeline) requestSteps() []requestStep {
	return []requestStep{p.stampStart, p.applyTimeout, p.expandURL, p.injectAuth}
}

// before runs steps in order, stopping at the first error.
func (p *pipeline) before(c *call, steps ...requestStep) error {
	for _, step := range steps {
		if err := step(c); err != nil {
			return err
		}
	}
	return nil
}

// after runs the response steps. It returns nil only when err is nil.
func (p *pipeline) after(c *call, resp *github.Response, err error) error {
	p.recordInstrumentation(c, resp, err)
	return p.classifyFailure(c, resp, err)
}

// stampStart records the start time and opens the call's client span.
func (p *pipeline) stampStart(c *call) error {
	c.start = p.now()
	if p.tracer != nil {
		c.ctx, c.span = p.tracer.Start(c.ctx, c.method+" "+c.pathTemplate,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithTimestamp(c.start),
			trace.WithAttributes(
				attribute.String("github.metric", c.metricName),
				attribute.String("http.request.method", c.method),
				attribute.String("url.template", c.pathTemplate),
			))
	}
	return nil
}

func (p *pipeline) applyTimeout(c *call) error {
	c.timeout = p.timeout
	if c.timeout <= 0 {
		c.timeout = DefaultRequestTimeout
	}
	// A caller deadline that fires first is the budget the call really had.
	if deadline, ok := c.ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < c.timeout {
			c.timeout = max(remaining, 0)
		}
	}
	c.ctx, c.cancel = context.WithTimeout(c.ctx, c.timeout)
	return nil
}

func (p *pipeline) expandURL(c *call) error {
	expanded, err := ExpandPath(c.pathTemplate, c.opts.Params)
	if err != nil {
		return err
	}
	if len(c.opts.Query) > 0 {
		sep := "?"
		if strings.Contains(expanded, "?") {
			sep = "&"
		}
		expanded += sep + c.opts.Query.Encode()
	}
	c.url = expanded
	return nil
}

func (p *pipeline) injectAuth(c *call) error {
	if p.headers != nil {
		h, err := p.headers(c.ctx, c.opts.AuthMode)
		if err != nil {
			return &AuthenticationError{Mode: c.opts.AuthMode, Err: err}
		}
		for k, v := range h {
			c.header[http.CanonicalHeaderKey(k)] = v
		}
	}
	for k, v := range c.opts.Headers {
		c.header[http.CanonicalHeaderKey(k)] = v
	}
	return nil
}

func (p *pipeline) recordInstrumentation(c *call, resp *github.Response, err error) {
	m := RequestMetric{
		Name:    c.metricName,
		Method:  c.method,
		Path:    c.pathTemplate,
		Outcome: OutcomeSuccess,
		Latency: p.now().Sub(c.start),
	}
	if resp != nil && resp.Response != nil {
		m.Status = resp.StatusCode
	}
	if err != nil {
		m.Outcome = OutcomeFailure
	}
	if c.span != nil && m.Status != 0 {
		c.span.SetAttributes(attribute.Int("http.response.status_code", m.Status))
	}

	defer func() {
		if r := recover(); r != nil {
			p.log.Warn(c.ctx, "Metrics recorder panicked", map[string]interface{}{
				"metric": m.Name,
				"panic":  fmt.Sprint(r),
			})
		}
	}()
	p.metrics.RecordRequest(c.ctx, m)
}

func (p *pipeline) classifyFailure(c *call, resp *github.Response, err error) error {
	if err == nil {
		return nil
	}
	classified := classifyError(resp, err, c.timeout)
	if c.span != nil {
		c.span.RecordError(classified)
		c.span.SetStatus(codes.Error, classified.Error())
	}

	fields := map[string]interface{}{
		"method":     c.method,
		"path":       c.pathTemplate,
		"metric":     c.metricName,
		"status":     StatusCode(classified),
		"latency_ms": p.now().Sub(c.start).Milliseconds(),
	}
	var (
		rateErr *RateLimitingError
		gqlErr  *GraphQLError
		authErr *AuthenticationError
	)
	switch {
	case errors.As(classified, &rateErr):
		if !rateErr.ResetAt.IsZero() {
			fields["rate_limit_reset"] = rateErr.ResetAt.UTC().Format(time.RFC3339)
		}
		p.log.Warn(c.ctx, "GitHub rate limit reached", fields)
	case errors.As(classified, &gqlErr):
		fields["graphql_errors"] = len(gqlErr.Errors)
		p.log.Warn(c.ctx, "GitHub GraphQL query returned errors", fields)
	case errors.As(classified, &authErr), errors.Is(classified, ErrMissingURLParam):
		p.log.Error(c.ctx, "GitHub request could not be built", classified, fields)
	case StatusCode(classified) >= 400 && StatusCode(classified) < 500:
		p.log.Warn(c.ctx, "GitHub request rejected", fields)
	default:
		p.log.Error(c.ctx, "GitHub request failed", classified, fields)
	}
	return classified
}

// ExpandPath substitutes the {name} placeholders of an RFC 6570 path template,
// percent-encoding every value. A placeholder without a value is an error.
// A leading slash is dropped from relative paths so they resolve under the
// API base URL, which may carry a path prefix such as /api/v3.
func ExpandPath(pathTemplate string, params map[string]string) (string, error) {
	tmpl, err := uritemplate.New(pathTemplate)
	if err != nil {
		return "", fmt.Errorf("%w: invalid path template %q: %v", ErrInvalidConfig, pathTemplate, err)
	}
	values := uritemplate.Values{}
	for _, name := range tmpl.Varnames() {
		v, ok := params[name]
		if !ok {
			return "", fmt.Errorf("%w: %q in %q", ErrMissingURLParam, name, pathTemplate)
		}
		values.Set(name, uritemplate.String(v))
	}
	expanded, err := tmpl.Expand(values)
	if err != nil {
		return "", fmt.Errorf("%w: expanding %q: %v", ErrInvalidConfig, pathTemplate, err)
	}
	if !strings.Contains(expanded, "://") {
		expanded = strings.TrimPrefix(expanded, "/")
	}
	return expanded, nil
}

// authTransport injects authentication headers for request builders that do
// not go through the pipeline, such as the githubv4 client.
type authTransport struct {
	// Transport is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Transport http.RoundTripper
	headers   HeaderProvider
	mode      AuthMode
}

// RoundTrip implements http.RoundTripper.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	transport := t.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	h, err := t.headers(req.Context(), t.mode)
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, &AuthenticationError{Mode: t.mode, Err: err}
	}

	// Clone the request to avoid mutating the original
	req = req.Clone(req.Context())
	for k, v := range h {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}
	return transport.RoundTrip(req)
}
