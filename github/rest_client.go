package github_handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v73/github"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/MyCarrier-DevOps/goLibGitHubClient/logger"
)

// ClientSettings are the process-level settings shared by every client.
type ClientSettings struct {
	// Timeout bounds each call; zero means DefaultRequestTimeout.
	Timeout   time.Duration
	Proxy     ProxySettings
	UserAgent string

	// TracerProvider receives one client span per call; nil means the
	// global provider.
	TracerProvider trace.TracerProvider
}

const tracerName = "github.com/MyCarrier-DevOps/goLibGitHubClient/github"

// RESTClient executes authenticated REST calls against one GitHub API.
// It is safe for concurrent use; nothing in it changes after construction.
// It never retries: one failed call yields one typed error.
type RESTClient struct {
	config     *GitHubConfig
	transport  TransportConfig
	httpClient *http.Client
	client     *github.Client
	pipeline   *pipeline
	log        logger.Logger
}

// NewRESTClient builds the client and its transport. The proxy decision is
// made here, once, from cfg.APIURL.
func NewRESTClient(
	cfg *GitHubConfig,
	settings ClientSettings,
	headers HeaderProvider,
	log logger.Logger,
	metrics MetricsRecorder,
) (*RESTClient, error) {
	if cfg == nil || cfg.APIURL == "" {
		return nil, fmt.Errorf("%w: API URL is required", ErrInvalidConfig)
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	tp := settings.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	baseURL, err := url.Parse(strings.TrimSuffix(cfg.APIURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("%w: invalid API URL %q: %v", ErrInvalidConfig, cfg.APIURL, err)
	}

	transport, err := SelectTransport(cfg.APIURL, cfg.ProxyBaseURL, settings.Proxy)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Transport: transport.NewTransport()}

	client := github.NewClient(httpClient)
	client.BaseURL = baseURL
	if settings.UserAgent != "" {
		client.UserAgent = settings.UserAgent
	}

	log.Debug(context.Background(), "Created GitHub REST client", map[string]interface{}{
		"api_url": cfg.APIURL,
		"proxied": transport.Proxied(),
	})

	return &RESTClient{
		config:     cfg,
		transport:  transport,
		httpClient: httpClient,
		client:     client,
		log:        log,
		pipeline: &pipeline{
			timeout: settings.Timeout,
			headers: headers,
			log:     log,
			metrics: metrics,
			tracer:  tp.Tracer(tracerName),
			now:     time.Now,
		},
	}, nil
}

// Config returns the endpoint configuration the client was built with.
func (c *RESTClient) Config() *GitHubConfig {
	return c.config
}

// Transport returns the network path chosen at construction.
func (c *RESTClient) Transport() TransportConfig {
	return c.transport
}

// HTTPClient returns an http.Client sharing this client's transport that
// authenticates every request with the given mode.
func (c *RESTClient) HTTPClient(mode AuthMode) *http.Client {
	if c.pipeline.headers == nil {
		return c.httpClient
	}
	return &http.Client{
		Transport: &authTransport{
			Transport: c.httpClient.Transport,
			headers:   c.pipeline.headers,
			mode:      mode,
		},
	}
}

// Get performs a GET call and decodes the JSON body into v when v is non-nil.
func (c *RESTClient) Get(ctx context.Context, pathTemplate string, opts *RequestOptions, v interface{}) (*github.Response, error) {
	return c.Do(ctx, http.MethodGet, pathTemplate, opts, v)
}

// Post performs a POST call.
func (c *RESTClient) Post(ctx context.Context, pathTemplate string, opts *RequestOptions, v interface{}) (*github.Response, error) {
	return c.Do(ctx, http.MethodPost, pathTemplate, opts, v)
}

// Put performs a PUT call.
func (c *RESTClient) Put(ctx context.Context, pathTemplate string, opts *RequestOptions, v interface{}) (*github.Response, error) {
	return c.Do(ctx, http.MethodPut, pathTemplate, opts, v)
}

// Patch performs a PATCH call.
func (c *RESTClient) Patch(ctx context.Context, pathTemplate string, opts *RequestOptions, v interface{}) (*github.Response, error) {
	return c.Do(ctx, http.MethodPatch, pathTemplate, opts, v)
}

// Delete performs a DELETE call.
func (c *RESTClient) Delete(ctx context.Context, pathTemplate string, opts *RequestOptions, v interface{}) (*github.Response, error) {
	return c.Do(ctx, http.MethodDelete, pathTemplate, opts, v)
}

// Do runs one call through the pipeline. The response is returned alongside
// the error whenever GitHub answered, so callers can inspect headers.
func (c *RESTClient) Do(ctx context.Context, method, pathTemplate string, opts *RequestOptions, v interface{}) (*github.Response, error) {
	return c.do(ctx, method, pathTemplate, opts, MetricRESTRequest, v, nil)
}

// do is Do with a metric name and an inspect hook that may turn a
// successful HTTP exchange into a failure before the response steps run.
func (c *RESTClient) do(
	ctx context.Context,
	method, pathTemplate string,
	opts *RequestOptions,
	metricName string,
	v interface{},
	inspect func(*github.Response) error,
) (*github.Response, error) {
	cl := newCall(ctx, method, pathTemplate, opts, metricName)
	defer cl.release()

	if err := c.pipeline.before(cl, c.pipeline.requestSteps()...); err != nil {
		return nil, c.pipeline.after(cl, nil, err)
	}

	req, err := c.client.NewRequest(method, cl.url, cl.opts.Body)
	if err != nil {
		return nil, c.pipeline.after(cl, nil, err)
	}
	for k, vals := range cl.header {
		req.Header[k] = vals
	}

	resp, err := c.client.Do(cl.ctx, req, v)
	if err == nil && inspect != nil {
		err = inspect(resp)
	}
	return resp, c.pipeline.after(cl, resp, err)
}
