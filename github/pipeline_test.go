package github_handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyCarrier-DevOps/goLibGitHubClient/logger/loggertest"
)

func TestExpandPath(t *testing.T) {
	tests := []struct {
		name     string
		template string
		params   map[string]string
		want     string
	}{
		{"no placeholders", "/app", nil, "app"},
		{"owner and repo", "/repos/{owner}/{repo}", map[string]string{"owner": "acme", "repo": "widgets"}, "repos/acme/widgets"},
		{"values are encoded", "/orgs/{org}/teams/{team}", map[string]string{"org": "a b", "team": "x/y"}, "orgs/a%20b/teams/x%2Fy"},
		{"extra params are ignored", "/users/{username}", map[string]string{"username": "octocat", "unused": "1"}, "users/octocat"},
		{"absolute URL keeps its slash", "https://ghe.example.com/api/graphql", nil, "https://ghe.example.com/api/graphql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPath(tt.template, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "{")
			assert.NotContains(t, got, "}")
		})
	}
}

func TestExpandPath_Errors(t *testing.T) {
	_, err := ExpandPath("/repos/{owner}/{repo}", map[string]string{"owner": "acme"})
	require.ErrorIs(t, err, ErrMissingURLParam)
	assert.Contains(t, err.Error(), "repo")

	_, err = ExpandPath("/repos/{owner", nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func newTestPipeline(headers HeaderProvider) (*pipeline, *loggertest.MockLogger) {
	log := loggertest.NewMockLogger()
	return &pipeline{
		timeout: time.Second,
		headers: headers,
		log:     log,
		metrics: NopMetricsRecorder{},
		now:     time.Now,
	}, log
}

func TestPipeline_RequestStepsOrder(t *testing.T) {
	var sawDeadline bool
	p, _ := newTestPipeline(func(ctx context.Context, mode AuthMode) (http.Header, error) {
		_, sawDeadline = ctx.Deadline()
		assert.Equal(t, AuthModeInstallation, mode)
		return http.Header{"authorization": {"token t"}}, nil
	})

	c := newCall(context.Background(), http.MethodGet, "/repos/{owner}/{repo}/issues", &RequestOptions{
		Params:   map[string]string{"owner": "acme", "repo": "widgets"},
		Query:    url.Values{"state": {"open"}},
		Headers:  http.Header{"X-Custom": {"1"}},
		AuthMode: AuthModeInstallation,
	}, MetricRESTRequest)
	defer c.release()

	require.NoError(t, p.before(c, p.requestSteps()...))
	assert.True(t, sawDeadline, "timeout is applied before auth runs")
	assert.False(t, c.start.IsZero())
	assert.Equal(t, time.Second, c.timeout)
	assert.Equal(t, "repos/acme/widgets/issues?state=open", c.url)
	assert.Equal(t, "token t", c.header.Get("Authorization"))
	assert.Equal(t, "1", c.header.Get("X-Custom"))
}

func TestPipeline_DefaultTimeout(t *testing.T) {
	p, _ := newTestPipeline(nil)
	p.timeout = 0
	c := newCall(context.Background(), http.MethodGet, "/app", nil, MetricRESTRequest)
	defer c.release()

	require.NoError(t, p.applyTimeout(c))
	deadline, ok := c.ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(DefaultRequestTimeout), deadline, time.Second)
}

func TestPipeline_TimeoutUsesShorterCallerDeadline(t *testing.T) {
	p, _ := newTestPipeline(nil)
	p.timeout = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	c := newCall(ctx, http.MethodGet, "/app", nil, MetricRESTRequest)
	defer c.release()

	require.NoError(t, p.applyTimeout(c))
	assert.LessOrEqual(t, c.timeout, 100*time.Millisecond)
	assert.Greater(t, c.timeout, time.Duration(0))
}

func TestPipeline_ReleaseCancelsContext(t *testing.T) {
	p, _ := newTestPipeline(nil)
	c := newCall(context.Background(), http.MethodGet, "/app", nil, MetricRESTRequest)
	require.NoError(t, p.applyTimeout(c))
	c.release()
	assert.ErrorIs(t, c.ctx.Err(), context.Canceled)
}

func TestPipeline_AuthFailureStopsSteps(t *testing.T) {
	p, _ := newTestPipeline(func(context.Context, AuthMode) (http.Header, error) {
		return nil, errors.New("no token")
	})
	c := newCall(context.Background(), http.MethodGet, "/app", &RequestOptions{AuthMode: AuthModeJWT}, MetricAppRequest)
	defer c.release()

	err := p.before(c, p.requestSteps()...)
	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, AuthModeJWT, authErr.Mode)
	assert.Contains(t, err.Error(), "jwt credential")
}

func TestPipeline_MetricNameOverride(t *testing.T) {
	c := newCall(context.Background(), http.MethodGet, "/app", &RequestOptions{MetricName: "github.custom"}, MetricRESTRequest)
	assert.Equal(t, "github.custom", c.metricName)
}

type panickingRecorder struct{}

func (panickingRecorder) RecordRequest(context.Context, RequestMetric) { panic("boom") }

func TestPipeline_AfterNeverSwallowsErrors(t *testing.T) {
	p, log := newTestPipeline(nil)
	p.metrics = panickingRecorder{}

	c := newCall(context.Background(), http.MethodGet, "/app", nil, MetricRESTRequest)
	require.NoError(t, p.before(c, p.stampStart))

	assert.NoError(t, p.after(c, nil, nil))
	err := p.after(c, nil, errors.New("connection reset"))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))

	assert.Len(t, log.EntriesAt("warn"), 2)
	assert.True(t, log.HasLog("error", "GitHub request failed"))
}

func TestPipeline_ClassifyFailureLogLevels(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
		msg   string
	}{
		{"rate limit", &RateLimitingError{ResetAt: time.Unix(1700000000, 0)}, "warn", "rate limit"},
		{"graphql", &GraphQLError{Message: "bad"}, "warn", "GraphQL"},
		{"not found", errorResponse(http.StatusNotFound, "Not Found", nil), "warn", "rejected"},
		{"missing param", ErrMissingURLParam, "error", "could not be built"},
		{"server error", errorResponse(http.StatusBadGateway, "Bad Gateway", nil), "error", "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, log := newTestPipeline(nil)
			c := newCall(context.Background(), http.MethodGet, "/app", nil, MetricRESTRequest)
			c.start = time.Now()

			err := p.classifyFailure(c, nil, tt.err)
			require.Error(t, err)
			entries := log.Entries()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
			assert.True(t, strings.Contains(entries[0].Message, tt.msg), entries[0].Message)
			assert.Equal(t, "/app", entries[0].Fields["path"])
		})
	}
}

func TestAuthTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("Authorization")))
	}))
	defer srv.Close()

	token := "t1"
	tr := &authTransport{
		headers: func(context.Context, AuthMode) (http.Header, error) {
			if token == "" {
				return nil, errors.New("empty")
			}
			return http.Header{"Authorization": {"token " + token}}, nil
		},
		mode: AuthModeInstallation,
	}
	client := &http.Client{Transport: tr}

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	body := make([]byte, 16)
	n, _ := resp.Body.Read(body)
	resp.Body.Close()
	assert.Equal(t, "token t1", string(body[:n]))
	assert.Empty(t, req.Header.Get("Authorization"), "the caller's request is not mutated")

	token = ""
	_, err = client.Get(srv.URL)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}
