// Package githubtest provides test doubles for code that uses the github
// client package. This follows the Go standard library pattern (e.g., net/http/httptest).
//
// Example usage:
//
//	func TestMyFunction(t *testing.T) {
//	    tokens := githubtest.NewMockTokenProvider("token-1")
//	    metrics := githubtest.NewRecordingMetricsRecorder()
//	    client, _ := github_handler.NewAppClient(identity, tokens,
//	        github_handler.WithMetrics(metrics))
//
//	    tokens.SetToken("token-2") // rotation is picked up by the next call
//
//	    if tokens.CallCount() != 2 {
//	        t.Error("expected a token fetch per request")
//	    }
//	}
package githubtest

import (
	"context"
	"sync"
	"time"

	github_handler "github.com/MyCarrier-DevOps/goLibGitHubClient/github"
)

// MockTokenProvider is a mock TokenProvider whose token can be rotated
// between calls. It is safe for concurrent use.
type MockTokenProvider struct {
	mu sync.RWMutex

	token     string
	expiresAt time.Time

	// Call tracking
	TokenCalls []TokenCall

	// Error injection
	TokenError error
}

// TokenCall records a Token call.
type TokenCall struct {
	AppID          int64
	InstallationID int64
}

// NewMockTokenProvider creates a provider that serves token.
func NewMockTokenProvider(token string) *MockTokenProvider {
	return &MockTokenProvider{token: token}
}

// SetToken rotates the served token. The next Token call returns it.
func (m *MockTokenProvider) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// SetExpiry sets the ExpiresAt reported with every token.
func (m *MockTokenProvider) SetExpiry(expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiresAt = expiresAt
}

// SetError makes every following Token call fail with err. Nil clears it.
func (m *MockTokenProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TokenError = err
}

// Token implements github_handler.TokenProvider.
func (m *MockTokenProvider) Token(_ context.Context, identity *github_handler.InstallationIdentity) (*github_handler.AppToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := TokenCall{}
	if identity != nil {
		call.AppID = identity.AppID
		call.InstallationID = identity.InstallationID
	}
	m.TokenCalls = append(m.TokenCalls, call)

	if m.TokenError != nil {
		return nil, m.TokenError
	}
	return &github_handler.AppToken{Token: m.token, ExpiresAt: m.expiresAt}, nil
}

// CallCount returns how many times Token was called.
func (m *MockTokenProvider) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.TokenCalls)
}

// Reset clears all call tracking and the injected error.
func (m *MockTokenProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TokenCalls = nil
	m.TokenError = nil
}

// Ensure MockTokenProvider implements github_handler.TokenProvider at compile time.
var _ github_handler.TokenProvider = (*MockTokenProvider)(nil)

// RecordingMetricsRecorder keeps every metric it receives.
type RecordingMetricsRecorder struct {
	mu      sync.RWMutex
	metrics []github_handler.RequestMetric

	// PanicWith, when non-nil, is passed to panic on every RecordRequest
	// after the metric is stored.
	PanicWith interface{}
}

// NewRecordingMetricsRecorder creates an empty recorder.
func NewRecordingMetricsRecorder() *RecordingMetricsRecorder {
	return &RecordingMetricsRecorder{}
}

// RecordRequest implements github_handler.MetricsRecorder.
func (r *RecordingMetricsRecorder) RecordRequest(_ context.Context, m github_handler.RequestMetric) {
	r.mu.Lock()
	r.metrics = append(r.metrics, m)
	p := r.PanicWith
	r.mu.Unlock()

	if p != nil {
		panic(p)
	}
}

// Metrics returns a copy of the recorded metrics.
func (r *RecordingMetricsRecorder) Metrics() []github_handler.RequestMetric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]github_handler.RequestMetric, len(r.metrics))
	copy(out, r.metrics)
	return out
}

// Last returns the most recent metric and whether there is one.
func (r *RecordingMetricsRecorder) Last() (github_handler.RequestMetric, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.metrics) == 0 {
		return github_handler.RequestMetric{}, false
	}
	return r.metrics[len(r.metrics)-1], true
}

// Ensure RecordingMetricsRecorder implements github_handler.MetricsRecorder at compile time.
var _ github_handler.MetricsRecorder = (*RecordingMetricsRecorder)(nil)
