package github_handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	github_handler "github.com/MyCarrier-DevOps/goLibGitHubClient/github"
)

// fakeGitHub is an httptest server laid out like GitHub Enterprise Server,
// with REST under /api/v3 and GraphQL at /api/graphql.
type fakeGitHub struct {
	*httptest.Server
	Mux *http.ServeMux

	mu       sync.Mutex
	requests []*http.Request
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{Mux: http.NewServeMux()}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Clone(r.Context()))
		f.mu.Unlock()
		f.Mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

// Requests returns the requests received so far.
func (f *fakeGitHub) Requests() []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*http.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// Identity returns an installation identity pointing at the fake server.
func (f *fakeGitHub) Identity() *github_handler.InstallationIdentity {
	return &github_handler.InstallationIdentity{
		AppID:          12345,
		InstallationID: 67890,
		BaseURL:        f.URL,
		UUID:           "test-uuid",
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}
