// Package loggertest provides a capturing Logger for tests, in the manner of
// net/http/httptest.
//
// Example usage:
//
//	log := loggertest.NewMockLogger()
//	client, _ := github_handler.NewAppClient(identity, tokens, github_handler.WithLogger(log))
//	// ... exercise client ...
//	if !log.HasLog("warn", "rate limit") {
//	    t.Error("expected a rate limit warning")
//	}
package loggertest

import (
	"context"
	"strings"
	"sync"

	"github.com/MyCarrier-DevOps/goLibGitHubClient/logger"
)

// LogEntry is one captured log call. Err is only set for error entries.
type LogEntry struct {
	Level   string
	Message string
	Err     error
	Fields  map[string]interface{}
}

// MockLogger records every call. Loggers derived with WithFields share the
// same record, so assertions on the root see everything.
type MockLogger struct {
	store  *entryStore
	fields map[string]interface{}
}

type entryStore struct {
	mu      sync.RWMutex
	entries []LogEntry
}

// NewMockLogger creates an empty MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{store: &entryStore{}}
}

func (m *MockLogger) record(level, message string, err error, fields map[string]interface{}) {
	merged := make(map[string]interface{}, len(m.fields)+len(fields))
	for k, v := range m.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.entries = append(m.store.entries, LogEntry{Level: level, Message: message, Err: err, Fields: merged})
}

func (m *MockLogger) Info(_ context.Context, message string, fields map[string]interface{}) {
	m.record("info", message, nil, fields)
}

func (m *MockLogger) Debug(_ context.Context, message string, fields map[string]interface{}) {
	m.record("debug", message, nil, fields)
}

func (m *MockLogger) Warn(_ context.Context, message string, fields map[string]interface{}) {
	m.record("warn", message, nil, fields)
}

func (m *MockLogger) Error(_ context.Context, message string, err error, fields map[string]interface{}) {
	m.record("error", message, err, fields)
}

// WithFields returns a logger sharing this one's record.
func (m *MockLogger) WithFields(fields map[string]interface{}) logger.Logger {
	merged := make(map[string]interface{}, len(m.fields)+len(fields))
	for k, v := range m.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &MockLogger{store: m.store, fields: merged}
}

// Entries returns a copy of everything logged so far.
func (m *MockLogger) Entries() []LogEntry {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	out := make([]LogEntry, len(m.store.entries))
	copy(out, m.store.entries)
	return out
}

// EntriesAt returns the entries logged at level.
func (m *MockLogger) EntriesAt(level string) []LogEntry {
	var out []LogEntry
	for _, e := range m.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// HasLog reports whether a message containing substr was logged at level.
func (m *MockLogger) HasLog(level, substr string) bool {
	for _, e := range m.EntriesAt(level) {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// Reset clears the record.
func (m *MockLogger) Reset() {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.entries = nil
}

// Ensure MockLogger implements logger.Logger at compile time.
var _ logger.Logger = (*MockLogger)(nil)
