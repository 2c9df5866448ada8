package llm

import (
	"context"
	"sync"
)

// MockCall records one Generate invocation.
type MockCall struct {
	System string
	User   string
}

// MockGenerator is a canned-response Generator for tests. It records every
// call so tests can assert on prompts and invocation counts.
type MockGenerator struct {
	Response string
	Err      error

	mu    sync.Mutex
	calls []MockCall
}

// Generate records the call and returns the canned response or error.
func (m *MockGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{System: system, User: user})
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Calls returns a copy of the recorded invocations.
func (m *MockGenerator) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns the number of Generate invocations.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// ModelName identifies the mock.
func (m *MockGenerator) ModelName() string {
	return "mock"
}

// Close is a no-op.
func (m *MockGenerator) Close() error {
	return nil
}
