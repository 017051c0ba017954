package datasource

import (
	"context"
)

// MockExecutor is a configurable mock for testing the feedback loop.
// Set ExecuteQueryFunc to control behavior; results are returned in call
// order when Responses is set instead.
type MockExecutor struct {
	// ExecuteQueryFunc is called when ExecuteQuery is invoked.
	// If nil, Responses drives the result; if that is empty too, an empty
	// result is returned.
	ExecuteQueryFunc func(ctx context.Context, connectionID, sqlQuery string) (*QueryResult, error)

	// Responses are consumed one per call when ExecuteQueryFunc is nil.
	Responses []MockResponse

	// Call tracking
	Calls []string // SQL passed to each call
}

// MockResponse is one scripted executor outcome.
type MockResponse struct {
	Result *QueryResult
	Err    error
}

// NewMockExecutor creates a new mock executor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

// ExecuteQuery implements Executor.
func (m *MockExecutor) ExecuteQuery(ctx context.Context, connectionID, sqlQuery string) (*QueryResult, error) {
	m.Calls = append(m.Calls, sqlQuery)

	if m.ExecuteQueryFunc != nil {
		return m.ExecuteQueryFunc(ctx, connectionID, sqlQuery)
	}

	if len(m.Responses) > 0 {
		resp := m.Responses[0]
		m.Responses = m.Responses[1:]
		return resp.Result, resp.Err
	}

	return &QueryResult{}, nil
}

// Close implements Executor.
func (m *MockExecutor) Close() error {
	return nil
}

var _ Executor = (*MockExecutor)(nil)
