package interpret

import (
	"context"
	"sync"
	"time"
)

// Mock implements Interpreter for testing.
type Mock struct {
	// InterpretFunc is called when Interpret is invoked.
	InterpretFunc func(ctx context.Context, req *Request) (*Response, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records an Interpret invocation.
type MockCall struct {
	Frames int
	Prompt string
	Time   time.Time
}

// NewMock creates a mock that answers every request with "Mock response".
func NewMock() *Mock {
	return WithText("Mock response")
}

// WithText returns a mock that always answers with text.
func WithText(text string) *Mock {
	return &Mock{
		InterpretFunc: func(ctx context.Context, req *Request) (*Response, error) {
			return &Response{Text: text, Model: "mock"}, nil
		},
	}
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		InterpretFunc: func(ctx context.Context, req *Request) (*Response, error) {
			return nil, err
		},
	}
}

// Interpret validates the request like a real backend, records the call
// and delegates to InterpretFunc. Empty batches are never recorded.
func (m *Mock) Interpret(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{
		Frames: len(req.Frames),
		Prompt: req.Prompt,
		Time:   time.Now(),
	})
	m.mu.Unlock()

	if m.InterpretFunc != nil {
		return m.InterpretFunc(ctx, req)
	}
	return nil, WrapError("mock", ErrNoContent)
}

// Close calls CloseFunc if set.
func (m *Mock) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of Interpret calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Verify Mock implements Interpreter at compile time.
var _ Interpreter = (*Mock)(nil)
