// Package mocks provides call-tracking test doubles for the adapter
// interfaces.
package mocks

import "sync"

// MethodCall represents a tracked method call with its parameters.
type MethodCall struct {
	Method string
	Args   map[string]any
}

// callLog records calls in order. Mocks embed it.
type callLog struct {
	mu    sync.Mutex
	calls []MethodCall
}

func (l *callLog) trackCall(method string, args map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, MethodCall{Method: method, Args: args})
}

// GetCalls returns all tracked method calls.
func (l *callLog) GetCalls() []MethodCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]MethodCall{}, l.calls...)
}

// GetCallCount returns the number of times a method was called.
func (l *callLog) GetCallCount(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, call := range l.calls {
		if call.Method == method {
			count++
		}
	}
	return count
}

// GetLastCall returns the last call to the specified method, or nil if not called.
func (l *callLog) GetLastCall(method string) *MethodCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.calls) - 1; i >= 0; i-- {
		if l.calls[i].Method == method {
			c := l.calls[i]
			return &c
		}
	}
	return nil
}

// Methods returns the names of the tracked calls in call order.
func (l *callLog) Methods() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	for i, c := range l.calls {
		out[i] = c.Method
	}
	return out
}

// Reset clears all tracked calls.
func (l *callLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}
