package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// StubFunc produces the response for one request.
type StubFunc func(req Request) (string, error)

// Stub is an in-process Generator for tests and offline runs.
// It records every request it receives.
type Stub struct {
	mu    sync.Mutex
	fn    StubFunc
	calls []Request
}

// NewStub creates a stub around fn. A nil fn echoes the first line of the
// user message, or "{}" for JSON requests.
func NewStub(fn StubFunc) *Stub {
	if fn == nil {
		fn = echo
	}
	return &Stub{fn: fn}
}

// StubText returns a stub that always answers text.
func StubText(text string) *Stub {
	return NewStub(func(Request) (string, error) { return text, nil })
}

// Generate implements Generator.
func (s *Stub) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &GenerationError{Provider: ProviderStub, Message: "context done", Cause: err}
	}

	s.mu.Lock()
	s.calls = append(s.calls, req)
	fn := s.fn
	s.mu.Unlock()

	out, err := fn(req)
	if err != nil {
		if _, ok := err.(*GenerationError); ok {
			return "", err
		}
		return "", &GenerationError{Provider: ProviderStub, Message: "stub failure", Cause: err}
	}
	return out, nil
}

// SetFunc swaps the response function.
func (s *Stub) SetFunc(fn StubFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
}

// Calls returns a copy of the recorded requests.
func (s *Stub) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}

// Close implements Generator.
func (s *Stub) Close() error { return nil }

func echo(req Request) (string, error) {
	if req.JSON {
		return "{}", nil
	}
	line, _, _ := strings.Cut(strings.TrimSpace(req.User), "\n")
	return fmt.Sprintf("[stub] %s", line), nil
}
