package recovery

import (
	"context"
	"fmt"
	"sync"
)

// StrictStrategy fails the batch on the first error.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx context.Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy records every error and keeps the batch moving. It is safe
// to share across the concurrent item workers of one batch.
type LenientStrategy struct {
	mu     sync.Mutex
	errors []error
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{}
}

func (s *LenientStrategy) OnError(ctx context.Context, err error, location Location) Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	if location.Page >= 0 {
		s.errors = append(s.errors, fmt.Errorf("[%s] item %d page %d: %w", location.Component, location.Item, location.Page, err))
	} else {
		s.errors = append(s.errors, fmt.Errorf("[%s] item %d: %w", location.Component, location.Item, err))
	}
	return ActionWarn
}

// Errors returns the failures recorded so far.
func (s *LenientStrategy) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]error, len(s.errors))
	copy(out, s.errors)
	return out
}
