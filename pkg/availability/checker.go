// Package availability provides the username availability collaborators the
// form engine consumes through validators.UsernameAvailable.
package availability

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUnavailable is returned when the backing lookup cannot answer.
	ErrUnavailable = errors.New("availability: lookup unavailable")
	// ErrBadStatus is returned for non-2xx HTTP answers.
	ErrBadStatus = errors.New("availability: unexpected status")
)

// Checker answers whether a username candidate is still free. Implementations
// bound their own latency; callers pass a context they may cancel.
type Checker interface {
	CheckAvailability(ctx context.Context, candidate string) (bool, error)
}

// CheckerFunc adapts a function into a Checker.
type CheckerFunc func(ctx context.Context, candidate string) (bool, error)

// CheckAvailability delegates to the underlying function.
func (fn CheckerFunc) CheckAvailability(ctx context.Context, candidate string) (bool, error) {
	return fn(ctx, candidate)
}

// Static answers from an in-memory set of taken names. Comparison is case
// insensitive and ignores surrounding whitespace.
type Static struct {
	mu      sync.RWMutex
	taken   map[string]struct{}
	latency time.Duration
}

// StaticOption configures a Static checker.
type StaticOption func(*Static)

// WithLatency delays every answer by d, honouring context cancellation.
func WithLatency(d time.Duration) StaticOption {
	return func(s *Static) {
		if d > 0 {
			s.latency = d
		}
	}
}

// NewStatic builds a checker that reports the given names as taken.
func NewStatic(taken []string, opts ...StaticOption) *Static {
	s := &Static{taken: make(map[string]struct{}, len(taken))}
	for _, name := range taken {
		s.Take(name)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Take marks name as taken.
func (s *Static) Take(name string) {
	key := normalize(name)
	if key == "" {
		return
	}
	s.mu.Lock()
	s.taken[key] = struct{}{}
	s.mu.Unlock()
}

// Release frees name.
func (s *Static) Release(name string) {
	s.mu.Lock()
	delete(s.taken, normalize(name))
	s.mu.Unlock()
}

// CheckAvailability implements Checker.
func (s *Static) CheckAvailability(ctx context.Context, candidate string) (bool, error) {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}
	s.mu.RLock()
	_, taken := s.taken[normalize(candidate)]
	s.mu.RUnlock()
	return !taken, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
