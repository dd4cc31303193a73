package availability

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Cached remembers answers for a while and collapses concurrent lookups of
// the same candidate into one call. Errors are never cached.
type Cached struct {
	next    Checker
	answers *expirable.LRU[string, bool]
	group   singleflight.Group
}

// NewCached wraps next. size bounds the number of remembered candidates and
// ttl how long an answer is trusted.
func NewCached(next Checker, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 256
	}
	return &Cached{
		next:    next,
		answers: expirable.NewLRU[string, bool](size, nil, ttl),
	}
}

// CheckAvailability implements Checker. A caller whose context ends stops
// waiting, while the shared lookup continues for the others.
func (c *Cached) CheckAvailability(ctx context.Context, candidate string) (bool, error) {
	key := normalize(candidate)
	if available, ok := c.answers.Get(key); ok {
		return available, nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		available, err := c.next.CheckAvailability(context.WithoutCancel(ctx), candidate)
		if err != nil {
			return false, err
		}
		c.answers.Add(key, available)
		return available, nil
	})
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val.(bool), nil
	}
}

// Forget drops the remembered answer for candidate.
func (c *Cached) Forget(candidate string) {
	key := normalize(candidate)
	c.answers.Remove(key)
	c.group.Forget(key)
}
