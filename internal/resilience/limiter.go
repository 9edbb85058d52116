package resilience

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds the number of in-flight upstream calls with a weighted semaphore.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter creates a Limiter allowing at most limit concurrent calls.
// A limit below 1 returns nil, which Run treats as unlimited.
func NewLimiter(limit int) *Limiter {
	if limit < 1 {
		return nil
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(limit))}
}

// Run acquires a slot, runs fn, and releases the slot.
// Returns ctx.Err() if the context is cancelled while waiting for a slot.
func (l *Limiter) Run(ctx context.Context, fn func()) error {
	if l == nil || l.sem == nil {
		fn()
		return nil
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	fn()
	return nil
}
