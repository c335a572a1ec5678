// Package fanout runs independent units of work against a slow external
// service with a bounded number in flight. One unit's failure never cancels
// its siblings; every unit completes with either a value or an error, and
// results come back in input order regardless of completion order.
package fanout

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Concurrency bounds. A caller-supplied limit is clamped into [1, MaxLimit];
// a missing limit (<= 0) falls back to DefaultLimit.
const (
	DefaultLimit = 4
	MaxLimit     = 16
)

// Result is the outcome of one unit of work.
type Result[R any] struct {
	Index   int
	Value   R
	Err     error
	Elapsed time.Duration
}

// Clamp normalizes a caller-supplied concurrency limit.
func Clamp(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Run invokes fn for every item with at most Clamp(limit) calls in flight.
// Worker errors are captured per item, never propagated to the group, so the
// whole batch always runs to completion. The returned slice is indexed by
// input position.
func Run[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, index int, item T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))

	// Plain errgroup, not WithContext: a failing unit must not cancel the
	// context its siblings are running under.
	var eg errgroup.Group
	eg.SetLimit(Clamp(limit))

	for i, item := range items {
		eg.Go(func() error {
			start := time.Now()
			value, err := fn(ctx, i, item)
			results[i] = Result[R]{
				Index:   i,
				Value:   value,
				Err:     err,
				Elapsed: time.Since(start),
			}
			return nil
		})
	}
	_ = eg.Wait()
	return results
}
