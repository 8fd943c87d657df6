package internal

import (
	"context"
	"time"
)

// Backoff retries an operation with an exponentially growing delay between
// attempts: Initial, 2*Initial, 4*Initial... capped at Max when Max is set.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// DefaultBackoff waits 100ms, 200ms, 400ms and 800ms between five attempts.
var DefaultBackoff = Backoff{Attempts: 5, Initial: 100 * time.Millisecond}

func (b Backoff) delay(attempt int) time.Duration {
	d := b.Initial << attempt
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// Do calls fn until it succeeds or the attempts are exhausted, in which case
// the last error is returned. ctx.Err() is returned if ctx ends while waiting.
func (b Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	_, err := Result(ctx, b, func(attempt int) (struct{}, error) {
		return struct{}{}, fn(attempt)
	})
	return err
}

// Result is like Backoff.Do for functions returning a value.
func Result[T any](ctx context.Context, b Backoff, fn func(attempt int) (T, error)) (T, error) {
	var result T
	var err error
	for attempt := 0; attempt < max(b.Attempts, 1); attempt++ {
		if result, err = fn(attempt + 1); err == nil {
			return result, nil
		}
		if attempt < b.Attempts-1 {
			select {
			case <-time.After(b.delay(attempt)):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}
	}
	return result, err
}
