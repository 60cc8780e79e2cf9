package credauth

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

type boundedResult[T any] struct {
	value T
	err   error
}

// bounded runs fn under timeout.  Hitting the deadline, or a collaborator
// that reports one, surfaces as ErrStoreUnavailable.  fn keeps running in the
// background after a timeout; its result is dropped and the zero value is
// returned instead.
func bounded[T any](ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan boundedResult[T], 1)
	go func() {
		value, err := fn(ctx)
		done <- boundedResult[T]{value, err}
	}()

	var zero T
	select {
	case res := <-done:
		if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(res.err, context.Canceled) {
			return zero, errors.Wrapf(ErrStoreUnavailable, "%s: %v", op, res.err)
		}
		return res.value, res.err
	case <-ctx.Done():
		return zero, errors.Wrapf(ErrStoreUnavailable, "%s timed out", op)
	}
}

// boundedErr is bounded for operations without a result
func boundedErr(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	_, err := bounded(ctx, timeout, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
