package aggregate

import (
	"context"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// Result is the tagged outcome of one branch of a wave.
type Result[T any] struct {
	Value T
	Err   error
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Or returns the branch value, or fallback when the branch failed.
func (r Result[T]) Or(fallback T) T {
	if r.Err != nil {
		return fallback
	}
	return r.Value
}

// Settle starts fn on p and records its outcome in dst once it finishes. A panicking branch
// settles as a failure so it cannot take the rest of the wave down. dst must not be read
// before p.Wait returns.
func Settle[T any](ctx context.Context, p *pool.Pool, dst *Result[T], fn func(context.Context) (T, error)) {
	p.Go(func() {
		var (
			value T
			err   error
		)
		if recovered := panics.Try(func() { value, err = fn(ctx) }); recovered != nil {
			err = recovered.AsError()
		}
		*dst = Result[T]{Value: value, Err: err}
	})
}
