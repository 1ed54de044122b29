package scheduler

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Hongsc0125/donggle-bot/internal/logger"
)

// Outcome is the result of one function run by Gather.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Gather runs every fn concurrently and waits for all of them. Outcomes are in
// submission order; a panic is captured as that item's error.
func Gather[T any](ctx context.Context, fns []func(context.Context) (T, error)) []Outcome[T] {
	if len(fns) == 0 {
		return nil
	}

	outcomes := make([]Outcome[T], len(fns))
	var g errgroup.Group
	for i, fn := range fns {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i].Err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
				}
			}()
			outcomes[i].Value, outcomes[i].Err = fn(ctx)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// RunAll runs every fn concurrently, logs each failure and returns the
// successful results in submission order. It never panics and never returns
// an error.
func RunAll[T any](ctx context.Context, log *logger.Logger, fns []func(context.Context) (T, error)) []T {
	results := make([]T, 0, len(fns))
	for i, o := range Gather(ctx, fns) {
		if o.Err != nil {
			log.ErrorCtx(ctx, "concurrent item failed", o.Err,
				logger.Field{Key: "index", Value: i},
				logger.Field{Key: "total", Value: len(fns)})
			continue
		}
		results = append(results, o.Value)
	}
	return results
}
