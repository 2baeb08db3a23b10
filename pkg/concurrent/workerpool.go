// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerPool bounds how many calls run at the same time. It is used to fan
// out requests to the conferencing server and the mail relay without
// flooding either.
type WorkerPool struct {
	workerCount int
}

// NewWorkerPool creates a pool running at most workerCount calls at once.
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{workerCount: workerCount}
}

// RunAll runs every function, even after failures, and returns the non-nil
// errors in the order the functions were given. Functions not started before
// ctx is done report ctx.Err().
func (wp *WorkerPool) RunAll(ctx context.Context, functions ...func() error) []error {
	if len(functions) == 0 {
		return nil
	}

	var errs []error
	for _, err := range wp.run(ctx, len(functions), func(i int) error { return functions[i]() }) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Result is the outcome of one Map call.
type Result[R any] struct {
	Value R
	Err   error
}

// Map calls fn for every item through the pool and returns one Result per
// item, in item order.
func Map[T, R any](ctx context.Context, wp *WorkerPool, items []T, fn func(context.Context, T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	errs := wp.run(ctx, len(items), func(i int) error {
		value, err := fn(ctx, items[i])
		results[i].Value = value
		return err
	})
	for i, err := range errs {
		results[i].Err = err
	}
	return results
}

// run calls task for 0..n-1 and returns the error of each index.
func (wp *WorkerPool) run(ctx context.Context, n int, task func(i int) error) []error {
	errs := make([]error, n)
	g := new(errgroup.Group)
	g.SetLimit(wp.workerCount)
	for i := range n {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = task(i)
			return nil
		})
	}
	// Tasks never fail the group.
	_ = g.Wait()
	return errs
}
