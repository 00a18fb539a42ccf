// Package batch implements bounded-concurrency fan-out of identical-shape
// LLM tasks (spec.md's Batch Executor, C4). Cancellation of one task must
// never cancel its siblings, so this deliberately uses a plain
// errgroup.Group with SetLimit rather than errgroup.WithContext, whose
// derived context would cancel every in-flight task on the first error.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of work in a batch: given a context, it produces a
// result or an error. A task's only output is its own result — no
// shared mutable state may be written across tasks in the same batch.
type Task[T any] func(ctx context.Context) (T, error)

// Result pairs a task's outcome with its original input position, so
// order-preserving merges never depend on completion order.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Run executes tasks with up to maxParallel running simultaneously and
// returns one Result per task, in input order. A task that errors is
// recorded in its slot and does not affect any other task; Run itself
// never returns an error.
func Run[T any](ctx context.Context, maxParallel int, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))
	if len(tasks) == 0 {
		return results
	}
	if maxParallel <= 0 {
		maxParallel = len(tasks)
	}

	group := &errgroup.Group{}
	group.SetLimit(maxParallel)

	for i, task := range tasks {
		i, task := i, task
		group.Go(func() error {
			value, err := task(ctx)
			results[i] = Result[T]{Index: i, Value: value, Err: err}
			return nil
		})
	}

	_ = group.Wait()
	return results
}

// Errors extracts the non-nil errors from a Result slice, preserving order.
func Errors[T any](results []Result[T]) []error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}

// Values extracts every successful result's value, in input order,
// dropping slots whose task errored.
func Values[T any](results []Result[T]) []T {
	values := make([]T, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			values = append(values, r.Value)
		}
	}
	return values
}
