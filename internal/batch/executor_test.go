package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunPreservesOrderAndIsolatesErrors(t *testing.T) {
	tasks := []Task[int]{
		func(ctx context.Context) (int, error) { return 1, nil },
		func(ctx context.Context) (int, error) { return 0, errors.New("boom") },
		func(ctx context.Context) (int, error) { return 3, nil },
	}

	results := Run(context.Background(), 2, tasks)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Value != 1 || results[0].Err != nil {
		t.Fatalf("unexpected result[0]: %+v", results[0])
	}
	if results[1].Err == nil {
		t.Fatalf("expected result[1] to carry an error")
	}
	if results[2].Value != 3 || results[2].Err != nil {
		t.Fatalf("unexpected result[2]: %+v", results[2])
	}

	values := Values(results)
	if len(values) != 2 || values[0] != 1 || values[1] != 3 {
		t.Fatalf("unexpected values: %v", values)
	}
	if errs := Errors(results); len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
}

func TestRunRespectsMaxParallel(t *testing.T) {
	var active int32
	var maxObserved int32
	tasks := make([]Task[struct{}], 10)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (struct{}, error) {
			cur := atomic.AddInt32(&active, 1)
			for {
				prev := atomic.LoadInt32(&maxObserved)
				if cur <= prev || atomic.CompareAndSwapInt32(&maxObserved, prev, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return struct{}{}, nil
		}
	}

	Run(context.Background(), 3, tasks)

	if atomic.LoadInt32(&maxObserved) > 3 {
		t.Fatalf("expected at most 3 concurrent tasks, observed %d", maxObserved)
	}
}

func TestRunOneTaskFailureDoesNotCancelSiblings(t *testing.T) {
	tasks := []Task[int]{
		func(ctx context.Context) (int, error) {
			return 0, errors.New("fails immediately")
		},
		func(ctx context.Context) (int, error) {
			time.Sleep(20 * time.Millisecond)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			default:
				return 42, nil
			}
		},
	}

	results := Run(context.Background(), 2, tasks)
	if results[1].Err != nil {
		t.Fatalf("sibling task should not have been cancelled: %v", results[1].Err)
	}
	if results[1].Value != 42 {
		t.Fatalf("expected sibling task to complete normally, got %+v", results[1])
	}
}
