package buildutil

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// MaxWorkerMultiplier bounds worker count at 4x hardware parallelism (§5
// "Scheduling model"), since a build phase is I/O- as well as CPU-bound and
// oversubscribing a little keeps workers busy while others block on pile
// writes.
const MaxWorkerMultiplier = 4

// DefaultWorkerCount returns the default worker count for a phase: hardware
// parallelism, capped at MaxWorkerMultiplier times the core count. Callers
// that already know a tighter bound (e.g. fewer tasks than cores) should
// pass the smaller of the two along instead of calling this twice.
func DefaultWorkerCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}

// Task is one unit of work a phase hands to a worker: fetch by id, execute
// with thread-local context, produce an output to hand to the output
// thread. Task engines are generic over Task so each phase supplies its own
// concrete type (a PBF block id for the analyzer/sorter, a Tile for the
// validator/compiler).
type Task[T any] struct {
	ID   int
	Item T
}

// Output is what a worker hands back to the single output thread after
// processing a Task. Workers never write shared state directly; the
// output thread serializes it, matching §5's "single output thread" rule
// so pile/index writes stay ordered without a lock per write.
type Output[R any] struct {
	TaskID int
	Result R
}

// Engine runs a generic producer -> N workers -> single output thread
// pipeline (§5 "Task engine"). WorkerFunc processes one Task using a
// thread-local context the caller's NewWorkerContext produces once per
// worker (a per-worker arena, §5 "Memory model"); OutputFunc is called
// exactly once per task, in the single output goroutine, in the order
// outputs arrive (not necessarily task order — within a phase, consumption
// order across workers is unspecified, §5 "Ordering guarantees").
type Engine[T any, C any, R any] struct {
	Workers          int
	QueueDepth       int
	NewWorkerContext func() C
	WorkerFunc       func(ctx context.Context, wc C, task Task[T]) (R, error)
	OutputFunc       func(out Output[R]) error
}

// Run feeds tasks through the engine and blocks until every task has been
// processed and its output consumed, or an error cancels the run. The
// first error from any worker or from OutputFunc cancels the shared
// context; in-flight tasks finish, matching §5's cooperative-cancellation
// model ("in-flight writes complete").
func (e *Engine[T, C, R]) Run(ctx context.Context, tasks []T) error {
	workers := e.Workers
	if workers < 1 {
		workers = DefaultWorkerCount()
	}
	queueDepth := e.QueueDepth
	if queueDepth < 1 {
		queueDepth = workers * 2
	}

	g, ctx := errgroup.WithContext(ctx)

	jobs := make(chan Task[T], queueDepth)
	outputs := make(chan Output[R], queueDepth)

	g.Go(func() error {
		defer close(jobs)
		for id, item := range tasks {
			select {
			case jobs <- Task[T]{ID: id, Item: item}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			wc := e.NewWorkerContext()
			for {
				select {
				case task, ok := <-jobs:
					if !ok {
						return nil
					}
					result, err := e.WorkerFunc(ctx, wc, task)
					if err != nil {
						return err
					}
					select {
					case outputs <- Output[R]{TaskID: task.ID, Result: result}:
					case <-ctx.Done():
						return ctx.Err()
					}
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}

	done := make(chan struct{})
	var outputErr error
	go func() {
		defer close(done)
		for i := 0; i < len(tasks); i++ {
			select {
			case out := <-outputs:
				if err := e.OutputFunc(out); err != nil {
					outputErr = err
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	err := g.Wait()
	<-done
	if err != nil {
		return err
	}
	return outputErr
}
