package sop

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// TaskRunner bounds the number of concurrently running goroutines spawned via
// Go, propagating the first error encountered (golang.org/x/sync/errgroup)
// and cancelling its context accordingly. Used by the manager package's
// VerifyFiles to cap verifier concurrency at max(1, NumCPU()/2).
type TaskRunner struct {
	eg          *errgroup.Group
	limiterChan chan struct{}
	context     context.Context
}

// NewTaskRunner creates a task runner that allows at most maxThreadCount
// tasks to run concurrently.
func NewTaskRunner(ctx context.Context, maxThreadCount int) *TaskRunner {
	if maxThreadCount < 1 {
		maxThreadCount = 1
	}
	eg, ctx2 := errgroup.WithContext(ctx)
	return &TaskRunner{
		eg:          eg,
		limiterChan: make(chan struct{}, maxThreadCount),
		context:     ctx2,
	}
}

// GetContext returns the errgroup-derived context, cancelled as soon as any
// task returns a non-nil error.
func (tr *TaskRunner) GetContext() context.Context {
	return tr.context
}

// Go spawns task on a new goroutine once a slot is free, bounded by the
// runner's configured concurrency.
func (tr *TaskRunner) Go(task func() error) {
	tr.limiterChan <- struct{}{}
	tr.eg.Go(func() error {
		defer func() { <-tr.limiterChan }()
		return task()
	})
}

// Wait blocks until all spawned tasks complete, returning the first error
// encountered (if any).
func (tr *TaskRunner) Wait() error {
	return tr.eg.Wait()
}
