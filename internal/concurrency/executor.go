// File: internal/concurrency/executor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor is the shared execution context. Ready completions sit in a single
// FIFO queue guarded by a mutex and condition variable; any number of workers
// call Run and pull from it. Outstanding asynchronous operations are counted
// so that Stop drains them before the workers return.

package concurrency

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-http/api"
)

// TaskFunc is a unit of work to execute.
type TaskFunc func()

var _ api.Executor = (*Executor)(nil)

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithPanicHandler receives values recovered from panicking tasks.
func WithPanicHandler(fn func(r any)) ExecutorOption {
	return func(e *Executor) {
		e.onPanic = fn
	}
}

// Executor manages the ready queue shared by all workers.
type Executor struct {
	mu          sync.Mutex
	cond        *sync.Cond
	ready       *queue.Queue // of TaskFunc
	outstanding int64        // in-flight async operations, guarded by mu
	running     int          // workers inside Run, guarded by mu
	stopping    bool
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc

	onPanic func(r any)

	// statistics
	totalTasks     atomic.Int64
	completedTasks atomic.Int64
}

// NewExecutor creates an idle execution context.
func NewExecutor(opts ...ExecutorOption) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		ready:  queue.New(),
		ctx:    ctx,
		cancel: cancel,
	}
	e.cond = sync.NewCond(&e.mu)
	for _, o := range opts {
		o(e)
	}
	return e
}

// Submit enqueues a ready completion. Tasks are still accepted while the
// executor drains after Stop; ErrExecutorClosed is returned once every
// worker has returned.
func (e *Executor) Submit(task func()) error {
	if task == nil {
		return api.ErrInvalidArgument
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return api.ErrExecutorClosed
	}
	e.ready.Add(TaskFunc(task))
	e.mu.Unlock()
	e.totalTasks.Add(1)
	e.cond.Signal()
	return nil
}

// Context is canceled by Stop.
func (e *Executor) Context() context.Context {
	return e.ctx
}

// WorkStarted registers one outstanding asynchronous operation.
func (e *Executor) WorkStarted() {
	e.mu.Lock()
	e.outstanding++
	e.mu.Unlock()
}

// WorkFinished releases one outstanding operation.
func (e *Executor) WorkFinished() {
	e.mu.Lock()
	e.outstanding--
	wake := e.outstanding <= 0 && e.stopping
	e.mu.Unlock()
	if wake {
		e.cond.Broadcast()
	}
}

// Run executes ready tasks on the calling goroutine until the executor is
// stopped and fully drained.
func (e *Executor) Run() {
	e.mu.Lock()
	e.running++
	for {
		for e.ready.Length() == 0 && !(e.stopping && e.outstanding <= 0) {
			e.cond.Wait()
		}
		if e.ready.Length() == 0 {
			break
		}
		task := e.ready.Remove().(TaskFunc)
		e.mu.Unlock()
		e.safeExecute(task)
		e.mu.Lock()
	}
	e.running--
	if e.running == 0 {
		e.closed = true
	}
	e.mu.Unlock()
	e.cond.Broadcast()
}

// Stop cancels the executor context; pending completions and outstanding
// operations are drained before the workers return. Idempotent.
func (e *Executor) Stop() {
	e.mu.Lock()
	already := e.stopping
	e.stopping = true
	e.mu.Unlock()
	if already {
		return
	}
	e.cancel()
	e.cond.Broadcast()
}

// Stopped reports whether Stop was called.
func (e *Executor) Stopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopping
}

// Stats returns basic executor metrics.
func (e *Executor) Stats() map[string]int64 {
	e.mu.Lock()
	pending := int64(e.ready.Length())
	outstanding := e.outstanding
	workers := int64(e.running)
	e.mu.Unlock()
	return map[string]int64{
		"total_tasks":     e.totalTasks.Load(),
		"completed_tasks": e.completedTasks.Load(),
		"pending_tasks":   pending,
		"outstanding_ops": outstanding,
		"num_workers":     workers,
	}
}

// safeExecute runs the task, recovering from panics to keep the worker alive.
func (e *Executor) safeExecute(task TaskFunc) {
	defer func() {
		if r := recover(); r != nil && e.onPanic != nil {
			e.onPanic(r)
		}
		e.completedTasks.Add(1)
	}()
	task()
}
