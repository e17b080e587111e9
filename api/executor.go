// File: api/executor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor contract for completion dispatch.

package api

import "context"

// Executor abstracts the shared execution context that runs completions.
type Executor interface {
	// Submit schedules task for execution on a worker.
	Submit(task func()) error

	// Context is canceled when the executor is stopped.
	Context() context.Context

	// WorkStarted and WorkFinished bracket an outstanding asynchronous
	// operation so that a stopping executor drains it before returning.
	WorkStarted()
	WorkFinished()
}
