// File: internal/concurrency/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker pool: N OS threads all running the same execution context.

package concurrency

import (
	"runtime"
	"sync"
)

// PoolOption customizes RunPool.
type PoolOption func(*poolConfig)

type poolConfig struct {
	pinCPUs  bool
	onPinErr func(worker int, err error)
}

// WithCPUPinning pins worker i to CPU i modulo NumCPU. onErr, if not nil,
// receives pinning failures; the worker keeps running unpinned.
func WithCPUPinning(onErr func(worker int, err error)) PoolOption {
	return func(c *poolConfig) {
		c.pinCPUs = true
		c.onPinErr = onErr
	}
}

// DefaultThreads is the available hardware parallelism.
func DefaultThreads() int {
	return runtime.NumCPU()
}

// RunPool starts max(1, threadCount) workers each calling run; the calling
// goroutine is one of them. It blocks until every worker has returned.
func RunPool(threadCount int, run func(), opts ...PoolOption) {
	cfg := &poolConfig{}
	for _, o := range opts {
		o(cfg)
	}
	n := max(1, threadCount)

	var wg sync.WaitGroup
	wg.Add(n - 1)
	for i := 1; i < n; i++ {
		go func(id int) {
			defer wg.Done()
			cfg.work(id, run)
		}(i)
	}
	cfg.work(0, run)
	wg.Wait()
}

func (c *poolConfig) work(id int, run func()) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if c.pinCPUs {
		restore, err := PinCurrentThread(id % runtime.NumCPU())
		if err != nil && c.onPinErr != nil {
			c.onPinErr(id, err)
		}
		defer restore()
	}
	run()
}
