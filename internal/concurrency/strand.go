// File: internal/concurrency/strand.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Strand is an exclusivity domain on top of a shared executor: callbacks
// posted to one strand run in FIFO order and never overlap, whichever worker
// picks them up.

package concurrency

import (
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-http/api"
)

// strandBatch bounds how many callbacks one drain runs before yielding the
// worker back to the shared queue.
const strandBatch = 16

// Strand serializes callbacks onto an api.Executor.
type Strand struct {
	exec api.Executor

	mu        sync.Mutex
	q         *queue.Queue // of func()
	scheduled bool         // a drain task is queued or running
}

// NewStrand binds a new strand to exec.
func NewStrand(exec api.Executor) *Strand {
	return &Strand{exec: exec, q: queue.New()}
}

// Executor returns the executor the strand runs on.
func (s *Strand) Executor() api.Executor {
	return s.exec
}

// Post enqueues fn behind every callback already posted to s.
func (s *Strand) Post(fn func()) error {
	if fn == nil {
		return api.ErrInvalidArgument
	}
	s.mu.Lock()
	s.q.Add(fn)
	if s.scheduled {
		s.mu.Unlock()
		return nil
	}
	s.scheduled = true
	s.mu.Unlock()

	if err := s.exec.Submit(s.drain); err != nil {
		s.mu.Lock()
		s.q = queue.New()
		s.scheduled = false
		s.mu.Unlock()
		return err
	}
	return nil
}

// AfterFunc posts fn onto the strand once d elapses. The returned func stops
// the timer and reports whether it did so before firing.
func (s *Strand) AfterFunc(d time.Duration, fn func()) (stop func() bool) {
	t := time.AfterFunc(d, func() {
		_ = s.Post(fn)
	})
	return t.Stop
}

// Pending returns the number of callbacks waiting on the strand.
func (s *Strand) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.Length()
}

func (s *Strand) drain() {
	defer func() {
		if r := recover(); r != nil {
			s.reschedule()
			panic(r)
		}
	}()
	for i := 0; i < strandBatch; i++ {
		s.mu.Lock()
		if s.q.Length() == 0 {
			s.scheduled = false
			s.mu.Unlock()
			return
		}
		fn := s.q.Remove().(func())
		s.mu.Unlock()
		fn()
	}
	s.reschedule()
}

// reschedule hands the strand back to the executor if work remains.
func (s *Strand) reschedule() {
	s.mu.Lock()
	if s.q.Length() == 0 {
		s.scheduled = false
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	if err := s.exec.Submit(s.drain); err != nil {
		s.mu.Lock()
		s.scheduled = false
		s.mu.Unlock()
	}
}
