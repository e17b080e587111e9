package session

import (
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-http/api"
	"github.com/momentics/hioload-http/internal/concurrency"
	"github.com/momentics/hioload-http/protocol"
)

func newIdleSession(t *testing.T) *Session {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	h := api.HandlerFunc(func(*protocol.Request, api.Emitter) {})
	return New(a, concurrency.NewStrand(concurrency.NewExecutor()), h, Options{})
}

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry(3)
	assert.Len(t, r.shards, 4)

	s := newIdleSession(t)
	require.True(t, r.Add(s))
	assert.False(t, r.Add(s))
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	r.Remove(s.ID())
	r.Remove(s.ID())
	assert.Zero(t, r.Len())
	_, ok = r.Get(s.ID())
	assert.False(t, ok)
}

func TestRegistryConcurrentRange(t *testing.T) {
	r := NewRegistry(0)
	sessions := make([]*Session, 64)
	for i := range sessions {
		sessions[i] = newIdleSession(t)
	}

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			r.Add(s)
		}(s)
	}
	wg.Wait()
	assert.Equal(t, len(sessions), r.Len())

	seen := map[string]bool{}
	r.Range(func(s *Session) {
		seen[s.ID()] = true
		r.Remove(s.ID())
	})
	assert.Len(t, seen, len(sessions), fmt.Sprint(r.Len()))
	assert.Zero(t, r.Len())
}
