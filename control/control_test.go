package control

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCountersAreConcurrent(t *testing.T) {
	mr := NewMetricsRegistry()
	assert.True(t, mr.Updated().IsZero())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				mr.Add(MetricRequests, 1)
			}
		}()
	}
	wg.Wait()
	mr.Add(MetricConnActive, 2)
	mr.Add(MetricConnActive, -1)
	mr.Set("build", "dev")

	assert.EqualValues(t, 3200, mr.Get(MetricRequests))
	assert.Zero(t, mr.Get("missing"))
	snap := mr.GetSnapshot()
	assert.EqualValues(t, 1, snap[MetricConnActive])
	assert.Equal(t, "dev", snap["build"])
	assert.False(t, mr.Updated().IsZero())
}

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	RegisterPlatformProbes(dp)
	calls := 0
	dp.RegisterProbe("sessions.active", func() any { calls++; return calls })

	state := dp.DumpState()
	assert.Positive(t, state["platform.cpus"])
	assert.Equal(t, 1, state["sessions.active"])
	assert.Contains(t, dp.Names(), "platform.cpus")
	assert.Equal(t, 2, dp.DumpState()["sessions.active"])
}

func TestConfigStoreNotifiesChangedKeys(t *testing.T) {
	cs := NewConfigStore(map[string]any{"idle_timeout": 30 * time.Second})
	var got [][]string
	cs.OnReload(func(changed []string) { got = append(got, changed) })

	cs.SetConfig(map[string]any{"idle_timeout": 30 * time.Second})
	assert.Empty(t, got, "unchanged values must not notify")

	cs.SetConfig(map[string]any{"idle_timeout": time.Second})
	require.Len(t, got, 1)
	assert.Equal(t, []string{"idle_timeout"}, got[0])
	assert.Equal(t, time.Second, cs.Duration("idle_timeout", 0))
	assert.Equal(t, time.Minute, cs.Duration("absent", time.Minute))

	snap := cs.GetSnapshot()
	snap["idle_timeout"] = 0
	v, _ := cs.Get("idle_timeout")
	assert.Equal(t, time.Second, v)
}
