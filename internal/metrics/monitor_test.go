package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	NoopRecorder
	ops map[string]map[ResultLabel]int
}

func (c *countingRecorder) ObserveOperation(op string, _ time.Duration, result ResultLabel) {
	if c.ops == nil {
		c.ops = map[string]map[ResultLabel]int{}
	}
	if c.ops[op] == nil {
		c.ops[op] = map[ResultLabel]int{}
	}
	c.ops[op][result]++
}

func TestMonitorStats(t *testing.T) {
	rec := &countingRecorder{}
	m := NewMonitor(0, rec)

	m.Record("search", 10*time.Millisecond, true)
	m.Record("search", 30*time.Millisecond, false)
	m.Record("load_languages", 5*time.Millisecond, true)

	stats := m.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "load_languages", stats[0].Operation)

	s := stats[1]
	assert.Equal(t, "search", s.Operation)
	assert.Equal(t, 2, s.Count)
	assert.InDelta(t, 20.0, s.AvgTimeMS, 0.001)
	assert.InDelta(t, 10.0, s.MinTimeMS, 0.001)
	assert.InDelta(t, 30.0, s.MaxTimeMS, 0.001)
	assert.InDelta(t, 50.0, s.SuccessRate, 0.001)

	assert.Equal(t, 1, rec.ops["search"][ResultSuccess])
	assert.Equal(t, 1, rec.ops["search"][ResultFailure])
}

func TestMonitorTrack(t *testing.T) {
	m := NewMonitor(time.Hour, nil)

	run := func(fail bool) (err error) {
		defer m.Track("op")(&err)
		if fail {
			return errors.New("boom")
		}
		return nil
	}
	require.NoError(t, run(false))
	require.Error(t, run(true))

	stats := m.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].Count)
	assert.InDelta(t, 50.0, stats[0].SuccessRate, 0.001)

	m.Reset()
	assert.Empty(t, m.Stats())
}
