package observ

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by step on every reading.
func fakeClock(step time.Duration) func() time.Time {
	now := time.Unix(0, 0)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	tm.now = fakeClock(2 * time.Millisecond)

	list := tm.Begin("list")
	tm.End(list, "3 files")
	load := tm.Begin("load")
	tm.End(load, "")
	tm.End(42, "ignored")

	r := tm.Report()
	require.Len(t, r.Phases, 2)
	assert.Equal(t, "list", r.Phases[0].Name)
	assert.InDelta(t, 2.0, r.Phases[0].DurationMS, 1e-9)
	assert.Equal(t, "3 files", r.Phases[0].Note)
	assert.InDelta(t, 4.0, r.TotalMS, 1e-9)

	out := r.String()
	assert.True(t, strings.HasPrefix(out, "timings:\n"), out)
	assert.Contains(t, out, "// 3 files")
	assert.Contains(t, out, "total")
}

func TestNilTimer(t *testing.T) {
	var tm *Timer
	idx := tm.Begin("x")
	tm.End(idx, "")
	assert.Equal(t, -1, idx)
	assert.Empty(t, tm.Report().Phases)
}
