package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/stancegate/internal/bus"
	"github.com/normanking/stancegate/internal/gate"
)

func TestCollector_Aggregates(t *testing.T) {
	b := bus.New()
	defer b.Close()

	c := NewCollector(b)
	require.NoError(t, c.Start())
	defer c.Stop()

	soft := gate.Finish(gate.Start(gate.IDIntent), gate.StatusSoftFail, gate.ActionContinue, 0, "classifier failed open")
	require.NoError(t, b.Publish(bus.GateEvent("r1", soft.Summary())))
	require.NoError(t, b.Publish(bus.GateEvent("r1", gate.Pass(gate.Start(gate.IDLens), 0).Summary())))

	done := bus.NewEvent(bus.EventRequestCompleted, "r1")
	done.Stance, done.Outcome = "lens", "answered"
	done.Attempts, done.Degraded, done.FailedOpen, done.DurationMs = 3, true, true, 40
	require.NoError(t, b.Publish(done))

	halted := bus.NewEvent(bus.EventRequestHalted, "r2")
	halted.Stance, halted.Outcome, halted.DurationMs = "control", "crisis", 10
	require.NoError(t, b.Publish(halted))

	assert.Eventually(t, func() bool { return c.Snapshot().Requests == 2 }, time.Second, 5*time.Millisecond)

	s := c.Snapshot()
	assert.Equal(t, int64(1), s.Halted)
	assert.Equal(t, int64(1), s.Degraded)
	assert.Equal(t, int64(1), s.FailedOpen)
	assert.Equal(t, int64(2), s.Regenerations)
	assert.Equal(t, map[string]int64{"lens": 1, "control": 1}, s.ByStance)
	assert.Equal(t, map[string]int64{"answered": 1, "crisis": 1}, s.ByOutcome)
	assert.Equal(t, map[gate.ID]int64{gate.IDIntent: 1}, s.GateFailures)
	assert.InDelta(t, 25.0, s.AvgLatencyMs(), 0.001)
}

func TestCollector_SnapshotIsCopy(t *testing.T) {
	c := NewCollector(nil)
	require.NoError(t, c.Start())

	s := c.Snapshot()
	s.ByStance["sword"] = 99
	assert.Empty(t, c.Snapshot().ByStance)
	assert.Zero(t, c.Snapshot().AvgLatencyMs())
}

func TestCollector_StopUnsubscribes(t *testing.T) {
	b := bus.New()
	defer b.Close()

	c := NewCollector(b)
	require.NoError(t, c.Start())
	assert.Equal(t, 1, b.Subscriptions())

	c.Stop()
	c.Stop()
	assert.Equal(t, 0, b.Subscriptions())
}
