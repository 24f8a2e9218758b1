// Package metrics aggregates pipeline events from the bus into counters.
package metrics

import (
	"maps"
	"sync"
	"time"

	"github.com/normanking/stancegate/internal/bus"
	"github.com/normanking/stancegate/internal/gate"
)

// Stats holds aggregate counters since the collector started.
type Stats struct {
	StartTime      time.Time `json:"startTime"`
	Requests       int64     `json:"requests"`
	Halted         int64     `json:"halted"`
	Degraded       int64     `json:"degraded"`
	FailedOpen     int64     `json:"failedOpen"`
	Regenerations  int64     `json:"regenerations"`
	TotalLatencyMs int64     `json:"totalLatencyMs"`

	ByStance     map[string]int64  `json:"byStance"`
	ByOutcome    map[string]int64  `json:"byOutcome"`
	GateFailures map[gate.ID]int64 `json:"gateFailures"`

	LastEvent     string    `json:"lastEvent,omitempty"`
	LastEventTime time.Time `json:"lastEventTime,omitzero"`
}

// AvgLatencyMs returns the mean request duration.
func (s Stats) AvgLatencyMs() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.TotalLatencyMs) / float64(s.Requests)
}

// Collector subscribes to the bus and aggregates stats.
type Collector struct {
	bus     *bus.Bus
	stats   Stats
	mu      sync.RWMutex
	subs    []bus.SubscriptionID
	stopped bool
}

// NewCollector creates a collector for b.
func NewCollector(b *bus.Bus) *Collector {
	return &Collector{
		bus: b,
		stats: Stats{
			StartTime:    time.Now(),
			ByStance:     make(map[string]int64),
			ByOutcome:    make(map[string]int64),
			GateFailures: make(map[gate.ID]int64),
		},
	}
}

// Start begins listening to the bus.
func (c *Collector) Start() error {
	if c.bus == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || len(c.subs) > 0 {
		return nil
	}

	id, err := c.bus.Subscribe("", c.handleEvent)
	if err != nil {
		return err
	}
	c.subs = append(c.subs, id)
	return nil
}

// Stop stops listening.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true

	for _, id := range c.subs {
		_ = c.bus.Unsubscribe(id)
	}
	c.subs = nil
}

// Snapshot returns a copy of the current stats.
func (c *Collector) Snapshot() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.stats
	s.ByStance = maps.Clone(c.stats.ByStance)
	s.ByOutcome = maps.Clone(c.stats.ByOutcome)
	s.GateFailures = maps.Clone(c.stats.GateFailures)
	return s
}

func (c *Collector) handleEvent(e bus.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Type {
	case bus.EventGate:
		if e.Gate != nil && e.Gate.Status.Failed() {
			c.stats.GateFailures[e.Gate.GateID]++
		}
		return
	case bus.EventRequestHalted:
		c.stats.Halted++
	case bus.EventRequestCompleted:
		if e.Degraded {
			c.stats.Degraded++
		}
		if e.Attempts > 1 {
			c.stats.Regenerations += int64(e.Attempts - 1)
		}
	default:
		return
	}

	c.stats.Requests++
	c.stats.TotalLatencyMs += e.DurationMs
	if e.FailedOpen {
		c.stats.FailedOpen++
	}
	c.stats.ByStance[e.Stance]++
	c.stats.ByOutcome[e.Outcome]++
	c.stats.LastEvent = string(e.Type)
	c.stats.LastEventTime = e.Timestamp
}
