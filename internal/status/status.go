// Package status provides a thread-safe status tracker for the roof
// driver. It is read by the HTTP handlers and the websocket pusher
// while the run loop writes it every tick.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/roof-driver/internal/lights"
	"github.com/sweeney/roof-driver/internal/roof"
)

// Config contains driver configuration for display.
type Config struct {
	IdlePollMs   int64
	ActivePollMs int64
	TimeoutS     int64
	Broker       string
	HTTPPort     string
	Simulated    bool
}

// Snapshot is a point-in-time view of driver state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	State         roof.MotionState
	Lights        lights.Lights
	Opened        bool
	Closed        bool
	Locked        bool
	Aux           bool
	Counters      roof.Counters
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the driver started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable driver state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update stores the latest tick result. Called from runLoop on every tick.
func (t *Tracker) Update(res roof.TickResult, counters roof.Counters) {
	t.mu.Lock()
	t.snap.State = res.State
	t.snap.Lights = res.Lights
	t.snap.Opened = res.Opened
	t.snap.Closed = res.Closed
	t.snap.Locked = res.Locked
	t.snap.Aux = res.Aux
	t.snap.Counters = counters
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the driver state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
