// Package roof contains the motion state machine for the roll-off roof:
// it issues open/close/abort requests through the activation engine,
// tracks elapsed time against the motion timeout, and decides when a
// move is complete, timed out, or blocked.
package roof

import (
	"errors"
	"log"
	"time"

	"github.com/sweeney/roof-driver/internal/engine"
	"github.com/sweeney/roof-driver/internal/gpio"
	"github.com/sweeney/roof-driver/internal/lights"
	"github.com/sweeney/roof-driver/internal/park"
	"github.com/sweeney/roof-driver/internal/pinmap"
)

// Direction of a motion request.
type Direction int

const (
	DirectionOpen Direction = iota
	DirectionClose
)

func (d Direction) String() string {
	if d == DirectionClose {
		return "CLOSE"
	}
	return "OPEN"
}

// MotionState is the controller's own state. Transitions happen only
// inside the controller.
type MotionState int

const (
	Idle MotionState = iota
	Opening
	Closing
)

func (s MotionState) String() string {
	switch s {
	case Opening:
		return "OPENING"
	case Closing:
		return "CLOSING"
	default:
		return "IDLE"
	}
}

// ErrAlreadyAtLimit rejects a move toward a limit the roof already sits on.
var ErrAlreadyAtLimit = errors.New("roof is already at the requested limit")

// EventKind names a state change worth publishing.
type EventKind string

const (
	EventOpening EventKind = "OPENING"
	EventClosing EventKind = "CLOSING"
	EventOpened  EventKind = "OPENED"
	EventClosed  EventKind = "CLOSED"
	EventTimeout EventKind = "TIMEOUT"
	EventAborted EventKind = "ABORTED"
	EventLockOn  EventKind = "LOCK_ON"
	EventLockOff EventKind = "LOCK_OFF"
	EventAuxOn   EventKind = "AUX_ON"
	EventAuxOff  EventKind = "AUX_OFF"
)

// Event is a state change to be published.
type Event struct {
	Time   time.Time
	Kind   EventKind
	Detail string
}

// Counters accumulates totals since connect for the status page.
type Counters struct {
	Moves    int
	Opened   int
	Closed   int
	Timeouts int
	Aborts   int
	Faults   int
	Resets   int
}

// motionRequest tracks the single in-flight move against its deadline.
type motionRequest struct {
	dir      Direction
	deadline time.Duration
	started  time.Time
}

// Config carries the controller's timing knobs.
type Config struct {
	// Timeout is the motion deadline: a fallback safety net, not a
	// travel profile. Default 15s.
	Timeout time.Duration

	// IdlePoll is the tick interval while the roof is stationary.
	IdlePoll time.Duration

	// ActivePoll is the tick interval while motion is believed in
	// progress.
	ActivePoll time.Duration
}

func (c *Config) fillDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = time.Duration(pinmap.DefaultTimeoutSeconds) * time.Second
	}
	if c.IdlePoll <= 0 {
		c.IdlePoll = time.Second
	}
	if c.ActivePoll <= 0 {
		c.ActivePoll = 500 * time.Millisecond
	}
}

// TickResult is everything one controller tick produces.
type TickResult struct {
	State  MotionState
	Lights lights.Lights

	Opened bool
	Closed bool
	Locked bool
	Aux    bool

	// Events holds state changes since the previous tick, oldest first.
	Events []Event

	// NextPoll is the recommended interval until the next tick.
	NextPoll time.Duration

	// ResetNeeded is set when consecutive I/O failures exceeded the
	// fault threshold; the caller should reopen the hardware session
	// and call Reconnect.
	ResetNeeded bool
}

// Controller is the roof motion state machine. It owns the single
// in-flight motion request; a second move request while busy is
// accepted as a no-op, never queued.
type Controller struct {
	eng  *engine.Engine
	park *park.Store
	cfg  Config

	agg    lights.Aggregator
	faults FaultMonitor
	logf   func(format string, args ...interface{})

	state   MotionState
	req     *motionRequest
	expired lights.Expired

	// Last successfully read switch states.
	opened bool
	closed bool
	locked bool
	aux    bool

	pending  []Event
	counters Counters
}

// New creates a Controller over the given engine and park store.
func New(eng *engine.Engine, store *park.Store, cfg Config) *Controller {
	cfg.fillDefaults()
	return &Controller{
		eng:    eng,
		park:   store,
		cfg:    cfg,
		faults: NewFaultMonitor(),
		logf:   log.Printf,
	}
}

// Connect attaches a hardware session, applies the pin configuration,
// and seeds the assumed roof position from the limit switches, falling
// back to the persisted park state when they cannot be read.
func (c *Controller) Connect(conn gpio.Conn) error {
	c.eng.SetSession(conn)
	if err := c.eng.Apply(); err != nil {
		if !errors.Is(err, engine.ErrIncompleteMap) {
			return err
		}
		// Usable, but motion operations will fail for the missing roles.
		c.logf("roof: %v", err)
	}
	c.state = Idle
	c.req = nil
	c.expired = lights.ExpiredNone
	c.seedPosition()
	return nil
}

// Disconnect drops any in-flight request and closes the session.
func (c *Controller) Disconnect() error {
	c.state = Idle
	c.req = nil
	return c.eng.CloseSession()
}

// Reconnect performs the fault-monitor hard reset: close the old
// session, attach a fresh one, re-apply the pin configuration, and
// clear the failure counter.
func (c *Controller) Reconnect(conn gpio.Conn) error {
	if err := c.eng.CloseSession(); err != nil {
		c.logf("roof: close faulted session: %v", err)
	}
	c.faults.Success()
	c.counters.Resets++
	return c.Connect(conn)
}

func (c *Controller) seedPosition() {
	opened, errO := c.eng.ReadSwitch(pinmap.InOpened)
	closed, errC := c.eng.ReadSwitch(pinmap.InClosed)
	if errO == nil && errC == nil {
		c.opened, c.closed = opened, closed
		c.logf("roof: initial switch state: opened=%v closed=%v", opened, closed)
		return
	}
	c.logf("roof: could not read limit switches, falling back to saved park state")
	switch c.park.Load() {
	case park.Parked:
		c.opened, c.closed = false, true
	case park.Unparked:
		c.opened, c.closed = true, false
	default:
		c.opened, c.closed = false, false // position unknown
	}
}

// refresh re-reads all four switches, feeding the fault monitor. Read
// failures keep the last known value. Returns true when the consecutive
// failure count crossed the reset threshold.
func (c *Controller) refresh() bool {
	resetNeeded := false
	reads := []struct {
		fn  pinmap.InputFunc
		dst *bool
	}{
		{pinmap.InOpened, &c.opened},
		{pinmap.InClosed, &c.closed},
		{pinmap.InLocked, &c.locked},
		{pinmap.InAuxState, &c.aux},
	}
	for _, r := range reads {
		v, err := c.eng.ReadSwitch(r.fn)
		if err != nil {
			c.logf("roof: read %s switch: %v", r.fn, err)
			if errors.Is(err, engine.ErrIO) {
				c.counters.Faults++
				if c.faults.Failure() {
					resetNeeded = true
				}
			}
			continue
		}
		c.faults.Success()
		*r.dst = v
	}
	return resetNeeded
}

// RequestMove starts the roof moving in the given direction. It is
// rejected when locked, a no-op while a move is already in progress,
// and ErrAlreadyAtLimit when the roof already sits at the requested
// limit. On success the controller transitions to Opening or Closing
// and records the motion deadline.
func (c *Controller) RequestMove(dir Direction, now time.Time) error {
	c.refresh()
	if c.locked {
		c.logf("roof: externally locked, no movement possible")
		return engine.ErrLocked
	}
	if c.state == Opening || c.state == Closing {
		// Accepted: a move is already running; wait for completion.
		c.logf("roof: already %s, wait for completion", c.state)
		return nil
	}
	if dir == DirectionOpen && c.opened {
		c.logf("roof: open requested but roof is already fully opened")
		c.savePark(false)
		return ErrAlreadyAtLimit
	}
	if dir == DirectionClose && c.closed {
		c.logf("roof: close requested but roof is already fully closed")
		c.savePark(true)
		return ErrAlreadyAtLimit
	}

	fn := pinmap.OutOpen
	kind := EventOpening
	next := Opening
	if dir == DirectionClose {
		fn = pinmap.OutClose
		kind = EventClosing
		next = Closing
	}
	if err := c.eng.Activate(fn, true, false); err != nil {
		c.logf("roof: failed to operate %s relay: %v", fn, err)
		return err
	}
	c.state = next
	c.expired = lights.ExpiredNone
	c.req = &motionRequest{dir: dir, deadline: c.cfg.Timeout, started: now}
	c.counters.Moves++
	c.pending = append(c.pending, Event{Time: now, Kind: kind})
	c.logf("roof: %s, timeout %s", kind, c.cfg.Timeout)
	return nil
}

// Abort stops any in-flight motion. Best-effort: the controller returns
// to Idle whether or not the abort relay fired. When the roof ends up
// at neither limit the persisted park state is cleared — position is
// now unknown.
func (c *Controller) Abort(now time.Time) error {
	c.refresh()
	if c.locked {
		c.logf("roof: externally locked, no action taken on abort request")
		return nil
	}
	busy := c.state == Opening || c.state == Closing
	if !busy {
		switch {
		case c.closed:
			c.logf("roof: appears closed and stationary, nothing to abort")
		case c.opened:
			c.logf("roof: appears open and stationary, nothing to abort")
		default:
			c.logf("roof: appears partially open and stationary, no action taken on abort request")
		}
		return nil
	}

	c.logf("roof: abort requested while %s; direction correction may be needed on the next move", c.state)
	c.state = Idle
	c.req = nil
	c.counters.Aborts++
	c.pending = append(c.pending, Event{Time: now, Kind: EventAborted})

	err := c.eng.Activate(pinmap.OutAbort, true, false)
	if err != nil {
		// Best-effort: no retry, state machine already idle.
		c.logf("roof: abort relay: %v", err)
	}
	if !c.opened && !c.closed {
		if cerr := c.park.Clear(); cerr != nil {
			c.logf("roof: clear park state: %v", cerr)
		}
	}
	return err
}

// SetLock drives the lock relay. The interlock check is skipped here:
// this relay is what sets and clears the lock.
func (c *Controller) SetLock(on bool, now time.Time) error {
	if err := c.eng.Activate(pinmap.OutLock, on, true); err != nil {
		return err
	}
	kind := EventLockOff
	if on {
		kind = EventLockOn
	}
	c.pending = append(c.pending, Event{Time: now, Kind: kind})
	c.logf("roof: lock relay %s", onOff(on))
	return nil
}

// SetAux drives the auxiliary relay, bypassing the lock interlock.
func (c *Controller) SetAux(on bool, now time.Time) error {
	if err := c.eng.Activate(pinmap.OutAux, on, true); err != nil {
		return err
	}
	kind := EventAuxOff
	if on {
		kind = EventAuxOn
	}
	c.pending = append(c.pending, Event{Time: now, Kind: kind})
	c.logf("roof: auxiliary relay %s", onOff(on))
	return nil
}

// Tick re-reads the switches, resolves any in-flight motion against its
// limit switch and deadline, recomputes the status lights, and returns
// the recommended poll interval.
func (c *Controller) Tick(now time.Time) TickResult {
	res := TickResult{NextPoll: c.cfg.IdlePoll}
	if !c.eng.Connected() {
		res.State = c.state
		return res
	}

	res.ResetNeeded = c.refresh()

	if c.state == Opening || c.state == Closing {
		atLimit := c.opened
		if c.state == Closing {
			atLimit = c.closed
		}
		switch {
		case atLimit:
			kind := EventOpened
			parked := false
			if c.state == Closing {
				kind = EventClosed
				parked = true
				c.counters.Closed++
			} else {
				c.counters.Opened++
			}
			c.logf("roof: fully %s", kind)
			c.state = Idle
			c.req = nil
			c.savePark(parked)
			c.pending = append(c.pending, Event{Time: now, Kind: kind})
		case c.req != nil && now.Sub(c.req.started) >= c.req.deadline:
			// Soft failure: the roof may be physically fine, the deadline
			// is only a fallback safety net.
			dir := c.req.dir
			c.logf("roof: time allowed for %s has expired", c.state)
			if dir == DirectionOpen {
				c.expired = lights.ExpiredOpen
			} else {
				c.expired = lights.ExpiredClose
			}
			c.state = Idle
			c.req = nil
			c.counters.Timeouts++
			c.pending = append(c.pending, Event{Time: now, Kind: EventTimeout, Detail: dir.String()})
		default:
			res.NextPoll = c.cfg.ActivePoll
		}
	}

	l, warnings := c.agg.Compute(lights.Inputs{
		Opened:  c.opened,
		Closed:  c.closed,
		Locked:  c.locked,
		Aux:     c.aux,
		Opening: c.state == Opening,
		Closing: c.state == Closing,
		Expired: c.expired,
	})
	for _, w := range warnings {
		c.logf("roof: %s", w)
	}

	res.State = c.state
	res.Lights = l
	res.Opened = c.opened
	res.Closed = c.closed
	res.Locked = c.locked
	res.Aux = c.aux
	res.Events = c.pending
	c.pending = nil
	return res
}

// State returns the current motion state.
func (c *Controller) State() MotionState {
	return c.state
}

// Counters returns the totals accumulated since connect.
func (c *Controller) Counters() Counters {
	return c.counters
}

func (c *Controller) savePark(parked bool) {
	if err := c.park.Save(parked); err != nil {
		c.logf("roof: save park state: %v", err)
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
