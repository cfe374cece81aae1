// Package engine translates abstract roof functions into GPIO pin
// activity. It owns all direct pin I/O: applying the pin configuration,
// pulsing or holding relays, and reading switches against their
// configured polarity.
package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/sweeney/roof-driver/internal/gpio"
	"github.com/sweeney/roof-driver/internal/pinmap"
)

// Engine executes named functions against a GPIO session using the pin
// function map it was built with. Not safe for concurrent use; only the
// run loop calls it.
type Engine struct {
	pins *pinmap.Map
	conn gpio.Conn

	// sleep blocks between relay assert and release. Pulses are at most
	// 750ms. Tests replace it.
	sleep func(time.Duration)
	logf  func(format string, args ...interface{})
}

// New creates an Engine over the given pin map. A session must be
// attached with SetSession before any I/O.
func New(pins *pinmap.Map) *Engine {
	return &Engine{
		pins:  pins,
		sleep: time.Sleep,
		logf:  log.Printf,
	}
}

// SetSession attaches a hardware session.
func (e *Engine) SetSession(conn gpio.Conn) {
	e.conn = conn
}

// CloseSession closes and detaches the current session, if any.
func (e *Engine) CloseSession() error {
	if e.conn == nil {
		return nil
	}
	err := e.conn.Close()
	e.conn = nil
	return err
}

// Connected reports whether a hardware session is attached.
func (e *Engine) Connected() bool {
	return e.conn != nil
}

// Map returns the pin function map the engine was built with.
func (e *Engine) Map() *pinmap.Map {
	return e.pins
}

// Apply configures every defined pin: relays become outputs driven to
// their inactive level with no pull resistor, switches become inputs
// with the pull resistor complementing their active polarity. A pin
// that fails to configure is logged and skipped; the remaining pins are
// still applied. Returns ErrIncompleteMap if the four required roles
// did not all configure.
func (e *Engine) Apply() error {
	if e.conn == nil {
		return ErrNotConnected
	}
	required := 0
	for _, def := range e.pins.Outputs() {
		inactive := gpio.High
		if def.ActiveHigh {
			inactive = gpio.Low
		}
		if err := e.conn.SetOutput(def.Pin, inactive); err != nil {
			e.logf("engine: configure %s relay pin %d: %v", def.Func, def.Pin, err)
			continue
		}
		if def.Func == pinmap.OutOpen || def.Func == pinmap.OutClose {
			required++
		}
		e.logf("engine: %s relay, pin %d, mode output, active %s, resistor off, pulse %s",
			def.Func, def.Pin, activeName(def.ActiveHigh), pulseName(def.Pulse))
	}
	for _, def := range e.pins.Inputs() {
		pull := gpio.PullUp
		if def.ActiveHigh {
			pull = gpio.PullDown
		}
		if err := e.conn.SetInput(def.Pin, pull); err != nil {
			e.logf("engine: configure %s switch pin %d: %v", def.Func, def.Pin, err)
			continue
		}
		if def.Func.Required() {
			required++
		}
		e.logf("engine: %s switch, pin %d, mode input, active %s, resistor pull %s",
			def.Func, def.Pin, activeName(def.ActiveHigh), pull)
	}
	// Minimal working rig is open, close, opened, closed.
	if required < 4 {
		return ErrIncompleteMap
	}
	return nil
}

// Activate turns the relay mapped to fn on or off. Unless ignoreLock is
// set, the roof lock switch is consulted first and an engaged (or
// unreadable) lock blocks the activation. Motion relays are pulsed:
// Activate blocks for the configured pulse duration and then writes the
// release level. An activation of an unmapped optional relay (LOCK,
// AUXSET) is a successful no-op.
func (e *Engine) Activate(fn pinmap.OutputFunc, on bool, ignoreLock bool) error {
	if e.conn == nil {
		return ErrNotConnected
	}
	if !ignoreLock {
		locked, err := e.ReadSwitch(pinmap.InLocked)
		if err != nil {
			return fmt.Errorf("%w: lock state unreadable: %v", ErrLocked, err)
		}
		if locked {
			return ErrLocked
		}
	}
	def, ok := e.pins.Output(fn)
	if !ok {
		if fn.IsMotion() {
			return fmt.Errorf("%w: %s", ErrMissingDefinition, fn)
		}
		return nil // optional relay not wired, treat as unused
	}
	if fn.IsMotion() && def.Pulse == pinmap.NoLimit {
		return fmt.Errorf("%w: %s", ErrNoPulseLimit, fn)
	}

	level := gpio.Low
	if def.ActiveHigh == on {
		level = gpio.High
	}
	if err := e.conn.Write(def.Pin, level); err != nil {
		return fmt.Errorf("%w: write %s pin %d: %v", ErrIO, fn, def.Pin, err)
	}
	if def.Pulse > 0 {
		e.sleep(def.Pulse)
		if err := e.conn.Write(def.Pin, level.Invert()); err != nil {
			// The relay may be left asserted; the operator must clear it.
			return fmt.Errorf("%w: release %s pin %d: %v", ErrIO, fn, def.Pin, err)
		}
	}
	return nil
}

// ReadSwitch reports whether fn's switch reads its configured active
// polarity. An unmapped optional switch (LOCKED, AUXSTATE) reads false;
// an unmapped required switch is ErrMissingDefinition.
func (e *Engine) ReadSwitch(fn pinmap.InputFunc) (bool, error) {
	if e.conn == nil {
		return false, ErrNotConnected
	}
	def, ok := e.pins.Input(fn)
	if !ok {
		if fn.Required() {
			return false, fmt.Errorf("%w: %s", ErrMissingDefinition, fn)
		}
		return false, nil // optional switch not wired, feature unused
	}
	level, err := e.conn.Read(def.Pin)
	if err != nil {
		return false, fmt.Errorf("%w: read %s pin %d: %v", ErrIO, fn, def.Pin, err)
	}
	return (level == gpio.High) == def.ActiveHigh, nil
}

func activeName(high bool) string {
	if high {
		return "high"
	}
	return "low"
}

func pulseName(d time.Duration) string {
	if d == pinmap.NoLimit {
		return "no limit"
	}
	return d.String()
}
