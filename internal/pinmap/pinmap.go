// Package pinmap owns the translation tables from abstract roof
// functions to physical GPIO pins: which pin a function drives or reads,
// its active polarity, and for relays how long the output stays asserted.
package pinmap

import (
	"fmt"
	"time"
)

// OutputFunc names a relay role.
type OutputFunc int

const (
	OutUnused OutputFunc = iota
	OutOpen
	OutClose
	OutAbort
	OutLock
	OutAux
)

var outputNames = map[OutputFunc]string{
	OutUnused: "UNUSED",
	OutOpen:   "OPEN",
	OutClose:  "CLOSE",
	OutAbort:  "ABORT",
	OutLock:   "LOCK",
	OutAux:    "AUXSET",
}

func (f OutputFunc) String() string {
	if s, ok := outputNames[f]; ok {
		return s
	}
	return fmt.Sprintf("OutputFunc(%d)", int(f))
}

// IsMotion reports whether the function starts or stops roof travel.
// Motion relays must be pulsed, never held.
func (f OutputFunc) IsMotion() bool {
	return f == OutOpen || f == OutClose || f == OutAbort
}

// InputFunc names a switch role.
type InputFunc int

const (
	InUnused InputFunc = iota
	InOpened
	InClosed
	InLocked
	InAuxState
)

var inputNames = map[InputFunc]string{
	InUnused:   "UNUSED",
	InOpened:   "OPENED",
	InClosed:   "CLOSED",
	InLocked:   "LOCKED",
	InAuxState: "AUXSTATE",
}

func (f InputFunc) String() string {
	if s, ok := inputNames[f]; ok {
		return s
	}
	return fmt.Sprintf("InputFunc(%d)", int(f))
}

// Required reports whether the switch must be wired for the driver to
// operate. Locked and AuxState are optional features.
func (f InputFunc) Required() bool {
	return f == InOpened || f == InClosed
}

// Pulse durations selectable for a relay. NoLimit holds the level until
// it is explicitly released and is only legal for Lock and AuxSet.
const (
	NoLimit  time.Duration = 0
	Pulse100               = 100 * time.Millisecond
	Pulse250               = 250 * time.Millisecond
	Pulse500               = 500 * time.Millisecond
	Pulse750               = 750 * time.Millisecond
)

// Pin number range usable on a Raspberry Pi header.
const (
	MinPin = 2
	MaxPin = 27
)

// Slot capacities, matching the number of roles that can be wired.
const (
	MaxOutputSlots = 5
	MaxInputSlots  = 4
)

// OutputDef maps a relay role onto a pin.
type OutputDef struct {
	Func       OutputFunc
	Pin        int
	ActiveHigh bool
	Pulse      time.Duration
}

// InputDef maps a switch role onto a pin.
type InputDef struct {
	Func       InputFunc
	Pin        int
	ActiveHigh bool
}

// Map is the validated pin function table handed to the activation
// engine at session start. It is immutable once built.
type Map struct {
	outputs map[OutputFunc]OutputDef
	inputs  map[InputFunc]InputDef
	outOrd  []OutputFunc
	inOrd   []InputFunc
}

// New builds a Map from slot definitions. Unused slots are skipped.
// Structural invariants are enforced here: pin ranges, one slot per
// function, legal pulse durations, and finite pulses on Open and Close.
// Missing roles are not an error at this level — the engine reports them
// when the configuration is applied, and motion requests against a
// missing role fail individually.
func New(outputs []OutputDef, inputs []InputDef) (*Map, error) {
	if len(outputs) > MaxOutputSlots {
		return nil, fmt.Errorf("at most %d output slots, got %d", MaxOutputSlots, len(outputs))
	}
	if len(inputs) > MaxInputSlots {
		return nil, fmt.Errorf("at most %d input slots, got %d", MaxInputSlots, len(inputs))
	}

	m := &Map{
		outputs: make(map[OutputFunc]OutputDef),
		inputs:  make(map[InputFunc]InputDef),
	}
	for _, def := range outputs {
		if def.Func == OutUnused {
			continue
		}
		if def.Pin < MinPin || def.Pin > MaxPin {
			return nil, fmt.Errorf("%s relay: pin %d out of range [%d,%d]", def.Func, def.Pin, MinPin, MaxPin)
		}
		if !validPulse(def.Pulse) {
			return nil, fmt.Errorf("%s relay: unsupported pulse duration %s", def.Func, def.Pulse)
		}
		if (def.Func == OutOpen || def.Func == OutClose) && def.Pulse == NoLimit {
			return nil, fmt.Errorf("%s relay: pulse duration No Limit is only available for LOCK and AUXSET", def.Func)
		}
		if _, dup := m.outputs[def.Func]; dup {
			return nil, fmt.Errorf("duplicate output definition for %s", def.Func)
		}
		m.outputs[def.Func] = def
		m.outOrd = append(m.outOrd, def.Func)
	}
	for _, def := range inputs {
		if def.Func == InUnused {
			continue
		}
		if def.Pin < MinPin || def.Pin > MaxPin {
			return nil, fmt.Errorf("%s switch: pin %d out of range [%d,%d]", def.Func, def.Pin, MinPin, MaxPin)
		}
		if _, dup := m.inputs[def.Func]; dup {
			return nil, fmt.Errorf("duplicate input definition for %s", def.Func)
		}
		m.inputs[def.Func] = def
		m.inOrd = append(m.inOrd, def.Func)
	}
	return m, nil
}

// Output looks up the relay definition for fn.
func (m *Map) Output(fn OutputFunc) (OutputDef, bool) {
	def, ok := m.outputs[fn]
	return def, ok
}

// Input looks up the switch definition for fn.
func (m *Map) Input(fn InputFunc) (InputDef, bool) {
	def, ok := m.inputs[fn]
	return def, ok
}

// Outputs returns the defined relays in slot order.
func (m *Map) Outputs() []OutputDef {
	defs := make([]OutputDef, 0, len(m.outOrd))
	for _, fn := range m.outOrd {
		defs = append(defs, m.outputs[fn])
	}
	return defs
}

// Inputs returns the defined switches in slot order.
func (m *Map) Inputs() []InputDef {
	defs := make([]InputDef, 0, len(m.inOrd))
	for _, fn := range m.inOrd {
		defs = append(defs, m.inputs[fn])
	}
	return defs
}

// MissingRoles lists the required roles (OPEN, CLOSE relays; OPENED,
// CLOSED switches) that have no definition.
func (m *Map) MissingRoles() []string {
	var missing []string
	for _, fn := range []OutputFunc{OutOpen, OutClose} {
		if _, ok := m.outputs[fn]; !ok {
			missing = append(missing, fn.String())
		}
	}
	for _, fn := range []InputFunc{InOpened, InClosed} {
		if _, ok := m.inputs[fn]; !ok {
			missing = append(missing, fn.String())
		}
	}
	return missing
}

func validPulse(d time.Duration) bool {
	switch d {
	case NoLimit, Pulse100, Pulse250, Pulse500, Pulse750:
		return true
	}
	return false
}
