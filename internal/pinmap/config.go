package pinmap

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Motion timeout bounds, in seconds. The timeout is a fallback safety
// net for when a limit switch never reports, not a motion profile.
const (
	DefaultTimeoutSeconds = 15
	MinTimeoutSeconds     = 1
	MaxTimeoutSeconds     = 300
)

// Config is the on-disk form of the pin function map plus the global
// motion timeout. It round-trips through JSON.
type Config struct {
	Outputs        []OutputSlot `json:"outputs"`
	Inputs         []InputSlot  `json:"inputs"`
	TimeoutSeconds int          `json:"timeout_seconds"`
}

// OutputSlot is one relay slot in the config file.
type OutputSlot struct {
	Function   string `json:"function"` // OPEN, CLOSE, ABORT, LOCK, AUXSET, UNUSED
	Pin        int    `json:"pin"`
	ActiveHigh bool   `json:"active_high"`
	PulseMs    int    `json:"pulse_ms"` // 0 = no limit, level held
}

// InputSlot is one switch slot in the config file.
type InputSlot struct {
	Function   string `json:"function"` // OPENED, CLOSED, LOCKED, AUXSTATE, UNUSED
	Pin        int    `json:"pin"`
	ActiveHigh bool   `json:"active_high"`
}

// Load reads a Config from path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read pin config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse pin config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the Config to path as indented JSON.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode pin config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write pin config: %w", err)
	}
	return nil
}

// Default returns a complete example wiring: all five relays and all
// four switches, relays active high with 250ms pulses for motion and
// held levels for lock/aux, switches active high (so the engine selects
// pull-down resistors).
func Default() Config {
	return Config{
		Outputs: []OutputSlot{
			{Function: "OPEN", Pin: 17, ActiveHigh: true, PulseMs: 250},
			{Function: "CLOSE", Pin: 27, ActiveHigh: true, PulseMs: 250},
			{Function: "ABORT", Pin: 22, ActiveHigh: true, PulseMs: 250},
			{Function: "LOCK", Pin: 23, ActiveHigh: true, PulseMs: 0},
			{Function: "AUXSET", Pin: 24, ActiveHigh: true, PulseMs: 0},
		},
		Inputs: []InputSlot{
			{Function: "OPENED", Pin: 5, ActiveHigh: true},
			{Function: "CLOSED", Pin: 6, ActiveHigh: true},
			{Function: "LOCKED", Pin: 13, ActiveHigh: true},
			{Function: "AUXSTATE", Pin: 19, ActiveHigh: true},
		},
		TimeoutSeconds: DefaultTimeoutSeconds,
	}
}

// Map converts the config slots into a validated Map.
func (c Config) Map() (*Map, error) {
	var outputs []OutputDef
	for i, slot := range c.Outputs {
		fn, err := ParseOutputFunc(slot.Function)
		if err != nil {
			return nil, fmt.Errorf("output slot %d: %w", i+1, err)
		}
		outputs = append(outputs, OutputDef{
			Func:       fn,
			Pin:        slot.Pin,
			ActiveHigh: slot.ActiveHigh,
			Pulse:      time.Duration(slot.PulseMs) * time.Millisecond,
		})
	}
	var inputs []InputDef
	for i, slot := range c.Inputs {
		fn, err := ParseInputFunc(slot.Function)
		if err != nil {
			return nil, fmt.Errorf("input slot %d: %w", i+1, err)
		}
		inputs = append(inputs, InputDef{
			Func:       fn,
			Pin:        slot.Pin,
			ActiveHigh: slot.ActiveHigh,
		})
	}
	return New(outputs, inputs)
}

// Timeout returns the motion timeout clamped to its legal range.
func (c Config) Timeout() time.Duration {
	s := c.TimeoutSeconds
	if s == 0 {
		s = DefaultTimeoutSeconds
	}
	if s < MinTimeoutSeconds {
		s = MinTimeoutSeconds
	}
	if s > MaxTimeoutSeconds {
		s = MaxTimeoutSeconds
	}
	return time.Duration(s) * time.Second
}

// ParseOutputFunc maps a config file function name to an OutputFunc.
func ParseOutputFunc(s string) (OutputFunc, error) {
	for fn, name := range outputNames {
		if s == name {
			return fn, nil
		}
	}
	return OutUnused, fmt.Errorf("unknown output function %q", s)
}

// ParseInputFunc maps a config file function name to an InputFunc.
func ParseInputFunc(s string) (InputFunc, error) {
	for fn, name := range inputNames {
		if s == name {
			return fn, nil
		}
	}
	return InUnused, fmt.Errorf("unknown input function %q", s)
}
