package gpio

import (
	"fmt"
	"sync"
	"time"
)

// SimConfig describes the wiring the Simulator should model. Relay pins
// and switch pins share one polarity setting each; mixed-polarity rigs
// are better tested with the Fake.
type SimConfig struct {
	OpenPin  int
	ClosePin int
	AbortPin int
	LockPin  int // 0 = not wired
	AuxPin   int // 0 = not wired

	OpenedPin   int
	ClosedPin   int
	LockedPin   int // 0 = not wired
	AuxStatePin int // 0 = not wired

	RelaysActiveHigh   bool
	SwitchesActiveHigh bool

	// Travel is how long the roof takes to run between limits.
	Travel time.Duration

	// StartClosed parks the simulated roof at the closed limit.
	StartClosed bool

	// Now overrides the clock for tests. Nil means time.Now.
	Now func() time.Time
}

// Simulator models a motorized roll-off roof behind the Conn interface:
// a pulse on the open or close relay starts travel, the matching limit
// switch goes active after Travel elapses, and the abort relay stops the
// roof mid-travel. Used by the -sim flag and by integration tests.
type Simulator struct {
	mu  sync.Mutex
	cfg SimConfig
	now func() time.Time

	levels map[int]Level
	modes  map[int]string

	moving    int // +1 opening, -1 closing, 0 stopped
	travelEnd time.Time
	opened    bool
	closed    bool
	locked    bool
	auxOn     bool

	closedSession bool
}

// NewSimulator creates a Simulator for the given wiring.
func NewSimulator(cfg SimConfig) *Simulator {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.Travel <= 0 {
		cfg.Travel = 10 * time.Second
	}
	return &Simulator{
		cfg:    cfg,
		now:    now,
		levels: make(map[int]Level),
		modes:  make(map[int]string),
		closed: cfg.StartClosed,
		opened: false,
	}
}

func (s *Simulator) SetOutput(pin int, initial Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes[pin] = "out"
	s.levels[pin] = initial
	return nil
}

func (s *Simulator) SetInput(pin int, pull Pull) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes[pin] = "in"
	return nil
}

func (s *Simulator) Write(pin int, level Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closedSession {
		return fmt.Errorf("write pin %d: session closed", pin)
	}
	s.levels[pin] = level
	// Lock and aux are held levels, not pulses: both edges matter.
	if pin == s.cfg.LockPin && s.cfg.LockPin != 0 {
		s.locked = level == s.relayActive()
		return nil
	}
	if pin == s.cfg.AuxPin && s.cfg.AuxPin != 0 {
		s.auxOn = level == s.relayActive()
		return nil
	}
	if level != s.relayActive() {
		return nil // release edge of a pulse, nothing to trigger
	}
	switch pin {
	case s.cfg.OpenPin:
		s.advance()
		if !s.locked && !s.opened {
			s.moving = 1
			s.closed = false
			s.travelEnd = s.now().Add(s.cfg.Travel)
		}
	case s.cfg.ClosePin:
		s.advance()
		if !s.locked && !s.closed {
			s.moving = -1
			s.opened = false
			s.travelEnd = s.now().Add(s.cfg.Travel)
		}
	case s.cfg.AbortPin:
		s.advance()
		s.moving = 0
	}
	return nil
}

func (s *Simulator) Read(pin int) (Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closedSession {
		return Low, fmt.Errorf("read pin %d: session closed", pin)
	}
	s.advance()
	switch pin {
	case s.cfg.OpenedPin:
		return s.switchLevel(s.opened), nil
	case s.cfg.ClosedPin:
		return s.switchLevel(s.closed), nil
	case s.cfg.LockedPin:
		if s.cfg.LockedPin == 0 {
			break
		}
		return s.switchLevel(s.locked), nil
	case s.cfg.AuxStatePin:
		if s.cfg.AuxStatePin == 0 {
			break
		}
		return s.switchLevel(s.auxOn), nil
	}
	return s.levels[pin], nil
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closedSession = true
	return nil
}

// Reopen makes a closed simulator usable again, standing in for a fresh
// hardware session after a fault reset.
func (s *Simulator) Reopen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closedSession = false
}

// advance settles any travel whose time has elapsed. Callers hold s.mu.
func (s *Simulator) advance() {
	if s.moving == 0 {
		return
	}
	if s.now().Before(s.travelEnd) {
		return
	}
	if s.moving > 0 {
		s.opened = true
		s.closed = false
	} else {
		s.closed = true
		s.opened = false
	}
	s.moving = 0
}

// Lock folds the lock lever on the simulated roof. The lock relay does
// the same through Write; this is for test setup.
func (s *Simulator) Lock(on bool) {
	s.mu.Lock()
	s.locked = on
	s.mu.Unlock()
}

func (s *Simulator) relayActive() Level {
	if s.cfg.RelaysActiveHigh {
		return High
	}
	return Low
}

func (s *Simulator) switchLevel(on bool) Level {
	if on == s.cfg.SwitchesActiveHigh {
		return High
	}
	return Low
}
