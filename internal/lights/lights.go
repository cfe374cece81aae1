// Package lights derives the user-facing roof status lights from raw
// switch reads and motion state. This package has no I/O; callers log
// the warnings it returns.
package lights

// Grade is the severity shown on a single status light.
type Grade int

const (
	Idle Grade = iota
	Ok
	Busy
	Alert
)

func (g Grade) String() string {
	switch g {
	case Ok:
		return "OK"
	case Busy:
		return "BUSY"
	case Alert:
		return "ALERT"
	default:
		return "IDLE"
	}
}

// Expired records which motion direction last timed out, if any. It
// selects which light alerts when the roof sits at neither limit.
type Expired int

const (
	ExpiredNone Expired = iota
	ExpiredOpen
	ExpiredClose
)

// Inputs is everything the aggregator needs for one recomputation.
type Inputs struct {
	Opened  bool
	Closed  bool
	Locked  bool
	Aux     bool
	Opening bool
	Closing bool
	Expired Expired
}

// Lights is the composite status: five independent lights plus one
// aggregate grade. Inconsistent is set when the opened and closed
// switches both read true, which the controller wiring should make
// impossible.
type Lights struct {
	Opened       Grade
	Closed       Grade
	Moving       Grade
	Locked       Grade
	Aux          Grade
	Aggregate    Grade
	Inconsistent bool
}

// Aggregator recomputes the lights every tick. It is stateful only to
// throttle the stationary-at-neither-limit warning.
type Aggregator struct {
	limitMsg int
}

const maxLimitWarnings = 10

// Compute grades the lights for the given inputs and returns any
// warnings the caller should log. The stationary warning repeats for
// ten ticks, announces once more that it will go quiet, then stays
// silent until the condition clears.
func (a *Aggregator) Compute(in Inputs) (Lights, []string) {
	var warnings []string

	if !in.Opened && !in.Closed && !in.Opening && !in.Closing {
		if a.limitMsg < maxLimitWarnings {
			a.limitMsg++
			warnings = append(warnings, "roof stationary, neither opened nor closed, adjust to match park state")
		} else if a.limitMsg == maxLimitWarnings {
			a.limitMsg++
			warnings = append(warnings, "roof stationary, not opened or closed; will stop reporting this")
		}
	} else {
		a.limitMsg = 0
	}

	var l Lights
	if in.Opened && in.Closed {
		l.Inconsistent = true
		warnings = append(warnings, "roof reports it is both opened and closed")
	}

	if in.Aux {
		l.Aux = Ok
	}

	if in.Locked {
		l.Locked = Alert // red to show the lock is on
		switch {
		case in.Closed:
			// Closed and locked is the normal parked arrangement.
			l.Closed = Ok
			l.Aggregate = Ok
		case in.Opened:
			l.Opened = Ok
			l.Aggregate = Ok
		case in.Opening || in.Closing:
			// Should not be moving while locked.
			l.Moving = Alert
			l.Aggregate = Alert
		}
		return l, warnings
	}

	if in.Opened || in.Closed {
		if in.Opened && !in.Closed {
			l.Opened = Ok
			l.Aggregate = Ok
		}
		if in.Closed && !in.Opened {
			l.Closed = Ok
			l.Aggregate = Ok
		}
		// Both set: inconsistency already flagged, no light preferred.
	} else if in.Opening || in.Closing {
		if in.Opening {
			l.Opened = Busy
		} else {
			l.Closed = Busy
		}
		l.Moving = Busy
		l.Aggregate = Busy
	} else {
		// Stationary at neither limit.
		switch in.Expired {
		case ExpiredOpen:
			l.Opened = Alert
		case ExpiredClose:
			l.Closed = Alert
		}
		l.Aggregate = Alert
	}
	return l, warnings
}
