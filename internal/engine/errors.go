package engine

import "errors"

// Error kinds surfaced by the activation engine. Callers classify with
// errors.Is; the wrapped message carries the pin detail.
var (
	// ErrNotConnected means no hardware session is established.
	ErrNotConnected = errors.New("no hardware session established")

	// ErrMissingDefinition means a mandatory function has no pin mapped.
	ErrMissingDefinition = errors.New("no pin definition for required function")

	// ErrLocked means the roof lock switch reads engaged, or its state
	// could not be read, and the requested activation is blocked.
	ErrLocked = errors.New("roof lock prevents activation")

	// ErrNoPulseLimit means a motion relay is configured with an
	// unbounded hold; motion relays must be pulsed.
	ErrNoPulseLimit = errors.New("motion relay requires a finite pulse duration")

	// ErrIO wraps a pin read or write failure.
	ErrIO = errors.New("gpio i/o failure")

	// ErrIncompleteMap means the configuration lacks one of the four
	// required roles. The engine stays usable; motion operations against
	// the missing roles will fail individually.
	ErrIncompleteMap = errors.New("pin definitions must include OPEN and CLOSE relays and OPENED and CLOSED switches")
)
