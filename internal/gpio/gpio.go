// Package gpio provides GPIO pin access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake and simulator implementations allow testing without hardware.
package gpio

// Level is the electrical state of a pin.
type Level int

const (
	Low Level = iota
	High
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// Invert returns the complementary level.
func (l Level) Invert() Level {
	if l == High {
		return Low
	}
	return High
}

// Pull selects the internal resistor for an input pin.
type Pull int

const (
	PullOff Pull = iota
	PullUp
	PullDown
)

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	default:
		return "off"
	}
}

// Conn is a session with the GPIO hardware. All pin I/O goes through it.
type Conn interface {
	// SetOutput configures pin as an output with no pull resistor and
	// drives it to initial.
	SetOutput(pin int, initial Level) error

	// SetInput configures pin as an input with the given pull resistor.
	SetInput(pin int, pull Pull) error

	// Write drives a previously configured output pin.
	Write(pin int, level Level) error

	// Read samples a previously configured input pin.
	Read(pin int) (Level, error)

	// Close releases all requested pins.
	Close() error
}
