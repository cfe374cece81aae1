//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealConn drives pins on actual hardware through the Linux GPIO
// character device. Lines are requested on first configuration and held
// until Close.
type RealConn struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// Open opens a session against the named GPIO chip ("gpiochip0" on a
// Raspberry Pi).
func Open(chipName string) (*RealConn, error) {
	if chipName == "" {
		chipName = "gpiochip0"
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	return &RealConn{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
	}, nil
}

// SetOutput configures pin as an output with bias disabled and drives it
// to initial. Any previous request for the pin is released first.
func (c *RealConn) SetOutput(pin int, initial Level) error {
	c.release(pin)
	line, err := c.chip.RequestLine(pin,
		gpiocdev.AsOutput(int(initial)),
		gpiocdev.WithBiasDisabled)
	if err != nil {
		return fmt.Errorf("request output pin %d: %w", pin, err)
	}
	c.lines[pin] = line
	return nil
}

// SetInput configures pin as an input with the given pull resistor.
func (c *RealConn) SetInput(pin int, pull Pull) error {
	c.release(pin)
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput}
	switch pull {
	case PullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case PullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	default:
		opts = append(opts, gpiocdev.WithBiasDisabled)
	}
	line, err := c.chip.RequestLine(pin, opts...)
	if err != nil {
		return fmt.Errorf("request input pin %d: %w", pin, err)
	}
	c.lines[pin] = line
	return nil
}

// Write drives a configured output pin.
func (c *RealConn) Write(pin int, level Level) error {
	line, ok := c.lines[pin]
	if !ok {
		return fmt.Errorf("write pin %d: not configured", pin)
	}
	if err := line.SetValue(int(level)); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// Read samples a configured input pin.
func (c *RealConn) Read(pin int) (Level, error) {
	line, ok := c.lines[pin]
	if !ok {
		return Low, fmt.Errorf("read pin %d: not configured", pin)
	}
	v, err := line.Value()
	if err != nil {
		return Low, fmt.Errorf("read pin %d: %w", pin, err)
	}
	if v != 0 {
		return High, nil
	}
	return Low, nil
}

// Close reconfigures all held lines back to inputs (matching Pi boot
// defaults, so external relay modules see a clean state) and releases
// the chip.
func (c *RealConn) Close() error {
	var errs []error
	for pin, line := range c.lines {
		if err := line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	c.lines = make(map[int]*gpiocdev.Line)
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		c.chip = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func (c *RealConn) release(pin int) {
	if line, ok := c.lines[pin]; ok {
		line.Close()
		delete(c.lines, pin)
	}
}
