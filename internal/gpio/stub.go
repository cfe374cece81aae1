//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealConn is not available on non-Linux platforms.
type RealConn struct{}

// Open returns an error on non-Linux platforms.
func Open(chipName string) (*RealConn, error) {
	return nil, errUnsupported
}

func (c *RealConn) SetOutput(pin int, initial Level) error { return errUnsupported }

func (c *RealConn) SetInput(pin int, pull Pull) error { return errUnsupported }

func (c *RealConn) Write(pin int, level Level) error { return errUnsupported }

func (c *RealConn) Read(pin int) (Level, error) { return Low, errUnsupported }

func (c *RealConn) Close() error { return nil }
