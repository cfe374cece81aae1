package roof

import (
	"fmt"
	"strings"
	"time"
)

// Command is an externally requested roof operation, typically arriving
// over MQTT.
type Command string

const (
	CmdOpen    Command = "OPEN"
	CmdClose   Command = "CLOSE"
	CmdAbort   Command = "ABORT"
	CmdLockOn  Command = "LOCK_ON"
	CmdLockOff Command = "LOCK_OFF"
	CmdAuxOn   Command = "AUX_ON"
	CmdAuxOff  Command = "AUX_OFF"
)

// ParseCommand parses a command payload, case-insensitively and
// tolerant of surrounding whitespace.
func ParseCommand(payload string) (Command, error) {
	c := Command(strings.ToUpper(strings.TrimSpace(payload)))
	switch c {
	case CmdOpen, CmdClose, CmdAbort, CmdLockOn, CmdLockOff, CmdAuxOn, CmdAuxOff:
		return c, nil
	}
	return "", fmt.Errorf("unknown roof command %q", payload)
}

// HandleCommand dispatches a parsed command to the matching controller
// operation.
func (c *Controller) HandleCommand(cmd Command, now time.Time) error {
	switch cmd {
	case CmdOpen:
		return c.RequestMove(DirectionOpen, now)
	case CmdClose:
		return c.RequestMove(DirectionClose, now)
	case CmdAbort:
		return c.Abort(now)
	case CmdLockOn:
		return c.SetLock(true, now)
	case CmdLockOff:
		return c.SetLock(false, now)
	case CmdAuxOn:
		return c.SetAux(true, now)
	case CmdAuxOff:
		return c.SetAux(false, now)
	}
	return fmt.Errorf("unknown roof command %q", cmd)
}
