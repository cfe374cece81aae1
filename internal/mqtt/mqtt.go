// Package mqtt provides MQTT publishing and command intake with
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/roof-driver/internal/roof"
)

// TopicEvents is the MQTT topic for roof state-change events.
const TopicEvents = "observatory/roof/events"

// TopicStatus is the MQTT topic for the retained full status snapshot.
const TopicStatus = "observatory/roof/status"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "observatory/roof/system"

// TopicCommand is the MQTT topic the driver subscribes to for commands.
const TopicCommand = "observatory/roof/command"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a roof event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event roof.Event) error

	// PublishStatus sends a pre-formatted retained status snapshot.
	PublishStatus(payload []byte) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandSource delivers externally requested roof commands.
type CommandSource interface {
	// Commands returns the channel parsed commands arrive on. Malformed
	// payloads are logged and dropped, never delivered.
	Commands() <-chan roof.Command
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "RESET"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Roof RoofPayload `json:"roof"`
}

// RoofPayload contains the roof event details.
type RoofPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Detail    string `json:"detail,omitempty"`
}

// FormatPayload creates the JSON payload for a roof event.
func FormatPayload(event roof.Event) ([]byte, error) {
	payload := Payload{
		Roof: RoofPayload{
			Timestamp: event.Time.UTC().Format(time.RFC3339),
			Event:     string(event.Kind),
			Detail:    event.Detail,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full
// status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
