package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	State         string       `json:"state"`
	Opened        bool         `json:"opened"`
	Closed        bool         `json:"closed"`
	Locked        bool         `json:"locked"`
	Aux           bool         `json:"aux"`
	Lights        LightsJSON   `json:"lights"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counters      CountersJSON `json:"counters"`
	Config        ConfigJSON   `json:"config"`
}

// LightsJSON is the JSON representation of the status lights.
type LightsJSON struct {
	Opened       string `json:"opened"`
	Closed       string `json:"closed"`
	Moving       string `json:"moving"`
	Locked       string `json:"locked"`
	Aux          string `json:"aux"`
	Aggregate    string `json:"aggregate"`
	Inconsistent bool   `json:"inconsistent,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountersJSON is the JSON representation of operation counters.
type CountersJSON struct {
	Moves    int `json:"moves"`
	Opened   int `json:"opened"`
	Closed   int `json:"closed"`
	Timeouts int `json:"timeouts"`
	Aborts   int `json:"aborts"`
	Faults   int `json:"faults"`
	Resets   int `json:"resets"`
}

// ConfigJSON is the JSON representation of driver config.
type ConfigJSON struct {
	IdlePollMs   int64  `json:"idle_poll_ms"`
	ActivePollMs int64  `json:"active_poll_ms"`
	TimeoutS     int64  `json:"timeout_s"`
	Broker       string `json:"broker"`
	HTTPPort     string `json:"http_port"`
	Simulated    bool   `json:"simulated,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		State:  snap.State.String(),
		Opened: snap.Opened,
		Closed: snap.Closed,
		Locked: snap.Locked,
		Aux:    snap.Aux,
		Lights: LightsJSON{
			Opened:       snap.Lights.Opened.String(),
			Closed:       snap.Lights.Closed.String(),
			Moving:       snap.Lights.Moving.String(),
			Locked:       snap.Lights.Locked.String(),
			Aux:          snap.Lights.Aux.String(),
			Aggregate:    snap.Lights.Aggregate.String(),
			Inconsistent: snap.Lights.Inconsistent,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counters: CountersJSON{
			Moves:    snap.Counters.Moves,
			Opened:   snap.Counters.Opened,
			Closed:   snap.Counters.Closed,
			Timeouts: snap.Counters.Timeouts,
			Aborts:   snap.Counters.Aborts,
			Faults:   snap.Counters.Faults,
			Resets:   snap.Counters.Resets,
		},
		Config: ConfigJSON{
			IdlePollMs:   snap.Config.IdlePollMs,
			ActivePollMs: snap.Config.ActivePollMs,
			TimeoutS:     snap.Config.TimeoutS,
			Broker:       snap.Config.Broker,
			HTTPPort:     snap.Config.HTTPPort,
			Simulated:    snap.Config.Simulated,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
