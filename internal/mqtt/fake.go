package mqtt

import (
	"github.com/sweeney/roof-driver/internal/roof"
)

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	// Events contains all roof events that were published.
	Events []roof.Event

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// StatusPayloads contains the retained status snapshots.
	StatusPayloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// CommandQueue feeds the Commands channel.
	CommandQueue chan roof.Command

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{
		CommandQueue: make(chan roof.Command, 8),
	}
}

// Publish records the roof event.
func (f *FakePublisher) Publish(event roof.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.Events = append(f.Events, event)

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// PublishStatus records the status snapshot.
func (f *FakePublisher) PublishStatus(payload []byte) error {
	f.StatusPayloads = append(f.StatusPayloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Commands returns the test-fed command channel.
func (f *FakePublisher) Commands() <-chan roof.Command {
	return f.CommandQueue
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.Events = nil
	f.Payloads = nil
	f.StatusPayloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
