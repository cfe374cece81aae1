package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/roof-driver/internal/roof"
)

// bufferCapacity bounds how many messages are held while the broker is
// unreachable. A night of events fits comfortably.
const bufferCapacity = 256

// RealPublisher publishes to an actual MQTT broker and subscribes to
// the command topic. Messages published while the broker is down are
// buffered and replayed on reconnect, oldest first.
type RealPublisher struct {
	client paho.Client

	mu     sync.Mutex
	buffer *ringBuffer

	commands chan roof.Command
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(broker string) (*RealPublisher, error) {
	p := &RealPublisher{
		buffer:   newRingBuffer(bufferCapacity),
		commands: make(chan roof.Command, 8),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("roof-driver").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// onConnect runs on every (re)connect: re-subscribe to the command
// topic and replay anything buffered while disconnected.
func (p *RealPublisher) onConnect(client paho.Client) {
	token := client.Subscribe(TopicCommand, 1, p.onCommand)
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("mqtt: subscribe %s: timeout", TopicCommand)
	} else if err := token.Error(); err != nil {
		log.Printf("mqtt: subscribe %s: %v", TopicCommand, err)
	}

	p.mu.Lock()
	queued := p.buffer.drainAll()
	p.mu.Unlock()
	if len(queued) == 0 {
		return
	}
	log.Printf("mqtt: reconnected, replaying %d buffered messages", len(queued))
	for _, msg := range queued {
		t := client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if !t.WaitTimeout(5 * time.Second) {
			log.Printf("mqtt: replay to %s: timeout", msg.topic)
		} else if err := t.Error(); err != nil {
			log.Printf("mqtt: replay to %s: %v", msg.topic, err)
		}
	}
}

func (p *RealPublisher) onCommand(_ paho.Client, msg paho.Message) {
	cmd, err := roof.ParseCommand(string(msg.Payload()))
	if err != nil {
		log.Printf("mqtt: %v", err)
		return
	}
	select {
	case p.commands <- cmd:
	default:
		// Command channel full; the run loop is wedged or flooded.
		log.Printf("mqtt: dropping command %s, queue full", cmd)
	}
}

// Commands returns the channel parsed roof commands arrive on.
func (p *RealPublisher) Commands() <-chan roof.Command {
	return p.commands
}

// publish sends a message, buffering it instead when disconnected.
func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnected() {
		p.mu.Lock()
		p.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		n := p.buffer.len()
		p.mu.Unlock()
		log.Printf("mqtt: broker unreachable, buffered message for %s (%d queued)", topic, n)
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Publish sends a roof event to the MQTT broker.
func (p *RealPublisher) Publish(event roof.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 1 (at-least-once): a missed OPENED or CLOSED matters
	return p.publish(TopicEvents, 1, false, payload)
}

// PublishStatus sends the retained full status snapshot.
func (p *RealPublisher) PublishStatus(payload []byte) error {
	// Retained so late subscribers see the current roof state immediately
	return p.publish(TopicStatus, 0, true, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is active.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
