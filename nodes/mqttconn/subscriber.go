package mqttconn

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/flowmesh/flowmesh/engine"
	"github.com/flowmesh/flowmesh/internal/utils"
	"github.com/flowmesh/flowmesh/middleware"
)

// Subscriber is a lifecycle node that turns broker messages into
// MQTT_MESSAGE events for its observers. Connection state changes surface as
// MQTT_CONNECTED and MQTT_DISCONNECTED events.
type Subscriber struct {
	*engine.Node
	manager *ConnManager
}

// NewSubscriber creates a subscriber node for the configured broker and
// topics. The node does nothing until the graph starts it.
func NewSubscriber(id string, config Config, opts ...engine.NodeOption) (*Subscriber, error) {
	manager, err := NewConnManager(config)
	if err != nil {
		return nil, err
	}

	subscriber := &Subscriber{
		Node: engine.NewNode(id, append([]engine.NodeOption{
			engine.WithType("mqtt_subscriber_node"),
			engine.WithMiddleware(middleware.NewLogging("mqtt")),
		}, opts...)...),
		manager: manager,
	}

	manager.OnMessage(subscriber.handleMessage)
	manager.OnConnect(func(broker string) {
		subscriber.NotifyObservers(context.Background(),
			engine.NewEvent(engine.EventMQTTConnected, map[string]any{"broker": broker}))
	})
	manager.OnDisconnect(func(broker string, err error) {
		data := map[string]any{"broker": broker}
		if err != nil {
			data["error"] = err.Error()
		}
		subscriber.NotifyObservers(context.Background(),
			engine.NewEvent(engine.EventMQTTDisconnected, data))
	})
	subscriber.SetLifecycle(&managerLifecycle{manager: manager})

	return subscriber, nil
}

// Manager exposes the connection manager for runtime subscription changes.
func (subscriber *Subscriber) Manager() *ConnManager { return subscriber.manager }

// handleMessage converts one broker message into an MQTT_MESSAGE event and
// fans it out.
func (subscriber *Subscriber) handleMessage(topic string, payload []byte, qos byte, retained bool) {
	event := engine.NewEventWithMetadata(engine.EventMQTTMessage, map[string]any{
		"topic":       topic,
		"payload":     decodePayload(payload),
		"raw_payload": payload,
	}, map[string]any{
		"qos":    int(qos),
		"retain": retained,
		"broker": subscriber.manager.Broker(),
	})
	subscriber.NotifyObservers(context.Background(), event)
}

// decodePayload interprets a message body: valid UTF-8 is parsed as JSON
// when possible (repairing slightly malformed documents), otherwise kept as
// text; invalid UTF-8 stays raw bytes.
func decodePayload(payload []byte) any {
	if !utf8.Valid(payload) {
		return payload
	}

	text := string(payload)
	if decoded, err := utils.DecodeLenientJSON(text); err == nil {
		return decoded
	}
	return text
}

// managerLifecycle adapts a ConnManager to the engine lifecycle contract.
type managerLifecycle struct {
	manager *ConnManager

	mu      sync.Mutex
	running bool
}

var _ engine.Lifecycle = (*managerLifecycle)(nil)

func (lifecycle *managerLifecycle) Start(ctx context.Context) error {
	lifecycle.mu.Lock()
	if lifecycle.running {
		lifecycle.mu.Unlock()
		return nil
	}
	lifecycle.mu.Unlock()

	if err := lifecycle.manager.Connect(ctx); err != nil {
		return err
	}

	lifecycle.mu.Lock()
	lifecycle.running = true
	lifecycle.mu.Unlock()
	return nil
}

func (lifecycle *managerLifecycle) Stop(context.Context) error {
	lifecycle.mu.Lock()
	lifecycle.running = false
	lifecycle.mu.Unlock()

	lifecycle.manager.Disconnect()
	return nil
}

func (lifecycle *managerLifecycle) IsRunning() bool {
	lifecycle.mu.Lock()
	defer lifecycle.mu.Unlock()
	return lifecycle.running
}
