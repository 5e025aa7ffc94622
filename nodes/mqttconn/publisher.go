package mqttconn

import (
	"context"
	"fmt"

	"github.com/flowmesh/flowmesh/engine"
	"github.com/flowmesh/flowmesh/middleware"
)

// brokerClient is the slice of ConnManager the publish processor needs.
type brokerClient interface {
	Publish(topic string, payload any, qos byte, retain bool) error
}

// Publisher is a lifecycle node that publishes incoming events to a broker.
// MQTT_PUBLISH events choose their own topic, QoS, and retain flag; every
// other event's data goes to the configured default topic.
type Publisher struct {
	*engine.Node
	manager *ConnManager
}

// NewPublisher creates a publisher node for the configured broker. The node
// connects when the graph starts it.
func NewPublisher(id string, config Config, opts ...engine.NodeOption) (*Publisher, error) {
	manager, err := NewConnManager(config)
	if err != nil {
		return nil, err
	}

	publisher := &Publisher{
		Node: engine.NewNode(id, append([]engine.NodeOption{
			engine.WithType("mqtt_publisher_node"),
			engine.WithProcessor(&publishProcessor{
				broker:   manager,
				settings: manager.config.PublishSettings,
			}),
			engine.WithMiddleware(middleware.NewLogging("mqtt")),
		}, opts...)...),
		manager: manager,
	}
	publisher.SetLifecycle(&managerLifecycle{manager: manager})

	return publisher, nil
}

// Manager exposes the connection manager.
func (publisher *Publisher) Manager() *ConnManager { return publisher.manager }

// Publish sends a payload directly, bypassing the event pipeline.
func (publisher *Publisher) Publish(topic string, payload any, qos int, retain bool) error {
	return publisher.manager.Publish(topic, payload, byte(normalizeQoSValue(qos)), retain)
}

// publishProcessor turns events into broker publishes.
type publishProcessor struct {
	broker   brokerClient
	settings PublishSettings
}

var _ engine.Processor = (*publishProcessor)(nil)

// CanHandle accepts everything except failures and the publisher's own
// connection notices.
func (processor *publishProcessor) CanHandle(event *engine.Event) bool {
	switch event.Type {
	case engine.EventError, engine.EventMQTTConnected, engine.EventMQTTDisconnected:
		return false
	default:
		return true
	}
}

// Process resolves the publish parameters and sends the payload. A
// successful publish produces a COMPUTATION_RESULT event describing it.
func (processor *publishProcessor) Process(_ context.Context, event *engine.Event, nodeCtx *engine.NodeContext) (*engine.Event, error) {
	topic, payload, qos, retain := processor.resolve(event)
	if topic == "" {
		return nil, fmt.Errorf("no topic for %s event and no default topic configured", event.Type)
	}

	if err := processor.broker.Publish(topic, payload, byte(qos), retain); err != nil {
		return nil, err
	}

	return engine.NewEventWithMetadata(engine.EventComputationResult, map[string]any{
		"status": "published",
		"topic":  topic,
		"qos":    qos,
		"retain": retain,
	}, map[string]any{
		"status":    "success",
		"operation": "mqtt_publish",
	}), nil
}

// resolve extracts topic, payload, QoS, and retain for one event.
// MQTT_PUBLISH events carry their own parameters with config fallbacks; any
// other event publishes its data to the default topic.
func (processor *publishProcessor) resolve(event *engine.Event) (string, any, int, bool) {
	topic := processor.settings.DefaultTopic
	qos := processor.settings.DefaultQoS
	retain := processor.settings.DefaultRetain

	if event.Type != engine.EventMQTTPublish {
		return topic, event.Data, qos, retain
	}

	data := event.DataMap()
	if explicit, isString := data["topic"].(string); isString && explicit != "" {
		topic = explicit
	}
	payload, hasPayload := data["payload"]
	if !hasPayload {
		payload = event.Data
	}
	if explicit, isSet := numericQoS(data["qos"]); isSet {
		qos = normalizeQoSValue(explicit)
	}
	if explicit, isBool := data["retain"].(bool); isBool {
		retain = explicit
	}
	return topic, payload, qos, retain
}

// numericQoS accepts the int and float64 encodings a JSON payload may carry.
func numericQoS(value any) (int, bool) {
	switch typed := value.(type) {
	case int:
		return typed, true
	case float64:
		return int(typed), true
	default:
		return 0, false
	}
}
