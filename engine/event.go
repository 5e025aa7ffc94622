package engine

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of payload an event carries. Processors use
// it to decide whether they can handle an event, and specialized nodes (switch
// routing, MQTT publishing) dispatch on it.
type EventType string

const (
	// EventDataChange signals that upstream data changed and should be reprocessed.
	EventDataChange EventType = "data_change"

	// EventComputationResult carries the output of a processor.
	EventComputationResult EventType = "computation_result"

	// EventLLMRequest asks a language-model node to generate a completion.
	EventLLMRequest EventType = "llm_request"

	// EventLLMResponse carries a complete language-model response.
	EventLLMResponse EventType = "llm_response"

	// EventLLMToken carries a single streamed language-model token.
	EventLLMToken EventType = "llm_token"

	// EventError carries a failure produced inside a node pipeline.
	EventError EventType = "error"

	// EventAlert signals a condition that needs operator attention.
	EventAlert EventType = "alert"

	// EventNotification carries an informational message for downstream sinks.
	EventNotification EventType = "notification"

	// EventRoutingDecision carries the outcome of a switch-node rule match.
	// Its data names the single target node that should receive it.
	EventRoutingDecision EventType = "routing_decision"

	// EventMQTTMessage carries a message received from an MQTT broker.
	EventMQTTMessage EventType = "mqtt_message"

	// EventMQTTPublish asks an MQTT publisher node to publish its data.
	EventMQTTPublish EventType = "mqtt_publish"

	// EventMQTTConnected signals a successful broker connection.
	EventMQTTConnected EventType = "mqtt_connected"

	// EventMQTTDisconnected signals that a broker connection was lost.
	EventMQTTDisconnected EventType = "mqtt_disconnected"

	// EventFileConverted carries the output of a format converter.
	EventFileConverted EventType = "file_converted"

	// EventCustom is the catch-all type for user-defined payloads.
	EventCustom EventType = "custom"
)

// NodeState is the lifecycle state of a node's processing pipeline.
type NodeState string

const (
	// StateIdle means the node is ready to process the next event.
	StateIdle NodeState = "idle"

	// StateProcessing means the node is currently running its pipeline.
	StateProcessing NodeState = "processing"

	// StateError means the node's last pipeline run failed.
	StateError NodeState = "error"

	// StateDisabled means the node drops every event it receives.
	StateDisabled NodeState = "disabled"
)

// Event is the immutable message threaded through the graph. Nodes never
// mutate an event they received; every transform produces a new event whose
// SourceID is overwritten by the emitting node during fan-out.
type Event struct {
	// ID is a process-unique identifier assigned at construction.
	ID string `json:"id"`

	// Type classifies the payload (see the EventType constants).
	Type EventType `json:"type"`

	// SourceID is the ID of the node that emitted this event. It is stamped
	// by NotifyObservers and should not be set by processors.
	SourceID string `json:"source_id"`

	// TargetID is an optional addressing hint. The core engine does not
	// interpret it; it is preserved for graph authors.
	TargetID string `json:"target_id,omitempty"`

	// Timestamp is the wall-clock creation time.
	Timestamp time.Time `json:"timestamp"`

	// Data is the arbitrary payload.
	Data any `json:"data"`

	// Metadata carries string-keyed annotations that travel with the event.
	Metadata map[string]any `json:"metadata"`

	// Priority is preserved for graph authors; the engine does not use it
	// for ordering.
	Priority int `json:"priority"`
}

// NewEvent creates an event of the given type with a fresh ID, the current
// timestamp, and an empty metadata map.
func NewEvent(eventType EventType, data any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Metadata:  make(map[string]any),
	}
}

// NewEventWithMetadata creates an event carrying the given metadata. The map
// is copied so the caller can keep mutating its own copy.
func NewEventWithMetadata(eventType EventType, data any, metadata map[string]any) *Event {
	event := NewEvent(eventType, data)
	for key, value := range metadata {
		event.Metadata[key] = value
	}
	return event
}

// NewErrorEvent synthesizes the ERROR event a node emits when its pipeline
// fails. The payload preserves the original request data, and the original
// event's metadata is merged over a {"status": "error"} marker so upstream
// annotations survive.
func NewErrorEvent(message string, original *Event, nodeID string) *Event {
	metadata := map[string]any{"status": "error"}
	var originalData any
	if original != nil {
		originalData = original.Data
		for key, value := range original.Metadata {
			metadata[key] = value
		}
	}

	event := NewEvent(EventError, map[string]any{
		"error":            message,
		"original_request": originalData,
	})
	event.SourceID = nodeID
	event.Metadata = metadata
	return event
}

// Clone returns a shallow copy of the event with its own metadata map.
// The Data payload is shared; treat it as read-only.
func (event *Event) Clone() *Event {
	copied := *event
	copied.Metadata = make(map[string]any, len(event.Metadata))
	for key, value := range event.Metadata {
		copied.Metadata[key] = value
	}
	return &copied
}

// DataMap returns the event data as a string-keyed map, or nil when the
// payload is not a map. Convenience for processors that expect structured
// payloads.
func (event *Event) DataMap() map[string]any {
	dataMap, isMap := event.Data.(map[string]any)
	if !isMap {
		return nil
	}
	return dataMap
}
