package convert

import (
	"github.com/flowmesh/flowmesh/engine"
	"github.com/flowmesh/flowmesh/middleware"
)

// structuredEvent reports whether an event carries data worth converting.
func structuredEvent(event *engine.Event) bool {
	switch event.Type {
	case engine.EventDataChange, engine.EventComputationResult, engine.EventMQTTMessage, engine.EventCustom:
		return true
	default:
		return false
	}
}

// convertedEvent builds the FILE_CONVERTED success event shared by all
// converters, preserving the original event's metadata.
func convertedEvent(original *engine.Event, format string, content any) *engine.Event {
	metadata := map[string]any{"status": "success", "format": format}
	for key, value := range original.Metadata {
		metadata[key] = value
	}
	return engine.NewEventWithMetadata(engine.EventFileConverted, map[string]any{
		"content": content,
		"format":  format,
	}, metadata)
}

// newConverterNode wires a converter processor into a node with logging
// middleware.
func newConverterNode(id, nodeType string, processor engine.Processor, opts []engine.NodeOption) *engine.Node {
	return engine.NewNode(id, append([]engine.NodeOption{
		engine.WithType(nodeType),
		engine.WithProcessor(processor),
		engine.WithMiddleware(middleware.NewLogging("convert")),
	}, opts...)...)
}
