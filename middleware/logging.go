package middleware

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/flowmesh/flowmesh/engine"
	"github.com/flowmesh/flowmesh/internal/utils"
)

var log = logrus.WithField("prefix", "middleware")

// defaultPayloadLimit bounds logged payloads so large documents do not flood
// the output.
const defaultPayloadLimit = 200

// Logging logs every event entering and leaving a node's processor, with the
// payload truncated to PayloadLimit runes. The zero value is usable.
type Logging struct {
	// Component tags the log lines, typically the node family ("http",
	// "mqtt"). Empty means no component field.
	Component string

	// PayloadLimit caps the logged payload length in runes. Zero or negative
	// selects the default of 200.
	PayloadLimit int
}

var _ engine.Middleware = (*Logging)(nil)

// NewLogging returns a Logging middleware tagged with component.
func NewLogging(component string) *Logging {
	return &Logging{Component: component}
}

func (logging *Logging) limit() int {
	if logging.PayloadLimit > 0 {
		return logging.PayloadLimit
	}
	return defaultPayloadLimit
}

func (logging *Logging) entry(nodeID string) *logrus.Entry {
	entry := log.WithField("node", nodeID)
	if logging.Component != "" {
		entry = entry.WithField("component", logging.Component)
	}
	return entry
}

// BeforeProcess logs the incoming event and passes it through unchanged.
func (logging *Logging) BeforeProcess(ctx context.Context, event *engine.Event, nodeID string) (*engine.Event, error) {
	logging.entry(nodeID).WithFields(logrus.Fields{
		"event":   event.Type,
		"source":  event.SourceID,
		"payload": utils.Stringify(event.Data, logging.limit()),
	}).Debug("Event received")
	return event, nil
}

// AfterProcess logs the processor outcome and passes the result through
// unchanged. A nil result is logged as suppressed fan-out.
func (logging *Logging) AfterProcess(ctx context.Context, original *engine.Event, result *engine.Event, nodeID string) (*engine.Event, error) {
	entry := logging.entry(nodeID).WithField("event", original.Type)
	if result == nil {
		entry.Debug("Event processed, no result")
		return nil, nil
	}

	entry.WithFields(logrus.Fields{
		"result":  result.Type,
		"payload": utils.Stringify(result.Data, logging.limit()),
	}).Debug("Event processed")
	return result, nil
}
