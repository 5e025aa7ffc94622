package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowmesh/flowmesh/engine"
)

// ErrMissingRequiredField is returned when a validated event lacks one of its
// required data fields.
var ErrMissingRequiredField = errors.New("missing required field")

// RequireFields validates that events of the given type carry non-empty
// values for every listed data field. Events of other types pass through
// untouched, so the middleware can sit on nodes that also receive control
// events.
type RequireFields struct {
	// EventType selects which events are validated. Empty validates all.
	EventType engine.EventType

	// Fields lists the required keys in the event's data map.
	Fields []string
}

var _ engine.Middleware = (*RequireFields)(nil)

// NewRequireFields returns a validator for events of eventType.
func NewRequireFields(eventType engine.EventType, fields ...string) *RequireFields {
	return &RequireFields{EventType: eventType, Fields: fields}
}

// BeforeProcess rejects events missing any required field.
func (require *RequireFields) BeforeProcess(ctx context.Context, event *engine.Event, nodeID string) (*engine.Event, error) {
	if require.EventType != "" && event.Type != require.EventType {
		return event, nil
	}

	data := event.DataMap()
	for _, field := range require.Fields {
		value, present := data[field]
		if !present || value == nil || value == "" {
			return nil, fmt.Errorf("%w: %q", ErrMissingRequiredField, field)
		}
	}
	return event, nil
}

// AfterProcess passes the result through unchanged.
func (require *RequireFields) AfterProcess(ctx context.Context, original *engine.Event, result *engine.Event, nodeID string) (*engine.Event, error) {
	return result, nil
}
