package mqttconn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flowmesh/flowmesh/engine"
)

// ErrInvalidTopic is returned by TopicValidation for publish topics that are
// empty, contain wildcards, or fall outside the allowed filters.
var ErrInvalidTopic = errors.New("invalid topic")

// TopicMatches reports whether topic matches an MQTT topic filter.
// "+" matches exactly one level, "#" matches the remainder and must be the
// final level.
func TopicMatches(filter, topic string) bool {
	filterLevels := strings.Split(filter, "/")
	topicLevels := strings.Split(topic, "/")

	for index, level := range filterLevels {
		if level == "#" {
			return index == len(filterLevels)-1
		}
		if index >= len(topicLevels) {
			return false
		}
		if level != "+" && level != topicLevels[index] {
			return false
		}
	}
	return len(filterLevels) == len(topicLevels)
}

// TopicValidation rejects MQTT_PUBLISH events whose topic is unusable before
// they reach the publish processor. Other event types pass through, since
// they publish to the configured default topic.
type TopicValidation struct {
	// Allowed restricts publishes to topics matching at least one filter.
	// Empty allows every concrete topic.
	Allowed []string
}

var _ engine.Middleware = (*TopicValidation)(nil)

// NewTopicValidation creates a validator restricted to the given filters.
func NewTopicValidation(allowed ...string) *TopicValidation {
	return &TopicValidation{Allowed: allowed}
}

// BeforeProcess validates the topic of MQTT_PUBLISH events.
func (validation *TopicValidation) BeforeProcess(ctx context.Context, event *engine.Event, nodeID string) (*engine.Event, error) {
	if event.Type != engine.EventMQTTPublish {
		return event, nil
	}

	topic, _ := event.DataMap()["topic"].(string)
	if topic == "" {
		return event, nil
	}
	if strings.ContainsAny(topic, "+#") {
		return nil, fmt.Errorf("%w: %q contains wildcards", ErrInvalidTopic, topic)
	}

	if len(validation.Allowed) == 0 {
		return event, nil
	}
	for _, filter := range validation.Allowed {
		if TopicMatches(filter, topic) {
			return event, nil
		}
	}
	return nil, fmt.Errorf("%w: %q matches no allowed filter", ErrInvalidTopic, topic)
}

// AfterProcess passes the result through unchanged.
func (validation *TopicValidation) AfterProcess(ctx context.Context, original *engine.Event, result *engine.Event, nodeID string) (*engine.Event, error) {
	return result, nil
}
