package engine

import (
	"context"
	"fmt"

	"github.com/diegoholiveira/jsonlogic/v3"
	"github.com/sirupsen/logrus"
)

// Rule is a single routing rule evaluated by a switch node. Condition is a
// JsonLogic expression tree evaluated against the event's data; Then names
// the target node that receives the event when the condition holds.
type Rule struct {
	Name      string `json:"name"`
	Condition any    `json:"condition"`
	Then      string `json:"then"`
}

// SwitchConfig configures a switch node: an ordered rule list and an optional
// fallback target used when no rule matches.
type SwitchConfig struct {
	Rules         []Rule `json:"rules"`
	DefaultTarget string `json:"default_target,omitempty"`
}

// NewSwitchNode creates a node that routes events by evaluating JsonLogic
// rules against the event data. Rules are evaluated in order and the first
// truthy condition wins. The resulting ROUTING_DECISION event is delivered
// only to the observer named by the winning rule; every other event type the
// node emits is broadcast normally.
func NewSwitchNode(id string, config SwitchConfig, opts ...NodeOption) *Node {
	node := NewNode(id, append([]NodeOption{
		WithType("switch_node"),
		WithProcessor(NewSwitchProcessor(config)),
	}, opts...)...)
	node.fanOut = routingFanOut(node)
	return node
}

// routingFanOut returns the selective delivery strategy for switch nodes:
// ROUTING_DECISION events go only to the observer whose ID matches the
// decision's target_node, and events without a resolvable target are dropped.
func routingFanOut(node *Node) fanOutFunc {
	return func(ctx context.Context, event *Event) {
		if event.Type != EventRoutingDecision {
			node.broadcast(ctx, event)
			return
		}

		targetID, _ := event.DataMap()["target_node"].(string)
		if targetID == "" {
			log.WithField("node", node.id).Warn("routing decision without target, dropping")
			return
		}

		for _, observer := range node.observers {
			if observer.ID() != targetID {
				continue
			}
			log.WithFields(logrus.Fields{"node": node.id, "target": targetID}).Debug("routing event")
			if err := observer.Update(ctx, event); err != nil {
				log.WithError(err).WithFields(logrus.Fields{
					"node":     node.id,
					"observer": targetID,
				}).Error("observer update failed")
			}
			return
		}

		log.WithFields(logrus.Fields{"node": node.id, "target": targetID}).
			Warn("routing target is not an observer")
	}
}

// SwitchProcessor evaluates an ordered JsonLogic rule list against event data
// and produces ROUTING_DECISION events.
type SwitchProcessor struct {
	rules         []Rule
	defaultTarget string
}

var _ Processor = (*SwitchProcessor)(nil)

// NewSwitchProcessor creates a processor for the given rule configuration.
func NewSwitchProcessor(config SwitchConfig) *SwitchProcessor {
	return &SwitchProcessor{
		rules:         config.Rules,
		defaultTarget: config.DefaultTarget,
	}
}

// CanHandle accepts every event type.
func (processor *SwitchProcessor) CanHandle(*Event) bool { return true }

// Process evaluates the rules in registration order against event.Data. The
// first rule whose condition is truthy produces a routing decision naming its
// target. When nothing matches, the configured default target is used if
// present; otherwise the decision carries a nil target and "no_match" status.
func (processor *SwitchProcessor) Process(_ context.Context, event *Event, nodeCtx *NodeContext) (*Event, error) {
	for _, rule := range processor.rules {
		matched, err := evaluateCondition(rule.Condition, event.Data)
		if err != nil {
			return nil, fmt.Errorf("evaluating rule %q: %w", rule.Name, err)
		}
		if matched {
			log.WithFields(logrus.Fields{"rule": rule.Name, "target": rule.Then}).Info("rule matched")
			return routingEvent(event, nodeCtx.NodeID, map[string]any{
				"original_data": event.Data,
				"target_node":   rule.Then,
				"rule_name":     rule.Name,
				"condition":     rule.Condition,
				"routing_type":  "jsonlogic_switch",
			}, map[string]any{"status": "routed", "target": rule.Then}), nil
		}
	}

	if processor.defaultTarget != "" {
		log.WithField("target", processor.defaultTarget).Info("no rules matched, using default target")
		return routingEvent(event, nodeCtx.NodeID, map[string]any{
			"original_data": event.Data,
			"target_node":   processor.defaultTarget,
			"routing_type":  "jsonlogic_switch",
		}, map[string]any{"status": "routed", "target": processor.defaultTarget}), nil
	}

	log.WithField("node", nodeCtx.NodeID).Warn("no rules matched and no default target")
	return routingEvent(event, nodeCtx.NodeID, map[string]any{
		"original_data": event.Data,
		"target_node":   nil,
		"routing_type":  "jsonlogic_switch",
		"status":        "no_match",
	}, map[string]any{"status": "no_match"}), nil
}

func routingEvent(original *Event, nodeID string, data, metadata map[string]any) *Event {
	for key, value := range original.Metadata {
		metadata[key] = value
	}
	routed := NewEventWithMetadata(EventRoutingDecision, data, metadata)
	routed.SourceID = nodeID
	return routed
}

// evaluateCondition applies a JsonLogic expression to the given data scope
// and coerces the result to a boolean.
func evaluateCondition(condition any, data any) (bool, error) {
	if condition == nil {
		return false, nil
	}

	result, err := jsonlogic.ApplyInterface(condition, data)
	if err != nil {
		return false, err
	}
	return truthy(result), nil
}

// truthy mirrors JsonLogic's notion of truthiness: nil, false, zero numbers,
// empty strings, and empty collections are false.
func truthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		return typed != ""
	case float64:
		return typed != 0
	case int:
		return typed != 0
	case []any:
		return len(typed) > 0
	case map[string]any:
		return len(typed) > 0
	default:
		return true
	}
}
