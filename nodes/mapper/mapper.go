package mapper

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/diegoholiveira/jsonlogic/v3"
	"github.com/jmespath/go-jmespath"
	"github.com/sirupsen/logrus"

	"github.com/flowmesh/flowmesh/engine"
)

var log = logrus.WithField("prefix", "mapper")

// Processor reshapes structured event payloads according to its Config.
// Source expressions are compiled once at construction.
type Processor struct {
	config   Config
	compiled map[string]*jmespath.JMESPath
}

var _ engine.Processor = (*Processor)(nil)

// NewProcessor validates the configuration and compiles every JMESPath
// expression it references.
func NewProcessor(config Config) (*Processor, error) {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	processor := &Processor{
		config:   config,
		compiled: make(map[string]*jmespath.JMESPath),
	}

	expressions := make([]string, 0, len(config.Mappings)+len(config.ArraySettings.ItemMappings)+1)
	for _, mapping := range config.Mappings {
		expressions = append(expressions, mapping.Source)
	}
	for _, mapping := range config.ArraySettings.ItemMappings {
		expressions = append(expressions, mapping.Source)
	}
	if config.ArraySettings.SourcePath != "" {
		expressions = append(expressions, config.ArraySettings.SourcePath)
	}

	for _, expression := range expressions {
		if _, done := processor.compiled[expression]; done {
			continue
		}
		compiled, err := jmespath.Compile(expression)
		if err != nil {
			return nil, fmt.Errorf("compiling path %q: %w", expression, err)
		}
		processor.compiled[expression] = compiled
	}
	return processor, nil
}

// CanHandle accepts structured data events.
func (processor *Processor) CanHandle(event *engine.Event) bool {
	switch event.Type {
	case engine.EventDataChange, engine.EventComputationResult, engine.EventMQTTMessage, engine.EventCustom:
		return true
	default:
		return false
	}
}

// Process maps the event payload into a new document. Mapping failures do not
// fail the node: they produce an ERROR event carrying the original data, so
// downstream error handlers see them as ordinary traffic.
func (processor *Processor) Process(_ context.Context, event *engine.Event, nodeCtx *engine.NodeContext) (*engine.Event, error) {
	var (
		result  any
		applied int
		err     error
	)
	switch processor.config.Mode {
	case ModeArray:
		result, applied, err = processor.mapArray(event.Data)
	default:
		result, applied, err = processor.mapObject(event.Data)
	}
	if err != nil {
		log.WithError(err).WithField("node", nodeCtx.NodeID).Error("mapping failed")
		failure := engine.NewEventWithMetadata(engine.EventError, map[string]any{
			"error":         err.Error(),
			"original_data": event.Data,
		}, map[string]any{"status": "error"})
		return failure, nil
	}

	metadata := map[string]any{
		"status":           "success",
		"mapper_mode":      processor.config.Mode,
		"mappings_applied": applied,
	}
	for key, value := range event.Metadata {
		metadata[key] = value
	}
	return engine.NewEventWithMetadata(engine.EventComputationResult, result, metadata), nil
}

// mapObject applies the object-mode mappings to one document.
func (processor *Processor) mapObject(source any) (map[string]any, int, error) {
	return processor.applyMappings(processor.config.Mappings, source)
}

// mapArray locates the configured array, filters it, and maps each item.
func (processor *Processor) mapArray(source any) ([]map[string]any, int, error) {
	located := source
	if path := processor.config.ArraySettings.SourcePath; path != "" {
		var err error
		located, err = processor.compiled[path].Search(source)
		if err != nil {
			return nil, 0, fmt.Errorf("locating array at %q: %w", path, err)
		}
	}

	items, isArray := located.([]any)
	if !isArray {
		return nil, 0, fmt.Errorf("array source resolved to %T, want array", located)
	}

	results := make([]map[string]any, 0, len(items))
	totalApplied := 0
	for index, item := range items {
		if filter := processor.config.ArraySettings.Filter; filter != nil {
			keep, err := jsonlogic.ApplyInterface(filter, item)
			if err != nil {
				return nil, 0, fmt.Errorf("filtering item %d: %w", index, err)
			}
			if !truthy(keep) {
				continue
			}
		}

		mapped, applied, err := processor.applyMappings(processor.config.ArraySettings.ItemMappings, item)
		if err != nil {
			return nil, 0, fmt.Errorf("mapping item %d: %w", index, err)
		}
		results = append(results, mapped)
		totalApplied += applied
	}
	return results, totalApplied, nil
}

func (processor *Processor) applyMappings(mappings []Mapping, source any) (map[string]any, int, error) {
	result := make(map[string]any)
	applied := 0

	for _, mapping := range mappings {
		value, err := processor.compiled[mapping.Source].Search(source)
		if err != nil {
			return nil, 0, fmt.Errorf("evaluating %q: %w", mapping.Source, err)
		}

		if value == nil {
			if mapping.Default != nil {
				value = mapping.Default
			} else if mapping.Required {
				switch processor.config.ErrorHandling.OnMissingRequired {
				case OnMissingSkip:
					continue
				case OnMissingNull:
					setPath(result, mapping.Target, nil)
					applied++
					continue
				default:
					return nil, 0, fmt.Errorf("required field %q is missing", mapping.Source)
				}
			} else {
				continue
			}
		}

		if mapping.Transform != "" {
			transformed, err := transformValue(mapping.Transform, value)
			if err != nil {
				switch processor.config.ErrorHandling.OnTransformError {
				case OnTransformSkip:
					continue
				case OnTransformOriginal:
					// keep the untransformed value
				default:
					return nil, 0, fmt.Errorf("transform %q on %q: %w", mapping.Transform, mapping.Source, err)
				}
			} else {
				value = transformed
			}
		}

		setPath(result, mapping.Target, value)
		applied++
	}
	return result, applied, nil
}

// setPath writes value at a dotted path, creating intermediate maps. A
// non-map intermediate is overwritten.
func setPath(document map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := document
	for _, part := range parts[:len(parts)-1] {
		next, isMap := current[part].(map[string]any)
		if !isMap {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// transformValue applies one named transform. Unknown names log a warning and
// return the value unchanged.
func transformValue(name string, value any) (any, error) {
	switch name {
	case "string":
		return fmt.Sprintf("%v", value), nil
	case "number":
		rendered := fmt.Sprintf("%v", value)
		if strings.ContainsAny(rendered, ".eE") {
			return strconv.ParseFloat(rendered, 64)
		}
		parsed, err := strconv.ParseInt(rendered, 10, 64)
		if err != nil {
			return nil, err
		}
		return int(parsed), nil
	case "integer":
		parsed, err := strconv.ParseFloat(fmt.Sprintf("%v", value), 64)
		if err != nil {
			return nil, err
		}
		return int(parsed), nil
	case "float":
		return strconv.ParseFloat(fmt.Sprintf("%v", value), 64)
	case "boolean":
		return truthy(value), nil
	case "lowercase":
		return strings.ToLower(fmt.Sprintf("%v", value)), nil
	case "uppercase":
		return strings.ToUpper(fmt.Sprintf("%v", value)), nil
	case "trim":
		return strings.TrimSpace(fmt.Sprintf("%v", value)), nil
	default:
		log.WithField("transform", name).Warn("unknown transform, leaving value unchanged")
		return value, nil
	}
}

// truthy mirrors JsonLogic truthiness for filters and the boolean transform.
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
