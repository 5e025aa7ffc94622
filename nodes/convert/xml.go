package convert

import (
	"context"
	"fmt"

	"github.com/clbanning/mxj/v2"

	"github.com/flowmesh/flowmesh/engine"
)

// XMLConfig configures the JSON to XML conversion.
type XMLConfig struct {
	// RootElement wraps the document, default "root".
	RootElement string `json:"root_element,omitempty"`

	// ItemElement wraps each element of an array payload, default "item".
	ItemElement string `json:"item_element,omitempty"`

	// Indent is the per-level indentation, default two spaces.
	Indent string `json:"indent,omitempty"`
}

func (config *XMLConfig) applyDefaults() {
	if config.RootElement == "" {
		config.RootElement = "root"
	}
	if config.ItemElement == "" {
		config.ItemElement = "item"
	}
	if config.Indent == "" {
		config.Indent = "  "
	}
}

// XMLProcessor renders structured payloads as indented XML documents.
type XMLProcessor struct {
	config XMLConfig
}

var _ engine.Processor = (*XMLProcessor)(nil)

// NewXMLProcessor creates an XML converter.
func NewXMLProcessor(config XMLConfig) *XMLProcessor {
	config.applyDefaults()
	return &XMLProcessor{config: config}
}

// CanHandle accepts structured data events.
func (processor *XMLProcessor) CanHandle(event *engine.Event) bool {
	return structuredEvent(event)
}

// Process renders the event data as XML under the configured root element.
// Array payloads are wrapped so each element becomes an ItemElement child.
func (processor *XMLProcessor) Process(_ context.Context, event *engine.Event, nodeCtx *engine.NodeContext) (*engine.Event, error) {
	payload := event.Data
	if items, isArray := payload.([]any); isArray {
		payload = map[string]any{processor.config.ItemElement: items}
	}

	rendered, err := mxj.AnyXmlIndent(payload, "", processor.config.Indent, processor.config.RootElement)
	if err != nil {
		return nil, fmt.Errorf("xml conversion: %w", err)
	}

	return convertedEvent(event, "xml", string(rendered)), nil
}

// NewXMLNode creates a converter node that renders structured events as XML.
func NewXMLNode(id string, config XMLConfig, opts ...engine.NodeOption) *engine.Node {
	return newConverterNode(id, "xml_converter_node", NewXMLProcessor(config), opts)
}
