package convert

import (
	"context"
	"fmt"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/flowmesh/flowmesh/engine"
)

// MarkdownProcessor converts HTML content to Markdown. It accepts
// FILE_CONVERTED events carrying html content, typically chained after an
// HTML converter node, and plain events whose data is an HTML string.
type MarkdownProcessor struct{}

var _ engine.Processor = (*MarkdownProcessor)(nil)

// NewMarkdownProcessor creates an HTML to Markdown converter.
func NewMarkdownProcessor() *MarkdownProcessor {
	return &MarkdownProcessor{}
}

// CanHandle accepts FILE_CONVERTED html events and string payloads.
func (processor *MarkdownProcessor) CanHandle(event *engine.Event) bool {
	if event.Type == engine.EventFileConverted {
		return event.DataMap()["format"] == "html"
	}
	if !structuredEvent(event) {
		return false
	}
	_, isString := event.Data.(string)
	return isString
}

// Process extracts the HTML source and converts it to Markdown.
func (processor *MarkdownProcessor) Process(_ context.Context, event *engine.Event, nodeCtx *engine.NodeContext) (*engine.Event, error) {
	source, isString := event.Data.(string)
	if !isString {
		source, isString = event.DataMap()["content"].(string)
	}
	if !isString {
		return nil, fmt.Errorf("markdown conversion: no HTML content in %s event", event.Type)
	}

	markdown, err := htmltomarkdown.ConvertString(source)
	if err != nil {
		return nil, fmt.Errorf("markdown conversion: %w", err)
	}

	return convertedEvent(event, "markdown", markdown), nil
}

// NewMarkdownNode creates a converter node that turns HTML events into
// Markdown.
func NewMarkdownNode(id string, opts ...engine.NodeOption) *engine.Node {
	return newConverterNode(id, "markdown_converter_node", NewMarkdownProcessor(), opts)
}
