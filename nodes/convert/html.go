package convert

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/flowmesh/flowmesh/engine"
)

// HTMLConfig configures the JSON to HTML conversion.
type HTMLConfig struct {
	// Title is the document title, default "Data View".
	Title string `json:"title,omitempty"`

	// Collapsed renders the tree folded instead of expanded.
	Collapsed bool `json:"collapsed,omitempty"`
}

func (config *HTMLConfig) applyDefaults() {
	if config.Title == "" {
		config.Title = "Data View"
	}
}

const htmlStyle = `body { font-family: monospace; margin: 1rem; }
details { margin-left: 1rem; }
summary { cursor: pointer; font-weight: bold; }
.json-key { color: #882288; }
.json-string { color: #228822; }
.json-number { color: #2222cc; }
.json-boolean { color: #cc6600; }
.json-null { color: #888888; font-style: italic; }`

// HTMLProcessor renders structured payloads as a standalone HTML document
// with a collapsible tree view.
type HTMLProcessor struct {
	config HTMLConfig
}

var _ engine.Processor = (*HTMLProcessor)(nil)

// NewHTMLProcessor creates an HTML converter.
func NewHTMLProcessor(config HTMLConfig) *HTMLProcessor {
	config.applyDefaults()
	return &HTMLProcessor{config: config}
}

// CanHandle accepts structured data events.
func (processor *HTMLProcessor) CanHandle(event *engine.Event) bool {
	return structuredEvent(event)
}

// Process renders the event data as an HTML document.
func (processor *HTMLProcessor) Process(_ context.Context, event *engine.Event, nodeCtx *engine.NodeContext) (*engine.Event, error) {
	var body strings.Builder
	processor.renderValue(&body, processor.config.Title, event.Data)

	document := fmt.Sprintf(
		"<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n<style>\n%s\n</style>\n</head>\n<body>\n%s</body>\n</html>\n",
		html.EscapeString(processor.config.Title), htmlStyle, body.String())

	return convertedEvent(event, "html", document), nil
}

// renderValue writes one tree node: containers become <details> blocks,
// scalars become typed <span> leaves.
func (processor *HTMLProcessor) renderValue(builder *strings.Builder, label string, value any) {
	openAttr := " open"
	if processor.config.Collapsed {
		openAttr = ""
	}

	switch typed := value.(type) {
	case map[string]any:
		fmt.Fprintf(builder, "<details%s><summary><span class=\"json-key\">%s</span></summary>\n",
			openAttr, html.EscapeString(label))
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			processor.renderValue(builder, key, typed[key])
		}
		builder.WriteString("</details>\n")
	case []any:
		fmt.Fprintf(builder, "<details%s><summary><span class=\"json-key\">%s</span> [%d]</summary>\n",
			openAttr, html.EscapeString(label), len(typed))
		for index, item := range typed {
			processor.renderValue(builder, fmt.Sprintf("%d", index), item)
		}
		builder.WriteString("</details>\n")
	default:
		fmt.Fprintf(builder, "<div><span class=\"json-key\">%s</span>: %s</div>\n",
			html.EscapeString(label), renderLeaf(value))
	}
}

func renderLeaf(value any) string {
	switch typed := value.(type) {
	case nil:
		return `<span class="json-null">null</span>`
	case bool:
		return fmt.Sprintf(`<span class="json-boolean">%t</span>`, typed)
	case string:
		return fmt.Sprintf(`<span class="json-string">%s</span>`, html.EscapeString(typed))
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf(`<span class="json-number">%v</span>`, typed)
	default:
		return fmt.Sprintf(`<span class="json-string">%s</span>`, html.EscapeString(fmt.Sprintf("%v", typed)))
	}
}

// NewHTMLNode creates a converter node that renders structured events as a
// collapsible HTML tree document.
func NewHTMLNode(id string, config HTMLConfig, opts ...engine.NodeOption) *engine.Node {
	return newConverterNode(id, "html_converter_node", NewHTMLProcessor(config), opts)
}
