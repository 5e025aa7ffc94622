package convert

import (
	"context"
	"strings"
	"testing"

	"github.com/flowmesh/flowmesh/engine"
)

func TestMarkdownFromConvertedHTML(t *testing.T) {
	processor := NewMarkdownProcessor()

	source := engine.NewEvent(engine.EventFileConverted, map[string]any{
		"content": "<h1>Report</h1><p>Hello <strong>world</strong></p>",
		"format":  "html",
	})
	if !processor.CanHandle(source) {
		t.Fatal("CanHandle() should accept file_converted html events")
	}

	result, err := processor.Process(context.Background(), source, &engine.NodeContext{})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	markdown := result.DataMap()["content"].(string)
	if !strings.Contains(markdown, "# Report") {
		t.Errorf("markdown missing heading: %q", markdown)
	}
	if !strings.Contains(markdown, "**world**") {
		t.Errorf("markdown missing bold text: %q", markdown)
	}
	if result.DataMap()["format"] != "markdown" {
		t.Errorf("format = %v, want markdown", result.DataMap()["format"])
	}
}

func TestMarkdownCanHandle(t *testing.T) {
	processor := NewMarkdownProcessor()

	csvEvent := engine.NewEvent(engine.EventFileConverted, map[string]any{"content": "a,b", "format": "csv"})
	if processor.CanHandle(csvEvent) {
		t.Error("CanHandle() should reject non-html converted events")
	}

	stringEvent := engine.NewEvent(engine.EventDataChange, "<p>raw</p>")
	if !processor.CanHandle(stringEvent) {
		t.Error("CanHandle() should accept string payloads")
	}

	mapEvent := engine.NewEvent(engine.EventDataChange, map[string]any{"a": 1})
	if processor.CanHandle(mapEvent) {
		t.Error("CanHandle() should reject structured non-string payloads")
	}
}
