package convert

import (
	"strings"
	"testing"
)

func TestHTMLConversion(t *testing.T) {
	processor := NewHTMLProcessor(HTMLConfig{Title: "Sensor Report"})
	input := map[string]any{
		"name":   "s<1>",
		"value":  21.5,
		"active": true,
		"nested": map[string]any{"unit": "C"},
		"none":   nil,
	}

	result := runProcessor(t, processor, input)
	content := result.DataMap()["content"].(string)

	checks := []string{
		"<title>Sensor Report</title>",
		"<details open>",
		`<span class="json-string">s&lt;1&gt;</span>`,
		`<span class="json-number">21.5</span>`,
		`<span class="json-boolean">true</span>`,
		`<span class="json-null">null</span>`,
		`<span class="json-key">unit</span>`,
	}
	for _, check := range checks {
		if !strings.Contains(content, check) {
			t.Errorf("document missing %q:\n%s", check, content)
		}
	}
}

func TestHTMLCollapsed(t *testing.T) {
	processor := NewHTMLProcessor(HTMLConfig{Collapsed: true})
	result := runProcessor(t, processor, map[string]any{"a": map[string]any{"b": 1}})
	content := result.DataMap()["content"].(string)

	if strings.Contains(content, "<details open>") {
		t.Error("collapsed document should not contain open details")
	}
	if !strings.Contains(content, "<details>") {
		t.Error("collapsed document should still contain details elements")
	}
}

func TestHTMLArrayRendersIndexes(t *testing.T) {
	processor := NewHTMLProcessor(HTMLConfig{})
	result := runProcessor(t, processor, map[string]any{"items": []any{"x", "y"}})
	content := result.DataMap()["content"].(string)

	if !strings.Contains(content, "[2]") {
		t.Errorf("array summary missing length marker:\n%s", content)
	}
}
