package convert

import (
	"strings"
	"testing"

	"github.com/clbanning/mxj/v2"
)

func TestXMLConversionRoundTrips(t *testing.T) {
	processor := NewXMLProcessor(XMLConfig{})
	input := map[string]any{
		"temperature": 21.5,
		"active":      true,
		"name":        "sensor-1",
	}

	result := runProcessor(t, processor, input)

	content, isString := result.DataMap()["content"].(string)
	if !isString {
		t.Fatalf("content is %T, want string", result.DataMap()["content"])
	}

	parsed, err := mxj.NewMapXml([]byte(content), true)
	if err != nil {
		t.Fatalf("parsing produced XML: %v", err)
	}
	document, hasRoot := parsed["root"].(map[string]any)
	if !hasRoot {
		t.Fatalf("parsed document = %#v, want a root element", parsed)
	}

	if document["temperature"] != 21.5 {
		t.Errorf("temperature = %v, want 21.5", document["temperature"])
	}
	if document["active"] != true {
		t.Errorf("active = %v, want true", document["active"])
	}
	if document["name"] != "sensor-1" {
		t.Errorf("name = %v, want sensor-1", document["name"])
	}
}

func TestXMLArrayPayload(t *testing.T) {
	processor := NewXMLProcessor(XMLConfig{RootElement: "readings", ItemElement: "reading"})
	input := []any{
		map[string]any{"value": 1},
		map[string]any{"value": 2},
	}

	result := runProcessor(t, processor, input)
	content := result.DataMap()["content"].(string)

	if !strings.Contains(content, "<readings>") {
		t.Errorf("content missing custom root element:\n%s", content)
	}
	if strings.Count(content, "<reading>") != 2 {
		t.Errorf("content should contain two reading elements:\n%s", content)
	}
}

func TestXMLMetadata(t *testing.T) {
	processor := NewXMLProcessor(XMLConfig{})
	result := runProcessor(t, processor, map[string]any{"a": 1})

	if result.DataMap()["format"] != "xml" {
		t.Errorf("format = %v, want xml", result.DataMap()["format"])
	}
	if result.Metadata["status"] != "success" {
		t.Errorf("status = %v, want success", result.Metadata["status"])
	}
}
