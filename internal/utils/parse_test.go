package utils

import (
	"reflect"
	"testing"
)

func TestDecodeLenientJSONStrict(t *testing.T) {
	value, err := DecodeLenientJSON(`{"temperature": 21.5, "unit": "C"}`)
	if err != nil {
		t.Fatalf("DecodeLenientJSON() error = %v", err)
	}

	expected := map[string]any{"temperature": 21.5, "unit": "C"}
	if !reflect.DeepEqual(value, expected) {
		t.Errorf("DecodeLenientJSON() = %#v, want %#v", value, expected)
	}
}

func TestDecodeLenientJSONRepairs(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "trailing comma", content: `{"a": 1,}`},
		{name: "single quotes", content: `{'a': 1}`},
		{name: "unquoted keys", content: `{a: 1}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			value, err := DecodeLenientJSON(test.content)
			if err != nil {
				t.Fatalf("DecodeLenientJSON(%q) error = %v", test.content, err)
			}
			asMap, ok := value.(map[string]any)
			if !ok {
				t.Fatalf("DecodeLenientJSON(%q) = %T, want map", test.content, value)
			}
			if asMap["a"] != float64(1) {
				t.Errorf("DecodeLenientJSON(%q)[a] = %v, want 1", test.content, asMap["a"])
			}
		})
	}
}
