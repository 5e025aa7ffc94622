package utils

import (
	"reflect"
	"testing"
)

func TestDeepMergeMaps(t *testing.T) {
	base := map[string]any{
		"port": 1883,
		"retry_settings": map[string]any{
			"max_retries": 5,
			"retry_delay": 5,
		},
		"keep": "base",
	}
	override := map[string]any{
		"port": 8883,
		"retry_settings": map[string]any{
			"retry_delay": 1,
		},
		"extra": true,
	}

	merged := DeepMergeMaps(base, override)

	expected := map[string]any{
		"port": 8883,
		"retry_settings": map[string]any{
			"max_retries": 5,
			"retry_delay": 1,
		},
		"keep":  "base",
		"extra": true,
	}
	if !reflect.DeepEqual(merged, expected) {
		t.Errorf("DeepMergeMaps() = %#v, want %#v", merged, expected)
	}

	// Inputs must stay untouched.
	if base["port"] != 1883 {
		t.Errorf("base map was mutated: port = %v", base["port"])
	}
	if base["retry_settings"].(map[string]any)["retry_delay"] != 5 {
		t.Error("nested base map was mutated")
	}
}

func TestDeepMergeMapsScalarReplacesMap(t *testing.T) {
	base := map[string]any{"settings": map[string]any{"a": 1}}
	override := map[string]any{"settings": "disabled"}

	merged := DeepMergeMaps(base, override)
	if merged["settings"] != "disabled" {
		t.Errorf("scalar override should replace nested map, got %#v", merged["settings"])
	}
}
