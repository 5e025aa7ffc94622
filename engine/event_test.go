package engine

import "testing"

func TestNewEventAssignsIdentity(t *testing.T) {
	first := NewEvent(EventDataChange, 1)
	second := NewEvent(EventDataChange, 1)

	if first.ID == "" || first.ID == second.ID {
		t.Errorf("ids = %q/%q, want unique non-empty ids", first.ID, second.ID)
	}
	if first.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
	if first.Metadata == nil {
		t.Error("metadata map should be initialized")
	}
}

func TestCloneDetachesMetadata(t *testing.T) {
	original := NewEventWithMetadata(EventDataChange, "payload", map[string]any{"k": "v"})
	copied := original.Clone()

	copied.Metadata["k"] = "changed"
	if original.Metadata["k"] != "v" {
		t.Error("mutating the clone's metadata should not touch the original")
	}
	if copied.Data != original.Data {
		t.Error("clone should share the data payload")
	}
}

func TestDataMap(t *testing.T) {
	structured := NewEvent(EventDataChange, map[string]any{"a": 1})
	if structured.DataMap()["a"] != 1 {
		t.Error("DataMap should expose map payloads")
	}

	scalar := NewEvent(EventDataChange, 42)
	if scalar.DataMap() != nil {
		t.Error("DataMap should be nil for non-map payloads")
	}
}
