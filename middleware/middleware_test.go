package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/flowmesh/flowmesh/engine"
)

func TestLoggingPassesEventsThrough(t *testing.T) {
	logging := NewLogging("test")
	event := engine.NewEvent(engine.EventDataChange, map[string]any{"value": 1})

	passed, err := logging.BeforeProcess(context.Background(), event, "node-1")
	if err != nil {
		t.Fatalf("BeforeProcess() error = %v", err)
	}
	if passed != event {
		t.Error("BeforeProcess() should return the same event")
	}

	result := engine.NewEvent(engine.EventComputationResult, 2)
	passed, err = logging.AfterProcess(context.Background(), event, result, "node-1")
	if err != nil {
		t.Fatalf("AfterProcess() error = %v", err)
	}
	if passed != result {
		t.Error("AfterProcess() should return the same result")
	}
}

func TestLoggingHandlesNilResult(t *testing.T) {
	logging := &Logging{}
	event := engine.NewEvent(engine.EventDataChange, nil)

	result, err := logging.AfterProcess(context.Background(), event, nil, "node-1")
	if err != nil {
		t.Fatalf("AfterProcess() error = %v", err)
	}
	if result != nil {
		t.Errorf("AfterProcess(nil result) = %v, want nil", result)
	}
}

func TestRequireFields(t *testing.T) {
	require := NewRequireFields(engine.EventDataChange, "topic", "payload")

	tests := []struct {
		name    string
		event   *engine.Event
		wantErr bool
	}{
		{
			name:  "all fields present",
			event: engine.NewEvent(engine.EventDataChange, map[string]any{"topic": "a/b", "payload": "x"}),
		},
		{
			name:    "missing field",
			event:   engine.NewEvent(engine.EventDataChange, map[string]any{"topic": "a/b"}),
			wantErr: true,
		},
		{
			name:    "empty field",
			event:   engine.NewEvent(engine.EventDataChange, map[string]any{"topic": "", "payload": "x"}),
			wantErr: true,
		},
		{
			name:  "other event type skipped",
			event: engine.NewEvent(engine.EventComputationResult, map[string]any{}),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := require.BeforeProcess(context.Background(), test.event, "node-1")
			if test.wantErr && !errors.Is(err, ErrMissingRequiredField) {
				t.Errorf("BeforeProcess() error = %v, want ErrMissingRequiredField", err)
			}
			if !test.wantErr && err != nil {
				t.Errorf("BeforeProcess() unexpected error = %v", err)
			}
		})
	}
}
