package convert

import (
	"context"
	"reflect"
	"testing"

	"github.com/flowmesh/flowmesh/engine"
)

func runProcessor(t *testing.T, processor engine.Processor, data any) *engine.Event {
	t.Helper()

	event := engine.NewEvent(engine.EventDataChange, data)
	result, err := processor.Process(context.Background(), event, &engine.NodeContext{NodeID: "convert-1"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result == nil {
		t.Fatal("Process() returned nil event")
	}
	if result.Type != engine.EventFileConverted {
		t.Fatalf("result type = %s, want file_converted", result.Type)
	}
	return result
}

func TestCSVSingleObject(t *testing.T) {
	processor := NewCSVProcessor(CSVConfig{})
	input := map[string]any{
		"name": "Ada",
		"address": map[string]any{
			"city": "London",
		},
		"tags": []any{"a", "b"},
	}

	result := runProcessor(t, processor, input)

	content, isString := result.DataMap()["content"].(string)
	if !isString {
		t.Fatalf("content is %T, want string", result.DataMap()["content"])
	}
	expected := "address_city,name,tags\nLondon,Ada,a; b"
	if content != expected {
		t.Errorf("csv content = %q, want %q", content, expected)
	}
	if result.DataMap()["rows"] != 1 {
		t.Errorf("rows = %v, want 1", result.DataMap()["rows"])
	}
}

func TestCSVArrayOfObjects(t *testing.T) {
	processor := NewCSVProcessor(CSVConfig{})
	input := []any{
		map[string]any{"sensor": "s1", "value": float64(5)},
		map[string]any{"sensor": "s2", "value": float64(15), "unit": "C"},
	}

	result := runProcessor(t, processor, input)

	expected := "sensor,unit,value\ns1,,5\ns2,C,15"
	if content := result.DataMap()["content"]; content != expected {
		t.Errorf("csv content = %q, want %q", content, expected)
	}
	if result.DataMap()["rows"] != 2 {
		t.Errorf("rows = %v, want 2", result.DataMap()["rows"])
	}
}

func TestCSVOptions(t *testing.T) {
	t.Run("line array output without headers", func(t *testing.T) {
		processor := NewCSVProcessor(CSVConfig{
			SkipHeaders:  true,
			OutputFormat: CSVOutputLines,
		})
		result := runProcessor(t, processor, map[string]any{"a": 1, "b": 2})

		lines, isLines := result.DataMap()["content"].([]string)
		if !isLines {
			t.Fatalf("content is %T, want []string", result.DataMap()["content"])
		}
		if !reflect.DeepEqual(lines, []string{"1,2"}) {
			t.Errorf("lines = %#v, want single data row", lines)
		}
	})

	t.Run("custom delimiter and separator", func(t *testing.T) {
		processor := NewCSVProcessor(CSVConfig{Separator: ".", Delimiter: ';'})
		result := runProcessor(t, processor, map[string]any{
			"outer": map[string]any{"inner": "v"},
			"plain": "w",
		})

		expected := "outer.inner;plain\nv;w"
		if content := result.DataMap()["content"]; content != expected {
			t.Errorf("csv content = %q, want %q", content, expected)
		}
	})
}

func TestCSVRejectsUnsupportedPayloads(t *testing.T) {
	processor := NewCSVProcessor(CSVConfig{})
	event := engine.NewEvent(engine.EventDataChange, "just a string")

	if _, err := processor.Process(context.Background(), event, &engine.NodeContext{}); err == nil {
		t.Error("Process() expected error for scalar payload")
	}

	event = engine.NewEvent(engine.EventDataChange, []any{"not", "objects"})
	if _, err := processor.Process(context.Background(), event, &engine.NodeContext{}); err == nil {
		t.Error("Process() expected error for array of scalars")
	}
}

func TestFlattenMap(t *testing.T) {
	input := map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": 1},
			"d": "x",
		},
		"e": nil,
	}

	flattened := flattenMap(input, "", "_")

	expected := map[string]any{"a_b_c": 1, "a_d": "x", "e": nil}
	if !reflect.DeepEqual(flattened, expected) {
		t.Errorf("flattenMap() = %#v, want %#v", flattened, expected)
	}
}
