package convert

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/flowmesh/flowmesh/engine"
)

// CSV output shapes.
const (
	CSVOutputString = "string"
	CSVOutputLines  = "array"
)

// CSVConfig configures the JSON to CSV conversion.
type CSVConfig struct {
	// Separator joins nested keys when flattening, default "_".
	Separator string `json:"separator,omitempty"`

	// Delimiter is the CSV field delimiter, default ','.
	Delimiter rune `json:"delimiter,omitempty"`

	// IncludeHeaders emits the header row. Enabled by default; set
	// SkipHeaders to suppress it.
	SkipHeaders bool `json:"skip_headers,omitempty"`

	// SortHeaders orders columns alphabetically. Enabled by default; set
	// KeepHeaderOrder to preserve first-seen order instead.
	KeepHeaderOrder bool `json:"keep_header_order,omitempty"`

	// OutputFormat is "string" (one CSV document, default) or "array"
	// (a slice of row strings).
	OutputFormat string `json:"output_format,omitempty"`
}

func (config *CSVConfig) applyDefaults() {
	if config.Separator == "" {
		config.Separator = "_"
	}
	if config.Delimiter == 0 {
		config.Delimiter = ','
	}
	if config.OutputFormat == "" {
		config.OutputFormat = CSVOutputString
	}
}

// CSVProcessor converts a map or an array of maps into CSV. Nested maps are
// flattened with the configured separator; list values are joined with "; ".
type CSVProcessor struct {
	config CSVConfig
}

var _ engine.Processor = (*CSVProcessor)(nil)

// NewCSVProcessor creates a CSV converter.
func NewCSVProcessor(config CSVConfig) *CSVProcessor {
	config.applyDefaults()
	return &CSVProcessor{config: config}
}

// CanHandle accepts structured data events.
func (processor *CSVProcessor) CanHandle(event *engine.Event) bool {
	return structuredEvent(event)
}

// Process renders the event data as CSV and emits a FILE_CONVERTED event.
func (processor *CSVProcessor) Process(_ context.Context, event *engine.Event, nodeCtx *engine.NodeContext) (*engine.Event, error) {
	rows, err := processor.collectRows(event.Data)
	if err != nil {
		return nil, err
	}

	headers := processor.headers(rows)
	lines, err := processor.render(headers, rows)
	if err != nil {
		return nil, err
	}

	var content any
	if processor.config.OutputFormat == CSVOutputLines {
		content = lines
	} else {
		content = strings.Join(lines, "\n")
	}

	result := convertedEvent(event, "csv", content)
	result.DataMap()["rows"] = len(rows)
	return result, nil
}

// collectRows normalizes the payload into flattened row maps.
func (processor *CSVProcessor) collectRows(data any) ([]map[string]any, error) {
	switch typed := data.(type) {
	case map[string]any:
		return []map[string]any{flattenMap(typed, "", processor.config.Separator)}, nil
	case []any:
		rows := make([]map[string]any, 0, len(typed))
		for index, item := range typed {
			itemMap, isMap := item.(map[string]any)
			if !isMap {
				return nil, fmt.Errorf("csv conversion: item %d is %T, want object", index, item)
			}
			rows = append(rows, flattenMap(itemMap, "", processor.config.Separator))
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("csv conversion: unsupported payload type %T", data)
	}
}

// headers computes the column set across all rows.
func (processor *CSVProcessor) headers(rows []map[string]any) []string {
	seen := make(map[string]bool)
	var headers []string
	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for key := range row {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if !seen[key] {
				seen[key] = true
				headers = append(headers, key)
			}
		}
	}
	if !processor.config.KeepHeaderOrder {
		sort.Strings(headers)
	}
	return headers
}

func (processor *CSVProcessor) render(headers []string, rows []map[string]any) ([]string, error) {
	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)
	writer.Comma = processor.config.Delimiter

	if !processor.config.SkipHeaders {
		if err := writer.Write(headers); err != nil {
			return nil, fmt.Errorf("writing csv header: %w", err)
		}
	}
	for _, row := range rows {
		record := make([]string, len(headers))
		for index, header := range headers {
			record[index] = renderCell(row[header])
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("writing csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}

	rendered := strings.TrimRight(buffer.String(), "\n")
	if rendered == "" {
		return nil, nil
	}
	return strings.Split(rendered, "\n"), nil
}

// flattenMap folds nested maps into a single level, joining key segments with
// separator. List values are joined into one cell with "; ".
func flattenMap(source map[string]any, prefix, separator string) map[string]any {
	flattened := make(map[string]any, len(source))
	for key, value := range source {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + separator + key
		}
		switch typed := value.(type) {
		case map[string]any:
			for nestedKey, nestedValue := range flattenMap(typed, fullKey, separator) {
				flattened[nestedKey] = nestedValue
			}
		case []any:
			parts := make([]string, len(typed))
			for index, item := range typed {
				parts[index] = renderCell(item)
			}
			flattened[fullKey] = strings.Join(parts, "; ")
		default:
			flattened[fullKey] = value
		}
	}
	return flattened
}

func renderCell(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%v", value)
}

// NewCSVNode creates a converter node that renders structured events as CSV.
func NewCSVNode(id string, config CSVConfig, opts ...engine.NodeOption) *engine.Node {
	return newConverterNode(id, "csv_converter_node", NewCSVProcessor(config), opts)
}
