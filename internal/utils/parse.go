package utils

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// DecodeLenientJSON parses content as JSON. If strict unmarshaling fails, it
// attempts to repair the document (trailing commas, single quotes, unquoted
// keys) and parses again. It returns an error only when the content is not
// recoverable as JSON at all.
func DecodeLenientJSON(content string) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(content), &value); err == nil {
		return value, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(content)
	if repairErr != nil {
		return nil, fmt.Errorf("content is not valid JSON: %w", repairErr)
	}

	if err := json.Unmarshal([]byte(repaired), &value); err != nil {
		return nil, fmt.Errorf("repaired content is not valid JSON: %w", err)
	}
	return value, nil
}
