package utils

import "fmt"

// TruncateString shortens s to at most maxLength runes, appending "..." when
// truncation happened. A maxLength of 0 or less returns an empty string.
func TruncateString(s string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}

	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength]) + "..."
}

// Stringify renders an arbitrary payload for logging, truncating it to
// maxLength runes. Nil payloads render as "null".
func Stringify(value any, maxLength int) string {
	if value == nil {
		return "null"
	}
	return TruncateString(fmt.Sprintf("%v", value), maxLength)
}
