package mapper

import (
	"errors"
	"fmt"
)

// Mapper modes.
const (
	ModeObject = "object"
	ModeArray  = "array"
)

// Dispositions for a missing required source field.
const (
	OnMissingError = "error"
	OnMissingSkip  = "skip"
	OnMissingNull  = "null"
)

// Dispositions for a failing transform.
const (
	OnTransformError    = "error"
	OnTransformSkip     = "skip"
	OnTransformOriginal = "original"
)

// ErrInvalidMapping is returned when a mapping lacks a source or target path.
var ErrInvalidMapping = errors.New("invalid mapping")

// Mapping moves one value from a JMESPath source expression to a dotted
// target path, optionally transforming it on the way.
type Mapping struct {
	// Source is the JMESPath expression evaluated against the input document.
	Source string `json:"source"`

	// Target is the dotted path written into the result document.
	// Intermediate maps are created as needed.
	Target string `json:"target"`

	// Default substitutes for a missing source value before the required
	// check runs.
	Default any `json:"default,omitempty"`

	// Required makes a missing source value a mapping error, dispatched per
	// ErrorHandling.OnMissingRequired.
	Required bool `json:"required,omitempty"`

	// Transform names one of the built-in transforms: string, number,
	// integer, float, boolean, lowercase, uppercase, trim. Unknown names are
	// ignored with a warning.
	Transform string `json:"transform,omitempty"`
}

// ArraySettings configures array mode.
type ArraySettings struct {
	// SourcePath is the JMESPath expression locating the array. Empty means
	// the event data itself is the array.
	SourcePath string `json:"source_path,omitempty"`

	// Filter is an optional JsonLogic rule; only items for which it
	// evaluates truthy are kept.
	Filter any `json:"filter,omitempty"`

	// ItemMappings are applied to each kept item using object-mode rules.
	ItemMappings []Mapping `json:"item_mappings"`
}

// ErrorHandling controls how mapping failures are dispatched.
type ErrorHandling struct {
	// OnMissingRequired is one of error, skip, null.
	OnMissingRequired string `json:"on_missing_required,omitempty"`

	// OnTransformError is one of error, skip, original.
	OnTransformError string `json:"on_transform_error,omitempty"`
}

// Config is the full mapper configuration.
type Config struct {
	// Mode is "object" (default) or "array".
	Mode string `json:"mode,omitempty"`

	// Mappings are the object-mode field mappings.
	Mappings []Mapping `json:"mappings,omitempty"`

	// ArraySettings configure array mode.
	ArraySettings ArraySettings `json:"array_settings,omitempty"`

	// ErrorHandling selects failure dispositions.
	ErrorHandling ErrorHandling `json:"error_handling,omitempty"`
}

func (config *Config) applyDefaults() {
	if config.Mode == "" {
		config.Mode = ModeObject
	}
	if config.ErrorHandling.OnMissingRequired == "" {
		config.ErrorHandling.OnMissingRequired = OnMissingError
	}
	if config.ErrorHandling.OnTransformError == "" {
		config.ErrorHandling.OnTransformError = OnTransformError
	}
}

func (config *Config) validate() error {
	if config.Mode != ModeObject && config.Mode != ModeArray {
		return fmt.Errorf("unknown mapper mode %q", config.Mode)
	}

	mappings := config.Mappings
	if config.Mode == ModeArray {
		mappings = config.ArraySettings.ItemMappings
	}
	for index, mapping := range mappings {
		if mapping.Source == "" || mapping.Target == "" {
			return fmt.Errorf("%w: mapping %d needs both source and target", ErrInvalidMapping, index)
		}
	}

	switch config.ErrorHandling.OnMissingRequired {
	case OnMissingError, OnMissingSkip, OnMissingNull:
	default:
		return fmt.Errorf("unknown on_missing_required disposition %q", config.ErrorHandling.OnMissingRequired)
	}
	switch config.ErrorHandling.OnTransformError {
	case OnTransformError, OnTransformSkip, OnTransformOriginal:
	default:
		return fmt.Errorf("unknown on_transform_error disposition %q", config.ErrorHandling.OnTransformError)
	}
	return nil
}
