package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad or missing caller input.
	ErrValidation = errors.New("pricing: invalid input")
	// ErrConfiguration marks a stored preset or product option set that is internally inconsistent.
	ErrConfiguration = errors.New("pricing: invalid configuration")
	// ErrMaterialNotFound is returned when the requested material is not in the preset catalog.
	ErrMaterialNotFound = errors.New("pricing: material not found")
)

// ValidationError carries field-level detail that is safe to show to the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// MaterialNotFoundError is the user-correctable validation error for an unknown material id.
type MaterialNotFoundError struct {
	Material string
}

func (e *MaterialNotFoundError) Error() string {
	return fmt.Sprintf("material %s not available for this product", e.Material)
}

func (e *MaterialNotFoundError) Is(target error) bool {
	return target == ErrMaterialNotFound || target == ErrValidation
}

// ConfigurationError reports an operator or data problem. Its message is for logs only.
type ConfigurationError struct {
	Preset string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "pricing configuration"
	if e.Preset != "" {
		msg += " " + e.Preset
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func misconfigured(reason string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(reason, args...)}
}

// WithPreset stamps the preset key on configuration errors raised without one.
func WithPreset(err error, key string) error {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) && cfgErr.Preset == "" {
		cfgErr.Preset = key
	}
	return err
}
