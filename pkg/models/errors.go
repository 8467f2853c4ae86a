package models

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput matches every MalformedInputError.
	ErrMalformedInput = errors.New("malformed input")
	// ErrConfiguration matches every ConfigurationError.
	ErrConfiguration = errors.New("configuration error")
)

// MalformedInputError reports structurally invalid input such as an empty
// dependency graph. It is never retried.
type MalformedInputError struct {
	Op  string
	Msg string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("%s: malformed input: %s", e.Op, e.Msg)
}

// Is lets errors.Is(err, ErrMalformedInput) match.
func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

// ConfigurationError reports an invalid run parameter, replica count or
// endpoint definition detected before any trial runs.
type ConfigurationError struct {
	Op  string
	Msg string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: invalid configuration: %s", e.Op, e.Msg)
}

// Is lets errors.Is(err, ErrConfiguration) match.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewMalformedInputError constructs a MalformedInputError.
func NewMalformedInputError(op, format string, args ...any) error {
	return &MalformedInputError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NewConfigurationError constructs a ConfigurationError.
func NewConfigurationError(op, format string, args ...any) error {
	return &ConfigurationError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// IsInputError reports whether err is a validation failure of caller input,
// as opposed to an internal or cancellation error.
func IsInputError(err error) bool {
	return errors.Is(err, ErrMalformedInput) || errors.Is(err, ErrConfiguration)
}
