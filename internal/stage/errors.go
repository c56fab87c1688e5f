package stage

import (
	"errors"
	"fmt"
)

// StepError is a fatal, run-aborting error.
//
// Step errors signal a wiring or configuration defect rather than bad data:
//   - Configuration: configured input field missing, output field collides
//   - Type mismatch: the input field holds a non-text runtime value
//   - Record shape: a record's length disagrees with its schema
type StepError struct {
	// Code identifies the error category.
	Code StepErrorCode

	// Message is a human-readable description.
	Message string

	// Field is the configured field involved, if any.
	Field string

	// Seq is the record sequence number (0 if no record was involved).
	Seq int64

	// Err is the underlying cause, if any.
	Err error
}

// StepErrorCode categorizes fatal step errors.
type StepErrorCode string

const (
	// ErrCodeConfiguration indicates the configured fields do not resolve.
	ErrCodeConfiguration StepErrorCode = "CONFIGURATION"

	// ErrCodeTypeMismatch indicates the input field holds a non-text value.
	ErrCodeTypeMismatch StepErrorCode = "TYPE_MISMATCH"

	// ErrCodeRecordShape indicates a record does not match its schema.
	ErrCodeRecordShape StepErrorCode = "RECORD_SHAPE"
)

// Error implements the error interface.
func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Field != "" {
		msg += fmt.Sprintf(" (field=%s", e.Field)
		if e.Seq > 0 {
			msg += fmt.Sprintf(", seq=%d", e.Seq)
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// IsConfigurationError returns true if err is a fatal step error of any code.
// All step errors belong to the configuration class: they stop the run.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	var se *StepError
	return errors.As(err, &se)
}

// IsTypeMismatch returns true if err reports a non-text input value.
func IsTypeMismatch(err error) bool {
	var se *StepError
	if errors.As(err, &se) {
		return se.Code == ErrCodeTypeMismatch
	}
	return false
}

// NewConfigurationError creates a StepError for unresolvable configuration.
func NewConfigurationError(field string, err error) *StepError {
	return &StepError{
		Code:    ErrCodeConfiguration,
		Message: "configured fields do not resolve against the input schema",
		Field:   field,
		Err:     err,
	}
}

// NewTypeMismatchError creates a StepError for a non-text input value.
func NewTypeMismatchError(field string, seq int64, got string) *StepError {
	return &StepError{
		Code:    ErrCodeTypeMismatch,
		Message: fmt.Sprintf("input field must hold text, got %s", got),
		Field:   field,
		Seq:     seq,
	}
}

// NewRecordShapeError creates a StepError for a record/schema length mismatch.
func NewRecordShapeError(seq int64, got, want int) *StepError {
	return &StepError{
		Code:    ErrCodeRecordShape,
		Message: fmt.Sprintf("record has %d values, schema declares %d (seq=%d)", got, want, seq),
		Seq:     seq,
	}
}
