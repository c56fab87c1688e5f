// Package schema resolves configured field names against a record schema.
package schema

import (
	"fmt"

	"github.com/roach88/canonxml/internal/row"
)

// Resolution is the result of resolving the step's fields against an input schema.
type Resolution struct {
	InputIndex   int
	OutputIndex  int
	OutputSchema row.Schema
}

// NotFoundError reports that a configured field is absent from the schema.
type NotFoundError struct {
	Field     string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("field %q not found in input schema %v", e.Field, e.Available)
}

// CollisionError reports that the output field already exists in the input schema.
type CollisionError struct {
	Field string
	Index int
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("output field %q already exists in input schema at position %d", e.Field, e.Index)
}

// Resolve locates inputField in input and appends a text field named
// outputField, trimmed on both sides and stamped with origin.
//
// The input schema is never modified. OutputIndex is always len(input).
func Resolve(input row.Schema, inputField, outputField, origin string) (Resolution, error) {
	if inputField == "" {
		return Resolution{}, fmt.Errorf("input field name is empty")
	}
	if outputField == "" {
		return Resolution{}, fmt.Errorf("output field name is empty")
	}

	inputIndex := input.IndexOf(inputField)
	if inputIndex < 0 {
		return Resolution{}, &NotFoundError{Field: inputField, Available: input.Names()}
	}
	if existing := input.IndexOf(outputField); existing >= 0 {
		return Resolution{}, &CollisionError{Field: outputField, Index: existing}
	}

	out := input.Append(row.Field{
		Name:   outputField,
		Type:   row.TypeText,
		Trim:   row.TrimBoth,
		Origin: origin,
	})

	return Resolution{
		InputIndex:   inputIndex,
		OutputIndex:  len(input),
		OutputSchema: out,
	}, nil
}
