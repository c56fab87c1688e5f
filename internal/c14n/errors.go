package c14n

import (
	"errors"
	"fmt"
)

// Kind identifies the step of an attempt that failed.
type Kind string

const (
	// KindParse indicates the text is not well-formed XML.
	KindParse Kind = "parse"

	// KindCanonicalize indicates a parsed document could not be serialized.
	KindCanonicalize Kind = "canonicalize"
)

// Error is a recoverable, per-document failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNoRoot is reported when a document parses but has no document element.
var ErrNoRoot = errors.New("document has no root element")

// IsParseError returns true if err is a parse failure.
// Uses errors.As to handle wrapped errors.
func IsParseError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindParse
	}
	return false
}
