// Package c14n adapts an XML document model and an Exclusive XML
// Canonicalization (with comments) implementation to the stage.
//
// The package exposes three pieces:
//
//   - Parser turns text into an *etree.Document or fails with a parse Error
//   - Serializer turns a document into its canonical form or fails with a
//     canonicalize Error
//   - Engine pairs one Parser with one Serializer and reports every attempt
//     as an Outcome, which is either Success or Failure, never both
//
// CONCURRENCY:
//
// Parser, Serializer and Engine hold no per-document state, but they are
// owned by exactly one caller. Invocations must be strictly sequential.
// Concurrent stage copies construct their own Engine.
//
// CANONICAL FORM:
//
// Character references are resolved at parse time, so "&#8220;" is written
// as the literal character while "&#38;" is written back as "&amp;".
// Entities declared in the DOCTYPE internal subset are expanded. Literal
// whitespace in attribute values is normalized to spaces, and an xmlns=""
// that undeclares nothing is dropped.
// Comments are kept. Comments and processing instructions outside the
// document element are separated from it by a single line feed; the XML
// declaration and the DOCTYPE are not part of the canonical form.
package c14n
