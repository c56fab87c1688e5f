// Package stage implements the XML canonicalization record processor.
//
// A Processor is one running instance of the step. It turns each incoming
// record into exactly one of two results: an Emit carrying the record
// widened by one canonical-XML text field, or a Divert carrying an
// ErrorRecord for the error channel.
//
// ARCHITECTURE:
//
// Instance lifecycle:
// A Processor starts Uninitialized. The first record it observes triggers
// the only transition to Initialized: the configured fields are resolved
// against the record's schema and a ProcessingContext is built, owning one
// parser/serializer pair. The context is immutable and never rebuilt.
// A stream with no records never initializes and produces no output.
//
// Per-record flow:
// 1. ReadField: take the value at the resolved input index
// 2. TypeCheck: a non-text value halts the whole run (StepError)
// 3. Parse and Canonicalize through the context's c14n.Engine
// 4. Success → Emit; Failure → Divert, and the stream continues
//
// Failure isolation:
// Parse and canonicalization failures never abort a run. Only wiring
// defects (unresolvable field, non-text value, record/schema length
// mismatch) and sink failures are fatal.
//
// CONCURRENCY:
//
// A Processor is strictly single-threaded. RunCopies runs N independent
// Processors, each with its own ProcessingContext; nothing is shared between
// copies. Output order is restored by sequence number before any sink sees
// a record, so sinks are always called from a single goroutine.
package stage
