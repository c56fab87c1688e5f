package stage

import (
	"github.com/roach88/canonxml/internal/c14n"
	"github.com/roach88/canonxml/internal/row"
	"github.com/roach88/canonxml/internal/schema"
)

// Lifecycle is the instance-level state of a Processor.
type Lifecycle int

const (
	// Uninitialized: no record observed yet.
	Uninitialized Lifecycle = iota
	// Initialized: fields resolved, engine built. Terminal.
	Initialized
)

func (l Lifecycle) String() string {
	if l == Initialized {
		return "initialized"
	}
	return "uninitialized"
}

// ProcessingContext is the per-instance state built on the first record.
//
// INVARIANTS:
//   - Built exactly once per Processor, never reset
//   - outputSchema is the input schema plus exactly one appended field
//   - engine is owned exclusively by this context
type ProcessingContext struct {
	inputIndex   int
	outputIndex  int
	outputSchema row.Schema
	engine       *c14n.Engine
}

func newProcessingContext(res schema.Resolution) *ProcessingContext {
	return &ProcessingContext{
		inputIndex:   res.InputIndex,
		outputIndex:  res.OutputIndex,
		outputSchema: res.OutputSchema,
		engine:       c14n.NewEngine(),
	}
}

// InputIndex is the position of the configured input field.
func (c *ProcessingContext) InputIndex() int { return c.inputIndex }

// OutputIndex is the position of the appended field (input schema length).
func (c *ProcessingContext) OutputIndex() int { return c.outputIndex }

// OutputSchema returns a copy of the outgoing schema.
func (c *ProcessingContext) OutputSchema() row.Schema {
	out := make(row.Schema, len(c.outputSchema))
	copy(out, c.outputSchema)
	return out
}

// inputWidth is the number of values an incoming record must carry.
func (c *ProcessingContext) inputWidth() int { return c.outputIndex }
