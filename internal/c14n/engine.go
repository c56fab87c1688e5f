package c14n

// Engine pairs one Parser with one Serializer.
//
// Thread-safety: Engine is NOT safe for concurrent use. One caller at a time.
type Engine struct {
	parser     *Parser
	serializer *Serializer
}

// NewEngine creates an Engine with its own parser and serializer.
func NewEngine() *Engine {
	return &Engine{
		parser:     NewParser(),
		serializer: NewSerializer(),
	}
}

// Algorithm returns the canonicalization algorithm URI.
func (e *Engine) Algorithm() string {
	return e.serializer.Algorithm()
}

// Canonicalize parses text and serializes it canonically.
// Exactly one of Success or Failure is returned; there are no retries.
func (e *Engine) Canonicalize(text string) Outcome {
	doc, err := e.parser.Parse(text)
	if err != nil {
		return failureFrom(err)
	}
	out, err := e.serializer.Canonicalize(doc)
	if err != nil {
		return failureFrom(err)
	}
	return Success{CanonicalXML: out}
}
