package c14n

// Outcome is the result of one canonicalization attempt.
// Only Success and Failure implement it.
type Outcome interface {
	outcome() // Sealed
}

// Success holds the canonical serialization.
type Success struct {
	CanonicalXML string
}

func (Success) outcome() {}

// Failure holds the diagnostic for a failed attempt. Message is never empty.
type Failure struct {
	Kind    Kind
	Message string
}

func (Failure) outcome() {}

// failureFrom converts an error from the parser or serializer to a Failure.
func failureFrom(err error) Failure {
	f := Failure{Kind: KindCanonicalize, Message: err.Error()}
	if IsParseError(err) {
		f.Kind = KindParse
	}
	if f.Message == "" {
		f.Message = string(f.Kind) + " failed"
	}
	return f
}
