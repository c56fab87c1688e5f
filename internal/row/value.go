package row

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Value is a sealed interface over runtime field values.
// Only Text, Integer, Number, Boolean and Binary implement it.
// A nil Value represents null.
type Value interface {
	rowValue()
}

// Text is a string value.
type Text string

func (Text) rowValue() {}

// Integer is a signed 64-bit integer value.
type Integer int64

func (Integer) rowValue() {}

// Number is a floating point value.
type Number float64

func (Number) rowValue() {}

// Boolean is a boolean value.
type Boolean bool

func (Boolean) rowValue() {}

// Binary is an opaque byte value. It is encoded as base64 in JSON.
type Binary []byte

func (Binary) rowValue() {}

// TypeOf reports the runtime type of v. Null reports 0.
func TypeOf(v Value) ValueType {
	switch v.(type) {
	case Text:
		return TypeText
	case Integer:
		return TypeInteger
	case Number:
		return TypeNumber
	case Boolean:
		return TypeBoolean
	case Binary:
		return TypeBinary
	default:
		return 0
	}
}

// Describe renders the runtime type of v for diagnostics.
func Describe(v Value) string {
	if v == nil {
		return "null"
	}
	return TypeOf(v).String()
}

// MarshalValues encodes a record as a JSON array.
// HTML escaping is disabled so XML payloads stay readable.
func MarshalValues(r Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	raw := make([]any, len(r))
	for i, v := range r {
		switch val := v.(type) {
		case nil:
			raw[i] = nil
		case Text:
			raw[i] = string(val)
		case Integer:
			raw[i] = int64(val)
		case Number:
			raw[i] = float64(val)
		case Boolean:
			raw[i] = bool(val)
		case Binary:
			raw[i] = base64.StdEncoding.EncodeToString(val)
		default:
			return nil, fmt.Errorf("value %d: unsupported type %T", i, v)
		}
	}
	if err := enc.Encode(raw); err != nil {
		return nil, err
	}

	// json.Encoder adds trailing newline, remove it
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalValues decodes a JSON array into a record aligned to s.
func UnmarshalValues(data []byte, s Schema) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromJSON(raw, s)
}

// FromJSON converts values produced by a json.Decoder with UseNumber into a
// record aligned to s. The record length must equal the schema length.
func FromJSON(raw []any, s Schema) (Record, error) {
	if len(raw) != len(s) {
		return nil, fmt.Errorf("record has %d values, schema declares %d", len(raw), len(s))
	}
	rec := make(Record, len(raw))
	for i, elem := range raw {
		v, err := decodeValue(elem, s[i].Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", s[i].Name, err)
		}
		rec[i] = v
	}
	return rec, nil
}

// decodeValue maps a decoded JSON value to a Value. The runtime JSON type
// wins; the declared type only selects base64 decoding for binary fields.
func decodeValue(elem any, declared ValueType) (Value, error) {
	switch val := elem.(type) {
	case nil:
		return nil, nil
	case string:
		if declared == TypeBinary {
			b, err := base64.StdEncoding.DecodeString(val)
			if err != nil {
				return nil, fmt.Errorf("invalid base64: %w", err)
			}
			return Binary(b), nil
		}
		return Text(val), nil
	case bool:
		return Boolean(val), nil
	case json.Number:
		s := val.String()
		if !strings.ContainsAny(s, ".eE") {
			if n, err := val.Int64(); err == nil {
				return Integer(n), nil
			}
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %s: %w", s, err)
		}
		return Number(f), nil
	case float64:
		return Number(val), nil
	default:
		return nil, fmt.Errorf("unsupported JSON value %T", elem)
	}
}
