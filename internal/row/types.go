package row

import (
	"encoding/json"
	"fmt"
)

// ValueType is the declared type of a field.
type ValueType int

const (
	TypeText ValueType = iota + 1
	TypeInteger
	TypeNumber
	TypeBoolean
	TypeBinary
)

var valueTypeNames = map[ValueType]string{
	TypeText:    "text",
	TypeInteger: "integer",
	TypeNumber:  "number",
	TypeBoolean: "boolean",
	TypeBinary:  "binary",
}

func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// ParseValueType maps a type name ("text", "integer", ...) to a ValueType.
func ParseValueType(name string) (ValueType, error) {
	for t, n := range valueTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown value type %q", name)
}

// MarshalJSON implements json.Marshaler.
func (t ValueType) MarshalJSON() ([]byte, error) {
	name, ok := valueTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown value type %d", int(t))
	}
	return json.Marshal(name)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *ValueType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseValueType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TrimPolicy is host metadata describing how a text field should be trimmed.
// The stage records it on the schema but never applies it.
type TrimPolicy int

const (
	TrimNone TrimPolicy = iota
	TrimBoth
	TrimLeft
	TrimRight
)

var trimPolicyNames = map[TrimPolicy]string{
	TrimNone:  "none",
	TrimBoth:  "both",
	TrimLeft:  "left",
	TrimRight: "right",
}

func (p TrimPolicy) String() string {
	if name, ok := trimPolicyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("TrimPolicy(%d)", int(p))
}

// ParseTrimPolicy maps a policy name to a TrimPolicy. The empty string is TrimNone.
func ParseTrimPolicy(name string) (TrimPolicy, error) {
	if name == "" {
		return TrimNone, nil
	}
	for p, n := range trimPolicyNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown trim policy %q", name)
}

// MarshalJSON implements json.Marshaler.
func (p TrimPolicy) MarshalJSON() ([]byte, error) {
	name, ok := trimPolicyNames[p]
	if !ok {
		return nil, fmt.Errorf("unknown trim policy %d", int(p))
	}
	return json.Marshal(name)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *TrimPolicy) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseTrimPolicy(name)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Field describes one position of a record.
type Field struct {
	Name   string     `json:"name"`
	Type   ValueType  `json:"type"`
	Trim   TrimPolicy `json:"trim"`
	Origin string     `json:"origin,omitempty"`
}

// Schema is the ordered list of fields describing a record's shape.
// Field names are unique within a schema.
type Schema []Field

// IndexOf returns the position of the named field, or -1.
func (s Schema) IndexOf(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Append returns a new schema with f added at the end.
// The receiver is never modified, even when it has spare capacity.
func (s Schema) Append(f Field) Schema {
	out := make(Schema, len(s), len(s)+1)
	copy(out, s)
	return append(out, f)
}

// Validate checks that names are non-empty and unique and that every field
// has a known type.
func (s Schema) Validate() error {
	seen := make(map[string]int, len(s))
	for i, f := range s {
		if f.Name == "" {
			return fmt.Errorf("field %d: empty name", i)
		}
		if _, ok := valueTypeNames[f.Type]; !ok {
			return fmt.Errorf("field %q: missing or unknown type", f.Name)
		}
		if prev, dup := seen[f.Name]; dup {
			return fmt.Errorf("field %d: duplicate name %q (first at %d)", i, f.Name, prev)
		}
		seen[f.Name] = i
	}
	return nil
}

// Names returns the field names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Record is an ordered sequence of values aligned to a Schema.
type Record []Value

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	copy(out, r)
	return out
}

// Widen returns a copy of r extended with nulls to length n.
// If n is not larger than len(r), the copy has the same length as r.
func (r Record) Widen(n int) Record {
	if n < len(r) {
		n = len(r)
	}
	out := make(Record, n)
	copy(out, r)
	return out
}
