package model

import (
	"fmt"
	"strconv"
)

// ValueKind enumerates the dynamic metadata shapes a Note's frontmatter
// may carry, mirroring MetadataSchema's FieldType one level down (every
// FieldType parses into exactly one ValueKind).
type ValueKind uint8

const (
	ValueStringKind ValueKind = iota
	ValueNumberKind
	ValueBooleanKind
	ValueDateKind
	ValueArrayKind
)

// Value is a tagged variant over the metadata types a note's
// frontmatter may hold. Schema validation (package metaval) is a pure
// function over this variant.
type Value struct {
	Kind    ValueKind
	Str     string
	Num     float64
	Bool    bool
	DateRFC string // RFC3339 when Kind == ValueDateKind
	Arr     []string
}

func String(s string) *Value  { return &Value{Kind: ValueStringKind, Str: s} }
func Number(n float64) *Value { return &Value{Kind: ValueNumberKind, Num: n} }
func Boolean(b bool) *Value   { return &Value{Kind: ValueBooleanKind, Bool: b} }
func Date(rfc3339 string) *Value {
	return &Value{Kind: ValueDateKind, DateRFC: rfc3339}
}
func Array(items []string) *Value { return &Value{Kind: ValueArrayKind, Arr: items} }

// FieldType reports the FieldType this value's Kind corresponds to.
// Select values are represented as ValueStringKind; callers that need
// to distinguish select from plain string do so via the schema, not the
// value itself.
func (v *Value) FieldType() FieldType {
	switch v.Kind {
	case ValueNumberKind:
		return FieldNumber
	case ValueBooleanKind:
		return FieldBoolean
	case ValueDateKind:
		return FieldDate
	case ValueArrayKind:
		return FieldArray
	default:
		return FieldString
	}
}

// Text renders the value as the text form stored in DatabaseStore's
// note_metadata.value column: arrays serialize as JSON, everything else
// as its plain textual form.
func (v *Value) Text() string {
	switch v.Kind {
	case ValueNumberKind:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case ValueBooleanKind:
		return strconv.FormatBool(v.Bool)
	case ValueDateKind:
		return v.DateRFC
	case ValueArrayKind:
		return jsonArray(v.Arr)
	default:
		return v.Str
	}
}

func jsonArray(items []string) string {
	out := make([]byte, 0, 2+16*len(items))
	out = append(out, '[')

	for i, item := range items {
		if i > 0 {
			out = append(out, ',')
		}

		out = append(out, fmt.Sprintf("%q", item)...)
	}

	out = append(out, ']')

	return string(out)
}
