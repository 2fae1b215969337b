package document

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/ipwarehouse/internal/domain"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	// Null is the JSON null.
	Null Kind = iota
	// String is a text scalar.
	String
	// Number is a numeric scalar kept as its JSON literal.
	Number
	// Bool is a boolean scalar.
	Bool
	// List is an ordered list of values.
	List
	// Object is a nested document.
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "bool"
	case List:
		return "list"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a single field value (tagged union). The zero Value is Null.
type Value struct {
	kind Kind
	str  string // text of a String, JSON literal of a Number
	b    bool
	list []Value
	obj  *Document
}

// NullValue returns the null value.
func NullValue() Value { return Value{} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: String, str: s} }

// RawNumber wraps a JSON number literal without converting it, so large integers and
// trailing zeros survive a store round trip. raw must be a valid JSON number.
func RawNumber(raw string) Value { return Value{kind: Number, str: raw} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// ListValue wraps the given elements. The slice is copied.
func ListValue(items ...Value) Value {
	return Value{kind: List, list: append([]Value(nil), items...)}
}

// ObjectValue wraps a nested document. The document is copied.
func ObjectValue(d Document) Value {
	c := d.Clone()
	return Value{kind: Object, obj: &c}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// Texts returns the spellings a value is matched by: its String form, plus the
// capitalized True/False for booleans.
func (v Value) Texts() []string {
	if v.kind == Bool {
		if v.b {
			return []string{"true", "True"}
		}
		return []string{"false", "False"}
	}
	return []string{v.String()}
}

// Contains reports whether a list value holds an element equal to x.
func (v Value) Contains(x Value) bool {
	for _, item := range v.list {
		if item.Equal(x) {
			return true
		}
	}
	return false
}

// Append returns a list value with x appended. v must be a list.
func (v Value) Append(x Value) Value {
	items := make([]Value, 0, len(v.list)+1)
	items = append(items, v.list...)
	return Value{kind: List, list: append(items, x)}
}

// Equal reports deep equality; numbers compare by value, objects ignore key order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case String:
		return v.str == o.str
	case Number:
		return v.str == o.str || canonicalNumber(v.str) == canonicalNumber(o.str)
	case Bool:
		return v.b == o.b
	case List:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case Object:
		return v.obj.Equal(*o.obj)
	default:
		return false
	}
}

// Float coerces the value to a number: numbers as-is, strings parsed.
// Anything else is ErrTypeMismatch.
func (v Value) Float() (float64, error) {
	switch v.kind {
	case Number:
		f, err := strconv.ParseFloat(v.str, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%q is not a number: %w", v.str, domain.ErrTypeMismatch)
		}
		return f, nil
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number: %w", v.str, domain.ErrTypeMismatch)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%s is not a number: %w", v.kind, domain.ErrTypeMismatch)
	}
}

// String renders the value as text: strings raw, lists as ['a', 1].
func (v Value) String() string {
	var sb strings.Builder
	v.writeText(&sb, false)
	return sb.String()
}

func (v Value) writeText(sb *strings.Builder, nested bool) {
	switch v.kind {
	case Null:
		sb.WriteString("null")
	case String:
		if nested {
			sb.WriteByte('\'')
			sb.WriteString(v.str)
			sb.WriteByte('\'')
			return
		}
		sb.WriteString(v.str)
	case Number:
		sb.WriteString(canonicalNumber(v.str))
	case Bool:
		sb.WriteString(strconv.FormatBool(v.b))
	case List:
		sb.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.writeText(sb, true)
		}
		sb.WriteByte(']')
	case Object:
		sb.WriteByte('{')
		for i, k := range v.obj.keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('\'')
			sb.WriteString(k)
			sb.WriteString("': ")
			v.obj.fields[k].writeText(sb, true)
		}
		sb.WriteByte('}')
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// canonicalNumber is the text form of a number literal: integer literals verbatim at any
// size, everything else in shortest float form, so 1.50, 1.5 and 15e-1 all read 1.5.
func canonicalNumber(raw string) string {
	if !strings.ContainsAny(raw, ".eE") {
		if strings.Trim(raw, "-0") == "" {
			return "0"
		}
		return raw
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return raw
	}
	if f == 0 {
		return "0"
	}
	return formatNumber(f)
}
