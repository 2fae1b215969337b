package document

import (
	"errors"
	"fmt"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

var (
	errInvalidJSON = errors.New("invalid json")
	errNotObject   = errors.New("not a json object")
)

// Parse decodes one JSON object, keeping the key order of the input.
func Parse(data []byte) (Document, error) {
	if !gjson.ValidBytes(data) {
		return Document{}, errInvalidJSON
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return Document{}, errNotObject
	}
	return fromObject(res), nil
}

// ParseMany decodes either a single JSON object or an array of objects.
func ParseMany(data []byte) ([]Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, errInvalidJSON
	}
	res := gjson.ParseBytes(data)
	switch {
	case res.IsObject():
		return []Document{fromObject(res)}, nil
	case res.IsArray():
		var (
			docs []Document
			err  error
		)
		res.ForEach(func(_, item gjson.Result) bool {
			if !item.IsObject() {
				err = fmt.Errorf("element %d: %w", len(docs), errNotObject)
				return false
			}
			docs = append(docs, fromObject(item))
			return true
		})
		if err != nil {
			return nil, err
		}
		return docs, nil
	default:
		return nil, errNotObject
	}
}

// MustParse is Parse for literals in tests and fixtures; it panics on error.
func MustParse(s string) Document {
	d, err := Parse([]byte(s))
	if err != nil {
		panic(fmt.Sprintf("document.MustParse(%q): %v", s, err))
	}
	return d
}

func fromObject(res gjson.Result) Document {
	var d Document
	res.ForEach(func(key, item gjson.Result) bool {
		d.Set(key.String(), fromResult(item))
		return true
	})
	return d
}

func fromResult(res gjson.Result) Value {
	switch res.Type {
	case gjson.False:
		return BoolValue(false)
	case gjson.True:
		return BoolValue(true)
	case gjson.Number:
		return RawNumber(res.Raw)
	case gjson.String:
		return StringValue(res.Str)
	case gjson.JSON:
		if res.IsArray() {
			var items []Value
			res.ForEach(func(_, item gjson.Result) bool {
				items = append(items, fromResult(item))
				return true
			})
			return Value{kind: List, list: items}
		}
		d := fromObject(res)
		return Value{kind: Object, obj: &d}
	default:
		return NullValue()
	}
}

// MarshalJSON encodes the document as a compact JSON object in field order.
func (d Document) MarshalJSON() ([]byte, error) {
	return d.appendJSON(nil, "", 0), nil
}

// MarshalIndent encodes the document with one field per line, nested by indent.
func (d Document) MarshalIndent(indent string) []byte {
	return d.appendJSON(nil, indent, 0)
}

// MarshalJSON encodes the value as JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.appendJSON(nil, "", 0), nil
}

func (d Document) appendJSON(buf []byte, indent string, depth int) []byte {
	if len(d.keys) == 0 {
		return append(buf, "{}"...)
	}
	buf = append(buf, '{')
	for i, k := range d.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = newline(buf, indent, depth+1)
		buf = appendString(buf, k)
		buf = append(buf, ':')
		if indent != "" {
			buf = append(buf, ' ')
		}
		buf = d.fields[k].appendJSON(buf, indent, depth+1)
	}
	buf = newline(buf, indent, depth)
	return append(buf, '}')
}

func (v Value) appendJSON(buf []byte, indent string, depth int) []byte {
	switch v.kind {
	case String:
		return appendString(buf, v.str)
	case Number:
		return append(buf, v.str...)
	case Bool:
		if v.b {
			return append(buf, "true"...)
		}
		return append(buf, "false"...)
	case List:
		if len(v.list) == 0 {
			return append(buf, "[]"...)
		}
		buf = append(buf, '[')
		for i, item := range v.list {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = newline(buf, indent, depth+1)
			buf = item.appendJSON(buf, indent, depth+1)
		}
		buf = newline(buf, indent, depth)
		return append(buf, ']')
	case Object:
		return v.obj.appendJSON(buf, indent, depth)
	default:
		return append(buf, "null"...)
	}
}

func newline(buf []byte, indent string, depth int) []byte {
	if indent == "" {
		return buf
	}
	buf = append(buf, '\n')
	return append(buf, strings.Repeat(indent, depth)...)
}

func appendString(buf []byte, s string) []byte {
	b, err := gojson.MarshalNoEscape(s)
	if err != nil {
		// strings always encode
		return append(buf, `""`...)
	}
	return append(buf, b...)
}
