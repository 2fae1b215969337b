package document

import "iter"

// IndexField is the field the warehouse stamps with the category name on write.
const IndexField = "index"

// Document is an ordered mapping from field name to Value.
// Field order is insertion order; it drives projection, join and table column order.
// The zero Document is empty and ready to use.
type Document struct {
	keys   []string
	fields map[string]Value
}

// Get returns the value of a field. A missing field is reported by ok=false.
func (d Document) Get(name string) (Value, bool) {
	v, ok := d.fields[name]
	return v, ok
}

// Has reports whether the field is present.
func (d Document) Has(name string) bool {
	_, ok := d.fields[name]
	return ok
}

// Set stores a field. A new field is appended to the field order; an existing one keeps its position.
func (d *Document) Set(name string, v Value) {
	if d.fields == nil {
		d.fields = make(map[string]Value)
	}
	if _, ok := d.fields[name]; !ok {
		d.keys = append(d.keys, name)
	}
	d.fields[name] = v
}

// With returns a copy of the document with the field set.
func (d Document) With(name string, v Value) Document {
	c := d.Clone()
	c.Set(name, v)
	return c
}

// Len returns the number of fields.
func (d Document) Len() int { return len(d.keys) }

// Keys returns the field names in order.
func (d Document) Keys() []string {
	return append([]string(nil), d.keys...)
}

// Fields iterates over (name, value) pairs in field order.
func (d Document) Fields() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, k := range d.keys {
			if !yield(k, d.fields[k]) {
				return
			}
		}
	}
}

// Clone returns a copy that shares no field storage with d.
func (d Document) Clone() Document {
	if d.fields == nil {
		return Document{}
	}
	c := Document{
		keys:   append([]string(nil), d.keys...),
		fields: make(map[string]Value, len(d.fields)),
	}
	for k, v := range d.fields {
		c.fields[k] = v
	}
	return c
}

// Project returns a document holding only the named fields that are present, in the requested order.
func (d Document) Project(names []string) Document {
	var out Document
	for _, name := range names {
		if v, ok := d.fields[name]; ok {
			out.Set(name, v)
		}
	}
	return out
}

// Equal reports whether both documents hold the same fields with equal values, ignoring order.
func (d Document) Equal(o Document) bool {
	if len(d.keys) != len(o.keys) {
		return false
	}
	for k, v := range d.fields {
		ov, ok := o.fields[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// String renders the document as compact JSON.
func (d Document) String() string {
	return string(d.appendJSON(nil, "", 0))
}
