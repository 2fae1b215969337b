package pipeline

import (
	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
)

// apply buffers the whole upstream. Groups are emitted in first-appearance order of their key.
func (j *Join) apply(in Stream) Stream {
	return func(yield func(document.Document, error) bool) {
		var (
			order  []string
			groups = make(map[string]*document.Document)
		)
		for doc, err := range in {
			if err != nil {
				yield(document.Document{}, err)
				return
			}
			v, ok := doc.Get(j.By)
			if !ok {
				continue
			}
			key := groupKey(v)
			acc, seen := groups[key]
			if !seen {
				first := doc.Clone()
				groups[key] = &first
				order = append(order, key)
				continue
			}
			merge(acc, doc)
		}

		for _, key := range order {
			if !yield(*groups[key], nil) {
				return
			}
		}
	}
}

// groupKey distinguishes 7 from "7" by using the JSON encoding. Numbers group by
// their text form so 1.5 and 1.50 land together.
func groupKey(v document.Value) string {
	if v.Kind() == document.Number {
		return v.String()
	}
	b, _ := v.MarshalJSON()
	return string(b)
}

// merge folds src into acc field by field.
func merge(acc *document.Document, src document.Document) {
	for name, incoming := range src.Fields() {
		existing, ok := acc.Get(name)
		switch {
		case !ok:
			acc.Set(name, incoming)
		case existing.Kind() == document.List:
			if !existing.Contains(incoming) {
				acc.Set(name, existing.Append(incoming))
			}
		case existing.Equal(incoming):
		default:
			acc.Set(name, document.ListValue(existing, incoming))
		}
	}
}
