// Package category maps category names to the functions that derive a document's dedup key.
package category

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/ipwarehouse/internal/domain"
	"github.com/kailas-cloud/ipwarehouse/internal/domain/document"
)

// Built-in categories.
const (
	GeoIP  = "geoip"
	RDAP   = "rdap"
	IPRDAP = "ip_rdap"
)

// keySeparator joins tuple keys. It is a control character that does not occur in IPs or handles.
const keySeparator = "\x1f"

// Key is a dedup key. Tuple keys are joined with an internal separator.
type Key string

// KeyFunc derives the dedup key of a document written to a category.
type KeyFunc func(doc document.Document) (Key, error)

// FieldKey keys a category on the concatenation of the given fields.
func FieldKey(fields ...string) KeyFunc {
	return func(doc document.Document) (Key, error) {
		parts := make([]string, len(fields))
		for i, f := range fields {
			v, ok := doc.Get(f)
			if !ok {
				return "", fmt.Errorf("field %q: %w", f, domain.ErrMissingKeyField)
			}
			parts[i] = v.String()
		}
		return Key(strings.Join(parts, keySeparator)), nil
	}
}

// Registry holds the key function of every known category.
type Registry struct {
	funcs map[string]KeyFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]KeyFunc)}
}

// Default returns a registry with the built-in categories.
func Default() *Registry {
	return NewRegistry().
		Register(GeoIP, FieldKey("ip")).
		Register(RDAP, FieldKey("handle")).
		Register(IPRDAP, FieldKey("ip", "handle"))
}

// Register adds or replaces a category.
func (r *Registry) Register(name string, fn KeyFunc) *Registry {
	r.funcs[name] = fn
	return r
}

// Known reports whether the category is registered.
func (r *Registry) Known(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

// names returns the registered category names, sorted.
func (r *Registry) names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KeyFor derives the dedup key of doc within the named category.
func (r *Registry) KeyFor(name string, doc document.Document) (Key, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return "", fmt.Errorf("%q (known: %s): %w", name, strings.Join(r.names(), ", "), domain.ErrUnknownCategory)
	}
	key, err := fn(doc)
	if err != nil {
		return "", fmt.Errorf("category %s: %w", name, err)
	}
	return key, nil
}
