package jsonobject

import (
	"errors"
	"fmt"
	"strings"
)

// InternalPrefix marks names that resolve against the attribute table
// instead of the raw document.
const InternalPrefix = "_"

var (
	// ErrFieldNotFound is returned when a business field is missing from the raw document.
	ErrFieldNotFound = errors.New("field not found")
	// ErrAttributeNotFound is returned when an internal attribute is not set.
	ErrAttributeNotFound = errors.New("attribute not found")
)

// Object wraps a raw JSON document and a table of internal attributes.
type Object struct {
	raw   map[string]any
	attrs map[string]any
}

// New creates an Object holding a deep copy of raw. A nil raw gives an empty document.
func New(raw map[string]any) *Object {
	doc := make(map[string]any, len(raw))
	for k, v := range raw {
		doc[k] = Clone(v)
	}
	return &Object{raw: doc, attrs: make(map[string]any)}
}

// Get looks up name. Names starting with InternalPrefix resolve against the
// attribute table, everything else against the raw document.
func (o *Object) Get(name string) (any, error) {
	if strings.HasPrefix(name, InternalPrefix) {
		v, ok := o.attrs[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrAttributeNotFound, name)
		}
		return v, nil
	}
	v, ok := o.raw[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, name)
	}
	return v, nil
}

// Has reports whether the raw document contains name.
func (o *Object) Has(name string) bool {
	_, ok := o.raw[name]
	return ok
}

// String returns the raw field as a string, or "" if it is missing or not a string.
func (o *Object) String(name string) string {
	s, _ := o.raw[name].(string)
	return s
}

// Map returns the raw field as a JSON object, or nil.
func (o *Object) Map(name string) map[string]any {
	m, _ := o.raw[name].(map[string]any)
	return m
}

// Set stores a raw document field.
func (o *Object) Set(name string, v any) {
	o.raw[name] = v
}

// SetAttr stores an internal attribute. The name must carry InternalPrefix.
func (o *Object) SetAttr(name string, v any) {
	if !strings.HasPrefix(name, InternalPrefix) {
		panic("jsonobject: attribute name without internal prefix: " + name)
	}
	o.attrs[name] = v
}

// Raw returns the underlying document. Callers that keep it must not mutate it.
func (o *Object) Raw() map[string]any {
	return o.raw
}

// Filter returns a shallow copy of the document restricted to keys.
// Keys absent from the document are not added.
func (o *Object) Filter(keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := o.raw[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Clone deep-copies JSON-shaped values (maps, slices, scalars).
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = Clone(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = Clone(vv)
		}
		return s
	default:
		return v
	}
}
