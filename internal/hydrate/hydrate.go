package hydrate

import (
	"errors"
	"fmt"
	"maps"
)

// ErrMissingField is matched by every MissingFieldError.
var ErrMissingField = errors.New("hydrate: missing field")

// MissingFieldError reports a mapped path that is absent from the document
// during strict hydration.
type MissingFieldError struct {
	Field string
	Path  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("hydrate: field %q: path %q not found in document", e.Field, e.Path)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// Target receives resolved values. Record is the standard implementation;
// entities embed it and read typed values back in their post-hydration step.
type Target interface {
	// Declares reports whether field belongs to the target's built-in schema.
	Declares(field string) bool
	// Set assigns a declared field.
	Set(field string, value any)
	// SetExtra stores a field outside the built-in schema.
	SetExtra(field string, value any)
	// SetSource records the document the target was last hydrated from.
	SetSource(doc any)
}

type assignment struct {
	field string
	value any
}

// Hydrate resolves every entry of props merged with extra against doc and
// assigns the leaf values to target verbatim.
//
// With allowMissing false, the first unresolved entry (in map order) makes
// Hydrate return a *MissingFieldError, and target is left untouched. With
// allowMissing true, unresolved fields keep whatever value target already
// holds, so a partial document only updates the fields it carries.
//
// Fields target does not declare are written to its extra bag.
func Hydrate(target Target, doc any, props, extra PropertyMap, allowMissing bool) error {
	merged := props.Merge(extra)
	resolved := make([]assignment, 0, len(merged))

	for _, p := range merged {
		v, ok := Resolve(doc, p.Path)
		if !ok {
			if allowMissing {
				continue
			}

			return &MissingFieldError{Field: p.Field, Path: p.Path}
		}

		resolved = append(resolved, assignment{field: p.Field, value: v})
	}

	for _, a := range resolved {
		if target.Declares(a.field) {
			target.Set(a.field, a.value)
			continue
		}

		target.SetExtra(a.field, a.value)
	}

	target.SetSource(doc)

	return nil
}

// Record is a generic hydration target: a fixed set of declared fields,
// their raw values, an extra bag, and the source document.
// The zero value declares nothing; use NewRecord.
type Record struct {
	declared map[string]bool
	fields   map[string]any
	extra    map[string]any
	source   any
}

// NewRecord declares every field named in schema.
func NewRecord(schema PropertyMap) Record {
	declared := make(map[string]bool, len(schema))
	for _, p := range schema {
		declared[p.Field] = true
	}

	return Record{
		declared: declared,
		fields:   make(map[string]any, len(schema)),
		extra:    make(map[string]any),
	}
}

// Declares implements Target.
func (r *Record) Declares(field string) bool {
	return r.declared[field]
}

// Set implements Target.
func (r *Record) Set(field string, value any) {
	if r.fields == nil {
		r.fields = make(map[string]any)
	}

	r.fields[field] = value
}

// SetExtra implements Target.
func (r *Record) SetExtra(field string, value any) {
	if r.extra == nil {
		r.extra = make(map[string]any)
	}

	r.extra[field] = value
}

// SetSource implements Target.
func (r *Record) SetSource(doc any) {
	r.source = doc
}

// Get returns the raw value of a declared field and whether it has been set.
func (r *Record) Get(field string) (any, bool) {
	v, ok := r.fields[field]
	return v, ok
}

// Has reports whether a declared field has been set.
func (r *Record) Has(field string) bool {
	_, ok := r.fields[field]
	return ok
}

// Extra returns a copy of the extra bag.
func (r *Record) Extra() map[string]any {
	return maps.Clone(r.extra)
}

// ExtraValue returns a single extra field.
func (r *Record) ExtraValue(field string) (any, bool) {
	v, ok := r.extra[field]
	return v, ok
}

// Source returns the document the record was last hydrated from.
func (r *Record) Source() any {
	return r.source
}
