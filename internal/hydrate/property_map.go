package hydrate

// Property binds a logical field name to a dotted document path.
type Property struct {
	Field string
	Path  string
}

// PropertyMap is an ordered list of field-to-path bindings. Order decides
// which missing field is reported first in strict mode. Methods never
// modify the receiver, so a PropertyMap declared once per entity kind can
// be shared freely.
type PropertyMap []Property

// Props builds a PropertyMap from alternating field/path arguments.
// It panics on an odd argument count; it is meant for package-level
// declarations where that is a programming error.
func Props(pairs ...string) PropertyMap {
	if len(pairs)%2 != 0 {
		panic("hydrate: Props requires field/path pairs")
	}

	m := make(PropertyMap, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		m = append(m, Property{Field: pairs[i], Path: pairs[i+1]})
	}

	return m
}

// Fields maps each field to itself as a top-level path. Handy for callers
// asking for extra API fields of a flat response.
func Fields(names ...string) PropertyMap {
	m := make(PropertyMap, 0, len(names))
	for _, n := range names {
		m = append(m, Property{Field: n, Path: n})
	}

	return m
}

// Path returns the path bound to field.
func (m PropertyMap) Path(field string) (string, bool) {
	for _, p := range m {
		if p.Field == field {
			return p.Path, true
		}
	}

	return "", false
}

// Merge returns a new PropertyMap holding m's entries followed by extra's.
// On a field collision the extra entry wins and takes the original's
// position. Duplicate fields within extra resolve to the last one.
func (m PropertyMap) Merge(extra PropertyMap) PropertyMap {
	merged := make(PropertyMap, 0, len(m)+len(extra))
	index := make(map[string]int, len(m)+len(extra))

	for _, p := range m {
		if i, ok := index[p.Field]; ok {
			merged[i] = p
			continue
		}

		index[p.Field] = len(merged)
		merged = append(merged, p)
	}

	for _, p := range extra {
		if i, ok := index[p.Field]; ok {
			merged[i] = p
			continue
		}

		index[p.Field] = len(merged)
		merged = append(merged, p)
	}

	return merged
}
