// Package hydrate maps nested JSON documents returned by the SharePoint REST
// API onto flat property sets using declarative dotted-path property maps.
//
// Hydration is two-phase: the generic pass in this package copies resolved
// leaf values verbatim into a Target, and the owning entity then coerces
// those raw values into typed fields (timestamps, integers) in its own
// post-hydration step.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Document is a decoded JSON object. Values inside it are one of nil, bool,
// json.Number, string, []any, or map[string]any.
type Document = map[string]any

// pathSeparator splits a property path into traversal segments.
const pathSeparator = "."

// Decode parses a JSON object into a Document. Numbers are decoded as
// json.Number so large epoch values survive without float rounding.
// An empty body decodes to an empty Document, since many SharePoint write
// operations return no content.
func Decode(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("hydrate: decoding document: %w", err)
	}

	if doc == nil {
		// The body was the literal "null".
		doc = Document{}
	}

	return doc, nil
}

// Resolve walks doc along the dotted path and returns the value found there.
// The second return value is false when any segment is absent. Only objects
// are traversed: a scalar, array, or null encountered before the last
// segment counts as absent. A null leaf is present and resolves to nil.
func Resolve(doc any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	return resolveSegments(doc, strings.Split(path, pathSeparator))
}

func resolveSegments(node any, segments []string) (any, bool) {
	if len(segments) == 0 {
		return node, true
	}

	obj, ok := node.(map[string]any)
	if !ok {
		return nil, false
	}

	child, ok := obj[segments[0]]
	if !ok {
		return nil, false
	}

	return resolveSegments(child, segments[1:])
}
