// Package attrtree provides a generic attribute tree over schemaless
// intelligence-context data. Accessors return explicit defaults on absence
// instead of forcing callers to type-assert nested maps.
package attrtree

import (
	"fmt"
	"sort"
)

// Tree is a read-only view over a nested attribute mapping. The zero value
// and a nil Tree behave as an empty tree: every accessor returns its default.
type Tree struct {
	data map[string]any
}

// New wraps a raw nested mapping. The mapping is not copied; callers must
// not mutate it after handing it over.
func New(data map[string]any) *Tree {
	return &Tree{data: data}
}

// Empty returns a tree with no attributes.
func Empty() *Tree {
	return &Tree{}
}

// IsEmpty reports whether the tree has no attributes at all.
func (t *Tree) IsEmpty() bool {
	return t == nil || len(t.data) == 0
}

// Len returns the number of top-level attributes.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.data)
}

// Keys returns the top-level attribute names in sorted order.
func (t *Tree) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, 0, len(t.data))
	for k := range t.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether a top-level attribute is present.
func (t *Tree) Has(key string) bool {
	if t == nil {
		return false
	}
	_, ok := t.data[key]
	return ok
}

// Group returns the named sub-tree. A missing group or a non-mapping value
// yields an empty tree, never nil.
func (t *Tree) Group(key string) *Tree {
	if t == nil {
		return Empty()
	}
	v, ok := t.data[key]
	if !ok {
		return Empty()
	}
	switch m := v.(type) {
	case map[string]any:
		return &Tree{data: m}
	case map[string]string:
		converted := make(map[string]any, len(m))
		for k, s := range m {
			converted[k] = s
		}
		return &Tree{data: converted}
	default:
		return Empty()
	}
}

// String returns the attribute rendered as a string, or def when absent.
// Non-string scalars are formatted; nested groups yield def.
func (t *Tree) String(key, def string) string {
	if t == nil {
		return def
	}
	v, ok := t.data[key]
	if !ok || v == nil {
		return def
	}
	switch s := v.(type) {
	case string:
		return s
	case map[string]any, map[string]string:
		return def
	case []any:
		return joinList(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Float returns the attribute as a float64, or def when absent or not numeric.
func (t *Tree) Float(key string, def float64) float64 {
	if t == nil {
		return def
	}
	switch v := t.data[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// Flatten renders every scalar top-level attribute as a string, keyed by
// attribute name. Nested groups and nil values are skipped.
func (t *Tree) Flatten() map[string]string {
	if t == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(t.data))
	for k, v := range t.data {
		switch s := v.(type) {
		case nil:
			continue
		case map[string]any, map[string]string:
			continue
		case string:
			if s != "" {
				out[k] = s
			}
		case []any:
			if joined := joinList(s); joined != "" {
				out[k] = joined
			}
		default:
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}

func joinList(items []any) string {
	var out string
	for i, item := range items {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%v", item)
	}
	return out
}
