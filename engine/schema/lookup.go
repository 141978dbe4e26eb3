package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Lookup walks a value tree along a slash-separated path. List elements
// are addressed by decimal index.
func Lookup(tree any, path string) (any, bool) {
	if tree == nil {
		return nil, false
	}
	cur := tree
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[part]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			cur = v[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Normalize converts a decoded YAML tree so that every mapping is a
// map[string]any and every sequence a []any.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	}
	return v
}
