package clone

import "slices"

func CloneStringMap(original map[string]string) map[string]string {
	if original == nil {
		return nil
	}
	c := make(map[string]string, len(original))
	for k, v := range original {
		c[k] = v
	}
	return c
}

// CloneAnyMap copies a map of loosely typed values. Nested maps
// and slices are copied as well so that the copy can be mutated
// without affecting the original.
func CloneAnyMap(original map[string]any) map[string]any {
	if original == nil {
		return nil
	}
	c := make(map[string]any, len(original))
	for k, v := range original {
		c[k] = cloneValue(v)
	}
	return c
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneAnyMap(val)
	case map[string]string:
		return CloneStringMap(val)
	case []any:
		c := make([]any, len(val))
		for i, item := range val {
			c[i] = cloneValue(item)
		}
		return c
	case []string:
		return slices.Clone(val)
	default:
		return v
	}
}
