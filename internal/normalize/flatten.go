package normalize

import (
	"example.com/backstage/services/logrouter/internal/classify"
)

// Flatten collapses nested objects into one level, joining key paths with "_".
// Arrays are stored as-is and never descended into. Fields are visited in source
// order, so a key produced twice keeps the later value.
func Flatten(obj classify.Object) map[string]any {
	flat := make(map[string]any, len(obj))
	flattenInto(flat, "", obj)
	return flat
}

func flattenInto(flat map[string]any, prefix string, obj classify.Object) {
	for _, field := range obj {
		path := field.Key
		if prefix != "" {
			path = prefix + "_" + field.Key
		}

		if nested, ok := field.Value.(classify.Object); ok {
			flattenInto(flat, path, nested)
			continue
		}
		flat[path] = field.Value
	}
}
