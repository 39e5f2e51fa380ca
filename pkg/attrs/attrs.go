// Package attrs reads values back out of slog-style key/value lists.
package attrs

// ExtractString returns the string stored under key in a [k1, v1, k2, v2, ...]
// slice, or "" when the key is absent or not a string.
func ExtractString(attrs []any, key string) string {
	if v, ok := lookup(attrs, key).(string); ok {
		return v
	}
	return ""
}

// ExtractInt returns the int stored under key, or 0.
func ExtractInt(attrs []any, key string) int {
	if v, ok := lookup(attrs, key).(int); ok {
		return v
	}
	return 0
}

func lookup(attrs []any, key string) any {
	for i := 0; i < len(attrs)-1; i += 2 {
		if k, ok := attrs[i].(string); ok && k == key {
			return attrs[i+1]
		}
	}
	return nil
}
