// Package strings provides key normalization helpers for the risk indexes.
package strings

import (
	"slices"
	"strings"
)

// NormalizeKey trims and lowercases a lookup key so "12 MG Road " and
// "12 mg road" land in the same index bucket.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DedupeAndTrim removes duplicates and empty strings, trimming whitespace from
// each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}
	return result
}

// SortedSet returns the keys of set in ascending order.
func SortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
