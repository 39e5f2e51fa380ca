package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "12 mg road, delhi", NormalizeKey("  12 MG Road, Delhi "))
	assert.Equal(t, "", NormalizeKey("   "))
}

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{name: "trims whitespace", input: []string{"  B-1  ", "B-2  "}, expected: []string{"B-1", "B-2"}},
		{name: "removes duplicates preserving order", input: []string{"B-2", "B-1", "B-2"}, expected: []string{"B-2", "B-1"}},
		{name: "drops blanks", input: []string{"", "  ", "B-3"}, expected: []string{"B-3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestSortedSet(t *testing.T) {
	set := map[string]struct{}{"B-9": {}, "B-1": {}, "B-5": {}}
	assert.Equal(t, []string{"B-1", "B-5", "B-9"}, SortedSet(set))
	assert.Empty(t, SortedSet(nil))
}
