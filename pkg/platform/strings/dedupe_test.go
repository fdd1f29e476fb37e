package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"nil slice", nil, nil},
		{"empty slice", []string{}, []string{}},
		{"trims whitespace", []string{"  foo  ", "bar  "}, []string{"foo", "bar"}},
		{"dedupes preserving first-seen order", []string{"foo", "bar", "foo", "baz", "bar"}, []string{"foo", "bar", "baz"}},
		{"drops empty and whitespace-only", []string{"foo", "", "  ", "bar"}, []string{"foo", "bar"}},
		{"case is significant", []string{"Foo", "foo", "FOO"}, []string{"Foo", "foo", "FOO"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeAndTrimLower(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"nil slice", nil, nil},
		{"case folds before deduping", []string{"Foo", "foo", "FOO"}, []string{"foo"}},
		{"trims and folds", []string{"  FOO ", "bar", "Foo", "BAR"}, []string{"foo", "bar"}},
		{"whitespace-only collapses to empty", []string{" ", ""}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrimLower(tt.input))
		})
	}
}
