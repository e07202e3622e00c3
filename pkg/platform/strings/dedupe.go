// Package strings provides string slice helpers for configuration values.
package strings

import (
	"slices"
	"strings"
)

// DedupeAndTrim trims every element, drops empties and repeats, and keeps
// the first-seen order. A nil or empty input is returned unchanged.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
