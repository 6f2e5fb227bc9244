// Package strings holds small helpers for string lists read from the
// environment.
package strings

import "strings"

// CompactList trims each value and drops blanks and repeats, keeping the
// first occurrence. "a, ,b,a" split on commas becomes [a b].
func CompactList(values []string) []string {
	out := values[:0:0]
	seen := map[string]bool{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
