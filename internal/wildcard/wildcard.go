package wildcard

import "strings"

const C = '*'

// Match reports whether s matches pattern, where '*' in the pattern
// matches any sequence of characters (including none).
func Match(pattern string, s string) bool {
	if !strings.ContainsRune(pattern, C) {
		return pattern == s
	}
	// greedy match with backtracking to the last star
	p, i := 0, 0
	star, mark := -1, 0
	for i < len(s) {
		switch {
		case p < len(pattern) && pattern[p] != C && pattern[p] == s[i]:
			p++
			i++
		case p < len(pattern) && pattern[p] == C:
			star = p
			mark = i
			p++
		case star != -1:
			p = star + 1
			mark++
			i = mark
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == C {
		p++
	}
	return p == len(pattern)
}
