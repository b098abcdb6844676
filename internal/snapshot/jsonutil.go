package snapshot

import "strings"

// extractJSONArray returns the first balanced JSON array in s, its start
// index, and whether one was found. Brackets inside string literals do not
// affect the depth count.
func extractJSONArray(s string) (string, int, bool) {
	start := strings.Index(s, "[")
	if start == -1 {
		return "", -1, false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1]), start, true
			}
		}
	}
	return "", -1, false
}
