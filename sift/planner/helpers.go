package planner

import "strings"

// escapeLike escapes LIKE metacharacters in a user-supplied value so the
// value matches literally once the pattern wildcards are appended. Used with
// "ESCAPE '\'" on both backends.
func escapeLike(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch r {
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
