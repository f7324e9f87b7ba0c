package classify

import "strings"

// Normalize produces the canonical URL string shared by the lexical
// vectorizer and the numeric feature extractor. Scheme and "www." markers are
// removed wherever they occur, not only as prefixes, and a lone trailing slash
// is dropped.
func Normalize(raw string) string {
	u := strings.TrimSpace(raw)
	u = strings.ReplaceAll(u, "https://", "")
	u = strings.ReplaceAll(u, "http://", "")
	u = strings.ReplaceAll(u, "www.", "")
	if strings.HasSuffix(u, "/") && strings.Count(u, "/") == 1 {
		u = u[:len(u)-1]
	}
	return u
}
