package steam

import (
	"html"
	"strings"
)

// stripTags removes markup from storefront rich text: anything between '<'
// and the next '>' is dropped (an unterminated '<' drops the rest), entities
// are decoded, and whitespace runs collapse to single spaces.
func stripTags(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseSpace(s)
	}
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case inTag:
			if r == '>' {
				inTag = false
				b.WriteByte(' ')
			}
		case r == '<':
			inTag = true
		default:
			b.WriteRune(r)
		}
	}
	return collapseSpace(html.UnescapeString(b.String()))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
