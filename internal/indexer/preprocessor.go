package indexer

import (
	"strings"
	"unicode"
)

// Preprocess normalizes entry text before chunking: trims leading and
// trailing whitespace and collapses runs of whitespace to a single space.
func Preprocess(text string) string {
	var b strings.Builder
	wasSpace := false
	for _, r := range strings.TrimSpace(text) {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
			continue
		}
		b.WriteRune(r)
		wasSpace = false
	}
	return b.String()
}
