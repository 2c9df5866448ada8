package summary

import (
	"fmt"
	"strings"

	"github.com/hyperjump/nikki/internal/models"
)

// BuildDigest renders entries as numbered title/content blocks, the text the
// model is asked to summarize.
func BuildDigest(entries []*models.JournalEntry) string {
	var b strings.Builder
	for i, entry := range entries {
		fmt.Fprintf(&b, "Entry %d\nTitle: %s\nContent: %s\n\n", i+1, entry.Title, entry.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
