package models

import "time"

// ChatSource identifies a journal entry that contributed retrieved context.
type ChatSource struct {
	SourceID string `json:"source_id"`
	Date     string `json:"date"`
}

// ChatResult is the structured answer of the retrieval-augmented chat path.
// Sources lists the deduplicated (source, date) pairs of every chunk supplied
// as context, in retrieval order.
type ChatResult struct {
	Query     string       `json:"query"`
	Answer    string       `json:"answer"`
	Sources   []ChatSource `json:"sources"`
	CreatedAt time.Time    `json:"created_at"`
}
