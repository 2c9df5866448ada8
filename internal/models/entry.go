// Package models defines core data structures for journal entries, chunks,
// summaries, jobs, and chat results.
package models

import "time"

// JournalEntry is a stored journal record. Entries are immutable once created
// except for title/content edits, which do not propagate to the vector index.
type JournalEntry struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EntryInput is the input for creating a journal entry.
type EntryInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// EntryUpdate is a partial update; nil fields are left unchanged.
type EntryUpdate struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// EntryChunk is a derived, disposable slice of an entry used for semantic
// retrieval. EntryDate is the owning entry's creation date truncated to day
// (YYYY-MM-DD). ChunkIndex is the position among chunks of the same entry,
// starting at 0.
type EntryChunk struct {
	ID         string    `json:"id" db:"id"`
	EntryID    string    `json:"entry_id" db:"entry_id"`
	Content    string    `json:"content" db:"content"`
	EntryDate  string    `json:"entry_date" db:"entry_date"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	Embedding  []float32 `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
