// Package storage defines the persistence interface for journal entries,
// chunks, and period summaries.
package storage

import (
	"context"
	"time"

	"github.com/hyperjump/nikki/internal/models"
)

// Storage defines journal persistence operations.
type Storage interface {
	// Entry operations
	CreateEntry(ctx context.Context, entry *models.JournalEntry) error
	GetEntry(ctx context.Context, id string) (*models.JournalEntry, error)
	UpdateEntry(ctx context.Context, entry *models.JournalEntry) error
	DeleteEntry(ctx context.Context, id string) error
	ListEntries(ctx context.Context, offset, limit int) ([]*models.JournalEntry, error)
	// ListEntriesInRange returns entries whose created_at falls in
	// [start, end], both boundaries inclusive, oldest first.
	ListEntriesInRange(ctx context.Context, start, end time.Time) ([]*models.JournalEntry, error)

	// Chunk operations
	BatchCreateChunks(ctx context.Context, chunks []*models.EntryChunk) error
	GetChunk(ctx context.Context, id string) (*models.EntryChunk, error)
	GetChunksByEntryID(ctx context.Context, entryID string) ([]*models.EntryChunk, error)

	// Summary cache. GetSummary returns (nil, nil) when no record exists for
	// the key; PutSummary never overwrites an existing record.
	GetSummary(ctx context.Context, period models.Period, start, end string) (*models.SummaryRecord, error)
	PutSummary(ctx context.Context, rec *models.SummaryRecord) error

	// Stats
	CountEntries(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)
	CountSummaries(ctx context.Context) (int64, error)

	Close() error
}
