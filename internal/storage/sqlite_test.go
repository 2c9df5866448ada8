package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/nikki/internal/apperr"
	"github.com/hyperjump/nikki/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEntryCRUD(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	entry := &models.JournalEntry{ID: "e1", Title: "Run", Content: "Went for a 5k run, felt great"}
	if err := store.CreateEntry(ctx, entry); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetEntry(ctx, "e1")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Title != "Run" || got.Content != entry.Content {
		t.Errorf("GetEntry: got %+v", got)
	}

	got.Title = "Morning run"
	if err := store.UpdateEntry(ctx, got); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}
	updated, _ := store.GetEntry(ctx, "e1")
	if updated.Title != "Morning run" {
		t.Errorf("title after update: %q", updated.Title)
	}

	if err := store.DeleteEntry(ctx, "e1"); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if _, err := store.GetEntry(ctx, "e1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetEntry after delete: %v", err)
	}
	if err := store.DeleteEntry(ctx, "e1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("DeleteEntry twice: %v", err)
	}
}

func TestListEntriesInRangeInclusive(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	day := func(d int) time.Time {
		return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC)
	}
	for i, d := range []int{1, 10, 15, 20} {
		entry := &models.JournalEntry{
			ID:        string(rune('a' + i)),
			Title:     "t",
			Content:   "c",
			CreatedAt: day(d),
			UpdatedAt: day(d),
		}
		if err := store.CreateEntry(ctx, entry); err != nil {
			t.Fatal(err)
		}
	}

	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC)
	entries, err := store.ListEntriesInRange(ctx, start, end)
	if err != nil {
		t.Fatalf("ListEntriesInRange: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries in range, got %d", len(entries))
	}
	if !entries[0].CreatedAt.Before(entries[1].CreatedAt) {
		t.Error("range results should be oldest first")
	}

	// Boundary: entry exactly at start is included.
	boundary := &models.JournalEntry{ID: "x", Title: "t", Content: "c", CreatedAt: start, UpdatedAt: start}
	if err := store.CreateEntry(ctx, boundary); err != nil {
		t.Fatal(err)
	}
	entries, _ = store.ListEntriesInRange(ctx, start, end)
	if len(entries) != 3 {
		t.Errorf("start boundary should be inclusive, got %d entries", len(entries))
	}
}

func TestChunks(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	chunks := []*models.EntryChunk{
		{ID: "e1_0", EntryID: "e1", Content: "part one", EntryDate: "2024-03-15", ChunkIndex: 0},
		{ID: "e1_1", EntryID: "e1", Content: "part two", EntryDate: "2024-03-15", ChunkIndex: 1},
	}
	if err := store.BatchCreateChunks(ctx, chunks); err != nil {
		t.Fatalf("BatchCreateChunks: %v", err)
	}

	got, err := store.GetChunk(ctx, "e1_1")
	if err != nil {
		t.Fatalf("GetChunk: %v", err)
	}
	if got.Content != "part two" || got.ChunkIndex != 1 || got.EntryDate != "2024-03-15" {
		t.Errorf("GetChunk: got %+v", got)
	}

	byEntry, err := store.GetChunksByEntryID(ctx, "e1")
	if err != nil {
		t.Fatalf("GetChunksByEntryID: %v", err)
	}
	if len(byEntry) != 2 || byEntry[0].ChunkIndex != 0 {
		t.Errorf("GetChunksByEntryID: got %d chunks", len(byEntry))
	}

	if _, err := store.GetChunk(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetChunk missing: %v", err)
	}

	n, err := store.CountChunks(ctx)
	if err != nil || n != 2 {
		t.Errorf("CountChunks: %d, %v", n, err)
	}
}

func TestSummaryGetPut(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	rec, err := store.GetSummary(ctx, models.PeriodDaily, "2024-03-15T00:00:00", "2024-03-15T23:59:59")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if rec != nil {
		t.Fatal("GetSummary on empty store should return nil")
	}

	put := &models.SummaryRecord{
		Period:    models.PeriodDaily,
		StartDate: "2024-03-15T00:00:00",
		EndDate:   "2024-03-15T23:59:59",
		Summary:   "A calm, productive day.",
	}
	if err := store.PutSummary(ctx, put); err != nil {
		t.Fatalf("PutSummary: %v", err)
	}

	rec, err = store.GetSummary(ctx, models.PeriodDaily, put.StartDate, put.EndDate)
	if err != nil {
		t.Fatalf("GetSummary after put: %v", err)
	}
	if rec == nil || rec.Summary != put.Summary {
		t.Errorf("GetSummary after put: got %+v", rec)
	}

	// Duplicate put for the same key is tolerated; the oldest record wins.
	later := &models.SummaryRecord{
		Period:    put.Period,
		StartDate: put.StartDate,
		EndDate:   put.EndDate,
		Summary:   "duplicate",
		CreatedAt: put.CreatedAt.Add(time.Hour),
	}
	if err := store.PutSummary(ctx, later); err != nil {
		t.Fatalf("duplicate PutSummary: %v", err)
	}
	rec, _ = store.GetSummary(ctx, put.Period, put.StartDate, put.EndDate)
	if rec.Summary != put.Summary {
		t.Errorf("GetSummary with duplicates: got %q, want oldest", rec.Summary)
	}

	n, err := store.CountSummaries(ctx)
	if err != nil || n != 2 {
		t.Errorf("CountSummaries: %d, %v", n, err)
	}
}
