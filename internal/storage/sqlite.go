// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/nikki/internal/apperr"
	"github.com/hyperjump/nikki/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_created_at ON entries(created_at);

	CREATE TABLE IF NOT EXISTS entry_chunks (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL,
		content TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_entry_id ON entry_chunks(entry_id);

	CREATE TABLE IF NOT EXISTS summaries (
		period TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		summary TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_summaries_key ON summaries(period, start_date, end_date);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateEntry inserts a journal entry. CreatedAt/UpdatedAt are set when zero.
func (s *SQLiteStorage) CreateEntry(ctx context.Context, entry *models.JournalEntry) error {
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = entry.CreatedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (id, title, content, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.Title, entry.Content, entry.CreatedAt, entry.UpdatedAt,
	)
	return err
}

// GetEntry returns an entry by ID.
func (s *SQLiteStorage) GetEntry(ctx context.Context, id string) (*models.JournalEntry, error) {
	var entry models.JournalEntry
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, created_at, updated_at FROM entries WHERE id = ?`, id,
	).Scan(&entry.ID, &entry.Title, &entry.Content, &entry.CreatedAt, &entry.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.E(apperr.ErrNotFound, "entry %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateEntry updates an existing entry's title and content. Chunks already in
// the vector index are not touched; edits do not propagate to retrieval.
func (s *SQLiteStorage) UpdateEntry(ctx context.Context, entry *models.JournalEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE entries SET title = ?, content = ?, updated_at = ? WHERE id = ?`,
		entry.Title, entry.Content, entry.UpdatedAt, entry.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return apperr.E(apperr.ErrNotFound, "entry %s", entry.ID)
	}
	return nil
}

// DeleteEntry removes an entry by ID.
func (s *SQLiteStorage) DeleteEntry(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return apperr.E(apperr.ErrNotFound, "entry %s", id)
	}
	return nil
}

// ListEntries returns entries newest first with offset and limit.
func (s *SQLiteStorage) ListEntries(ctx context.Context, offset, limit int) ([]*models.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, created_at, updated_at
		 FROM entries ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListEntriesInRange returns entries created in [start, end] inclusive, oldest first.
func (s *SQLiteStorage) ListEntriesInRange(ctx context.Context, start, end time.Time) ([]*models.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, created_at, updated_at
		 FROM entries WHERE created_at >= ? AND created_at <= ? ORDER BY created_at ASC`,
		start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]*models.JournalEntry, error) {
	var entries []*models.JournalEntry
	for rows.Next() {
		var entry models.JournalEntry
		if err := rows.Scan(&entry.ID, &entry.Title, &entry.Content, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// BatchCreateChunks inserts chunks in a transaction.
func (s *SQLiteStorage) BatchCreateChunks(ctx context.Context, chunks []*models.EntryChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entry_chunks (id, entry_id, content, entry_date, chunk_index, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, chunk := range chunks {
		chunk.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.EntryID, chunk.Content, chunk.EntryDate, chunk.ChunkIndex, chunk.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunk returns a chunk by ID.
func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*models.EntryChunk, error) {
	var chunk models.EntryChunk
	err := s.db.QueryRowContext(ctx,
		`SELECT id, entry_id, content, entry_date, chunk_index, created_at
		 FROM entry_chunks WHERE id = ?`, id,
	).Scan(&chunk.ID, &chunk.EntryID, &chunk.Content, &chunk.EntryDate, &chunk.ChunkIndex, &chunk.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.E(apperr.ErrNotFound, "chunk %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// GetChunksByEntryID returns all chunks for an entry ordered by chunk_index.
func (s *SQLiteStorage) GetChunksByEntryID(ctx context.Context, entryID string) ([]*models.EntryChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entry_id, content, entry_date, chunk_index, created_at
		 FROM entry_chunks WHERE entry_id = ? ORDER BY chunk_index`,
		entryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.EntryChunk
	for rows.Next() {
		var chunk models.EntryChunk
		if err := rows.Scan(&chunk.ID, &chunk.EntryID, &chunk.Content, &chunk.EntryDate, &chunk.ChunkIndex, &chunk.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// GetSummary returns the summary record for (period, start, end), or (nil, nil)
// when absent. If duplicate records exist for the key (the accepted
// check-then-act race), the oldest wins so repeated reads stay stable.
func (s *SQLiteStorage) GetSummary(ctx context.Context, period models.Period, start, end string) (*models.SummaryRecord, error) {
	var rec models.SummaryRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT period, start_date, end_date, summary, created_at
		 FROM summaries WHERE period = ? AND start_date = ? AND end_date = ?
		 ORDER BY created_at ASC LIMIT 1`,
		period, start, end,
	).Scan(&rec.Period, &rec.StartDate, &rec.EndDate, &rec.Summary, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutSummary inserts a summary record. Callers check GetSummary first;
// uniqueness of the key is not enforced here (see the summarizer).
func (s *SQLiteStorage) PutSummary(ctx context.Context, rec *models.SummaryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries (period, start_date, end_date, summary, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Period, rec.StartDate, rec.EndDate, rec.Summary, rec.CreatedAt,
	)
	return err
}

// CountEntries returns the total number of entries.
func (s *SQLiteStorage) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entry_chunks`).Scan(&count)
	return count, err
}

// CountSummaries returns the total number of stored summaries.
func (s *SQLiteStorage) CountSummaries(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summaries`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
