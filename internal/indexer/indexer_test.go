package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/nikki/internal/apperr"
	"github.com/hyperjump/nikki/internal/embedding"
	"github.com/hyperjump/nikki/internal/storage"
	"github.com/hyperjump/nikki/internal/vector"
)

func newTestIndexer(t *testing.T) (*Indexer, storage.Storage, *vector.MemoryIndex, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "nikki.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	embedder := embedding.NewMockEmbedder(16)
	vecIndex, err := vector.NewMemoryIndex(16)
	if err != nil {
		t.Fatal(err)
	}
	chunker, err := NewChunker(10, 2)
	if err != nil {
		t.Fatal(err)
	}
	indexPath := filepath.Join(dir, "vectors.bin")
	idx := NewIndexer(store, embedder, vecIndex, nil, chunker, indexPath)
	return idx, store, vecIndex, indexPath
}

func TestIndexEntry(t *testing.T) {
	idx, store, vecIndex, indexPath := newTestIndexer(t)
	ctx := context.Background()

	content := strings.Repeat("walked through the park and thought about work ", 5)
	added, err := idx.IndexEntry(ctx, "entry-1", "A walk", content, "2024-03-15")
	if err != nil {
		t.Fatalf("IndexEntry: %v", err)
	}
	if added < 2 {
		t.Fatalf("expected multiple chunks, got %d", added)
	}
	if vecIndex.Size() != added {
		t.Errorf("vector index size %d, want %d", vecIndex.Size(), added)
	}

	chunks, err := store.GetChunksByEntryID(ctx, "entry-1")
	if err != nil {
		t.Fatalf("GetChunksByEntryID: %v", err)
	}
	if len(chunks) != added {
		t.Fatalf("stored chunks %d, want %d", len(chunks), added)
	}
	if chunks[0].ID != "entry-1_0" {
		t.Errorf("first chunk ID: got %q", chunks[0].ID)
	}
	if !strings.HasPrefix(chunks[0].Content, "Title: A walk") {
		t.Errorf("first chunk should carry the base text header, got %q", chunks[0].Content)
	}
	if chunks[0].EntryDate != "2024-03-15" {
		t.Errorf("chunk date: got %q", chunks[0].EntryDate)
	}

	// The index file is persisted after a successful run.
	restored, _ := vector.NewMemoryIndex(16)
	if err := restored.Load(indexPath); err != nil {
		t.Fatalf("Load persisted index: %v", err)
	}
	if restored.Size() != added {
		t.Errorf("persisted index size %d, want %d", restored.Size(), added)
	}
}

func TestIndexEntryShortContent(t *testing.T) {
	idx, _, vecIndex, _ := newTestIndexer(t)

	added, err := idx.IndexEntry(context.Background(), "entry-2", "Note", "slept well", "2024-03-16")
	if err != nil {
		t.Fatalf("IndexEntry: %v", err)
	}
	if added != 1 {
		t.Errorf("short entry should produce one chunk, got %d", added)
	}
	if vecIndex.Size() != 1 {
		t.Errorf("vector index size: got %d", vecIndex.Size())
	}
}

func TestIndexEntryEmptySourceID(t *testing.T) {
	idx, _, _, _ := newTestIndexer(t)

	_, err := idx.IndexEntry(context.Background(), "", "Note", "content", "2024-03-16")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestIndexEntryEmbedFailure(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "nikki.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	vecIndex, _ := vector.NewMemoryIndex(16)
	chunker, _ := NewChunker(10, 2)
	idx := NewIndexer(store, failingEmbedder{}, vecIndex, nil, chunker, "")

	_, err = idx.IndexEntry(context.Background(), "entry-1", "T", "some content here", "2024-03-15")
	if err == nil {
		t.Fatal("expected error from failing embedder")
	}
	if vecIndex.Size() != 0 {
		t.Errorf("vector index must stay empty after embed failure, got %d", vecIndex.Size())
	}
	chunks, _ := store.GetChunksByEntryID(context.Background(), "entry-1")
	if len(chunks) != 0 {
		t.Errorf("no chunks should be stored after embed failure, got %d", len(chunks))
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, apperr.E(apperr.ErrExternal, "embedding service unavailable")
}

func (f failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, apperr.E(apperr.ErrExternal, "embedding service unavailable")
}

func (failingEmbedder) Dimensions() int { return 16 }
func (failingEmbedder) Close() error    { return nil }
