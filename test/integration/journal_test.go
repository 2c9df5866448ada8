// Package integration exercises the full journal pipeline against real
// storage and indices.
package integration

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/nikki/internal/embedding"
	"github.com/hyperjump/nikki/internal/indexer"
	"github.com/hyperjump/nikki/internal/jobs"
	"github.com/hyperjump/nikki/internal/keyword"
	"github.com/hyperjump/nikki/internal/llm"
	"github.com/hyperjump/nikki/internal/models"
	"github.com/hyperjump/nikki/internal/rag"
	"github.com/hyperjump/nikki/internal/storage"
	"github.com/hyperjump/nikki/internal/summary"
	"github.com/hyperjump/nikki/internal/vector"
)

func TestIntegration_JournalPipeline(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	embedder := embedding.NewMockEmbedder(16)
	defer embedder.Close()

	vecIndex, err := vector.NewMemoryIndex(16)
	if err != nil {
		t.Fatal(err)
	}
	defer vecIndex.Close()

	kwIndex, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	defer kwIndex.Close()

	chunker, err := indexer.NewChunker(100, 16)
	if err != nil {
		t.Fatal(err)
	}
	idx := indexer.NewIndexer(store, embedder, vecIndex, kwIndex, chunker,
		filepath.Join(dir, "vectors.bin"))

	gen := &llm.MockGenerator{Response: "You went for a 5k run and felt great."}
	answerer := rag.NewAnswerer(store, embedder, vecIndex, gen, 5, 20)
	summarizer := summary.NewSummarizer(store, gen)
	coordinator := jobs.NewCoordinator(summarizer, 2, 8)
	coordinator.Start(ctx)
	defer coordinator.Stop()

	// Create and index an entry the way the entry endpoint does.
	now := time.Now().UTC()
	entry := &models.JournalEntry{
		ID: "entry-1", Title: "Run", Content: "Went for a 5k run, felt great",
		CreatedAt: now, UpdatedAt: now,
	}
	if err := store.CreateEntry(ctx, entry); err != nil {
		t.Fatal(err)
	}
	added, err := idx.IndexEntry(ctx, entry.ID, entry.Title, entry.Content, now.Format("2006-01-02"))
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 {
		t.Fatalf("short entry should index as one chunk, got %d", added)
	}

	// A daily summary job runs to completion and produces text distinct from
	// the raw entry.
	jobID, err := coordinator.Submit("daily")
	if err != nil {
		t.Fatal(err)
	}
	var job *models.Job
	deadline := time.After(5 * time.Second)
	for {
		job, err = coordinator.Poll(jobID)
		if err != nil {
			t.Fatal(err)
		}
		if job.State.Terminal() {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job stuck in %s", job.State)
		case <-time.After(5 * time.Millisecond):
		}
	}
	if job.State != models.JobSucceeded {
		t.Fatalf("job: %+v", job)
	}
	if job.Result == "" || job.Result == entry.Content {
		t.Errorf("summary must be non-empty and distinct from the entry, got %q", job.Result)
	}

	// Chat retrieves the entry and cites it.
	result, err := answerer.Answer(ctx, "How was my run?", 5)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Answer, "run") {
		t.Errorf("answer: got %q", result.Answer)
	}
	if len(result.Sources) != 1 || result.Sources[0].Date != now.Format("2006-01-02") {
		t.Errorf("sources: got %+v", result.Sources)
	}

	// Keyword search finds the entry too.
	hits, err := kwIndex.Search(ctx, "run", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != entry.ID {
		t.Errorf("keyword hits: got %+v", hits)
	}
}
