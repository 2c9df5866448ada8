package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/nikki/internal/apperr"
	"github.com/hyperjump/nikki/internal/embedding"
	"github.com/hyperjump/nikki/internal/keyword"
	"github.com/hyperjump/nikki/internal/storage"
	"github.com/hyperjump/nikki/internal/vector"
)

// Indexer chunks and embeds journal entries into the vector index, stores the
// chunk rows, and feeds the keyword index. It is safe for concurrent use as
// long as its dependencies are.
type Indexer struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectorIndex  vector.VectorIndex
	keywordIndex keyword.KeywordIndex
	chunker      *Chunker
	indexPath    string
	logger       *zap.Logger // optional; when set, logs debug events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer. indexPath is where the vector index is
// persisted after each successful IndexEntry; empty disables persistence.
func NewIndexer(
	store storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	keywordIndex keyword.KeywordIndex,
	chunker *Chunker,
	indexPath string,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		storage:      store,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		chunker:      chunker,
		indexPath:    indexPath,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexEntry indexes one journal entry for retrieval: composes the base text
// from title, date, and content, chunks it, embeds the chunks, stores the
// chunk rows, adds the vectors to the index, persists the index, and indexes
// the entry for keyword search. date is the entry's date as "2006-01-02".
// Returns the number of chunks added.
//
// The entry itself must already exist in storage; indexing failures leave the
// entry intact and retriable.
func (idx *Indexer) IndexEntry(ctx context.Context, sourceID, title, content, date string) (int, error) {
	if sourceID == "" {
		return 0, apperr.E(apperr.ErrValidation, "source ID is required")
	}
	base := fmt.Sprintf("Title: %s\nDate: %s\nContent: %s", title, date, Preprocess(content))
	chunks := idx.chunker.Chunk(sourceID, date, base)
	if len(chunks) == 0 {
		return 0, nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	chunkIDs := make([]string, len(chunks))
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
		chunkIDs[i] = chunks[i].ID
	}
	if err := idx.storage.BatchCreateChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	if err := idx.vectorIndex.Add(ctx, chunkIDs, embeddings); err != nil {
		return 0, fmt.Errorf("index vectors: %w", err)
	}
	if idx.indexPath != "" {
		if err := idx.vectorIndex.Save(idx.indexPath); err != nil {
			return 0, fmt.Errorf("persist vector index: %w", err)
		}
	}
	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.Index(ctx, sourceID, title, content); err != nil {
			return 0, fmt.Errorf("index keywords: %w", err)
		}
	}
	if idx.logger != nil {
		idx.logger.Debug("entry indexed",
			zap.String("source_id", sourceID),
			zap.Int("chunks", len(chunks)))
	}
	return len(chunks), nil
}
