// Package vector provides the chunk vector index and similarity search.
package vector

import "context"

// VectorIndex defines vector storage and similarity search. The index is
// additive-only: it never deduplicates or merges by source, so re-indexing an
// entry without first clearing its chunks produces duplicates.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns up to k results ordered by descending similarity; ties
	// are broken by insertion order. k larger than the index size returns
	// every stored vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	// Save persists the index so a process restart can reconstruct it.
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// VectorResult is a single search hit; ID is the chunk ID.
type VectorResult struct {
	ID    string
	Score float64 // Inner product; equals cosine similarity for normalized vectors
}
