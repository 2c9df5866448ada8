// Package indexer provides entry chunking and indexing into storage,
// the vector index, and the keyword index.
package indexer

import (
	"fmt"
	"strings"

	"github.com/hyperjump/nikki/internal/apperr"
	"github.com/hyperjump/nikki/internal/models"
)

// Chunker splits entry text into overlapping word-based chunks with
// deterministic IDs, so re-chunking the same input yields the same chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
// The overlap must be smaller than the size so the window always advances.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, apperr.E(apperr.ErrConfiguration, "chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkSize-chunkOverlap <= 0 {
		return nil, apperr.E(apperr.ErrConfiguration, "chunk overlap %d incompatible with chunk size %d", chunkOverlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Chunk splits text into EntryChunks with overlapping windows. Chunk IDs are
// "<sourceID>_<index>". Text shorter than one window produces a single chunk;
// empty or whitespace-only text produces none.
func (c *Chunker) Chunk(sourceID, date, text string) []*models.EntryChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	chunks := make([]*models.EntryChunk, 0, (len(words)+step-1)/step)
	chunkIndex := 0
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, &models.EntryChunk{
			ID:         fmt.Sprintf("%s_%d", sourceID, chunkIndex),
			EntryID:    sourceID,
			Content:    strings.Join(words[i:end], " "),
			EntryDate:  date,
			ChunkIndex: chunkIndex,
		})
		chunkIndex++
		if end >= len(words) {
			break
		}
	}
	return chunks
}
