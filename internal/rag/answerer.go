// Package rag answers questions grounded in retrieved journal entries.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/nikki/internal/apperr"
	"github.com/hyperjump/nikki/internal/embedding"
	"github.com/hyperjump/nikki/internal/llm"
	"github.com/hyperjump/nikki/internal/models"
	"github.com/hyperjump/nikki/internal/storage"
	"github.com/hyperjump/nikki/internal/vector"
)

const systemPrompt = "You are a personal AI journal assistant. " +
	"You answer ONLY from the user's journal memory. " +
	"If the journal context does not contain the answer, say you don't know. " +
	"Answer naturally, like a personal assistant. Be clear and concise."

// Answerer runs the retrieval-augmented answer pipeline: embed the question,
// retrieve the nearest chunks, and generate an answer grounded in them.
type Answerer struct {
	storage     storage.Storage
	embedder    embedding.Embedder
	vectorIndex vector.VectorIndex
	generator   llm.Generator
	defaultTopK int
	maxTopK     int
	logger      *zap.Logger // optional
}

// AnswererOption configures an Answerer.
type AnswererOption func(*Answerer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) AnswererOption {
	return func(a *Answerer) { a.logger = l }
}

// NewAnswerer creates an answerer. defaultTopK is used when a request passes
// topK <= 0; maxTopK caps requested values.
func NewAnswerer(
	store storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	generator llm.Generator,
	defaultTopK, maxTopK int,
	opts ...AnswererOption,
) *Answerer {
	a := &Answerer{
		storage:     store,
		embedder:    embedder,
		vectorIndex: vectorIndex,
		generator:   generator,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Answer embeds the query, retrieves up to topK chunks, and generates a
// grounded answer. Sources lists the distinct (entry, date) pairs of the
// chunks supplied as context, in retrieval order. An empty index is not an
// error; the generator is still asked, with no journal context.
func (a *Answerer) Answer(ctx context.Context, query string, topK int) (*models.ChatResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.E(apperr.ErrValidation, "query is required")
	}
	if topK <= 0 {
		topK = a.defaultTopK
	}
	if a.maxTopK > 0 && topK > a.maxTopK {
		topK = a.maxTopK
	}

	queryEmbedding, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := a.vectorIndex.Search(ctx, queryEmbedding, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	var (
		contextBlocks []string
		sources       []models.ChatSource
		seen          = make(map[models.ChatSource]bool)
	)
	for _, hit := range hits {
		chunk, err := a.storage.GetChunk(ctx, hit.ID)
		if err != nil {
			// The vector index can outlive chunk rows (e.g. an entry deleted
			// after indexing); skip rather than fail the whole answer.
			if a.logger != nil {
				a.logger.Debug("skipping stale vector hit", zap.String("chunk_id", hit.ID))
			}
			continue
		}
		contextBlocks = append(contextBlocks,
			fmt.Sprintf("[entry %s | %s]\n%s", chunk.EntryID, chunk.EntryDate, chunk.Content))
		src := models.ChatSource{SourceID: chunk.EntryID, Date: chunk.EntryDate}
		if !seen[src] {
			seen[src] = true
			sources = append(sources, src)
		}
	}

	user := fmt.Sprintf("Context (journal memory):\n%s\n\nUser question:\n%s",
		strings.Join(contextBlocks, "\n\n"), query)
	answer, err := a.generator.Generate(ctx, systemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	if a.logger != nil {
		a.logger.Debug("answered query",
			zap.Int("chunks_retrieved", len(hits)),
			zap.Int("sources", len(sources)))
	}
	return &models.ChatResult{
		Query:     query,
		Answer:    answer,
		Sources:   sources,
		CreatedAt: time.Now().UTC(),
	}, nil
}
