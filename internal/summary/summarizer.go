package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/nikki/internal/apperr"
	"github.com/hyperjump/nikki/internal/llm"
	"github.com/hyperjump/nikki/internal/models"
	"github.com/hyperjump/nikki/internal/storage"
)

// NothingToSummarize is the result text for a range with no entries. It is
// returned to the caller but never cached, so entries written later can still
// produce a real summary for the same range.
const NothingToSummarize = "No journal entries were found in this period, so there is nothing to summarize yet."

// Summarizer computes a summary for a date range, using the summary store as
// an idempotency cache keyed by (period, start, end).
type Summarizer struct {
	storage   storage.Storage
	generator llm.Generator
	logger    *zap.Logger // optional
}

// SummarizerOption configures a Summarizer.
type SummarizerOption func(*Summarizer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) SummarizerOption {
	return func(s *Summarizer) { s.logger = l }
}

// NewSummarizer creates a summarizer over the given store and generator.
func NewSummarizer(store storage.Storage, generator llm.Generator, opts ...SummarizerOption) *Summarizer {
	s := &Summarizer{storage: store, generator: generator}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize returns the summary text for entries in [start, end] inclusive.
// A range with no entries succeeds with NothingToSummarize and caches
// nothing. Otherwise the cache is consulted first; on a miss the model is
// invoked once and the result stored, so a repeat call for the same key
// returns the cached text without another model call. Entry retrieval,
// generation, and storage failures are returned as errors; nothing is cached
// on failure.
func (s *Summarizer) Summarize(ctx context.Context, period models.Period, start, end time.Time) (string, error) {
	entries, err := s.storage.ListEntriesInRange(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("list entries: %w", err)
	}
	if len(entries) == 0 {
		if s.logger != nil {
			s.logger.Debug("no entries in range",
				zap.String("period", string(period)),
				zap.Time("start", start),
				zap.Time("end", end))
		}
		return NothingToSummarize, nil
	}

	startKey := FormatDateTime(start)
	endKey := FormatDateTime(end)
	if cached, err := s.storage.GetSummary(ctx, period, startKey, endKey); err != nil {
		return "", fmt.Errorf("read summary cache: %w", err)
	} else if cached != nil {
		if s.logger != nil {
			s.logger.Debug("summary cache hit",
				zap.String("period", string(period)),
				zap.String("start", startKey))
		}
		return cached.Summary, nil
	}

	system := fmt.Sprintf(
		"The text you received is the user's journal. Summarize the journal for a %s period. "+
			"1-3 sentences, warm and concise. If content is weak, gently suggest improvement.",
		period)
	text, err := s.generator.Generate(ctx, system, BuildDigest(entries))
	if err != nil {
		if !errors.Is(err, apperr.ErrExternal) {
			return "", apperr.E(apperr.ErrExternal, "generate summary: %v", err)
		}
		return "", fmt.Errorf("generate summary: %w", err)
	}

	rec := &models.SummaryRecord{
		Period:    period,
		StartDate: startKey,
		EndDate:   endKey,
		Summary:   text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.storage.PutSummary(ctx, rec); err != nil {
		return "", fmt.Errorf("store summary: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("summary generated",
			zap.String("period", string(period)),
			zap.String("start", startKey),
			zap.Int("entries", len(entries)))
	}
	return text, nil
}
