// Package keyword provides full-text keyword search over journal entries.
package keyword

import "context"

// KeywordIndex defines keyword indexing and search over entries.
type KeywordIndex interface {
	Index(ctx context.Context, id, title, content string) error
	Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// KeywordResult is a single keyword search hit; ID is the entry ID.
type KeywordResult struct {
	ID    string
	Score float64
}
