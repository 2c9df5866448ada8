// Package llm provides the language-model capability used for summaries and
// journal-grounded answers.
package llm

import "context"

// Generator produces text from a system instruction and user text. The call
// blocks; retries and cancellation policy belong to the caller.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
	ModelName() string
	Close() error
}
