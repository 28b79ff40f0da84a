// Package embed wraps pluggable embedding and text-generation backends
// behind a narrow capability interface and adds batching, retry and
// caching on top.
package embed

import (
	"context"
	"errors"
)

// ErrBackendUnavailable signals that the embedding/generation service
// cannot be reached. Jobs fail on it; the queue continues with the next job.
var ErrBackendUnavailable = errors.New("backend unavailable")

// Backend is the capability contract for an embedding/generation service.
// Implementations may be remote (OpenAI) or local; callers never depend on
// which one served the request.
type Backend interface {
	// Embed produces one fixed-dimension vector for the text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch produces vectors for all texts in input order. A failure
	// of any one item fails the whole call; there are no partial results.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Generate produces a completion for the prompt. systemPrompt may be
	// empty.
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)

	// IsAvailable reports whether the backend can currently serve requests.
	IsAvailable(ctx context.Context) bool

	// ModelName identifies the embedding model, used for cache keys and
	// usage reporting.
	ModelName() string
}
