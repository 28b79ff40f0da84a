package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultBatchSize keeps per-request payloads small so a single slow
	// batch cannot stall ingestion for long.
	DefaultBatchSize = 4

	// DefaultBatchDelay is the pause between consecutive batches,
	// respecting backend throughput limits.
	DefaultBatchDelay = 200 * time.Millisecond
)

// Embedder batches embedding requests against a Backend.
// Output vectors preserve input order; the failure of any batch fails the
// whole call so callers never see partial silent drops.
type Embedder struct {
	backend   Backend
	batchSize int
	delay     time.Duration
	logger    *slog.Logger
}

// NewEmbedder creates an Embedder. Non-positive batchSize and delay fall
// back to the defaults.
func NewEmbedder(backend Backend, batchSize int, delay time.Duration, logger *slog.Logger) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if delay <= 0 {
		delay = DefaultBatchDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{backend: backend, batchSize: batchSize, delay: delay, logger: logger}
}

// EmbedAll generates one vector per input text, in input order.
func (e *Embedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	allVectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		batch := texts[i:end]

		if i > 0 {
			select {
			case <-time.After(e.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		vectors, err := e.backend.EmbedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("batch %d-%d: got %d vectors for %d texts", i, end, len(vectors), len(batch))
		}
		allVectors = append(allVectors, vectors...)
		e.logger.Debug("embedded batch", "from", i, "to", end, "total", len(texts))
	}

	return allVectors, nil
}

// Backend exposes the wrapped backend for callers that also need
// generation or availability checks.
func (e *Embedder) Backend() Backend {
	return e.backend
}
