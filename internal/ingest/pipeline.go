// Package ingest orchestrates the full ingestion pipeline for one
// uploaded document: extract, chunk, embed, relevance-check, append.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bull/kbvault/internal/chunk"
	"github.com/bull/kbvault/internal/embed"
	"github.com/bull/kbvault/internal/extract"
	"github.com/bull/kbvault/internal/guard"
	"github.com/bull/kbvault/internal/model"
	"github.com/bull/kbvault/internal/queue"
	"github.com/bull/kbvault/internal/vector"
)

// Pipeline turns a raw upload into relevance-checked vector records and
// persists them. It is the queue's processor, so at most one pipeline run
// is active at a time.
type Pipeline struct {
	extractor *extract.Extractor
	chunker   *chunk.Chunker
	embedder  *embed.Embedder
	guard     *guard.Guard
	store     *vector.Store
	logger    *slog.Logger
}

func NewPipeline(
	extractor *extract.Extractor,
	chunker *chunk.Chunker,
	embedder *embed.Embedder,
	g *guard.Guard,
	store *vector.Store,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		guard:     g,
		store:     store,
		logger:    logger,
	}
}

// Process implements queue.Processor.
func (p *Pipeline) Process(ctx context.Context, sub queue.Submission, report func(int)) (*queue.Result, error) {
	text, err := p.extractor.Extract(extract.Input{
		Data:      sub.Data,
		MediaType: sub.MediaType,
		FileName:  sub.FileName,
	})
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	report(20)
	p.logger.Debug("document extracted", "file", sub.FileName, "chars", len(text))

	chunks := p.chunker.Split(text, sub.FileName, sub.CorpusID)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("extract: %w", extract.ErrEmptyDocument)
	}
	p.logger.Debug("document chunked", "file", sub.FileName, "chunks", len(chunks))

	// Backend calls start here.
	report(30)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := p.embedder.EmbedAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	now := time.Now()
	records := make([]model.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = model.VectorRecord{
			ID:        uuid.New().String(),
			Vector:    vectors[i],
			Chunk:     c,
			CreatedAt: now,
		}
	}

	report(60)
	existing := p.store.Records(ctx, sub.CorpusID)
	verdict := p.guard.Check(sub.CorpusID, records, existing)
	if !verdict.Accepted {
		return nil, &guard.RejectionError{
			AverageSimilarity: verdict.AverageSimilarity,
			Threshold:         verdict.Threshold,
		}
	}

	report(80)
	cid, err := p.store.Append(ctx, sub.CorpusID, records)
	if err != nil {
		return nil, fmt.Errorf("append: %w", err)
	}

	p.logger.Info("document ingested",
		"corpus", sub.CorpusID, "file", sub.FileName,
		"chunks", len(chunks), "similarity", verdict.AverageSimilarity, "cid", cid)

	return &queue.Result{
		CorpusID:          sub.CorpusID,
		SnapshotCID:       cid,
		ChunkCount:        len(chunks),
		AverageSimilarity: verdict.AverageSimilarity,
	}, nil
}
