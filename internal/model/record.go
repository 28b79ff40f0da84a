package model

import "time"

// Chunk is a bounded contiguous slice of a source document's normalized text.
// Immutable once created; StartIndex and EndIndex are positions in the
// normalized source text, so 0 <= StartIndex < EndIndex <= len(text).
type Chunk struct {
	ID             string
	Content        string
	StartIndex     int
	EndIndex       int
	SourceFileName string
	ChunkIndex     int // Position among the document's chunks (0, 1, 2...)
	TotalChunks    int // Backfilled once the full document is chunked
	CorpusID       string
}

// VectorRecord pairs a chunk with its embedding vector.
// All vectors within one corpus share the same dimension. Records are
// immutable and owned exclusively by the corpus they were created for.
type VectorRecord struct {
	ID        string
	Vector    []float32
	Chunk     Chunk
	CreatedAt time.Time
}
