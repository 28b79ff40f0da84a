// Package chunk splits normalized document text into overlapping,
// bounded-size chunks suitable for embedding.
package chunk

import (
	"strings"

	"github.com/google/uuid"

	"github.com/bull/kbvault/internal/model"
)

const (
	// DefaultWindowSize is the chunk window in characters.
	DefaultWindowSize = 1000

	// DefaultOverlap is how many characters consecutive chunks share.
	DefaultOverlap = 200

	// boundarySearchRatio bounds the backward search for a sentence
	// terminator to the last 30% of the window.
	boundarySearchRatio = 0.3
)

// Chunker produces ordered, overlapping chunks from normalized text.
type Chunker struct {
	windowSize int
	overlap    int
}

// NewChunker creates a chunker with the given window and overlap sizes.
// Non-positive values fall back to the defaults.
func NewChunker(windowSize, overlap int) *Chunker {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if overlap < 0 || overlap >= windowSize {
		overlap = DefaultOverlap
		if overlap >= windowSize {
			overlap = windowSize / 5
		}
	}
	return &Chunker{windowSize: windowSize, overlap: overlap}
}

// Split chunks text into windows of at most the configured size. When a
// window would sever a sentence, the cut is nudged back to the closest
// sentence terminator within the last 30% of the window. Indices are rune
// offsets into the normalized text. Text shorter than one window yields
// exactly one chunk spanning the whole text.
func (c *Chunker) Split(text, sourceFileName, corpusID string) []model.Chunk {
	runes := []rune(text)
	if len(strings.TrimSpace(text)) == 0 {
		return nil
	}

	var chunks []model.Chunk
	start := 0
	for start < len(runes) {
		end := start + c.windowSize
		if end >= len(runes) {
			end = len(runes)
		} else if cut := findSentenceCut(runes, start, end); cut > 0 {
			end = cut
		}

		content := string(runes[start:end])
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, model.Chunk{
				ID:             uuid.New().String(),
				Content:        content,
				StartIndex:     start,
				EndIndex:       end,
				SourceFileName: sourceFileName,
				ChunkIndex:     len(chunks),
				CorpusID:       corpusID,
			})
		}

		if end >= len(runes) {
			break
		}
		next := end - c.overlap
		if next <= start {
			// Monotonic progress guard: never regress behind the
			// previous chunk's start.
			next = end
		}
		start = next
	}

	for i := range chunks {
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks
}

// findSentenceCut searches backward from the naive window end for the
// closest sentence terminator. Returns the cut position just past the
// terminator, or 0 when no terminator falls inside the search region.
func findSentenceCut(runes []rune, start, end int) int {
	searchFloor := end - int(float64(end-start)*boundarySearchRatio)
	if searchFloor < start {
		searchFloor = start
	}
	for i := end - 1; i >= searchFloor; i-- {
		switch runes[i] {
		case '.', '?', '!':
			return i + 1
		}
	}
	return 0
}
