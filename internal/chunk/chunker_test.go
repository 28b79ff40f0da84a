package chunk

import (
	"strings"
	"testing"
)

// TestSplit_ShortText verifies that text shorter than one window produces
// exactly one chunk spanning the whole text.
func TestSplit_ShortText(t *testing.T) {
	text := "Just a short note about nothing in particular."
	chunker := NewChunker(1000, 200)

	chunks := chunker.Split(text, "note.txt", "corpus-1")
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}

	c := chunks[0]
	if c.StartIndex != 0 || c.EndIndex != len([]rune(text)) {
		t.Errorf("Chunk span: expected [0,%d], got [%d,%d]", len(text), c.StartIndex, c.EndIndex)
	}
	if c.Content != text {
		t.Errorf("Chunk content does not match source text")
	}
	if c.TotalChunks != 1 {
		t.Errorf("TotalChunks: expected 1, got %d", c.TotalChunks)
	}
	if c.SourceFileName != "note.txt" || c.CorpusID != "corpus-1" {
		t.Errorf("Chunk metadata not propagated: %+v", c)
	}
}

// TestSplit_ThreeWindows checks the 2,400-character case: windows of 1000
// with overlap 200 yield three chunks spanning approx [0,1000], [800,1800]
// and [1600,2400].
func TestSplit_ThreeWindows(t *testing.T) {
	// No sentence terminators, so no boundary nudging.
	text := strings.Repeat("abcdefgh", 300) // 2400 chars
	chunker := NewChunker(1000, 200)

	chunks := chunker.Split(text, "doc.txt", "c")
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}

	spans := [][2]int{{0, 1000}, {800, 1800}, {1600, 2400}}
	for i, want := range spans {
		if chunks[i].StartIndex != want[0] || chunks[i].EndIndex != want[1] {
			t.Errorf("Chunk %d span: expected %v, got [%d,%d]",
				i, want, chunks[i].StartIndex, chunks[i].EndIndex)
		}
	}
}

// TestSplit_SentenceBoundary verifies the cut is nudged backward to the
// closest sentence terminator within the last 30% of the window.
func TestSplit_SentenceBoundary(t *testing.T) {
	// 1200 chars; a period sits at index 899, inside the search region
	// [700, 1000) of the first window.
	text := strings.Repeat("a", 899) + "." + strings.Repeat("b", 300)
	chunker := NewChunker(1000, 200)

	chunks := chunker.Split(text, "doc.txt", "c")
	if len(chunks) < 2 {
		t.Fatalf("Expected at least 2 chunks, got %d", len(chunks))
	}
	if chunks[0].EndIndex != 900 {
		t.Errorf("First chunk end: expected 900 (just past the period), got %d", chunks[0].EndIndex)
	}
	if !strings.HasSuffix(chunks[0].Content, ".") {
		t.Errorf("First chunk should end at the sentence terminator")
	}
	if chunks[1].StartIndex != 700 {
		t.Errorf("Second chunk start: expected 700 (end-overlap), got %d", chunks[1].StartIndex)
	}
}

// TestSplit_CoverageAndOrdering checks the chunk-coverage property: chunks
// tile the text with overlap, indices strictly increase, and totalChunks
// matches the final count.
func TestSplit_CoverageAndOrdering(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 200)
	text = strings.TrimSpace(text)
	chunker := NewChunker(1000, 200)

	chunks := chunker.Split(text, "fox.txt", "c")
	if len(chunks) == 0 {
		t.Fatal("Expected chunks")
	}

	runes := []rune(text)
	if chunks[0].StartIndex != 0 {
		t.Errorf("First chunk must start at 0, got %d", chunks[0].StartIndex)
	}
	if last := chunks[len(chunks)-1]; last.EndIndex != len(runes) {
		t.Errorf("Last chunk must end at %d, got %d", len(runes), last.EndIndex)
	}

	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("Chunk %d has index %d", i, c.ChunkIndex)
		}
		if c.TotalChunks != len(chunks) {
			t.Errorf("Chunk %d TotalChunks: expected %d, got %d", i, len(chunks), c.TotalChunks)
		}
		if c.StartIndex >= c.EndIndex {
			t.Errorf("Chunk %d has empty span [%d,%d]", i, c.StartIndex, c.EndIndex)
		}
		if i > 0 {
			prev := chunks[i-1]
			if c.StartIndex <= prev.StartIndex {
				t.Errorf("Chunk %d start %d does not advance past previous start %d",
					i, c.StartIndex, prev.StartIndex)
			}
			if c.StartIndex > prev.EndIndex {
				t.Errorf("Gap between chunk %d end %d and chunk %d start %d",
					i-1, prev.EndIndex, i, c.StartIndex)
			}
		}
	}
}

// TestSplit_Whitespace verifies whitespace-only input yields no chunks.
func TestSplit_Whitespace(t *testing.T) {
	chunker := NewChunker(1000, 200)
	if chunks := chunker.Split("   \n\t  ", "empty.txt", "c"); chunks != nil {
		t.Errorf("Expected no chunks for whitespace input, got %d", len(chunks))
	}
	if chunks := chunker.Split("", "empty.txt", "c"); chunks != nil {
		t.Errorf("Expected no chunks for empty input, got %d", len(chunks))
	}
}

// TestSplit_MonotonicProgress exercises the guard against regressing
// window starts when overlap would outrun a tiny window.
func TestSplit_MonotonicProgress(t *testing.T) {
	text := strings.Repeat("x", 50)
	chunker := NewChunker(10, 9)

	chunks := chunker.Split(text, "tiny.txt", "c")
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartIndex <= chunks[i-1].StartIndex {
			t.Fatalf("Chunk %d start %d regressed behind previous start %d",
				i, chunks[i].StartIndex, chunks[i-1].StartIndex)
		}
	}
}
