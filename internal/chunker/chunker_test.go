package chunker

import (
	"strings"
	"testing"
)

func TestSizePolicyTiers(t *testing.T) {
	cases := []struct {
		length         int
		target, overlap int
	}{
		{100, 1200, 250},
		{6000, 1800, 350},
		{30000, 2500, 500},
		{100000, 3000, 600},
	}
	for _, c := range cases {
		target, overlap := sizePolicy(c.length)
		if target != c.target || overlap != c.overlap {
			t.Errorf("sizePolicy(%d) = (%d,%d), want (%d,%d)", c.length, target, overlap, c.target, c.overlap)
		}
	}
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	text := "A short policy notice with no sections at all."
	chunks := Chunk("doc-1", text)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].HasSection {
		t.Error("expected no section header detected")
	}
}

func TestChunkDetectsSectionHeaders(t *testing.T) {
	var b strings.Builder
	b.WriteString("Preamble text before any section.\n\n")
	b.WriteString("Section 1.2\n")
	b.WriteString(strings.Repeat("Body content about admissions policy. ", 80))
	b.WriteString("\n\nSection 2\n")
	b.WriteString(strings.Repeat("Body content about fee structure rules. ", 80))

	chunks := Chunk("doc-2", b.String())
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	var sawSection bool
	for _, c := range chunks {
		if c.HasSection && strings.HasPrefix(c.SectionHeader, "Section") {
			sawSection = true
		}
	}
	if !sawSection {
		t.Error("expected at least one chunk governed by a detected section header")
	}
}

func TestChunkOffsetsAreContiguousAndOrdered(t *testing.T) {
	text := strings.Repeat("Sentence number restating policy text. ", 200)
	chunks := Chunk("doc-3", text)
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has ChunkIndex %d", i, c.ChunkIndex)
		}
		if c.CharOffsetEnd <= c.CharOffsetStart {
			t.Errorf("chunk %d has non-positive span [%d,%d)", i, c.CharOffsetStart, c.CharOffsetEnd)
		}
		if i > 0 && (c.CharOffsetStart <= chunks[i-1].CharOffsetStart || c.CharOffsetStart > chunks[i-1].CharOffsetEnd) {
			t.Errorf("chunk %d starts at %d, not inside (%d,%d] of the previous chunk", i, c.CharOffsetStart, chunks[i-1].CharOffsetStart, chunks[i-1].CharOffsetEnd)
		}
	}
}

func TestChunkEmptyTextReturnsNoChunks(t *testing.T) {
	if chunks := Chunk("doc-4", "   \n\t "); chunks != nil {
		t.Errorf("expected nil chunks for blank text, got %v", chunks)
	}
}
