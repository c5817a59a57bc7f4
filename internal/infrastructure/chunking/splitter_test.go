package chunking

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
)

func TestPageTextAddsMarkersAndSkipsBlankPages(t *testing.T) {
	got := PageText([]domain.Page{
		{Number: 1, Text: "  Article 1. Parties  "},
		{Number: 2, Text: "\n\t"},
		{Number: 3, Text: "Article 2. Term"},
	})
	want := "\n[Page 1]\nArticle 1. Parties\n[Page 3]\nArticle 2. Term"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSplitNumbersChunksPerDocument(t *testing.T) {
	splitter := NewSplitter(40, 10)
	pages := []domain.Page{{Number: 1, Text: strings.Repeat("lease term clause ", 10)}}

	chunks := splitter.Split("lease.pdf", pages)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.ChunkID != i || chunk.DocumentName != "lease.pdf" {
			t.Fatalf("unexpected chunk %d: %+v", i, chunk)
		}
		if utf8.RuneCountInString(chunk.Text) > 40 {
			t.Fatalf("chunk %d exceeds size: %q", i, chunk.Text)
		}
	}
	if !strings.HasPrefix(chunks[0].Text, "[Page 1]") {
		t.Fatalf("expected page marker in first chunk, got %q", chunks[0].Text)
	}
}

func TestSplitTextOverlapsWindows(t *testing.T) {
	splitter := NewSplitter(10, 3)
	got := splitter.SplitText("abcdefghijklmnopqrst")
	if len(got) < 2 {
		t.Fatalf("expected several chunks, got %v", got)
	}
	if got[0] != "abcdefghij" {
		t.Fatalf("unexpected first chunk %q", got[0])
	}
	if !strings.HasPrefix(got[1], "hij") {
		t.Fatalf("expected 3-rune overlap, got %q", got[1])
	}
}

func TestSplitTextPrefersWhitespaceBoundary(t *testing.T) {
	splitter := NewSplitter(12, 0)
	got := splitter.SplitText("termination notice period")
	if got[0] != "termination" {
		t.Fatalf("expected break at word boundary, got %q", got[0])
	}
}

func TestSplitEmptyDocument(t *testing.T) {
	if got := NewSplitter(100, 10).Split("empty.pdf", nil); len(got) != 0 {
		t.Fatalf("expected no chunks, got %v", got)
	}
}

func TestNewSplitterNormalizesOverlap(t *testing.T) {
	s := NewSplitter(100, 150)
	if s.Overlap != 25 {
		t.Fatalf("expected overlap clamped to 25, got %d", s.Overlap)
	}
}
