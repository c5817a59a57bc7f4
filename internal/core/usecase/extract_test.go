package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
)

type extractorFake struct {
	pages map[string][]domain.Page
}

func (f extractorFake) ExtractPages(_ context.Context, path string) ([]domain.Page, error) {
	pages, ok := f.pages[path]
	if !ok {
		return nil, errors.New("cannot open " + path)
	}
	return pages, nil
}

type pageChunker struct{}

func (pageChunker) Split(documentName string, pages []domain.Page) []domain.Chunk {
	var out []domain.Chunk
	for _, p := range pages {
		if p.Text == "" {
			continue
		}
		out = append(out, domain.Chunk{DocumentName: documentName, ChunkID: len(out), Text: p.Text})
	}
	return out
}

func TestExtractSkipsUnreadableAndEmptyDocuments(t *testing.T) {
	svc := NewExtractService(extractorFake{pages: map[string][]domain.Page{
		"docs/a.pdf":     {{Number: 1, Text: "Article 1"}, {Number: 2, Text: "Article 2"}},
		"docs/blank.pdf": {{Number: 1}},
		"docs/b.pdf":     {{Number: 1, Text: "Schedule A"}},
	}}, pageChunker{})

	chunks, err := svc.Extract(context.Background(), []string{"docs/a.pdf", "docs/broken.pdf", "docs/blank.pdf", "docs/b.pdf"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := []domain.Chunk{
		{DocumentName: "a.pdf", ChunkID: 0, Text: "Article 1"},
		{DocumentName: "a.pdf", ChunkID: 1, Text: "Article 2"},
		{DocumentName: "b.pdf", ChunkID: 0, Text: "Schedule A"},
	}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %+v", len(want), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk %d: expected %+v, got %+v", i, want[i], chunks[i])
		}
	}
}

func TestExtractFailsWhenNothingWasProduced(t *testing.T) {
	svc := NewExtractService(extractorFake{}, pageChunker{})
	_, err := svc.Extract(context.Background(), []string{"missing.pdf"})
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
