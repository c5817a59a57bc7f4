package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
	"github.com/kirillkom/legal-doc-agent/internal/core/ports"
)

// ExtractService turns source PDFs into chunk store records.
type ExtractService struct {
	extractor ports.TextExtractor
	chunker   ports.Chunker
}

func NewExtractService(extractor ports.TextExtractor, chunker ports.Chunker) *ExtractService {
	return &ExtractService{extractor: extractor, chunker: chunker}
}

// Extract chunks every file in the given order. Files that cannot be read are logged and
// skipped. It fails only when no file produced a chunk.
func (s *ExtractService) Extract(ctx context.Context, paths []string) ([]domain.Chunk, error) {
	var out []domain.Chunk
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := filepath.Base(path)

		pages, err := s.extractor.ExtractPages(ctx, path)
		if err != nil {
			slog.Warn("document_extract_failed", "document", name, "error", err)
			continue
		}
		chunks := s.chunker.Split(name, pages)
		if len(chunks) == 0 {
			slog.Info("document_has_no_text", "document", name)
			continue
		}
		slog.Info("document_extracted", "document", name, "pages", len(pages), "chunks", len(chunks))
		out = append(out, chunks...)
	}

	if len(out) == 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "extract", fmt.Errorf("no chunks produced from %d files", len(paths)))
	}
	return out, nil
}
