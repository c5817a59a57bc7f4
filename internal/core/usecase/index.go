package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
	"github.com/kirillkom/legal-doc-agent/internal/core/ports"
)

const tracerName = "github.com/kirillkom/legal-doc-agent/internal/core/usecase"

type indexedDocument struct {
	index  domain.DocumentIndex
	vector ports.VectorIndex
}

// IndexSet is the per-document index cache. It is never mutated after Build returns,
// so concurrent requests read it without locking.
type IndexSet struct {
	order    []string
	docs     map[string]*indexedDocument
	failures []domain.IndexFailure
}

func newIndexSet(docs []*indexedDocument, failures []domain.IndexFailure) *IndexSet {
	set := &IndexSet{
		order:    make([]string, 0, len(docs)),
		docs:     make(map[string]*indexedDocument, len(docs)),
		failures: failures,
	}
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		set.order = append(set.order, doc.index.DocumentName)
		set.docs[doc.index.DocumentName] = doc
	}
	return set
}

// DocumentNames returns indexed document names in first-seen chunk store order.
func (s *IndexSet) DocumentNames() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *IndexSet) Len() int {
	return len(s.order)
}

func (s *IndexSet) Documents() []domain.DocumentSummary {
	out := make([]domain.DocumentSummary, 0, len(s.order))
	for _, name := range s.order {
		doc := s.docs[name]
		out = append(out, domain.DocumentSummary{
			DocumentName: name,
			ChunkCount:   len(doc.index.Chunks),
			Dimension:    doc.index.Dimension(),
		})
	}
	return out
}

func (s *IndexSet) Failures() []domain.IndexFailure {
	out := make([]domain.IndexFailure, len(s.failures))
	copy(out, s.failures)
	return out
}

func (s *IndexSet) lookup(documentName string) (*indexedDocument, bool) {
	doc, ok := s.docs[documentName]
	return doc, ok
}

type IndexBuilder struct {
	embedder ports.Embedder
	vectors  ports.VectorIndexBuilder
	workers  int
}

func NewIndexBuilder(embedder ports.Embedder, vectors ports.VectorIndexBuilder, workers int) *IndexBuilder {
	if workers <= 0 {
		workers = 1
	}
	return &IndexBuilder{
		embedder: embedder,
		vectors:  vectors,
		workers:  workers,
	}
}

// Build groups chunks by document and builds one index per document.
// A document whose embedding or index construction fails is logged and left out;
// only cancellation of ctx fails the whole build.
func (b *IndexBuilder) Build(ctx context.Context, chunks []domain.Chunk) (*IndexSet, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "index.build")
	defer span.End()

	names, groups, blank := groupByDocument(chunks)
	logBlankChunks(chunks, blank, groups)
	span.SetAttributes(attribute.Int("documents", len(names)), attribute.Int("chunks", len(chunks)))

	built := make([]*indexedDocument, len(names))
	failed := make([]error, len(names))

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				failed[i] = err
				return nil
			}
			doc, err := b.buildDocument(ctx, name, groups[name])
			if err != nil {
				failed[i] = err
				return nil
			}
			built[i] = doc
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "index build cancelled")
		return nil, fmt.Errorf("build indexes: %w", err)
	}

	failures := make([]domain.IndexFailure, 0)
	for i, err := range failed {
		if err == nil {
			continue
		}
		slog.Warn("index_build_failed", "document", names[i], "error", err)
		failures = append(failures, domain.IndexFailure{DocumentName: names[i], Error: err.Error()})
	}

	set := newIndexSet(built, failures)
	slog.Info("index_build_completed",
		"documents_indexed", set.Len(),
		"documents_failed", len(failures),
		"chunks", len(chunks),
	)
	return set, nil
}

func (b *IndexBuilder) buildDocument(ctx context.Context, name string, chunks []domain.Chunk) (*indexedDocument, error) {
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Text)
	}

	vectors, err := b.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexBuild, "embed "+name, err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(domain.ErrIndexBuild, "embed "+name,
			fmt.Errorf("embedding count mismatch: got %d vectors for %d chunks", len(vectors), len(chunks)))
	}
	dimension := len(vectors[0])
	if dimension == 0 {
		return nil, domain.WrapError(domain.ErrIndexBuild, "embed "+name, fmt.Errorf("empty embedding vector"))
	}
	for i, vector := range vectors {
		if len(vector) != dimension {
			return nil, domain.WrapError(domain.ErrIndexBuild, "embed "+name,
				fmt.Errorf("vector %d has dimension %d, expected %d", i, len(vector), dimension))
		}
	}

	index, err := b.vectors.Build(ctx, name, vectors)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexBuild, "build vector index "+name, err)
	}

	return &indexedDocument{
		index: domain.DocumentIndex{
			DocumentName: name,
			Chunks:       chunks,
			Vectors:      vectors,
		},
		vector: index,
	}, nil
}

// groupByDocument keeps the first-seen document order and the chunk order within each document.
// Chunks without text are dropped and counted in blank; a document made only of such chunks gets no index.
func groupByDocument(chunks []domain.Chunk) (names []string, groups map[string][]domain.Chunk, blank map[string]int) {
	groups = make(map[string][]domain.Chunk)
	blank = make(map[string]int)
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Text) == "" {
			blank[chunk.DocumentName]++
			continue
		}
		if _, seen := groups[chunk.DocumentName]; !seen {
			names = append(names, chunk.DocumentName)
		}
		groups[chunk.DocumentName] = append(groups[chunk.DocumentName], chunk)
	}
	return names, groups, blank
}

func logBlankChunks(chunks []domain.Chunk, blank map[string]int, groups map[string][]domain.Chunk) {
	reported := make(map[string]bool, len(blank))
	for _, chunk := range chunks {
		name := chunk.DocumentName
		if blank[name] == 0 || reported[name] {
			continue
		}
		reported[name] = true
		if len(groups[name]) == 0 {
			slog.Warn("document_skipped_no_text", "document", name, "blank_chunks", blank[name])
			continue
		}
		slog.Warn("blank_chunks_skipped", "document", name, "blank_chunks", blank[name])
	}
}
