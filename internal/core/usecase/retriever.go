package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
	"github.com/kirillkom/legal-doc-agent/internal/core/ports"
)

type Retriever struct {
	indexes  *IndexSet
	embedder ports.Embedder
}

func NewRetriever(indexes *IndexSet, embedder ports.Embedder) *Retriever {
	return &Retriever{
		indexes:  indexes,
		embedder: embedder,
	}
}

// Retrieve returns up to topK chunks of one document ordered by ascending distance,
// ties broken by chunk order.
func (r *Retriever) Retrieve(ctx context.Context, documentName, query string, topK int) ([]domain.RetrievalResult, error) {
	doc, ok := r.indexes.lookup(documentName)
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "retrieve", fmt.Errorf("document %q is not indexed", documentName))
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("query is empty"))
	}
	if topK <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("top_k must be positive, got %d", topK))
	}

	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrGeneration, "embed query", err)
	}

	return r.search(ctx, doc, queryVector, topK)
}

func (r *Retriever) search(ctx context.Context, doc *indexedDocument, queryVector []float32, topK int) ([]domain.RetrievalResult, error) {
	chunks := doc.index.Chunks
	k := topK
	if k > len(chunks) {
		k = len(chunks)
	}

	neighbors, err := doc.vector.Search(ctx, queryVector, k)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", doc.index.DocumentName, err)
	}

	valid := make([]domain.Neighbor, 0, len(neighbors))
	seen := make(map[int]struct{}, len(neighbors))
	for _, n := range neighbors {
		if n.Ordinal < 0 || n.Ordinal >= len(chunks) {
			continue
		}
		if _, dup := seen[n.Ordinal]; dup {
			continue
		}
		seen[n.Ordinal] = struct{}{}
		valid = append(valid, n)
	}
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Distance != valid[j].Distance {
			return valid[i].Distance < valid[j].Distance
		}
		return valid[i].Ordinal < valid[j].Ordinal
	})
	if len(valid) > k {
		valid = valid[:k]
	}

	out := make([]domain.RetrievalResult, 0, len(valid))
	for _, n := range valid {
		chunk := chunks[n.Ordinal]
		out = append(out, domain.RetrievalResult{
			Text:         chunk.Text,
			DocumentName: chunk.DocumentName,
			ChunkID:      chunk.ChunkID,
			Distance:     n.Distance,
		})
	}
	return out, nil
}
