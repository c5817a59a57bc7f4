package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
	"github.com/kirillkom/legal-doc-agent/internal/core/ports"
)

type AggregatorConfig struct {
	// TopK is the number of chunks fetched per (document, sub-question) pair.
	TopK int
	// MaxDocuments caps the documents consulted, in first-seen order. 0 means all.
	MaxDocuments int
	// Workers bounds concurrent retrievals.
	Workers int
	// TokenBudget bounds the rendered context. 0 disables the budget.
	TokenBudget int
}

func (c AggregatorConfig) normalize() AggregatorConfig {
	out := c
	if out.TopK <= 0 {
		out.TopK = 3
	}
	if out.Workers <= 0 {
		out.Workers = 4
	}
	if out.MaxDocuments < 0 {
		out.MaxDocuments = 0
	}
	if out.TokenBudget < 0 {
		out.TokenBudget = 0
	}
	return out
}

type Aggregator struct {
	decomposer *Decomposer
	retriever  ports.DocumentRetriever
	indexes    *IndexSet
	counter    ports.TokenCounter
	cfg        AggregatorConfig
}

func NewAggregator(
	decomposer *Decomposer,
	retriever ports.DocumentRetriever,
	indexes *IndexSet,
	counter ports.TokenCounter,
	cfg AggregatorConfig,
) *Aggregator {
	return &Aggregator{
		decomposer: decomposer,
		retriever:  retriever,
		indexes:    indexes,
		counter:    counter,
		cfg:        cfg.normalize(),
	}
}

// Aggregate decomposes the question, retrieves chunks for every (document, sub-question)
// pair and renders the combined context. Any retrieval failure fails the whole call.
func (a *Aggregator) Aggregate(ctx context.Context, question string) (*domain.AggregatedContext, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "context.aggregate")
	defer span.End()

	subQuestions, err := a.decomposer.Decompose(ctx, question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decompose failed")
		return nil, err
	}

	documents, err := a.Collect(ctx, subQuestions)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return nil, err
	}

	rendered, included, truncated := a.render(documents)
	span.SetAttributes(
		attribute.Int("sub_questions", len(subQuestions)),
		attribute.Int("documents", len(included)),
		attribute.Bool("truncated", truncated),
	)

	return &domain.AggregatedContext{
		SubQuestions: subQuestions,
		Documents:    included,
		Rendered:     rendered,
		Truncated:    truncated,
	}, nil
}

// Collect fans out retrievals over documents × sub-questions on a bounded pool and
// reassembles results per document in sub-question order. Documents without results are omitted.
func (a *Aggregator) Collect(ctx context.Context, subQuestions []string) ([]domain.DocumentContext, error) {
	documents := a.indexes.DocumentNames()
	if a.cfg.MaxDocuments > 0 && len(documents) > a.cfg.MaxDocuments {
		documents = documents[:a.cfg.MaxDocuments]
	}
	if len(documents) == 0 || len(subQuestions) == 0 {
		return []domain.DocumentContext{}, nil
	}

	slots := make([][]domain.RetrievalResult, len(documents)*len(subQuestions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for d, documentName := range documents {
		for s, subQuestion := range subQuestions {
			g.Go(func() error {
				results, err := a.retriever.Retrieve(gctx, documentName, subQuestion, a.cfg.TopK)
				if err != nil {
					return fmt.Errorf("retrieve %s for sub-question %d: %w", documentName, s+1, err)
				}
				slots[d*len(subQuestions)+s] = results
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.DocumentContext, 0, len(documents))
	for d, documentName := range documents {
		results := make([]domain.RetrievalResult, 0, len(subQuestions)*a.cfg.TopK)
		for s := range subQuestions {
			results = append(results, slots[d*len(subQuestions)+s]...)
		}
		if len(results) == 0 {
			continue
		}
		out = append(out, domain.DocumentContext{DocumentName: documentName, Results: results})
	}
	return out, nil
}

// render joins document blocks with the block separator. With a token budget, chunks are
// added in order until the next one would exceed it; a document left with no chunk is dropped.
func (a *Aggregator) render(documents []domain.DocumentContext) (string, []domain.DocumentContext, bool) {
	limited := a.counter != nil && a.cfg.TokenBudget > 0

	var b strings.Builder
	included := make([]domain.DocumentContext, 0, len(documents))
	used := 0
	truncated := false

	for _, doc := range documents {
		prefix := ""
		if len(included) > 0 {
			prefix = contextBlockSeparator
		}
		cost := 0
		if limited {
			cost = a.counter.Count(prefix + renderDocumentHeader(doc.DocumentName))
		}

		kept := make([]domain.RetrievalResult, 0, len(doc.Results))
		for _, r := range doc.Results {
			if limited {
				piece := renderChunk(r)
				if len(kept) > 0 {
					piece = "\n\n" + piece
				}
				pieceCost := a.counter.Count(piece)
				if used+cost+pieceCost > a.cfg.TokenBudget {
					truncated = true
					break
				}
				cost += pieceCost
			}
			kept = append(kept, r)
		}

		if len(kept) > 0 {
			b.WriteString(prefix)
			b.WriteString(renderBlock(doc.DocumentName, kept))
			used += cost
			included = append(included, domain.DocumentContext{DocumentName: doc.DocumentName, Results: kept})
		}
		if truncated {
			break
		}
	}
	return b.String(), included, truncated
}
