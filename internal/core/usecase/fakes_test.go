package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
	"github.com/kirillkom/legal-doc-agent/internal/core/ports"
)

type embedderFake struct {
	mu         sync.Mutex
	vectors    map[string][]float32
	failOn     map[string]error
	queryErr   error
	batchCalls [][]string
	queries    []string
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls = append(f.batchCalls, append([]string(nil), texts...))
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err, ok := f.failOn[text]; ok {
			return nil, err
		}
		out = append(out, f.vector(text))
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.vector(text), nil
}

func (f *embedderFake) vector(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	return []float32{0, 0}
}

func (f *embedderFake) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type bruteForceBuilder struct {
	err error
}

func (b bruteForceBuilder) Build(_ context.Context, _ string, vectors [][]float32) (ports.VectorIndex, error) {
	if b.err != nil {
		return nil, b.err
	}
	return bruteForceIndex{vectors: vectors}, nil
}

type bruteForceIndex struct {
	vectors [][]float32
}

func (i bruteForceIndex) Search(_ context.Context, query []float32, k int) ([]domain.Neighbor, error) {
	out := make([]domain.Neighbor, 0, len(i.vectors))
	for idx, v := range i.vectors {
		var d float32
		for j := range v {
			diff := v[j] - query[j]
			d += diff * diff
		}
		out = append(out, domain.Neighbor{Ordinal: idx, Distance: d})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Distance < out[b].Distance })
	if k < len(out) {
		out = out[:k]
	}
	return out, nil
}

type stubIndex struct {
	neighbors []domain.Neighbor
	k         int
}

func (s *stubIndex) Search(_ context.Context, _ []float32, k int) ([]domain.Neighbor, error) {
	s.k = k
	return s.neighbors, nil
}

type stubIndexBuilder struct {
	index *stubIndex
}

func (b stubIndexBuilder) Build(context.Context, string, [][]float32) (ports.VectorIndex, error) {
	return b.index, nil
}

type completerFake struct {
	mu      sync.Mutex
	prompts []string
	respond func(prompt string) (string, error)
}

func (f *completerFake) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.respond(prompt)
}

func (f *completerFake) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func isDecompositionPrompt(prompt string) bool {
	return strings.HasPrefix(prompt, "Break down the following legal question")
}

func isSynthesisPrompt(prompt string) bool {
	return strings.HasPrefix(prompt, "You are a highly capable legal document analysis agent")
}

type publisherFake struct {
	mu      sync.Mutex
	records []domain.AnswerRecord
	err     error
}

func (f *publisherFake) PublishAnswerRecorded(_ context.Context, record domain.AnswerRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return f.err
}

type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

func buildIndexes(t *testing.T, embedder ports.Embedder, chunks []domain.Chunk) *IndexSet {
	t.Helper()
	set, err := NewIndexBuilder(embedder, bruteForceBuilder{}, 2).Build(context.Background(), chunks)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return set
}
