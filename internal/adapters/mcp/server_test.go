package mcpadapter

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
)

type answererFake struct {
	answer *domain.Answer
	err    error
}

func (f answererFake) Decompose(_ context.Context, question string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []string{"Identify the parties", "Find " + question}, nil
}

func (f answererFake) Answer(context.Context, string) (*domain.Answer, error) {
	return f.answer, f.err
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(result.Content))
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestDecomposeToolNumbersSteps(t *testing.T) {
	h := handlers{answerer: answererFake{}}
	result, err := h.decompose(context.Background(), callRequest(map[string]any{"question": "the term"}))
	if err != nil {
		t.Fatalf("decompose: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	if got := resultText(t, result); got != "1. Identify the parties\n2. Find the term" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestAnswerToolRendersSources(t *testing.T) {
	h := handlers{answerer: answererFake{answer: &domain.Answer{
		Text:             "Two years (lease.pdf, page 1).",
		Sources:          []domain.Source{{DocumentName: "lease.pdf", ChunkIDs: []int{2, 0}}},
		ContextTruncated: true,
	}}}
	result, err := h.answer(context.Background(), callRequest(map[string]any{"question": "What is the term?"}))
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	want := "Two years (lease.pdf, page 1).\n\nSources:\n- lease.pdf (chunks 2, 0)" +
		"\n\nNote: the document context was truncated to fit the model's context window."
	if got := resultText(t, result); got != want {
		t.Fatalf("unexpected text:\n%q\nwant:\n%q", got, want)
	}
}

func TestAnswerToolRequiresQuestion(t *testing.T) {
	h := handlers{answerer: answererFake{}}
	result, err := h.answer(context.Background(), callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for missing question")
	}
}

func TestAnswerToolHidesGenerationDetails(t *testing.T) {
	h := handlers{answerer: answererFake{err: domain.WrapError(domain.ErrGeneration, "synthesize", errors.New("api key revoked"))}}
	result, err := h.answer(context.Background(), callRequest(map[string]any{"question": "q"}))
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !result.IsError || resultText(t, result) != "could not answer the question" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestNewServerBuilds(t *testing.T) {
	if NewServer("test", answererFake{}) == nil {
		t.Fatalf("expected server")
	}
}
