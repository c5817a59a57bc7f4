package mcpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
	"github.com/kirillkom/legal-doc-agent/internal/core/ports"
)

const (
	toolDecompose = "decompose_question"
	toolAnswer    = "answer_question"
)

// NewServer exposes question decomposition and answering as MCP tools.
func NewServer(version string, answerer ports.QuestionAnswerer) *server.MCPServer {
	s := server.NewMCPServer("legal-doc-agent", version, server.WithToolCapabilities(false))
	h := handlers{answerer: answerer}

	s.AddTool(mcp.NewTool(toolDecompose,
		mcp.WithDescription("Break a legal question into sub-questions or reasoning steps."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The legal question to decompose.")),
	), h.decompose)

	s.AddTool(mcp.NewTool(toolAnswer,
		mcp.WithDescription("Answer a legal question from the indexed documents, citing document names and pages."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The legal question to answer.")),
	), h.answer)

	return s
}

type handlers struct {
	answerer ports.QuestionAnswerer
}

func (h handlers) decompose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	subQuestions, err := h.answerer.Decompose(ctx, question)
	if err != nil {
		return toolError(toolDecompose, err), nil
	}
	return mcp.NewToolResultText(numbered(subQuestions)), nil
}

func (h handlers) answer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer, err := h.answerer.Answer(ctx, question)
	if err != nil {
		return toolError(toolAnswer, err), nil
	}
	return mcp.NewToolResultText(renderAnswer(answer)), nil
}

func toolError(tool string, err error) *mcp.CallToolResult {
	slog.Warn("mcp_tool_failed", "tool", tool, "error", err)
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return mcp.NewToolResultError(err.Error())
	case domain.IsKind(err, domain.ErrGeneration):
		return mcp.NewToolResultError("could not answer the question")
	default:
		return mcp.NewToolResultError("internal error")
	}
}

func numbered(items []string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, item)
	}
	return b.String()
}

func renderAnswer(answer *domain.Answer) string {
	var b strings.Builder
	b.WriteString(answer.Text)
	if len(answer.Sources) > 0 {
		b.WriteString("\n\nSources:")
		for _, src := range answer.Sources {
			ids := make([]string, 0, len(src.ChunkIDs))
			for _, id := range src.ChunkIDs {
				ids = append(ids, fmt.Sprint(id))
			}
			fmt.Fprintf(&b, "\n- %s (chunks %s)", src.DocumentName, strings.Join(ids, ", "))
		}
	}
	if answer.ContextTruncated {
		b.WriteString("\n\nNote: the document context was truncated to fit the model's context window.")
	}
	return b.String()
}
