package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
)

const contextBlockSeparator = "\n\n---\n\n"

func buildDecompositionPrompt(question string) string {
	return fmt.Sprintf(`Break down the following legal question into logical sub-questions or reasoning steps. List each step as a separate line.

Question: %s

Sub-questions/steps:`, question)
}

func buildSynthesisPrompt(question, contextText string) string {
	return fmt.Sprintf(`You are a highly capable legal document analysis agent. Use the following context from multiple legal documents to answer the user's question. Always cite the document name and page number for each fact. If the answer is not found, say so.

Context:
%s

User Question:
%s

---

Your step-by-step reasoning and answer (with sources):`, contextText, question)
}

func buildEvaluationPrompt(record domain.AnswerRecord) string {
	return fmt.Sprintf(`You are an expert legal QA evaluator. Given the user's question, the retrieved context, and the agent's answer, evaluate:
- Completeness: Did the answer address every part of the question?
- Accuracy: Is every stated fact supported by the context?
- Source citation: Does the answer cite the document name and page for each fact?

Give a short summary of strengths and weaknesses, then a final line in the form "Score: N" where N is an integer from 1 (poor) to 5 (excellent).

Question:
%s

Context:
%s

Agent answer:
%s

Evaluation:`, record.Question, record.Context, record.Answer)
}

func renderChunk(r domain.RetrievalResult) string {
	return fmt.Sprintf("[Chunk %d] %s", r.ChunkID, r.Text)
}

func renderDocumentHeader(documentName string) string {
	return "Document: " + documentName + "\n"
}

// renderBlock formats one document's results; chunks are separated by a blank line.
func renderBlock(documentName string, results []domain.RetrievalResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, renderChunk(r))
	}
	return renderDocumentHeader(documentName) + strings.Join(parts, "\n\n")
}
