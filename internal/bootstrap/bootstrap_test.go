package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/legal-doc-agent/internal/config"
	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
)

func writeChunks(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunks.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write chunks: %v", err)
	}
	return path
}

// newOllamaStub serves /api/embed with a vector derived from the text length and
// /api/generate with a canned completion.
func newOllamaStub(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embed":
			var req struct {
				Input []string `json:"input"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			embeddings := make([][]float32, 0, len(req.Input))
			for _, text := range req.Input {
				embeddings = append(embeddings, []float32{float32(len(text)), 1})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
		case "/api/generate":
			_ = json.NewEncoder(w).Encode(map[string]any{"response": "Find the term clause", "done": true})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(chunksPath, ollamaURL string) config.Config {
	return config.Config{
		LLMProvider:        config.ProviderOllama,
		OllamaURL:          ollamaURL,
		OllamaGenModel:     "llama3.1:8b",
		OllamaEmbedModel:   "nomic-embed-text",
		ChunksPath:         chunksPath,
		RAGTopK:            2,
		RAGMaxSubQuestions: 4,
		RAGFanoutWorkers:   2,
		IndexWorkers:       2,
		TokenEncoding:      "no-such-encoding",
		VectorBackend:      config.VectorBackendMemory,
		RetryMaxAttempts:   1,
	}
}

func TestNewBuildsIndexesAndAnswers(t *testing.T) {
	stub := newOllamaStub(t)
	path := writeChunks(t,
		`{"doc_name":"lease.pdf","chunk_id":0,"text":"[Page 1] Term: two years"}`,
		`{"doc_name":"lease.pdf","chunk_id":1,"text":"[Page 2] Rent: monthly"}`,
		`{"doc_name":"nda.pdf","chunk_id":0,"text":"[Page 1] Confidentiality"}`,
	)

	app, err := New(context.Background(), testConfig(path, stub.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Indexes.Len() != 2 {
		t.Fatalf("expected 2 indexed documents, got %d", app.Indexes.Len())
	}

	answer, err := app.Answerer.Answer(context.Background(), "What is the lease term?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(answer.Sources) != 2 || answer.Sources[0].DocumentName != "lease.pdf" {
		t.Fatalf("unexpected sources %+v", answer.Sources)
	}
}

func TestNewRejectsInvalidConfigBeforeLoading(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing.jsonl"), "http://127.0.0.1:1")
	cfg.LLMProvider = "bard"

	_, err := New(context.Background(), cfg)
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestNewFailsOnMissingChunkStore(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing.jsonl"), "http://127.0.0.1:1")

	_, err := New(context.Background(), cfg)
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestNewWorkerRequiresNATS(t *testing.T) {
	cfg := testConfig("chunks.jsonl", "http://127.0.0.1:1")
	if _, err := NewWorker(context.Background(), cfg); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
