package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
)

func TestBuildEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls, upsertCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chunks":
			atomic.AddInt32(&ensureCalls, 1)
			var body map[string]map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["vectors"]["distance"] != "Euclid" {
				t.Errorf("expected Euclid distance, got %v", body["vectors"]["distance"])
			}
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chunks/index":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chunks/points":
			atomic.AddInt32(&upsertCalls, 1)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "chunks", nil)
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	if _, err := client.Build(context.Background(), "a.pdf", vectors); err != nil {
		t.Fatalf("first Build() error = %v", err)
	}
	if _, err := client.Build(context.Background(), "b.pdf", vectors); err != nil {
		t.Fatalf("second Build() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
	if got := atomic.LoadInt32(&upsertCalls); got != 2 {
		t.Fatalf("expected one upsert per document, got %d", got)
	}
}

func TestSearchFiltersByDocumentAndSquaresDistance(t *testing.T) {
	var searchBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/collections/chunks/points/search":
			_ = json.NewDecoder(r.Body).Decode(&searchBody)
			_, _ = w.Write([]byte(`{"result":[{"score":0.5,"payload":{"ordinal":2}},{"score":2,"payload":{}}]}`))
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	index, err := New(server.URL, "chunks", nil).Build(context.Background(), "lease.pdf", [][]float32{{1, 0}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	got, err := index.Search(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 neighbours, got %d", len(got))
	}
	if got[0].Ordinal != 2 || got[0].Distance != 0.25 {
		t.Fatalf("unexpected first neighbour: %+v", got[0])
	}
	if got[1].Ordinal != -1 {
		t.Fatalf("expected missing ordinal to map to -1, got %d", got[1].Ordinal)
	}
	filter, _ := searchBody["filter"].(map[string]any)
	must, _ := filter["must"].([]any)
	if len(must) != 1 || !strings.Contains(toJSON(t, must[0]), "lease.pdf") {
		t.Fatalf("expected doc_name filter, got %v", searchBody["filter"])
	}
	if searchBody["limit"] != float64(3) {
		t.Fatalf("expected limit 3, got %v", searchBody["limit"])
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/chunks" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := New(server.URL, "chunks", nil).Build(context.Background(), "a.pdf", [][]float32{{0.1, 0.2}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 500 to be marked temporary, got %v", err)
	}
}

func TestResetIgnoresMissingCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	if err := New(server.URL, "chunks", nil).Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
}

func TestPointIDIsStable(t *testing.T) {
	if pointID("a.pdf", 1) != pointID("a.pdf", 1) {
		t.Fatalf("expected deterministic point id")
	}
	if pointID("a.pdf", 1) == pointID("a.pdf", 2) {
		t.Fatalf("expected distinct ids per ordinal")
	}
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(raw)
}
