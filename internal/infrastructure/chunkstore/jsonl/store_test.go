package jsonl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
)

func TestLoadChunksReadsRecordsInFileOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdf_chunks.jsonl")
	content := `{"doc_name":"lease.pdf","chunk_id":0,"text":"[Page 1]\nThe tenant shall pay"}
{"doc_name":"nda.pdf","chunk_id":0,"text":"Confidential information"}

{"doc_name":"lease.pdf","chunk_id":1,"text":"rent monthly"}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	chunks, err := New(path).LoadChunks(context.Background())
	if err != nil {
		t.Fatalf("LoadChunks() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].DocumentName != "lease.pdf" || chunks[0].Text != "[Page 1]\nThe tenant shall pay" {
		t.Fatalf("unexpected first chunk: %+v", chunks[0])
	}
	if chunks[2].ChunkID != 1 {
		t.Fatalf("unexpected third chunk: %+v", chunks[2])
	}
}

func TestLoadChunksMissingFileIsConfigurationError(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.jsonl")).LoadChunks(context.Background())
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestLoadChunksMalformedLineReportsLineNumber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	content := "{\"doc_name\":\"a.pdf\",\"chunk_id\":0,\"text\":\"ok\"}\n{not json}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := New(path).LoadChunks(context.Background())
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line number in error, got %v", err)
	}
}

func TestLoadChunksRequiresDocumentName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nameless.jsonl")
	if err := os.WriteFile(path, []byte(`{"chunk_id":0,"text":"orphan"}`+"\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := New(path).LoadChunks(context.Background()); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestWriteChunksThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexes", "pdf_chunks.jsonl")
	store := New(path)
	want := []domain.Chunk{
		{DocumentName: "a.pdf", ChunkID: 0, Text: "clause <1> & terms"},
		{DocumentName: "a.pdf", ChunkID: 1, Text: "second"},
	}
	if err := store.WriteChunks(want); err != nil {
		t.Fatalf("WriteChunks() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	if !strings.Contains(string(raw), "clause <1> & terms") {
		t.Fatalf("expected unescaped text, got %s", raw)
	}

	got, err := store.LoadChunks(context.Background())
	if err != nil {
		t.Fatalf("LoadChunks() error = %v", err)
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestLoadChunksRejectsInvalidRecords(t *testing.T) {
	valid := `{"doc_name":"lease.pdf","chunk_id":0,"text":"The tenant shall pay"}` + "\n"
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"missing chunk_id", `{"doc_name":"lease.pdf","text":"rent"}`, "line 1: chunk_id is required"},
		{"missing text", `{"doc_name":"lease.pdf","chunk_id":0}`, "line 1: text is required"},
		{"null doc_name", `{"doc_name":null,"chunk_id":0,"text":"rent"}`, "line 1: doc_name is required"},
		{"negative chunk_id", `{"doc_name":"lease.pdf","chunk_id":-4,"text":"rent"}`, "line 1: chunk_id must not be negative"},
		{"fractional chunk_id", `{"doc_name":"lease.pdf","chunk_id":1.5,"text":"rent"}`, "line 1:"},
		{"duplicate chunk_id", valid + `{"doc_name":"lease.pdf","chunk_id":0,"text":"again"}`, "line 2: duplicate chunk_id 0"},
		{"array line", `["lease.pdf",0,"rent"]`, "line 1:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "chunks.jsonl")
			if err := os.WriteFile(path, []byte(tt.content+"\n"), 0o600); err != nil {
				t.Fatalf("write fixture: %v", err)
			}
			chunks, err := New(path).LoadChunks(context.Background())
			if !domain.IsKind(err, domain.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got chunks=%+v err=%v", chunks, err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in error, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadChunksAllowsSameChunkIDAcrossDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.jsonl")
	content := `{"doc_name":"lease.pdf","chunk_id":0,"text":"rent"}` + "\n" +
		`{"doc_name":"nda.pdf","chunk_id":0,"text":"secrets"}` + "\n" +
		`{"doc_name":"lease.pdf","chunk_id":1,"text":""}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	chunks, err := New(path).LoadChunks(context.Background())
	if err != nil {
		t.Fatalf("LoadChunks() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %+v", chunks)
	}
}
