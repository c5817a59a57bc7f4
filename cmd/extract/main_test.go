package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestListPDFsSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "notes.txt", "A.PDF", "c.pdf"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := listPDFs(dir)
	if err != nil {
		t.Fatalf("listPDFs: %v", err)
	}
	want := []string{filepath.Join(dir, "A.PDF"), filepath.Join(dir, "b.pdf"), filepath.Join(dir, "c.pdf")}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestListPDFsMissingDir(t *testing.T) {
	if _, err := listPDFs(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error")
	}
}
