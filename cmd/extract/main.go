package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/kirillkom/legal-doc-agent/internal/bootstrap"
	"github.com/kirillkom/legal-doc-agent/internal/config"
	"github.com/kirillkom/legal-doc-agent/internal/core/usecase"
	"github.com/kirillkom/legal-doc-agent/internal/infrastructure/chunking"
	"github.com/kirillkom/legal-doc-agent/internal/infrastructure/chunkstore/jsonl"
	"github.com/kirillkom/legal-doc-agent/internal/infrastructure/extractor/pdf"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "extract",
		Usage: "Extract PDF text into the chunk store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env", Usage: "dotenv file", Value: ".env"},
			&cli.StringFlag{Name: "dir", Usage: "directory of source PDFs (default SAMPLE_DIR)"},
			&cli.StringFlag{Name: "out", Usage: "chunk store path (default CHUNKS_PATH)"},
			&cli.IntFlag{Name: "chunk-size", Usage: "chunk size in characters (default CHUNK_SIZE)"},
			&cli.IntFlag{Name: "chunk-overlap", Usage: "chunk overlap in characters (default CHUNK_OVERLAP)"},
		},
		Action: run,
	}
	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("extract_failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	_ = godotenv.Load(cmd.String("env"))
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	bootstrap.InitObservability(os.Stderr, "legal-extract", cfg.LogLevel)

	dir := firstNonEmpty(cmd.String("dir"), cfg.SampleDir)
	out := firstNonEmpty(cmd.String("out"), cfg.ChunksPath)
	size := cfg.ChunkSize
	if cmd.IsSet("chunk-size") {
		size = int(cmd.Int("chunk-size"))
	}
	overlap := cfg.ChunkOverlap
	if cmd.IsSet("chunk-overlap") {
		overlap = int(cmd.Int("chunk-overlap"))
	}

	paths, err := listPDFs(dir)
	if err != nil {
		return err
	}
	slog.Info("extract_started", "dir", dir, "files", len(paths))

	service := usecase.NewExtractService(pdf.NewExtractor(), chunking.NewSplitter(size, overlap))
	chunks, err := service.Extract(ctx, paths)
	if err != nil {
		return err
	}
	if err := jsonl.New(out).WriteChunks(chunks); err != nil {
		return err
	}
	fmt.Printf("Saved %d chunks to %s\n", len(chunks), out)
	return nil
}

// listPDFs returns the *.pdf files of dir sorted by name.
func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read sample dir: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
