package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
)

// maxLineBytes bounds one JSONL record; chunks are ~1000 runes so this leaves ample room.
const maxLineBytes = 4 << 20

// Store reads and writes the chunk store: one JSON object per line with doc_name, chunk_id and text.
type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// LoadChunks reads every record in file order. A missing file or a malformed line is a
// configuration error so startup aborts before any index is built.
func (s *Store) LoadChunks(ctx context.Context) ([]domain.Chunk, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrConfiguration, "load chunks",
				fmt.Errorf("chunk store %s not found; run the extraction step first", s.path))
		}
		return nil, domain.WrapError(domain.ErrConfiguration, "load chunks", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	chunks := make([]domain.Chunk, 0, 256)
	seen := make(map[chunkKey]int)
	line := 0
	for scanner.Scan() {
		line++
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		chunk, err := decodeRecord([]byte(raw))
		if err != nil {
			return nil, s.lineError(line, err)
		}
		key := chunkKey{document: chunk.DocumentName, id: chunk.ChunkID}
		if first, dup := seen[key]; dup {
			return nil, s.lineError(line, fmt.Errorf("duplicate chunk_id %d for %q (first on line %d)", chunk.ChunkID, chunk.DocumentName, first))
		}
		seen[key] = line
		chunks = append(chunks, chunk)
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "load chunks", fmt.Errorf("read %s: %w", s.path, err))
	}
	return chunks, nil
}

type chunkKey struct {
	document string
	id       int
}

// record mirrors domain.Chunk with pointers so absent keys are told apart from zero values.
type record struct {
	DocumentName *string `json:"doc_name"`
	ChunkID      *int    `json:"chunk_id"`
	Text         *string `json:"text"`
}

func decodeRecord(raw []byte) (domain.Chunk, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Chunk{}, err
	}
	switch {
	case rec.DocumentName == nil || strings.TrimSpace(*rec.DocumentName) == "":
		return domain.Chunk{}, errors.New("doc_name is required")
	case rec.ChunkID == nil:
		return domain.Chunk{}, errors.New("chunk_id is required")
	case *rec.ChunkID < 0:
		return domain.Chunk{}, fmt.Errorf("chunk_id must not be negative, got %d", *rec.ChunkID)
	case rec.Text == nil:
		return domain.Chunk{}, errors.New("text is required")
	}
	return domain.Chunk{DocumentName: *rec.DocumentName, ChunkID: *rec.ChunkID, Text: *rec.Text}, nil
}

func (s *Store) lineError(line int, err error) error {
	return domain.WrapError(domain.ErrConfiguration, "load chunks", fmt.Errorf("%s line %d: %w", s.path, line, err))
}

// WriteChunks replaces the store atomically: records go to a temp file that is renamed over the target.
func (s *Store) WriteChunks(chunks []domain.Chunk) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create chunk store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".chunks-*.jsonl")
	if err != nil {
		return fmt.Errorf("create temp chunk store: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	writer := bufio.NewWriter(tmp)
	encoder := json.NewEncoder(writer)
	encoder.SetEscapeHTML(false)
	for _, chunk := range chunks {
		if err := encoder.Encode(chunk); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("encode chunk %s#%d: %w", chunk.DocumentName, chunk.ChunkID, err)
		}
	}
	if err := writer.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush chunk store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close chunk store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace chunk store: %w", err)
	}
	return nil
}
