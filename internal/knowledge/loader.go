package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/HaolanLL/Medical-Chat-Agent/pkg/logging"
)

// Loader reads clinic documents from a directory, splits them into
// overlapping chunks, and feeds them to an Ingestor.
type Loader struct {
	ingestor Ingestor
	chunk    int
	overlap  int
	logger   *logging.Logger
}

// NewLoader creates a document loader. Chunk size defaults to 1000
// characters with a 200 character overlap.
func NewLoader(ingestor Ingestor, chunkSize, overlap int, logger *logging.Logger) *Loader {
	if ingestor == nil {
		panic("knowledge: ingestor cannot be nil")
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 200
		if overlap >= chunkSize {
			overlap = chunkSize / 5
		}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Loader{ingestor: ingestor, chunk: chunkSize, overlap: overlap, logger: logger}
}

// LoadDirectory walks dir for .txt and .md files and ingests their chunks.
// A missing directory is not an error; the store simply stays empty.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		l.logger.Warn("knowledge directory not found, starting with empty corpus", "dir", dir)
		return nil
	}

	var chunks []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("knowledge: read %s: %w", path, err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return nil
		}
		chunks = append(chunks, Chunk(text, l.chunk, l.overlap)...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("knowledge: walk %s: %w", dir, err)
	}
	if len(chunks) == 0 {
		l.logger.Warn("no knowledge documents found", "dir", dir)
		return nil
	}

	if err := l.ingestor.AddDocuments(ctx, chunks); err != nil {
		return fmt.Errorf("knowledge: ingest documents: %w", err)
	}
	l.logger.Info("knowledge directory loaded", "dir", dir, "chunks", len(chunks))
	return nil
}

// Chunk splits text into pieces of at most size characters, each overlapping
// the previous by overlap characters. Short texts come back as one chunk.
func Chunk(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}

	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
