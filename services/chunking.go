package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"skyquery-bot/models"
)

// MinChunkChars is the trimmed length a chunk must exceed to be kept.
const MinChunkChars = 50

// ChunkingService cuts text into overlapping word windows.
type ChunkingService struct {
	maxWords int
	overlap  int
}

func NewChunkingService(maxWords, overlap int) *ChunkingService {
	if maxWords <= 0 {
		maxWords = 400
	}
	if overlap < 0 || overlap >= maxWords {
		overlap = 0
	}
	return &ChunkingService{maxWords: maxWords, overlap: overlap}
}

// ChunkText returns windows of maxWords words starting every
// maxWords-overlap words. Windows of MinChunkChars or fewer are dropped.
func (cs *ChunkingService) ChunkText(text string) []string {
	words := strings.Fields(text)
	step := cs.maxWords - cs.overlap

	var chunks []string
	for i := 0; i < len(words); i += step {
		end := i + cs.maxWords
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[i:end], " ")
		if len(strings.TrimSpace(chunk)) > MinChunkChars {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// ChunkPages chunks every crawled page, tagging chunks with the page URL.
func (cs *ChunkingService) ChunkPages(pages []models.CrawledPage) []models.Chunk {
	var out []models.Chunk
	for _, page := range pages {
		for _, text := range cs.ChunkText(page.Content) {
			out = append(out, models.Chunk{Text: text, Source: page.URL, Type: models.ChunkTypeWeb})
		}
	}
	return out
}

// ChunkDocument chunks extracted document text, tagging chunks with the
// file name.
func (cs *ChunkingService) ChunkDocument(source string, result *ExtractionResult) []models.Chunk {
	var out []models.Chunk
	for _, text := range cs.ChunkText(result.Text) {
		out = append(out, models.Chunk{Text: text, Source: source, Type: result.Type})
	}
	return out
}

// WriteChunks writes chunks as an indented JSON array. The file is replaced
// atomically so watchers never read a partial write.
func WriteChunks(path string, chunks []models.Chunk) error {
	if chunks == nil {
		chunks = []models.Chunk{}
	}
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chunks: %w", err)
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
