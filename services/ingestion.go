package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"skyquery-bot/internal/logger"
	"skyquery-bot/models"
)

const (
	PagesFile    = models.PagesFile
	DownloadsDir = models.DownloadsDir
)

// ChunkReport summarises one chunk preparation run.
type ChunkReport struct {
	Pages           int      `json:"pages"`
	Documents       int      `json:"documents"`
	FailedDocuments []string `json:"failed_documents,omitempty"`
	Chunks          int      `json:"chunks"`
	Output          string   `json:"output"`
}

// IngestionService turns a crawl directory into the chunk file served by
// the retrieval step.
type IngestionService struct {
	crawlDir   string
	chunksFile string
	extractor  *DocumentExtractor
	chunker    *ChunkingService
}

func NewIngestionService(crawlDir, chunksFile string, extractor *DocumentExtractor, chunker *ChunkingService) *IngestionService {
	return &IngestionService{
		crawlDir:   crawlDir,
		chunksFile: chunksFile,
		extractor:  extractor,
		chunker:    chunker,
	}
}

// LoadPages reads the pages written by the crawler. A missing file means
// no pages.
func LoadPages(path string) ([]models.CrawledPage, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pages: %w", err)
	}
	var pages []models.CrawledPage
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return pages, nil
}

// PrepareChunks chunks crawled pages followed by every supported document in
// the downloads directory, in name order, and writes the chunk file.
// Documents that fail to parse are logged and skipped.
func (s *IngestionService) PrepareChunks(ctx context.Context) (*ChunkReport, error) {
	report := &ChunkReport{Output: s.chunksFile}

	pages, err := LoadPages(filepath.Join(s.crawlDir, PagesFile))
	if err != nil {
		return nil, err
	}
	report.Pages = len(pages)
	chunks := s.chunker.ChunkPages(pages)

	docDir := filepath.Join(s.crawlDir, DownloadsDir)
	entries, err := os.ReadDir(docDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		if _, ok := models.ChunkTypeFromExt(filepath.Ext(entry.Name())); !ok {
			continue
		}

		result, err := s.extractor.ExtractFile(ctx, filepath.Join(docDir, entry.Name()))
		if err != nil {
			logger.Warn("Skipping document", "file", entry.Name(), "error", err)
			report.FailedDocuments = append(report.FailedDocuments, entry.Name())
			continue
		}
		report.Documents++
		chunks = append(chunks, s.chunker.ChunkDocument(entry.Name(), result)...)
	}

	if err := WriteChunks(s.chunksFile, chunks); err != nil {
		return nil, err
	}
	report.Chunks = len(chunks)

	logger.Info("Chunks prepared",
		"pages", report.Pages,
		"documents", report.Documents,
		"failed_documents", len(report.FailedDocuments),
		"chunks", report.Chunks,
		"output", s.chunksFile,
	)
	return report, nil
}
