package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"skyquery-bot/internal/retrieval"
	"skyquery-bot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareChunks(t *testing.T) {
	crawlDir := t.TempDir()
	downloads := filepath.Join(crawlDir, DownloadsDir)
	require.NoError(t, os.MkdirAll(downloads, 0o755))

	pageText := strings.Repeat("Oceansat-3 ocean colour monitor data products ", 10)
	pages, err := json.Marshal([]models.CrawledPage{{URL: "https://www.mosdac.gov.in/oceansat-3", Content: pageText}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(crawlDir, PagesFile), pages, 0o644))

	longDoc := strings.Replace(docxBody, "Data is archived at MOSDAC.", strings.Repeat("Data is archived at MOSDAC. ", 5), 1)
	require.NoError(t, os.WriteFile(filepath.Join(downloads, "b-brochure.docx"), buildDOCX(t, longDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(downloads, "a-corrupt.docx"), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(downloads, "readme.txt"), []byte("ignored"), 0o644))

	out := filepath.Join(t.TempDir(), "chunks.json")
	svc := NewIngestionService(crawlDir, out, NewDocumentExtractor(), NewChunkingService(400, 50))

	report, err := svc.PrepareChunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pages)
	assert.Equal(t, 1, report.Documents)
	assert.Equal(t, []string{"a-corrupt.docx"}, report.FailedDocuments)
	assert.Equal(t, 2, report.Chunks)

	chunks := retrieval.NewChunkStore(out).List()
	require.Len(t, chunks, 2)
	assert.Equal(t, models.ChunkTypeWeb, chunks[0].Type)
	assert.Equal(t, "https://www.mosdac.gov.in/oceansat-3", chunks[0].Source)
	assert.Equal(t, models.ChunkTypeDOCX, chunks[1].Type)
	assert.Equal(t, "b-brochure.docx", chunks[1].Source)
}

func TestPrepareChunksEmptyCrawl(t *testing.T) {
	out := filepath.Join(t.TempDir(), "chunks.json")
	svc := NewIngestionService(t.TempDir(), out, NewDocumentExtractor(), NewChunkingService(400, 50))

	report, err := svc.PrepareChunks(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Chunks)

	chunks, err := retrieval.LoadChunks(out)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
