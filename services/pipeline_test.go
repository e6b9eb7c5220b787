package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"skyquery-bot/internal/crawler"
	"skyquery-bot/internal/kg"
	"skyquery-bot/internal/kg/memstore"
	"skyquery-bot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineCrawlOverrides(t *testing.T) {
	var got crawler.CrawlConfig
	base := crawler.CrawlConfig{Targets: []string{"https://www.mosdac.gov.in"}, MaxPages: 200, OutputDir: "out"}
	p := NewPipeline(base, nil, nil, "")
	p.crawl = func(ctx context.Context, cfg crawler.CrawlConfig) (*crawler.CrawlResult, error) {
		got = cfg
		return &crawler.CrawlResult{}, nil
	}

	_, err := p.Crawl(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, base, got)

	_, err = p.Crawl(context.Background(), []string{"https://www.mosdac.gov.in/insat-3d"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.mosdac.gov.in/insat-3d"}, got.Targets)
	assert.Equal(t, 5, got.MaxPages)
	assert.Equal(t, "out", got.OutputDir)
}

func TestPipelineBuildGraph(t *testing.T) {
	chunksFile := filepath.Join(t.TempDir(), "chunks.json")
	require.NoError(t, WriteChunks(chunksFile, []models.Chunk{{Text: oceansatText, Source: "a"}}))

	store := memstore.New()
	builder := NewGraphBuilder(kg.NewExtractor(scriptedAnnotator{oceansatText: oceansatAnalysis}), store)
	p := NewPipeline(crawler.CrawlConfig{}, nil, builder, chunksFile)

	require.NoError(t, p.Run(context.Background(), StageGraph))
	assert.Len(t, store.Relations(), 1)
}

func TestPipelineBuildGraphErrors(t *testing.T) {
	p := NewPipeline(crawler.CrawlConfig{}, nil, nil, "")
	_, err := p.BuildGraph(context.Background())
	assert.Error(t, err)

	builder := NewGraphBuilder(kg.NewExtractor(scriptedAnnotator{}), memstore.New())
	p = NewPipeline(crawler.CrawlConfig{}, nil, builder, filepath.Join(t.TempDir(), "missing.json"))
	_, err = p.BuildGraph(context.Background())
	assert.Error(t, err)
}

func TestPipelineRunAllStopsAtFirstFailure(t *testing.T) {
	p := NewPipeline(crawler.CrawlConfig{}, nil, nil, "")
	p.crawl = func(ctx context.Context, cfg crawler.CrawlConfig) (*crawler.CrawlResult, error) {
		return nil, errors.New("portal unreachable")
	}

	err := p.Run(context.Background(), StageAll)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage crawl")
	assert.Contains(t, err.Error(), "portal unreachable")
}

func TestPipelineRunUnknownStage(t *testing.T) {
	p := NewPipeline(crawler.CrawlConfig{}, nil, nil, "")
	assert.Error(t, p.Run(context.Background(), "index"))
}
