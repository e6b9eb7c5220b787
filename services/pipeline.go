package services

import (
	"context"
	"fmt"

	"skyquery-bot/internal/crawler"
	"skyquery-bot/internal/logger"
	"skyquery-bot/internal/retrieval"
)

// Ingestion stages, in run order.
const (
	StageCrawl  = "crawl"
	StageChunks = "chunks"
	StageGraph  = "graph"
	StageAll    = "all"
)

// Pipeline runs the offline ingestion stages: crawl, chunk preparation and
// graph build. Each stage reads what the previous one wrote to disk, so
// stages can run in separate processes.
type Pipeline struct {
	crawlConfig crawler.CrawlConfig
	ingestion   *IngestionService
	builder     *GraphBuilder
	chunksFile  string
	crawl       func(ctx context.Context, cfg crawler.CrawlConfig) (*crawler.CrawlResult, error)
}

func NewPipeline(crawlConfig crawler.CrawlConfig, ingestion *IngestionService, builder *GraphBuilder, chunksFile string) *Pipeline {
	return &Pipeline{
		crawlConfig: crawlConfig,
		ingestion:   ingestion,
		builder:     builder,
		chunksFile:  chunksFile,
		crawl:       crawler.CrawlSite,
	}
}

// Crawl runs the site crawl. Empty targets or a non-positive maxPages keep
// the configured values.
func (p *Pipeline) Crawl(ctx context.Context, targets []string, maxPages int) (*crawler.CrawlResult, error) {
	cfg := p.crawlConfig
	if len(targets) > 0 {
		cfg.Targets = targets
	}
	if maxPages > 0 {
		cfg.MaxPages = maxPages
	}
	return p.crawl(ctx, cfg)
}

func (p *Pipeline) PrepareChunks(ctx context.Context) (*ChunkReport, error) {
	return p.ingestion.PrepareChunks(ctx)
}

// BuildGraph loads the chunk file and feeds it to the graph builder.
func (p *Pipeline) BuildGraph(ctx context.Context) (*GraphReport, error) {
	if p.builder == nil {
		return nil, fmt.Errorf("graph build: no graph store configured")
	}
	chunks, err := retrieval.LoadChunks(p.chunksFile)
	if err != nil {
		return nil, fmt.Errorf("graph build: %w", err)
	}
	return p.builder.Build(ctx, chunks)
}

// Run executes one stage, or every stage in order for StageAll.
func (p *Pipeline) Run(ctx context.Context, stage string) error {
	switch stage {
	case StageCrawl:
		_, err := p.Crawl(ctx, nil, 0)
		return err
	case StageChunks:
		_, err := p.PrepareChunks(ctx)
		return err
	case StageGraph:
		_, err := p.BuildGraph(ctx)
		return err
	case StageAll:
		for _, s := range []string{StageCrawl, StageChunks, StageGraph} {
			logger.Info("Running ingestion stage", "stage", s)
			if err := p.Run(ctx, s); err != nil {
				return fmt.Errorf("stage %s: %w", s, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown stage %q (want crawl, chunks, graph or all)", stage)
	}
}
