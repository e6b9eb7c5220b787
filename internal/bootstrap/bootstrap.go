// Package bootstrap builds the collaborators shared by the API server, the
// ingestion worker and the ingestion CLI from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"

	"skyquery-bot/internal/config"
	"skyquery-bot/internal/crawler"
	"skyquery-bot/internal/kg"
	"skyquery-bot/internal/kg/memstore"
	"skyquery-bot/internal/kg/mongostore"
	"skyquery-bot/internal/kg/neo4jstore"
	"skyquery-bot/internal/logger"
	"skyquery-bot/internal/nlp"
	"skyquery-bot/internal/telemetry"
	"skyquery-bot/models"
	"skyquery-bot/services"
)

// OpenGraphStore connects the configured graph backend.
func OpenGraphStore(ctx context.Context, cfg *config.Config) (kg.GraphStore, error) {
	switch cfg.GraphBackend {
	case "memory":
		return memstore.New(), nil
	case "mongo":
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			return nil, err
		}
		store, err := mongostore.New(ctx, client, cfg.DBName)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return store, nil
	case "neo4j":
		driver, err := config.ConnectNeo4j(cfg)
		if err != nil {
			return nil, err
		}
		store, err := neo4jstore.New(ctx, driver)
		if err != nil {
			_ = driver.Close(context.Background())
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown graph backend %q", cfg.GraphBackend)
	}
}

// CrawlConfig applies CRAWL_* settings to the default crawl.
func CrawlConfig(cfg *config.Config) (crawler.CrawlConfig, error) {
	crawlCfg := crawler.DefaultCrawlConfig(cfg.CrawlDir)
	crawlCfg.MaxPages = cfg.CrawlMaxPages
	crawlCfg.RenderJS = cfg.CrawlRenderJS
	if cfg.CrawlTargetsFile != "" {
		targets, err := crawler.LoadTargets(cfg.CrawlTargetsFile)
		if err != nil {
			return crawler.CrawlConfig{}, err
		}
		if len(targets) > 0 {
			crawlCfg.Targets = targets
		}
	}
	return crawlCfg, nil
}

// NewPipeline wires crawl, chunk preparation and graph build. store may be
// nil, which disables the graph stage.
func NewPipeline(cfg *config.Config, annotator nlp.Annotator, store kg.GraphStore) (*services.Pipeline, error) {
	crawlCfg, err := CrawlConfig(cfg)
	if err != nil {
		return nil, err
	}

	ingestion := services.NewIngestionService(
		cfg.CrawlDir,
		cfg.ChunksFile,
		services.NewDocumentExtractor().WithOCR(services.NewOCRClient(cfg.OCRServiceURL, 0)),
		services.NewChunkingService(cfg.ChunkMaxWords, cfg.ChunkOverlap),
	)

	var builder *services.GraphBuilder
	if store != nil {
		builder = services.NewGraphBuilder(kg.NewExtractor(annotator), store)
	}

	return services.NewPipeline(crawlCfg, ingestion, builder, cfg.ChunksFile), nil
}

// DownloadsDir is where crawled and uploaded documents live.
func DownloadsDir(cfg *config.Config) string {
	return filepath.Join(cfg.CrawlDir, models.DownloadsDir)
}

// InitTelemetry starts tracing when enabled and always returns metrics
// instruments (no-op without a configured provider).
func InitTelemetry(ctx context.Context, cfg *config.Config) (func(context.Context), *telemetry.Metrics) {
	shutdown := func(context.Context) {}
	if cfg.OTelEnabled {
		fn, err := telemetry.InitTracer(ctx, cfg.OTelEndpoint, 1.0)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			shutdown = fn
			logger.Info("Tracing enabled", "endpoint", cfg.OTelEndpoint)
		}
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
		metrics = nil
	}
	return shutdown, metrics
}
