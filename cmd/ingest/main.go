// Command ingest runs the ingestion stages once, without Redis.
//
//	ingest -stage all
//	ingest -stage crawl -targets ./targets.txt -max-pages 50
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skyquery-bot/internal/auth"
	"skyquery-bot/internal/bootstrap"
	"skyquery-bot/internal/config"
	"skyquery-bot/internal/kg"
	"skyquery-bot/internal/logger"
	"skyquery-bot/internal/nlp"
	"skyquery-bot/services"
)

func main() {
	stage := flag.String("stage", services.StageAll, "stage to run: crawl, chunks, graph or all")
	targets := flag.String("targets", "", "file with one target URL per line (overrides CRAWL_TARGETS_FILE)")
	maxPages := flag.Int("max-pages", 0, "page limit for the crawl (overrides CRAWL_MAX_PAGES)")
	issueToken := flag.String("issue-admin-token", "", "print an admin API token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the issued admin token")
	flag.Parse()

	if err := run(*stage, *targets, *maxPages, *issueToken, *tokenTTL); err != nil {
		fmt.Fprintln(os.Stderr, "ingest:", err)
		os.Exit(1)
	}
}

func run(stage, targets string, maxPages int, issueToken string, tokenTTL time.Duration) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.InitLoggerWithWriter(cfg.GinMode, os.Stderr)

	if issueToken != "" {
		token, exp, err := auth.IssueAdminToken([]byte(cfg.AdminJWTSecret), issueToken, tokenTTL)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Println(token)
		logger.Info("Admin token issued", "subject", issueToken, "expires", exp)
		return nil
	}

	if targets != "" {
		cfg.CrawlTargetsFile = targets
	}
	if maxPages > 0 {
		cfg.CrawlMaxPages = maxPages
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store kg.GraphStore
	if stage == services.StageGraph || stage == services.StageAll {
		if cfg.GraphBackend == "memory" {
			return fmt.Errorf("stage %s needs a persistent graph backend (GRAPH_BACKEND=mongo or neo4j)", stage)
		}
		store, err = bootstrap.OpenGraphStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open graph store: %w", err)
		}
		defer func() {
			cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = store.Close(cctx)
		}()
	}

	pipeline, err := bootstrap.NewPipeline(cfg, nlp.NewProseAnnotator(), store)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := pipeline.Run(ctx, stage); err != nil {
		return err
	}
	logger.Info("Ingestion finished", "stage", stage, "duration", time.Since(start))
	return nil
}
