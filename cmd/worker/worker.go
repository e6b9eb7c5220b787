package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skyquery-bot/internal/bootstrap"
	"skyquery-bot/internal/config"
	"skyquery-bot/internal/crawler"
	"skyquery-bot/internal/logger"
	"skyquery-bot/internal/nlp"
	"skyquery-bot/internal/queue"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	if cfg.RedisURL == "" {
		log.Fatal("REDIS_URL is required for the ingestion worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenGraphStore(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open graph store:", err)
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = store.Close(cctx)
	}()
	if cfg.GraphBackend == "memory" {
		logger.Warn("Graph backend is in-memory; graph builds in the worker are not visible to the API")
	}

	pipeline, err := bootstrap.NewPipeline(cfg, nlp.NewProseAnnotator(), store)
	if err != nil {
		log.Fatal("Failed to build ingestion pipeline:", err)
	}

	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}

	client := asynq.NewClient(redisOpt)
	defer client.Close()

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			// Stages share files on disk, so run one task at a time.
			Concurrency:    1,
			Queues:         queue.Queues,
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Error("Task failed",
					"type", task.Type(),
					"retry", retried,
					"max_retry", maxRetry,
					"error", err,
				)
			}),
		},
	)

	processor := queue.NewTaskProcessor(pipeline, client)
	mux := asynq.NewServeMux()
	processor.Register(mux)

	var scheduler *crawler.Scheduler
	if cfg.RecrawlCron != "" {
		scheduler, err = crawler.ScheduleRecrawl(cfg.RecrawlCron, func(ctx context.Context) error {
			task, err := queue.NewCrawlTask(queue.CrawlPayload{Chain: true})
			if err != nil {
				return err
			}
			info, err := client.EnqueueContext(ctx, task)
			if err != nil {
				return fmt.Errorf("enqueue recrawl: %w", err)
			}
			logger.Info("Recrawl enqueued", "task_id", info.ID)
			return nil
		})
		if err != nil {
			log.Fatal("Invalid RECRAWL_CRON:", err)
		}
	}

	logger.Info("Starting Asynq worker",
		"queues", queue.Queues,
		"redis", redisOpt.Addr,
		"recrawl_cron", cfg.RecrawlCron,
	)

	if err := server.Start(mux); err != nil {
		logger.Error("Failed to start worker", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Shutting down worker...")
	if scheduler != nil {
		scheduler.Stop()
	}
	server.Shutdown()
}
