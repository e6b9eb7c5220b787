package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"skyquery-bot/internal/ai"
	"skyquery-bot/internal/bootstrap"
	"skyquery-bot/internal/config"
	"skyquery-bot/internal/intent"
	"skyquery-bot/internal/kg"
	"skyquery-bot/internal/kg/memstore"
	"skyquery-bot/internal/logger"
	"skyquery-bot/internal/nlp"
	"skyquery-bot/internal/queue"
	"skyquery-bot/internal/retrieval"
	"skyquery-bot/internal/router"
	"skyquery-bot/middleware"
	"skyquery-bot/models"
	"skyquery-bot/routes"
	"skyquery-bot/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, metrics := bootstrap.InitTelemetry(ctx, cfg)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracer(sctx)
	}()

	annotator := nlp.NewProseAnnotator()
	classifier := intent.NewClassifier(annotator, cfg.GeoKeywords, cfg.KGVerbs)

	// Knowledge graph
	store, err := bootstrap.OpenGraphStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open graph store", "backend", cfg.GraphBackend, "error", err)
		os.Exit(1)
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Close(cctx); err != nil {
			logger.Warn("Graph store close failed", "error", err)
		}
	}()
	resolver := kg.NewResolver(store, cfg.GraphTimeout).WithMetrics(metrics, cfg.GraphBackend)

	// Chunk store, hot-reloaded when ingestion rewrites the file
	chunks := retrieval.NewChunkStore(cfg.ChunksFile)
	if cfg.WatchChunks {
		go func() {
			if err := chunks.Watch(ctx); err != nil {
				logger.Warn("Chunk watcher stopped", "error", err)
			}
		}()
	}

	if mem, ok := store.(*memstore.Store); ok {
		// Nothing persists between runs, so build from the loaded chunks and
		// again after every chunk reload.
		extractor := kg.NewExtractor(annotator)
		var rebuildMu sync.Mutex
		rebuild := func([]models.Chunk) {
			rebuildMu.Lock()
			defer rebuildMu.Unlock()
			// the newest snapshot, whichever rebuild gets the lock last
			if _, err := services.RebuildMemoryGraph(ctx, extractor, mem, chunks.List()); err != nil {
				logger.Warn("In-memory graph build stopped", "error", err)
			}
		}
		chunks.OnReload(rebuild)
		go rebuild(nil)
	}

	// Generation
	var completer ai.Completer
	geminiClient, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTier, metrics)
	if err != nil {
		logger.Warn("Gemini unavailable, RAG answers will report the failure", "error", err)
	} else {
		completer = geminiClient
		defer geminiClient.Close()
	}
	generator := services.NewAnswerGenerator(completer, cfg.GenerationTimeout)

	// Geo responder
	places := services.DefaultGazetteer
	if cfg.GazetteerFile != "" {
		loaded, err := services.LoadGazetteer(cfg.GazetteerFile)
		if err != nil {
			logger.Warn("Gazetteer file unusable, using built-in places", "path", cfg.GazetteerFile, "error", err)
		} else {
			places = loaded
		}
	}
	geo := services.NewGeoResponder(places)

	qa := router.New(classifier, resolver, chunks, generator, geo, metrics)

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestIDMiddleware())
	if cfg.OTelEnabled {
		engine.Use(middleware.TracingMiddleware())
		engine.Use(middleware.EnrichTrace())
	}
	engine.Use(middleware.MetricsMiddleware(metrics))
	engine.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	var asker routes.Asker = qa
	if cfg.RedisURL != "" {
		rdb, err := config.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, rate limiting and answer cache disabled", "error", err)
		} else {
			defer rdb.Close()
			engine.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitReqs, cfg.RateLimitWindow))
			if cfg.AnswerCacheTTL > 0 {
				asker = services.NewCachedAsker(qa, rdb, cfg.AnswerCacheTTL, func() string {
					return strconv.FormatInt(chunks.LoadedAt().UnixNano(), 10)
				})
			}
		}
	}

	routes.SetupAskRoutes(engine, asker)

	if cfg.AdminEnabled() {
		redisOpt, err := queue.RedisConnOpt(cfg)
		if err != nil {
			logger.Error("Invalid Redis configuration", "error", err)
			os.Exit(1)
		}
		queueClient := asynq.NewClient(redisOpt)
		defer queueClient.Close()

		counter, _ := store.(kg.Counter)
		routes.SetupAdminRoutes(engine, routes.AdminDeps{
			Secret:    []byte(cfg.AdminJWTSecret),
			Enqueuer:  queueClient,
			Chunks:    chunks,
			Graph:     counter,
			UploadDir: bootstrap.DownloadsDir(cfg),
		})
		logger.Info("Admin routes enabled")
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting",
			"port", cfg.Port,
			"graph_backend", cfg.GraphBackend,
			"chunks", chunks.Len(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
