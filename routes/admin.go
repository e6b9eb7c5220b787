package routes

import (
	"net/http"
	"time"

	"skyquery-bot/internal/kg"
	"skyquery-bot/internal/logger"
	"skyquery-bot/internal/queue"
	"skyquery-bot/middleware"
	"skyquery-bot/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

// ChunkStats describes the loaded chunk snapshot.
type ChunkStats interface {
	Len() int
	LoadedAt() time.Time
}

type crawlRequest struct {
	Targets  []string `json:"targets"`
	MaxPages int      `json:"max_pages"`
	Chain    *bool    `json:"chain"`
}

type chunksRequest struct {
	Chain *bool `json:"chain"`
}

// AdminDeps are the collaborators of the admin routes. Graph may be nil
// when the backend cannot count.
type AdminDeps struct {
	Secret        []byte
	Enqueuer      queue.Enqueuer
	Chunks        ChunkStats
	Graph         kg.Counter
	UploadDir     string
	MaxUploadSize int64
}

// SetupAdminRoutes registers ingestion triggers, document upload and stats
// behind admin auth.
func SetupAdminRoutes(router *gin.Engine, deps AdminDeps) {
	enqueuer, chunks, graph := deps.Enqueuer, deps.Chunks, deps.Graph

	admin := router.Group("/admin")
	admin.Use(middleware.AdminAuth(deps.Secret))

	enqueue := func(c *gin.Context, task *asynq.Task) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()
		info, err := enqueuer.EnqueueContext(ctx, task)
		if err != nil {
			logger.Error("Failed to enqueue task", "type", task.Type(), "error", err)
			utils.RespondWithServiceUnavailable(c, "Failed to enqueue task", gin.H{"error": err.Error()})
			return
		}
		logger.Info("Task enqueued",
			"type", info.Type,
			"id", info.ID,
			"queue", info.Queue,
			"by", middleware.GetAdminSubject(c),
		)
		c.JSON(http.StatusAccepted, gin.H{
			"task_id": info.ID,
			"type":    info.Type,
			"queue":   info.Queue,
		})
	}

	admin.POST("/ingest/crawl", func(c *gin.Context) {
		var req crawlRequest
		if !bindOptionalJSON(c, &req) {
			return
		}
		if req.MaxPages < 0 {
			utils.RespondWithBadRequest(c, "max_pages must not be negative", nil)
			return
		}
		task, err := queue.NewCrawlTask(queue.CrawlPayload{
			Targets:  req.Targets,
			MaxPages: req.MaxPages,
			Chain:    chainOrDefault(req.Chain),
		})
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build task", gin.H{"error": err.Error()})
			return
		}
		enqueue(c, task)
	})

	admin.POST("/ingest/chunks", func(c *gin.Context) {
		var req chunksRequest
		if !bindOptionalJSON(c, &req) {
			return
		}
		task, err := queue.NewChunksTask(queue.ChunksPayload{Chain: chainOrDefault(req.Chain)})
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build task", gin.H{"error": err.Error()})
			return
		}
		enqueue(c, task)
	})

	admin.POST("/ingest/graph", func(c *gin.Context) {
		task, err := queue.NewGraphTask(queue.GraphPayload{RequestedBy: middleware.GetAdminSubject(c)})
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build task", gin.H{"error": err.Error()})
			return
		}
		enqueue(c, task)
	})

	admin.POST("/documents", HandleDocumentUpload(deps.UploadDir, deps.MaxUploadSize, enqueuer))

	admin.GET("/stats", func(c *gin.Context) {
		stats := gin.H{
			"chunks": chunks.Len(),
		}
		if loadedAt := chunks.LoadedAt(); !loadedAt.IsZero() {
			stats["loaded_at"] = loadedAt.UTC()
		}

		if graph != nil {
			ctx, cancel := utils.WithShortTimeout(c.Request.Context())
			defer cancel()
			entities, relations, err := graph.Counts(ctx)
			if err != nil {
				logger.Warn("Graph counts unavailable", "error", err)
				stats["graph_error"] = err.Error()
			} else {
				stats["graph"] = gin.H{"entities": entities, "relations": relations}
			}
		}

		c.JSON(http.StatusOK, stats)
	})
}

// bindOptionalJSON accepts an empty body. It writes the 400 itself and
// returns false on malformed JSON.
func bindOptionalJSON(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "invalid_input", "Invalid request data", gin.H{"error": err.Error()})
		return false
	}
	return true
}

// chainOrDefault runs downstream stages unless the caller opts out.
func chainOrDefault(chain *bool) bool {
	return chain == nil || *chain
}
