package routes

import (
	"context"
	"net/http"
	"time"

	"skyquery-bot/internal/logger"
	"skyquery-bot/middleware"
	"skyquery-bot/models"
	"skyquery-bot/utils"

	"github.com/gin-gonic/gin"
)

// Asker answers one question.
type Asker interface {
	Route(ctx context.Context, question string) models.Answer
}

// SetupAskRoutes registers the banner, health check and question endpoints.
func SetupAskRoutes(router *gin.Engine, asker Asker) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "SkyQuery MOSDAC assistant is running",
			"ask":     "POST /ask {\"question\": \"...\"}",
		})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})

	ask := func(c *gin.Context) {
		var req models.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_input", "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		answer := asker.Route(c.Request.Context(), req.Question)
		logger.Info("Question answered",
			"request_id", middleware.GetRequestID(c),
			"intent", answer.Intent,
			"kind", answer.Kind,
		)
		c.JSON(http.StatusOK, answer)
	}

	router.POST("/ask", ask)
	router.POST("/query", ask)

	router.NoRoute(func(c *gin.Context) {
		utils.RespondWithNotFound(c, "Route not found")
	})
}
