package api

import (
	"github.com/JustJay7/eviction-hearing-parser/internal/cache"
	"github.com/JustJay7/eviction-hearing-parser/internal/config"
	"github.com/JustJay7/eviction-hearing-parser/internal/pipeline"
	"github.com/JustJay7/eviction-hearing-parser/internal/store"
	"github.com/JustJay7/eviction-hearing-parser/pkg/logger"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, st *store.Store, pages StatsSource, reports cache.Cache[*pipeline.Report], newRunner RunnerFactory, logger *logger.Logger, cfg *config.Config) {
	h := NewHandlers(st, pages, reports, newRunner, logger, cfg)

	api := router.Group("/api")
	{
		// Health check
		api.GET("/health", h.HealthCheck)

		// Cache stats
		api.GET("/cache/stats", h.CacheStats)

		// Stored records
		api.GET("/cases/:number", h.GetCase)
		api.GET("/cases/:number/events", h.GetCaseEvents)
		api.GET("/evictions", h.ListEvictionEvents)
		api.GET("/archive", h.ListArchive)

		// Pipeline runs
		api.POST("/batches", h.RunBatch)
		api.POST("/settings", h.RunSettings)
		api.GET("/batches/:id", h.GetBatch)
		api.GET("/batches/:id/report", h.GetBatchReport)
	}
}
