package api

import (
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"partlife-backend/config"
	"partlife-backend/internal/metrics"
	"partlife-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig, m *metrics.Metrics, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.Logger(log))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// Cached responses are keyed by fleet version, so any transition
	// invalidates them before the TTL runs out.
	cacheStore := cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	caching := mw.Cache(cacheStore, cfg.CacheTTL, h.fleet.Version)

	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/machines", caching, h.GetMachines)
		api.POST("/machines", h.PostMachine)
		api.PUT("/machines/:id", h.PutMachine)
		api.DELETE("/machines/:id", h.DeleteMachine)

		api.GET("/definitions", h.GetDefinitions)
		api.POST("/definitions", h.PostDefinition)
		api.PUT("/definitions/:id", h.PutDefinition)
		api.DELETE("/definitions/:id", h.DeleteDefinition)

		api.GET("/parts", caching, h.GetParts)
		api.POST("/parts", h.PostPart)
		api.PATCH("/parts/:id", h.PatchPart)
		api.POST("/parts/:id/replace", h.ReplacePart)
		api.DELETE("/parts/:id", h.DeletePart)

		api.GET("/logs", h.GetLogs)
		api.GET("/stats", caching, h.GetStats)
		api.GET("/diagnostics/orphans", h.GetOrphans)

		api.POST("/import/csv", h.ImportCSV)
		api.GET("/backup", h.GetBackup)
		api.POST("/backup", h.RestoreBackup)
		api.POST("/backup/archive", h.ArchiveBackup)

		api.GET("/reports/parts.xlsx", h.GetPartsReport)
		api.POST("/reports/narrative", h.PostNarrative)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
