package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"camera-inspection-backend/config"
	"camera-inspection-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	limiter := mw.NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	rateLimiter := mw.RateLimiter(limiter)

	// Stored images never change, so they are served from memory once rendered.
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/session", h.GetSession)
		api.POST("/session/employee", h.PostEmployee)
		api.POST("/session/work-order", h.PostWorkOrder)
		api.POST("/session/fields", h.PostField)
		api.POST("/session/capture", h.PostCapture)
		api.POST("/session/confirm", h.PostConfirm)
		api.POST("/session/new-user", h.PostNewUser)
		api.POST("/session/suspend", h.PostSuspend)
		api.POST("/session/reattach", h.PostReattach)
		api.GET("/session/snapshot", h.GetSnapshot)

		api.GET("/inspections", h.GetInspections)
		api.GET("/inspections/:id", h.GetInspection)
		api.GET("/inspections/:id/image", caching, h.GetInspectionImage)
		api.GET("/inspections/:id/thumbnail", caching, h.GetInspectionThumbnail)
		api.GET("/summary", h.GetSummary)
		api.GET("/export.xlsx", h.GetExportXLSX)
		api.GET("/export.pdf", h.GetExportPDF)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
