package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/nanneboina449/draymaster-tms-sub002/config"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/engine"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/mw"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, eng *engine.Engine, cfg *config.Config, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, eng, webpushOptions)

	// Rate limit with a burst of half the sustained rate, at least 5.
	burst := int(cfg.Server.RateLimitPerSec / 2)
	if burst < 5 {
		burst = 5
	}
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), burst, cfg.Server.RequestIPHeader)

	// Response cache for the fleet snapshot. Availability changes with every
	// ELD event, so the TTL is short and any successful mutation flushes it.
	ttl := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	api := r.Group("/api")
	api.Use(rateLimiter, mw.FlushOnWrite(cacheStore))
	{
		api.GET("/drivers", caching, handler.GetDrivers)

		api.GET("/drivers/:driver_id/availability", handler.GetAvailability)
		api.GET("/drivers/:driver_id/can_drive", handler.CanDrive)

		api.GET("/drivers/:driver_id/logs", handler.GetLogs)
		api.POST("/drivers/:driver_id/status", handler.ReportStatus)
		api.POST("/logs/:log_id/amend", handler.AmendLog)

		api.GET("/drivers/:driver_id/violations", handler.GetViolations)
		api.POST("/violations/:violation_id/acknowledge", handler.AcknowledgeViolation)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
