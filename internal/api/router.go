package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"picking-tracker-backend/config"
	"picking-tracker-backend/internal/feed"
	"picking-tracker-backend/internal/mw"
	"picking-tracker-backend/internal/notification"
	"picking-tracker-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, cfg *config.ServerConfig, hub *feed.Hub, webpushOptions *webpush.Options, pool *notification.WorkerPool) *gin.Engine {
	r := gin.Default()
	if cfg.RequestIPHeader != "" {
		// Behind a reverse proxy the real client IP arrives in a header;
		// the rate limiter keys on ClientIP.
		r.TrustedPlatform = cfg.RequestIPHeader
	}

	sessionStore := NewSessionStore(cfg.SessionSecret)
	handler := NewHandler(s, sessionStore, hub, webpushOptions, pool)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/session", handler.Login)
		api.DELETE("/session", handler.Logout)
		api.GET("/session", handler.GetSession)

		// Everything touching picking data requires a logged-in user.
		authed := api.Group("")
		authed.Use(handler.RequireAuth())
		{
			authed.GET("/lines", handler.GetLines)
			authed.POST("/update-line", handler.UpdateLine)
			authed.GET("/feed", handler.StreamFeed)
		}

		api.GET("/stores", caching, handler.GetStores)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
