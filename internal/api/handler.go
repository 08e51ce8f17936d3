package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"github.com/gorilla/sessions"

	"picking-tracker-backend/internal/feed"
	"picking-tracker-backend/internal/notification"
	"picking-tracker-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	sessions *sessions.CookieStore
	hub      *feed.Hub
	webpush  *webpush.Options
	pool     *notification.WorkerPool
}

// NewHandler creates a new API handler. pool may be nil when push
// notifications are not configured.
func NewHandler(s store.Store, sessionStore *sessions.CookieStore, hub *feed.Hub, webpushOptions *webpush.Options, pool *notification.WorkerPool) *Handler {
	return &Handler{
		store:    s,
		sessions: sessionStore,
		hub:      hub,
		webpush:  webpushOptions,
		pool:     pool,
	}
}
