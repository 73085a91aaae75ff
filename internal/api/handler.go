package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"camera-inspection-backend/internal/session"
	"camera-inspection-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	session *session.Session
	webpush *webpush.Options
	now     func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, sess *session.Session, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		session: sess,
		webpush: webpushOptions,
		now:     time.Now,
	}
}
