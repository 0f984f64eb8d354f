package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"github.com/nanneboina449/draymaster-tms-sub002/internal/engine"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/store"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/timeline"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	engine  *engine.Engine
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, eng *engine.Engine, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		engine:  eng,
		webpush: webpushOptions,
	}
}

// abortWithEngineError maps the engine's error taxonomy onto HTTP statuses.
// Validation rejections are 4xx and carry the reason; everything else is a
// plain 500.
func abortWithEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, timeline.ErrMissingEditReason),
		errors.Is(err, timeline.ErrInvalidInterval):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, timeline.ErrOutOfOrderEvent),
		errors.Is(err, timeline.ErrConflictingInterval),
		errors.Is(err, timeline.ErrAlreadySuperseded):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
