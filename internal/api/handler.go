package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"partlife-backend/internal/archive"
	"partlife-backend/internal/backup"
	"partlife-backend/internal/fleet"
	"partlife-backend/internal/health"
	"partlife-backend/internal/importer"
	"partlife-backend/internal/lifecycle"
	"partlife-backend/internal/model"
	"partlife-backend/internal/store"
)

// Summarizer produces the narrative maintenance report.
type Summarizer interface {
	Summarize(ctx context.Context, parts []health.PopulatedPart, machines []model.Machine) string
}

// Archiver uploads backup documents.
type Archiver interface {
	Put(ctx context.Context, name string, body []byte) (string, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	fleet     *fleet.Manager
	store     store.Store
	webpush   *webpush.Options
	narrative Summarizer
	archive   Archiver
	log       *zap.Logger
}

// NewHandler creates a new API handler. narrative and archive may be nil.
func NewHandler(f *fleet.Manager, s store.Store, webpushOptions *webpush.Options, narrative Summarizer, archive Archiver, log *zap.Logger) *Handler {
	return &Handler{
		fleet:     f,
		store:     s,
		webpush:   webpushOptions,
		narrative: narrative,
		archive:   archive,
		log:       log,
	}
}

// respondError maps domain errors to HTTP status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, lifecycle.ErrDefinitionInUse), errors.Is(err, lifecycle.ErrDuplicateSerial):
		status = http.StatusConflict
	case errors.Is(err, lifecycle.ErrInvalid), errors.Is(err, importer.ErrEmptyInput), errors.Is(err, backup.ErrInvalidFormat):
		status = http.StatusBadRequest
	case errors.Is(err, archive.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// confirmed checks the confirm=true guard of destructive endpoints and
// answers 428 when it is missing.
func confirmed(c *gin.Context) bool {
	if c.Query("confirm") == "true" {
		return true
	}
	c.JSON(http.StatusPreconditionRequired, gin.H{"error": "this operation cannot be undone; repeat with confirm=true"})
	return false
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}
