// Package api provides the HTTP surface of the alert core: connector
// ingestion, alert queries and lifecycle commands, and rule administration.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/opsgrid/alert-core/internal/alert"
	"github.com/opsgrid/alert-core/internal/ingest"
	"github.com/opsgrid/alert-core/internal/lifecycle"
	"github.com/opsgrid/alert-core/internal/middleware"
	"github.com/opsgrid/alert-core/internal/rule"
	"github.com/opsgrid/alert-core/internal/store"
)

// Handler handles all HTTP requests for the alert core.
type Handler struct {
	pipeline  *ingest.Pipeline
	alerts    store.AlertStore
	lifecycle *lifecycle.Machine
	rules     rule.Store
	logger    zerolog.Logger
}

// NewHandler creates a new API handler with the provided dependencies.
func NewHandler(pipeline *ingest.Pipeline, alerts store.AlertStore, machine *lifecycle.Machine, rules rule.Store, logger zerolog.Logger) *Handler {
	return &Handler{
		pipeline:  pipeline,
		alerts:    alerts,
		lifecycle: machine,
		rules:     rules,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Limits carries the per-surface payload caps. Ingest payloads run larger
// than admin writes, so the two surfaces are bounded independently.
type Limits struct {
	IngestMaxBytes int64
	AdminMaxBytes  int64
}

// RegisterRoutes registers all routes on the provided router group.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, limits Limits) {
	router.POST("/ingest/:connector_type",
		middleware.PayloadLimit(limits.IngestMaxBytes, h.logger), h.Ingest)

	alerts := router.Group("/alerts")
	alerts.Use(middleware.PayloadLimit(limits.AdminMaxBytes, h.logger))
	alerts.GET("", h.ListAlerts)
	alerts.GET("/:id", h.GetAlert)
	alerts.POST("/:id/acknowledge", h.AcknowledgeAlert)
	alerts.POST("/:id/resolve", h.ResolveAlert)
	alerts.POST("/:id/suppress", h.SuppressAlert)

	rules := router.Group("/rules")
	rules.Use(middleware.PayloadLimit(limits.AdminMaxBytes, h.logger))
	rules.GET("/severity-mappings", h.ListSeverityMappings)
	rules.POST("/severity-mappings", h.CreateSeverityMapping)
	rules.PUT("/severity-mappings/:id", h.UpdateSeverityMapping)
	rules.DELETE("/severity-mappings/:id", h.DeleteSeverityMapping)

	rules.GET("/category-mappings", h.ListCategoryMappings)
	rules.POST("/category-mappings", h.CreateCategoryMapping)
	rules.PUT("/category-mappings/:id", h.UpdateCategoryMapping)
	rules.DELETE("/category-mappings/:id", h.DeleteCategoryMapping)

	rules.GET("/priority-rules", h.ListPriorityRules)
	rules.POST("/priority-rules", h.CreatePriorityRule)
	rules.PUT("/priority-rules/:id", h.UpdatePriorityRule)
	rules.DELETE("/priority-rules/:id", h.DeletePriorityRule)
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// respondError maps core error kinds onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, alert.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validationError",
			Message: err.Error(),
		})
	case errors.Is(err, alert.ErrNotFound), errors.Is(err, rule.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "notFound",
			Message: err.Error(),
		})
	case errors.Is(err, alert.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "invalidTransition",
			Message: err.Error(),
		})
	case errors.Is(err, alert.ErrVersionConflict):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "concurrencyConflict",
			Message: "the alert changed concurrently, retry the operation",
		})
	default:
		h.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("internal error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internalError",
			Message: "internal error",
		})
	}
}
