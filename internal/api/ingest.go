package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opsgrid/alert-core/internal/alert"
)

// IngestResponse is returned to connectors after an ingest call. Created is
// false when the payload collapsed onto an existing alert.
type IngestResponse struct {
	Alert   *alert.Alert `json:"alert"`
	Created bool         `json:"created"`
}

// Ingest accepts a raw alert from a connector. The connector type comes from
// the URL path so a connector cannot forge another connector's mapping scope.
func (h *Handler) Ingest(c *gin.Context) {
	var raw alert.RawAlert
	if err := c.ShouldBindJSON(&raw); err != nil {
		h.respondError(c, fmt.Errorf("%w: invalid JSON payload: %v", alert.ErrValidation, err))
		return
	}
	raw.ConnectorType = c.Param("connector_type")

	stored, created, err := h.pipeline.Ingest(c.Request.Context(), &raw)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, IngestResponse{Alert: stored, Created: created})
}
