package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opsgrid/alert-core/internal/alert"
	"github.com/opsgrid/alert-core/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ListAlertsResponse wraps a page of alerts.
type ListAlertsResponse struct {
	Alerts []*alert.Alert `json:"alerts"`
	Count  int            `json:"count"`
}

// ListAlerts returns alerts filtered by status, severity and connector type.
func (h *Handler) ListAlerts(c *gin.Context) {
	filter, err := parseListFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	alerts, err := h.alerts.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListAlertsResponse{Alerts: alerts, Count: len(alerts)})
}

// GetAlert returns one alert by id.
func (h *Handler) GetAlert(c *gin.Context) {
	id, err := parseAlertID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	a, err := h.alerts.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, a)
}

// AcknowledgeAlert moves an active alert to acknowledged.
func (h *Handler) AcknowledgeAlert(c *gin.Context) {
	h.applyTransition(c, h.lifecycle.Acknowledge)
}

// ResolveAlert resolves an alert. Resolved alerts never reopen.
func (h *Handler) ResolveAlert(c *gin.Context) {
	h.applyTransition(c, h.lifecycle.Resolve)
}

// SuppressAlert administratively mutes an active alert.
func (h *Handler) SuppressAlert(c *gin.Context) {
	h.applyTransition(c, h.lifecycle.Suppress)
}

func (h *Handler) applyTransition(c *gin.Context, op func(ctx context.Context, id uuid.UUID) (*alert.Alert, error)) {
	id, err := parseAlertID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	a, err := op(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, a)
}

func parseAlertID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid alert id %q", alert.ErrValidation, c.Param("id"))
	}
	return id, nil
}

func parseListFilter(c *gin.Context) (store.ListFilter, error) {
	filter := store.ListFilter{
		ConnectorType: c.Query("connectorType"),
		Limit:         defaultListLimit,
	}

	if s := c.Query("status"); s != "" {
		status := alert.Status(s)
		if !status.Valid() {
			return filter, fmt.Errorf("%w: invalid status %q", alert.ErrValidation, s)
		}
		filter.Status = status
	}
	if s := c.Query("severity"); s != "" {
		sev := alert.Severity(s)
		if !sev.Valid() {
			return filter, fmt.Errorf("%w: invalid severity %q", alert.ErrValidation, s)
		}
		filter.Severity = sev
	}
	if s := c.Query("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 {
			return filter, fmt.Errorf("%w: invalid limit %q", alert.ErrValidation, s)
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		filter.Limit = limit
	}
	if s := c.Query("offset"); s != "" {
		offset, err := strconv.Atoi(s)
		if err != nil || offset < 0 {
			return filter, fmt.Errorf("%w: invalid offset %q", alert.ErrValidation, s)
		}
		filter.Offset = offset
	}

	return filter, nil
}
