package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opsgrid/alert-core/internal/alert"
	"github.com/opsgrid/alert-core/internal/rule"
)

// Severity mapping administration.

func (h *Handler) ListSeverityMappings(c *gin.Context) {
	mappings, err := h.rules.ListSeverityMappings(c.Request.Context(), c.Query("connectorType"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": mappings, "count": len(mappings)})
}

func (h *Handler) CreateSeverityMapping(c *gin.Context) {
	var m rule.SeverityMapping
	if err := c.ShouldBindJSON(&m); err != nil {
		h.respondError(c, fmt.Errorf("%w: invalid JSON payload: %v", alert.ErrValidation, err))
		return
	}

	created, err := h.rules.CreateSeverityMapping(c.Request.Context(), &m)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateSeverityMapping(c *gin.Context) {
	id, err := parseRuleID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var m rule.SeverityMapping
	if err := c.ShouldBindJSON(&m); err != nil {
		h.respondError(c, fmt.Errorf("%w: invalid JSON payload: %v", alert.ErrValidation, err))
		return
	}
	m.ID = id

	updated, err := h.rules.UpdateSeverityMapping(c.Request.Context(), &m)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteSeverityMapping(c *gin.Context) {
	id, err := parseRuleID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.rules.DeleteSeverityMapping(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Category mapping administration.

func (h *Handler) ListCategoryMappings(c *gin.Context) {
	mappings, err := h.rules.ListCategoryMappings(c.Request.Context(), c.Query("connectorType"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": mappings, "count": len(mappings)})
}

func (h *Handler) CreateCategoryMapping(c *gin.Context) {
	var m rule.CategoryMapping
	if err := c.ShouldBindJSON(&m); err != nil {
		h.respondError(c, fmt.Errorf("%w: invalid JSON payload: %v", alert.ErrValidation, err))
		return
	}

	created, err := h.rules.CreateCategoryMapping(c.Request.Context(), &m)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateCategoryMapping(c *gin.Context) {
	id, err := parseRuleID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var m rule.CategoryMapping
	if err := c.ShouldBindJSON(&m); err != nil {
		h.respondError(c, fmt.Errorf("%w: invalid JSON payload: %v", alert.ErrValidation, err))
		return
	}
	m.ID = id

	updated, err := h.rules.UpdateCategoryMapping(c.Request.Context(), &m)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteCategoryMapping(c *gin.Context) {
	id, err := parseRuleID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.rules.DeleteCategoryMapping(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Priority rule administration.

func (h *Handler) ListPriorityRules(c *gin.Context) {
	rules, err := h.rules.ListPriorityRules(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules, "count": len(rules)})
}

func (h *Handler) CreatePriorityRule(c *gin.Context) {
	var r rule.PriorityRule
	if err := c.ShouldBindJSON(&r); err != nil {
		h.respondError(c, fmt.Errorf("%w: invalid JSON payload: %v", alert.ErrValidation, err))
		return
	}

	created, err := h.rules.CreatePriorityRule(c.Request.Context(), &r)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdatePriorityRule(c *gin.Context) {
	id, err := parseRuleID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var r rule.PriorityRule
	if err := c.ShouldBindJSON(&r); err != nil {
		h.respondError(c, fmt.Errorf("%w: invalid JSON payload: %v", alert.ErrValidation, err))
		return
	}
	r.ID = id

	updated, err := h.rules.UpdatePriorityRule(c.Request.Context(), &r)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeletePriorityRule(c *gin.Context) {
	id, err := parseRuleID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.rules.DeletePriorityRule(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseRuleID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid rule id %q", alert.ErrValidation, c.Param("id"))
	}
	return id, nil
}
