// Package middleware provides HTTP middleware for the alert core.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// PayloadLimitErrorResponse represents the JSON response for payload too large errors.
type PayloadLimitErrorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	MaxBytes int64  `json:"maxBytes"`
}

// PayloadLimit returns a middleware that limits the request body size.
// Oversized Content-Length headers are rejected up front; chunked bodies
// are bounded by http.MaxBytesReader so later reads fail.
func PayloadLimit(maxBytes int64, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.ContentLength == 0 {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxBytes {
			logger.Warn().
				Str("clientIp", c.ClientIP()).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Int64("attemptedSize", c.Request.ContentLength).
				Int64("maxBytes", maxBytes).
				Msg("oversized request rejected")
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, PayloadLimitErrorResponse{
				Error:    "payloadTooLarge",
				Message:  "request body exceeds the maximum allowed size",
				MaxBytes: maxBytes,
			})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
