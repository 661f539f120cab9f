// Package logging provides structured logging utilities.
package logging

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewLogger creates a new zerolog logger configured for the service.
func NewLogger(serviceName string, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// NewPrettyLogger creates a logger with pretty console output (for development).
func NewPrettyLogger(serviceName string, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(consoleWriter).
		Level(lvl).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// RequestLogger returns a Gin middleware for HTTP request logging.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		event := logger.Info()
		if statusCode >= 400 && statusCode < 500 {
			event = logger.Warn()
		} else if statusCode >= 500 {
			event = logger.Error()
		}

		event.
			Str("type", "http_request").
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", raw).
			Int("status", statusCode).
			Str("clientIp", c.ClientIP()).
			Dur("latency", latency).
			Int("bodySize", c.Writer.Size())

		if requestID := c.GetHeader("X-Request-ID"); requestID != "" {
			event.Str("requestId", requestID)
		}
		if len(c.Errors) > 0 {
			event.Str("error", c.Errors.String())
		}

		event.Msg("HTTP request")
	}
}

// ContextWithLogger adds a logger to the context.
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// LoggerFromContext extracts the logger from context.
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	return *zerolog.Ctx(ctx)
}

// AlertLogger creates a logger scoped to one alert.
func AlertLogger(logger zerolog.Logger, alertID string, severity string) zerolog.Logger {
	return logger.With().
		Str("alertId", alertID).
		Str("severity", severity).
		Logger()
}
