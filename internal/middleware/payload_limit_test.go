package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(maxBytes int64) *gin.Engine {
	router := gin.New()
	router.Use(PayloadLimit(maxBytes, zerolog.Nop()))

	router.POST("/test", func(c *gin.Context) {
		// Read the body to trigger any MaxBytesReader error.
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": len(body)})
	})

	return router
}

func TestPayloadLimit_UnderLimit(t *testing.T) {
	router := setupTestRouter(1024)

	body := strings.Repeat("a", 500)
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["received"] != 500 {
		t.Errorf("expected received=500, got %d", resp["received"])
	}
}

func TestPayloadLimit_AtExactLimit(t *testing.T) {
	router := setupTestRouter(100)

	body := strings.Repeat("x", 100)
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPayloadLimit_OverLimit_ContentLength(t *testing.T) {
	router := setupTestRouter(100)

	body := strings.Repeat("x", 200)
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.ContentLength = 200

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d: %s", w.Code, w.Body.String())
	}

	var resp PayloadLimitErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Error != "payloadTooLarge" {
		t.Errorf("expected error='payloadTooLarge', got '%s'", resp.Error)
	}
	if resp.MaxBytes != 100 {
		t.Errorf("expected maxBytes=100, got %d", resp.MaxBytes)
	}
}

func TestPayloadLimit_OverLimit_StreamedBody(t *testing.T) {
	router := setupTestRouter(100)

	// No Content-Length, simulating chunked encoding; the MaxBytesReader
	// catches it when the handler reads.
	body := bytes.NewReader([]byte(strings.Repeat("x", 200)))
	req := httptest.NewRequest(http.MethodPost, "/test", body)
	req.ContentLength = -1

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPayloadLimit_EmptyBody(t *testing.T) {
	router := setupTestRouter(100)

	req := httptest.NewRequest(http.MethodPost, "/test", nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 for empty body, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPayloadLimit_IngestSizedPayload(t *testing.T) {
	router := setupTestRouter(1 << 20)

	body := strings.Repeat("x", (1<<20)-100)
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestPayloadLimit_AdminLimitExceeded(t *testing.T) {
	router := setupTestRouter(100 * 1024)

	body := strings.Repeat("x", 100*1024+1000)
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.ContentLength = int64(len(body))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d: %s", w.Code, w.Body.String())
	}
}
