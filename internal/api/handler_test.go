package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgrid/alert-core/internal/alert"
	"github.com/opsgrid/alert-core/internal/audit"
	"github.com/opsgrid/alert-core/internal/dedup"
	"github.com/opsgrid/alert-core/internal/ingest"
	"github.com/opsgrid/alert-core/internal/lifecycle"
	"github.com/opsgrid/alert-core/internal/lock"
	"github.com/opsgrid/alert-core/internal/normalize"
	"github.com/opsgrid/alert-core/internal/priority"
	"github.com/opsgrid/alert-core/internal/rule"
	"github.com/opsgrid/alert-core/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestServer(t *testing.T) (*gin.Engine, *rule.InMemoryStore, *store.InMemoryAlertStore) {
	t.Helper()

	rules := rule.NewInMemoryStore()
	alerts := store.NewInMemoryAlertStore()
	recorder := audit.NewMemoryRecorder()
	logger := zerolog.Nop()

	pipeline := ingest.New(
		normalize.New(rules, recorder, logger),
		priority.New(rules, recorder, logger),
		dedup.New(alerts, lock.NewKeyed(0), recorder, logger),
		logger,
	)
	machine := lifecycle.New(alerts, recorder, logger)

	router := gin.New()
	handler := NewHandler(pipeline, alerts, machine, rules, logger)
	handler.RegisterRoutes(router.Group("/api/v1"), Limits{
		IngestMaxBytes: 1 << 20,
		AdminMaxBytes:  100 * 1024,
	})
	return router, rules, alerts
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func ingestPayload() map[string]interface{} {
	return map[string]interface{}{
		"vendor":     "cisco",
		"deviceIp":   "10.0.0.1",
		"deviceName": "core-sw-1",
		"alertType":  "linkDown",
		"observations": []map[string]string{
			{"field": "status", "value": "2"},
		},
	}
}

func TestIngestEndpointCreatesAlert(t *testing.T) {
	router, _, _ := setupTestServer(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/ingest/snmp", ingestPayload())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Created)
	require.NotNil(t, resp.Alert)
	assert.Equal(t, "snmp", resp.Alert.ConnectorType)
	assert.Equal(t, alert.StatusActive, resp.Alert.Status)
}

func TestIngestEndpointDeduplicates(t *testing.T) {
	router, _, _ := setupTestServer(t)

	first := doJSON(t, router, http.MethodPost, "/api/v1/ingest/snmp", ingestPayload())
	require.Equal(t, http.StatusCreated, first.Code)

	second := doJSON(t, router, http.MethodPost, "/api/v1/ingest/snmp", ingestPayload())
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.False(t, resp.Created)
	assert.Equal(t, 2, resp.Alert.OccurrenceCount)
}

func TestIngestEndpointValidation(t *testing.T) {
	router, _, _ := setupTestServer(t)

	payload := ingestPayload()
	delete(payload, "deviceIp")

	w := doJSON(t, router, http.MethodPost, "/api/v1/ingest/snmp", payload)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validationError", resp.Error)
}

func TestIngestEndpointMalformedJSON(t *testing.T) {
	router, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/snmp", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestEndpointPayloadTooLarge(t *testing.T) {
	router, _, _ := setupTestServer(t)

	body := strings.Repeat("x", (1<<20)+1)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/snmp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestGetAlert(t *testing.T) {
	router, _, _ := setupTestServer(t)

	created := doJSON(t, router, http.MethodPost, "/api/v1/ingest/snmp", ingestPayload())
	var resp IngestResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))

	w := doJSON(t, router, http.MethodGet, "/api/v1/alerts/"+resp.Alert.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got alert.Alert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, resp.Alert.ID, got.ID)
}

func TestGetAlertNotFound(t *testing.T) {
	router, _, _ := setupTestServer(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/alerts/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAlertInvalidID(t *testing.T) {
	router, _, _ := setupTestServer(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/alerts/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAlertsWithFilters(t *testing.T) {
	router, _, _ := setupTestServer(t)

	doJSON(t, router, http.MethodPost, "/api/v1/ingest/snmp", ingestPayload())

	httpPayload := ingestPayload()
	httpPayload["deviceIp"] = "10.0.0.2"
	doJSON(t, router, http.MethodPost, "/api/v1/ingest/http", httpPayload)

	w := doJSON(t, router, http.MethodGet, "/api/v1/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var all ListAlertsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Equal(t, 2, all.Count)

	w = doJSON(t, router, http.MethodGet, "/api/v1/alerts?connectorType=snmp", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var filtered ListAlertsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &filtered))
	assert.Equal(t, 1, filtered.Count)

	w = doJSON(t, router, http.MethodGet, "/api/v1/alerts?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLifecycleEndpoints(t *testing.T) {
	router, _, _ := setupTestServer(t)

	created := doJSON(t, router, http.MethodPost, "/api/v1/ingest/snmp", ingestPayload())
	var resp IngestResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))
	id := resp.Alert.ID.String()

	w := doJSON(t, router, http.MethodPost, "/api/v1/alerts/"+id+"/acknowledge", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var acked alert.Alert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &acked))
	assert.Equal(t, alert.StatusAcknowledged, acked.Status)
	assert.NotNil(t, acked.AcknowledgedAt)

	// Suppressing an acknowledged alert is illegal.
	w = doJSON(t, router, http.MethodPost, "/api/v1/alerts/"+id+"/suppress", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	var conflict ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conflict))
	assert.Equal(t, "invalidTransition", conflict.Error)

	w = doJSON(t, router, http.MethodPost, "/api/v1/alerts/"+id+"/resolve", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resolved alert.Alert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resolved))
	assert.Equal(t, alert.StatusResolved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)

	// Resolved is terminal.
	w = doJSON(t, router, http.MethodPost, "/api/v1/alerts/"+id+"/acknowledge", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSeverityMappingCRUD(t *testing.T) {
	router, _, _ := setupTestServer(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/rules/severity-mappings", map[string]interface{}{
		"connectorType":  "snmp",
		"sourceField":    "status",
		"sourceValue":    "2",
		"targetSeverity": "critical",
		"enabled":        true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created rule.SeverityMapping
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotZero(t, created.ID)

	w = doJSON(t, router, http.MethodGet, "/api/v1/rules/severity-mappings?connectorType=snmp", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	created.TargetSeverity = alert.SeverityMajor
	w = doJSON(t, router, http.MethodPut, "/api/v1/rules/severity-mappings/1", created)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodDelete, "/api/v1/rules/severity-mappings/1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/rules/severity-mappings/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSeverityMappingValidationRejected(t *testing.T) {
	router, _, _ := setupTestServer(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/rules/severity-mappings", map[string]interface{}{
		"connectorType":  "snmp",
		"sourceField":    "status",
		"sourceValue":    "2",
		"targetSeverity": "catastrophic",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validationError", resp.Error)
}

func TestPriorityRuleCRUD(t *testing.T) {
	router, _, _ := setupTestServer(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/rules/priority-rules", map[string]interface{}{
		"category": "network",
		"severity": "major",
		"impact":   "high",
		"urgency":  "high",
		"priority": "P1",
		"enabled":  true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/v1/rules/priority-rules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = doJSON(t, router, http.MethodPut, "/api/v1/rules/priority-rules/999", map[string]interface{}{
		"category": "network",
		"severity": "major",
		"impact":   "high",
		"urgency":  "high",
		"priority": "P2",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRuleIDParsing(t *testing.T) {
	router, _, _ := setupTestServer(t)

	w := doJSON(t, router, http.MethodDelete, "/api/v1/rules/priority-rules/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRuleChangeAffectsNextIngest(t *testing.T) {
	router, _, _ := setupTestServer(t)

	first := doJSON(t, router, http.MethodPost, "/api/v1/ingest/snmp", ingestPayload())
	var before IngestResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &before))
	assert.Equal(t, alert.SeverityInfo, before.Alert.Severity)

	w := doJSON(t, router, http.MethodPost, "/api/v1/rules/severity-mappings", map[string]interface{}{
		"connectorType":  "snmp",
		"sourceField":    "status",
		"sourceValue":    "2",
		"targetSeverity": "critical",
		"enabled":        true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	second := doJSON(t, router, http.MethodPost, "/api/v1/ingest/snmp", ingestPayload())
	var after IngestResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &after))
	assert.Equal(t, before.Alert.ID, after.Alert.ID)
	assert.Equal(t, alert.SeverityCritical, after.Alert.Severity)
}
