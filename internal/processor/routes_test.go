package processor

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsense/telemetry-ai/internal/newsense"
	"github.com/newsense/telemetry-ai/internal/session"
)

func newTestRouter(t *testing.T, model *scriptedModel) (*gin.Engine, *Processor) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	p, _, _ := newTestProcessor(t, model)
	return p.SetupRoutes(nil), p
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChatEndpoint(t *testing.T) {
	model := &scriptedModel{replies: []string{extractionReply}}
	r, _ := newTestRouter(t, model)

	w := postJSON(t, r, "/api/v1/chat", ChatRequest{Query: "nhiệt độ Bơm số 1 hôm nay"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2024-05-15", resp.StartDate)
	require.Len(t, resp.Series, 1)
}

func TestChatEndpointRejectsMissingQuery(t *testing.T) {
	r, _ := newTestRouter(t, &scriptedModel{})

	w := postJSON(t, r, "/api/v1/chat", gin.H{"session_id": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_INPUT")
}

func TestChatEndpointUnparseableExtractionIs422(t *testing.T) {
	model := &scriptedModel{replies: []string{"không phải JSON"}}
	r, _ := newTestRouter(t, model)

	w := postJSON(t, r, "/api/v1/chat", ChatRequest{Query: "???"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "EXTRACTION_PARSE_FAILED")
}

func TestAnalyzeEndpoint(t *testing.T) {
	model := &scriptedModel{replies: []string{"Nhiệt độ ổn định."}}
	r, _ := newTestRouter(t, model)

	w := postJSON(t, r, "/api/v1/analyze", AnalyzeRequest{
		Query: "phân tích",
		Series: []newsense.Series{
			{Label: "Bơm số 1 (temperature)", Points: []newsense.Point{{TS: testNow, Value: 26.5}}},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Nhiệt độ ổn định.")
}

func TestDevicesEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, &scriptedModel{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var devices []newsense.Device
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &devices))
	require.Len(t, devices, 2)
	assert.Equal(t, "PUMP-01", devices[0].Name)
}

func TestDeviceAvailabilityEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, &scriptedModel{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/dev-1/availability", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var report []newsense.Availability
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Len(t, report, 1)
	assert.Equal(t, "temperature", report[0].Key)
	assert.True(t, report[0].HasData)
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	r, _ := newTestRouter(t, &scriptedModel{})

	// Create
	w := postJSON(t, r, "/api/v1/sessions", gin.H{})
	require.Equal(t, http.StatusCreated, w.Code)

	var sess session.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	require.NotEmpty(t, sess.ID)
	assert.NotEmpty(t, sess.Devices)

	// Fetch
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+sess.ID, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Delete, then fetch is a 404
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+sess.ID, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+sess.ID, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthEndpointWithoutChecker(t *testing.T) {
	r, _ := newTestRouter(t, &scriptedModel{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestHistoryEndpointFiltersByQuery(t *testing.T) {
	model := &scriptedModel{replies: []string{extractionReply}}
	r, _ := newTestRouter(t, model)

	w := postJSON(t, r, "/api/v1/chat", ChatRequest{Query: "nhiệt độ Bơm số 1 hôm nay"})
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history?q=kh%C3%B4ng+kh%E1%BB%9Bp", nil)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Contains(t, w2.Body.String(), `"count":0`)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, req)
	require.Equal(t, http.StatusOK, w3.Code)
	assert.Contains(t, w3.Body.String(), `"count":1`)
}
