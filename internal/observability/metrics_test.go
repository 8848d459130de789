package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordHTTPMetricsStatusLabelIsDecimal(t *testing.T) {
	GetGlobalMetrics().Reset()

	RecordHTTPMetrics("GET", "/api/v1/devices", 200, 12*time.Millisecond, 512)
	RecordHTTPMetrics("POST", "/api/v1/chat", 502, 40*time.Millisecond, 128)

	ok, exists := GetGlobalMetrics().Get(MetricHTTPRequests, map[string]string{
		"method": "GET",
		"path":   "/api/v1/devices",
		"status": "200",
	})
	require.True(t, exists)
	assert.Equal(t, 1.0, ok.Value)

	bad, exists := GetGlobalMetrics().Get(MetricHTTPErrors, map[string]string{
		"method": "POST",
		"path":   "/api/v1/chat",
		"status": "502",
	})
	require.True(t, exists)
	assert.Equal(t, 1.0, bad.Value)
}

func TestCollectorIncAndObserve(t *testing.T) {
	mc := NewMetricsCollector()

	mc.Inc("hits", nil)
	mc.Inc("hits", nil)
	mc.Observe("latency", 2.0, nil)
	mc.Observe("latency", 4.0, nil)

	hits, exists := mc.Get("hits", nil)
	require.True(t, exists)
	assert.Equal(t, 2.0, hits.Value)

	lat, exists := mc.Get("latency", nil)
	require.True(t, exists)
	assert.Equal(t, 3.0, lat.Value) // running average
	assert.Equal(t, 6.0, lat.Extra["sum"])
}
