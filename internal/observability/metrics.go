package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// MetricType represents the type of metric
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Metric represents a single metric
type Metric struct {
	Name      string                 `json:"name"`
	Type      MetricType             `json:"type"`
	Value     float64                `json:"value"`
	Labels    map[string]string      `json:"labels,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// MetricsCollector collects and stores application metrics
type MetricsCollector struct {
	mu      sync.RWMutex
	metrics map[string]*Metric
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[string]*Metric),
	}
}

// metricKey generates a unique key for a metric
func metricKey(name string, labels map[string]string) string {
	key := name
	if len(labels) > 0 {
		keys := make([]string, 0, len(labels))
		for k := range labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			key += "." + k + "=" + labels[k]
		}
	}
	return key
}

// Inc increments a counter metric
func (mc *MetricsCollector) Inc(name string, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := metricKey(name, labels)
	if metric, exists := mc.metrics[key]; exists {
		metric.Value++
		metric.Timestamp = time.Now()
	} else {
		mc.metrics[key] = &Metric{
			Name:      name,
			Type:      MetricTypeCounter,
			Value:     1,
			Labels:    labels,
			Timestamp: time.Now(),
		}
	}
}

// Add adds a value to a counter metric
func (mc *MetricsCollector) Add(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := metricKey(name, labels)
	if metric, exists := mc.metrics[key]; exists {
		metric.Value += value
		metric.Timestamp = time.Now()
	} else {
		mc.metrics[key] = &Metric{
			Name:      name,
			Type:      MetricTypeCounter,
			Value:     value,
			Labels:    labels,
			Timestamp: time.Now(),
		}
	}
}

// Set sets a gauge metric value
func (mc *MetricsCollector) Set(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := metricKey(name, labels)
	mc.metrics[key] = &Metric{
		Name:      name,
		Type:      MetricTypeGauge,
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now(),
	}
}

// Observe records a histogram observation
func (mc *MetricsCollector) Observe(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := metricKey(name, labels)
	if metric, exists := mc.metrics[key]; exists {
		// Simple histogram - just tracking count and sum for now
		// In production, you'd use proper histogram buckets
		if metric.Extra == nil {
			metric.Extra = make(map[string]interface{})
		}
		count := 1.0
		sum := value
		if c, ok := metric.Extra["count"].(float64); ok {
			count = c + 1
		}
		if s, ok := metric.Extra["sum"].(float64); ok {
			sum = s + value
		}
		metric.Extra["count"] = count
		metric.Extra["sum"] = sum
		metric.Value = sum / count // average
		metric.Timestamp = time.Now()
	} else {
		mc.metrics[key] = &Metric{
			Name:      name,
			Type:      MetricTypeHistogram,
			Value:     value,
			Labels:    labels,
			Timestamp: time.Now(),
			Extra: map[string]interface{}{
				"count": 1.0,
				"sum":   value,
			},
		}
	}
}

// Get retrieves a metric by name and labels
func (mc *MetricsCollector) Get(name string, labels map[string]string) (*Metric, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	key := metricKey(name, labels)
	metric, exists := mc.metrics[key]
	return metric, exists
}

// GetAll retrieves all metrics
func (mc *MetricsCollector) GetAll() map[string]*Metric {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	// Create a copy to avoid race conditions
	result := make(map[string]*Metric, len(mc.metrics))
	for k, v := range mc.metrics {
		result[k] = v
	}
	return result
}

// Reset clears all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.metrics = make(map[string]*Metric)
}

// Standard metric names
const (
	// Chat metrics
	MetricChatTotal            = "chat_queries_total"
	MetricChatDuration         = "chat_query_duration_seconds"
	MetricChatSuccess          = "chat_queries_success_total"
	MetricChatFailure          = "chat_queries_failure_total"
	MetricChatCacheHits        = "chat_cache_hits_total"
	MetricChatCacheMisses      = "chat_cache_misses_total"
	MetricExtractionParseError = "chat_extraction_parse_errors_total"

	// LLM metrics
	MetricLLMRequests = "llm_requests_total"
	MetricLLMDuration = "llm_request_duration_seconds"
	MetricLLMTokens   = "llm_tokens_total"
	MetricLLMErrors   = "llm_errors_total"

	// Telemetry fetch metrics
	MetricFetchBatches       = "telemetry_fetch_batches_total"
	MetricFetchDuration      = "telemetry_fetch_duration_seconds"
	MetricFetchSeries        = "telemetry_fetch_series_total"
	MetricFetchSkipped       = "telemetry_fetch_skipped_total"
	MetricPlatformLogins     = "telemetry_platform_logins_total"
	MetricPlatformCallErrors = "telemetry_platform_errors_total"

	// Auth metrics
	MetricAuthAttempts       = "auth_attempts_total"
	MetricAuthSuccess        = "auth_success_total"
	MetricAuthFailure        = "auth_failure_total"
	MetricAuthTokensCreated  = "auth_tokens_created_total"
	MetricAuthSessionsActive = "auth_sessions_active"

	// HTTP metrics
	MetricHTTPRequests     = "http_requests_total"
	MetricHTTPDuration     = "http_request_duration_seconds"
	MetricHTTPErrors       = "http_errors_total"
	MetricHTTPResponseSize = "http_response_size_bytes"
)

// Global metrics collector instance
var globalMetrics = NewMetricsCollector()

// GetGlobalMetrics returns the global metrics collector
func GetGlobalMetrics() *MetricsCollector {
	return globalMetrics
}

// RecordChatMetrics records metrics for one chat query
func RecordChatMetrics(duration time.Duration, success bool, cached bool, errorType string) {
	metrics := GetGlobalMetrics()

	labels := map[string]string{}
	if errorType != "" {
		labels["error_type"] = errorType
	}

	metrics.Inc(MetricChatTotal, nil)

	if success {
		metrics.Inc(MetricChatSuccess, nil)
	} else {
		metrics.Inc(MetricChatFailure, labels)
	}

	if cached {
		metrics.Inc(MetricChatCacheHits, nil)
	} else {
		metrics.Inc(MetricChatCacheMisses, nil)
	}

	metrics.Observe(MetricChatDuration, duration.Seconds(), nil)
}

// RecordLLMMetrics records metrics for LLM operations
func RecordLLMMetrics(operation string, duration time.Duration, err error) {
	metrics := GetGlobalMetrics()

	labels := map[string]string{"operation": operation}

	metrics.Inc(MetricLLMRequests, labels)
	metrics.Observe(MetricLLMDuration, duration.Seconds(), labels)

	if err != nil {
		errorLabels := map[string]string{
			"operation": operation,
			"error":     err.Error(),
		}
		metrics.Inc(MetricLLMErrors, errorLabels)
	}
}

// RecordFetchMetrics records metrics for one telemetry fetch batch
func RecordFetchMetrics(duration time.Duration, fetched, skipped int) {
	metrics := GetGlobalMetrics()

	metrics.Inc(MetricFetchBatches, nil)
	metrics.Observe(MetricFetchDuration, duration.Seconds(), nil)
	if fetched > 0 {
		metrics.Add(MetricFetchSeries, float64(fetched), nil)
	}
	if skipped > 0 {
		metrics.Add(MetricFetchSkipped, float64(skipped), nil)
	}
}

// RecordHTTPMetrics records metrics for HTTP requests
func RecordHTTPMetrics(method, path string, statusCode int, duration time.Duration, responseSize int) {
	metrics := GetGlobalMetrics()

	labels := map[string]string{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(statusCode),
	}

	metrics.Inc(MetricHTTPRequests, labels)
	metrics.Observe(MetricHTTPDuration, duration.Seconds(), labels)

	if statusCode >= 400 {
		errorLabels := map[string]string{
			"method": method,
			"path":   path,
			"status": strconv.Itoa(statusCode),
		}
		metrics.Inc(MetricHTTPErrors, errorLabels)
	}

	if responseSize > 0 {
		metrics.Observe(MetricHTTPResponseSize, float64(responseSize), labels)
	}
}
