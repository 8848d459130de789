// Package processor wires the chat pipeline: temporal resolution, model
// extraction, directory resolution, bounded telemetry fetch and the final
// analysis, exposed over HTTP.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/newsense/telemetry-ai/internal/directory"
	"github.com/newsense/telemetry-ai/internal/errors"
	"github.com/newsense/telemetry-ai/internal/fetch"
	"github.com/newsense/telemetry-ai/internal/history"
	"github.com/newsense/telemetry-ai/internal/knowledge"
	"github.com/newsense/telemetry-ai/internal/llm"
	"github.com/newsense/telemetry-ai/internal/newsense"
	"github.com/newsense/telemetry-ai/internal/observability"
	"github.com/newsense/telemetry-ai/internal/session"
	"github.com/newsense/telemetry-ai/internal/summary"
	"github.com/newsense/telemetry-ai/internal/temporal"
)

const (
	// cacheTTL bounds how long an identical query text is answered from cache.
	cacheTTL = 5 * time.Minute

	// historyWindow is how many recent turns the extraction prompt carries.
	historyWindow = 6
)

// ChatRequest is an incoming natural language query.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query" binding:"required"`
	Analyze   bool   `json:"analyze,omitempty"`
}

// ChatResponse is the answer for one query.
type ChatResponse struct {
	SessionID      string                 `json:"session_id"`
	Query          string                 `json:"query"`
	StartDate      string                 `json:"start_date"`
	EndDate        string                 `json:"end_date"`
	IsLatest       bool                   `json:"is_latest"`
	Series         []newsense.Series      `json:"series"`
	Latest         []newsense.LatestValue `json:"latest,omitempty"`
	Skipped        []string               `json:"skipped,omitempty"`
	Analysis       string                 `json:"analysis,omitempty"`
	CacheHit       bool                   `json:"cache_hit,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time,omitempty"`
}

// PlatformBrowser is the platform surface the HTTP layer needs beyond
// telemetry fetching: the device listing and availability checks.
type PlatformBrowser interface {
	ListDevices(ctx context.Context) ([]newsense.Device, error)
	ListKeys(ctx context.Context, deviceID string) ([]string, error)
	CheckDataAvailability(ctx context.Context, deviceID string, keys []string) ([]newsense.Availability, error)
}

// Processor is the main service struct.
type Processor struct {
	llmClient     llm.Client
	knowledge     *knowledge.Store
	history       *history.Store
	sessions      *session.Manager
	fetcher       *fetch.Orchestrator
	summarizer    *summary.Summarizer
	devices       PlatformBrowser
	cache         *redis.Client
	logger        *observability.Logger
	healthChecker *observability.HealthChecker
	now           func() time.Time
}

// NewProcessor creates a query processor instance.
func NewProcessor(
	llmClient llm.Client,
	knowledgeStore *knowledge.Store,
	historyStore *history.Store,
	sessions *session.Manager,
	fetcher *fetch.Orchestrator,
	summarizer *summary.Summarizer,
	devices PlatformBrowser,
	cache *redis.Client,
) *Processor {
	return &Processor{
		llmClient:  llmClient,
		knowledge:  knowledgeStore,
		history:    historyStore,
		sessions:   sessions,
		fetcher:    fetcher,
		summarizer: summarizer,
		devices:    devices,
		cache:      cache,
		logger:     observability.NewLogger("processor"),
		now:        time.Now,
	}
}

// SetHealthChecker sets the health checker for the processor.
func (p *Processor) SetHealthChecker(hc *observability.HealthChecker) {
	p.healthChecker = hc
}

// SetClock overrides the processor's notion of now. Used by tests.
func (p *Processor) SetClock(now func() time.Time) {
	p.now = now
}

// ProcessQuery handles the main query processing logic.
func (p *Processor) ProcessQuery(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	p.logger.Info(ctx, "Processing query", map[string]interface{}{
		"query":      req.Query,
		"session_id": req.SessionID,
	})

	var errorType string
	var response *ChatResponse
	var processingErr error

	defer func() {
		duration := time.Since(start)
		success := processingErr == nil
		cached := response != nil && response.CacheHit
		observability.RecordChatMetrics(duration, success, cached, errorType)

		if processingErr != nil {
			p.logger.Error(ctx, "Query processing failed", processingErr, map[string]interface{}{
				"query":       req.Query,
				"duration_ms": duration.Milliseconds(),
				"error_type":  errorType,
			})
		} else {
			p.logger.Info(ctx, "Query processed", map[string]interface{}{
				"query":        req.Query,
				"duration_ms":  duration.Milliseconds(),
				"cache_hit":    cached,
				"series_count": len(response.Series),
			})
		}
	}()

	// Identical query text within the TTL answers from cache.
	if cached, err := p.getCachedResult(ctx, req.Query); err == nil {
		cached.CacheHit = true
		cached.ProcessingTime = time.Since(start)
		response = cached
		return cached, nil
	}

	sess, err := p.sessions.GetOrCreate(ctx, req.SessionID, p.loadDeviceDirectory)
	if err != nil {
		errorType = "session"
		processingErr = errors.NewSessionCreationError(err)
		return nil, processingErr
	}

	now := p.now()
	hint := temporal.Resolve(req.Query, now)

	prompt, err := p.buildExtractionPrompt(sess, req.Query, now)
	if err != nil {
		errorType = "knowledge"
		processingErr = err
		return nil, processingErr
	}

	llmStart := time.Now()
	text, err := p.llmClient.Generate(ctx, prompt, llm.GenerateOptions{Temperature: 0})
	observability.RecordLLMMetrics("extraction", time.Since(llmStart), err)
	if err != nil {
		errorType = "generation"
		processingErr = errors.NewGenerationError(err)
		return nil, processingErr
	}

	raw, err := parseExtraction(text, req.Query)
	if err != nil {
		errorType = "extraction_parse"
		observability.GetGlobalMetrics().Inc(observability.MetricExtractionParseError, nil)
		processingErr = err
		return nil, processingErr
	}

	resolved, warnings := merge(raw, hint, now)
	for _, w := range warnings {
		p.logger.Warn(ctx, "Ignoring malformed extraction date", map[string]interface{}{
			"error": w.Error(),
		})
	}

	idx := directory.NewIndex(sess.Devices)

	fetchStart := time.Now()
	series, outcomes := p.fetcher.FetchAll(ctx, idx, resolved.Devices, resolved.StartDate, resolved.EndDate)

	var latest []newsense.LatestValue
	if resolved.IsLatest {
		latest, _ = p.fetcher.FetchLatest(ctx, idx, resolved.Devices)
	}

	skipped := []string{}
	for _, out := range outcomes {
		if out.Skipped {
			skipped = append(skipped, out.Reason)
		}
	}
	observability.RecordFetchMetrics(time.Since(fetchStart), len(series), len(skipped))

	analysis := ""
	if req.Analyze {
		analysis = p.summarizer.Analyze(ctx, req.Query, series)
	}

	response = &ChatResponse{
		SessionID:      sess.ID,
		Query:          req.Query,
		StartDate:      resolved.StartDate,
		EndDate:        resolved.EndDate,
		IsLatest:       resolved.IsLatest,
		Series:         series,
		Latest:         latest,
		Skipped:        skipped,
		Analysis:       analysis,
		ProcessingTime: time.Since(start),
	}

	p.recordTurns(ctx, sess, req.Query, response)
	p.recordHistory(ctx, req.Query, response)

	if err := p.cacheResult(ctx, req.Query, response); err != nil {
		p.logger.Warn(ctx, "Failed to cache query result", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return response, nil
}

// loadDeviceDirectory builds the session's device name-to-id directory from
// the platform's paginated listing.
func (p *Processor) loadDeviceDirectory(ctx context.Context) (map[string]string, error) {
	devices, err := p.devices.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]string, len(devices))
	for _, d := range devices {
		byName[d.Name] = d.ID
	}
	return byName, nil
}

// buildExtractionPrompt assembles the zero-temperature extraction prompt:
// knowledge base, recent conversation, today's date and the required output
// shape.
func (p *Processor) buildExtractionPrompt(sess *session.Session, queryText string, now time.Time) (string, error) {
	knowledgeJSON, err := p.knowledge.CompactJSON()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Bạn là hệ thống trích xuất truy vấn dữ liệu công nghiệp. ")
	sb.WriteString("Từ câu hỏi của người dùng, xác định thiết bị, biến đo và khoảng thời gian.\n\n")
	sb.WriteString("Danh sách thiết bị đã biết (JSON):\n")
	sb.WriteString(knowledgeJSON)
	sb.WriteString("\n\nHôm nay là ")
	sb.WriteString(now.Format(temporal.DateLayout))
	sb.WriteString(".\n")

	window := sess.Window(historyWindow)
	if len(window) > 0 {
		sb.WriteString("\nHội thoại gần đây:\n")
		for _, turn := range window {
			sb.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, turn.Content))
		}
	}

	sb.WriteString("\nCâu hỏi: ")
	sb.WriteString(queryText)
	sb.WriteString("\n\nTrả về DUY NHẤT một đối tượng JSON theo mẫu, không kèm giải thích:\n")
	sb.WriteString(`{"devices": [{"Device": "<nhãn thiết bị>", "Tên biến": "<tên biến>", "Tên thiết bị": "<tên hiển thị>"}], "start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD", "is_latest": false, "location": ""}`)

	return sb.String(), nil
}

// recordTurns appends the exchange to the session transcript. The assistant
// turn is the full response JSON so follow-up extractions see exactly what
// was answered, dates and device labels included.
func (p *Processor) recordTurns(ctx context.Context, sess *session.Session, queryText string, resp *ChatResponse) {
	sess.Append("user", queryText)

	reply, err := json.Marshal(resp)
	if err != nil {
		p.logger.Warn(ctx, "Failed to marshal assistant turn", map[string]interface{}{
			"session_id": sess.ID,
			"error":      err.Error(),
		})
		return
	}
	sess.Append("assistant", string(reply))

	if err := p.sessions.Save(ctx, sess); err != nil {
		p.logger.Warn(ctx, "Failed to save session", map[string]interface{}{
			"session_id": sess.ID,
			"error":      err.Error(),
		})
	}
}

// recordHistory persists the answered query to the audit log.
func (p *Processor) recordHistory(ctx context.Context, queryText string, resp *ChatResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		p.logger.Warn(ctx, "Failed to marshal history entry", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	entry := history.Entry{
		Timestamp: p.now(),
		Query:     queryText,
		Response:  data,
	}
	if err := p.history.Append(entry); err != nil {
		p.logger.Warn(ctx, "Failed to persist history entry", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// getCachedResult retrieves a cached response for identical query text.
func (p *Processor) getCachedResult(ctx context.Context, query string) (*ChatResponse, error) {
	key := fmt.Sprintf("query:%s", query)
	cached, err := p.cache.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var response ChatResponse
	if err := json.Unmarshal([]byte(cached), &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// cacheResult stores a response under the query text.
func (p *Processor) cacheResult(ctx context.Context, query string, response *ChatResponse) error {
	key := fmt.Sprintf("query:%s", query)

	data, err := json.Marshal(response)
	if err != nil {
		return err
	}

	return p.cache.Set(ctx, key, data, cacheTTL).Err()
}
