// Package summary turns fetched telemetry into a Vietnamese analysis: a
// per-variable statistics table plus a model-written narrative. Statistics
// are computed locally; the model only words the findings.
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/newsense/telemetry-ai/internal/llm"
	"github.com/newsense/telemetry-ai/internal/newsense"
	"github.com/newsense/telemetry-ai/internal/observability"
)

const (
	// Messages are fixed strings so callers and operators can match on them.
	msgNoData      = "Không có dữ liệu để phân tích."
	msgNoValidData = "Không có dữ liệu hợp lệ nào được tìm thấy để phân tích."
)

// Stats describes one variable over the analyzed window. Field names are the
// Vietnamese keys the chat frontend renders.
type Stats struct {
	Variable   string  `json:"ten_bien"`
	PointCount int     `json:"so_luong_diem_du_lieu"`
	Mean       float64 `json:"gia_tri_trung_binh"`
	Min        float64 `json:"gia_tri_thap_nhat"`
	Max        float64 `json:"gia_tri_cao_nhat"`
	FirstDate  string  `json:"ngay_bat_dau_du_lieu"`
	LastDate   string  `json:"ngay_ket_thuc_du_lieu"`
}

// Summarizer produces the narrative analysis for a query's fetched series.
type Summarizer struct {
	client llm.Client
	logger *observability.Logger
}

// NewSummarizer creates a summarizer backed by the given model client.
func NewSummarizer(client llm.Client, logger *observability.Logger) *Summarizer {
	if logger == nil {
		logger = observability.NewLogger("summary")
	}
	return &Summarizer{client: client, logger: logger}
}

// Compute derives statistics for every series that carries data. Series with
// no valid points are dropped from the result.
func Compute(series []newsense.Series) []Stats {
	stats := make([]Stats, 0, len(series))
	for _, s := range series {
		st, ok := computeOne(s)
		if ok {
			stats = append(stats, st)
		}
	}
	return stats
}

func computeOne(s newsense.Series) (Stats, bool) {
	if len(s.Points) == 0 {
		return Stats{}, false
	}

	min := s.Points[0].Value
	max := s.Points[0].Value
	sum := 0.0
	for _, p := range s.Points {
		if p.Value < min {
			min = p.Value
		}
		if p.Value > max {
			max = p.Value
		}
		sum += p.Value
	}

	name := s.Label
	if name == "" {
		name = s.Variable
	}

	return Stats{
		Variable:   name,
		PointCount: len(s.Points),
		Mean:       round2(sum / float64(len(s.Points))),
		Min:        round2(min),
		Max:        round2(max),
		FirstDate:  s.Points[0].TS.Format("2006-01-02"),
		LastDate:   s.Points[len(s.Points)-1].TS.Format("2006-01-02"),
	}, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Analyze writes a Vietnamese narrative over the fetched series. Statistics
// failures and model failures both degrade to fixed messages rather than
// erroring, so the chat answer always has an analysis block.
func (s *Summarizer) Analyze(ctx context.Context, queryText string, series []newsense.Series) string {
	if len(series) == 0 {
		return msgNoData
	}

	stats := Compute(series)
	if len(stats) == 0 {
		return msgNoValidData
	}

	statsJSON, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Sprintf("Lỗi khi tạo phân tích tổng hợp: %v", err)
	}

	prompt := buildAnalysisPrompt(queryText, string(statsJSON))

	text, err := s.client.Generate(ctx, prompt, llm.GenerateOptions{Temperature: 0.2})
	if err != nil {
		s.logger.Error(ctx, "Analysis generation failed", err, map[string]interface{}{
			"series_count": len(series),
		})
		return fmt.Sprintf("Lỗi khi tạo phân tích tổng hợp: %v", err)
	}

	return strings.TrimSpace(text)
}

func buildAnalysisPrompt(queryText, statsJSON string) string {
	var sb strings.Builder
	sb.WriteString("Bạn là trợ lý phân tích dữ liệu công nghiệp. ")
	sb.WriteString("Dựa trên số liệu thống kê dưới đây, hãy viết một đoạn phân tích ngắn gọn bằng tiếng Việt cho câu hỏi của người dùng.\n\n")
	sb.WriteString("Câu hỏi: ")
	sb.WriteString(queryText)
	sb.WriteString("\n\nThống kê:\n")
	sb.WriteString(statsJSON)
	sb.WriteString("\n\nNêu xu hướng chính, giá trị bất thường nếu có, và trả lời trực tiếp câu hỏi. Không lặp lại bảng số liệu.")
	return sb.String()
}
