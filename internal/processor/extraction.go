package processor

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/newsense/telemetry-ai/internal/errors"
	"github.com/newsense/telemetry-ai/internal/fetch"
	"github.com/newsense/telemetry-ai/internal/temporal"
)

// RawDevice is one device reference as the model emits it. The Vietnamese
// keys mirror the knowledge spreadsheet columns the model is prompted with.
type RawDevice struct {
	DeviceLabel  string `json:"Device"`
	VariableName string `json:"Tên biến"`
	DisplayName  string `json:"Tên thiết bị"`
}

// RawExtraction is the untrusted JSON object extracted from the model
// response. Everything in it is advisory until merged with the deterministic
// temporal hint.
type RawExtraction struct {
	Location  string      `json:"location"`
	StartDate string      `json:"start_date"`
	EndDate   string      `json:"end_date"`
	IsLatest  bool        `json:"is_latest"`
	Devices   []RawDevice `json:"devices"`
}

// ResolvedQuery is the typed, validated query plan handed to the fetch layer.
type ResolvedQuery struct {
	Location  string          `json:"location,omitempty"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	IsLatest  bool            `json:"is_latest"`
	Devices   []fetch.Request `json:"devices"`
}

// codeFence strips markdown fences the model may wrap JSON in.
var codeFence = regexp.MustCompile("```(?:json)?")

// braceObject grabs the outermost JSON object as a last resort.
var braceObject = regexp.MustCompile(`(?s)\{.*\}`)

// parseExtraction pulls the extraction object out of a model response. The
// response is tried as-is first, then with fences stripped, then by taking
// the widest brace-delimited span.
func parseExtraction(text, queryText string) (*RawExtraction, error) {
	cleaned := strings.TrimSpace(codeFence.ReplaceAllString(text, ""))

	var raw RawExtraction
	if err := json.Unmarshal([]byte(cleaned), &raw); err == nil {
		return &raw, nil
	}

	candidate := braceObject.FindString(cleaned)
	if candidate == "" {
		return nil, errors.NewExtractionParseError(nil, queryText)
	}
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return nil, errors.NewExtractionParseError(err, queryText)
	}
	return &raw, nil
}

// dateLayouts are the accepted model date forms, tried in order.
var dateLayouts = []string{temporal.DateLayout, "02/01/2006", "02-01-2006"}

// normalizeDate converts a model-provided date to the canonical layout.
func normalizeDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t.Format(temporal.DateLayout), nil
		}
	}
	return "", errors.NewMalformedDateError(value)
}

// merge combines the model extraction with the deterministic temporal hint.
// A resolved hint always wins over model-provided dates. Malformed model
// dates fall back to defaults and are reported as warnings, not failures.
func merge(raw *RawExtraction, hint temporal.Hint, now time.Time) (ResolvedQuery, []error) {
	q := ResolvedQuery{
		Location: raw.Location,
		IsLatest: raw.IsLatest || hint.IsLatest,
	}

	var warnings []error

	if hint.Resolved {
		q.StartDate = hint.Start
		q.EndDate = hint.End
	} else {
		start, err := normalizeDate(raw.StartDate)
		if err != nil {
			warnings = append(warnings, err)
		}
		end, err := normalizeDate(raw.EndDate)
		if err != nil {
			warnings = append(warnings, err)
		}

		if end == "" {
			end = now.Format(temporal.DateLayout)
		}
		if start == "" {
			// No start: last day for a latest-value ask, last month otherwise,
			// counted back from today regardless of what end the model chose.
			days := -30
			if q.IsLatest {
				days = -1
			}
			start = now.AddDate(0, 0, days).Format(temporal.DateLayout)
		}
		if start > end {
			start, end = end, start
		}

		q.StartDate = start
		q.EndDate = end
	}

	q.Devices = make([]fetch.Request, 0, len(raw.Devices))
	for _, d := range raw.Devices {
		if d.DeviceLabel == "" && d.DisplayName == "" {
			continue
		}
		name := d.DeviceLabel
		if name == "" {
			name = d.DisplayName
		}
		display := ""
		if d.DisplayName != "" {
			display = fetch.Label(d.DisplayName, d.VariableName)
		}
		q.Devices = append(q.Devices, fetch.Request{
			DeviceName:   name,
			VariableName: d.VariableName,
			DisplayLabel: display,
		})
	}

	return q, warnings
}
