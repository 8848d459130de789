// Package temporal resolves Vietnamese relative-time phrases into concrete
// calendar date ranges. Resolution is pure and deterministic: the same query
// text and reference time always produce the same hint.
package temporal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar form used everywhere downstream.
const DateLayout = "2006-01-02"

// Hint is the deterministic temporal interpretation of a query. When Resolved
// is false no date rule fired and Start/End are empty; IsLatest may still be
// set by a recency phrase.
type Hint struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	IsLatest bool   `json:"is_latest"`
	Resolved bool   `json:"resolved"`
}

// recencyPhrases mark a request for the current/latest value. They are checked
// independently of the date rules.
var recencyPhrases = []string{
	"mới nhất",
	"hiện tại",
	"giá trị bao nhiêu",
	"lần cuối",
	"is what value",
}

// numericSpan matches "N ngày|tuần|tháng|năm".
var numericSpan = regexp.MustCompile(`(\d+)\s*(ngày|tuần|tháng|năm)`)

// Resolve maps free text to a date range at day granularity. Rule checks are
// ordered; the first match wins. A recency phrase without any date rule
// defaults the window to the previous 24 hours.
func Resolve(queryText string, now time.Time) Hint {
	text := strings.ToLower(queryText)

	isLatest := false
	for _, phrase := range recencyPhrases {
		if strings.Contains(text, phrase) {
			isLatest = true
			break
		}
	}

	if strings.Contains(text, "hôm nay") {
		return hint(now, now, isLatest)
	}

	if strings.Contains(text, "hôm qua") {
		yesterday := now.AddDate(0, 0, -1)
		return hint(yesterday, yesterday, isLatest)
	}

	if m := numericSpan.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			var start time.Time
			switch m[2] {
			case "ngày":
				start = now.AddDate(0, 0, -n)
			case "tuần":
				start = now.AddDate(0, 0, -n*7)
			case "tháng":
				// A month is approximated as 30 days.
				start = now.AddDate(0, 0, -n*30)
			case "năm":
				start = time.Date(now.Year()-n+1, time.January, 1, 0, 0, 0, 0, now.Location())
			}
			return hint(start, now, isLatest)
		}
	}

	if strings.Contains(text, "tuần này") {
		// Monday-anchored week.
		offset := (int(now.Weekday()) + 6) % 7
		return hint(now.AddDate(0, 0, -offset), now, isLatest)
	}

	if strings.Contains(text, "tháng này") {
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return hint(start, now, isLatest)
	}

	if strings.Contains(text, "từ đầu năm") {
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		return hint(start, now, isLatest)
	}

	if strings.Contains(text, "năm ngoái") {
		y := now.Year() - 1
		return Hint{
			Start:    time.Date(y, time.January, 1, 0, 0, 0, 0, now.Location()).Format(DateLayout),
			End:      time.Date(y, time.December, 31, 0, 0, 0, 0, now.Location()).Format(DateLayout),
			IsLatest: isLatest,
			Resolved: true,
		}
	}

	if isLatest {
		// Latest without date context: look at the last 24 hours.
		return hint(now.AddDate(0, 0, -1), now, true)
	}

	return Hint{}
}

func hint(start, end time.Time, isLatest bool) Hint {
	return Hint{
		Start:    start.Format(DateLayout),
		End:      end.Format(DateLayout),
		IsLatest: isLatest,
		Resolved: true,
	}
}
