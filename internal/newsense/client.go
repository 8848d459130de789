// Package newsense is an HTTP client for the telemetry platform REST API.
// Telemetry reads degrade to empty results rather than failing the request:
// a missing series answers "no data", only authentication is fatal.
package newsense

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	apperrors "github.com/newsense/telemetry-ai/internal/errors"
)

const (
	// devicePageSize is the platform page size for device listing.
	devicePageSize = 100

	// rawPointLimit caps raw (unaggregated) series reads.
	rawPointLimit = 10000
)

// Device is a registered device on the platform.
type Device struct {
	ID   string
	Name string
}

// Point is a single telemetry sample.
type Point struct {
	TS    time.Time
	Value float64
}

// Series is a named sequence of samples, ordered by ascending timestamp.
type Series struct {
	Label    string  `json:"label"`
	Variable string  `json:"variable"`
	Points   []Point `json:"points"`
}

// LatestValue is the most recent sample for one variable of one device.
type LatestValue struct {
	Label string    `json:"label"`
	Key   string    `json:"key"`
	TS    time.Time `json:"ts"`
	Value float64   `json:"value"`
}

// Availability describes whether a device currently reports a variable.
type Availability struct {
	Key     string    `json:"key"`
	HasData bool      `json:"has_data"`
	LastTS  time.Time `json:"last_ts,omitempty"`
}

// Client talks to the telemetry platform. It logs in once at construction
// and re-authenticates transparently when the token expires.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker

	mu    sync.RWMutex
	token string
}

// NewClient logs into the platform and returns a ready client. A rejected
// login is a configuration problem and fails construction.
func NewClient(ctx context.Context, baseURL, username, password string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "newsense-api",
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}

	if err := c.login(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// login exchanges the configured credentials for a bearer token.
func (c *Client) login(ctx context.Context) error {
	payload, _ := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/auth/login", strings.NewReader(string(payload)))
	if err != nil {
		return apperrors.NewPlatformAuthError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewPlatformAuthError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewPlatformAuthError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return apperrors.NewPlatformAuthError(
			fmt.Errorf("login failed with status %d: %s", resp.StatusCode, string(body)))
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &loginResp); err != nil {
		return apperrors.NewPlatformAuthError(fmt.Errorf("failed to parse login response: %w", err))
	}
	if loginResp.Token == "" {
		return apperrors.NewPlatformAuthError(fmt.Errorf("login response contained no token"))
	}

	c.mu.Lock()
	c.token = loginResp.Token
	c.mu.Unlock()
	return nil
}

// doRequest executes an authenticated GET through the circuit breaker. An
// expired token triggers a single re-login and retry.
func (c *Client) doRequest(ctx context.Context, path string, params url.Values) (int, []byte, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		status, body, err := c.get(ctx, path, params)
		if err != nil {
			return nil, err
		}

		if status == http.StatusUnauthorized {
			if err := c.login(ctx); err != nil {
				return nil, err
			}
			status, body, err = c.get(ctx, path, params)
			if err != nil {
				return nil, err
			}
		}

		return &rawResponse{status: status, body: body}, nil
	})
	if err != nil {
		return 0, nil, err
	}

	resp := result.(*rawResponse)
	return resp.status, resp.body, nil
}

type rawResponse struct {
	status int
	body   []byte
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (int, []byte, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	req.Header.Set("X-Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, body, nil
}

// ListDevices walks the paginated device listing until the platform reports
// no further pages.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	devices := []Device{}

	for page := 0; ; page++ {
		params := url.Values{}
		params.Set("pageSize", strconv.Itoa(devicePageSize))
		params.Set("page", strconv.Itoa(page))

		status, body, err := c.doRequest(ctx, "/tenant/devices", params)
		if err != nil {
			return nil, fmt.Errorf("device listing request failed: %w", err)
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("device listing failed with status %d: %s", status, string(body))
		}

		var pageResp struct {
			Data []struct {
				ID struct {
					ID string `json:"id"`
				} `json:"id"`
				Name string `json:"name"`
			} `json:"data"`
			HasNextPage bool `json:"hasNextPage"`
		}
		if err := json.Unmarshal(body, &pageResp); err != nil {
			return nil, fmt.Errorf("failed to parse device listing: %w", err)
		}

		for _, d := range pageResp.Data {
			devices = append(devices, Device{ID: d.ID.ID, Name: d.Name})
		}

		if !pageResp.HasNextPage {
			break
		}
	}

	return devices, nil
}

// ListKeys returns the telemetry variable names a device reports. The
// timestamp bookkeeping key is not a variable and is excluded. A failed read
// degrades to an empty set.
func (c *Client) ListKeys(ctx context.Context, deviceID string) ([]string, error) {
	path := fmt.Sprintf("/plugins/telemetry/DEVICE/%s/keys/timeseries", url.PathEscape(deviceID))

	status, body, err := c.doRequest(ctx, path, nil)
	if err != nil || status != http.StatusOK {
		return []string{}, nil
	}

	var keys []string
	if err := json.Unmarshal(body, &keys); err != nil {
		return []string{}, nil
	}

	filtered := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "timestamp" {
			filtered = append(filtered, k)
		}
	}
	return filtered, nil
}

// FetchSeries reads one variable of one device over a calendar date range.
// Dates are inclusive day boundaries in the local zone. Long ranges are
// server-side averaged per the range width; short ranges return raw samples.
// Any failure degrades to an empty series.
func (c *Client) FetchSeries(ctx context.Context, deviceID, variable, startDate, endDate string) (Series, error) {
	series := Series{Variable: variable, Points: []Point{}}

	start, err := time.ParseInLocation("2006-01-02", startDate, time.Local)
	if err != nil {
		return series, nil
	}
	end, err := time.ParseInLocation("2006-01-02", endDate, time.Local)
	if err != nil {
		return series, nil
	}

	startTs := start.UnixMilli()
	endTs := end.Add(23*time.Hour + 59*time.Minute + 59*time.Second).UnixMilli()

	params := url.Values{}
	params.Set("keys", variable)
	params.Set("startTs", strconv.FormatInt(startTs, 10))
	params.Set("endTs", strconv.FormatInt(endTs, 10))

	if interval, ok := aggregationInterval(end.Sub(start)); ok {
		params.Set("interval", strconv.FormatInt(interval.Milliseconds(), 10))
		params.Set("agg", "AVG")
	} else {
		params.Set("limit", strconv.Itoa(rawPointLimit))
	}

	path := fmt.Sprintf("/plugins/telemetry/DEVICE/%s/values/timeseries", url.PathEscape(deviceID))
	status, body, err := c.doRequest(ctx, path, params)
	if err != nil || status != http.StatusOK {
		return series, nil
	}

	series.Points = parsePoints(body, variable)
	return series, nil
}

// aggregationInterval picks the server-side averaging window for a range
// width. Ranges of a week or less are read raw.
func aggregationInterval(width time.Duration) (time.Duration, bool) {
	days := width.Hours() / 24
	switch {
	case days > 90:
		return 7 * 24 * time.Hour, true
	case days > 30:
		return 24 * time.Hour, true
	case days > 7:
		return time.Hour, true
	default:
		return 0, false
	}
}

// parsePoints decodes the timeseries payload for one key. Samples whose value
// is not numeric are dropped; the result is sorted ascending by timestamp.
func parsePoints(body []byte, variable string) []Point {
	var payload map[string][]struct {
		TS    int64       `json:"ts"`
		Value interface{} `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return []Point{}
	}

	samples, ok := payload[variable]
	if !ok {
		return []Point{}
	}

	points := make([]Point, 0, len(samples))
	for _, s := range samples {
		v, ok := numericValue(s.Value)
		if !ok {
			continue
		}
		points = append(points, Point{TS: time.UnixMilli(s.TS), Value: v})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].TS.Before(points[j].TS) })
	return points
}

func numericValue(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// LatestValues reads the most recent sample of each requested variable in a
// single call per device. Failures degrade to an empty result.
func (c *Client) LatestValues(ctx context.Context, deviceID string, keys []string) ([]LatestValue, error) {
	if len(keys) == 0 {
		return []LatestValue{}, nil
	}

	params := url.Values{}
	params.Set("keys", strings.Join(keys, ","))

	path := fmt.Sprintf("/plugins/telemetry/DEVICE/%s/values/timeseries", url.PathEscape(deviceID))
	status, body, err := c.doRequest(ctx, path, params)
	if err != nil || status != http.StatusOK {
		return []LatestValue{}, nil
	}

	var payload map[string][]struct {
		TS    int64       `json:"ts"`
		Value interface{} `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return []LatestValue{}, nil
	}

	values := make([]LatestValue, 0, len(keys))
	for _, key := range keys {
		samples, ok := payload[key]
		if !ok || len(samples) == 0 {
			continue
		}
		v, ok := numericValue(samples[0].Value)
		if !ok {
			continue
		}
		values = append(values, LatestValue{
			Key:   key,
			TS:    time.UnixMilli(samples[0].TS),
			Value: v,
		})
	}
	return values, nil
}

// CheckDataAvailability reports, per requested variable, whether the device
// has ever published a sample and when it last did.
func (c *Client) CheckDataAvailability(ctx context.Context, deviceID string, keys []string) ([]Availability, error) {
	latest, err := c.LatestValues(ctx, deviceID, keys)
	if err != nil {
		return nil, err
	}

	lastSeen := make(map[string]time.Time, len(latest))
	for _, lv := range latest {
		lastSeen[lv.Key] = lv.TS
	}

	report := make([]Availability, 0, len(keys))
	for _, key := range keys {
		ts, ok := lastSeen[key]
		report = append(report, Availability{Key: key, HasData: ok, LastTS: ts})
	}
	return report, nil
}
