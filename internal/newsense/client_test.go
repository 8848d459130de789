package newsense

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoginHandler(token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["username"] != "tenant@example.com" || creds["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	}
}

func TestNewClientLogsIn(t *testing.T) {
	var seenAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", newLoginHandler("tok-123"))
	mux.HandleFunc("/tenant/devices", func(w http.ResponseWriter, r *http.Request) {
		seenAuth = r.Header.Get("X-Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}, "hasNextPage": false})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, "tenant@example.com", "secret", 5*time.Second)
	require.NoError(t, err)

	_, err = client.ListDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", seenAuth)
}

func TestNewClientRejectedCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", newLoginHandler("tok-123"))
	server := httptest.NewServer(mux)
	defer server.Close()

	_, err := NewClient(context.Background(), server.URL, "tenant@example.com", "wrong", 5*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_FAILED")
}

func TestListDevicesPaginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", newLoginHandler("tok"))
	mux.HandleFunc("/tenant/devices", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("pageSize"))
		page := r.URL.Query().Get("page")
		switch page {
		case "0":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]interface{}{
					{"id": map[string]string{"id": "dev-1"}, "name": "PUMP-01"},
				},
				"hasNextPage": true,
			})
		default:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]interface{}{
					{"id": map[string]string{"id": "dev-2"}, "name": "FAN-03"},
				},
				"hasNextPage": false,
			})
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, "tenant@example.com", "secret", 5*time.Second)
	require.NoError(t, err)

	devices, err := client.ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, Device{ID: "dev-1", Name: "PUMP-01"}, devices[0])
	assert.Equal(t, Device{ID: "dev-2", Name: "FAN-03"}, devices[1])
}

func TestListKeysExcludesTimestamp(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", newLoginHandler("tok"))
	mux.HandleFunc("/plugins/telemetry/DEVICE/dev-1/keys/timeseries", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]string{"temperature", "timestamp", "pressure"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, "tenant@example.com", "secret", 5*time.Second)
	require.NoError(t, err)

	keys, err := client.ListKeys(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"temperature", "pressure"}, keys)
}

func TestListKeysDegradesToEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", newLoginHandler("tok"))
	mux.HandleFunc("/plugins/telemetry/DEVICE/dev-1/keys/timeseries", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, "tenant@example.com", "secret", 5*time.Second)
	require.NoError(t, err)

	keys, err := client.ListKeys(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFetchSeriesDayBoundariesAndRawLimit(t *testing.T) {
	var query map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", newLoginHandler("tok"))
	mux.HandleFunc("/plugins/telemetry/DEVICE/dev-1/values/timeseries", func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"temperature": []map[string]interface{}{
				{"ts": 1715800000000, "value": "26.5"},
				{"ts": 1715700000000, "value": 25.0},
				{"ts": 1715750000000, "value": "not-a-number"},
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, "tenant@example.com", "secret", 5*time.Second)
	require.NoError(t, err)

	series, err := client.FetchSeries(context.Background(), "dev-1", "temperature", "2024-05-13", "2024-05-15")
	require.NoError(t, err)

	// 3-day range reads raw samples, no aggregation.
	assert.Equal(t, "10000", query["limit"])
	assert.Empty(t, query["agg"])

	start := time.Date(2024, 5, 13, 0, 0, 0, 0, time.Local).UnixMilli()
	end := time.Date(2024, 5, 15, 23, 59, 59, 0, time.Local).UnixMilli()
	assert.Equal(t, fmt.Sprintf("%d", start), query["startTs"])
	assert.Equal(t, fmt.Sprintf("%d", end), query["endTs"])

	// Non-numeric sample dropped, remainder ascending.
	require.Len(t, series.Points, 2)
	assert.Equal(t, 25.0, series.Points[0].Value)
	assert.Equal(t, 26.5, series.Points[1].Value)
	assert.True(t, series.Points[0].TS.Before(series.Points[1].TS))
}

func TestFetchSeriesAggregationTable(t *testing.T) {
	tests := []struct {
		name             string
		start            string
		expectedInterval time.Duration
	}{
		{"over 90 days uses weekly average", "2024-01-01", 7 * 24 * time.Hour},
		{"over 30 days uses daily average", "2024-04-01", 24 * time.Hour},
		{"over 7 days uses hourly average", "2024-05-01", time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var query map[string]string
			mux := http.NewServeMux()
			mux.HandleFunc("/auth/login", newLoginHandler("tok"))
			mux.HandleFunc("/plugins/telemetry/DEVICE/dev-1/values/timeseries", func(w http.ResponseWriter, r *http.Request) {
				query = map[string]string{
					"interval": r.URL.Query().Get("interval"),
					"agg":      r.URL.Query().Get("agg"),
					"limit":    r.URL.Query().Get("limit"),
				}
				json.NewEncoder(w).Encode(map[string]interface{}{})
			})
			server := httptest.NewServer(mux)
			defer server.Close()

			client, err := NewClient(context.Background(), server.URL, "tenant@example.com", "secret", 5*time.Second)
			require.NoError(t, err)

			_, err = client.FetchSeries(context.Background(), "dev-1", "temperature", tt.start, "2024-05-15")
			require.NoError(t, err)

			assert.Equal(t, "AVG", query["agg"])
			assert.Equal(t, fmt.Sprintf("%d", tt.expectedInterval.Milliseconds()), query["interval"])
			assert.Empty(t, query["limit"])
		})
	}
}

func TestFetchSeriesMalformedDateDegradesToEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", newLoginHandler("tok"))
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, "tenant@example.com", "secret", 5*time.Second)
	require.NoError(t, err)

	series, err := client.FetchSeries(context.Background(), "dev-1", "temperature", "15/05/2024", "2024-05-15")
	require.NoError(t, err)
	assert.Empty(t, series.Points)
	assert.Equal(t, "temperature", series.Variable)
}

func TestFetchSeriesServerErrorDegradesToEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", newLoginHandler("tok"))
	mux.HandleFunc("/plugins/telemetry/DEVICE/dev-1/values/timeseries", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, "tenant@example.com", "secret", 5*time.Second)
	require.NoError(t, err)

	series, err := client.FetchSeries(context.Background(), "dev-1", "temperature", "2024-05-14", "2024-05-15")
	require.NoError(t, err)
	assert.Empty(t, series.Points)
}

func TestLatestValues(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", newLoginHandler("tok"))
	mux.HandleFunc("/plugins/telemetry/DEVICE/dev-1/values/timeseries", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "temperature,pressure", r.URL.Query().Get("keys"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"temperature": []map[string]interface{}{{"ts": 1715800000000, "value": "26.5"}},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, "tenant@example.com", "secret", 5*time.Second)
	require.NoError(t, err)

	values, err := client.LatestValues(context.Background(), "dev-1", []string{"temperature", "pressure"})
	require.NoError(t, err)

	// pressure never published; only temperature comes back.
	require.Len(t, values, 1)
	assert.Equal(t, "temperature", values[0].Key)
	assert.Equal(t, 26.5, values[0].Value)
}

func TestCheckDataAvailability(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", newLoginHandler("tok"))
	mux.HandleFunc("/plugins/telemetry/DEVICE/dev-1/values/timeseries", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"temperature": []map[string]interface{}{{"ts": 1715800000000, "value": "26.5"}},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, "tenant@example.com", "secret", 5*time.Second)
	require.NoError(t, err)

	report, err := client.CheckDataAvailability(context.Background(), "dev-1", []string{"temperature", "pressure"})
	require.NoError(t, err)
	require.Len(t, report, 2)
	assert.True(t, report[0].HasData)
	assert.Equal(t, "temperature", report[0].Key)
	assert.False(t, report[1].HasData)
}

func TestExpiredTokenTriggersRelogin(t *testing.T) {
	logins := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		logins++
		json.NewEncoder(w).Encode(map[string]string{"token": fmt.Sprintf("tok-%d", logins)})
	})
	mux.HandleFunc("/tenant/devices", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Authorization") == "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}, "hasNextPage": false})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(context.Background(), server.URL, "tenant@example.com", "secret", 5*time.Second)
	require.NoError(t, err)

	_, err = client.ListDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, logins)
}
