// Package fetch runs telemetry reads for a resolved query under a fixed
// concurrency bound. Requests whose device cannot be resolved are skipped
// up front and reported, never fetched.
package fetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/newsense/telemetry-ai/internal/directory"
	"github.com/newsense/telemetry-ai/internal/newsense"
	"github.com/newsense/telemetry-ai/internal/observability"
)

// DefaultWorkers is the concurrency bound for a fetch batch.
const DefaultWorkers = 5

// Request names one device variable to read, with the display name the
// answer should carry.
type Request struct {
	DeviceName   string `json:"device_name"`
	VariableName string `json:"variable_name"`
	DisplayLabel string `json:"display_label"`
}

// Outcome records what happened to one request in a batch. Skipped requests
// carry a reason and no series.
type Outcome struct {
	Request Request         `json:"request"`
	Series  newsense.Series `json:"series"`
	Skipped bool            `json:"skipped"`
	Reason  string          `json:"reason,omitempty"`
}

// TelemetryReader is the platform surface the orchestrator needs.
type TelemetryReader interface {
	FetchSeries(ctx context.Context, deviceID, variable, startDate, endDate string) (newsense.Series, error)
	LatestValues(ctx context.Context, deviceID string, keys []string) ([]newsense.LatestValue, error)
}

// Orchestrator fans a batch of telemetry reads across a bounded worker set.
type Orchestrator struct {
	client  TelemetryReader
	workers int
	logger  *observability.Logger
}

// NewOrchestrator creates an orchestrator with the given concurrency bound.
func NewOrchestrator(client TelemetryReader, workers int, logger *observability.Logger) *Orchestrator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = observability.NewLogger("fetch")
	}
	return &Orchestrator{client: client, workers: workers, logger: logger}
}

// FetchAll resolves each request's device against the index and reads the
// resolvable ones concurrently. The returned series hold only successful
// reads; outcomes cover every request in input order.
func (o *Orchestrator) FetchAll(ctx context.Context, idx *directory.Index, reqs []Request, startDate, endDate string) ([]newsense.Series, []Outcome) {
	outcomes := make([]Outcome, len(reqs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.workers)

	for i, req := range reqs {
		deviceID, ok := idx.Resolve(req.DeviceName)
		if !ok {
			outcomes[i] = Outcome{
				Request: req,
				Skipped: true,
				Reason:  fmt.Sprintf("device '%s' not found in directory", req.DeviceName),
			}
			o.logger.Warn(ctx, "Skipping unresolvable device", map[string]interface{}{
				"device":   req.DeviceName,
				"variable": req.VariableName,
			})
			continue
		}

		wg.Add(1)
		go func(i int, req Request, deviceID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			series, err := o.client.FetchSeries(ctx, deviceID, req.VariableName, startDate, endDate)
			if err != nil {
				outcomes[i] = Outcome{Request: req, Skipped: true, Reason: err.Error()}
				o.logger.Error(ctx, "Telemetry read failed", err, map[string]interface{}{
					"device":   req.DeviceName,
					"variable": req.VariableName,
				})
				return
			}

			series.Label = req.DisplayLabel
			if series.Label == "" {
				series.Label = Label(req.DeviceName, req.VariableName)
			}
			outcomes[i] = Outcome{Request: req, Series: series}
		}(i, req, deviceID)
	}

	wg.Wait()

	results := make([]newsense.Series, 0, len(reqs))
	for _, out := range outcomes {
		if !out.Skipped {
			results = append(results, out.Series)
		}
	}
	return results, outcomes
}

// FetchLatest reads the most recent value of each requested variable. Keys
// are grouped so each resolvable device costs a single platform call.
func (o *Orchestrator) FetchLatest(ctx context.Context, idx *directory.Index, reqs []Request) ([]newsense.LatestValue, []Outcome) {
	type group struct {
		deviceID string
		name     string
		keys     []string
		labels   map[string]string
		members  []int // outcome indexes covered by this device's call
	}

	outcomes := make([]Outcome, 0, len(reqs))
	groups := map[string]*group{}
	order := []string{}

	for _, req := range reqs {
		deviceID, ok := idx.Resolve(req.DeviceName)
		if !ok {
			outcomes = append(outcomes, Outcome{
				Request: req,
				Skipped: true,
				Reason:  fmt.Sprintf("device '%s' not found in directory", req.DeviceName),
			})
			continue
		}

		g, ok := groups[deviceID]
		if !ok {
			g = &group{deviceID: deviceID, name: req.DeviceName, labels: map[string]string{}}
			groups[deviceID] = g
			order = append(order, deviceID)
		}
		g.keys = append(g.keys, req.VariableName)

		label := req.DisplayLabel
		if label == "" {
			label = Label(req.DeviceName, req.VariableName)
		}
		g.labels[req.VariableName] = label
		g.members = append(g.members, len(outcomes))
		outcomes = append(outcomes, Outcome{Request: req})
	}

	values := []newsense.LatestValue{}
	for _, deviceID := range order {
		g := groups[deviceID]
		latest, err := o.client.LatestValues(ctx, g.deviceID, g.keys)
		if err != nil {
			for _, i := range g.members {
				outcomes[i].Skipped = true
				outcomes[i].Reason = err.Error()
			}
			o.logger.Error(ctx, "Latest-value read failed", err, map[string]interface{}{
				"device": g.name,
			})
			continue
		}
		for _, lv := range latest {
			lv.Label = g.labels[lv.Key]
			values = append(values, lv)
		}
	}
	return values, outcomes
}

// Label is the display form of one device variable.
func Label(deviceName, variable string) string {
	return fmt.Sprintf("%s (%s)", deviceName, variable)
}
