// Package monitoring gathers point-in-time operational metrics from the
// store for the metrics endpoint and CLI status output.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/charlie-robison/pythia/internal/store"
)

// MetricsSnapshot holds a point-in-time view of pipeline activity.
type MetricsSnapshot struct {
	// Research runs within the lookback window.
	ResearchTotal    int `json:"research_total"`
	ResearchComplete int `json:"research_complete"`
	ResearchFailed   int `json:"research_failed"`
	ResearchRunning  int `json:"research_running"`

	// Risk runs within the lookback window.
	RiskTotal    int `json:"risk_total"`
	RiskComplete int `json:"risk_complete"`
	RiskFailed   int `json:"risk_failed"`
	RiskRunning  int `json:"risk_running"`

	// Failure rate across both pipelines, over finished runs only.
	FailRate float64 `json:"fail_rate"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := snap.CollectedAt.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	var failed, finished int
	for _, r := range runs {
		if r.CreatedAt.Before(cutoff) {
			continue
		}

		switch r.Kind {
		case store.RunKindResearch:
			snap.ResearchTotal++
			switch r.Status {
			case store.RunStatusComplete:
				snap.ResearchComplete++
			case store.RunStatusFailed:
				snap.ResearchFailed++
			case store.RunStatusRunning:
				snap.ResearchRunning++
			}
		case store.RunKindRisk:
			snap.RiskTotal++
			switch r.Status {
			case store.RunStatusComplete:
				snap.RiskComplete++
			case store.RunStatusFailed:
				snap.RiskFailed++
			case store.RunStatusRunning:
				snap.RiskRunning++
			}
		}

		switch r.Status {
		case store.RunStatusComplete:
			finished++
		case store.RunStatusFailed:
			finished++
			failed++
		}
	}

	if finished > 0 {
		snap.FailRate = float64(failed) / float64(finished)
	}
	return snap, nil
}
