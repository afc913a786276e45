// Package store persists pipeline runs and the synced market catalog behind
// a single interface with SQLite and Postgres implementations.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// RunKind identifies which pipeline produced a run.
type RunKind string

const (
	RunKindResearch RunKind = "research"
	RunKindRisk     RunKind = "risk"
)

// RunStatus tracks a run's lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded pipeline execution. Input and Result hold the pipeline
// request and report as raw JSON so the store stays agnostic of their shape.
type Run struct {
	ID        string          `json:"id"`
	Kind      RunKind         `json:"kind"`
	Status    RunStatus       `json:"status"`
	Input     json.RawMessage `json:"input,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind   RunKind   `json:"kind,omitempty"`
	Status RunStatus `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// CatalogMarket is one market in the synced catalog.
type CatalogMarket struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Question    string    `json:"question"`
	Description string    `json:"description,omitempty"`
	EventTitle  string    `json:"event_title,omitempty"`
	Active      bool      `json:"active"`
	Closed      bool      `json:"closed"`
	Volume      float64   `json:"volume"`
	YesPrice    *float64  `json:"yes_price,omitempty"`
	SyncedAt    time.Time `json:"synced_at"`
}

// Store defines persistence for pipeline runs and the market catalog.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, kind RunKind, input json.RawMessage) (*Run, error)
	CompleteRun(ctx context.Context, runID string, result json.RawMessage) error
	FailRun(ctx context.Context, runID string, cause string) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Market catalog
	UpsertMarkets(ctx context.Context, markets []CatalogMarket) (int, error)
	SearchMarkets(ctx context.Context, query string, limit int) ([]CatalogMarket, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
