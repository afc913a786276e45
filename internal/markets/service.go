// Package markets syncs the tradable market catalog from the Gamma API into
// the store and serves lookups over it.
package markets

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/charlie-robison/pythia/internal/store"
	"github.com/charlie-robison/pythia/pkg/gamma"
)

const defaultPageSize = 100

// Service owns catalog sync and search.
type Service struct {
	gamma    gamma.Client
	store    store.Store
	pageSize int
}

// NewService builds a markets service. pageSize <= 0 uses the default.
func NewService(client gamma.Client, st store.Store, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Service{gamma: client, store: st, pageSize: pageSize}
}

// SyncResult summarizes one catalog sync.
type SyncResult struct {
	Events   int `json:"events"`
	Markets  int `json:"markets"`
	Upserted int `json:"upserted"`
}

// Sync pages through active events on the Gamma API and upserts every market
// into the catalog. It stops at the first empty page.
func (s *Service) Sync(ctx context.Context) (*SyncResult, error) {
	var result SyncResult
	now := time.Now().UTC()

	for offset := 0; ; offset += s.pageSize {
		events, err := s.gamma.ListEvents(ctx, gamma.ListParams{
			Limit:  s.pageSize,
			Offset: offset,
			Active: true,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "markets: list events at offset %d", offset)
		}
		if len(events) == 0 {
			break
		}
		result.Events += len(events)

		batch := flatten(events, now)
		result.Markets += len(batch)

		n, err := s.store.UpsertMarkets(ctx, batch)
		if err != nil {
			return nil, eris.Wrapf(err, "markets: upsert page at offset %d", offset)
		}
		result.Upserted += n

		zap.L().Debug("synced catalog page",
			zap.Int("offset", offset),
			zap.Int("events", len(events)),
			zap.Int("markets", len(batch)))
	}

	zap.L().Info("market catalog synced",
		zap.Int("events", result.Events),
		zap.Int("markets", result.Markets))
	return &result, nil
}

// Search looks up catalog markets matching the query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]store.CatalogMarket, error) {
	markets, err := s.store.SearchMarkets(ctx, query, limit)
	return markets, eris.Wrap(err, "markets: search")
}

// flatten converts event pages to catalog rows, one per market.
func flatten(events []gamma.Event, syncedAt time.Time) []store.CatalogMarket {
	var rows []store.CatalogMarket
	for _, ev := range events {
		volume, _ := ev.Volume.Float64()
		for _, m := range ev.Markets {
			row := store.CatalogMarket{
				ID:          m.ID.String(),
				Slug:        m.Slug,
				Question:    m.Question,
				Description: m.Description,
				EventTitle:  ev.Title,
				Active:      m.Active,
				Closed:      m.Closed,
				Volume:      volume,
				SyncedAt:    syncedAt,
			}
			if p, ok := m.YesPrice(); ok {
				row.YesPrice = &p
			}
			rows = append(rows, row)
		}
	}
	return rows
}
