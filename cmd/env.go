package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/charlie-robison/pythia/internal/llm"
	"github.com/charlie-robison/pythia/internal/store"
	"github.com/charlie-robison/pythia/pkg/anthropic"
	"github.com/charlie-robison/pythia/pkg/gamma"
	"github.com/charlie-robison/pythia/pkg/perplexity"
)

// initStore opens the configured store. The caller owns Close.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "pythia.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens the configured store and runs migrations.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newCompleters builds the completion clients: researcher does live web
// lookups when a Perplexity key is configured, otherwise both stages fall
// back to plain Anthropic generation.
func newCompleters() (researcher, reasoner llm.Completer) {
	plain := llm.NewPlain(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)

	var extended llm.Completer
	if cfg.Perplexity.Key != "" {
		pplx := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
		extended = llm.NewSearching(pplx, cfg.Perplexity.Model)
	}

	return llm.Pick(extended, plain), plain
}

// newGamma builds the market catalog API client.
func newGamma() gamma.Client {
	return gamma.NewClient(
		gamma.WithBaseURL(cfg.Gamma.BaseURL),
		gamma.WithRateLimit(cfg.Gamma.RateLimitRPS, 1),
	)
}
