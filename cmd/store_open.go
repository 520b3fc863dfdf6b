package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/permit-cli/internal/config"
	"github.com/sells-group/permit-cli/internal/fetcher"
	"github.com/sells-group/permit-cli/internal/source"
	"github.com/sells-group/permit-cli/internal/store"
)

// openStore connects to the configured backend. Credential checks happen
// here, before any network call is made.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("database URL is required (PERMIT_STORE_DATABASE_URL)")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("database path is required (PERMIT_STORE_DATABASE_URL)")
		}
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// newRegistry builds the source registry over the shared HTTP client.
func newRegistry(cfg *config.Config) (*source.Registry, error) {
	client := fetcher.New(fetcher.Options{
		UserAgent:    cfg.Fetch.UserAgent,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
	return source.NewRegistry(cfg, client)
}
