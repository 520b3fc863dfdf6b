// Package store persists leads and source-health history behind a common
// interface with Postgres and SQLite drivers.
package store

import (
	"context"
	"errors"

	"github.com/sells-group/permit-cli/internal/model"
)

// ErrMissingTable marks a query against a table that has not been
// migrated yet. Callers report it with migration guidance instead of
// treating it as an outage.
var ErrMissingTable = errors.New("store: table missing (run `permit-cli migrate`)")

// UpsertResult reports what one batched upsert did.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// Store defines the persistence interface for the ingestion pipeline.
type Store interface {
	// Leads
	UpsertLeads(ctx context.Context, leads []model.Lead) (*UpsertResult, error)
	ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error)
	CountLeads(ctx context.Context, source string) (int, error)

	// Source health (append-only history)
	InsertHealthRecords(ctx context.Context, records []model.SourceHealthRecord) error
	ListHealthRecords(ctx context.Context, source string, limit int) ([]model.SourceHealthRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
