// Package ingest orchestrates a full ingestion run for one source: fetch,
// normalize, score, and upsert.
package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/permit-cli/internal/model"
	"github.com/sells-group/permit-cli/internal/normalize"
	"github.com/sells-group/permit-cli/internal/source"
	"github.com/sells-group/permit-cli/internal/store"
)

// Result reports the counts of one ingestion run. Skipped counts records
// dropped for lacking a usable identifier; they are reported but do not
// fail the run.
type Result struct {
	Source   string `json:"source"`
	Fetched  int    `json:"fetched"`
	Skipped  int    `json:"skipped"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
	DryRun   bool   `json:"dry_run,omitempty"`
}

// Orchestrator runs the fetch-normalize-upsert pipeline for one adapter.
type Orchestrator struct {
	adapter source.Adapter
	store   store.Store
	dryRun  bool
}

// Options configures an ingestion run.
type Options struct {
	DryRun bool
}

// New creates an Orchestrator. With DryRun set, the store is never written
// to (and may be nil); fetch and normalization still run in full.
func New(adapter source.Adapter, st store.Store, opts Options) *Orchestrator {
	return &Orchestrator{adapter: adapter, store: st, dryRun: opts.DryRun}
}

// Run fetches up to limit records, normalizes and scores them, and writes
// the batch in one idempotent upsert. An empty fetch is a successful run.
func (o *Orchestrator) Run(ctx context.Context, limit int) (*Result, error) {
	desc := o.adapter.Descriptor()
	log := zap.L().With(zap.String("component", "ingest"), zap.String("source", desc.Key))

	result := &Result{Source: desc.Key, DryRun: o.dryRun}

	records, err := o.adapter.Fetch(ctx, limit)
	if err != nil {
		return result, eris.Wrapf(err, "ingest: fetch %s", desc.Key)
	}
	result.Fetched = len(records)

	if len(records) == 0 {
		log.Info("no records available, nothing to ingest")
		return result, nil
	}

	// Municipal exports can repeat a permit across rows (one per
	// inspection); the batch is deduplicated on external id, last row
	// wins, so a single upsert statement never conflicts with itself.
	leads := make([]model.Lead, 0, len(records))
	seen := make(map[string]int, len(records))
	for _, rec := range records {
		lead := normalize.Record(rec, desc.Key)
		if lead == nil {
			result.Skipped++
			continue
		}
		if i, ok := seen[lead.ExternalID]; ok {
			leads[i] = *lead
			continue
		}
		seen[lead.ExternalID] = len(leads)
		leads = append(leads, *lead)
	}

	log.Info("records normalized",
		zap.Int("fetched", result.Fetched),
		zap.Int("leads", len(leads)),
		zap.Int("skipped", result.Skipped),
	)

	if o.dryRun {
		log.Info("dry run, skipping upsert", zap.Int("would_write", len(leads)))
		return result, nil
	}

	upsert, err := o.store.UpsertLeads(ctx, leads)
	if err != nil {
		return result, eris.Wrapf(err, "ingest: upsert %s", desc.Key)
	}
	result.Inserted = upsert.Inserted
	result.Updated = upsert.Updated

	log.Info("ingestion complete",
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}
