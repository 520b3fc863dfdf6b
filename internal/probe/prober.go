// Package probe runs lightweight health checks against every configured
// source and appends the results to the health history.
package probe

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/permit-cli/internal/model"
	"github.com/sells-group/permit-cli/internal/source"
	"github.com/sells-group/permit-cli/internal/store"
)

// RunResult aggregates one probe run across all sources.
type RunResult struct {
	Records   []model.SourceHealthRecord `json:"records"`
	Online    int                        `json:"online"`
	Limited   int                        `json:"limited"`
	Offline   int                        `json:"offline"`
	Persisted bool                       `json:"persisted"`
}

// AllReachable reports whether every probed source answered.
func (r *RunResult) AllReachable() bool {
	return r.Offline == 0
}

// Prober fans probes out across all configured adapters.
type Prober struct {
	adapters []source.Adapter
	store    store.Store
}

// New creates a Prober over the given adapters. The store may be nil for
// dry runs; results are then reported but not persisted.
func New(adapters []source.Adapter, st store.Store) *Prober {
	return &Prober{adapters: adapters, store: st}
}

// Run probes every source concurrently and waits for full settlement: one
// slow source only blocks reporting up to its own timeout, and the result
// always holds exactly one record per configured source.
func (p *Prober) Run(ctx context.Context) (*RunResult, error) {
	log := zap.L().With(zap.String("component", "probe"))
	log.Info("probing sources", zap.Int("count", len(p.adapters)))

	records := make([]model.SourceHealthRecord, len(p.adapters))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range p.adapters {
		g.Go(func() error {
			records[i] = probeOne(gctx, a)
			return nil // individual failures settle into the record
		})
	}
	_ = g.Wait()

	result := &RunResult{Records: records}
	for _, r := range records {
		switch r.Status {
		case model.StatusOnline:
			result.Online++
		case model.StatusLimited:
			result.Limited++
		default:
			result.Offline++
		}
	}

	if p.store != nil {
		if err := p.store.InsertHealthRecords(ctx, records); err != nil {
			if errors.Is(err, store.ErrMissingTable) {
				log.Warn("health table missing, results not persisted; run `permit-cli migrate` to create it")
			} else {
				return result, eris.Wrap(err, "probe: persist health records")
			}
		} else {
			result.Persisted = true
		}
	}

	log.Info("probe run complete",
		zap.Int("online", result.Online),
		zap.Int("limited", result.Limited),
		zap.Int("offline", result.Offline),
	)
	return result, nil
}

// probeOne runs a single adapter probe and settles the outcome into a
// health record, whatever happens.
func probeOne(ctx context.Context, a source.Adapter) model.SourceHealthRecord {
	desc := a.Descriptor()
	log := zap.L().With(zap.String("component", "probe"), zap.String("source", desc.Key))

	rec := model.SourceHealthRecord{
		ID:        uuid.New().String(),
		Source:    desc.Key,
		CheckedAt: time.Now().UTC(),
	}

	start := time.Now()
	result, err := a.Probe(ctx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		msg := err.Error()
		rec.Status = model.StatusOffline
		rec.Error = &msg
		log.Warn("source offline", zap.Error(err), zap.Int64("latency_ms", latency))
		return rec
	}

	rec.LatencyMs = &latency
	rec.Metadata = result.Metadata
	if result.Records >= 0 {
		n := result.Records
		rec.RecordsAvailable = &n
	}

	switch {
	case result.StatusCode >= 200 && result.StatusCode <= 299 && !result.Degraded:
		rec.Status = model.StatusOnline
	default:
		rec.Status = model.StatusLimited
	}

	log.Info("source probed",
		zap.String("status", string(rec.Status)),
		zap.Int("http_status", result.StatusCode),
		zap.Int64("latency_ms", latency),
		zap.Int64("records", result.Records),
	)
	return rec
}
