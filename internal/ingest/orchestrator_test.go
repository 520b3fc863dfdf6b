package ingest

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/permit-cli/internal/model"
	"github.com/sells-group/permit-cli/internal/source"
	"github.com/sells-group/permit-cli/internal/store"
)

// fakeAdapter serves canned permit records for orchestrator tests.
type fakeAdapter struct {
	key     string
	records []model.PermitRecord
	err     error
}

func (f *fakeAdapter) Descriptor() model.DataSource {
	return model.DataSource{Key: f.key, Name: f.key, Type: model.SourceTypeSocrata}
}

func (f *fakeAdapter) Fetch(ctx context.Context, limit int) ([]model.PermitRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeAdapter) Probe(ctx context.Context) (*source.ProbeResult, error) {
	return &source.ProbeResult{StatusCode: http.StatusOK, Records: int64(len(f.records))}, nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestOrchestratorRun_EndToEnd(t *testing.T) {
	st := newTestStore(t)
	adapter := &fakeAdapter{key: "dallas", records: []model.PermitRecord{
		{
			"permit_number":    "BP001",
			"contractor_name":  "Smith Electric LLC",
			"work_description": "Electrical panel upgrade 200A",
			"address":          "123 Main St",
			"permit_value":     "12500",
		},
	}}

	result, err := New(adapter, st, Options{}).Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 0, result.Updated)

	leads, err := st.ListLeads(context.Background(), model.LeadFilter{Source: "dallas"})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "BP001", leads[0].ExternalID)
	assert.Equal(t, model.TradeElectrical, leads[0].Trade)
	assert.Equal(t, 12500, leads[0].Value)
	assert.Equal(t, 75, leads[0].Score)
	assert.Equal(t, model.LabelWarm, leads[0].Label)
}

func TestOrchestratorRun_FetchFailureWritesNothing(t *testing.T) {
	st := newTestStore(t)
	adapter := &fakeAdapter{
		key: "fortworth",
		err: source.Unavailable("fortworth", http.StatusServiceUnavailable, eris.New("HTTP 503")),
	}

	result, err := New(adapter, st, Options{}).Run(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, source.IsUnavailable(err))
	assert.Equal(t, 0, result.Inserted)

	count, err := st.CountLeads(context.Background(), "fortworth")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestOrchestratorRun_ReIngestUpdatesInPlace(t *testing.T) {
	st := newTestStore(t)
	adapter := &fakeAdapter{key: "dallas", records: []model.PermitRecord{
		{"permit_number": "BP001", "permit_value": "5000", "work_description": "reroof"},
		{"permit_number": "BP002", "permit_value": "8000", "work_description": "water heater replacement"},
	}}

	first, err := New(adapter, st, Options{}).Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	// Same permits again, one with a revised valuation.
	adapter.records[0]["permit_value"] = "25000"
	second, err := New(adapter, st, Options{}).Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Updated)

	count, err := st.CountLeads(context.Background(), "dallas")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	leads, err := st.ListLeads(context.Background(), model.LeadFilter{Source: "dallas"})
	require.NoError(t, err)
	for _, l := range leads {
		if l.ExternalID == "BP001" {
			assert.Equal(t, 25000, l.Value)
			assert.Equal(t, 90, l.Score)
			assert.Equal(t, model.LabelHot, l.Label)
		}
	}
}

func TestOrchestratorRun_SkipsRecordsWithoutIdentifier(t *testing.T) {
	st := newTestStore(t)
	adapter := &fakeAdapter{key: "austin", records: []model.PermitRecord{
		{"permit_number": "AUS-1", "permit_value": "3000"},
		{"work_description": "no id on this row", "permit_value": "9000"},
		{"permit_number": "", "permit_value": "1000"},
	}}

	result, err := New(adapter, st, Options{}).Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 1, result.Inserted)
}

func TestOrchestratorRun_DeduplicatesWithinBatch(t *testing.T) {
	st := newTestStore(t)
	// One row per inspection for the same permit; the batch must collapse
	// to one lead (last row wins) so the upsert never sees a duplicate key.
	adapter := &fakeAdapter{key: "dallas", records: []model.PermitRecord{
		{"permit_number": "BP200", "permit_value": "4000", "work_description": "rough-in inspection"},
		{"permit_number": "BP201", "permit_value": "6000"},
		{"permit_number": "BP200", "permit_value": "22000", "work_description": "final inspection"},
	}}

	result, err := New(adapter, st, Options{}).Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 0, result.Updated)

	leads, err := st.ListLeads(context.Background(), model.LeadFilter{Source: "dallas"})
	require.NoError(t, err)
	require.Len(t, leads, 2)
	for _, l := range leads {
		if l.ExternalID == "BP200" {
			assert.Equal(t, 22000, l.Value)
		}
	}
}

func TestOrchestratorRun_EmptyFetchIsSuccess(t *testing.T) {
	st := newTestStore(t)
	adapter := &fakeAdapter{key: "arlington"}

	result, err := New(adapter, st, Options{}).Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Fetched)
	assert.Equal(t, 0, result.Inserted)
}

func TestOrchestratorRun_DryRunSkipsStore(t *testing.T) {
	adapter := &fakeAdapter{key: "dallas", records: []model.PermitRecord{
		{"permit_number": "BP100", "permit_value": "4000"},
	}}

	// Store is nil: a dry run must never touch it.
	result, err := New(adapter, nil, Options{DryRun: true}).Run(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 0, result.Inserted)
}

func TestOrchestratorRun_HonorsLimit(t *testing.T) {
	st := newTestStore(t)
	adapter := &fakeAdapter{key: "dallas", records: []model.PermitRecord{
		{"permit_number": "A"},
		{"permit_number": "B"},
		{"permit_number": "C"},
	}}

	result, err := New(adapter, st, Options{}).Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 2, result.Inserted)
}
