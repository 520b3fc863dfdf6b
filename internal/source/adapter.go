// Package source implements per-endpoint adapters for the municipal
// open-data sources the pipeline ingests from: Socrata tabular APIs, flat
// CSV exports, ArcGIS feature services, and portal pages that hide the
// spreadsheet behind a browser click.
package source

import (
	"context"

	"github.com/sells-group/permit-cli/internal/model"
)

// ProbeResult is the lightweight outcome of one health check. Latency is
// measured by the caller; adapters report what the endpoint said.
type ProbeResult struct {
	StatusCode int               // last upstream HTTP status, 0 when unknown
	Records    int64             // records available, -1 when the source cannot say
	Degraded   bool              // reachable but the response was not fully usable
	Metadata   map[string]string // free-form source details
}

// Adapter fetches permit records from one upstream source. Implementations
// carry a hard per-call timeout from their descriptor and perform no
// retries; retry policy belongs to the caller.
type Adapter interface {
	// Descriptor returns the static configuration for this source.
	Descriptor() model.DataSource

	// Fetch retrieves up to limit raw permit records. A limit <= 0 asks
	// for the adapter's default page size.
	Fetch(ctx context.Context, limit int) ([]model.PermitRecord, error)

	// Probe runs a count-only or minimal query against the source.
	Probe(ctx context.Context) (*ProbeResult, error)
}
