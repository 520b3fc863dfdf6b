package model

import "time"

// SourceStatus classifies the outcome of one probe.
type SourceStatus string

const (
	StatusOnline  SourceStatus = "online"  // 2xx probe response
	StatusLimited SourceStatus = "limited" // reachable but degraded
	StatusOffline SourceStatus = "offline" // error or timeout
)

// SourceHealthRecord is the result of one probe against one source.
// Records are append-only; history accumulates one row per source per run.
type SourceHealthRecord struct {
	ID               string            `json:"id"`
	Source           string            `json:"source"`
	Status           SourceStatus      `json:"status"`
	CheckedAt        time.Time         `json:"checked_at"`
	LatencyMs        *int64            `json:"latency_ms,omitempty"`
	Error            *string           `json:"error,omitempty"`
	RecordsAvailable *int64            `json:"records_available,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Reachable reports whether the source answered at all.
func (r SourceHealthRecord) Reachable() bool {
	return r.Status == StatusOnline || r.Status == StatusLimited
}
