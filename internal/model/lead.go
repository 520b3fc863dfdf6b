package model

import "time"

// Trade is the category of contracting work a permit represents.
type Trade string

const (
	TradeElectrical Trade = "Electrical"
	TradePlumbing   Trade = "Plumbing"
	TradeHVAC       Trade = "HVAC"
	TradeRoofing    Trade = "Roofing"
	TradePool       Trade = "Pool"
	TradeGeneral    Trade = "General"
)

// ScoreLabel buckets a numeric lead score for prioritization.
type ScoreLabel string

const (
	LabelHot  ScoreLabel = "hot"
	LabelWarm ScoreLabel = "warm"
	LabelCold ScoreLabel = "cold"
)

// LeadStatus tracks the lifecycle of a lead in the store.
type LeadStatus string

const (
	LeadStatusNew LeadStatus = "new"
)

// PermitRecord is a raw permit row as returned by a source adapter,
// keyed by whatever field names the upstream export uses.
type PermitRecord map[string]any

// Lead is a normalized, scored permit filing. ExternalID together with
// Source forms the natural key; re-ingestion upserts on that pair.
type Lead struct {
	ExternalID  string     `json:"external_id"`
	Source      string     `json:"source"`
	ContactName string     `json:"contact_name,omitempty"`
	Trade       Trade      `json:"trade"`
	Address     string     `json:"address,omitempty"`
	Zip         string     `json:"zip,omitempty"`
	County      string     `json:"county,omitempty"`
	Value       int        `json:"value"`
	Score       int        `json:"score"`
	Label       ScoreLabel `json:"label"`
	Status      LeadStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty"`
}

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Source   string `json:"source,omitempty"`
	Trade    Trade  `json:"trade,omitempty"`
	MinScore int    `json:"min_score,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}
