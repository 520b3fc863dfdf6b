package model

import "time"

// SourceType identifies the adapter implementation a source requires.
type SourceType string

const (
	SourceTypeSocrata SourceType = "socrata" // tabular API with $limit paging
	SourceTypeCSV     SourceType = "csvfile" // flat CSV export over HTTP
	SourceTypeArcGIS  SourceType = "arcgis"  // feature service query endpoint
	SourceTypeBrowser SourceType = "browser" // portal page, spreadsheet behind a click
)

// DataSource is the static configuration for one upstream endpoint.
// Descriptors are loaded once at startup and never mutated.
type DataSource struct {
	Key         string            `yaml:"key" json:"key"`
	Name        string            `yaml:"name" json:"name"`
	Type        SourceType        `yaml:"type" json:"type"`
	URL         string            `yaml:"url" json:"url"`
	AuthHeader  string            `yaml:"auth_header,omitempty" json:"auth_header,omitempty"`
	AuthToken   string            `yaml:"auth_token,omitempty" json:"auth_token,omitempty"`
	TimeoutSecs int               `yaml:"timeout_secs" json:"timeout_secs"`
	LinkPattern string            `yaml:"link_pattern,omitempty" json:"link_pattern,omitempty"`
	Params      map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// Timeout returns the per-call budget for this source.
func (d DataSource) Timeout() time.Duration {
	if d.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(d.TimeoutSecs) * time.Second
}
