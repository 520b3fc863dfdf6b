package source

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/permit-cli/internal/config"
	"github.com/sells-group/permit-cli/internal/fetcher"
	"github.com/sells-group/permit-cli/internal/model"
)

// defaultSources is the built-in registry for the Texas metro sources.
// A sources file from config replaces the whole list.
const defaultSources = `
- key: dallas
  name: City of Dallas Building Permits
  type: socrata
  url: https://www.dallasopendata.com/resource/e7gq-4sah.json
  timeout_secs: 30
- key: fortworth
  name: City of Fort Worth Permits
  type: socrata
  url: https://data.fortworthtexas.gov/resource/quz7-xnsy.json
  timeout_secs: 30
- key: austin
  name: City of Austin Issued Permits CSV
  type: csvfile
  url: https://data.austintexas.gov/api/views/3syk-w9eu/rows.csv
  timeout_secs: 60
- key: arlington
  name: Arlington Permit Feature Service
  type: arcgis
  url: https://mapgis.arlingtontx.gov/arcgis/rest/services/Permits/FeatureServer/0/query
  timeout_secs: 15
- key: houston
  name: Houston Permit Activity Spreadsheet
  type: browser
  url: https://www.houstonpermittingcenter.org/news-events/permit-activity-reports
  link_pattern: activity
  timeout_secs: 90
`

// Registry holds the configured source descriptors and builds adapters.
type Registry struct {
	sources []model.DataSource
	client  *fetcher.Client
	browser BrowserOptions
}

// NewRegistry loads descriptors (built-in defaults, or the configured
// sources file) and wires them to the shared HTTP client.
func NewRegistry(cfg *config.Config, client *fetcher.Client) (*Registry, error) {
	raw := []byte(defaultSources)
	if cfg.Sources.File != "" {
		data, err := os.ReadFile(cfg.Sources.File)
		if err != nil {
			return nil, eris.Wrapf(err, "registry: read sources file %s", cfg.Sources.File)
		}
		raw = data
	}

	var sources []model.DataSource
	if err := yaml.Unmarshal(raw, &sources); err != nil {
		return nil, eris.Wrap(err, "registry: parse sources")
	}
	if len(sources) == 0 {
		return nil, eris.New("registry: no sources configured")
	}

	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		if s.Key == "" || s.URL == "" {
			return nil, eris.Errorf("registry: source %q missing key or url", s.Name)
		}
		if seen[s.Key] {
			return nil, eris.Errorf("registry: duplicate source key %s", s.Key)
		}
		seen[s.Key] = true
	}

	// Socrata app token applies to every socrata source unless the
	// descriptor carries its own.
	if cfg.Sources.SocrataToken != "" {
		for i, s := range sources {
			if s.Type == model.SourceTypeSocrata && s.AuthToken == "" {
				sources[i].AuthToken = cfg.Sources.SocrataToken
			}
		}
	}

	// fetch.timeout_secs is the default per-source budget; a descriptor's
	// own timeout_secs always wins.
	if cfg.Fetch.TimeoutSecs > 0 {
		for i, s := range sources {
			if s.TimeoutSecs <= 0 {
				sources[i].TimeoutSecs = cfg.Fetch.TimeoutSecs
			}
		}
	}

	return &Registry{
		sources: sources,
		client:  client,
		browser: BrowserOptions{
			DownloadDir:  cfg.Browser.DownloadDir,
			Headless:     cfg.Browser.Headless,
			DownloadWait: cfg.Browser.DownloadWaitDuration(),
		},
	}, nil
}

// Sources returns the configured descriptors, sorted by key.
func (r *Registry) Sources() []model.DataSource {
	out := make([]model.DataSource, len(r.sources))
	copy(out, r.sources)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Adapter builds the adapter for the named source.
func (r *Registry) Adapter(key string) (Adapter, error) {
	for _, s := range r.sources {
		if s.Key == key {
			return r.build(s)
		}
	}
	return nil, eris.Errorf("registry: unknown source %s", key)
}

// Adapters builds one adapter per configured source.
func (r *Registry) Adapters() ([]Adapter, error) {
	adapters := make([]Adapter, 0, len(r.sources))
	for _, s := range r.Sources() {
		a, err := r.build(s)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

func (r *Registry) build(desc model.DataSource) (Adapter, error) {
	switch desc.Type {
	case model.SourceTypeSocrata:
		return NewSocrata(desc, r.client), nil
	case model.SourceTypeCSV:
		return NewCSV(desc, r.client), nil
	case model.SourceTypeArcGIS:
		return NewArcGIS(desc, r.client), nil
	case model.SourceTypeBrowser:
		return NewBrowser(desc, r.client, r.browser), nil
	default:
		return nil, eris.Errorf("registry: source %s has unknown type %q", desc.Key, desc.Type)
	}
}
