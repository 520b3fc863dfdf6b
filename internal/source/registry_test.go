package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/permit-cli/internal/config"
	"github.com/sells-group/permit-cli/internal/model"
)

func TestRegistry_Defaults(t *testing.T) {
	reg, err := NewRegistry(&config.Config{}, testClient())
	require.NoError(t, err)

	sources := reg.Sources()
	require.Len(t, sources, 5)

	byKey := make(map[string]model.DataSource)
	for _, s := range sources {
		byKey[s.Key] = s
	}
	assert.Equal(t, model.SourceTypeSocrata, byKey["dallas"].Type)
	assert.Equal(t, model.SourceTypeSocrata, byKey["fortworth"].Type)
	assert.Equal(t, model.SourceTypeCSV, byKey["austin"].Type)
	assert.Equal(t, model.SourceTypeArcGIS, byKey["arlington"].Type)
	assert.Equal(t, model.SourceTypeBrowser, byKey["houston"].Type)
}

func TestRegistry_AdapterTypes(t *testing.T) {
	reg, err := NewRegistry(&config.Config{}, testClient())
	require.NoError(t, err)

	a, err := reg.Adapter("dallas")
	require.NoError(t, err)
	assert.IsType(t, &SocrataAdapter{}, a)

	a, err = reg.Adapter("austin")
	require.NoError(t, err)
	assert.IsType(t, &CSVAdapter{}, a)

	a, err = reg.Adapter("arlington")
	require.NoError(t, err)
	assert.IsType(t, &ArcGISAdapter{}, a)

	a, err = reg.Adapter("houston")
	require.NoError(t, err)
	assert.IsType(t, &BrowserAdapter{}, a)

	_, err = reg.Adapter("chicago")
	require.Error(t, err)
}

func TestRegistry_AdaptersCoversEverySource(t *testing.T) {
	reg, err := NewRegistry(&config.Config{}, testClient())
	require.NoError(t, err)

	adapters, err := reg.Adapters()
	require.NoError(t, err)
	assert.Len(t, adapters, len(reg.Sources()))
}

func TestRegistry_SocrataTokenApplied(t *testing.T) {
	cfg := &config.Config{}
	cfg.Sources.SocrataToken = "tok"

	reg, err := NewRegistry(cfg, testClient())
	require.NoError(t, err)

	for _, s := range reg.Sources() {
		if s.Type == model.SourceTypeSocrata {
			assert.Equal(t, "tok", s.AuthToken, "source %s", s.Key)
		} else {
			assert.Empty(t, s.AuthToken, "source %s", s.Key)
		}
	}
}

func TestRegistry_SourcesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- key: plano
  name: Plano Permits
  type: socrata
  url: https://example.test/resource/abcd.json
  timeout_secs: 20
`), 0o644))

	cfg := &config.Config{}
	cfg.Sources.File = path

	reg, err := NewRegistry(cfg, testClient())
	require.NoError(t, err)

	sources := reg.Sources()
	require.Len(t, sources, 1)
	assert.Equal(t, "plano", sources[0].Key)
}

func TestRegistry_FetchTimeoutIsDefaultBudget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- {key: plano, name: Plano, type: socrata, url: "https://example.test/p.json"}
- {key: frisco, name: Frisco, type: socrata, url: "https://example.test/f.json", timeout_secs: 90}
`), 0o644))

	cfg := &config.Config{}
	cfg.Sources.File = path
	cfg.Fetch.TimeoutSecs = 45

	reg, err := NewRegistry(cfg, testClient())
	require.NoError(t, err)

	byKey := make(map[string]model.DataSource)
	for _, s := range reg.Sources() {
		byKey[s.Key] = s
	}
	// Descriptor without its own budget inherits the fetch default.
	assert.Equal(t, 45*time.Second, byKey["plano"].Timeout())
	// An explicit descriptor budget is never overridden.
	assert.Equal(t, 90*time.Second, byKey["frisco"].Timeout())
}

func TestRegistry_RejectsDuplicatesAndMissingFields(t *testing.T) {
	dir := t.TempDir()

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte(`
- {key: a, name: A, type: socrata, url: "https://x.test/a.json"}
- {key: a, name: A2, type: socrata, url: "https://x.test/b.json"}
`), 0o644))
	cfg := &config.Config{}
	cfg.Sources.File = dup
	_, err := NewRegistry(cfg, testClient())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	missing := filepath.Join(dir, "missing.yaml")
	require.NoError(t, os.WriteFile(missing, []byte(`
- {name: NoKey, type: socrata, url: "https://x.test/a.json"}
`), 0o644))
	cfg = &config.Config{}
	cfg.Sources.File = missing
	_, err = NewRegistry(cfg, testClient())
	require.Error(t, err)
}

func TestRegistry_UnknownType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- {key: x, name: X, type: carrier_pigeon, url: "https://x.test/a"}
`), 0o644))

	cfg := &config.Config{}
	cfg.Sources.File = path
	reg, err := NewRegistry(cfg, testClient())
	require.NoError(t, err)

	_, err = reg.Adapter("x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}
