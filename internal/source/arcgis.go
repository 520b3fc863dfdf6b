package source

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/permit-cli/internal/fetcher"
	"github.com/sells-group/permit-cli/internal/model"
)

const arcgisDefaultLimit = 1000

// ArcGISAdapter queries an ArcGIS feature service layer. Probes use the
// returnCountOnly form; full fetches flatten feature attributes into
// permit records.
type ArcGISAdapter struct {
	desc   model.DataSource
	client *fetcher.Client
}

// NewArcGIS creates an adapter for an ArcGIS query endpoint.
func NewArcGIS(desc model.DataSource, client *fetcher.Client) *ArcGISAdapter {
	return &ArcGISAdapter{desc: desc, client: client}
}

func (a *ArcGISAdapter) Descriptor() model.DataSource { return a.desc }

func (a *ArcGISAdapter) query(extra url.Values) string {
	u, err := url.Parse(a.desc.URL)
	if err != nil {
		return a.desc.URL
	}
	q := u.Query()
	q.Set("where", "1=1")
	q.Set("f", "json")
	for k, v := range a.desc.Params {
		q.Set(k, v)
	}
	for k, vals := range extra {
		for _, v := range vals {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch requests all attributes for up to limit features.
func (a *ArcGISAdapter) Fetch(ctx context.Context, limit int) ([]model.PermitRecord, error) {
	if limit <= 0 {
		limit = arcgisDefaultLimit
	}
	ctx, cancel := context.WithTimeout(ctx, a.desc.Timeout())
	defer cancel()

	params := url.Values{}
	params.Set("outFields", "*")
	params.Set("resultRecordCount", strconv.Itoa(limit))

	resp, err := a.client.Get(ctx, a.query(params), nil)
	if err != nil {
		return nil, Unavailable(a.desc.Key, 0, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, Unavailable(a.desc.Key, resp.StatusCode, eris.Errorf("arcgis: http %d", resp.StatusCode))
	}

	var body struct {
		Features []struct {
			Attributes map[string]any `json:"attributes"`
		} `json:"features"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, Unavailable(a.desc.Key, 0, eris.Wrap(err, "arcgis: decode body"))
	}
	// ArcGIS reports failures as a 200 with an error envelope.
	if body.Error != nil {
		return nil, Unavailable(a.desc.Key, body.Error.Code, eris.Errorf("arcgis: %s", body.Error.Message))
	}

	records := make([]model.PermitRecord, 0, len(body.Features))
	for _, f := range body.Features {
		records = append(records, model.PermitRecord(f.Attributes))
	}
	return records, nil
}

// Probe sends the count-only parameter triple and extracts the count field.
func (a *ArcGISAdapter) Probe(ctx context.Context) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.desc.Timeout())
	defer cancel()

	params := url.Values{}
	params.Set("returnCountOnly", "true")

	resp, err := a.client.Get(ctx, a.query(params), nil)
	if err != nil {
		return nil, Unavailable(a.desc.Key, 0, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	result := &ProbeResult{StatusCode: resp.StatusCode, Records: -1}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, nil
	}

	var body struct {
		Count *int64 `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Count == nil {
		result.Degraded = true
		return result, nil
	}
	result.Records = *body.Count
	return result, nil
}
