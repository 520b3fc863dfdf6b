package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/permit-cli/internal/fetcher"
	"github.com/sells-group/permit-cli/internal/model"
)

const socrataDefaultLimit = 1000

// SocrataAdapter fetches from a Socrata open-data resource endpoint.
type SocrataAdapter struct {
	desc   model.DataSource
	client *fetcher.Client
}

// NewSocrata creates an adapter for a Socrata tabular API source.
func NewSocrata(desc model.DataSource, client *fetcher.Client) *SocrataAdapter {
	return &SocrataAdapter{desc: desc, client: client}
}

func (a *SocrataAdapter) Descriptor() model.DataSource { return a.desc }

func (a *SocrataAdapter) header() http.Header {
	h := http.Header{}
	if a.desc.AuthToken != "" {
		name := a.desc.AuthHeader
		if name == "" {
			name = "X-App-Token"
		}
		h.Set(name, a.desc.AuthToken)
	}
	return h
}

func (a *SocrataAdapter) query(params url.Values) string {
	u, err := url.Parse(a.desc.URL)
	if err != nil {
		return a.desc.URL
	}
	q := u.Query()
	for k, v := range a.desc.Params {
		q.Set(k, v)
	}
	for k, vals := range params {
		for _, v := range vals {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch retrieves up to limit rows via the $limit paging parameter.
func (a *SocrataAdapter) Fetch(ctx context.Context, limit int) ([]model.PermitRecord, error) {
	if limit <= 0 {
		limit = socrataDefaultLimit
	}
	ctx, cancel := context.WithTimeout(ctx, a.desc.Timeout())
	defer cancel()

	params := url.Values{}
	params.Set("$limit", strconv.Itoa(limit))

	resp, err := a.client.Get(ctx, a.query(params), a.header())
	if err != nil {
		return nil, Unavailable(a.desc.Key, 0, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, Unavailable(a.desc.Key, resp.StatusCode, eris.Errorf("socrata: http %d", resp.StatusCode))
	}

	var records []model.PermitRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, Unavailable(a.desc.Key, 0, eris.Wrap(err, "socrata: decode body"))
	}
	return records, nil
}

// Probe asks the resource for its row count via $select=count(*).
func (a *SocrataAdapter) Probe(ctx context.Context) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.desc.Timeout())
	defer cancel()

	params := url.Values{}
	params.Set("$select", "count(*) AS count")

	resp, err := a.client.Get(ctx, a.query(params), a.header())
	if err != nil {
		return nil, Unavailable(a.desc.Key, 0, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	result := &ProbeResult{StatusCode: resp.StatusCode, Records: -1}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, nil
	}

	var rows []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		// Reachable but the body is not what a Socrata endpoint returns.
		result.Degraded = true
		return result, nil
	}
	if len(rows) > 0 {
		if raw, ok := rows[0]["count"]; ok {
			switch v := raw.(type) {
			case string:
				if n, err := strconv.ParseInt(v, 10, 64); err == nil {
					result.Records = n
				}
			case float64:
				result.Records = int64(v)
			}
		}
	}
	return result, nil
}
