package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"mime"
	"net/http"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/permit-cli/internal/fetcher"
	"github.com/sells-group/permit-cli/internal/model"
)

// CSVAdapter fetches a flat CSV export over HTTP. Municipal exports are
// frequently windows-1252 encoded; the adapter honors the response charset.
type CSVAdapter struct {
	desc   model.DataSource
	client *fetcher.Client
}

// NewCSV creates an adapter for a flat-file CSV source.
func NewCSV(desc model.DataSource, client *fetcher.Client) *CSVAdapter {
	return &CSVAdapter{desc: desc, client: client}
}

func (a *CSVAdapter) Descriptor() model.DataSource { return a.desc }

// decodeBody wraps the response body with a charset decoder when the
// Content-Type names a non-UTF-8 encoding.
func decodeBody(resp *http.Response) io.Reader {
	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return resp.Body
	}
	charset, ok := params["charset"]
	if !ok || charset == "" || charset == "utf-8" {
		return resp.Body
	}
	enc, err := htmlindex.Get(charset)
	if err != nil || enc == nil {
		return resp.Body
	}
	return enc.NewDecoder().Reader(resp.Body)
}

// Fetch downloads the export and maps each data row to a record keyed by
// the header row.
func (a *CSVAdapter) Fetch(ctx context.Context, limit int) ([]model.PermitRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, a.desc.Timeout())
	defer cancel()

	resp, err := a.client.Get(ctx, a.desc.URL, nil)
	if err != nil {
		return nil, Unavailable(a.desc.Key, 0, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, Unavailable(a.desc.Key, resp.StatusCode, eris.Errorf("csv: http %d", resp.StatusCode))
	}

	reader := csv.NewReader(decodeBody(resp))
	reader.FieldsPerRecord = -1 // municipal exports drift

	header, err := reader.Read()
	if err != nil {
		return nil, Unavailable(a.desc.Key, 0, eris.Wrap(err, "csv: read header"))
	}

	var records []model.PermitRecord
	for limit <= 0 || len(records) < limit {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, Unavailable(a.desc.Key, 0, eris.Wrap(err, "csv: read row"))
		}
		rec := make(model.PermitRecord, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Probe downloads the export and estimates the row count by counting line
// breaks, excluding the header.
func (a *CSVAdapter) Probe(ctx context.Context) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.desc.Timeout())
	defer cancel()

	resp, err := a.client.Get(ctx, a.desc.URL, nil)
	if err != nil {
		return nil, Unavailable(a.desc.Key, 0, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	result := &ProbeResult{StatusCode: resp.StatusCode, Records: -1}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, nil
	}

	lines, err := countLines(resp.Body)
	if err != nil {
		result.Degraded = true
		return result, nil
	}
	if lines > 0 {
		lines-- // header row
	}
	result.Records = lines
	return result, nil
}

func countLines(r io.Reader) (int64, error) {
	var count int64
	buf := make([]byte, 32*1024)
	br := bufio.NewReader(r)
	for {
		n, err := br.Read(buf)
		count += int64(bytes.Count(buf[:n], []byte{'\n'}))
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}
	}
}
