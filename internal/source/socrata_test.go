package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/permit-cli/internal/fetcher"
	"github.com/sells-group/permit-cli/internal/model"
)

func testClient() *fetcher.Client {
	return fetcher.New(fetcher.Options{UserAgent: "permit-cli-test"})
}

func socrataSource(url string) model.DataSource {
	return model.DataSource{
		Key:         "dallas",
		Type:        model.SourceTypeSocrata,
		URL:         url,
		TimeoutSecs: 5,
	}
}

func TestSocrataFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "25", r.URL.Query().Get("$limit"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"permit_number":"BP001","work_description":"rewire","estimated_cost":"12500"},{"permit_number":"BP002"}]`))
	}))
	defer srv.Close()

	a := NewSocrata(socrataSource(srv.URL), testClient())
	records, err := a.Fetch(context.Background(), 25)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "BP001", records[0]["permit_number"])
}

func TestSocrataFetch_AuthToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-App-Token"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	desc := socrataSource(srv.URL)
	desc.AuthToken = "secret"
	a := NewSocrata(desc, testClient())
	_, err := a.Fetch(context.Background(), 10)
	require.NoError(t, err)
}

func TestSocrataFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewSocrata(socrataSource(srv.URL), testClient())
	_, err := a.Fetch(context.Background(), 10)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, http.StatusServiceUnavailable, StatusCodeOf(err))
}

func TestSocrataFetch_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance page</html>`))
	}))
	defer srv.Close()

	a := NewSocrata(socrataSource(srv.URL), testClient())
	_, err := a.Fetch(context.Background(), 10)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestSocrataProbe_Count(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("$select"), "count")
		w.Write([]byte(`[{"count":"4321"}]`))
	}))
	defer srv.Close()

	a := NewSocrata(socrataSource(srv.URL), testClient())
	result, err := a.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, int64(4321), result.Records)
	assert.False(t, result.Degraded)
}

func TestSocrataProbe_NonOKIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a := NewSocrata(socrataSource(srv.URL), testClient())
	result, err := a.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, result.StatusCode)
	assert.Equal(t, int64(-1), result.Records)
}

func TestSocrataProbe_MalformedBodyIsDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	a := NewSocrata(socrataSource(srv.URL), testClient())
	result, err := a.Probe(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Degraded)
}

func TestSocrataFetch_TimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	a := NewSocrata(socrataSource(srv.URL), testClient())
	_, err := a.Fetch(ctx, 10)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}
