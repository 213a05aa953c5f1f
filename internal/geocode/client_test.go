package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propply/backend/internal/core"
	"github.com/propply/backend/internal/opendata"
)

type fakeFetcher struct {
	rows    []opendata.Row
	err     error
	calls   int
	lastDS  string
	lastQ   opendata.Query
	lastCtx context.Context
}

func (f *fakeFetcher) Fetch(ctx context.Context, ds *opendata.Dataset, q opendata.Query) ([]opendata.Row, error) {
	f.calls++
	f.lastDS = ds.Key
	f.lastQ = q
	f.lastCtx = ctx
	return f.rows, f.err
}

type memCache struct {
	data map[string]string
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string]string{}} }

func (m *memCache) Get(_ context.Context, key string) (string, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *memCache) Set(_ context.Context, key, value string, _ time.Duration) {
	m.sets++
	m.data[key] = value
}

func geosearchServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "error", status)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const empireStateFeature = `{
	"features": [{
		"properties": {
			"housenumber": "350",
			"street": "5 AVENUE",
			"borough": "Manhattan",
			"postalcode": "10118",
			"addendum": {"pad": {"bin": "1015862", "bbl": "1008350041"}}
		}
	}]
}`

func TestResolveViaGeoSearch(t *testing.T) {
	srv := geosearchServer(t, empireStateFeature, http.StatusOK)
	fetcher := &fakeFetcher{}
	c := NewClient(fetcher, nil)
	c.geosearchURL = srv.URL
	c.httpClient = srv.Client()

	ids, err := c.Resolve(context.Background(), "350 5th Ave, New York", "Manhattan")
	require.NoError(t, err)

	assert.Equal(t, "350 5 AVENUE", ids.Address)
	assert.Equal(t, "1015862", ids.BIN)
	assert.Equal(t, "1008350041", ids.BBL)
	assert.Equal(t, "MANHATTAN", ids.Borough)
	assert.Equal(t, "835", ids.Block)
	assert.Equal(t, "41", ids.Lot)
	assert.Equal(t, "10118", ids.ZipCode)

	assert.Equal(t, 0, fetcher.calls, "fallback must not run when geosearch hits")
}

func TestResolveFallbackSynthesizesPaddedBBL(t *testing.T) {
	srv := geosearchServer(t, `{"features": []}`, http.StatusOK)
	fetcher := &fakeFetcher{rows: []opendata.Row{{
		"buildingid":  "1058037",
		"housenumber": "1662",
		"streetname":  "PARK AVE",
		"boro":        "1",
		"block":       "1642",
		"lot":         "29",
		"zip":         "10035",
	}}}
	c := NewClient(fetcher, nil)
	c.geosearchURL = srv.URL
	c.httpClient = srv.Client()

	ids, err := c.Resolve(context.Background(), "1662 Park Ave, 10035", "")
	require.NoError(t, err)

	assert.Equal(t, "1058037", ids.BIN)
	assert.Equal(t, "1016420029", ids.BBL)
	assert.Equal(t, "1", ids.Borough)
	assert.Equal(t, "1642", ids.Block)
	assert.Equal(t, "29", ids.Lot)
	assert.Equal(t, "10035", ids.ZipCode)
	assert.Equal(t, "1662 PARK AVE", ids.Address)

	assert.Equal(t, opendata.HPDViolations, fetcher.lastDS)
	assert.Equal(t, "housenumber = '1662' AND streetname LIKE '%PARK AVE%' AND zip = '10035'", fetcher.lastQ.Where)
	assert.Equal(t, 1, fetcher.lastQ.Limit)
}

func TestResolveNotFoundWhenBothStrategiesMiss(t *testing.T) {
	srv := geosearchServer(t, `{"features": []}`, http.StatusOK)
	fetcher := &fakeFetcher{rows: nil}
	c := NewClient(fetcher, nil)
	c.geosearchURL = srv.URL
	c.httpClient = srv.Client()

	_, err := c.Resolve(context.Background(), "1 Nowhere Pl", "")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func TestResolveGeoSearchErrorStillFallsBack(t *testing.T) {
	srv := geosearchServer(t, "", http.StatusInternalServerError)
	fetcher := &fakeFetcher{rows: []opendata.Row{{
		"buildingid": "1058037", "housenumber": "1662", "streetname": "PARK AVE",
		"boro": "1", "block": "1642", "lot": "29", "zip": "10035",
	}}}
	c := NewClient(fetcher, nil)
	c.geosearchURL = srv.URL
	c.httpClient = srv.Client()

	ids, err := c.Resolve(context.Background(), "1662 Park Ave, 10035", "")
	require.NoError(t, err)
	assert.Equal(t, "1058037", ids.BIN)
	assert.Equal(t, 1, fetcher.calls)
}

func TestResolveUsesCache(t *testing.T) {
	srv := geosearchServer(t, empireStateFeature, http.StatusOK)
	fetcher := &fakeFetcher{}
	cache := newMemCache()
	c := NewClient(fetcher, cache)
	c.geosearchURL = srv.URL
	c.httpClient = srv.Client()

	first, err := c.Resolve(context.Background(), "350 5th Ave", "Manhattan")
	require.NoError(t, err)
	require.Equal(t, 1, cache.sets)

	// Kill the upstream; the cached copy must satisfy the second call.
	srv.Close()

	second, err := c.Resolve(context.Background(), "350 5th Ave", "Manhattan")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveSkipsFallbackWithoutStreet(t *testing.T) {
	srv := geosearchServer(t, `{"features": []}`, http.StatusOK)
	fetcher := &fakeFetcher{}
	c := NewClient(fetcher, nil)
	c.geosearchURL = srv.URL
	c.httpClient = srv.Client()

	_, err := c.Resolve(context.Background(), "10035", "")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindNotFound))
	assert.Equal(t, 0, fetcher.calls)
}
