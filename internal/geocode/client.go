// Package geocode resolves free-form addresses to canonical NYC property
// identifiers. The primary strategy is the NYC Planning GeoSearch API; when
// it comes back empty the resolver falls back to an address search against
// the HPD violations dataset.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/propply/backend/internal/core"
	"github.com/propply/backend/internal/normalize"
	"github.com/propply/backend/internal/opendata"
)

// DefaultGeoSearchURL is the NYC Planning GeoSearch v2 endpoint.
const DefaultGeoSearchURL = "https://geosearch.planninglabs.nyc/v2"

const geosearchTimeout = 10 * time.Second

// cacheTTL bounds how long resolved identifiers are reused. Identifiers for
// a lot change rarely; a day keeps repeat runs off the network.
const cacheTTL = 24 * time.Hour

// Fetcher runs dataset queries. *opendata.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, ds *opendata.Dataset, q opendata.Query) ([]opendata.Row, error)
}

// Cache stores resolved identifiers keyed by normalized address. A nil cache
// disables caching.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// Client resolves addresses to PropertyIdentifiers.
type Client struct {
	httpClient   *http.Client
	fetcher      Fetcher
	cache        Cache
	logger       *log.Logger
	geosearchURL string
}

// NewClient creates a resolver. cache may be nil.
func NewClient(fetcher Fetcher, cache Cache) *Client {
	return &Client{
		httpClient:   &http.Client{},
		fetcher:      fetcher,
		cache:        cache,
		logger:       log.New(log.Writer(), "[GEOCODE] ", log.LstdFlags),
		geosearchURL: DefaultGeoSearchURL,
	}
}

// Resolve maps (address, optional borough) to identifiers, or fails with a
// not-found error once both strategies come up empty. Results are
// deterministic for identical upstream responses.
func (c *Client) Resolve(ctx context.Context, address, borough string) (*core.PropertyIdentifiers, error) {
	op := "geocode " + address

	if ids := c.cached(ctx, address, borough); ids != nil {
		c.logger.Printf("✅ Cache hit for %q", address)
		return ids, nil
	}

	ids, err := c.geosearch(ctx, address, borough)
	if err != nil {
		c.logger.Printf("⚠️ GeoSearch failed for %q: %v", address, err)
	}
	if ids == nil {
		c.logger.Printf("🔍 Falling back to HPD address search for %q", address)
		ids, err = c.fallbackSearch(ctx, address)
		if err != nil {
			c.logger.Printf("⚠️ Fallback search failed for %q: %v", address, err)
		}
	}
	if ids == nil {
		c.logger.Printf("❌ Could not resolve %q", address)
		return nil, core.Errorf(core.KindNotFound, op, "no identifiers found for address")
	}

	c.store(ctx, address, borough, ids)
	return ids, nil
}

// geoResponse is the subset of the GeoSearch v2 response we consume.
type geoResponse struct {
	Features []struct {
		Properties struct {
			Housenumber string `json:"housenumber"`
			Street      string `json:"street"`
			Borough     string `json:"borough"`
			Postalcode  string `json:"postalcode"`
			Addendum    struct {
				Pad struct {
					BIN string `json:"bin"`
					BBL string `json:"bbl"`
				} `json:"pad"`
			} `json:"addendum"`
		} `json:"properties"`
	} `json:"features"`
}

// geosearch asks the planning service for the best match. A nil, nil return
// means "no features"; the caller moves on to the fallback.
func (c *Client) geosearch(ctx context.Context, address, borough string) (*core.PropertyIdentifiers, error) {
	op := "geosearch " + address

	text := strings.TrimSpace(address)
	if borough != "" {
		text = text + ", " + borough
	}

	reqCtx, cancel := context.WithTimeout(ctx, geosearchTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("text", text)
	params.Set("size", "1")

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.geosearchURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, core.NewError(core.KindBadQuery, op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, core.NewError(core.KindDeadline, op, ctx.Err())
		}
		return nil, core.NewError(core.KindNetwork, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, core.Errorf(core.KindRemote, op, "geosearch returned %d", resp.StatusCode)
	}

	var decoded geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, core.NewError(core.KindDecode, op, err)
	}
	if len(decoded.Features) == 0 {
		return nil, nil
	}

	props := decoded.Features[0].Properties
	block, lot := core.SplitBBL(props.Addendum.Pad.BBL)

	ids := &core.PropertyIdentifiers{
		Address: strings.TrimSpace(props.Housenumber + " " + props.Street),
		BIN:     props.Addendum.Pad.BIN,
		BBL:     props.Addendum.Pad.BBL,
		Borough: core.BoroughName(props.Borough),
		Block:   block,
		Lot:     lot,
		ZipCode: props.Postalcode,
	}
	c.logger.Printf("✅ GeoSearch resolved %q: BIN=%s BBL=%s", address, ids.BIN, ids.BBL)
	return ids, nil
}

// fallbackSearch looks the address up in HPD violations, which cover enough
// of the city's building stock to recover identifiers when geosearch misses.
func (c *Client) fallbackSearch(ctx context.Context, address string) (*core.PropertyIdentifiers, error) {
	house, street, zip := core.ParseAddress(address)
	if house == "" || street == "" {
		return nil, nil
	}

	where := fmt.Sprintf("housenumber = '%s' AND streetname LIKE '%%%s%%'", house, street)
	if zip != "" {
		where += fmt.Sprintf(" AND zip = '%s'", zip)
	}

	rows, err := c.fetcher.Fetch(ctx, opendata.MustLookup(opendata.HPDViolations), opendata.Query{
		Where:  where,
		Select: "buildingid, housenumber, streetname, boro, block, lot, zip",
		Limit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	boro := normalize.String(row, "boro")
	block := normalize.String(row, "block")
	lot := normalize.String(row, "lot")

	ids := &core.PropertyIdentifiers{
		Address: strings.TrimSpace(normalize.String(row, "housenumber") + " " + normalize.String(row, "streetname")),
		BIN:     normalize.String(row, "buildingid"),
		BBL:     core.SynthesizeBBL(core.BoroughCode(boro), block, lot),
		Borough: boro,
		Block:   block,
		Lot:     lot,
		ZipCode: normalize.String(row, "zip"),
	}
	c.logger.Printf("✅ Fallback resolved %q via HPD: BIN=%s", address, ids.BIN)
	return ids, nil
}

func cacheKey(address, borough string) string {
	return "geocode:" + strings.ToUpper(strings.TrimSpace(address)) + "|" + strings.ToUpper(strings.TrimSpace(borough))
}

func (c *Client) cached(ctx context.Context, address, borough string) *core.PropertyIdentifiers {
	if c.cache == nil {
		return nil
	}
	raw, ok := c.cache.Get(ctx, cacheKey(address, borough))
	if !ok {
		return nil
	}
	var ids core.PropertyIdentifiers
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return &ids
}

func (c *Client) store(ctx context.Context, address, borough string, ids *core.PropertyIdentifiers) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return
	}
	c.cache.Set(ctx, cacheKey(address, borough), string(raw), cacheTTL)
}
