// Package opendata is the HTTP client for the NYC Open Data (Socrata) API.
// It owns the dataset registry, request authentication, the process-wide
// token bucket, per-dataset circuit breakers, and retry/backoff policy.
package opendata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/propply/backend/internal/circuitbreaker"
	"github.com/propply/backend/internal/core"
)

// DefaultBaseURL is the NYC Open Data host. Tests point it elsewhere.
const DefaultBaseURL = "https://data.cityofnewyork.us"

// defaultTimeout bounds one request unless the dataset overrides it.
const defaultTimeout = 30 * time.Second

// Row is one dataset record as returned by the API.
type Row = map[string]interface{}

// Credentials hold NYC Open Data API credentials. KeyID and KeySecret ride
// as HTTP basic auth, AppToken as the X-App-Token header. Either form
// unlocks the higher request rate.
type Credentials struct {
	KeyID     string
	KeySecret string
	AppToken  string
}

// CredentialsFromEnv reads API credentials from the environment.
func CredentialsFromEnv() Credentials {
	return Credentials{
		KeyID:     os.Getenv("NYC_API_KEY_ID"),
		KeySecret: os.Getenv("NYC_API_KEY_SECRET"),
		AppToken:  os.Getenv("NYC_APP_TOKEN"),
	}
}

// Query is one SoQL query against a dataset.
type Query struct {
	Where  string
	Select string
	Order  string
	Limit  int
	Offset int
}

// Client fetches rows from NYC Open Data endpoints. All fetches share one
// token bucket; each dataset gets its own circuit breaker.
type Client struct {
	httpClient *http.Client
	creds      Credentials
	limiter    *RateLimiter
	breakers   *circuitbreaker.Manager
	metrics    *Metrics
	logger     *log.Logger
	baseURL    string

	// backoffUnit scales retry sleeps. Tests shrink it to milliseconds.
	backoffUnit time.Duration
}

// NewClient creates a client for the given credentials.
func NewClient(creds Credentials) *Client {
	m := newMetrics()
	cfg := circuitbreaker.DefaultConfig("")
	cfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		log.Printf("[BREAKER:%s] State change: %s -> %s", name, from, to)
		m.RecordBreakerTransition(name, to.String())
	}
	return &Client{
		httpClient:  &http.Client{},
		creds:       creds,
		limiter:     NewRateLimiter(DefaultRate(creds)),
		breakers:    circuitbreaker.NewManager(cfg),
		metrics:     m,
		logger:      log.New(log.Writer(), "[OPENDATA] ", log.LstdFlags),
		baseURL:     DefaultBaseURL,
		backoffUnit: time.Second,
	}
}

// BreakerStats exposes circuit breaker snapshots for the health endpoint.
func (c *Client) BreakerStats() map[string]circuitbreaker.BreakerStats {
	return c.breakers.Stats()
}

// Fetch runs q against ds and returns the decoded rows.
//
// Flaky datasets get up to 3 attempts, everything else 1. Throttled or
// failing upstreams (429/5xx) back off 2^attempt seconds between attempts;
// timeouts back off 2s. A 400 on a dataset with a simplified select fallback
// is retried once with the reduced column list before being surfaced.
func (c *Client) Fetch(ctx context.Context, ds *Dataset, q Query) ([]Row, error) {
	op := "fetch " + ds.Key

	if q.Limit <= 0 {
		q.Limit = ds.DefaultLimit
	}
	if ds.Quirks.MaxPageSize > 0 && q.Limit > ds.Quirks.MaxPageSize {
		q.Limit = ds.Quirks.MaxPageSize
	}

	timeout := defaultTimeout
	if ds.Quirks.TimeoutOverride > 0 {
		timeout = ds.Quirks.TimeoutOverride
	}

	maxAttempts := 1
	if ds.Quirks.Flaky {
		maxAttempts = 3
	}

	breaker := c.breakers.Get(ds.Key)
	simplified := false

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, core.NewError(core.KindDeadline, op, err)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, core.NewError(core.KindDeadline, op, err)
		}

		start := time.Now()
		var rows []Row
		var fetchErr error
		brkErr := breaker.Execute(func() error {
			rows, fetchErr = c.doRequest(ctx, op, ds, q, timeout)
			if fetchErr != nil && tripsBreaker(fetchErr) {
				return fetchErr
			}
			return nil
		})
		elapsed := time.Since(start).Seconds()

		if errors.Is(brkErr, circuitbreaker.ErrCircuitOpen) || errors.Is(brkErr, circuitbreaker.ErrTooManyRequests) {
			c.metrics.RecordFetch(ds.Key, "network", elapsed)
			return nil, core.NewError(core.KindNetwork, op, brkErr)
		}

		if fetchErr == nil {
			c.metrics.RecordFetch(ds.Key, "ok", elapsed)
			return rows, nil
		}

		kind := core.KindOf(fetchErr)
		c.metrics.RecordFetch(ds.Key, kind.String(), elapsed)
		lastErr = fetchErr

		switch kind {
		case core.KindBadQuery:
			if !simplified && len(ds.Quirks.SimplifiedSelect) > 0 {
				simplified = true
				q.Select = strings.Join(ds.Quirks.SimplifiedSelect, ",")
				c.logger.Printf("⚠️ %s: 400 from upstream, retrying with simplified select", ds.Key)
				c.metrics.RecordRetry(ds.Key, "simplified_select")
				attempt-- // the simplified retry does not consume an attempt
				continue
			}
			return nil, fetchErr
		case core.KindRate:
			if attempt < maxAttempts {
				backoff := time.Duration(1<<uint(attempt)) * c.backoffUnit
				c.logger.Printf("⚠️ %s: upstream throttled/unavailable, backing off %v (attempt %d/%d)",
					ds.Key, backoff, attempt, maxAttempts)
				c.metrics.RecordRetry(ds.Key, "rate")
				c.sleep(ctx, backoff)
				continue
			}
		case core.KindNetwork:
			if attempt < maxAttempts {
				c.logger.Printf("⚠️ %s: timeout, retrying in %v (attempt %d/%d)",
					ds.Key, 2*c.backoffUnit, attempt, maxAttempts)
				c.metrics.RecordRetry(ds.Key, "timeout")
				c.sleep(ctx, 2*c.backoffUnit)
				continue
			}
		default:
			// Remote, Decode and Deadline are not retryable.
			return nil, fetchErr
		}
	}

	c.logger.Printf("❌ %s: attempts exhausted: %v", ds.Key, lastErr)
	return nil, lastErr
}

// doRequest performs a single HTTP attempt and classifies the outcome.
func (c *Client) doRequest(ctx context.Context, op string, ds *Dataset, q Query, timeout time.Duration) ([]Row, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/resource/%s.json", c.baseURL, ds.EndpointID)
	params := url.Values{}
	if q.Where != "" {
		params.Set("$where", q.Where)
	}
	if q.Select != "" {
		params.Set("$select", q.Select)
	}
	if q.Order != "" {
		params.Set("$order", q.Order)
	}
	if q.Limit > 0 {
		params.Set("$limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("$offset", strconv.Itoa(q.Offset))
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, core.NewError(core.KindBadQuery, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.creds.AppToken != "" {
		req.Header.Set("X-App-Token", c.creds.AppToken)
	}
	if c.creds.KeyID != "" {
		req.SetBasicAuth(c.creds.KeyID, c.creds.KeySecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// The run deadline fired, not the per-request timeout.
			return nil, core.NewError(core.KindDeadline, op, ctx.Err())
		}
		return nil, core.NewError(core.KindNetwork, op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, core.Errorf(core.KindRate, op, "upstream returned %d", resp.StatusCode)
	case resp.StatusCode == http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, core.Errorf(core.KindBadQuery, op, "upstream rejected query: %s", strings.TrimSpace(string(body)))
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, core.Errorf(core.KindRemote, op, "upstream returned %d", resp.StatusCode)
	}

	var rows []Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, core.NewError(core.KindDecode, op, err)
	}
	return rows, nil
}

// tripsBreaker reports whether an error should count against the upstream's
// circuit. Query-shape problems (400) and decode issues do not.
func tripsBreaker(err error) bool {
	switch core.KindOf(err) {
	case core.KindNetwork, core.KindRate:
		return true
	default:
		return false
	}
}

// sleep waits for d unless ctx finishes first.
func (c *Client) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
