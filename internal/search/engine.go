package search

import (
	"context"
	"log"
	"strings"

	"github.com/propply/backend/internal/core"
	"github.com/propply/backend/internal/normalize"
	"github.com/propply/backend/internal/opendata"
)

// Fetcher is the slice of the Open Data client the engine needs.
type Fetcher interface {
	Fetch(ctx context.Context, ds *opendata.Dataset, q opendata.Query) ([]opendata.Row, error)
}

// Result is the outcome of one dataset search: the raw rows plus the
// strategy of the attempt that produced them. An empty Strategy means no
// attempt matched.
type Result struct {
	Rows     []opendata.Row
	Strategy string
}

// Engine runs attempt ladders against the Open Data client.
type Engine struct {
	fetcher Fetcher
	logger  *log.Logger
}

func NewEngine(fetcher Fetcher) *Engine {
	return &Engine{
		fetcher: fetcher,
		logger:  log.New(log.Writer(), "[SEARCH] ", log.LstdFlags),
	}
}

// Search walks the dataset's attempt ladder and returns the first attempt
// that yields rows. Attempts that error are logged and skipped so one bad
// predicate cannot mask a match further down the ladder; only when every
// attempt errors does the search itself fail. A dataset with no viable
// attempts (boilers without a BIN) returns an empty result, not an error.
func (e *Engine) Search(ctx context.Context, ds *opendata.Dataset, ids *core.PropertyIdentifiers) (*Result, error) {
	attempts := Plan(ds, ids)
	if len(attempts) == 0 {
		e.logger.Printf("⚠️ %s: no searchable identifiers, skipping", ds.Key)
		return &Result{}, nil
	}

	q := opendata.Query{
		Order: ds.OrderBy,
		Limit: ds.DefaultLimit,
	}
	if len(ds.SelectColumns) > 0 {
		q.Select = strings.Join(ds.SelectColumns, ",")
	}

	var (
		errored int
		lastErr error
	)
	for _, attempt := range attempts {
		q.Where = attempt.Where
		rows, err := e.fetcher.Fetch(ctx, ds, q)
		if err != nil {
			if core.IsKind(err, core.KindDeadline) {
				return nil, err
			}
			e.logger.Printf("⚠️ %s: %s attempt failed: %v", ds.Key, attempt.Strategy, err)
			errored++
			lastErr = err
			continue
		}
		if len(rows) == 0 {
			continue
		}
		if attempt.PostFilterBIN {
			kept := filterByBIN(rows, ids.BIN)
			if len(kept) == 0 {
				e.logger.Printf("⚠️ %s: %d rows on %s but none match BIN %s", ds.Key, len(rows), attempt.Strategy, ids.BIN)
				continue
			}
			if len(kept) < len(rows) {
				e.logger.Printf("🔍 %s: BIN filter kept %d of %d rows", ds.Key, len(kept), len(rows))
			}
			rows = kept
		}
		e.logger.Printf("✅ %s: %d rows via %s", ds.Key, len(rows), attempt.Strategy)
		return &Result{Rows: rows, Strategy: attempt.Strategy}, nil
	}

	if errored == len(attempts) {
		return nil, core.NewError(core.KindRemote, "search "+ds.Key, lastErr)
	}
	return &Result{}, nil
}

// filterByBIN keeps rows whose bin column matches the target building.
func filterByBIN(rows []opendata.Row, bin string) []opendata.Row {
	kept := make([]opendata.Row, 0, len(rows))
	for _, row := range rows {
		if normalize.FirstString(row, "bin", "bin_number") == bin {
			kept = append(kept, row)
		}
	}
	return kept
}
