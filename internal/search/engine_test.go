package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propply/backend/internal/core"
	"github.com/propply/backend/internal/opendata"
)

type scripted struct {
	rows []opendata.Row
	err  error
}

// fakeFetcher pops one scripted response per Fetch call, in order.
type fakeFetcher struct {
	scripts []scripted
	calls   []opendata.Query
}

func (f *fakeFetcher) Fetch(_ context.Context, _ *opendata.Dataset, q opendata.Query) ([]opendata.Row, error) {
	f.calls = append(f.calls, q)
	if len(f.scripts) == 0 {
		return nil, nil
	}
	s := f.scripts[0]
	f.scripts = f.scripts[1:]
	return s.rows, s.err
}

func elevatorRows(bins ...string) []opendata.Row {
	rows := make([]opendata.Row, 0, len(bins))
	for i, bin := range bins {
		rows = append(rows, opendata.Row{
			"device_number": string(rune('A' + i)),
			"bin":           bin,
		})
	}
	return rows
}

func TestSearchFirstAttemptWins(t *testing.T) {
	fake := &fakeFetcher{scripts: []scripted{
		{rows: elevatorRows("1058037", "1058037", "1058037")},
	}}
	eng := NewEngine(fake)

	res, err := eng.Search(context.Background(), opendata.MustLookup(opendata.ElevatorInspections), harlemIDs())
	require.NoError(t, err)
	assert.Equal(t, StrategyBIN, res.Strategy)
	assert.Len(t, res.Rows, 3)

	// Later rungs of the ladder are never queried.
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "bin = '1058037'", fake.calls[0].Where)
	assert.Equal(t, "status_date DESC", fake.calls[0].Order)
	assert.Equal(t, 500, fake.calls[0].Limit)
	assert.Equal(t,
		"device_number,device_type,device_status,status_date,house_number,street_name,bin",
		fake.calls[0].Select)
}

func TestSearchFallsThroughEmptyAttempts(t *testing.T) {
	fake := &fakeFetcher{scripts: []scripted{
		{}, // bin
		{}, // block/lot
		{rows: elevatorRows("1058037")}, // first address variant
	}}
	eng := NewEngine(fake)

	res, err := eng.Search(context.Background(), opendata.MustLookup(opendata.ElevatorInspections), harlemIDs())
	require.NoError(t, err)
	assert.Equal(t, StrategyAddress, res.Strategy)
	assert.Len(t, res.Rows, 1)
	assert.Len(t, fake.calls, 3)
}

func TestSearchPostFilterKeepsMatchingBIN(t *testing.T) {
	fake := &fakeFetcher{scripts: []scripted{
		{}, // bin comes back empty
		{rows: elevatorRows("1058037", "1999999", "1058037", "1888888", "1058037", "1777777", "1666666")},
	}}
	eng := NewEngine(fake)

	res, err := eng.Search(context.Background(), opendata.MustLookup(opendata.ElevatorInspections), harlemIDs())
	require.NoError(t, err)
	assert.Equal(t, StrategyBlockLot, res.Strategy)
	require.Len(t, res.Rows, 3)
	for _, row := range res.Rows {
		assert.Equal(t, "1058037", row["bin"])
	}
}

func TestSearchPostFilterAllDroppedContinues(t *testing.T) {
	fake := &fakeFetcher{scripts: []scripted{
		{},                                // bin
		{rows: elevatorRows("1999999")},   // block/lot, wrong building
		{rows: elevatorRows("1058037")},   // address variant hits
	}}
	eng := NewEngine(fake)

	res, err := eng.Search(context.Background(), opendata.MustLookup(opendata.ElevatorInspections), harlemIDs())
	require.NoError(t, err)
	assert.Equal(t, StrategyAddress, res.Strategy)
	assert.Len(t, res.Rows, 1)
	assert.Len(t, fake.calls, 3)
}

func TestSearchAttemptErrorSkipsToNext(t *testing.T) {
	fake := &fakeFetcher{scripts: []scripted{
		{err: core.Errorf(core.KindRate, "opendata.fetch", "upstream returned 429")},
		{rows: elevatorRows("1058037")},
	}}
	eng := NewEngine(fake)

	res, err := eng.Search(context.Background(), opendata.MustLookup(opendata.ElevatorInspections), harlemIDs())
	require.NoError(t, err)
	assert.Equal(t, StrategyBlockLot, res.Strategy)
	assert.Len(t, res.Rows, 1)
}

func TestSearchAllAttemptsErroredIsRemote(t *testing.T) {
	fake := &fakeFetcher{scripts: []scripted{
		{err: core.Errorf(core.KindRate, "opendata.fetch", "upstream returned 503")},
	}}
	eng := NewEngine(fake)

	res, err := eng.Search(context.Background(), opendata.MustLookup(opendata.BoilerInspections), harlemIDs())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, core.IsKind(err, core.KindRemote))
}

func TestSearchMixedErrorAndEmptyIsNotAnError(t *testing.T) {
	fake := &fakeFetcher{scripts: []scripted{
		{err: core.Errorf(core.KindRemote, "opendata.fetch", "upstream returned 403")},
		{}, {}, {},
	}}
	eng := NewEngine(fake)

	res, err := eng.Search(context.Background(), opendata.MustLookup(opendata.ElevatorInspections), harlemIDs())
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Empty(t, res.Strategy)
}

func TestSearchEmptyPlanSkipsFetch(t *testing.T) {
	fake := &fakeFetcher{}
	eng := NewEngine(fake)

	ids := harlemIDs()
	ids.BIN = ""
	res, err := eng.Search(context.Background(), opendata.MustLookup(opendata.BoilerInspections), ids)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Empty(t, fake.calls)
}

func TestSearchDeadlineStopsLadder(t *testing.T) {
	fake := &fakeFetcher{scripts: []scripted{
		{err: core.Errorf(core.KindDeadline, "opendata.fetch", "run deadline exceeded")},
		{rows: elevatorRows("1058037")},
	}}
	eng := NewEngine(fake)

	res, err := eng.Search(context.Background(), opendata.MustLookup(opendata.ElevatorInspections), harlemIDs())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, core.IsKind(err, core.KindDeadline))
	assert.Len(t, fake.calls, 1)
}

func TestSearchActivePredicateReachesFetcher(t *testing.T) {
	fake := &fakeFetcher{scripts: []scripted{
		{rows: []opendata.Row{{"violationid": "99", "bin": "1058037"}}},
	}}
	eng := NewEngine(fake)

	res, err := eng.Search(context.Background(), opendata.MustLookup(opendata.HPDViolations), harlemIDs())
	require.NoError(t, err)
	assert.Equal(t, StrategyBIN, res.Strategy)
	require.NotEmpty(t, fake.calls)
	assert.Equal(t, "(bin = '1058037') AND violationstatus = 'Open'", fake.calls[0].Where)
}
