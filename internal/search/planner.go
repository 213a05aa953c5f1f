// Package search turns resolved property identifiers into NYC Open Data
// queries and executes them as a ladder of attempts, most precise key
// first: BIN, then BBL, then block/lot, then street address. The first
// attempt that returns rows wins; coarser attempts are never tried once a
// finer one hits.
package search

import (
	"fmt"
	"strings"

	"github.com/propply/backend/internal/core"
	"github.com/propply/backend/internal/opendata"
)

// Strategy names attached to search results so callers can see which key
// actually matched the property.
const (
	StrategyBIN             = "bin"
	StrategyBBL             = "bbl"
	StrategyBlockLot        = "block_lot"
	StrategyBoroughBlock    = "borough_block"
	StrategyBoroughBlockLot = "borough_block_lot"
	StrategyAddress         = "address"
)

// Attempt is one rung of the search ladder: a SoQL predicate plus the
// strategy label it runs under.
type Attempt struct {
	Strategy string
	Where    string
	// PostFilterBIN marks attempts keyed on something coarser than the
	// building itself. When set, rows whose bin differs from the target
	// BIN are dropped after the fetch.
	PostFilterBIN bool
}

// Plan builds the attempt ladder for one dataset from whatever identifiers
// the geocoder produced. Attempts that cannot be built from the available
// identifiers are skipped, so a property known only by address still gets
// a (shorter) ladder. Datasets with an active-record predicate get every
// attempt wrapped in it.
func Plan(ds *opendata.Dataset, ids *core.PropertyIdentifiers) []Attempt {
	if ds == nil || ids == nil {
		return nil
	}
	cols := ds.Columns
	var attempts []Attempt

	if cols.BIN != "" && ids.HasBIN() {
		attempts = append(attempts, Attempt{
			Strategy: StrategyBIN,
			Where:    equals(cols.BIN, ids.BIN),
		})
	}
	if cols.BBL != "" && ids.HasBBL() {
		attempts = append(attempts, Attempt{
			Strategy: StrategyBBL,
			Where:    equals(cols.BBL, ids.BBL),
		})
	}

	house, street, _ := core.ParseAddress(ids.Address)

	switch {
	case cols.Borough != "" && cols.Block != "" && cols.Lot != "" && ds.Quirks.BoroughAsName:
		// OATH/FDNY shape: borough held as a full name, block and lot
		// zero-padded, with optional address columns to narrow the hit.
		if ids.Borough != "" && ids.Block != "" && ids.Lot != "" {
			parts := []string{
				equals(cols.Borough, core.BoroughName(ids.Borough)),
				equals(cols.Block, blockValue(ds, ids.Block)),
				equals(cols.Lot, lotValue(ds, ids.Lot)),
			}
			if house != "" && cols.House != "" {
				parts = append(parts, equals(cols.House, house))
				if street != "" && cols.Street != "" {
					parts = append(parts, fmt.Sprintf("UPPER(%s) LIKE '%%%s%%'", cols.Street, escape(street)))
				}
			}
			attempts = append(attempts, Attempt{
				Strategy: StrategyBoroughBlockLot,
				Where:    strings.Join(parts, " AND "),
			})
		}
	case cols.Borough != "" && cols.Block != "" && ds.Quirks.BoroughAsName:
		// Electrical permits shape: borough name plus unpadded block.
		if ids.Borough != "" && ids.Block != "" {
			attempts = append(attempts, Attempt{
				Strategy: StrategyBoroughBlock,
				Where: equals(cols.Borough, core.BoroughName(ids.Borough)) +
					" AND " + equals(cols.Block, blockValue(ds, ids.Block)),
			})
		}
	case cols.Block != "" && cols.Lot != "":
		if ids.HasBlockLot() {
			attempts = append(attempts, Attempt{
				Strategy: StrategyBlockLot,
				Where: equals(cols.Block, blockValue(ds, ids.Block)) +
					" AND " + equals(cols.Lot, lotValue(ds, ids.Lot)),
				PostFilterBIN: ids.HasBIN(),
			})
		}
	}

	// Coarsest rung: the street address itself. BoroughAsName datasets
	// already fold the address into their combined attempt above.
	if house != "" && street != "" && !ds.Quirks.BoroughAsName {
		switch {
		case cols.House != "" && cols.Street != "":
			for _, variant := range core.StreetVariants(street) {
				where := equals(cols.House, house) +
					fmt.Sprintf(" AND %s LIKE '%%%s%%'", cols.Street, escape(variant))
				if cols.Zip != "" && ids.ZipCode != "" {
					where += " AND " + equals(cols.Zip, ids.ZipCode)
				}
				attempts = append(attempts, Attempt{Strategy: StrategyAddress, Where: where})
			}
		case cols.Address != "":
			for _, variant := range core.StreetVariants(street) {
				where := fmt.Sprintf("%s LIKE '%%%s %s%%'", cols.Address, escape(house), escape(variant))
				if cols.Zip != "" && ids.ZipCode != "" {
					where += " AND " + equals(cols.Zip, ids.ZipCode)
				}
				attempts = append(attempts, Attempt{Strategy: StrategyAddress, Where: where})
			}
		}
	}

	if ds.ActivePredicate != "" {
		for i := range attempts {
			attempts[i].Where = fmt.Sprintf("(%s) AND %s", attempts[i].Where, ds.ActivePredicate)
		}
	}
	return attempts
}

func equals(column, value string) string {
	return fmt.Sprintf("%s = '%s'", column, escape(value))
}

// escape doubles single quotes, the only character SoQL string literals
// treat specially.
func escape(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

func blockValue(ds *opendata.Dataset, block string) string {
	if ds.Quirks.PaddedBlockLot {
		return core.ZeroPad(block, 5)
	}
	return block
}

func lotValue(ds *opendata.Dataset, lot string) string {
	if ds.Quirks.PaddedBlockLot {
		return core.ZeroPad(lot, 4)
	}
	return lot
}
