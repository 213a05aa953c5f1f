package core

import "strings"

// PropertyIdentifiers are the canonical keys for one NYC building. They are
// resolved once per run by the geocoder and are immutable afterwards.
type PropertyIdentifiers struct {
	Address string `json:"address"`
	BIN     string `json:"bin,omitempty"`     // 7-digit Building Identification Number
	BBL     string `json:"bbl,omitempty"`     // 10-digit borough+block+lot, zero-padded
	Borough string `json:"borough,omitempty"` // name (MANHATTAN) or boro code ("1") from fallback
	Block   string `json:"block,omitempty"`   // digits, no leading zeros
	Lot     string `json:"lot,omitempty"`     // digits, no leading zeros
	ZipCode string `json:"zip_code,omitempty"`
}

// HasBIN reports whether a usable BIN is present.
func (p *PropertyIdentifiers) HasBIN() bool { return p.BIN != "" }

// HasBBL reports whether a usable BBL is present.
func (p *PropertyIdentifiers) HasBBL() bool { return p.BBL != "" }

// HasBlockLot reports whether both block and lot are present.
func (p *PropertyIdentifiers) HasBlockLot() bool { return p.Block != "" && p.Lot != "" }

// boroughCodes maps canonical borough names to their BBL digit.
var boroughCodes = map[string]string{
	"MANHATTAN":     "1",
	"BRONX":         "2",
	"BROOKLYN":      "3",
	"QUEENS":        "4",
	"STATEN ISLAND": "5",
}

// boroughNames is the inverse of boroughCodes.
var boroughNames = map[string]string{
	"1": "MANHATTAN",
	"2": "BRONX",
	"3": "BROOKLYN",
	"4": "QUEENS",
	"5": "STATEN ISLAND",
}

// BoroughCode returns the single-digit boro code for a borough name or code.
// Unknown inputs return "".
func BoroughCode(borough string) string {
	b := strings.ToUpper(strings.TrimSpace(borough))
	if b == "" {
		return ""
	}
	if _, ok := boroughNames[b]; ok {
		return b
	}
	return boroughCodes[b]
}

// BoroughName returns the canonical upper-case borough name for a name or
// boro code. Unknown inputs return the upper-cased input unchanged.
func BoroughName(borough string) string {
	b := strings.ToUpper(strings.TrimSpace(borough))
	if name, ok := boroughNames[b]; ok {
		return name
	}
	return b
}

// ZeroPad left-pads s with zeros to the given width.
func ZeroPad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// StripLeadingZeros removes leading zeros, keeping a single "0" for all-zero
// input so downstream equality filters still have a value to match.
func StripLeadingZeros(s string) string {
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" && s != "" {
		return "0"
	}
	return trimmed
}

// SynthesizeBBL builds a 10-digit BBL from a boro code and unpadded block/lot.
// Returns "" when any part is missing.
func SynthesizeBBL(boroCode, block, lot string) string {
	if boroCode == "" || block == "" || lot == "" {
		return ""
	}
	return boroCode + ZeroPad(block, 5) + ZeroPad(lot, 4)
}

// SplitBBL extracts the unpadded block and lot from a 10-digit BBL.
// A malformed BBL yields empty strings.
func SplitBBL(bbl string) (block, lot string) {
	if len(bbl) != 10 {
		return "", ""
	}
	return StripLeadingZeros(bbl[1:6]), StripLeadingZeros(bbl[6:])
}
