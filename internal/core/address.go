package core

import (
	"regexp"
	"strings"
)

// addressSuffixes are borough and state suffixes stripped before tokenizing
// a free-form address. Longer forms come first so ", NEW YORK, NY" is not
// left half-stripped by ", NY".
var addressSuffixes = []string{
	", NEW YORK, NY",
	", NEW YORK",
	", NY",
	", MANHATTAN",
	", BROOKLYN",
	", QUEENS",
	", BRONX",
	", STATEN ISLAND",
}

var zipPattern = regexp.MustCompile(`\b(\d{5})\b`)

// ParseAddress splits a free-form address into house number, street name and
// ZIP code. "1662 Park Ave, New York, NY 10035" yields
// ("1662", "PARK AVE", "10035"). Street names come back uppercased, ready
// for LIKE predicates against city datasets.
func ParseAddress(address string) (house, street, zip string) {
	clean := strings.ToUpper(strings.TrimSpace(address))
	for _, suffix := range addressSuffixes {
		clean = strings.ReplaceAll(clean, suffix, "")
	}

	if m := zipPattern.FindStringSubmatch(clean); m != nil {
		zip = m[1]
		clean = strings.Replace(clean, zip, "", 1)
	}

	// Stray commas survive suffix stripping ("1662 PARK AVE, 10035").
	clean = strings.TrimSpace(strings.ReplaceAll(clean, ",", " "))

	parts := strings.Fields(clean)
	if len(parts) == 0 {
		return "", "", zip
	}
	house = parts[0]
	street = strings.Join(parts[1:], " ")
	return house, street, zip
}

// streetAbbreviations maps long street-type suffixes to their abbreviated
// forms as they appear in some city datasets.
var streetAbbreviations = map[string]string{
	"AVENUE":    "AVE",
	"STREET":    "ST",
	"BOULEVARD": "BLVD",
	"PLACE":     "PL",
	"ROAD":      "RD",
	"DRIVE":     "DR",
	"LANE":      "LN",
	"COURT":     "CT",
	"PARKWAY":   "PKWY",
	"TERRACE":   "TER",
}

// StreetVariants returns the uppercased street name plus spelling variants
// with the street-type suffix swapped between long and short forms, e.g.
// "Park Avenue" -> ["PARK AVENUE", "PARK AVE"]. The input spelling is always
// first.
func StreetVariants(street string) []string {
	s := strings.ToUpper(strings.TrimSpace(street))
	if s == "" {
		return nil
	}
	variants := []string{s}

	parts := strings.Fields(s)
	last := parts[len(parts)-1]

	if abbr, ok := streetAbbreviations[last]; ok {
		parts[len(parts)-1] = abbr
		variants = append(variants, strings.Join(parts, " "))
		return variants
	}
	for long, abbr := range streetAbbreviations {
		if last == abbr {
			parts[len(parts)-1] = long
			variants = append(variants, strings.Join(parts, " "))
			break
		}
	}
	return variants
}
