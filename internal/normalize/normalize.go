// Package normalize cleans raw dataset rows before scoring and persistence:
// sentinel null values become real nulls, date fields are canonicalized to
// YYYY-MM-DD, per-dataset field aliases are filled in, and each domain's rows
// get a deterministic order. Everything here is pure; normalizing twice gives
// the same result as normalizing once.
package normalize

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/propply/backend/internal/opendata"
)

// nullSentinels are upstream stand-ins for "no value".
var nullSentinels = map[string]bool{
	"":             true,
	"nan":          true,
	"null":         true,
	"none":         true,
	"invalid date": true,
}

// dateLayouts are the accepted input formats, tried in order. ISO-8601
// timestamps are handled separately by trimming to the seconds part.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"01-02-2006",
	"2006/01/02",
}

// Stringify coerces a decoded JSON value to its string form. Whole-number
// floats render without an exponent or trailing zeros.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// String returns row[key] coerced to a string, "" when absent or null.
func String(row map[string]interface{}, key string) string {
	return Stringify(row[key])
}

// FirstString returns the first non-empty value among keys.
func FirstString(row map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s := String(row, key); s != "" && !nullSentinels[strings.ToLower(s)] {
			return s
		}
	}
	return ""
}

// IsNullSentinel reports whether v is one of the upstream null stand-ins.
func IsNullSentinel(v interface{}) bool {
	s, ok := v.(string)
	if !ok {
		return v == nil
	}
	return nullSentinels[strings.ToLower(strings.TrimSpace(s))]
}

// ParseDate parses a date in any accepted format. Dates before 1900 are
// rejected the same as unparseable input.
func ParseDate(v interface{}) (time.Time, bool) {
	s := strings.TrimSpace(Stringify(v))
	if s == "" || nullSentinels[strings.ToLower(s)] {
		return time.Time{}, false
	}

	head := s
	if len(head) > 10 {
		head = head[:10]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, head); err == nil {
			if t.Year() < 1900 {
				return time.Time{}, false
			}
			return t, true
		}
	}

	// ISO-8601 timestamps: keep up to seconds, tolerate a trailing zone.
	if len(s) >= 19 {
		if t, err := time.Parse("2006-01-02T15:04:05", s[:19]); err == nil {
			if t.Year() < 1900 {
				return time.Time{}, false
			}
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		if t.Year() < 1900 {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// CanonicalDate renders v as YYYY-MM-DD, or "" when invalid.
func CanonicalDate(v interface{}) string {
	t, ok := ParseDate(v)
	if !ok {
		return ""
	}
	return t.Format("2006-01-02")
}

// isDateField reports whether a column holds a date. Every date column in
// the registered datasets has "date" somewhere in its name.
func isDateField(key string) bool {
	return strings.Contains(strings.ToLower(key), "date")
}

// Rows returns a cleaned copy of rows: null sentinels become nil and date
// fields are canonicalized (nil when unparseable). Input rows are not
// mutated.
func Rows(rows []map[string]interface{}) []map[string]interface{} {
	cleaned := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		out := make(map[string]interface{}, len(row))
		for key, value := range row {
			switch {
			case IsNullSentinel(value):
				out[key] = nil
			case isDateField(key):
				if iso := CanonicalDate(value); iso != "" {
					out[key] = iso
				} else {
					out[key] = nil
				}
			default:
				out[key] = value
			}
		}
		cleaned = append(cleaned, out)
	}
	return cleaned
}

// sortKey names a domain's primary date column and id tiebreaker.
type sortKey struct {
	date string
	id   string
}

var sortKeys = map[string]sortKey{
	opendata.HPDViolations:          {date: "inspectiondate", id: "violationid"},
	opendata.DOBViolations:          {date: "issuedate", id: "isn_dob_bis_viol"},
	opendata.ElevatorInspections:    {date: "status_date", id: "device_number"},
	opendata.BoilerInspections:      {date: "inspection_date", id: "tracking_number"},
	opendata.ElectricalPermits:      {date: "filing_date", id: "filing_number"},
	opendata.CertificateOfOccupancy: {date: "c_of_o_issuance_date", id: "bin"},
	opendata.Complaints311:          {date: "created_date", id: "unique_key"},
	opendata.FDNYViolations:         {date: "violation_date", id: "ticket_number"},
}

// SortByDateDesc orders rows newest-first on dateField with idField breaking
// ties. Rows without a usable date sort last.
func SortByDateDesc(rows []map[string]interface{}, dateField, idField string) {
	const floor = "1900-01-01"
	sort.SliceStable(rows, func(i, j int) bool {
		di, dj := String(rows[i], dateField), String(rows[j], dateField)
		if di == "" {
			di = floor
		}
		if dj == "" {
			dj = floor
		}
		if di != dj {
			return di > dj
		}
		return String(rows[i], idField) > String(rows[j], idField)
	})
}

// ForDataset cleans rows and applies the dataset's aliasing and ordering.
func ForDataset(key string, rows []map[string]interface{}) []map[string]interface{} {
	cleaned := Rows(rows)

	if key == opendata.DOBViolations {
		for _, row := range cleaned {
			aliasDOBViolation(row)
		}
	}

	if sk, ok := sortKeys[key]; ok {
		SortByDateDesc(cleaned, sk.date, sk.id)
	}
	return cleaned
}

// aliasDOBViolation makes DOB rows uniform: both issue_date and issuedate
// carry the canonical date, dispositiondate is canonical when present, and a
// status field is derived from violation_category when the source omits it.
func aliasDOBViolation(row map[string]interface{}) {
	if iso := CanonicalDate(FirstString(row, "issue_date", "issuedate", "issue_dt")); iso != "" {
		row["issue_date"] = iso
		row["issuedate"] = iso
	}
	if iso := CanonicalDate(FirstString(row, "dispositiondate", "disposition_date", "disposition_dt")); iso != "" {
		row["dispositiondate"] = iso
	}

	if String(row, "status") != "" {
		return
	}
	category := strings.ToUpper(FirstString(row, "violation_category", "violationcategory"))
	switch {
	case strings.Contains(category, "ACTIVE"):
		row["status"] = "OPEN"
	case strings.Contains(category, "RESOLVED"),
		strings.Contains(category, "CLOSED"),
		strings.Contains(category, "DISMISSED"):
		row["status"] = "RESOLVED"
	default:
		row["status"] = "UNKNOWN"
	}
}
