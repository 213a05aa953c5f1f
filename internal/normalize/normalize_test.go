package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propply/backend/internal/opendata"
)

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "1058037", Stringify("1058037"))
	assert.Equal(t, "1058037", Stringify(float64(1058037)))
	assert.Equal(t, "3.5", Stringify(3.5))
	assert.Equal(t, "true", Stringify(true))
}

func TestParseDateFormats(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-05-01", "2024-05-01", true},
		{"05/01/2024", "2024-05-01", true},
		{"05-01-2024", "2024-05-01", true},
		{"2024/05/01", "2024-05-01", true},
		{"2024-05-01T10:30:00", "2024-05-01", true},
		{"2024-05-01T10:30:00.000", "2024-05-01", true},
		{"2024-05-01T10:30:00Z", "2024-05-01", true},
		{"1899-12-31", "", false},
		{"invalid date", "", false},
		{"nan", "", false},
		{"", "", false},
		{"not a date", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got.Format("2006-01-02"))
			}
		})
	}
}

func TestRowsReplacesSentinelsAndCanonicalizesDates(t *testing.T) {
	in := []map[string]interface{}{
		{
			"violationid":    "12345",
			"inspectiondate": "05/01/2024",
			"approveddate":   "invalid date",
			"novdescription": "nan",
			"status":         "Open",
		},
	}

	out := Rows(in)
	require.Len(t, out, 1)
	assert.Equal(t, "2024-05-01", out[0]["inspectiondate"])
	assert.Nil(t, out[0]["approveddate"])
	assert.Nil(t, out[0]["novdescription"])
	assert.Equal(t, "Open", out[0]["status"])

	// Input untouched.
	assert.Equal(t, "05/01/2024", in[0]["inspectiondate"])
}

func TestRowsIdempotent(t *testing.T) {
	in := []map[string]interface{}{
		{"inspectiondate": "05/01/2024", "note": "nan", "count": float64(3)},
	}
	once := Rows(in)
	twice := Rows(once)
	assert.Equal(t, once, twice)
}

func TestForDatasetDOBAliasing(t *testing.T) {
	rows := []map[string]interface{}{
		{
			"isn_dob_bis_viol":   "2",
			"issue_date":         "01/15/2023",
			"violation_category": "V-DOB VIOLATION - ACTIVE",
		},
		{
			"isn_dob_bis_viol":   "1",
			"issuedate":          "2024-03-20",
			"violation_category": "V-DOB VIOLATION - DISMISSED",
		},
	}

	out := ForDataset(opendata.DOBViolations, rows)
	require.Len(t, out, 2)

	// Sorted newest first.
	assert.Equal(t, "2024-03-20", out[0]["issuedate"])
	assert.Equal(t, "2024-03-20", out[0]["issue_date"])
	assert.Equal(t, "RESOLVED", out[0]["status"])

	assert.Equal(t, "2023-01-15", out[1]["issuedate"])
	assert.Equal(t, "2023-01-15", out[1]["issue_date"])
	assert.Equal(t, "OPEN", out[1]["status"])
}

func TestForDatasetDOBKeepsExistingStatus(t *testing.T) {
	rows := []map[string]interface{}{
		{"isn_dob_bis_viol": "1", "issue_date": "2024-01-01", "status": "CERTIFIED", "violation_category": "ACTIVE"},
	}
	out := ForDataset(opendata.DOBViolations, rows)
	assert.Equal(t, "CERTIFIED", out[0]["status"])
}

func TestForDatasetDOBUnknownCategory(t *testing.T) {
	rows := []map[string]interface{}{
		{"isn_dob_bis_viol": "1", "issue_date": "2024-01-01", "violation_category": "V-DOB VIOLATION - PENDING"},
	}
	out := ForDataset(opendata.DOBViolations, rows)
	assert.Equal(t, "UNKNOWN", out[0]["status"])
}

func TestSortByDateDescTiebreakAndMissingDates(t *testing.T) {
	rows := []map[string]interface{}{
		{"violationid": "a", "inspectiondate": nil},
		{"violationid": "b", "inspectiondate": "2024-05-01"},
		{"violationid": "c", "inspectiondate": "2024-05-01"},
		{"violationid": "d", "inspectiondate": "2022-07-15"},
	}

	SortByDateDesc(rows, "inspectiondate", "violationid")

	assert.Equal(t, "c", rows[0]["violationid"])
	assert.Equal(t, "b", rows[1]["violationid"])
	assert.Equal(t, "d", rows[2]["violationid"])
	assert.Equal(t, "a", rows[3]["violationid"])
}

func TestFirstStringSkipsSentinels(t *testing.T) {
	row := map[string]interface{}{
		"issue_date": "nan",
		"issuedate":  "2024-01-01",
	}
	assert.Equal(t, "2024-01-01", FirstString(row, "issue_date", "issuedate"))
	assert.Equal(t, "", FirstString(row, "missing"))
}

func TestForDatasetHPDSortsByInspectionDate(t *testing.T) {
	rows := []map[string]interface{}{
		{"violationid": "1", "inspectiondate": "2023-01-10"},
		{"violationid": "2", "inspectiondate": "2024-05-01"},
	}
	out := ForDataset(opendata.HPDViolations, rows)
	assert.Equal(t, "2", out[0]["violationid"])
	assert.Equal(t, "1", out[1]["violationid"])
}
