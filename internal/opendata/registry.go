package opendata

import "time"

// SearchColumns maps semantic identifier keys to a dataset's column names.
// An empty field means the dataset cannot be searched by that key.
type SearchColumns struct {
	BIN     string
	BBL     string
	Block   string
	Lot     string
	Borough string
	House   string
	Street  string
	Address string // single combined house+street column
	Zip     string
}

// Quirks carries the per-dataset deviations from default fetch behavior.
type Quirks struct {
	// Flaky datasets get 3 attempts instead of 1.
	Flaky bool
	// MaxPageSize caps $limit regardless of what the caller asks for.
	MaxPageSize int
	// TimeoutOverride replaces the default 30s request timeout.
	TimeoutOverride time.Duration
	// SimplifiedSelect is retried once in place of SelectColumns after an
	// HTTP 400, for datasets that reject wide projections.
	SimplifiedSelect []string
	// PaddedBlockLot means the dataset stores block/lot zero-padded
	// (block to 5 digits, lot to 4), FDNY style.
	PaddedBlockLot bool
	// BoroughAsName means the borough column holds the full upper-case
	// borough name rather than the single-digit boro code.
	BoroughAsName bool
}

// Dataset describes one NYC Open Data endpoint and how to query it.
// The registry is the only place dataset-specific knowledge lives; nothing
// outside this table branches on a dataset key.
type Dataset struct {
	Key             string
	EndpointID      string
	Name            string
	Columns         SearchColumns
	SelectColumns   []string // nil = full rows
	OrderBy         string
	DefaultLimit    int
	ActivePredicate string // filter fragment restricting to open/active records
	Quirks          Quirks
}

// Dataset keys used across the pipeline.
const (
	HPDViolations          = "hpd_violations"
	DOBViolations          = "dob_violations"
	ElevatorInspections    = "elevator_inspections"
	BoilerInspections      = "boiler_inspections"
	ElectricalPermits      = "electrical_permits"
	CertificateOfOccupancy = "certificate_of_occupancy"
	Complaints311          = "complaints_311"
	FDNYViolations         = "fdny_violations"
)

var registry = map[string]*Dataset{
	HPDViolations: {
		Key:        HPDViolations,
		EndpointID: "wvxf-dwi5",
		Name:       "HPD Violations",
		Columns: SearchColumns{
			BIN:    "bin",
			BBL:    "bbl",
			Block:  "block",
			Lot:    "lot",
			House:  "housenumber",
			Street: "streetname",
			Zip:    "zip",
		},
		OrderBy:         "inspectiondate DESC",
		DefaultLimit:    500,
		ActivePredicate: "violationstatus = 'Open'",
	},
	DOBViolations: {
		Key:        DOBViolations,
		EndpointID: "3h2n-5cm9",
		Name:       "DOB Violations",
		Columns: SearchColumns{
			BIN:     "bin",
			BBL:     "bbl",
			Block:   "block",
			Lot:     "lot",
			Borough: "boro",
			House:   "house_number",
			Street:  "street",
		},
		OrderBy:         "issue_date DESC",
		DefaultLimit:    500,
		ActivePredicate: "violation_category LIKE '%ACTIVE%'",
	},
	ElevatorInspections: {
		Key:        ElevatorInspections,
		EndpointID: "e5aq-a4j2",
		Name:       "Elevator Inspections",
		Columns: SearchColumns{
			BIN:    "bin",
			Block:  "block",
			Lot:    "lot",
			House:  "house_number",
			Street: "street_name",
		},
		SelectColumns: []string{
			"device_number", "device_type", "device_status", "status_date",
			"house_number", "street_name", "bin",
		},
		OrderBy:      "status_date DESC",
		DefaultLimit: 500,
	},
	BoilerInspections: {
		// The boiler dataset carries no address or block/lot columns at
		// all; bin_number is the only usable key.
		Key:        BoilerInspections,
		EndpointID: "52dp-yji6",
		Name:       "Boiler Inspections",
		Columns: SearchColumns{
			BIN: "bin_number",
		},
		SelectColumns: []string{
			"tracking_number", "boiler_id", "inspection_date", "defects_exist",
			"report_status", "bin_number", "boiler_make", "pressure_type", "report_type",
		},
		OrderBy:      "inspection_date DESC",
		DefaultLimit: 500,
	},
	ElectricalPermits: {
		Key:        ElectricalPermits,
		EndpointID: "dm9a-ab7w",
		Name:       "Electrical Permits",
		Columns: SearchColumns{
			BIN:     "bin",
			Block:   "block",
			Borough: "borough",
		},
		SelectColumns: []string{
			"filing_number", "filing_date", "filing_status", "job_description",
			"applicant_first_name", "applicant_last_name", "completion_date", "amount_paid",
		},
		OrderBy:      "filing_date DESC",
		DefaultLimit: 500,
		Quirks: Quirks{
			Flaky:            true,
			TimeoutOverride:  45 * time.Second,
			SimplifiedSelect: []string{"filing_number", "filing_date", "filing_status", "bin"},
			BoroughAsName:    true,
		},
	},
	CertificateOfOccupancy: {
		Key:        CertificateOfOccupancy,
		EndpointID: "pkdm-hqz6",
		Name:       "Certificates of Occupancy",
		Columns: SearchColumns{
			BIN:   "bin",
			Block: "block",
			Lot:   "lot",
		},
		SelectColumns: []string{
			"bin", "c_of_o_filing_type", "c_of_o_status", "c_of_o_issuance_date",
			"job_type", "block", "lot", "house_no", "street_name",
		},
		OrderBy:      "c_of_o_issuance_date DESC",
		DefaultLimit: 50,
	},
	Complaints311: {
		Key:        Complaints311,
		EndpointID: "erm2-nwe9",
		Name:       "311 Complaints",
		Columns: SearchColumns{
			BBL:     "bbl",
			Address: "incident_address",
			Zip:     "incident_zip",
		},
		SelectColumns: []string{
			"unique_key", "created_date", "complaint_type", "descriptor",
			"status", "incident_address", "bbl",
		},
		OrderBy:      "created_date DESC",
		DefaultLimit: 500,
	},
	FDNYViolations: {
		// OATH ECB hearing data. No BIN column; block and lot are stored
		// zero-padded and the borough column holds the full name.
		Key:        FDNYViolations,
		EndpointID: "avgm-ztsb",
		Name:       "FDNY Violations (OATH ECB)",
		Columns: SearchColumns{
			Borough: "violation_location_borough",
			Block:   "violation_location_block_no",
			Lot:     "violation_location_lot_no",
			House:   "violation_location_house",
			Street:  "violation_location_street_name",
		},
		SelectColumns: []string{
			"ticket_number", "violation_date", "violation_location_borough",
			"violation_location_block_no", "violation_location_lot_no",
			"violation_location_house", "violation_location_street_name",
			"total_violation_amount", "hearing_status", "violation_description",
		},
		OrderBy:      "violation_date DESC",
		DefaultLimit: 100,
		Quirks: Quirks{
			Flaky:           true,
			MaxPageSize:     100,
			TimeoutOverride: 60 * time.Second,
			PaddedBlockLot:  true,
			BoroughAsName:   true,
		},
	},
}

// Lookup returns the descriptor for a dataset key.
func Lookup(key string) (*Dataset, bool) {
	ds, ok := registry[key]
	return ds, ok
}

// MustLookup returns the descriptor or panics; for compile-time-known keys.
func MustLookup(key string) *Dataset {
	ds, ok := registry[key]
	if !ok {
		panic("opendata: unknown dataset " + key)
	}
	return ds
}

// Keys returns every registered dataset key.
func Keys() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	return keys
}
