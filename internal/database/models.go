package database

import "time"

// ============================================================================
// ROW MODELS - nyc_* tables
// ============================================================================

// NYCProperty is the parent record linking an application property to the
// NYC identifiers resolved for it.
type NYCProperty struct {
	ID           string `json:"id,omitempty"` // Supabase UUID, generated on insert
	PropertyID   string `json:"property_id"`
	BIN          string `json:"bin,omitempty"`
	BBL          string `json:"bbl,omitempty"`
	Address      string `json:"address"`
	CreatedAt    string `json:"created_at,omitempty"` // String to handle Supabase timestamp format
	UpdatedAt    string `json:"updated_at,omitempty"`
	LastSyncedAt string `json:"last_synced_at,omitempty"`
}

// DOBViolationRow mirrors nyc_dob_violations. ViolationID carries the
// isn_dob_bis_viol value from the source dataset.
type DOBViolationRow struct {
	ID                string  `json:"id,omitempty"`
	NYCPropertyID     string  `json:"nyc_property_id"`
	ViolationID       string  `json:"violation_id"`
	BIN               string  `json:"bin,omitempty"`
	IssueDate         *string `json:"issue_date"`
	ViolationType     string  `json:"violation_type,omitempty"`
	ViolationTypeCode string  `json:"violation_type_code,omitempty"`
	ViolationCategory string  `json:"violation_category,omitempty"`
	DispositionDate   *string `json:"disposition_date"`
	CreatedAt         string  `json:"created_at,omitempty"`
}

// HPDViolationRow mirrors nyc_hpd_violations. ViolationID carries the
// violationid value from the source dataset.
type HPDViolationRow struct {
	ID              string  `json:"id,omitempty"`
	NYCPropertyID   string  `json:"nyc_property_id"`
	ViolationID     string  `json:"violation_id"`
	BBL             string  `json:"bbl,omitempty"`
	InspectionDate  *string `json:"inspection_date"`
	ViolationClass  string  `json:"violation_class,omitempty"`
	ViolationStatus string  `json:"violation_status,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
}

// ElevatorInspectionRow mirrors nyc_elevator_inspections, one row per device.
type ElevatorInspectionRow struct {
	ID                 string  `json:"id,omitempty"`
	NYCPropertyID      string  `json:"nyc_property_id"`
	DeviceNumber       string  `json:"device_number"`
	BIN                string  `json:"bin,omitempty"`
	DeviceType         string  `json:"device_type,omitempty"`
	LastInspectionDate *string `json:"last_inspection_date"`
	DeviceStatus       string  `json:"device_status,omitempty"`
	CreatedAt          string  `json:"created_at,omitempty"`
	UpdatedAt          string  `json:"updated_at,omitempty"`
}

// BoilerInspectionRow mirrors nyc_boiler_inspections, one row per device.
type BoilerInspectionRow struct {
	ID             string  `json:"id,omitempty"`
	NYCPropertyID  string  `json:"nyc_property_id"`
	DeviceNumber   string  `json:"device_number"`
	BIN            string  `json:"bin,omitempty"`
	InspectionDate *string `json:"inspection_date"`
	Status         string  `json:"status,omitempty"`
	CreatedAt      string  `json:"created_at,omitempty"`
	UpdatedAt      string  `json:"updated_at,omitempty"`
}

// Complaint311Row mirrors nyc_311_complaints. UniqueKey carries the 311
// dataset unique_key value.
type Complaint311Row struct {
	ID            string  `json:"id,omitempty"`
	NYCPropertyID string  `json:"nyc_property_id"`
	UniqueKey     string  `json:"unique_key"`
	CreatedDate   *string `json:"created_date"`
	ComplaintType string  `json:"complaint_type,omitempty"`
	Descriptor    string  `json:"descriptor,omitempty"`
	Status        string  `json:"status,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
}

// ComplianceSummaryRow mirrors nyc_compliance_summary, one row per property,
// rewritten on every successful run.
type ComplianceSummaryRow struct {
	ID              string `json:"id,omitempty"`
	NYCPropertyID   string `json:"nyc_property_id"`
	PropertyID      string `json:"property_id"`
	ComplianceScore int    `json:"compliance_score"`
	RiskLevel       string `json:"risk_level"`
	TotalViolations int    `json:"total_violations"`
	OpenViolations  int    `json:"open_violations"`
	CriticalIssues  int    `json:"critical_issues"`
	EquipmentStatus string `json:"equipment_status"`
	LastCalculated  string `json:"last_calculated"`
}

// APIKey represents an API key issued to an integration client
type APIKey struct {
	KeyID      string     `json:"key_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"key_hash"`
	Scopes     []string   `json:"scopes"`
	IsActive   bool       `json:"is_active"`
	ExpiresAt  *time.Time `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  string     `json:"created_at,omitempty"`
}
