package sdk

import "time"

// Risk levels carried on reports and action-plan items
const (
	// RiskLow — overall score ≥ 90, routine monitoring is enough
	RiskLow = "LOW"

	// RiskMedium — overall score 75–89, open issues worth scheduling
	RiskMedium = "MEDIUM"

	// RiskHigh — overall score 50–74, active violations need attention
	RiskHigh = "HIGH"

	// RiskCritical — overall score < 50, immediate remediation expected
	RiskCritical = "CRITICAL"
)

// Data-source provenance values on ComplianceReport.DataSources
const (
	// DataSourcesFull — every requested domain was collected
	DataSourcesFull = "NYC_Open_Data,NYC_Planning_GeoSearch"

	// DataSourcesPartial — the run deadline cut off some domains
	DataSourcesPartial = "PARTIAL"

	// DataSourcesFailed — the address could not be resolved, nothing collected
	DataSourcesFailed = "FAILED"
)

// Domain names accepted in RunRequest.Domains
const (
	DomainHPDViolations  = "hpd_violations"
	DomainDOBViolations  = "dob_violations"
	DomainElevators      = "elevators"
	DomainBoilers        = "boilers"
	DomainElectrical     = "electrical_permits"
	DomainCertificates   = "certificate_of_occupancy"
	DomainComplaints311  = "complaints_311"
	DomainFDNYViolations = "fdny_violations"
)

// Webhook event types accepted in WebhookRequest.Events
const (
	EventReportCompleted = "report.completed"
	EventReportPartial   = "report.partial"
	EventSyncCompleted   = "sync.completed"
	EventRunFailed       = "run.failed"
)

// RunRequest is the body of POST /api/v1/compliance.
type RunRequest struct {
	// Address is the street address to check (required)
	Address string `json:"address"`

	// Borough hints the geocoder ("Manhattan", "Brooklyn", ...)
	Borough string `json:"borough,omitempty"`

	// PropertyID is your application's property key; required when
	// Persist is set
	PropertyID string `json:"property_id,omitempty"`

	// Persist stores the results under PropertyID after the run
	Persist bool `json:"persist,omitempty"`

	// Domains limits the run; empty means every domain
	Domains []string `json:"domains,omitempty"`

	// MaxRecords caps rows persisted per table (server default 500)
	MaxRecords int `json:"max_records,omitempty"`
}

// RunResult is the response of POST /api/v1/compliance.
type RunResult struct {
	// RunID identifies this run; stream and webhook events carry it
	RunID string `json:"run_id"`

	// Report is the assembled compliance record
	Report *ComplianceReport `json:"report"`

	// Warning is set when the run finished with recoverable errors
	Warning string `json:"warning,omitempty"`

	// Sync reports the persistence pass when Persist was requested
	Sync *SyncResult `json:"sync,omitempty"`

	// SyncError is set when persistence was requested but failed
	SyncError string `json:"sync_error,omitempty"`
}

// ComplianceReport mirrors the compliance record the API returns. Raw
// per-domain arrays hold normalized source rows verbatim.
type ComplianceReport struct {
	Address string `json:"address"`
	BIN     string `json:"bin"`
	BBL     string `json:"bbl"`
	Borough string `json:"borough"`
	Block   string `json:"block"`
	Lot     string `json:"lot"`
	ZipCode string `json:"zip_code"`

	HPDViolationsTotal      int `json:"hpd_violations_total"`
	HPDViolationsActive     int `json:"hpd_violations_active"`
	DOBViolationsTotal      int `json:"dob_violations_total"`
	DOBViolationsActive     int `json:"dob_violations_active"`
	ElevatorDevicesTotal    int `json:"elevator_devices_total"`
	ElevatorDevicesActive   int `json:"elevator_devices_active"`
	BoilerDevicesTotal      int `json:"boiler_devices_total"`
	ElectricalPermitsTotal  int `json:"electrical_permits_total"`
	ElectricalPermitsActive int `json:"electrical_permits_active"`
	CertificatesTotal       int `json:"certificates_of_occupancy_total"`
	Complaints311Total      int `json:"complaints_311_total"`
	FDNYViolationsTotal     int `json:"fdny_violations_total"`

	HPDComplianceScore        float64 `json:"hpd_compliance_score"`
	DOBComplianceScore        float64 `json:"dob_compliance_score"`
	ElevatorComplianceScore   float64 `json:"elevator_compliance_score"`
	ElectricalComplianceScore float64 `json:"electrical_compliance_score"`
	OverallComplianceScore    float64 `json:"overall_compliance_score"`

	RiskLevel string `json:"risk_level"`

	HPDViolations           []map[string]interface{} `json:"hpd_violations"`
	DOBViolations           []map[string]interface{} `json:"dob_violations"`
	ElevatorDevices         []Device                 `json:"elevator_devices"`
	BoilerDevices           []Device                 `json:"boiler_devices"`
	ElectricalPermits       []Device                 `json:"electrical_permits"`
	CertificatesOfOccupancy []map[string]interface{} `json:"certificates_of_occupancy"`
	Complaints311           []map[string]interface{} `json:"complaints_311"`
	FDNYViolations          []map[string]interface{} `json:"fdny_violations"`

	ActionPlan []Action `json:"action_plan"`

	SearchStrategies map[string]string `json:"search_strategies"`

	ProcessedAt time.Time `json:"processed_at"`
	DataSources string    `json:"data_sources"`
}

// Device is one piece of building equipment with its inspection history,
// newest inspection first.
type Device struct {
	DeviceID             string                   `json:"device_id"`
	DeviceName           string                   `json:"device_name,omitempty"`
	DeviceType           string                   `json:"device_type,omitempty"`
	DeviceStatus         string                   `json:"device_status,omitempty"`
	DefectsExist         string                   `json:"defects_exist,omitempty"`
	FilingStatus         string                   `json:"filing_status,omitempty"`
	HouseNumber          string                   `json:"house_number,omitempty"`
	StreetName           string                   `json:"street_name,omitempty"`
	BIN                  string                   `json:"bin,omitempty"`
	LatestInspectionDate string                   `json:"latest_inspection_date,omitempty"`
	Inspections          []map[string]interface{} `json:"inspections"`
	TotalInspections     int                      `json:"total_inspections"`
}

// Action is one remediation item in the report's action plan.
type Action struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	Source           string `json:"source"`
	Priority         string `json:"priority"`
	Category         string `json:"category"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	ViolationDate    string `json:"violation_date"`
	EstimatedCostMin int    `json:"estimated_cost_min"`
	EstimatedCostMax int    `json:"estimated_cost_max"`
	Deadline         string `json:"deadline"`
	RegulatoryImpact string `json:"regulatory_impact"`
}

// PropertyIdentifiers is the response of POST /api/v1/search.
type PropertyIdentifiers struct {
	Address string `json:"address"`
	BIN     string `json:"bin"`
	BBL     string `json:"bbl"`
	Borough string `json:"borough"`
	Block   string `json:"block"`
	Lot     string `json:"lot"`
	ZipCode string `json:"zip_code"`
}

// SyncRequest is the body of POST /api/v1/sync. The Sync* pointers
// default to true on the server; set them only to opt a table out.
type SyncRequest struct {
	PropertyID     string `json:"property_id"`
	Address        string `json:"address"`
	Borough        string `json:"borough,omitempty"`
	SyncViolations *bool  `json:"sync_violations,omitempty"`
	SyncEquipment  *bool  `json:"sync_equipment,omitempty"`
	SyncComplaints *bool  `json:"sync_complaints,omitempty"`
	MaxRecords     int    `json:"max_records,omitempty"`
}

// TableSync counts one table's persistence pass.
type TableSync struct {
	Synced  int `json:"synced"`
	Skipped int `json:"skipped"`
}

// SyncResult reports one persistence pass. Results keys are the table
// aliases: dob_violations, hpd_violations, elevators, boilers,
// complaints_311.
type SyncResult struct {
	PropertyID    string               `json:"property_id"`
	Address       string               `json:"address"`
	NYCPropertyID string               `json:"nyc_property_id,omitempty"`
	BIN           string               `json:"bin,omitempty"`
	BBL           string               `json:"bbl,omitempty"`
	StartedAt     time.Time            `json:"sync_started_at"`
	CompletedAt   time.Time            `json:"sync_completed_at"`
	Results       map[string]TableSync `json:"results"`
	Summary       *ComplianceSummary   `json:"compliance,omitempty"`
	Errors        []string             `json:"errors"`
	Success       bool                 `json:"success"`
}

// ComplianceSummary is the stored per-property rollup row.
type ComplianceSummary struct {
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

// StoredProperty is the parent property row in a DataPackage.
type StoredProperty struct {
	ID           string `json:"id"`
	PropertyID   string `json:"property_id"`
	BIN          string `json:"bin,omitempty"`
	BBL          string `json:"bbl,omitempty"`
	Address      string `json:"address"`
	LastSyncedAt string `json:"last_synced_at,omitempty"`
}

// DataPackage is the stored view of one property returned by
// GetPropertyCompliance. Child rows keep their raw JSON shape.
type DataPackage struct {
	Property      *StoredProperty          `json:"property"`
	Summary       *ComplianceSummary       `json:"compliance_summary"`
	DOBViolations []map[string]interface{} `json:"dob_violations"`
	HPDViolations []map[string]interface{} `json:"hpd_violations"`
	Elevators     []map[string]interface{} `json:"elevators"`
	Boilers       []map[string]interface{} `json:"boilers"`
	Complaints311 []map[string]interface{} `json:"complaints_311"`
}

// WebhookRequest is the body of POST /api/v1/webhooks.
type WebhookRequest struct {
	// URL receives signed event POSTs (required)
	URL string `json:"url"`

	// Events to deliver; empty subscribes to every event type
	Events []string `json:"events,omitempty"`

	// Secret signs deliveries (X-Propply-Signature). Optional but
	// strongly recommended.
	Secret string `json:"secret,omitempty"`
}

// Webhook is a registered subscription as the API returns it. The
// signing secret is never echoed back.
type Webhook struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	FailCount int       `json:"fail_count"`
}

// WebhookEvent is the payload delivered to webhook receivers.
type WebhookEvent struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	RunID     string                 `json:"run_id"`
	Data      map[string]interface{} `json:"data"`
}
