// Package compliance orchestrates a full property-compliance run: resolve
// identifiers, fan out across the NYC datasets, normalize and group what
// comes back, score it, and assemble the report record.
package compliance

import (
	"time"

	"github.com/propply/backend/internal/core"
	"github.com/propply/backend/internal/devices"
	"github.com/propply/backend/internal/scoring"
)

// Data-source provenance values carried on every record.
const (
	DataSourcesDefault = "NYC_Open_Data,NYC_Planning_GeoSearch"
	DataSourcesFailed  = "FAILED"
	DataSourcesPartial = "PARTIAL"
)

// ComplianceRecord is the output of one run. Raw per-domain arrays hold
// normalized rows verbatim; scores are numbers in [0,100]; every field is
// always present in the JSON form.
type ComplianceRecord struct {
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

	RiskLevel scoring.RiskLevel `json:"risk_level"`

	HPDViolations           []map[string]interface{} `json:"hpd_violations"`
	DOBViolations           []map[string]interface{} `json:"dob_violations"`
	ElevatorDevices         []devices.DeviceRecord   `json:"elevator_devices"`
	BoilerDevices           []devices.DeviceRecord   `json:"boiler_devices"`
	ElectricalPermits       []devices.DeviceRecord   `json:"electrical_permits"`
	CertificatesOfOccupancy []map[string]interface{} `json:"certificates_of_occupancy"`
	Complaints311           []map[string]interface{} `json:"complaints_311"`
	FDNYViolations          []map[string]interface{} `json:"fdny_violations"`

	ActionPlan []Action `json:"action_plan"`

	SearchStrategies map[string]string `json:"search_strategies"`

	ProcessedAt time.Time `json:"processed_at"`
	DataSources string    `json:"data_sources"`
}

// NewEmptyRecord builds the record for a property that could not be
// resolved or collected: zero counts, default scores, empty arrays so the
// JSON form carries [] rather than null.
func NewEmptyRecord(address string, now time.Time) *ComplianceRecord {
	return &ComplianceRecord{
		Address: address,

		HPDComplianceScore:        100,
		DOBComplianceScore:        100,
		ElevatorComplianceScore:   100,
		ElectricalComplianceScore: 100,
		OverallComplianceScore:    100,
		RiskLevel:                 scoring.RiskLow,

		HPDViolations:           []map[string]interface{}{},
		DOBViolations:           []map[string]interface{}{},
		ElevatorDevices:         []devices.DeviceRecord{},
		BoilerDevices:           []devices.DeviceRecord{},
		ElectricalPermits:       []devices.DeviceRecord{},
		CertificatesOfOccupancy: []map[string]interface{}{},
		Complaints311:           []map[string]interface{}{},
		FDNYViolations:          []map[string]interface{}{},

		ActionPlan:       []Action{},
		SearchStrategies: map[string]string{},

		ProcessedAt: now,
		DataSources: DataSourcesFailed,
	}
}

// SetIdentifiers copies the resolved identifiers onto the record.
func (r *ComplianceRecord) SetIdentifiers(ids *core.PropertyIdentifiers) {
	if ids == nil {
		return
	}
	r.Address = ids.Address
	r.BIN = ids.BIN
	r.BBL = ids.BBL
	r.Borough = ids.Borough
	r.Block = ids.Block
	r.Lot = ids.Lot
	r.ZipCode = ids.ZipCode
}

// Identifiers reconstructs the identifier view of the record.
func (r *ComplianceRecord) Identifiers() *core.PropertyIdentifiers {
	return &core.PropertyIdentifiers{
		Address: r.Address,
		BIN:     r.BIN,
		BBL:     r.BBL,
		Borough: r.Borough,
		Block:   r.Block,
		Lot:     r.Lot,
		ZipCode: r.ZipCode,
	}
}
