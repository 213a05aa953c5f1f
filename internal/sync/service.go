// Package sync persists the output of a compliance run into Supabase.
// Child tables are written idempotently (violations and complaints are
// insert-if-absent, equipment rows are update-or-insert); the summary row
// is written last and acts as the commit point for the run.
package sync

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/propply/backend/internal/compliance"
	"github.com/propply/backend/internal/core"
	"github.com/propply/backend/internal/database"
	"github.com/propply/backend/internal/devices"
	"github.com/propply/backend/internal/normalize"
	"github.com/propply/backend/internal/scoring"
)

// Store is the persistence surface the service needs. *database.SupabaseClient
// satisfies it; tests swap in an in-memory fake.
type Store interface {
	GetProperty(ctx context.Context, propertyID, bin string) (*database.NYCProperty, error)
	CreateProperty(ctx context.Context, prop *database.NYCProperty) (*database.NYCProperty, error)
	TouchPropertySync(ctx context.Context, nycPropertyID string, syncedAt time.Time) error

	HasDOBViolation(ctx context.Context, violationID string) (bool, error)
	InsertDOBViolation(ctx context.Context, row *database.DOBViolationRow) error
	ListDOBViolations(ctx context.Context, nycPropertyID string) ([]database.DOBViolationRow, error)

	HasHPDViolation(ctx context.Context, violationID string) (bool, error)
	InsertHPDViolation(ctx context.Context, row *database.HPDViolationRow) error
	ListHPDViolations(ctx context.Context, nycPropertyID string) ([]database.HPDViolationRow, error)

	GetElevatorInspection(ctx context.Context, nycPropertyID, deviceNumber string) (*database.ElevatorInspectionRow, error)
	InsertElevatorInspection(ctx context.Context, row *database.ElevatorInspectionRow) error
	UpdateElevatorInspection(ctx context.Context, id string, row *database.ElevatorInspectionRow) error
	ListElevatorInspections(ctx context.Context, nycPropertyID string) ([]database.ElevatorInspectionRow, error)

	GetBoilerInspection(ctx context.Context, nycPropertyID, deviceNumber string) (*database.BoilerInspectionRow, error)
	InsertBoilerInspection(ctx context.Context, row *database.BoilerInspectionRow) error
	UpdateBoilerInspection(ctx context.Context, id string, row *database.BoilerInspectionRow) error
	ListBoilerInspections(ctx context.Context, nycPropertyID string) ([]database.BoilerInspectionRow, error)

	HasComplaint311(ctx context.Context, uniqueKey string) (bool, error)
	InsertComplaint311(ctx context.Context, row *database.Complaint311Row) error
	ListComplaints311(ctx context.Context, nycPropertyID string, limit int) ([]database.Complaint311Row, error)

	GetComplianceSummary(ctx context.Context, nycPropertyID string) (*database.ComplianceSummaryRow, error)
	InsertComplianceSummary(ctx context.Context, row *database.ComplianceSummaryRow) error
	UpdateComplianceSummary(ctx context.Context, id string, row *database.ComplianceSummaryRow) error
}

// SyncOptions selects which child tables a sync writes and caps how many
// rows per table are considered.
type SyncOptions struct {
	Violations bool
	Equipment  bool
	Complaints bool
	MaxRecords int
}

// DefaultSyncOptions syncs everything, capped at 500 rows per table.
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		Violations: true,
		Equipment:  true,
		Complaints: true,
		MaxRecords: 500,
	}
}

// TableSync counts the outcome for one child table.
type TableSync struct {
	Synced  int `json:"synced"`
	Skipped int `json:"skipped"`
}

// SyncResult reports one persistence pass. Results keys are the table
// aliases: dob_violations, hpd_violations, elevators, boilers, complaints_311.
type SyncResult struct {
	PropertyID    string                         `json:"property_id"`
	Address       string                         `json:"address"`
	NYCPropertyID string                         `json:"nyc_property_id,omitempty"`
	BIN           string                         `json:"bin,omitempty"`
	BBL           string                         `json:"bbl,omitempty"`
	StartedAt     time.Time                      `json:"sync_started_at"`
	CompletedAt   time.Time                      `json:"sync_completed_at"`
	Results       map[string]TableSync           `json:"results"`
	Summary       *database.ComplianceSummaryRow `json:"compliance,omitempty"`
	Errors        []string                       `json:"errors"`
	Success       bool                           `json:"success"`
}

// DataPackage is the full stored view of one property, shaped for clients.
type DataPackage struct {
	Property      *database.NYCProperty            `json:"property"`
	Summary       *database.ComplianceSummaryRow   `json:"compliance_summary"`
	DOBViolations []database.DOBViolationRow       `json:"dob_violations"`
	HPDViolations []database.HPDViolationRow       `json:"hpd_violations"`
	Elevators     []database.ElevatorInspectionRow `json:"elevators"`
	Boilers       []database.BoilerInspectionRow   `json:"boilers"`
	Complaints311 []database.Complaint311Row       `json:"complaints_311"`
}

// Service writes compliance records into the store and reads them back.
type Service struct {
	store  Store
	logger *log.Logger
}

// NewService creates a sync service over the given store.
func NewService(store Store) *Service {
	return &Service{
		store:  store,
		logger: log.New(log.Writer(), "[SYNC] ", log.LstdFlags),
	}
}

// SyncRecord persists one compliance record for the given application
// property ID. Individual row failures are skipped and counted; a failure
// to establish the property record or to write the summary aborts the sync
// and is returned as an error alongside the partial result.
func (s *Service) SyncRecord(ctx context.Context, propertyID string, rec *compliance.ComplianceRecord, opts SyncOptions) (*SyncResult, error) {
	now := time.Now()
	res := &SyncResult{
		PropertyID: propertyID,
		Address:    rec.Address,
		StartedAt:  now,
		Results:    map[string]TableSync{},
		Errors:     []string{},
	}

	s.logger.Printf("Starting NYC sync for property %s: %s", propertyID, rec.Address)

	prop, err := s.ensureProperty(ctx, propertyID, rec)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, core.NewError(core.KindDB, "sync.SyncRecord", err)
	}
	res.NYCPropertyID = prop.ID
	res.BIN = prop.BIN
	res.BBL = prop.BBL

	if opts.Violations {
		res.Results["dob_violations"] = s.syncDOBViolations(ctx, prop.ID, rec.DOBViolations, opts.MaxRecords)
		res.Results["hpd_violations"] = s.syncHPDViolations(ctx, prop.ID, rec.HPDViolations, opts.MaxRecords)
	}
	if opts.Equipment {
		res.Results["elevators"] = s.syncElevators(ctx, prop.ID, rec.ElevatorDevices, opts.MaxRecords)
		res.Results["boilers"] = s.syncBoilers(ctx, prop.ID, rec.BoilerDevices, opts.MaxRecords)
	}
	if opts.Complaints {
		res.Results["complaints_311"] = s.syncComplaints311(ctx, prop.ID, rec.Complaints311, opts.MaxRecords)
	}

	summary := buildSummary(prop.ID, propertyID, rec, now)
	if err := s.saveSummary(ctx, summary); err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, core.NewError(core.KindDB, "sync.SyncRecord", fmt.Errorf("failed to store compliance summary: %w", err))
	}
	res.Summary = summary
	s.logger.Printf("✅ Compliance Summary: Score %d, Risk %s", summary.ComplianceScore, summary.RiskLevel)

	if err := s.store.TouchPropertySync(ctx, prop.ID, time.Now()); err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, core.NewError(core.KindDB, "sync.SyncRecord", fmt.Errorf("failed to stamp last_synced_at: %w", err))
	}

	res.CompletedAt = time.Now()
	res.Success = true
	s.logger.Printf("✅ NYC sync completed for %s", rec.Address)
	return res, nil
}

// GetPropertyData assembles the stored compliance package for a property.
// Returns a KindNotFound error when the property has never been synced.
func (s *Service) GetPropertyData(ctx context.Context, propertyID string) (*DataPackage, error) {
	prop, err := s.store.GetProperty(ctx, propertyID, "")
	if err != nil {
		return nil, core.NewError(core.KindDB, "sync.GetPropertyData", err)
	}
	if prop == nil {
		return nil, core.Errorf(core.KindNotFound, "sync.GetPropertyData", "nyc property not found: %s", propertyID)
	}

	pkg := &DataPackage{Property: prop}

	if pkg.Summary, err = s.store.GetComplianceSummary(ctx, prop.ID); err != nil {
		return nil, core.NewError(core.KindDB, "sync.GetPropertyData", err)
	}
	if pkg.DOBViolations, err = s.store.ListDOBViolations(ctx, prop.ID); err != nil {
		return nil, core.NewError(core.KindDB, "sync.GetPropertyData", err)
	}
	if pkg.HPDViolations, err = s.store.ListHPDViolations(ctx, prop.ID); err != nil {
		return nil, core.NewError(core.KindDB, "sync.GetPropertyData", err)
	}
	if pkg.Elevators, err = s.store.ListElevatorInspections(ctx, prop.ID); err != nil {
		return nil, core.NewError(core.KindDB, "sync.GetPropertyData", err)
	}
	if pkg.Boilers, err = s.store.ListBoilerInspections(ctx, prop.ID); err != nil {
		return nil, core.NewError(core.KindDB, "sync.GetPropertyData", err)
	}
	if pkg.Complaints311, err = s.store.ListComplaints311(ctx, prop.ID, 50); err != nil {
		return nil, core.NewError(core.KindDB, "sync.GetPropertyData", err)
	}
	return pkg, nil
}

// ensureProperty finds the parent record for a property, creating it from
// the record's resolved identifiers on first sight.
func (s *Service) ensureProperty(ctx context.Context, propertyID string, rec *compliance.ComplianceRecord) (*database.NYCProperty, error) {
	existing, err := s.store.GetProperty(ctx, propertyID, rec.BIN)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Printf("Found existing NYC property: %s", existing.BIN)
		return existing, nil
	}

	now := time.Now().Format(time.RFC3339)
	created, err := s.store.CreateProperty(ctx, &database.NYCProperty{
		PropertyID: propertyID,
		BIN:        rec.BIN,
		BBL:        rec.BBL,
		Address:    rec.Address,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Println("✅ Created NYC property record")
	return created, nil
}

func (s *Service) syncDOBViolations(ctx context.Context, nycPropertyID string, rows []map[string]interface{}, max int) TableSync {
	var ts TableSync
	if len(rows) == 0 {
		s.logger.Println("No DOB violations to sync")
		return ts
	}
	rows = capRows(rows, max)
	now := time.Now().Format(time.RFC3339)

	for _, row := range rows {
		violationID := normalize.FirstString(row, "isn_dob_bis_viol", "isndobbisviol")
		if violationID == "" {
			ts.Skipped++
			continue
		}
		exists, err := s.store.HasDOBViolation(ctx, violationID)
		if err != nil {
			s.logger.Printf("⚠️ Error syncing DOB violation %s: %v", violationID, err)
			ts.Skipped++
			continue
		}
		if exists {
			ts.Skipped++
			continue
		}
		insert := &database.DOBViolationRow{
			NYCPropertyID:     nycPropertyID,
			ViolationID:       violationID,
			BIN:               normalize.String(row, "bin"),
			IssueDate:         nullableDate(row["issue_date"]),
			ViolationType:     normalize.String(row, "violation_type"),
			ViolationTypeCode: normalize.String(row, "violation_type_code"),
			ViolationCategory: normalize.String(row, "violation_category"),
			DispositionDate:   nullableDate(row["disposition_date"]),
			CreatedAt:         now,
		}
		if err := s.store.InsertDOBViolation(ctx, insert); err != nil {
			s.logger.Printf("⚠️ Error syncing DOB violation %s: %v", violationID, err)
			ts.Skipped++
			continue
		}
		ts.Synced++
	}
	s.logger.Printf("✅ DOB Violations: %d synced, %d skipped", ts.Synced, ts.Skipped)
	return ts
}

func (s *Service) syncHPDViolations(ctx context.Context, nycPropertyID string, rows []map[string]interface{}, max int) TableSync {
	var ts TableSync
	if len(rows) == 0 {
		s.logger.Println("No HPD violations to sync")
		return ts
	}
	rows = capRows(rows, max)
	now := time.Now().Format(time.RFC3339)

	for _, row := range rows {
		violationID := normalize.String(row, "violationid")
		if violationID == "" {
			ts.Skipped++
			continue
		}
		exists, err := s.store.HasHPDViolation(ctx, violationID)
		if err != nil {
			s.logger.Printf("⚠️ Error syncing HPD violation %s: %v", violationID, err)
			ts.Skipped++
			continue
		}
		if exists {
			ts.Skipped++
			continue
		}
		insert := &database.HPDViolationRow{
			NYCPropertyID:   nycPropertyID,
			ViolationID:     violationID,
			BBL:             normalize.String(row, "bbl"),
			InspectionDate:  nullableDate(row["inspectiondate"]),
			ViolationClass:  normalize.String(row, "class"),
			ViolationStatus: normalize.String(row, "currentstatus"),
			CreatedAt:       now,
		}
		if err := s.store.InsertHPDViolation(ctx, insert); err != nil {
			s.logger.Printf("⚠️ Error syncing HPD violation %s: %v", violationID, err)
			ts.Skipped++
			continue
		}
		ts.Synced++
	}
	s.logger.Printf("✅ HPD Violations: %d synced, %d skipped", ts.Synced, ts.Skipped)
	return ts
}

func (s *Service) syncElevators(ctx context.Context, nycPropertyID string, devs []devices.DeviceRecord, max int) TableSync {
	var ts TableSync
	if len(devs) == 0 {
		s.logger.Println("No elevator inspections to sync")
		return ts
	}
	devs = capDevices(devs, max)
	now := time.Now().Format(time.RFC3339)

	for _, dev := range devs {
		if dev.DeviceID == "" {
			ts.Skipped++
			continue
		}
		existing, err := s.store.GetElevatorInspection(ctx, nycPropertyID, dev.DeviceID)
		if err != nil {
			s.logger.Printf("⚠️ Error syncing elevator inspection %s: %v", dev.DeviceID, err)
			ts.Skipped++
			continue
		}
		row := &database.ElevatorInspectionRow{
			NYCPropertyID:      nycPropertyID,
			DeviceNumber:       dev.DeviceID,
			BIN:                dev.BIN,
			DeviceType:         dev.DeviceType,
			LastInspectionDate: nullableDate(dev.LatestInspectionDate),
			DeviceStatus:       dev.DeviceStatus,
			UpdatedAt:          now,
		}
		if existing != nil {
			err = s.store.UpdateElevatorInspection(ctx, existing.ID, row)
		} else {
			row.CreatedAt = now
			err = s.store.InsertElevatorInspection(ctx, row)
		}
		if err != nil {
			s.logger.Printf("⚠️ Error syncing elevator inspection %s: %v", dev.DeviceID, err)
			ts.Skipped++
			continue
		}
		ts.Synced++
	}
	s.logger.Printf("✅ Elevator Inspections: %d synced, %d skipped", ts.Synced, ts.Skipped)
	return ts
}

func (s *Service) syncBoilers(ctx context.Context, nycPropertyID string, devs []devices.DeviceRecord, max int) TableSync {
	var ts TableSync
	if len(devs) == 0 {
		s.logger.Println("No boiler inspections to sync")
		return ts
	}
	devs = capDevices(devs, max)
	now := time.Now().Format(time.RFC3339)

	for _, dev := range devs {
		if dev.DeviceID == "" {
			ts.Skipped++
			continue
		}
		existing, err := s.store.GetBoilerInspection(ctx, nycPropertyID, dev.DeviceID)
		if err != nil {
			s.logger.Printf("⚠️ Error syncing boiler inspection %s: %v", dev.DeviceID, err)
			ts.Skipped++
			continue
		}
		row := &database.BoilerInspectionRow{
			NYCPropertyID:  nycPropertyID,
			DeviceNumber:   dev.DeviceID,
			BIN:            dev.BIN,
			InspectionDate: nullableDate(dev.LatestInspectionDate),
			Status:         dev.DeviceStatus,
			UpdatedAt:      now,
		}
		if existing != nil {
			err = s.store.UpdateBoilerInspection(ctx, existing.ID, row)
		} else {
			row.CreatedAt = now
			err = s.store.InsertBoilerInspection(ctx, row)
		}
		if err != nil {
			s.logger.Printf("⚠️ Error syncing boiler inspection %s: %v", dev.DeviceID, err)
			ts.Skipped++
			continue
		}
		ts.Synced++
	}
	s.logger.Printf("✅ Boiler Inspections: %d synced, %d skipped", ts.Synced, ts.Skipped)
	return ts
}

func (s *Service) syncComplaints311(ctx context.Context, nycPropertyID string, rows []map[string]interface{}, max int) TableSync {
	var ts TableSync
	if len(rows) == 0 {
		s.logger.Println("No 311 complaints to sync")
		return ts
	}
	rows = capRows(rows, max)
	now := time.Now().Format(time.RFC3339)

	for _, row := range rows {
		uniqueKey := normalize.String(row, "unique_key")
		if uniqueKey == "" {
			ts.Skipped++
			continue
		}
		exists, err := s.store.HasComplaint311(ctx, uniqueKey)
		if err != nil {
			s.logger.Printf("⚠️ Error syncing 311 complaint %s: %v", uniqueKey, err)
			ts.Skipped++
			continue
		}
		if exists {
			ts.Skipped++
			continue
		}
		insert := &database.Complaint311Row{
			NYCPropertyID: nycPropertyID,
			UniqueKey:     uniqueKey,
			CreatedDate:   nullableDate(row["created_date"]),
			ComplaintType: normalize.String(row, "complaint_type"),
			Descriptor:    normalize.String(row, "descriptor"),
			Status:        normalize.String(row, "status"),
			CreatedAt:     now,
		}
		if err := s.store.InsertComplaint311(ctx, insert); err != nil {
			s.logger.Printf("⚠️ Error syncing 311 complaint %s: %v", uniqueKey, err)
			ts.Skipped++
			continue
		}
		ts.Synced++
	}
	s.logger.Printf("✅ 311 Complaints: %d synced, %d skipped", ts.Synced, ts.Skipped)
	return ts
}

// saveSummary rewrites the single summary row for a property.
func (s *Service) saveSummary(ctx context.Context, row *database.ComplianceSummaryRow) error {
	existing, err := s.store.GetComplianceSummary(ctx, row.NYCPropertyID)
	if err != nil {
		return err
	}
	if existing != nil {
		return s.store.UpdateComplianceSummary(ctx, existing.ID, row)
	}
	return s.store.InsertComplianceSummary(ctx, row)
}

func buildSummary(nycPropertyID, propertyID string, rec *compliance.ComplianceRecord, now time.Time) *database.ComplianceSummaryRow {
	critical := 0
	for _, action := range rec.ActionPlan {
		if action.Priority == scoring.RiskCritical {
			critical++
		}
	}
	return &database.ComplianceSummaryRow{
		NYCPropertyID:   nycPropertyID,
		PropertyID:      propertyID,
		ComplianceScore: int(math.Round(rec.OverallComplianceScore)),
		RiskLevel:       string(rec.RiskLevel),
		TotalViolations: rec.HPDViolationsTotal + rec.DOBViolationsTotal,
		OpenViolations:  rec.HPDViolationsActive + rec.DOBViolationsActive,
		CriticalIssues:  critical,
		EquipmentStatus: equipmentStatus(rec),
		LastCalculated:  now.Format(time.RFC3339),
	}
}

// equipmentStatus collapses the device picture into the summary column.
func equipmentStatus(rec *compliance.ComplianceRecord) string {
	if rec.ElevatorDevicesTotal+rec.BoilerDevicesTotal == 0 {
		return "UNKNOWN"
	}
	if rec.ElevatorDevicesActive < rec.ElevatorDevicesTotal {
		return "ISSUES_DETECTED"
	}
	return "OPERATIONAL"
}

func nullableDate(v interface{}) *string {
	if s := normalize.CanonicalDate(v); s != "" {
		return &s
	}
	return nil
}

func capRows(rows []map[string]interface{}, max int) []map[string]interface{} {
	if max > 0 && len(rows) > max {
		return rows[:max]
	}
	return rows
}

func capDevices(devs []devices.DeviceRecord, max int) []devices.DeviceRecord {
	if max > 0 && len(devs) > max {
		return devs[:max]
	}
	return devs
}
