package database

import (
	"context"
	"fmt"
	"os"
	"time"

	supabase "github.com/supabase-community/supabase-go"
)

// ============================================================================
// SUPABASE CLIENT - CRUD Operations for the nyc_* Tables
// ============================================================================

// SupabaseClient wraps the Supabase Go client with all Propply operations
type SupabaseClient struct {
	client *supabase.Client
}

// NewSupabaseClient creates a new Supabase client
func NewSupabaseClient() (*SupabaseClient, error) {
	url := os.Getenv("SUPABASE_URL")
	key := os.Getenv("SUPABASE_SERVICE_KEY")

	if url == "" || key == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set")
	}

	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}

	return &SupabaseClient{client: client}, nil
}

// idRow is the minimal projection used for existence checks.
type idRow struct {
	ID string `json:"id"`
}

// ============================================================================
// PROPERTY OPERATIONS
// ============================================================================

// GetProperty retrieves a NYC property record by application property ID.
// When bin is non-empty the match is narrowed to that BIN. Returns nil
// (not error) if no record exists.
func (sc *SupabaseClient) GetProperty(ctx context.Context, propertyID, bin string) (*NYCProperty, error) {
	query := sc.client.From("nyc_properties").
		Select("*", "", false).
		Eq("property_id", propertyID)
	if bin != "" {
		query = query.Eq("bin", bin)
	}

	var props []NYCProperty
	_, err := query.ExecuteTo(&props)
	if err != nil {
		return nil, fmt.Errorf("failed to get nyc property: %w", err)
	}
	if len(props) == 0 {
		return nil, nil
	}
	return &props[0], nil
}

// CreateProperty inserts a new NYC property record and returns the stored
// row including the generated UUID.
func (sc *SupabaseClient) CreateProperty(ctx context.Context, prop *NYCProperty) (*NYCProperty, error) {
	var result []NYCProperty
	_, err := sc.client.From("nyc_properties").
		Insert(prop, false, "", "", "").
		ExecuteTo(&result)
	if err != nil {
		return nil, fmt.Errorf("failed to create nyc property: %w", err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("insert into nyc_properties returned no rows")
	}
	return &result[0], nil
}

// TouchPropertySync stamps last_synced_at after a completed sync.
func (sc *SupabaseClient) TouchPropertySync(ctx context.Context, nycPropertyID string, syncedAt time.Time) error {
	update := map[string]interface{}{
		"last_synced_at": syncedAt.Format(time.RFC3339),
	}
	var result []NYCProperty
	_, err := sc.client.From("nyc_properties").
		Update(update, "", "").
		Eq("id", nycPropertyID).
		ExecuteTo(&result)
	return err
}

// ListStaleProperties returns properties whose last sync predates cutoff,
// oldest first. Used by the resync scheduler to pick its next batch.
func (sc *SupabaseClient) ListStaleProperties(ctx context.Context, cutoff time.Time, limit int) ([]NYCProperty, error) {
	var props []NYCProperty
	_, err := sc.client.From("nyc_properties").
		Select("*", "", false).
		Lt("last_synced_at", cutoff.Format(time.RFC3339)).
		Order("last_synced_at", nil).
		Limit(limit, "").
		ExecuteTo(&props)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale properties: %w", err)
	}
	return props, nil
}

// ============================================================================
// DOB VIOLATION OPERATIONS
// ============================================================================

// HasDOBViolation reports whether a DOB violation ID is already stored.
// The check is global: violation IDs are unique across properties.
func (sc *SupabaseClient) HasDOBViolation(ctx context.Context, violationID string) (bool, error) {
	var rows []idRow
	_, err := sc.client.From("nyc_dob_violations").
		Select("id", "", false).
		Eq("violation_id", violationID).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return false, fmt.Errorf("failed to check dob violation: %w", err)
	}
	return len(rows) > 0, nil
}

// InsertDOBViolation inserts a new DOB violation row
func (sc *SupabaseClient) InsertDOBViolation(ctx context.Context, row *DOBViolationRow) error {
	var result []DOBViolationRow
	_, err := sc.client.From("nyc_dob_violations").
		Insert(row, false, "", "", "").
		ExecuteTo(&result)
	return err
}

// ListDOBViolations retrieves all stored DOB violations for a property
func (sc *SupabaseClient) ListDOBViolations(ctx context.Context, nycPropertyID string) ([]DOBViolationRow, error) {
	var rows []DOBViolationRow
	_, err := sc.client.From("nyc_dob_violations").
		Select("*", "", false).
		Eq("nyc_property_id", nycPropertyID).
		ExecuteTo(&rows)
	return rows, err
}

// ============================================================================
// HPD VIOLATION OPERATIONS
// ============================================================================

// HasHPDViolation reports whether an HPD violation ID is already stored.
func (sc *SupabaseClient) HasHPDViolation(ctx context.Context, violationID string) (bool, error) {
	var rows []idRow
	_, err := sc.client.From("nyc_hpd_violations").
		Select("id", "", false).
		Eq("violation_id", violationID).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return false, fmt.Errorf("failed to check hpd violation: %w", err)
	}
	return len(rows) > 0, nil
}

// InsertHPDViolation inserts a new HPD violation row
func (sc *SupabaseClient) InsertHPDViolation(ctx context.Context, row *HPDViolationRow) error {
	var result []HPDViolationRow
	_, err := sc.client.From("nyc_hpd_violations").
		Insert(row, false, "", "", "").
		ExecuteTo(&result)
	return err
}

// ListHPDViolations retrieves all stored HPD violations for a property
func (sc *SupabaseClient) ListHPDViolations(ctx context.Context, nycPropertyID string) ([]HPDViolationRow, error) {
	var rows []HPDViolationRow
	_, err := sc.client.From("nyc_hpd_violations").
		Select("*", "", false).
		Eq("nyc_property_id", nycPropertyID).
		ExecuteTo(&rows)
	return rows, err
}

// ============================================================================
// ELEVATOR INSPECTION OPERATIONS
// ============================================================================

// GetElevatorInspection retrieves the stored row for a device at a property.
// Returns nil (not error) if the device has not been stored yet.
func (sc *SupabaseClient) GetElevatorInspection(ctx context.Context, nycPropertyID, deviceNumber string) (*ElevatorInspectionRow, error) {
	var rows []ElevatorInspectionRow
	_, err := sc.client.From("nyc_elevator_inspections").
		Select("*", "", false).
		Eq("device_number", deviceNumber).
		Eq("nyc_property_id", nycPropertyID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get elevator inspection: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// InsertElevatorInspection inserts a new elevator device row
func (sc *SupabaseClient) InsertElevatorInspection(ctx context.Context, row *ElevatorInspectionRow) error {
	var result []ElevatorInspectionRow
	_, err := sc.client.From("nyc_elevator_inspections").
		Insert(row, false, "", "", "").
		ExecuteTo(&result)
	return err
}

// UpdateElevatorInspection overwrites an existing elevator device row
func (sc *SupabaseClient) UpdateElevatorInspection(ctx context.Context, id string, row *ElevatorInspectionRow) error {
	var result []ElevatorInspectionRow
	_, err := sc.client.From("nyc_elevator_inspections").
		Update(row, "", "").
		Eq("id", id).
		ExecuteTo(&result)
	return err
}

// ListElevatorInspections retrieves all stored elevator devices for a property
func (sc *SupabaseClient) ListElevatorInspections(ctx context.Context, nycPropertyID string) ([]ElevatorInspectionRow, error) {
	var rows []ElevatorInspectionRow
	_, err := sc.client.From("nyc_elevator_inspections").
		Select("*", "", false).
		Eq("nyc_property_id", nycPropertyID).
		ExecuteTo(&rows)
	return rows, err
}

// ============================================================================
// BOILER INSPECTION OPERATIONS
// ============================================================================

// GetBoilerInspection retrieves the stored row for a device at a property.
// Returns nil (not error) if the device has not been stored yet.
func (sc *SupabaseClient) GetBoilerInspection(ctx context.Context, nycPropertyID, deviceNumber string) (*BoilerInspectionRow, error) {
	var rows []BoilerInspectionRow
	_, err := sc.client.From("nyc_boiler_inspections").
		Select("*", "", false).
		Eq("device_number", deviceNumber).
		Eq("nyc_property_id", nycPropertyID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get boiler inspection: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// InsertBoilerInspection inserts a new boiler device row
func (sc *SupabaseClient) InsertBoilerInspection(ctx context.Context, row *BoilerInspectionRow) error {
	var result []BoilerInspectionRow
	_, err := sc.client.From("nyc_boiler_inspections").
		Insert(row, false, "", "", "").
		ExecuteTo(&result)
	return err
}

// UpdateBoilerInspection overwrites an existing boiler device row
func (sc *SupabaseClient) UpdateBoilerInspection(ctx context.Context, id string, row *BoilerInspectionRow) error {
	var result []BoilerInspectionRow
	_, err := sc.client.From("nyc_boiler_inspections").
		Update(row, "", "").
		Eq("id", id).
		ExecuteTo(&result)
	return err
}

// ListBoilerInspections retrieves all stored boiler devices for a property
func (sc *SupabaseClient) ListBoilerInspections(ctx context.Context, nycPropertyID string) ([]BoilerInspectionRow, error) {
	var rows []BoilerInspectionRow
	_, err := sc.client.From("nyc_boiler_inspections").
		Select("*", "", false).
		Eq("nyc_property_id", nycPropertyID).
		ExecuteTo(&rows)
	return rows, err
}

// ============================================================================
// 311 COMPLAINT OPERATIONS
// ============================================================================

// HasComplaint311 reports whether a 311 complaint key is already stored.
func (sc *SupabaseClient) HasComplaint311(ctx context.Context, uniqueKey string) (bool, error) {
	var rows []idRow
	_, err := sc.client.From("nyc_311_complaints").
		Select("id", "", false).
		Eq("unique_key", uniqueKey).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return false, fmt.Errorf("failed to check 311 complaint: %w", err)
	}
	return len(rows) > 0, nil
}

// InsertComplaint311 inserts a new 311 complaint row
func (sc *SupabaseClient) InsertComplaint311(ctx context.Context, row *Complaint311Row) error {
	var result []Complaint311Row
	_, err := sc.client.From("nyc_311_complaints").
		Insert(row, false, "", "", "").
		ExecuteTo(&result)
	return err
}

// ListComplaints311 retrieves stored 311 complaints for a property,
// newest first.
func (sc *SupabaseClient) ListComplaints311(ctx context.Context, nycPropertyID string, limit int) ([]Complaint311Row, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []Complaint311Row
	_, err := sc.client.From("nyc_311_complaints").
		Select("*", "", false).
		Eq("nyc_property_id", nycPropertyID).
		Order("created_date", nil).
		Limit(limit, "").
		ExecuteTo(&rows)
	return rows, err
}

// ============================================================================
// COMPLIANCE SUMMARY OPERATIONS
// ============================================================================

// GetComplianceSummary retrieves the stored summary for a property.
// Returns nil (not error) if no summary has been calculated yet.
func (sc *SupabaseClient) GetComplianceSummary(ctx context.Context, nycPropertyID string) (*ComplianceSummaryRow, error) {
	var rows []ComplianceSummaryRow
	_, err := sc.client.From("nyc_compliance_summary").
		Select("*", "", false).
		Eq("nyc_property_id", nycPropertyID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get compliance summary: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// InsertComplianceSummary inserts the first summary row for a property
func (sc *SupabaseClient) InsertComplianceSummary(ctx context.Context, row *ComplianceSummaryRow) error {
	var result []ComplianceSummaryRow
	_, err := sc.client.From("nyc_compliance_summary").
		Insert(row, false, "", "", "").
		ExecuteTo(&result)
	return err
}

// UpdateComplianceSummary overwrites an existing summary row
func (sc *SupabaseClient) UpdateComplianceSummary(ctx context.Context, id string, row *ComplianceSummaryRow) error {
	var result []ComplianceSummaryRow
	_, err := sc.client.From("nyc_compliance_summary").
		Update(row, "", "").
		Eq("id", id).
		ExecuteTo(&result)
	return err
}

// ============================================================================
// API KEY OPERATIONS
// ============================================================================

// GetAPIKey retrieves an API key by ID (public part)
func (sc *SupabaseClient) GetAPIKey(ctx context.Context, keyID string) (*APIKey, error) {
	var keys []APIKey
	_, err := sc.client.From("api_keys").
		Select("*", "", false).
		Eq("key_id", keyID).
		ExecuteTo(&keys)

	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return &keys[0], nil
}

// CreateAPIKey creates a new API key
func (sc *SupabaseClient) CreateAPIKey(ctx context.Context, apiKey *APIKey) error {
	var result []APIKey
	_, err := sc.client.From("api_keys").
		Insert(apiKey, false, "", "", "").
		ExecuteTo(&result)
	return err
}

// TouchAPIKeyUsage stamps last_used_at after a successful validation
func (sc *SupabaseClient) TouchAPIKeyUsage(ctx context.Context, keyID string, usedAt time.Time) error {
	update := map[string]interface{}{
		"last_used_at": usedAt.Format(time.RFC3339),
	}
	var result []APIKey
	_, err := sc.client.From("api_keys").
		Update(update, "", "").
		Eq("key_id", keyID).
		ExecuteTo(&result)
	return err
}
