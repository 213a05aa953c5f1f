package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propply/backend/internal/compliance"
	"github.com/propply/backend/internal/core"
	"github.com/propply/backend/internal/database"
	"github.com/propply/backend/internal/events"
	"github.com/propply/backend/internal/opendata"
	"github.com/propply/backend/internal/search"
	propsync "github.com/propply/backend/internal/sync"
	"github.com/propply/backend/internal/webhooks"
)

// ============================================================================
// FAKES
// ============================================================================

type fakeResolver struct {
	ids *core.PropertyIdentifiers
	err error
}

func (f *fakeResolver) Resolve(ctx context.Context, address, borough string) (*core.PropertyIdentifiers, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ids, nil
}

// fakeSearcher serves canned rows per dataset key.
type fakeSearcher struct {
	rows map[string][]opendata.Row
}

func (f *fakeSearcher) Search(ctx context.Context, ds *opendata.Dataset, ids *core.PropertyIdentifiers) (*search.Result, error) {
	return &search.Result{Rows: f.rows[ds.Key], Strategy: search.StrategyBIN}, nil
}

// fakeEmitter records webhook emissions.
type fakeEmitter struct {
	emitted []webhooks.EventType
	runIDs  []string
}

func (f *fakeEmitter) Emit(eventType webhooks.EventType, runID string, data map[string]interface{}) {
	f.emitted = append(f.emitted, eventType)
	f.runIDs = append(f.runIDs, runID)
}

func (f *fakeEmitter) Shutdown() {}

// fakeSyncStore is an in-memory sync.Store.
type fakeSyncStore struct {
	nextID     int
	properties map[string]*database.NYCProperty // keyed by property_id
	dob        map[string]*database.DOBViolationRow
	hpd        map[string]*database.HPDViolationRow
	elevators  map[string]*database.ElevatorInspectionRow
	boilers    map[string]*database.BoilerInspectionRow
	complaints map[string]*database.Complaint311Row
	summaries  map[string]*database.ComplianceSummaryRow
	touched    map[string]time.Time
}

func newFakeSyncStore() *fakeSyncStore {
	return &fakeSyncStore{
		properties: make(map[string]*database.NYCProperty),
		dob:        make(map[string]*database.DOBViolationRow),
		hpd:        make(map[string]*database.HPDViolationRow),
		elevators:  make(map[string]*database.ElevatorInspectionRow),
		boilers:    make(map[string]*database.BoilerInspectionRow),
		complaints: make(map[string]*database.Complaint311Row),
		summaries:  make(map[string]*database.ComplianceSummaryRow),
		touched:    make(map[string]time.Time),
	}
}

func (s *fakeSyncStore) id() string {
	s.nextID++
	return fmt.Sprintf("row-%d", s.nextID)
}

func (s *fakeSyncStore) GetProperty(ctx context.Context, propertyID, bin string) (*database.NYCProperty, error) {
	prop, ok := s.properties[propertyID]
	if !ok {
		return nil, nil
	}
	return prop, nil
}

func (s *fakeSyncStore) CreateProperty(ctx context.Context, prop *database.NYCProperty) (*database.NYCProperty, error) {
	stored := *prop
	stored.ID = s.id()
	s.properties[prop.PropertyID] = &stored
	return &stored, nil
}

func (s *fakeSyncStore) TouchPropertySync(ctx context.Context, nycPropertyID string, syncedAt time.Time) error {
	s.touched[nycPropertyID] = syncedAt
	return nil
}

func (s *fakeSyncStore) HasDOBViolation(ctx context.Context, violationID string) (bool, error) {
	_, ok := s.dob[violationID]
	return ok, nil
}

func (s *fakeSyncStore) InsertDOBViolation(ctx context.Context, row *database.DOBViolationRow) error {
	s.dob[row.ViolationID] = row
	return nil
}

func (s *fakeSyncStore) ListDOBViolations(ctx context.Context, nycPropertyID string) ([]database.DOBViolationRow, error) {
	var rows []database.DOBViolationRow
	for _, row := range s.dob {
		if row.NYCPropertyID == nycPropertyID {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (s *fakeSyncStore) HasHPDViolation(ctx context.Context, violationID string) (bool, error) {
	_, ok := s.hpd[violationID]
	return ok, nil
}

func (s *fakeSyncStore) InsertHPDViolation(ctx context.Context, row *database.HPDViolationRow) error {
	s.hpd[row.ViolationID] = row
	return nil
}

func (s *fakeSyncStore) ListHPDViolations(ctx context.Context, nycPropertyID string) ([]database.HPDViolationRow, error) {
	var rows []database.HPDViolationRow
	for _, row := range s.hpd {
		if row.NYCPropertyID == nycPropertyID {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (s *fakeSyncStore) GetElevatorInspection(ctx context.Context, nycPropertyID, deviceNumber string) (*database.ElevatorInspectionRow, error) {
	row, ok := s.elevators[nycPropertyID+"|"+deviceNumber]
	if !ok {
		return nil, nil
	}
	return row, nil
}

func (s *fakeSyncStore) InsertElevatorInspection(ctx context.Context, row *database.ElevatorInspectionRow) error {
	row.ID = s.id()
	s.elevators[row.NYCPropertyID+"|"+row.DeviceNumber] = row
	return nil
}

func (s *fakeSyncStore) UpdateElevatorInspection(ctx context.Context, id string, row *database.ElevatorInspectionRow) error {
	s.elevators[row.NYCPropertyID+"|"+row.DeviceNumber] = row
	return nil
}

func (s *fakeSyncStore) ListElevatorInspections(ctx context.Context, nycPropertyID string) ([]database.ElevatorInspectionRow, error) {
	var rows []database.ElevatorInspectionRow
	for _, row := range s.elevators {
		if row.NYCPropertyID == nycPropertyID {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (s *fakeSyncStore) GetBoilerInspection(ctx context.Context, nycPropertyID, deviceNumber string) (*database.BoilerInspectionRow, error) {
	row, ok := s.boilers[nycPropertyID+"|"+deviceNumber]
	if !ok {
		return nil, nil
	}
	return row, nil
}

func (s *fakeSyncStore) InsertBoilerInspection(ctx context.Context, row *database.BoilerInspectionRow) error {
	row.ID = s.id()
	s.boilers[row.NYCPropertyID+"|"+row.DeviceNumber] = row
	return nil
}

func (s *fakeSyncStore) UpdateBoilerInspection(ctx context.Context, id string, row *database.BoilerInspectionRow) error {
	s.boilers[row.NYCPropertyID+"|"+row.DeviceNumber] = row
	return nil
}

func (s *fakeSyncStore) ListBoilerInspections(ctx context.Context, nycPropertyID string) ([]database.BoilerInspectionRow, error) {
	var rows []database.BoilerInspectionRow
	for _, row := range s.boilers {
		if row.NYCPropertyID == nycPropertyID {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (s *fakeSyncStore) HasComplaint311(ctx context.Context, uniqueKey string) (bool, error) {
	_, ok := s.complaints[uniqueKey]
	return ok, nil
}

func (s *fakeSyncStore) InsertComplaint311(ctx context.Context, row *database.Complaint311Row) error {
	s.complaints[row.UniqueKey] = row
	return nil
}

func (s *fakeSyncStore) ListComplaints311(ctx context.Context, nycPropertyID string, limit int) ([]database.Complaint311Row, error) {
	var rows []database.Complaint311Row
	for _, row := range s.complaints {
		if row.NYCPropertyID == nycPropertyID {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (s *fakeSyncStore) GetComplianceSummary(ctx context.Context, nycPropertyID string) (*database.ComplianceSummaryRow, error) {
	row, ok := s.summaries[nycPropertyID]
	if !ok {
		return nil, nil
	}
	return row, nil
}

func (s *fakeSyncStore) InsertComplianceSummary(ctx context.Context, row *database.ComplianceSummaryRow) error {
	row.ID = s.id()
	s.summaries[row.NYCPropertyID] = row
	return nil
}

func (s *fakeSyncStore) UpdateComplianceSummary(ctx context.Context, id string, row *database.ComplianceSummaryRow) error {
	s.summaries[row.NYCPropertyID] = row
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

func testIdentifiers() *core.PropertyIdentifiers {
	return &core.PropertyIdentifiers{
		Address: "140 WEST 28TH STREET",
		BIN:     "1015237",
		BBL:     "1008030060",
		Borough: "MANHATTAN",
		Block:   "803",
		Lot:     "60",
		ZipCode: "10001",
	}
}

func testOrchestrator() *compliance.Orchestrator {
	searcher := &fakeSearcher{rows: map[string][]opendata.Row{
		opendata.HPDViolations: {
			{"violationid": "1001", "violationstatus": "Open", "inspectiondate": "2025-05-01T00:00:00.000"},
		},
		opendata.DOBViolations: {
			{"isn_dob_bis_viol": "2201", "violation_category": "V-DOB VIOLATION - ACTIVE", "issue_date": "20250301"},
		},
		opendata.ElevatorInspections: {
			{"device_number": "1D10087", "device_status": "A", "status_date": "2025-04-15T00:00:00.000"},
		},
	}}
	return compliance.NewOrchestrator(&fakeResolver{ids: testIdentifiers()}, searcher)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

// drain collects bus events until the channel stays quiet.
func drain(ch chan *events.CloudEvent) []*events.CloudEvent {
	var got []*events.CloudEvent
	for {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-time.After(100 * time.Millisecond):
			return got
		}
	}
}

// ============================================================================
// COMPLIANCE RUN
// ============================================================================

func TestHandleComplianceCheck(t *testing.T) {
	bus := events.NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	hooks := &fakeEmitter{}
	handler := HandleComplianceCheck(testOrchestrator(), nil, bus, hooks)

	body := bytes.NewBufferString(`{"address":"140 West 28th Street, New York, NY"}`)
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("POST", "/api/v1/compliance", body))

	require.Equal(t, http.StatusOK, rec.Code)
	runID := rec.Header().Get("X-Run-ID")
	assert.NotEmpty(t, runID)

	resp := decodeBody(t, rec)
	assert.Equal(t, runID, resp["run_id"])

	report, ok := resp["report"].(map[string]interface{})
	require.True(t, ok, "report should be an object")
	assert.Equal(t, "1015237", report["bin"])
	assert.Equal(t, "1008030060", report["bbl"])
	assert.Equal(t, float64(1), report["hpd_violations_active"])
	assert.Equal(t, float64(1), report["dob_violations_active"])

	got := drain(ch)
	types := make(map[string]int)
	for _, ev := range got {
		types[ev.Type]++
		assert.Equal(t, runID, ev.RunID, "every event carries the run id")
	}
	assert.Equal(t, 1, types[events.EventRunStarted])
	assert.Equal(t, 1, types[events.EventRunCompleted])
	assert.Equal(t, len(compliance.AllDomains()), types[events.EventRunDomainCompleted])

	require.Len(t, hooks.emitted, 1)
	assert.Equal(t, webhooks.EventReportCompleted, hooks.emitted[0])
	assert.Equal(t, runID, hooks.runIDs[0])
}

func TestHandleComplianceCheckValidation(t *testing.T) {
	handler := HandleComplianceCheck(testOrchestrator(), nil, nil, nil)

	cases := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"not json", `address=x`},
		{"persist without property id", `{"address":"1 Centre St","persist":true}`},
		{"unknown domain", `{"address":"1 Centre St","domains":["parking_tickets"]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest("POST", "/api/v1/compliance", strings.NewReader(tc.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleComplianceCheckGeocodeFailure(t *testing.T) {
	resolver := &fakeResolver{err: core.Errorf(core.KindNotFound, "geocode", "no matches")}
	orch := compliance.NewOrchestrator(resolver, &fakeSearcher{})

	bus := events.NewEventBus()
	ch := bus.Subscribe(events.EventRunFailed)
	defer bus.Unsubscribe(ch)
	hooks := &fakeEmitter{}

	handler := HandleComplianceCheck(orch, nil, bus, hooks)
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("POST", "/api/v1/compliance",
		strings.NewReader(`{"address":"999 Nowhere Lane"}`)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeBody(t, rec)
	assert.Contains(t, resp["error"], "no matches")

	failures := drain(ch)
	require.Len(t, failures, 1)
	require.Len(t, hooks.emitted, 1)
	assert.Equal(t, webhooks.EventRunFailed, hooks.emitted[0])
}

func TestHandleComplianceCheckPersists(t *testing.T) {
	store := newFakeSyncStore()
	syncSvc := propsync.NewService(store)

	handler := HandleComplianceCheck(testOrchestrator(), syncSvc, nil, nil)
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("POST", "/api/v1/compliance",
		strings.NewReader(`{"address":"140 West 28th Street","property_id":"prop-77","persist":true}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)

	syncPart, ok := resp["sync"].(map[string]interface{})
	require.True(t, ok, "sync result should be attached")
	assert.Equal(t, true, syncPart["success"])

	require.Contains(t, store.properties, "prop-77")
	assert.Len(t, store.hpd, 1)
	assert.Len(t, store.dob, 1)
	assert.Len(t, store.elevators, 1)
	require.Len(t, store.summaries, 1)
}

// ============================================================================
// SEARCH + PROPERTIES + SYNC
// ============================================================================

func TestHandlePropertySearch(t *testing.T) {
	handler := HandlePropertySearch(&fakeResolver{ids: testIdentifiers()})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("POST", "/api/v1/search",
		strings.NewReader(`{"address":"140 West 28th Street"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, "1015237", resp["bin"])
	assert.Equal(t, "1008030060", resp["bbl"])
	assert.Equal(t, "803", resp["block"])
}

func TestHandlePropertySearchNotFound(t *testing.T) {
	handler := HandlePropertySearch(&fakeResolver{err: core.Errorf(core.KindNotFound, "geocode", "no matches")})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("POST", "/api/v1/search",
		strings.NewReader(`{"address":"999 Nowhere Lane"}`)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetPropertyCompliance(t *testing.T) {
	store := newFakeSyncStore()
	syncSvc := propsync.NewService(store)

	// Seed through the public sync path.
	runRec, err := testOrchestrator().Run(context.Background(), "140 West 28th Street", "", compliance.DefaultRunConfig())
	require.NoError(t, err)
	_, err = syncSvc.SyncRecord(context.Background(), "prop-42", runRec, propsync.DefaultSyncOptions())
	require.NoError(t, err)

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/properties/{propertyId}/compliance", HandleGetPropertyCompliance(syncSvc)).Methods("GET")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/properties/prop-42/compliance", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	prop, ok := resp["property"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "prop-42", prop["property_id"])
	assert.NotNil(t, resp["compliance_summary"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/properties/prop-unknown/compliance", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSyncProperty(t *testing.T) {
	store := newFakeSyncStore()
	syncSvc := propsync.NewService(store)

	bus := events.NewEventBus()
	ch := bus.Subscribe(events.EventSyncCompleted)
	defer bus.Unsubscribe(ch)
	hooks := &fakeEmitter{}

	handler := HandleSyncProperty(testOrchestrator(), syncSvc, bus, hooks)
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("POST", "/api/v1/sync",
		strings.NewReader(`{"property_id":"prop-9","address":"140 West 28th Street","sync_complaints":false}`)))

	require.Equal(t, http.StatusOK, rec.Code)

	var result propsync.SyncResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.True(t, result.Success)
	assert.Equal(t, "prop-9", result.PropertyID)
	_, hasComplaints := result.Results["complaints_311"]
	assert.False(t, hasComplaints, "complaints were opted out")

	got := drain(ch)
	require.Len(t, got, 1)
	require.Len(t, hooks.emitted, 1)
	assert.Equal(t, webhooks.EventSyncCompleted, hooks.emitted[0])
}

func TestHandleSyncPropertyValidation(t *testing.T) {
	handler := HandleSyncProperty(testOrchestrator(), propsync.NewService(newFakeSyncStore()), nil, nil)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("POST", "/api/v1/sync", strings.NewReader(`{"address":"1 Centre St"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================================================
// WEBHOOK MANAGEMENT
// ============================================================================

func TestWebhookManagementHandlers(t *testing.T) {
	registry := webhooks.NewRegistry()

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/webhooks", HandleListWebhooks(registry)).Methods("GET")
	router.HandleFunc("/api/v1/webhooks", HandleRegisterWebhook(registry)).Methods("POST")
	router.HandleFunc("/api/v1/webhooks/{webhookId}", HandleUnregisterWebhook(registry)).Methods("DELETE")

	// Register
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/webhooks",
		strings.NewReader(`{"url":"https://hooks.example.com/x","events":["report.completed"],"secret":"whsec_1"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody(t, rec)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Empty(t, created["secret"], "secret must be redacted in responses")

	// Invalid event type rejected
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/webhooks",
		strings.NewReader(`{"url":"https://hooks.example.com/y","events":["nope"]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// List
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/webhooks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeBody(t, rec)
	assert.Equal(t, float64(1), listed["total"])

	// Unregister
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/v1/webhooks/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/v1/webhooks/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================================================
// SSE + HEALTH
// ============================================================================

func TestHandleSSEStream(t *testing.T) {
	bus := events.NewEventBus()
	server := httptest.NewServer(HandleSSEStream(bus))
	defer server.Close()

	resp, err := http.Get(server.URL + "?events=" + events.EventRunCompleted)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	// Wait for the subscription to land before emitting.
	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 },
		time.Second, 10*time.Millisecond)

	bus.Emit(events.EventRunCompleted, "/test", "subject", map[string]interface{}{"run_id": "r-1"})

	deadline := time.After(2 * time.Second)
	found := make(chan string, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "event: "+events.EventRunCompleted) {
				found <- line
				return
			}
		}
	}()

	select {
	case line := <-found:
		assert.Contains(t, line, events.EventRunCompleted)
	case <-deadline:
		t.Fatal("run completed event never arrived on the SSE stream")
	}
}

func TestHandleHealth(t *testing.T) {
	handler := HandleHealth(nil, nil, nil, nil)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "propply-api", resp["service"])
	assert.Equal(t, "disabled", resp["supabase"])
}
