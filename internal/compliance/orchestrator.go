package compliance

import (
	"context"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/propply/backend/internal/core"
	"github.com/propply/backend/internal/devices"
	"github.com/propply/backend/internal/normalize"
	"github.com/propply/backend/internal/opendata"
	"github.com/propply/backend/internal/scoring"
	"github.com/propply/backend/internal/search"
)

// Domain names one compliance data collection a run can perform.
type Domain string

const (
	DomainHPDViolations  Domain = "hpd_violations"
	DomainDOBViolations  Domain = "dob_violations"
	DomainElevators      Domain = "elevators"
	DomainBoilers        Domain = "boilers"
	DomainElectrical     Domain = "electrical_permits"
	DomainCertificates   Domain = "certificate_of_occupancy"
	DomainComplaints311  Domain = "complaints_311"
	DomainFDNYViolations Domain = "fdny_violations"
)

// AllDomains returns every collection a full run performs, in report order.
func AllDomains() []Domain {
	return []Domain{
		DomainHPDViolations,
		DomainDOBViolations,
		DomainElevators,
		DomainBoilers,
		DomainElectrical,
		DomainCertificates,
		DomainComplaints311,
		DomainFDNYViolations,
	}
}

// domainSpec binds a domain to its dataset and, for equipment domains, the
// grouping columns.
type domainSpec struct {
	dataset   string
	deviceID  string // non-empty means rows are grouped into DeviceRecords
	dateField string
}

var domainSpecs = map[Domain]domainSpec{
	DomainHPDViolations:  {dataset: opendata.HPDViolations},
	DomainDOBViolations:  {dataset: opendata.DOBViolations},
	DomainElevators:      {dataset: opendata.ElevatorInspections, deviceID: "device_number", dateField: "status_date"},
	DomainBoilers:        {dataset: opendata.BoilerInspections, deviceID: "boiler_id", dateField: "inspection_date"},
	DomainElectrical:     {dataset: opendata.ElectricalPermits, deviceID: "filing_number", dateField: "filing_date"},
	DomainCertificates:   {dataset: opendata.CertificateOfOccupancy},
	DomainComplaints311:  {dataset: opendata.Complaints311},
	DomainFDNYViolations: {dataset: opendata.FDNYViolations},
}

const (
	defaultRunDeadline = 120 * time.Second
	maxWorkers         = 8
)

// RunDeadline returns the per-run deadline, honoring RUN_DEADLINE_SECONDS.
func RunDeadline() time.Duration {
	if v := os.Getenv("RUN_DEADLINE_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRunDeadline
}

// RunConfig selects which domains a run collects and how long it may take.
// Observer, when set, is called once per completed domain as results come
// in; it runs on collection goroutines and must not block.
type RunConfig struct {
	Domains  []Domain
	Deadline time.Duration
	Observer func(domain Domain, rows int, err error)
}

// DefaultRunConfig collects everything under the environment's deadline.
func DefaultRunConfig() RunConfig {
	return RunConfig{Domains: AllDomains(), Deadline: RunDeadline()}
}

// Resolver turns an address into canonical property identifiers.
type Resolver interface {
	Resolve(ctx context.Context, address, borough string) (*core.PropertyIdentifiers, error)
}

// Searcher executes one dataset's attempt ladder.
type Searcher interface {
	Search(ctx context.Context, ds *opendata.Dataset, ids *core.PropertyIdentifiers) (*search.Result, error)
}

// Orchestrator runs the full pipeline for one property at a time.
type Orchestrator struct {
	resolver Resolver
	searcher Searcher
	logger   *log.Logger
	now      func() time.Time
}

func NewOrchestrator(resolver Resolver, searcher Searcher) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		searcher: searcher,
		logger:   log.New(log.Writer(), "[COMPLIANCE] ", log.LstdFlags),
		now:      time.Now,
	}
}

// domainOutcome is what one domain collection produced.
type domainOutcome struct {
	rows     []map[string]interface{}
	devices  []devices.DeviceRecord
	strategy string
	err      error
}

// Run resolves the address and collects, scores, and assembles the record.
// A geocoding failure still returns an (empty, FAILED) record alongside the
// error. Domain failures never abort the run: whatever arrived is scored,
// the first non-deadline error is returned with the record, and a run that
// hit its deadline is marked PARTIAL.
func (o *Orchestrator) Run(ctx context.Context, address, borough string, cfg RunConfig) (*ComplianceRecord, error) {
	if len(cfg.Domains) == 0 {
		cfg.Domains = AllDomains()
	}
	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = RunDeadline()
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	now := o.now().UTC()
	o.logger.Printf("🔍 Run started for %q (%d domains)", address, len(cfg.Domains))

	ids, err := o.resolver.Resolve(ctx, address, borough)
	if err != nil || ids == nil {
		if err == nil {
			err = core.Errorf(core.KindNotFound, "compliance.run", "no identifiers for %q", address)
		}
		o.logger.Printf("❌ Geocoding failed for %q: %v", address, err)
		return NewEmptyRecord(address, now), err
	}
	o.logger.Printf("✅ Resolved %q: BIN=%s BBL=%s", address, ids.BIN, ids.BBL)

	outcomes := o.collect(ctx, ids, cfg)
	rec := o.assemble(ids, outcomes, now)

	partial := ctx.Err() != nil
	var firstErr error
	for _, d := range cfg.Domains {
		out, ok := outcomes[d]
		if !ok || out.err == nil {
			continue
		}
		if core.IsKind(out.err, core.KindDeadline) {
			partial = true
			continue
		}
		if firstErr == nil {
			firstErr = out.err
		}
	}
	if partial {
		rec.DataSources = DataSourcesPartial
		o.logger.Printf("⚠️ Run for %q hit the deadline, record is partial", address)
	}

	o.logger.Printf("✅ Run finished for %q: overall %.1f (%s)", address, rec.OverallComplianceScore, rec.RiskLevel)
	return rec, firstErr
}

// collect fans the domains out over a bounded worker pool.
func (o *Orchestrator) collect(ctx context.Context, ids *core.PropertyIdentifiers, cfg RunConfig) map[Domain]domainOutcome {
	workers := len(cfg.Domains)
	if workers > maxWorkers {
		workers = maxWorkers
	}

	jobs := make(chan Domain)
	outcomes := make(map[Domain]domainOutcome, len(cfg.Domains))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for domain := range jobs {
				out := o.collectDomain(ctx, domain, ids)
				if cfg.Observer != nil {
					cfg.Observer(domain, len(out.rows), out.err)
				}
				mu.Lock()
				outcomes[domain] = out
				mu.Unlock()
			}
		}()
	}
	for _, d := range cfg.Domains {
		jobs <- d
	}
	close(jobs)
	wg.Wait()
	return outcomes
}

func (o *Orchestrator) collectDomain(ctx context.Context, domain Domain, ids *core.PropertyIdentifiers) domainOutcome {
	spec, ok := domainSpecs[domain]
	if !ok {
		return domainOutcome{err: core.Errorf(core.KindBadQuery, "compliance.collect", "unknown domain %q", domain)}
	}

	res, err := o.searcher.Search(ctx, opendata.MustLookup(spec.dataset), ids)
	if err != nil {
		o.logger.Printf("❌ %s: %v", domain, err)
		return domainOutcome{err: err}
	}

	rows := normalize.ForDataset(spec.dataset, res.Rows)
	out := domainOutcome{rows: rows, strategy: res.Strategy}
	if spec.deviceID != "" {
		out.devices = devices.Group(rows, spec.deviceID, spec.dateField)
		o.logger.Printf("✅ %s: %d rows, %d devices", domain, len(rows), len(out.devices))
	} else {
		o.logger.Printf("✅ %s: %d rows", domain, len(rows))
	}
	return out
}

// assemble folds the domain outcomes into the scored record.
func (o *Orchestrator) assemble(ids *core.PropertyIdentifiers, outcomes map[Domain]domainOutcome, now time.Time) *ComplianceRecord {
	rec := NewEmptyRecord(ids.Address, now)
	rec.SetIdentifiers(ids)
	rec.DataSources = DataSourcesDefault

	if out, ok := outcomes[DomainHPDViolations]; ok && out.err == nil {
		rec.HPDViolations = out.rows
		// The search fetches only open violations, so total equals active.
		rec.HPDViolationsTotal = len(out.rows)
		rec.HPDViolationsActive = len(out.rows)
		rec.noteStrategy(DomainHPDViolations, out.strategy)
	}
	if out, ok := outcomes[DomainDOBViolations]; ok && out.err == nil {
		rec.DOBViolations = out.rows
		rec.DOBViolationsTotal = len(out.rows)
		rec.DOBViolationsActive = len(out.rows)
		rec.noteStrategy(DomainDOBViolations, out.strategy)
	}
	if out, ok := outcomes[DomainElevators]; ok && out.err == nil {
		rec.ElevatorDevices = out.devices
		rec.ElevatorDevicesTotal = len(out.devices)
		rec.ElevatorDevicesActive = scoring.CountActiveElevators(out.devices)
		rec.noteStrategy(DomainElevators, out.strategy)
	}
	if out, ok := outcomes[DomainBoilers]; ok && out.err == nil {
		rec.BoilerDevices = out.devices
		rec.BoilerDevicesTotal = len(out.devices)
		rec.noteStrategy(DomainBoilers, out.strategy)
	}
	if out, ok := outcomes[DomainElectrical]; ok && out.err == nil {
		rec.ElectricalPermits = out.devices
		rec.ElectricalPermitsTotal = len(out.devices)
		rec.ElectricalPermitsActive = scoring.CountActiveElectrical(out.devices)
		rec.noteStrategy(DomainElectrical, out.strategy)
	}
	if out, ok := outcomes[DomainCertificates]; ok && out.err == nil {
		rec.CertificatesOfOccupancy = out.rows
		rec.CertificatesTotal = len(out.rows)
		rec.noteStrategy(DomainCertificates, out.strategy)
	}
	if out, ok := outcomes[DomainComplaints311]; ok && out.err == nil {
		rec.Complaints311 = out.rows
		rec.Complaints311Total = len(out.rows)
		rec.noteStrategy(DomainComplaints311, out.strategy)
	}
	if out, ok := outcomes[DomainFDNYViolations]; ok && out.err == nil {
		rec.FDNYViolations = out.rows
		rec.FDNYViolationsTotal = len(out.rows)
		rec.noteStrategy(DomainFDNYViolations, out.strategy)
	}

	rec.HPDComplianceScore = scoring.HPDScore(rec.HPDViolationsActive)
	rec.DOBComplianceScore = scoring.DOBScore(rec.DOBViolationsActive)
	rec.ElevatorComplianceScore = scoring.ElevatorScore(rec.ElevatorDevicesActive, rec.ElevatorDevicesTotal)
	recent := scoring.CountRecentElectrical(rec.ElectricalPermits, now)
	rec.ElectricalComplianceScore = scoring.ElectricalScore(rec.ElectricalPermitsTotal, recent, rec.ElectricalPermitsActive)
	rec.OverallComplianceScore = scoring.Overall(
		rec.HPDComplianceScore, rec.DOBComplianceScore,
		rec.ElevatorComplianceScore, rec.ElectricalComplianceScore)
	rec.RiskLevel = scoring.Risk(rec.OverallComplianceScore)
	rec.ActionPlan = BuildActionPlan(rec.HPDViolations, rec.DOBViolations, now)

	return rec
}

func (r *ComplianceRecord) noteStrategy(domain Domain, strategy string) {
	if strategy == "" {
		return
	}
	r.SearchStrategies[string(domain)] = strategy
}
