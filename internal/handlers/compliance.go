// Package handlers provides the HTTP surface of the compliance service:
// on-demand runs, stored-property reads, sync triggers, webhook management,
// and the live event stream.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/propply/backend/internal/compliance"
	"github.com/propply/backend/internal/core"
	"github.com/propply/backend/internal/events"
	propsync "github.com/propply/backend/internal/sync"
	"github.com/propply/backend/internal/webhooks"
)

const eventSource = "/api/v1/compliance"

// HandleComplianceCheck handles POST /api/v1/compliance — it runs the full
// pipeline for one address and optionally persists the result.
//
// The run is identified by a generated run_id, returned both in the body
// and the X-Run-ID header; progress events carry it so stream consumers can
// correlate.
func HandleComplianceCheck(
	orch *compliance.Orchestrator,
	syncSvc *propsync.Service,
	bus events.EventEmitter,
	hooks webhooks.WebhookEmitter,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Address    string   `json:"address"`
			Borough    string   `json:"borough"`
			PropertyID string   `json:"property_id"`
			Persist    bool     `json:"persist"`
			Domains    []string `json:"domains"`
			MaxRecords int      `json:"max_records"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Address == "" {
			http.Error(w, `{"error":"address is required"}`, http.StatusBadRequest)
			return
		}
		if req.Persist && req.PropertyID == "" {
			http.Error(w, `{"error":"property_id is required when persist is set"}`, http.StatusBadRequest)
			return
		}

		domains, err := parseDomains(req.Domains)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
			return
		}

		runID := uuid.NewString()
		w.Header().Set("X-Run-ID", runID)
		started := time.Now()

		if bus != nil {
			bus.Emit(events.EventRunStarted, eventSource, req.Address, map[string]interface{}{
				"run_id":  runID,
				"address": req.Address,
				"domains": len(domains),
			})
		}

		cfg := compliance.DefaultRunConfig()
		cfg.Domains = domains
		if bus != nil {
			cfg.Observer = func(domain compliance.Domain, rows int, err error) {
				data := map[string]interface{}{
					"run_id": runID,
					"domain": string(domain),
					"rows":   rows,
				}
				if err != nil {
					data["error"] = err.Error()
				}
				bus.Emit(events.EventRunDomainCompleted, eventSource, req.Address, data)
			}
		}

		rec, runErr := orch.Run(r.Context(), req.Address, req.Borough, cfg)
		apiMetrics().RecordRun(rec.DataSources, time.Since(started).Seconds())

		// A record with no identifiers means geocoding failed; nothing
		// was collected and there is nothing worth returning.
		if rec.BIN == "" && rec.BBL == "" {
			status := http.StatusBadGateway
			detail := "property could not be resolved"
			if runErr != nil {
				status = core.HTTPStatus(runErr)
				detail = runErr.Error()
			}
			if bus != nil {
				bus.Emit(events.EventRunFailed, eventSource, req.Address, map[string]interface{}{
					"run_id":  runID,
					"address": req.Address,
					"error":   detail,
				})
			}
			if hooks != nil {
				hooks.Emit(webhooks.EventRunFailed, runID, map[string]interface{}{
					"address": req.Address,
					"error":   detail,
				})
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"run_id": runID,
				"error":  detail,
			})
			return
		}

		response := map[string]interface{}{
			"run_id": runID,
			"report": rec,
		}
		if runErr != nil {
			response["warning"] = runErr.Error()
		}

		if req.Persist {
			if syncSvc == nil {
				response["sync_error"] = "persistence disabled"
			} else {
				opts := propsync.DefaultSyncOptions()
				if req.MaxRecords > 0 {
					opts.MaxRecords = req.MaxRecords
				}
				syncResult, syncErr := syncSvc.SyncRecord(r.Context(), req.PropertyID, rec, opts)
				if syncErr != nil {
					response["sync_error"] = syncErr.Error()
				}
				if syncResult != nil {
					response["sync"] = syncResult
				}
			}
		}

		emitRunCompleted(bus, hooks, runID, req.Address, rec)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}

// emitRunCompleted publishes the terminal events for a run that produced a
// usable record. Partial records go out as report.partial so subscribers
// can decide whether to retry.
func emitRunCompleted(bus events.EventEmitter, hooks webhooks.WebhookEmitter, runID, address string, rec *compliance.ComplianceRecord) {
	summary := map[string]interface{}{
		"run_id":        runID,
		"address":       address,
		"bin":           rec.BIN,
		"bbl":           rec.BBL,
		"overall_score": rec.OverallComplianceScore,
		"risk_level":    string(rec.RiskLevel),
		"data_sources":  rec.DataSources,
	}
	if bus != nil {
		bus.Emit(events.EventRunCompleted, eventSource, address, summary)
	}
	if hooks == nil {
		return
	}
	hookType := webhooks.EventReportCompleted
	if rec.DataSources == compliance.DataSourcesPartial {
		hookType = webhooks.EventReportPartial
	}
	hooks.Emit(hookType, runID, map[string]interface{}{
		"address":       address,
		"bin":           rec.BIN,
		"bbl":           rec.BBL,
		"overall_score": rec.OverallComplianceScore,
		"risk_level":    string(rec.RiskLevel),
		"data_sources":  rec.DataSources,
	})
}

// parseDomains validates the optional domain filter. Empty means all.
func parseDomains(names []string) ([]compliance.Domain, error) {
	if len(names) == 0 {
		return compliance.AllDomains(), nil
	}
	known := make(map[compliance.Domain]bool, len(compliance.AllDomains()))
	for _, d := range compliance.AllDomains() {
		known[d] = true
	}
	domains := make([]compliance.Domain, 0, len(names))
	for _, name := range names {
		d := compliance.Domain(name)
		if !known[d] {
			return nil, core.Errorf(core.KindBadQuery, "handlers.domains", "unknown domain %q", name)
		}
		domains = append(domains, d)
	}
	return domains, nil
}
