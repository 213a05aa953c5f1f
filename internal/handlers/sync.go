package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/propply/backend/internal/compliance"
	"github.com/propply/backend/internal/core"
	"github.com/propply/backend/internal/events"
	propsync "github.com/propply/backend/internal/sync"
	"github.com/propply/backend/internal/webhooks"
)

// HandleSyncProperty handles POST /api/v1/sync — it runs the pipeline for
// an address and persists the result under the caller's property id. This
// is the write path integrations schedule; /api/v1/compliance with persist
// is the interactive equivalent.
func HandleSyncProperty(
	orch *compliance.Orchestrator,
	syncSvc *propsync.Service,
	bus events.EventEmitter,
	hooks webhooks.WebhookEmitter,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if syncSvc == nil {
			http.Error(w, `{"error":"persistence disabled"}`, http.StatusServiceUnavailable)
			return
		}

		var req struct {
			PropertyID string `json:"property_id"`
			Address    string `json:"address"`
			Borough    string `json:"borough"`
			Violations *bool  `json:"sync_violations"`
			Equipment  *bool  `json:"sync_equipment"`
			Complaints *bool  `json:"sync_complaints"`
			MaxRecords int    `json:"max_records"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.PropertyID == "" || req.Address == "" {
			http.Error(w, `{"error":"property_id and address are required"}`, http.StatusBadRequest)
			return
		}

		opts := propsync.DefaultSyncOptions()
		if req.Violations != nil {
			opts.Violations = *req.Violations
		}
		if req.Equipment != nil {
			opts.Equipment = *req.Equipment
		}
		if req.Complaints != nil {
			opts.Complaints = *req.Complaints
		}
		if req.MaxRecords > 0 {
			opts.MaxRecords = req.MaxRecords
		}

		rec, runErr := orch.Run(r.Context(), req.Address, req.Borough, compliance.DefaultRunConfig())
		if rec.BIN == "" && rec.BBL == "" {
			status := http.StatusBadGateway
			detail := "property could not be resolved"
			if runErr != nil {
				status = core.HTTPStatus(runErr)
				detail = runErr.Error()
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]string{"error": detail})
			return
		}

		result, err := syncSvc.SyncRecord(r.Context(), req.PropertyID, rec, opts)
		apiMetrics().RecordSync(err == nil)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(core.HTTPStatus(err))
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		if bus != nil {
			bus.Emit(events.EventSyncCompleted, eventSource, req.PropertyID, map[string]interface{}{
				"property_id":     req.PropertyID,
				"nyc_property_id": result.NYCPropertyID,
				"address":         req.Address,
				"success":         result.Success,
			})
		}
		if hooks != nil {
			hooks.Emit(webhooks.EventSyncCompleted, result.NYCPropertyID, map[string]interface{}{
				"property_id":     req.PropertyID,
				"nyc_property_id": result.NYCPropertyID,
				"address":         req.Address,
				"results":         result.Results,
				"success":         result.Success,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}
