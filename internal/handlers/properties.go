package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/propply/backend/internal/core"
	propsync "github.com/propply/backend/internal/sync"
)

// HandleGetPropertyCompliance handles
// GET /api/v1/properties/{propertyId}/compliance — the stored view of a
// property, served from Supabase without touching NYC Open Data.
func HandleGetPropertyCompliance(syncSvc *propsync.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if syncSvc == nil {
			http.Error(w, `{"error":"persistence disabled"}`, http.StatusServiceUnavailable)
			return
		}

		propertyID := mux.Vars(r)["propertyId"]
		if propertyID == "" {
			http.Error(w, `{"error":"property id is required"}`, http.StatusBadRequest)
			return
		}

		pkg, err := syncSvc.GetPropertyData(r.Context(), propertyID)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(core.HTTPStatus(err))
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(pkg)
	}
}
