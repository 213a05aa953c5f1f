package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/propply/backend/internal/compliance"
	"github.com/propply/backend/internal/core"
)

// HandlePropertySearch handles POST /api/v1/search — it resolves an address
// to canonical identifiers without running the pipeline. Useful for
// validating input before committing to a full run.
func HandlePropertySearch(resolver compliance.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Address string `json:"address"`
			Borough string `json:"borough"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Address == "" {
			http.Error(w, `{"error":"address is required"}`, http.StatusBadRequest)
			return
		}

		ids, err := resolver.Resolve(r.Context(), req.Address, req.Borough)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(core.HTTPStatus(err))
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"address":  ids.Address,
			"bin":      ids.BIN,
			"bbl":      ids.BBL,
			"borough":  ids.Borough,
			"block":    ids.Block,
			"lot":      ids.Lot,
			"zip_code": ids.ZipCode,
		})
	}
}
