package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/propply/backend/internal/database"
	"github.com/propply/backend/internal/opendata"
	"github.com/propply/backend/internal/stream"
	"github.com/propply/backend/internal/webhooks"
)

// HandleHealth reports service liveness plus the state of the pieces that
// can degrade independently: Supabase, the open-data circuit breakers, the
// websocket hub, and the webhook queue. db, streamer, and hooks may be nil
// when the deployment runs without them.
func HandleHealth(
	db *database.SupabaseClient,
	od *opendata.Client,
	streamer *stream.RunStreamer,
	hooks webhooks.WebhookEmitter,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"status":  "healthy",
			"service": "propply-api",
			"time":    time.Now().UTC().Format(time.RFC3339),
		}

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()

			supabaseStatus := "connected"
			if _, err := db.GetProperty(ctx, "health-check", ""); err != nil {
				supabaseStatus = "error"
			}
			resp["supabase"] = supabaseStatus
		} else {
			resp["supabase"] = "disabled"
		}

		if od != nil {
			breakers := map[string]string{}
			for dataset, stats := range od.BreakerStats() {
				breakers[dataset] = stats.State
			}
			resp["breakers"] = breakers
		}

		if streamer != nil {
			resp["stream_clients"] = streamer.ClientCount()
		}
		if stats, ok := hooks.(interface{ MarshalStats() map[string]interface{} }); ok {
			resp["webhooks"] = stats.MarshalStats()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
