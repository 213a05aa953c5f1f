package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/propply/backend/internal/webhooks"
)

// HandleListWebhooks handles GET /api/v1/webhooks. Secrets are redacted.
func HandleListWebhooks(registry *webhooks.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subs := registry.ListAll()

		views := make([]*webhooks.WebhookSubscription, 0, len(subs))
		for _, sub := range subs {
			views = append(views, sub.Redacted())
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"webhooks": views,
			"total":    len(views),
		})
	}
}

// HandleRegisterWebhook handles POST /api/v1/webhooks.
func HandleRegisterWebhook(registry *webhooks.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL    string   `json:"url"`
			Events []string `json:"events"`
			Secret string   `json:"secret"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		eventTypes := make([]webhooks.EventType, 0, len(req.Events))
		for _, e := range req.Events {
			eventTypes = append(eventTypes, webhooks.EventType(e))
		}

		sub := &webhooks.WebhookSubscription{
			URL:    req.URL,
			Events: eventTypes,
			Secret: req.Secret,
		}
		if err := registry.Register(sub); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(sub.Redacted())
	}
}

// HandleUnregisterWebhook handles DELETE /api/v1/webhooks/{webhookId}.
func HandleUnregisterWebhook(registry *webhooks.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["webhookId"]

		if err := registry.Unregister(id); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"id":     id,
			"status": "removed",
		})
	}
}
