package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/propply/backend/internal/config"
	"github.com/propply/backend/internal/events"
)

// MakeCORSMiddleware returns CORS middleware using config origins.
// Properly handles multiple allowed origins by matching against the request's
// Origin header, which is the only spec-compliant approach.
// Supports wildcard patterns (e.g. "https://*.run.app") by suffix matching.
func MakeCORSMiddleware(cfg *config.Config) mux.MiddlewareFunc {
	// Separate exact origins from wildcard patterns
	exact := make(map[string]bool, len(cfg.Server.CORSAllowOrigins))
	var wildcardSuffixes []string
	allowAll := false
	for _, o := range cfg.Server.CORSAllowOrigins {
		if o == "*" {
			allowAll = true
		} else if strings.Contains(o, "*") {
			// Convert "https://*.run.app" → suffix ".run.app" with scheme "https://"
			// This handles the common *.domain pattern.
			suffix := strings.Replace(o, "*", "", 1)
			wildcardSuffixes = append(wildcardSuffixes, suffix)
		} else {
			exact[o] = true
		}
	}

	// originAllowed checks whether the request origin is permitted.
	originAllowed := func(origin string) bool {
		if exact[origin] {
			return true
		}
		for _, suffix := range wildcardSuffixes {
			// suffix is e.g. "https://.run.app"
			// Split into scheme and domain suffix
			parts := strings.SplitN(suffix, "//", 2)
			if len(parts) == 2 {
				scheme := parts[0] + "//"
				domainSuffix := parts[1]
				if strings.HasPrefix(origin, scheme) && strings.HasSuffix(origin, domainSuffix) {
					return true
				}
			} else if strings.HasSuffix(origin, suffix) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Determine what to set as Access-Control-Allow-Origin
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" && originAllowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				// Vary must be set when the response depends on the Origin header
				w.Header().Set("Vary", "Origin")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers",
				"Content-Type, Authorization, X-API-Key, X-Request-ID, Accept")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs each request in JSON format.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Call next handler
		next.ServeHTTP(w, r)

		// Log in Cloud Run compatible format (JSON)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// HandleSSEStream handles Server-Sent Events streaming of run progress.
func HandleSSEStream(bus *events.EventBus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		// Parse event type filters
		eventFilter := r.URL.Query().Get("events")
		var eventTypes []string
		if eventFilter != "" {
			eventTypes = strings.Split(eventFilter, ",")
		}

		ch := bus.Subscribe(eventTypes...)
		defer bus.Unsubscribe(ch)

		// Send initial connection event
		fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
		flusher.Flush()

		// A run can be quiet for most of its deadline; comment lines keep
		// proxies from recycling the connection in the meantime.
		heartbeat := time.NewTicker(20 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				sseData, err := event.SSEFormat()
				if err != nil {
					continue
				}
				w.Write(sseData)
				flusher.Flush()

			case <-heartbeat.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				flusher.Flush()

			case <-r.Context().Done():
				return
			}
		}
	}
}

// HandleServiceCard returns the service discovery card.
func HandleServiceCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"name":    "Propply Compliance Service",
			"version": "1.0.0",
			"description": "NYC property compliance aggregation — resolve an address, " +
				"pull violations, equipment, permits and complaints from NYC Open Data, " +
				"score the property, and persist the result.",
			"capabilities": []string{
				"geocode", "compliance", "scoring", "action-plan",
				"sync", "webhooks", "events", "stream",
			},
			"endpoints": map[string]string{
				"compliance": "/api/v1/compliance",
				"search":     "/api/v1/search",
				"properties": "/api/v1/properties/{propertyId}/compliance",
				"sync":       "/api/v1/sync",
				"webhooks":   "/api/v1/webhooks",
				"events":     "/api/v1/events/stream",
				"stream":     "/ws/runs",
				"metrics":    "/metrics",
				"health":     "/health",
			},
			"data_sources": []string{
				"NYC_Open_Data", "NYC_Planning_GeoSearch",
			},
			"sdk": map[string]string{
				"go":  "github.com/propply/backend/pkg/sdk",
				"cli": "go install github.com/propply/backend/cmd/propply-cli@latest",
			},
			"authentication": "API key via Authorization: Bearer ppy_... or X-API-Key",
		})
	}
}
