package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/propply/backend/internal/auth"
)

// APIKeyMiddleware validates the request's API key before it reaches a
// handler. Keys are accepted from the Authorization header (Bearer ppy_...)
// or the X-API-Key header.
//
// A nil manager disables authentication entirely — local development runs
// without a key store. The open mode is logged once at wrap time so the
// condition is visible in production logs.
func APIKeyMiddleware(mgr *auth.APIKeyManager, next http.HandlerFunc) http.HandlerFunc {
	if mgr == nil {
		log.Printf("[AUTH] ⚠️ API key validation disabled — no key store configured")
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		fullKey := ""
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ppy_") {
			fullKey = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if fullKey == "" {
			fullKey = r.Header.Get("X-API-Key")
		}

		if fullKey == "" {
			http.Error(w, "Missing API Key (Authorization: Bearer ppy_... or X-API-Key)", http.StatusUnauthorized)
			return
		}

		key, err := mgr.ValidateAPIKey(ctx, fullKey)
		if err != nil {
			http.Error(w, "Invalid API Key", http.StatusUnauthorized)
			return
		}

		ctx = auth.WithAPIKey(ctx, key)
		next(w, r.WithContext(ctx))
	}
}
