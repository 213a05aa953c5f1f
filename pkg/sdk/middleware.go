package sdk

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// VerifySignature reports whether sig matches the HMAC-SHA256 of body
// under secret. The "sha256=" prefix the dispatcher sends is accepted
// and optional.
func VerifySignature(body []byte, sig, secret string) bool {
	sig = strings.TrimPrefix(sig, "sha256=")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(sig))
}

// WebhookMiddleware verifies the X-Propply-Signature header on inbound
// webhook deliveries before they reach the handler. Unsigned or
// mis-signed requests get 403 and never reach next.
//
// Usage with standard net/http:
//
//	mux.Handle("/hooks/propply", sdk.WebhookMiddleware(secret, receiver))
func WebhookMiddleware(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, `{"error":"unreadable body"}`, http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		if !VerifySignature(body, r.Header.Get("X-Propply-Signature"), secret) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":    "invalid webhook signature",
				"event_id": r.Header.Get("X-Propply-Event-ID"),
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// WebhookHandler decodes verified deliveries and hands each event to fn.
// It wraps WebhookMiddleware, so fn only ever sees authentic events.
//
//	mux.Handle("/hooks/propply", sdk.WebhookHandler(secret, func(evt *sdk.WebhookEvent) {
//	    log.Printf("run %s: %s", evt.RunID, evt.Type)
//	}))
func WebhookHandler(secret string, fn func(*WebhookEvent)) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt WebhookEvent
		if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
			http.Error(w, `{"error":"invalid event payload"}`, http.StatusBadRequest)
			return
		}
		fn(&evt)
		w.WriteHeader(http.StatusNoContent)
	})
	return WebhookMiddleware(secret, inner)
}

// WrapHTTPClient returns an http.Client that sends the configured API key
// with every request and logs each call. Use it for endpoints the typed
// methods do not cover, like the SSE event stream:
//
//	streaming := sdk.WrapHTTPClient(client, &http.Client{})
//	resp, err := streaming.Get(baseURL + "/api/v1/events/stream")
func WrapHTTPClient(client *Client, wrapped *http.Client) *http.Client {
	return &http.Client{
		Timeout: wrapped.Timeout,
		Transport: &authTransport{
			apiKey:  client.config.APIKey,
			wrapped: wrapped.Transport,
		},
	}
}

type authTransport struct {
	apiKey  string
	wrapped http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	// RoundTrippers must not mutate the caller's request.
	if t.apiKey != "" && req.Header.Get("Authorization") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	transport := t.wrapped
	if transport == nil {
		transport = http.DefaultTransport
	}

	resp, err := transport.RoundTrip(req)

	if err == nil {
		slog.Info("[PROPPLY]", "method", req.Method, "path", req.URL.Path, "status_code", resp.StatusCode, "sincestart", time.Since(start))
	}

	return resp, err
}
