package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedDelivery struct {
	headers http.Header
	body    []byte
}

func TestRegistryValidation(t *testing.T) {
	r := NewRegistry()

	err := r.Register(&WebhookSubscription{Events: []EventType{EventReportCompleted}})
	assert.ErrorContains(t, err, "URL is required")

	err = r.Register(&WebhookSubscription{URL: "https://example.com/hook"})
	assert.ErrorContains(t, err, "at least one event type")

	err = r.Register(&WebhookSubscription{URL: "https://example.com/hook", Events: []EventType{"report.exploded"}})
	assert.ErrorContains(t, err, "unknown event type")
}

func TestRegisterAndUnregister(t *testing.T) {
	r := NewRegistry()

	sub := &WebhookSubscription{URL: "https://example.com/hook", Events: []EventType{EventReportCompleted, EventRunFailed}}
	require.NoError(t, r.Register(sub))
	assert.NotEmpty(t, sub.ID)
	assert.True(t, sub.Active)

	assert.Len(t, r.GetSubscribers(EventReportCompleted), 1)
	assert.Len(t, r.GetSubscribers(EventRunFailed), 1)
	assert.Empty(t, r.GetSubscribers(EventSyncCompleted))

	require.NoError(t, r.Unregister(sub.ID))
	assert.Empty(t, r.GetSubscribers(EventReportCompleted))
	assert.Error(t, r.Unregister(sub.ID))
}

func TestDispatcherDeliversSignedEvent(t *testing.T) {
	received := make(chan capturedDelivery, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		received <- capturedDelivery{headers: req.Header.Clone(), body: body}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	registry := NewRegistry()
	require.NoError(t, registry.Register(&WebhookSubscription{
		URL:    server.URL,
		Events: []EventType{EventReportCompleted},
		Secret: "shh-sign-me",
	}))

	d := NewDispatcher(registry, 2)
	d.Emit(EventReportCompleted, "run-42", map[string]interface{}{
		"address": "1662 PARK AVENUE",
		"score":   86,
	})

	var got capturedDelivery
	select {
	case got = <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("webhook was not delivered")
	}
	d.Shutdown()

	assert.Equal(t, "application/json", got.headers.Get("Content-Type"))
	assert.Equal(t, string(EventReportCompleted), got.headers.Get("X-Propply-Event-Type"))
	assert.NotEmpty(t, got.headers.Get("X-Propply-Event-ID"))
	assert.Equal(t, "1", got.headers.Get("X-Propply-Delivery-Attempt"))
	assert.Equal(t, "sha256="+SignPayload(got.body, "shh-sign-me"), got.headers.Get("X-Propply-Signature"))

	var event WebhookEvent
	require.NoError(t, json.Unmarshal(got.body, &event))
	assert.Equal(t, EventReportCompleted, event.Type)
	assert.Equal(t, "run-42", event.RunID)
	assert.Equal(t, "/api/v1/compliance", event.Source)
	assert.Equal(t, "1662 PARK AVENUE", event.Data["address"])
}

func TestDispatcherSkipsUnsubscribedEvents(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	registry := NewRegistry()
	require.NoError(t, registry.Register(&WebhookSubscription{
		URL:    server.URL,
		Events: []EventType{EventSyncCompleted},
	}))

	d := NewDispatcher(registry, 1)
	d.Emit(EventReportCompleted, "run-1", map[string]interface{}{})
	d.Shutdown()

	assert.Zero(t, atomic.LoadInt64(&hits))
}

func TestMarkFailedDisablesSubscription(t *testing.T) {
	r := NewRegistry()
	sub := &WebhookSubscription{URL: "https://example.com/hook", Events: []EventType{EventRunFailed}}
	require.NoError(t, r.Register(sub))

	for i := 0; i < 9; i++ {
		r.MarkFailed(sub.ID)
	}
	assert.Len(t, r.GetSubscribers(EventRunFailed), 1)

	r.MarkFailed(sub.ID)
	assert.Empty(t, r.GetSubscribers(EventRunFailed))
}

func TestRedactedHidesSecret(t *testing.T) {
	sub := &WebhookSubscription{ID: "wh-1", URL: "https://example.com/hook", Secret: "shh"}
	red := sub.Redacted()
	assert.Empty(t, red.Secret)
	assert.Equal(t, "shh", sub.Secret)
	assert.Equal(t, sub.URL, red.URL)
}
