package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCloudEventLiftsRunID(t *testing.T) {
	ce := NewCloudEvent(EventRunStarted, "/api/v1/compliance", "1662 PARK AVENUE", map[string]interface{}{
		"run_id":  "run-abc",
		"address": "1662 PARK AVENUE",
	})

	assert.Equal(t, "1.0", ce.SpecVersion)
	assert.Equal(t, EventRunStarted, ce.Type)
	assert.Equal(t, "run-abc", ce.RunID)
	assert.NotEmpty(t, ce.ID)
	assert.WithinDuration(t, time.Now(), ce.Time, 5*time.Second)
}

func TestSSEFormat(t *testing.T) {
	ce := NewCloudEvent(EventRunCompleted, "/api/v1/compliance", "subj", map[string]interface{}{"score": 86})

	out, err := ce.SSEFormat()
	require.NoError(t, err)
	assert.Contains(t, string(out), "event: "+EventRunCompleted+"\n")
	assert.Contains(t, string(out), "data: {")
	assert.Contains(t, string(out), "id: "+ce.ID)
}

func TestSubscribeByType(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(EventRunCompleted)
	defer bus.Unsubscribe(ch)

	bus.Emit(EventRunStarted, "src", "subj", map[string]interface{}{})
	bus.Emit(EventRunCompleted, "src", "subj", map[string]interface{}{"run_id": "run-1"})

	select {
	case got := <-ch:
		assert.Equal(t, EventRunCompleted, got.Type)
		assert.Equal(t, "run-1", got.RunID)
	case <-time.After(time.Second):
		t.Fatal("expected a run.completed event")
	}

	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra event: %s", extra.Type)
	default:
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	bus.Emit(EventRunStarted, "src", "subj", map[string]interface{}{})
	bus.Emit(EventRunDomainCompleted, "src", "subj", map[string]interface{}{})

	assert.Equal(t, EventRunStarted, (<-ch).Type)
	assert.Equal(t, EventRunDomainCompleted, (<-ch).Type)
}

func TestPublishSkipsFullSubscriber(t *testing.T) {
	bus := NewEventBus()
	bus.bufferSize = 1
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	// Second publish must not block even though nobody is draining.
	done := make(chan struct{})
	go func() {
		bus.Emit(EventRunStarted, "src", "subj", map[string]interface{}{})
		bus.Emit(EventRunDomainCompleted, "src", "subj", map[string]interface{}{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	assert.Equal(t, EventRunStarted, (<-ch).Type)
}

func TestSubscriberCount(t *testing.T) {
	bus := NewEventBus()
	assert.Equal(t, 0, bus.SubscriberCount())

	a := bus.Subscribe()
	b := bus.Subscribe(EventRunFailed)
	assert.Equal(t, 2, bus.SubscriberCount())

	bus.Unsubscribe(a)
	bus.Unsubscribe(b)
	assert.Equal(t, 0, bus.SubscriberCount())
}
