package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream unavailable")

func testConfig(name string) *Config {
	return &Config{
		Name:        name,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     50 * time.Millisecond,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := New(testConfig("hpd"))

	for i := 0; i < 10; i++ {
		err := cb.Execute(func() error { return nil })
		require.NoError(t, err)
	}

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(10), cb.Counts().TotalSuccesses)
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cb := New(testConfig("dob"))

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return errUpstream })
		assert.ErrorIs(t, err, errUpstream)
	}

	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerSuccessResetsConsecutiveFailures(t *testing.T) {
	cb := New(testConfig("elevator"))

	cb.Execute(func() error { return errUpstream })
	cb.Execute(func() error { return errUpstream })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return errUpstream })
	cb.Execute(func() error { return errUpstream })

	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenAfterTimeout(t *testing.T) {
	cb := New(testConfig("electrical"))

	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return errUpstream })
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	// Two successful probes close the circuit again.
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := New(testConfig("fdny"))

	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return errUpstream })
	}
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	cb.Execute(func() error { return errUpstream })
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerHalfOpenLimitsProbes(t *testing.T) {
	cfg := testConfig("boiler")
	cfg.MaxRequests = 1
	cb := New(cfg)

	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return errUpstream })
	}
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	done := make(chan struct{})
	go func() {
		cb.Execute(func() error {
			<-done
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrTooManyRequests)
	close(done)
}

func TestBreakerStateChangeCallback(t *testing.T) {
	var transitions []string
	cfg := testConfig("coo")
	cfg.OnStateChange = func(name string, from State, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}
	cb := New(cfg)

	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return errUpstream })
	}

	require.Len(t, transitions, 1)
	assert.Equal(t, "CLOSED->OPEN", transitions[0])
}

func TestCountsFailureRatio(t *testing.T) {
	c := Counts{}
	assert.Equal(t, 0.0, c.FailureRatio())

	c.onFailure()
	c.onFailure()
	c.onSuccess()
	c.onFailure()
	assert.InDelta(t, 0.75, c.FailureRatio(), 0.001)
	assert.Equal(t, uint32(1), c.ConsecutiveFailures)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "HALF_OPEN", StateHalfOpen.String())
	assert.Equal(t, "UNKNOWN", State(99).String())
}

func TestManagerReturnsSameBreaker(t *testing.T) {
	m := NewManager(testConfig(""))

	a := m.Get("hpd")
	b := m.Get("hpd")
	c := m.Get("dob")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, "hpd", a.Name())
	assert.Equal(t, "dob", c.Name())
}

func TestManagerStats(t *testing.T) {
	m := NewManager(testConfig(""))

	m.Get("hpd").Execute(func() error { return nil })
	m.Get("dob").Execute(func() error { return errUpstream })

	stats := m.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "CLOSED", stats["hpd"].State)
	assert.Equal(t, uint32(1), stats["hpd"].Counts.TotalSuccesses)
	assert.Equal(t, uint32(1), stats["dob"].Counts.TotalFailures)
}
