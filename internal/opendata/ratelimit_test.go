package opendata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRate(t *testing.T) {
	assert.Equal(t, 2.0, DefaultRate(Credentials{}))
	assert.Equal(t, 10.0, DefaultRate(Credentials{AppToken: "tok"}))
	assert.Equal(t, 10.0, DefaultRate(Credentials{KeyID: "id", KeySecret: "sec"}))
}

func TestRateLimiterBurstPassesImmediately(t *testing.T) {
	rl := NewRateLimiter(10)

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRateLimiterParksWhenDrained(t *testing.T) {
	rl := NewRateLimiter(50)
	for i := 0; i < 50; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestRateLimiterHonorsContext(t *testing.T) {
	rl := NewRateLimiter(1)
	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(100)
	for i := 0; i < 100; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}

	time.Sleep(50 * time.Millisecond)

	// Roughly five tokens accrued while sleeping.
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 30*time.Millisecond)
}
