package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_, ok := c.Get(ctx, "geosearch:missing")
	assert.False(t, ok)

	c.Set(ctx, "geosearch:1662 park ave", `{"bin":"1058037"}`, time.Hour)
	val, ok := c.Get(ctx, "geosearch:1662 park ave")
	assert.True(t, ok)
	assert.Equal(t, `{"bin":"1058037"}`, val)
}

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "key", "value", 10*time.Minute)

	now = now.Add(9 * time.Minute)
	_, ok := c.Get(ctx, "key")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(ctx, "key")
	assert.False(t, ok)
}

func TestMemoryCacheNoTTL(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "key", "value", 0)

	now = now.Add(24 * time.Hour * 365)
	val, ok := c.Get(ctx, "key")
	assert.True(t, ok)
	assert.Equal(t, "value", val)
}
