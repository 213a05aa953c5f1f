package opendata

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a process-wide token bucket gating every upstream request.
// NYC Open Data throttles anonymous clients hard, so the bucket runs at
// 10 req/s when an app token is configured and 2 req/s without one.
type RateLimiter struct {
	mu     sync.Mutex
	tokens float64
	rate   float64 // tokens added per second
	burst  float64
	last   time.Time
}

// maxPark is the longest a caller parks in one wait slice before rechecking.
const maxPark = time.Second

// NewRateLimiter creates a bucket replenished at ratePerSec, with a burst of
// one second's worth of tokens.
func NewRateLimiter(ratePerSec float64) *RateLimiter {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &RateLimiter{
		tokens: ratePerSec,
		rate:   ratePerSec,
		burst:  ratePerSec,
		last:   time.Now(),
	}
}

// DefaultRate returns the request rate the credentials entitle us to.
func DefaultRate(creds Credentials) float64 {
	if creds.AppToken != "" || creds.KeyID != "" {
		return 10
	}
	return 2
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait, ok := rl.take()
		if ok {
			return nil
		}
		if wait > maxPark {
			wait = maxPark
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// take consumes one token if available, otherwise reports how long until the
// next token accrues.
func (rl *RateLimiter) take() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.tokens += now.Sub(rl.last).Seconds() * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.last = now

	if rl.tokens >= 1 {
		rl.tokens--
		return 0, true
	}
	deficit := 1 - rl.tokens
	return time.Duration(deficit / rl.rate * float64(time.Second)), false
}
