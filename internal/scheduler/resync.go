// Package scheduler keeps persisted properties fresh. NYC Open Data updates
// daily, so a property synced more than a day ago is re-run and re-persisted
// in the background without an API caller having to ask.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/propply/backend/internal/database"
)

// Store lists properties whose last successful sync predates a cutoff.
// *database.SupabaseClient satisfies it.
type Store interface {
	ListStaleProperties(ctx context.Context, cutoff time.Time, limit int) ([]database.NYCProperty, error)
}

// Syncer re-runs the compliance pipeline for one property and persists
// the result.
type Syncer interface {
	Resync(ctx context.Context, prop database.NYCProperty) error
}

// Config holds the configuration for the resync scheduler.
type Config struct {
	// Interval between sweeps
	Interval time.Duration

	// StaleThreshold: properties synced longer ago than this get re-synced
	StaleThreshold time.Duration

	// BatchSize: maximum properties re-synced per sweep
	BatchSize int

	// RunTimeout bounds each property's pipeline run
	RunTimeout time.Duration
}

// DefaultConfig returns sensible defaults for the resync scheduler.
func DefaultConfig() Config {
	return Config{
		Interval:       1 * time.Hour,
		StaleThreshold: 24 * time.Hour,
		BatchSize:      10,
		RunTimeout:     2 * time.Minute,
	}
}

// ResyncScheduler periodically re-syncs stale properties.
//
// The scheduler runs as a background goroutine. Each sweep picks up to
// BatchSize properties whose last_synced_at is older than StaleThreshold
// and re-runs them sequentially — the open-data portal throttles by
// source, so fanning a sweep out in parallel would just trade scheduler
// time for rate-limit retries.
type ResyncScheduler struct {
	mu     sync.Mutex
	store  Store
	syncer Syncer
	config Config
	stopCh chan struct{}
	logger *log.Logger
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = def.StaleThreshold
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = def.RunTimeout
	}
	return cfg
}

// NewResyncScheduler creates and starts a new resync scheduler.
func NewResyncScheduler(store Store, syncer Syncer, cfg Config) *ResyncScheduler {
	rs := &ResyncScheduler{
		store:  store,
		syncer: syncer,
		config: withDefaults(cfg),
		stopCh: make(chan struct{}),
		logger: log.New(log.Writer(), "[RESYNC-SCHED] ", log.LstdFlags),
	}

	go rs.run()
	return rs
}

// Stop gracefully stops the resync scheduler.
func (rs *ResyncScheduler) Stop() {
	close(rs.stopCh)
}

// run is the main loop that periodically sweeps for stale properties.
func (rs *ResyncScheduler) run() {
	ticker := time.NewTicker(rs.config.Interval)
	defer ticker.Stop()

	rs.logger.Printf("Started resync scheduler (interval=%s, stale_after=%s, batch=%d)",
		rs.config.Interval, rs.config.StaleThreshold, rs.config.BatchSize)

	for {
		select {
		case <-ticker.C:
			rs.sweep(context.Background())
		case <-rs.stopCh:
			rs.logger.Println("Resync scheduler stopped")
			return
		}
	}
}

// sweep re-syncs one batch of stale properties.
func (rs *ResyncScheduler) sweep(ctx context.Context) (synced, failed int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	cutoff := time.Now().Add(-rs.config.StaleThreshold)
	stale, err := rs.store.ListStaleProperties(ctx, cutoff, rs.config.BatchSize)
	if err != nil {
		rs.logger.Printf("❌ Failed to list stale properties: %v", err)
		return 0, 0
	}
	if len(stale) == 0 {
		return 0, 0
	}

	rs.logger.Printf("Sweep found %d stale properties (cutoff=%s)", len(stale), cutoff.Format(time.RFC3339))

	for _, prop := range stale {
		select {
		case <-rs.stopCh:
			rs.logger.Printf("Sweep interrupted by shutdown after %d/%d", synced+failed, len(stale))
			return synced, failed
		default:
		}

		runCtx, cancel := context.WithTimeout(ctx, rs.config.RunTimeout)
		err := rs.syncer.Resync(runCtx, prop)
		cancel()

		if err != nil {
			failed++
			rs.logger.Printf("⚠️ Resync failed for %s (%s): %v", prop.PropertyID, prop.Address, err)
			continue
		}
		synced++
		rs.logger.Printf("✅ Resynced %s (%s)", prop.PropertyID, prop.Address)
	}

	rs.logger.Printf("Sweep complete: %d synced, %d failed", synced, failed)
	return synced, failed
}
