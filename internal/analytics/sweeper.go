// internal/analytics/sweeper.go
// Retention sweep for the append-only event log. Events are never deleted by
// application logic except here.
package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/walleyt/walleyt-gallery-go/internal/storage"
)

// Sweeper periodically deletes analytics events older than the retention
// window. Retention is a coarse policy, not a hard real-time guarantee.
type Sweeper struct {
	store     storage.Store
	retention time.Duration
	interval  time.Duration
}

// NewSweeper creates a Sweeper deleting events older than retention, checking
// every interval.
func NewSweeper(store storage.Store, retention, interval time.Duration) *Sweeper {
	return &Sweeper{store: store, retention: retention, interval: interval}
}

// Run sweeps until ctx is cancelled. One sweep happens immediately on start.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)
	removed, err := s.store.DeleteExpiredEvents(ctx, cutoff)
	if err != nil {
		slog.Warn("retention sweep failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("retention sweep completed", "removed", removed, "cutoff", cutoff)
	}
}
