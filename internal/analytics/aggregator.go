// internal/analytics/aggregator.go
// Package analytics implements the event aggregation and reporting engines.
// Each incoming event is appended to the event log and folded into the
// pre-aggregated daily stats row for the current calendar day.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/walleyt/walleyt-gallery-go/internal/event"
	"github.com/walleyt/walleyt-gallery-go/internal/metrics"
	"github.com/walleyt/walleyt-gallery-go/internal/model"
	"github.com/walleyt/walleyt-gallery-go/internal/storage"
)

// ErrInvalidEvent marks validation failures: nothing has been persisted when
// an error wrapping it is returned.
var ErrInvalidEvent = errors.New("invalid analytics event")

// Aggregator converts one incoming event into durable updates to the event
// log, the day's stats row, and (for download/like) the wallpaper's
// cumulative counters.
type Aggregator struct {
	store   storage.Store
	pub     event.Publisher
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewAggregator creates an Aggregator backed by the given store and publisher.
func NewAggregator(store storage.Store, pub event.Publisher) *Aggregator {
	return &Aggregator{
		store:   store,
		pub:     pub,
		metrics: metrics.NewMetrics(),
		now:     time.Now,
	}
}

// RecordEvent validates and ingests one event.
//
// The event insert and the daily stats mutation are separate writes; a
// failure between them leaves the event log as the source of truth for an
// offline rebuild. The daily stats mutation itself runs under the store's
// per-date lock, and first-session detection uses the atomic per-day
// seen-users set, so concurrent session starts cannot double-count a
// visitor.
func (a *Aggregator) RecordEvent(ctx context.Context, in model.EventInput) error {
	eventType, err := model.ParseEventType(in.EventType)
	if err != nil {
		// Fixed label: the raw kind string is client-controlled and would
		// mint unbounded metric series.
		a.metrics.EventIngestTotal.WithLabelValues("invalid", "rejected").Inc()
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if in.UserID == "" || in.SessionID == "" {
		a.metrics.EventIngestTotal.WithLabelValues(in.EventType, "rejected").Inc()
		return fmt.Errorf("%w: userId and sessionId are required", ErrInvalidEvent)
	}

	start := a.now()
	ev := model.AnalyticsEvent{
		ID:          ulid.Make().String(),
		UserID:      in.UserID,
		SessionID:   in.SessionID,
		EventType:   eventType,
		WallpaperID: in.WallpaperID,
		Category:    in.Category,
		Timestamp:   start.UTC(),
	}

	if err := a.store.InsertEvent(ctx, ev); err != nil {
		a.metrics.EventIngestTotal.WithLabelValues(in.EventType, "error").Inc()
		return fmt.Errorf("failed to persist event: %w", err)
	}

	date := model.DateKey(start)

	// First sighting must be decided by the atomic seen-set, not inside the
	// stats mutation, so the signal is exact under concurrency.
	var firstVisit bool
	if eventType == model.EventSessionStart {
		firstVisit, err = a.store.MarkVisitor(ctx, date, in.UserID)
		if err != nil {
			a.metrics.EventIngestTotal.WithLabelValues(in.EventType, "error").Inc()
			return fmt.Errorf("failed to mark visitor: %w", err)
		}
	}

	// Cumulative catalog counters are bumped with atomic increments, outside
	// the stats row lock. A missing wallpaper is a no-op, like the reference.
	var counterMetric storage.CounterMetric
	switch eventType {
	case model.EventDownload:
		counterMetric = storage.MetricDownloads
	case model.EventLike:
		counterMetric = storage.MetricLikes
	}
	if counterMetric != "" && in.WallpaperID != "" {
		if err := a.store.IncrementWallpaperCounter(ctx, in.WallpaperID, counterMetric); err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				a.metrics.EventIngestTotal.WithLabelValues(in.EventType, "error").Inc()
				return fmt.Errorf("failed to increment wallpaper counter: %w", err)
			}
			slog.Debug("counter bump for unknown wallpaper skipped", "wallpaperId", in.WallpaperID)
		}
	}

	_, err = a.store.MutateDailyStats(ctx, date, func(s *model.DailyStats) {
		switch eventType {
		case model.EventSessionStart:
			s.Sessions++
			if firstVisit {
				s.UniqueVisitors++
			}
		case model.EventDownload:
			s.Downloads++
			if in.WallpaperID != "" {
				updateTopWallpapers(s, in.WallpaperID, storage.MetricDownloads)
			}
		case model.EventLike:
			s.Likes++
			if in.WallpaperID != "" {
				updateTopWallpapers(s, in.WallpaperID, storage.MetricLikes)
			}
		case model.EventShare:
			// Recognized but has no counter effect
		}

		if in.Category != "" {
			updateTopCategories(s, in.Category)
		}
	})
	if err != nil {
		a.metrics.EventIngestTotal.WithLabelValues(in.EventType, "error").Inc()
		return fmt.Errorf("failed to update daily stats: %w", err)
	}

	a.metrics.EventIngestTotal.WithLabelValues(in.EventType, "ok").Inc()
	a.metrics.AggregationDuration.WithLabelValues(in.EventType).Observe(time.Since(start).Seconds())

	publishStart := a.now()
	publishStatus := "ok"
	if err := a.pub.PublishAnalyticsEvent(ctx, ev); err != nil {
		publishStatus = "error"
		slog.Warn("failed to publish analytics event", "error", err)
	}
	a.metrics.EventPublishTotal.WithLabelValues(in.EventType, publishStatus).Inc()
	a.metrics.EventPublishDuration.WithLabelValues(in.EventType, publishStatus).Observe(time.Since(publishStart).Seconds())

	return nil
}

func combinedScore(w model.TopWallpaper) int64 {
	return w.Downloads + w.Likes
}

// updateTopWallpapers bumps the entry's metric by 1, inserting it if absent,
// then re-sorts by combined downloads+likes score and truncates to the cap.
// The stable sort keeps equal-score entries in first-touched order, so ties
// are deterministic across calls.
func updateTopWallpapers(s *model.DailyStats, id string, metric storage.CounterMetric) {
	found := false
	for i := range s.TopWallpapers {
		if s.TopWallpapers[i].ID == id {
			switch metric {
			case storage.MetricDownloads:
				s.TopWallpapers[i].Downloads++
			case storage.MetricLikes:
				s.TopWallpapers[i].Likes++
			}
			found = true
			break
		}
	}
	if !found {
		entry := model.TopWallpaper{ID: id}
		switch metric {
		case storage.MetricDownloads:
			entry.Downloads = 1
		case storage.MetricLikes:
			entry.Likes = 1
		}
		s.TopWallpapers = append(s.TopWallpapers, entry)
	}

	sort.SliceStable(s.TopWallpapers, func(i, j int) bool {
		return combinedScore(s.TopWallpapers[i]) > combinedScore(s.TopWallpapers[j])
	})
	if len(s.TopWallpapers) > model.TopWallpapersCap {
		s.TopWallpapers = s.TopWallpapers[:model.TopWallpapersCap]
	}
}

// updateTopCategories is the single-metric analogue for category views.
func updateTopCategories(s *model.DailyStats, name string) {
	found := false
	for i := range s.TopCategories {
		if s.TopCategories[i].Name == name {
			s.TopCategories[i].Views++
			found = true
			break
		}
	}
	if !found {
		s.TopCategories = append(s.TopCategories, model.TopCategory{Name: name, Views: 1})
	}

	sort.SliceStable(s.TopCategories, func(i, j int) bool {
		return s.TopCategories[i].Views > s.TopCategories[j].Views
	})
	if len(s.TopCategories) > model.TopCategoriesCap {
		s.TopCategories = s.TopCategories[:model.TopCategoriesCap]
	}
}
