// internal/analytics/aggregator_test.go
// Package analytics provides unit tests for the event aggregation engine.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/walleyt/walleyt-gallery-go/internal/event"
	"github.com/walleyt/walleyt-gallery-go/internal/metrics"
	"github.com/walleyt/walleyt-gallery-go/internal/model"
	"github.com/walleyt/walleyt-gallery-go/internal/storage"
)

func newTestAggregator() (*Aggregator, storage.Store) {
	store := storage.NewMemory()
	return NewAggregator(store, event.NewNoopPublisher()), store
}

func seedWallpaper(t *testing.T, store storage.Store, id, category string) {
	t.Helper()
	err := store.CreateWallpaper(context.Background(), model.Wallpaper{
		ID:       id,
		Title:    "Test " + id,
		Filename: "https://cdn.example.com/" + id + ".jpg",
		Category: category,
	})
	if err != nil {
		t.Fatalf("failed to seed wallpaper %s: %v", id, err)
	}
}

// TestRecordEventAggregation verifies that downloads and likes fold into the
// daily stats row, the day's leaderboards, and the catalog counters.
func TestRecordEventAggregation(t *testing.T) {
	agg, store := newTestAggregator()
	ctx := context.Background()
	seedWallpaper(t, store, "w1", "Nature")

	for i := 0; i < 3; i++ {
		in := model.EventInput{
			UserID:      "u1",
			SessionID:   "s1",
			EventType:   "download",
			WallpaperID: "w1",
			Category:    "Nature",
		}
		if err := agg.RecordEvent(ctx, in); err != nil {
			t.Fatalf("RecordEvent(download) error = %v", err)
		}
	}
	if err := agg.RecordEvent(ctx, model.EventInput{
		UserID:      "u1",
		SessionID:   "s1",
		EventType:   "like",
		WallpaperID: "w1",
		Category:    "Nature",
	}); err != nil {
		t.Fatalf("RecordEvent(like) error = %v", err)
	}

	date := model.DateKey(time.Now())
	stats, err := store.GetDailyStats(ctx, date)
	if err != nil {
		t.Fatalf("GetDailyStats() error = %v", err)
	}

	if stats.Downloads != 3 {
		t.Errorf("daily downloads = %d, want 3", stats.Downloads)
	}
	if stats.Likes != 1 {
		t.Errorf("daily likes = %d, want 1", stats.Likes)
	}
	if len(stats.TopWallpapers) != 1 {
		t.Fatalf("top wallpapers = %d entries, want 1", len(stats.TopWallpapers))
	}
	if top := stats.TopWallpapers[0]; top.ID != "w1" || top.Downloads != 3 || top.Likes != 1 {
		t.Errorf("top wallpaper = %+v, want {w1 3 1}", top)
	}
	if len(stats.TopCategories) != 1 || stats.TopCategories[0].Name != "Nature" {
		t.Fatalf("top categories = %+v, want [Nature]", stats.TopCategories)
	}
	// Each of the four events carried the category
	if stats.TopCategories[0].Views != 4 {
		t.Errorf("category views = %d, want 4", stats.TopCategories[0].Views)
	}

	// Cumulative catalog counters move with the aggregate
	w, err := store.GetWallpaper(ctx, "w1")
	if err != nil {
		t.Fatalf("GetWallpaper() error = %v", err)
	}
	if w.Downloads != 3 || w.Likes != 1 {
		t.Errorf("catalog counters = downloads %d likes %d, want 3 and 1", w.Downloads, w.Likes)
	}
}

// TestRecordEventUniqueVisitors verifies that repeated session starts from
// the same user count sessions but not unique visitors.
func TestRecordEventUniqueVisitors(t *testing.T) {
	agg, store := newTestAggregator()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		in := model.EventInput{
			UserID:    "u1",
			SessionID: fmt.Sprintf("s%d", i),
			EventType: "session_start",
		}
		if err := agg.RecordEvent(ctx, in); err != nil {
			t.Fatalf("RecordEvent(session_start) error = %v", err)
		}
	}
	if err := agg.RecordEvent(ctx, model.EventInput{
		UserID:    "u2",
		SessionID: "s9",
		EventType: "session_start",
	}); err != nil {
		t.Fatalf("RecordEvent(session_start) error = %v", err)
	}

	stats, err := store.GetDailyStats(ctx, model.DateKey(time.Now()))
	if err != nil {
		t.Fatalf("GetDailyStats() error = %v", err)
	}
	if stats.Sessions != 3 {
		t.Errorf("sessions = %d, want 3", stats.Sessions)
	}
	if stats.UniqueVisitors != 2 {
		t.Errorf("unique visitors = %d, want 2", stats.UniqueVisitors)
	}
}

// TestRecordEventLeaderboardCap verifies that the per-day wallpaper
// leaderboard never exceeds its cap and keeps the highest-scoring entries.
func TestRecordEventLeaderboardCap(t *testing.T) {
	agg, store := newTestAggregator()
	ctx := context.Background()

	// 25 distinct wallpapers; give w0 an extra download so it must survive
	// the truncation.
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("w%d", i)
		seedWallpaper(t, store, id, "Misc")
		if err := agg.RecordEvent(ctx, model.EventInput{
			UserID:      "u1",
			SessionID:   "s1",
			EventType:   "download",
			WallpaperID: id,
		}); err != nil {
			t.Fatalf("RecordEvent() error = %v", err)
		}
	}
	if err := agg.RecordEvent(ctx, model.EventInput{
		UserID:      "u1",
		SessionID:   "s1",
		EventType:   "download",
		WallpaperID: "w0",
	}); err != nil {
		t.Fatalf("RecordEvent() error = %v", err)
	}

	stats, err := store.GetDailyStats(ctx, model.DateKey(time.Now()))
	if err != nil {
		t.Fatalf("GetDailyStats() error = %v", err)
	}
	if len(stats.TopWallpapers) != model.TopWallpapersCap {
		t.Errorf("leaderboard size = %d, want %d", len(stats.TopWallpapers), model.TopWallpapersCap)
	}
	if stats.TopWallpapers[0].ID != "w0" || stats.TopWallpapers[0].Downloads != 2 {
		t.Errorf("leaderboard head = %+v, want w0 with 2 downloads", stats.TopWallpapers[0])
	}
}

// TestRecordEventRejectsInvalid verifies that invalid events are rejected
// before anything is persisted.
func TestRecordEventRejectsInvalid(t *testing.T) {
	agg, store := newTestAggregator()
	ctx := context.Background()

	m := metrics.NewMetrics()
	invalidBefore := testutil.ToFloat64(m.EventIngestTotal.WithLabelValues("invalid", "rejected"))

	cases := []struct {
		name string
		in   model.EventInput
	}{
		{"unknown type", model.EventInput{UserID: "u1", SessionID: "s1", EventType: "hover"}},
		{"missing user", model.EventInput{SessionID: "s1", EventType: "download"}},
		{"missing session", model.EventInput{UserID: "u1", EventType: "download"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := agg.RecordEvent(ctx, tc.in)
			if !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("RecordEvent() error = %v, want ErrInvalidEvent", err)
			}
		})
	}

	// Unrecognized kinds are counted under a fixed label; the raw
	// client-supplied string must not become a label value
	invalidAfter := testutil.ToFloat64(m.EventIngestTotal.WithLabelValues("invalid", "rejected"))
	if got := invalidAfter - invalidBefore; got != 1 {
		t.Errorf("invalid-kind rejections counted %v, want 1", got)
	}
	if v := testutil.ToFloat64(m.EventIngestTotal.WithLabelValues("hover", "rejected")); v != 0 {
		t.Errorf("raw event kind minted its own metric series (count %v)", v)
	}

	// Nothing may have been written
	if _, err := store.GetDailyStats(ctx, model.DateKey(time.Now())); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("daily stats exist after rejected events, err = %v", err)
	}
	n, err := store.CountEvents(ctx, "", model.EventDownload, time.Time{})
	if err != nil {
		t.Fatalf("CountEvents() error = %v", err)
	}
	if n != 0 {
		t.Errorf("event log has %d entries after rejected events, want 0", n)
	}
}

// TestRecordEventUnknownWallpaper verifies that a download for a wallpaper
// missing from the catalog still counts in the aggregate.
func TestRecordEventUnknownWallpaper(t *testing.T) {
	agg, store := newTestAggregator()
	ctx := context.Background()

	if err := agg.RecordEvent(ctx, model.EventInput{
		UserID:      "u1",
		SessionID:   "s1",
		EventType:   "download",
		WallpaperID: "ghost",
	}); err != nil {
		t.Fatalf("RecordEvent() error = %v", err)
	}

	stats, err := store.GetDailyStats(ctx, model.DateKey(time.Now()))
	if err != nil {
		t.Fatalf("GetDailyStats() error = %v", err)
	}
	if stats.Downloads != 1 {
		t.Errorf("daily downloads = %d, want 1", stats.Downloads)
	}
	if len(stats.TopWallpapers) != 1 || stats.TopWallpapers[0].ID != "ghost" {
		t.Errorf("leaderboard = %+v, want [ghost]", stats.TopWallpapers)
	}
}

// TestRecordEventShareNoCounterEffect verifies that share events count for
// categories only.
func TestRecordEventShareNoCounterEffect(t *testing.T) {
	agg, store := newTestAggregator()
	ctx := context.Background()

	if err := agg.RecordEvent(ctx, model.EventInput{
		UserID:      "u1",
		SessionID:   "s1",
		EventType:   "share",
		WallpaperID: "w1",
		Category:    "Nature",
	}); err != nil {
		t.Fatalf("RecordEvent(share) error = %v", err)
	}

	stats, err := store.GetDailyStats(ctx, model.DateKey(time.Now()))
	if err != nil {
		t.Fatalf("GetDailyStats() error = %v", err)
	}
	if stats.Downloads != 0 || stats.Likes != 0 || stats.Sessions != 0 {
		t.Errorf("share event moved counters: %+v", stats)
	}
	if len(stats.TopWallpapers) != 0 {
		t.Errorf("share event entered the wallpaper leaderboard: %+v", stats.TopWallpapers)
	}
	if len(stats.TopCategories) != 1 || stats.TopCategories[0].Views != 1 {
		t.Errorf("share event should count one category view, got %+v", stats.TopCategories)
	}
}

// TestRecordEventCategoryCap verifies the category leaderboard truncation.
func TestRecordEventCategoryCap(t *testing.T) {
	agg, store := newTestAggregator()
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		if err := agg.RecordEvent(ctx, model.EventInput{
			UserID:    "u1",
			SessionID: "s1",
			EventType: "share",
			Category:  fmt.Sprintf("cat-%d", i),
		}); err != nil {
			t.Fatalf("RecordEvent() error = %v", err)
		}
	}

	stats, err := store.GetDailyStats(ctx, model.DateKey(time.Now()))
	if err != nil {
		t.Fatalf("GetDailyStats() error = %v", err)
	}
	if len(stats.TopCategories) != model.TopCategoriesCap {
		t.Errorf("category leaderboard size = %d, want %d", len(stats.TopCategories), model.TopCategoriesCap)
	}
}
