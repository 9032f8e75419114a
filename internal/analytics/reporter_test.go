// internal/analytics/reporter_test.go
// Package analytics provides unit tests for the reporting engine.
package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/walleyt/walleyt-gallery-go/internal/model"
	"github.com/walleyt/walleyt-gallery-go/internal/storage"
)

// seedDay writes one historical daily stats row directly to the store.
func seedDay(t *testing.T, store storage.Store, date string, visitors, sessions, downloads, likes int64) {
	t.Helper()
	_, err := store.MutateDailyStats(context.Background(), date, func(s *model.DailyStats) {
		s.UniqueVisitors = visitors
		s.Sessions = sessions
		s.Downloads = downloads
		s.Likes = likes
	})
	if err != nil {
		t.Fatalf("failed to seed day %s: %v", date, err)
	}
}

// TestStatsTotalsMatchTimeline verifies that the range totals equal the sums
// over the timeline points and that days without a row stay absent.
func TestStatsTotalsMatchTimeline(t *testing.T) {
	store := storage.NewMemory()
	rep := NewReporter(store)
	ctx := context.Background()

	now := time.Now()
	// Two days inside the range with a gap between them
	seedDay(t, store, model.DateKey(now.AddDate(0, 0, -1)), 5, 8, 12, 3)
	seedDay(t, store, model.DateKey(now.AddDate(0, 0, -3)), 2, 2, 4, 1)
	// One day outside the range, must be excluded
	seedDay(t, store, model.DateKey(now.AddDate(0, 0, -40)), 100, 100, 100, 100)

	report, err := rep.Stats(ctx, 7)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	// Only the seeded rows inside the range; missing days are not zero-filled
	if len(report.Timeline) != 2 {
		t.Fatalf("timeline has %d points, want 2", len(report.Timeline))
	}

	var visitors, sessions int64
	for _, p := range report.Timeline {
		visitors += p.Visitors
		sessions += p.Sessions
	}
	if report.Totals.UniqueVisitors != visitors {
		t.Errorf("totals visitors = %d, timeline sum = %d", report.Totals.UniqueVisitors, visitors)
	}
	if report.Totals.Sessions != sessions {
		t.Errorf("totals sessions = %d, timeline sum = %d", report.Totals.Sessions, sessions)
	}
	if report.Totals.Downloads != 16 || report.Totals.Likes != 4 {
		t.Errorf("totals = %+v, want downloads 16 likes 4", report.Totals)
	}

	// Timeline is ordered oldest to newest
	for i := 1; i < len(report.Timeline); i++ {
		if report.Timeline[i-1].Date >= report.Timeline[i].Date {
			t.Errorf("timeline out of order: %s before %s", report.Timeline[i-1].Date, report.Timeline[i].Date)
		}
	}
}

// TestStatsIsReadStable verifies that calling Stats repeatedly does not
// change the report.
func TestStatsIsReadStable(t *testing.T) {
	store := storage.NewMemory()
	rep := NewReporter(store)
	ctx := context.Background()

	seedDay(t, store, model.DateKey(time.Now()), 3, 4, 5, 6)

	first, err := rep.Stats(ctx, 7)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	second, err := rep.Stats(ctx, 7)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	if first.Totals != second.Totals || first.Today != second.Today {
		t.Errorf("repeated Stats() changed the report: %+v vs %+v", first, second)
	}
}

// TestStatsTopWallpapersRanking verifies the catalog-wide cumulative ranking
// with likes as the tie-break.
func TestStatsTopWallpapersRanking(t *testing.T) {
	store := storage.NewMemory()
	rep := NewReporter(store)
	ctx := context.Background()

	seed := []model.Wallpaper{
		{ID: "a", Title: "A", Filename: "a.jpg", Category: "X", Downloads: 10, Likes: 1},
		{ID: "b", Title: "B", Filename: "b.jpg", Category: "X", Downloads: 10, Likes: 5},
		{ID: "c", Title: "C", Filename: "c.jpg", Category: "X", Downloads: 30, Likes: 0},
	}
	for _, w := range seed {
		if err := store.CreateWallpaper(ctx, w); err != nil {
			t.Fatalf("CreateWallpaper(%s) error = %v", w.ID, err)
		}
	}

	report, err := rep.Stats(ctx, 7)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	want := []string{"c", "b", "a"}
	if len(report.TopWallpapers) != len(want) {
		t.Fatalf("top wallpapers = %d entries, want %d", len(report.TopWallpapers), len(want))
	}
	for i, id := range want {
		if report.TopWallpapers[i].ID != id {
			t.Errorf("top wallpapers[%d] = %s, want %s", i, report.TopWallpapers[i].ID, id)
		}
	}
	if report.TopWallpapers[0].Thumbnail != "c.jpg" {
		t.Errorf("thumbnail = %q, want the filename", report.TopWallpapers[0].Thumbnail)
	}
}

// TestStatsTopCategoriesTruncated verifies that only today's five busiest
// categories are reported.
func TestStatsTopCategoriesTruncated(t *testing.T) {
	store := storage.NewMemory()
	rep := NewReporter(store)
	ctx := context.Background()

	_, err := store.MutateDailyStats(ctx, model.DateKey(time.Now()), func(s *model.DailyStats) {
		for i := 0; i < 8; i++ {
			s.TopCategories = append(s.TopCategories, model.TopCategory{
				Name:  string(rune('a' + i)),
				Views: int64(100 - i),
			})
		}
	})
	if err != nil {
		t.Fatalf("MutateDailyStats() error = %v", err)
	}

	report, err := rep.Stats(ctx, 7)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if len(report.TopCategories) != 5 {
		t.Errorf("top categories = %d entries, want 5", len(report.TopCategories))
	}
	if report.TopCategories[0].Name != "a" {
		t.Errorf("top category = %q, want a", report.TopCategories[0].Name)
	}
}

// TestWallpaperStats verifies per-wallpaper counts come from the raw event
// log and respect the time window.
func TestWallpaperStats(t *testing.T) {
	store := storage.NewMemory()
	rep := NewReporter(store)
	ctx := context.Background()

	now := time.Now().UTC()
	events := []model.AnalyticsEvent{
		{ID: "e1", UserID: "u1", SessionID: "s1", EventType: model.EventDownload, WallpaperID: "w1", Timestamp: now},
		{ID: "e2", UserID: "u2", SessionID: "s2", EventType: model.EventDownload, WallpaperID: "w1", Timestamp: now.Add(-time.Hour)},
		{ID: "e3", UserID: "u1", SessionID: "s1", EventType: model.EventLike, WallpaperID: "w1", Timestamp: now},
		// Outside the 7-day window
		{ID: "e4", UserID: "u1", SessionID: "s1", EventType: model.EventDownload, WallpaperID: "w1", Timestamp: now.AddDate(0, 0, -10)},
		// Different wallpaper
		{ID: "e5", UserID: "u1", SessionID: "s1", EventType: model.EventDownload, WallpaperID: "w2", Timestamp: now},
	}
	for _, ev := range events {
		if err := store.InsertEvent(ctx, ev); err != nil {
			t.Fatalf("InsertEvent(%s) error = %v", ev.ID, err)
		}
	}

	stats, err := rep.WallpaperStats(ctx, "w1", 7)
	if err != nil {
		t.Fatalf("WallpaperStats() error = %v", err)
	}
	if stats.Downloads != 2 || stats.Likes != 1 {
		t.Errorf("stats = %+v, want downloads 2 likes 1", stats)
	}

	// Read-only: a second call returns the same counts
	again, err := rep.WallpaperStats(ctx, "w1", 7)
	if err != nil {
		t.Fatalf("WallpaperStats() error = %v", err)
	}
	if *again != *stats {
		t.Errorf("repeated WallpaperStats() changed: %+v vs %+v", again, stats)
	}
}
