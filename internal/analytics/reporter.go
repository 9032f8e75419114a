// internal/analytics/reporter.go
// Reporting engine: read-only aggregate queries over daily stats rows, raw
// events, and the catalog's cumulative counters.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/walleyt/walleyt-gallery-go/internal/model"
	"github.com/walleyt/walleyt-gallery-go/internal/storage"
)

// DefaultReportDays is the reporting range used when the caller does not
// specify one.
const DefaultReportDays = 30

// Reporter answers aggregate queries without mutating state, with one
// exception: fetching "today" lazily creates the day's row, the same as the
// ingestion path.
type Reporter struct {
	store storage.Store
	now   func() time.Time
}

// NewReporter creates a Reporter backed by the given store.
func NewReporter(store storage.Store) *Reporter {
	return &Reporter{store: store, now: time.Now}
}

// Stats builds the dashboard report for the inclusive range
// [today-daysBack, today].
//
// Days with no stored row are absent from the timeline rather than
// zero-filled, matching the totals which are summed over the same rows.
// The topWallpapers field is the catalog-wide cumulative ranking (all-time
// downloads, likes as tie-break) and is unrelated to the per-day capped
// leaderboard stored inside each daily stats row; topCategories comes from
// today's row only.
func (r *Reporter) Stats(ctx context.Context, daysBack int) (*model.StatsReport, error) {
	if daysBack <= 0 {
		daysBack = DefaultReportDays
	}

	now := r.now()
	startDate := model.DateKey(now.AddDate(0, 0, -daysBack))

	days, err := r.store.ListDailyStatsSince(ctx, startDate)
	if err != nil {
		return nil, fmt.Errorf("failed to read daily stats range: %w", err)
	}

	report := &model.StatsReport{
		Timeline:      make([]model.TimelinePoint, 0, len(days)),
		TopWallpapers: []model.RankedWallpaper{},
		TopCategories: []model.TopCategory{},
	}

	for _, day := range days {
		report.Totals.UniqueVisitors += day.UniqueVisitors
		report.Totals.Sessions += day.Sessions
		report.Totals.Downloads += day.Downloads
		report.Totals.Likes += day.Likes
		report.Timeline = append(report.Timeline, model.TimelinePoint{
			Date:     day.Date,
			Visitors: day.UniqueVisitors,
			Sessions: day.Sessions,
		})
	}

	// Fetch-or-create today's live row, same as the ingestion path
	today, err := r.store.MutateDailyStats(ctx, model.DateKey(now), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read today's stats: %w", err)
	}
	report.Today = model.StatsTotals{
		UniqueVisitors: today.UniqueVisitors,
		Sessions:       today.Sessions,
		Downloads:      today.Downloads,
		Likes:          today.Likes,
	}

	topCategories := today.TopCategories
	if len(topCategories) > 5 {
		topCategories = topCategories[:5]
	}
	report.TopCategories = append(report.TopCategories, topCategories...)

	top, err := r.store.TopWallpapersByDownloads(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to read top wallpapers: %w", err)
	}
	for _, w := range top {
		report.TopWallpapers = append(report.TopWallpapers, model.RankedWallpaper{
			ID:        w.ID,
			Title:     w.Title,
			Thumbnail: w.Filename,
			Downloads: w.Downloads,
			Likes:     w.Likes,
		})
	}

	return report, nil
}

// WallpaperStats counts download and like events for one wallpaper within
// now - daysBack*24h. These are exact counts over the raw event log, not the
// aggregate; acceptable because the query is comparatively rare.
func (r *Reporter) WallpaperStats(ctx context.Context, id string, daysBack int) (*model.WallpaperStats, error) {
	if daysBack <= 0 {
		daysBack = DefaultReportDays
	}
	since := r.now().Add(-time.Duration(daysBack) * 24 * time.Hour)

	downloads, err := r.store.CountEvents(ctx, id, model.EventDownload, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count downloads: %w", err)
	}
	likes, err := r.store.CountEvents(ctx, id, model.EventLike, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}

	return &model.WallpaperStats{Downloads: downloads, Likes: likes}, nil
}
