// internal/model/walleyt.go
// Package model defines the data structures used throughout the gallery service.
// These structures represent the core domain objects for wallpapers, analytics
// events, and the pre-aggregated daily statistics.
package model

import (
	"fmt"
	"time"
)

// Wallpaper represents a catalog item.
// Its likes and downloads counters are cumulative across all time, distinct
// from any single day's leaderboard inside DailyStats.
// This corresponds to the wallpapers table in storage.
type Wallpaper struct {
	ID         string    `json:"id" db:"id"`                 // Unique wallpaper identifier
	Title      string    `json:"title" db:"title"`           // Display title
	Filename   string    `json:"filename" db:"filename"`     // Image URL
	Category   string    `json:"category" db:"category"`     // Category label
	Tags       []string  `json:"tags" db:"tags"`             // Free-form tags
	Resolution string    `json:"resolution" db:"resolution"` // e.g. HD, 4K, 8K
	Likes      int64     `json:"likes" db:"likes"`           // Cumulative likes
	Downloads  int64     `json:"downloads" db:"downloads"`   // Cumulative downloads
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// EventType identifies one of the recognized analytics event kinds.
type EventType string

const (
	EventSessionStart EventType = "session_start"
	EventDownload     EventType = "download"
	EventLike         EventType = "like"
	EventShare        EventType = "share"
)

// ParseEventType validates a raw event kind string.
// Unrecognized kinds are rejected at the boundary before anything is persisted.
func ParseEventType(s string) (EventType, error) {
	switch EventType(s) {
	case EventSessionStart, EventDownload, EventLike, EventShare:
		return EventType(s), nil
	}
	return "", fmt.Errorf("unrecognized event type %q", s)
}

// AnalyticsEvent is a single user action, append-only.
// Events are never mutated; they are the source of truth for rebuilding
// aggregates and are removed only by the retention sweep.
// This corresponds to the analytics_events table in storage.
type AnalyticsEvent struct {
	ID          string    `json:"id" db:"id"`                   // ULID, time-ordered
	UserID      string    `json:"userId" db:"user_id"`          // Browser fingerprint hash
	SessionID   string    `json:"sessionId" db:"session_id"`    // Per page-load session
	EventType   EventType `json:"eventType" db:"event_type"`    // One of the four kinds
	WallpaperID string    `json:"wallpaperId,omitempty" db:"wallpaper_id"` // Subject, for download/like
	Category    string    `json:"category,omitempty" db:"category"`        // Denormalized category label
	Timestamp   time.Time `json:"timestamp" db:"occurred_at"`
}

// TopWallpaper is one entry in a day's capped wallpaper leaderboard.
// Entries are ranked by Downloads+Likes combined.
type TopWallpaper struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Views     int64  `json:"views,omitempty"`
	Downloads int64  `json:"downloads,omitempty"`
	Likes     int64  `json:"likes,omitempty"`
}

// TopCategory is one entry in a day's capped category leaderboard.
type TopCategory struct {
	Name  string `json:"name"`
	Views int64  `json:"views"`
}

// Leaderboard caps. Entries falling outside the cap are discarded, not
// archived; the leaderboards are lossy summaries.
const (
	TopWallpapersCap = 20
	TopCategoriesCap = 10
)

// DailyStats is the pre-aggregated rollup for one calendar day.
// At most one row exists per date key (YYYY-MM-DD, enforced unique in storage).
// This corresponds to the daily_stats table in storage.
type DailyStats struct {
	Date           string         `json:"date" db:"date"` // YYYY-MM-DD
	UniqueVisitors int64          `json:"uniqueVisitors" db:"unique_visitors"`
	Sessions       int64          `json:"sessions" db:"sessions"`
	Downloads      int64          `json:"downloads" db:"downloads"`
	Likes          int64          `json:"likes" db:"likes"`
	TopWallpapers  []TopWallpaper `json:"topWallpapers" db:"top_wallpapers"`
	TopCategories  []TopCategory  `json:"topCategories" db:"top_categories"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at"`
}

// DateKey formats a time as the daily stats date key in the server's local
// calendar day.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// EventInput is the request body for POST /api/analytics/event.
type EventInput struct {
	UserID      string `json:"userId"`
	SessionID   string `json:"sessionId"`
	EventType   string `json:"eventType"`
	WallpaperID string `json:"wallpaperId,omitempty"`
	Category    string `json:"category,omitempty"`
}

// StatsTotals holds counters summed over a reporting range.
type StatsTotals struct {
	UniqueVisitors int64 `json:"uniqueVisitors"`
	Sessions       int64 `json:"sessions"`
	Downloads      int64 `json:"downloads"`
	Likes          int64 `json:"likes"`
}

// TimelinePoint is one day in the stats timeline. Days without a stored
// DailyStats row are absent rather than zero-filled.
type TimelinePoint struct {
	Date     string `json:"date"`
	Visitors int64  `json:"visitors"`
	Sessions int64  `json:"sessions"`
}

// RankedWallpaper is one entry of the catalog-wide cumulative ranking served
// by the stats endpoint. This is a different ranking from the per-day
// TopWallpapers leaderboard: it is computed from the wallpapers' all-time
// counters, independent of any single day.
type RankedWallpaper struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
	Downloads int64  `json:"downloads"`
	Likes     int64  `json:"likes"`
}

// StatsReport is the response body for GET /api/analytics/stats.
type StatsReport struct {
	Totals        StatsTotals       `json:"totals"`
	Today         StatsTotals       `json:"today"`
	Timeline      []TimelinePoint   `json:"timeline"`
	TopWallpapers []RankedWallpaper `json:"topWallpapers"`
	TopCategories []TopCategory     `json:"topCategories"`
}

// WallpaperStats is the response body for GET /api/analytics/wallpaper/{id}.
// Counts are exact, computed from raw events rather than the aggregate.
type WallpaperStats struct {
	Downloads int64 `json:"downloads"`
	Likes     int64 `json:"likes"`
}

// UploadInitRequest is the request body for initializing a wallpaper image upload.
type UploadInitRequest struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// UploadInitData contains the presigned URL details for a wallpaper image upload.
type UploadInitData struct {
	UploadURL string    `json:"uploadUrl"`
	ObjectKey string    `json:"objectKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UploadCompleteRequest is the request body for confirming a finished upload.
type UploadCompleteRequest struct {
	ObjectKey string `json:"objectKey"`
}

// UploadCompleteData reports the verified object after an upload completes.
type UploadCompleteData struct {
	ObjectKey string `json:"objectKey"`
	Size      int64  `json:"size"`
}
