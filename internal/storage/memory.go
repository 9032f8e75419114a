// internal/storage/memory.go
// Package storage provides implementations of the Store interface
// for both in-memory and PostgreSQL storage backends.
package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/walleyt/walleyt-gallery-go/internal/model"
)

// Standard errors returned by the storage layer
var (
	ErrNotFound = errors.New("not found") // Returned when a record is not found
	ErrConflict = errors.New("conflict")  // Returned when a record already exists
)

// CounterMetric names a cumulative wallpaper counter.
type CounterMetric string

const (
	MetricDownloads CounterMetric = "downloads"
	MetricLikes     CounterMetric = "likes"
)

// Store interface defines the storage operations required by the gallery service.
// This interface is implemented by both in-memory and PostgreSQL storage backends.
type Store interface {
	// Wallpaper catalog operations
	CreateWallpaper(ctx context.Context, w model.Wallpaper) error
	GetWallpaper(ctx context.Context, id string) (*model.Wallpaper, error)
	ListWallpapers(ctx context.Context) ([]model.Wallpaper, error) // newest first
	UpdateWallpaper(ctx context.Context, w model.Wallpaper) error  // catalog fields only, counters untouched
	DeleteWallpaper(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]string, error)

	// IncrementWallpaperCounter atomically bumps a cumulative counter by 1.
	IncrementWallpaperCounter(ctx context.Context, id string, metric CounterMetric) error
	// TopWallpapersByDownloads returns the catalog-wide cumulative ranking,
	// ordered by downloads descending with likes as tie-break.
	TopWallpapersByDownloads(ctx context.Context, limit int) ([]model.Wallpaper, error)

	// Analytics event operations (append-only log)
	InsertEvent(ctx context.Context, ev model.AnalyticsEvent) error
	CountEvents(ctx context.Context, wallpaperID string, eventType model.EventType, since time.Time) (int64, error)
	// DeleteExpiredEvents removes events older than cutoff (retention sweep).
	DeleteExpiredEvents(ctx context.Context, cutoff time.Time) (int64, error)

	// Daily stats operations
	GetDailyStats(ctx context.Context, date string) (*model.DailyStats, error)
	ListDailyStatsSince(ctx context.Context, startDate string) ([]model.DailyStats, error)
	// MutateDailyStats runs fn against the day's stats row under an exclusive
	// per-date lock, creating a zero row first if none exists, and persists
	// the result. The returned snapshot reflects the persisted state.
	MutateDailyStats(ctx context.Context, date string, fn func(*model.DailyStats)) (*model.DailyStats, error)
	// MarkVisitor records userID in the day's seen-set. Returns true exactly
	// once per (date, userID) pair, atomically under concurrent callers.
	MarkVisitor(ctx context.Context, date, userID string) (bool, error)
}

// memory implements the Store interface using in-memory storage.
// It's intended for development and testing purposes.
type memory struct {
	mu         sync.RWMutex
	wallpapers map[string]*model.Wallpaper
	events     []model.AnalyticsEvent
	daily      map[string]*model.DailyStats
	visitors   map[string]map[string]struct{} // date -> set of user IDs
}

// NewMemory creates a new in-memory storage implementation.
// Returns a Store interface that can be used for testing or development.
func NewMemory() Store {
	return &memory{
		wallpapers: make(map[string]*model.Wallpaper),
		daily:      make(map[string]*model.DailyStats),
		visitors:   make(map[string]map[string]struct{}),
	}
}

func copyWallpaper(w *model.Wallpaper) *model.Wallpaper {
	cp := *w
	cp.Tags = append([]string(nil), w.Tags...)
	return &cp
}

func copyDailyStats(s *model.DailyStats) *model.DailyStats {
	cp := *s
	cp.TopWallpapers = append([]model.TopWallpaper(nil), s.TopWallpapers...)
	cp.TopCategories = append([]model.TopCategory(nil), s.TopCategories...)
	return &cp
}

func (m *memory) CreateWallpaper(ctx context.Context, w model.Wallpaper) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.wallpapers[w.ID]; exists {
		return ErrConflict
	}
	m.wallpapers[w.ID] = copyWallpaper(&w)
	return nil
}

func (m *memory) GetWallpaper(ctx context.Context, id string) (*model.Wallpaper, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, exists := m.wallpapers[id]
	if !exists {
		return nil, ErrNotFound
	}
	return copyWallpaper(w), nil
}

func (m *memory) ListWallpapers(ctx context.Context) ([]model.Wallpaper, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Wallpaper, 0, len(m.wallpapers))
	for _, w := range m.wallpapers {
		out = append(out, *copyWallpaper(w))
	}
	// Newest first; ID as tie-break for stable ordering
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memory) UpdateWallpaper(ctx context.Context, w model.Wallpaper) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.wallpapers[w.ID]
	if !exists {
		return ErrNotFound
	}
	// Counters are owned by the analytics path
	existing.Title = w.Title
	existing.Filename = w.Filename
	existing.Category = w.Category
	existing.Tags = append([]string(nil), w.Tags...)
	existing.Resolution = w.Resolution
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memory) DeleteWallpaper(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.wallpapers[id]; !exists {
		return ErrNotFound
	}
	delete(m.wallpapers, id)
	return nil
}

func (m *memory) ListCategories(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, w := range m.wallpapers {
		if w.Category == "" {
			continue
		}
		if _, ok := seen[w.Category]; !ok {
			seen[w.Category] = struct{}{}
			out = append(out, w.Category)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out, nil
}

func (m *memory) IncrementWallpaperCounter(ctx context.Context, id string, metric CounterMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, exists := m.wallpapers[id]
	if !exists {
		return ErrNotFound
	}
	switch metric {
	case MetricDownloads:
		w.Downloads++
	case MetricLikes:
		w.Likes++
	default:
		return errors.New("unknown counter metric")
	}
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memory) TopWallpapersByDownloads(ctx context.Context, limit int) ([]model.Wallpaper, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Wallpaper, 0, len(m.wallpapers))
	for _, w := range m.wallpapers {
		out = append(out, *copyWallpaper(w))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Downloads == out[j].Downloads {
			if out[i].Likes == out[j].Likes {
				return out[i].ID < out[j].ID
			}
			return out[i].Likes > out[j].Likes
		}
		return out[i].Downloads > out[j].Downloads
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memory) InsertEvent(ctx context.Context, ev model.AnalyticsEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, ev)
	return nil
}

func (m *memory) CountEvents(ctx context.Context, wallpaperID string, eventType model.EventType, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, ev := range m.events {
		if ev.WallpaperID == wallpaperID && ev.EventType == eventType && !ev.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memory) DeleteExpiredEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.events[:0]
	var removed int64
	for _, ev := range m.events {
		if ev.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	m.events = kept
	return removed, nil
}

func (m *memory) GetDailyStats(ctx context.Context, date string) (*model.DailyStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.daily[date]
	if !exists {
		return nil, ErrNotFound
	}
	return copyDailyStats(s), nil
}

func (m *memory) ListDailyStatsSince(ctx context.Context, startDate string) ([]model.DailyStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.DailyStats
	for _, s := range m.daily {
		if s.Date >= startDate {
			out = append(out, *copyDailyStats(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *memory) MutateDailyStats(ctx context.Context, date string, fn func(*model.DailyStats)) (*model.DailyStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.daily[date]
	if !exists {
		s = &model.DailyStats{Date: date, UpdatedAt: time.Now().UTC()}
		m.daily[date] = s
	}
	if fn != nil {
		fn(s)
		s.UpdatedAt = time.Now().UTC()
	}
	return copyDailyStats(s), nil
}

func (m *memory) MarkVisitor(ctx context.Context, date, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, exists := m.visitors[date]
	if !exists {
		set = make(map[string]struct{})
		m.visitors[date] = set
	}
	if _, seen := set[userID]; seen {
		return false, nil
	}
	set[userID] = struct{}{}
	return true, nil
}
