// internal/storage/memory_test.go
// Package storage provides unit tests for the in-memory store, focused on
// the concurrency contracts the aggregation path depends on.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/walleyt/walleyt-gallery-go/internal/model"
)

// TestMarkVisitorOncePerDay verifies that MarkVisitor returns true exactly
// once per (date, user) pair, including under concurrent callers.
func TestMarkVisitorOncePerDay(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	first, err := store.MarkVisitor(ctx, "2026-08-30", "u1")
	if err != nil {
		t.Fatalf("MarkVisitor() error = %v", err)
	}
	if !first {
		t.Errorf("first MarkVisitor() = false, want true")
	}
	second, err := store.MarkVisitor(ctx, "2026-08-30", "u1")
	if err != nil {
		t.Fatalf("MarkVisitor() error = %v", err)
	}
	if second {
		t.Errorf("second MarkVisitor() = true, want false")
	}

	// Same user on a different day is a fresh sighting
	next, err := store.MarkVisitor(ctx, "2026-08-31", "u1")
	if err != nil {
		t.Fatalf("MarkVisitor() error = %v", err)
	}
	if !next {
		t.Errorf("MarkVisitor() on a new day = false, want true")
	}

	// Concurrent callers for one pair: exactly one winner
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.MarkVisitor(ctx, "2026-09-01", "u2")
			if err != nil {
				t.Errorf("MarkVisitor() error = %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("concurrent MarkVisitor() produced %d winners, want 1", wins)
	}
}

// TestMutateDailyStatsSerialized verifies that concurrent mutations of one
// date never lose increments.
func TestMutateDailyStatsSerialized(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.MutateDailyStats(ctx, "2026-08-30", func(s *model.DailyStats) {
				s.Downloads++
			})
			if err != nil {
				t.Errorf("MutateDailyStats() error = %v", err)
			}
		}()
	}
	wg.Wait()

	stats, err := store.GetDailyStats(ctx, "2026-08-30")
	if err != nil {
		t.Fatalf("GetDailyStats() error = %v", err)
	}
	if stats.Downloads != 100 {
		t.Errorf("downloads = %d, want 100", stats.Downloads)
	}
}

// TestMutateDailyStatsFetchOrCreate verifies the nil-fn form creates a zero
// row without mutating anything.
func TestMutateDailyStatsFetchOrCreate(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	stats, err := store.MutateDailyStats(ctx, "2026-08-30", nil)
	if err != nil {
		t.Fatalf("MutateDailyStats(nil) error = %v", err)
	}
	if stats.Date != "2026-08-30" || stats.Downloads != 0 || stats.Sessions != 0 {
		t.Errorf("unexpected fresh row: %+v", stats)
	}

	// Returned snapshot must be detached from the stored row
	stats.Downloads = 999
	again, err := store.GetDailyStats(ctx, "2026-08-30")
	if err != nil {
		t.Fatalf("GetDailyStats() error = %v", err)
	}
	if again.Downloads != 0 {
		t.Errorf("mutating the snapshot leaked into storage: %+v", again)
	}
}

// TestUpdateWallpaperPreservesCounters verifies catalog updates never touch
// the cumulative counters.
func TestUpdateWallpaperPreservesCounters(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if err := store.CreateWallpaper(ctx, model.Wallpaper{ID: "w1", Title: "Old", Filename: "old.jpg", Category: "X"}); err != nil {
		t.Fatalf("CreateWallpaper() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := store.IncrementWallpaperCounter(ctx, "w1", MetricDownloads); err != nil {
			t.Fatalf("IncrementWallpaperCounter() error = %v", err)
		}
	}

	if err := store.UpdateWallpaper(ctx, model.Wallpaper{ID: "w1", Title: "New", Filename: "new.jpg", Category: "Y", Downloads: 0, Likes: 0}); err != nil {
		t.Fatalf("UpdateWallpaper() error = %v", err)
	}

	w, err := store.GetWallpaper(ctx, "w1")
	if err != nil {
		t.Fatalf("GetWallpaper() error = %v", err)
	}
	if w.Title != "New" || w.Category != "Y" {
		t.Errorf("catalog fields not updated: %+v", w)
	}
	if w.Downloads != 3 {
		t.Errorf("downloads = %d after update, want 3", w.Downloads)
	}
}

// TestIncrementUnknownWallpaper verifies the counter bump reports ErrNotFound
// for missing rows.
func TestIncrementUnknownWallpaper(t *testing.T) {
	store := NewMemory()
	err := store.IncrementWallpaperCounter(context.Background(), "ghost", MetricLikes)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("IncrementWallpaperCounter() error = %v, want ErrNotFound", err)
	}
}

// TestTopWallpapersByDownloadsOrdering verifies the cumulative ranking order
// and limit.
func TestTopWallpapersByDownloadsOrdering(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	for i, w := range []model.Wallpaper{
		{ID: "a", Downloads: 5, Likes: 1},
		{ID: "b", Downloads: 5, Likes: 9},
		{ID: "c", Downloads: 7, Likes: 0},
		{ID: "d", Downloads: 1, Likes: 99},
	} {
		w.Title = fmt.Sprintf("W%d", i)
		w.Filename = w.ID + ".jpg"
		w.Category = "X"
		if err := store.CreateWallpaper(ctx, w); err != nil {
			t.Fatalf("CreateWallpaper() error = %v", err)
		}
	}

	top, err := store.TopWallpapersByDownloads(ctx, 3)
	if err != nil {
		t.Fatalf("TopWallpapersByDownloads() error = %v", err)
	}
	want := []string{"c", "b", "a"}
	if len(top) != len(want) {
		t.Fatalf("got %d entries, want %d", len(top), len(want))
	}
	for i, id := range want {
		if top[i].ID != id {
			t.Errorf("top[%d] = %s, want %s", i, top[i].ID, id)
		}
	}
}

// TestDeleteExpiredEvents verifies the retention sweep removes only events
// older than the cutoff.
func TestDeleteExpiredEvents(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	for i, ts := range []time.Time{
		now.AddDate(0, 0, -40),
		now.AddDate(0, 0, -31),
		now.AddDate(0, 0, -1),
		now,
	} {
		ev := model.AnalyticsEvent{
			ID:        fmt.Sprintf("e%d", i),
			UserID:    "u1",
			SessionID: "s1",
			EventType: model.EventDownload,
			Timestamp: ts,
		}
		if err := store.InsertEvent(ctx, ev); err != nil {
			t.Fatalf("InsertEvent() error = %v", err)
		}
	}

	removed, err := store.DeleteExpiredEvents(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("DeleteExpiredEvents() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	n, err := store.CountEvents(ctx, "", model.EventDownload, time.Time{})
	if err != nil {
		t.Fatalf("CountEvents() error = %v", err)
	}
	if n != 2 {
		t.Errorf("remaining events = %d, want 2", n)
	}
}

// TestListCategories verifies the distinct category listing.
func TestListCategories(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	for i, cat := range []string{"Nature", "space", "Nature", ""} {
		w := model.Wallpaper{
			ID:       fmt.Sprintf("w%d", i),
			Title:    "T",
			Filename: "f.jpg",
			Category: cat,
		}
		if err := store.CreateWallpaper(ctx, w); err != nil {
			t.Fatalf("CreateWallpaper() error = %v", err)
		}
	}

	categories, err := store.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	want := []string{"Nature", "space"}
	if len(categories) != len(want) {
		t.Fatalf("categories = %v, want %v", categories, want)
	}
	for i := range want {
		if categories[i] != want[i] {
			t.Errorf("categories[%d] = %s, want %s", i, categories[i], want[i])
		}
	}
}
