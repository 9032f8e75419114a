// Package conformance provides a test harness for verifying gallery service
// behavior end to end over HTTP.
package conformance

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/walleyt/walleyt-gallery-go/internal/event"
	"github.com/walleyt/walleyt-gallery-go/internal/model"
	"github.com/walleyt/walleyt-gallery-go/internal/server"
	"github.com/walleyt/walleyt-gallery-go/internal/storage"
)

// Harness runs the full HTTP surface against in-memory dependencies.
type Harness struct {
	server *httptest.Server
	store  storage.Store
	pub    event.Publisher
}

// Config holds configuration for the conformance test harness.
type Config struct {
	// FrontendURL is the SPA origin used in preview pages
	FrontendURL string
}

// NewHarness creates a new conformance test harness backed by in-memory
// storage and a no-op publisher.
func NewHarness(cfg Config) (*Harness, error) {
	store := storage.NewMemory()
	pub := event.NewNoopPublisher()

	frontendURL := cfg.FrontendURL
	if frontendURL == "" {
		frontendURL = "http://localhost:5173"
	}

	mux := server.NewMux(store, pub, server.Options{
		FrontendURL:        frontendURL,
		MaxImageSize:       10 * 1024 * 1024,
		AllowedImageTypes:  []string{"image/jpeg", "image/png", "image/webp"},
		CORSAllowedOrigins: []string{"*"},
	})

	return &Harness{
		server: httptest.NewServer(mux),
		store:  store,
		pub:    pub,
	}, nil
}

// URL returns the base URL of the test server.
func (h *Harness) URL() string {
	return h.server.URL
}

// Close shuts down the test server and cleans up resources.
func (h *Harness) Close() {
	h.server.Close()
	h.pub.Close()
}

// RunConformanceTests runs the full scenario suite against the service.
func (h *Harness) RunConformanceTests(t *testing.T) {
	t.Run("HealthEndpoints", h.testHealthEndpoints)
	t.Run("CatalogLifecycle", h.testCatalogLifecycle)
	t.Run("AnalyticsReadBack", h.testAnalyticsReadBack)
	t.Run("PreviewBranching", h.testPreviewBranching)
	t.Run("UploadUnavailable", h.testUploadUnavailable)
}

func (h *Harness) postJSON(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	resp, err := http.Post(h.URL()+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to POST %s: %v", path, err)
	}
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// testHealthEndpoints tests the health check endpoints.
func (h *Harness) testHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(h.URL() + path)
		if err != nil {
			t.Fatalf("failed to GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200 for %s, got %d", path, resp.StatusCode)
		}
	}
}

// testCatalogLifecycle creates, reads, updates, and deletes a wallpaper over
// the HTTP API.
func (h *Harness) testCatalogLifecycle(t *testing.T) {
	wp := map[string]interface{}{
		"id":       "conf-w1",
		"title":    "Aurora",
		"filename": "https://cdn.example.com/aurora.jpg",
		"category": "Nature",
		"tags":     []string{"sky", "night"},
	}

	resp := h.postJSON(t, "/api/wallpapers", wp)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 creating wallpaper, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Duplicate id must conflict
	resp = h.postJSON(t, "/api/wallpapers", wp)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate wallpaper, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err := http.Get(h.URL() + "/api/wallpapers/conf-w1")
	if err != nil {
		t.Fatalf("failed to GET wallpaper: %v", err)
	}
	var got model.Wallpaper
	decodeInto(t, resp, &got)
	if got.Title != "Aurora" || got.Category != "Nature" {
		t.Errorf("unexpected wallpaper read-back: %+v", got)
	}

	// Partial update
	update, _ := json.Marshal(map[string]string{"title": "Aurora Borealis"})
	req, _ := http.NewRequest(http.MethodPut, h.URL()+"/api/wallpapers/conf-w1", bytes.NewReader(update))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to PUT wallpaper: %v", err)
	}
	decodeInto(t, resp, &got)
	if got.Title != "Aurora Borealis" {
		t.Errorf("expected updated title, got %q", got.Title)
	}
	if got.Category != "Nature" {
		t.Errorf("partial update must not clear category, got %q", got.Category)
	}

	resp, err = http.Get(h.URL() + "/api/categories")
	if err != nil {
		t.Fatalf("failed to GET categories: %v", err)
	}
	var categories []string
	decodeInto(t, resp, &categories)
	if len(categories) != 1 || categories[0] != "Nature" {
		t.Errorf("expected categories [Nature], got %v", categories)
	}

	req, _ = http.NewRequest(http.MethodDelete, h.URL()+"/api/wallpapers/conf-w1", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to DELETE wallpaper: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 deleting wallpaper, got %d", resp.StatusCode)
	}

	resp, err = http.Get(h.URL() + "/api/wallpapers/conf-w1")
	if err != nil {
		t.Fatalf("failed to GET deleted wallpaper: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

// testAnalyticsReadBack ingests events and verifies they show up in the
// aggregated stats report and the per-wallpaper counts.
func (h *Harness) testAnalyticsReadBack(t *testing.T) {
	wp := map[string]interface{}{
		"id":       "conf-w2",
		"title":    "Canyon",
		"filename": "https://cdn.example.com/canyon.jpg",
		"category": "Desert",
	}
	resp := h.postJSON(t, "/api/wallpapers", wp)
	resp.Body.Close()

	events := []model.EventInput{
		{EventType: "session_start", UserID: "u1", SessionID: "s1"},
		{EventType: "download", UserID: "u1", SessionID: "s1", WallpaperID: "conf-w2", Category: "Desert"},
		{EventType: "download", UserID: "u2", SessionID: "s2", WallpaperID: "conf-w2", Category: "Desert"},
		{EventType: "like", UserID: "u1", SessionID: "s1", WallpaperID: "conf-w2", Category: "Desert"},
	}
	for _, in := range events {
		resp := h.postJSON(t, "/api/analytics/event", in)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201 ingesting %s event, got %d", in.EventType, resp.StatusCode)
		}
		resp.Body.Close()
	}

	// Unknown event kinds are rejected
	resp = h.postJSON(t, "/api/analytics/event", model.EventInput{EventType: "hover", UserID: "u1", SessionID: "s1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown event type, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err := http.Get(h.URL() + "/api/analytics/stats?days=7")
	if err != nil {
		t.Fatalf("failed to GET stats: %v", err)
	}
	var report model.StatsReport
	decodeInto(t, resp, &report)

	if report.Totals.Downloads != 2 || report.Totals.Likes != 1 {
		t.Errorf("expected totals downloads=2 likes=1, got %+v", report.Totals)
	}
	if report.Totals.Sessions != 1 || report.Totals.UniqueVisitors != 1 {
		t.Errorf("expected sessions=1 uniqueVisitors=1, got %+v", report.Totals)
	}
	if len(report.TopWallpapers) == 0 || report.TopWallpapers[0].ID != "conf-w2" {
		t.Errorf("expected conf-w2 leading the cumulative ranking, got %+v", report.TopWallpapers)
	}
	if len(report.TopCategories) == 0 || report.TopCategories[0].Name != "Desert" {
		t.Errorf("expected Desert leading today's categories, got %+v", report.TopCategories)
	}

	resp, err = http.Get(h.URL() + "/api/analytics/wallpaper/conf-w2?days=7")
	if err != nil {
		t.Fatalf("failed to GET wallpaper stats: %v", err)
	}
	var stats model.WallpaperStats
	decodeInto(t, resp, &stats)
	if stats.Downloads != 2 || stats.Likes != 1 {
		t.Errorf("expected wallpaper stats downloads=2 likes=1, got %+v", stats)
	}
}

// testPreviewBranching verifies that crawler user agents get Open-Graph HTML
// while regular browsers get the redirect page, both with the cache header.
func (h *Harness) testPreviewBranching(t *testing.T) {
	wp := map[string]interface{}{
		"id":       "conf-w3",
		"title":    "Glacier",
		"filename": "https://cdn.example.com/glacier.jpg",
		"category": "Ice",
	}
	resp := h.postJSON(t, "/api/wallpapers", wp)
	resp.Body.Close()

	fetch := func(userAgent string) (*http.Response, string) {
		req, _ := http.NewRequest(http.MethodGet, h.URL()+"/share/conf-w3", nil)
		req.Header.Set("User-Agent", userAgent)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("failed to GET preview: %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp, string(body)
	}

	resp, body := fetch("facebookexternalhit/1.1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for crawler preview, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `og:title`) || !strings.Contains(body, "Glacier") {
		t.Errorf("crawler preview missing Open-Graph tags: %s", body)
	}
	if got := resp.Header.Get("Cache-Control"); got != "public, max-age=3600" {
		t.Errorf("expected cache header on crawler preview, got %q", got)
	}

	resp, body = fetch("Mozilla/5.0 (X11; Linux x86_64)")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for browser preview, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "wallpaper=conf-w3") {
		t.Errorf("browser preview missing SPA deep link: %s", body)
	}
	if strings.Contains(body, "og:image") {
		t.Errorf("browser preview should not carry wallpaper Open-Graph tags")
	}
	if got := resp.Header.Get("Cache-Control"); got != "public, max-age=3600" {
		t.Errorf("expected cache header on browser preview, got %q", got)
	}

	// Unknown wallpaper id
	resp2, err := http.Get(h.URL() + "/share/nope")
	if err != nil {
		t.Fatalf("failed to GET missing preview: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown wallpaper preview, got %d", resp2.StatusCode)
	}
}

// testUploadUnavailable verifies uploads report unavailable when object
// storage is not configured.
func (h *Harness) testUploadUnavailable(t *testing.T) {
	resp := h.postJSON(t, "/api/wallpapers/uploadInit", model.UploadInitRequest{
		Filename: "a.jpg",
		MimeType: "image/jpeg",
		Size:     1024,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without object storage, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "WT_UNAVAILABLE") {
		t.Errorf("expected WT_UNAVAILABLE code in body: %s", body)
	}
}
