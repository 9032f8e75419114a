// internal/preview/preview_test.go
// Package preview provides unit tests for crawler detection and preview
// rendering.
package preview

import (
	"bytes"
	"strings"
	"testing"

	"github.com/walleyt/walleyt-gallery-go/internal/model"
)

// TestIsCrawler verifies user-agent classification for the known bot
// signatures.
func TestIsCrawler(t *testing.T) {
	cases := []struct {
		userAgent string
		want      bool
	}{
		{"facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)", true},
		{"WhatsApp/2.23.20.0", true},
		{"Twitterbot/1.0", true},
		{"LinkedInBot/1.0 (compatible; Mozilla/5.0)", true},
		{"Slackbot-LinkExpanding 1.0", true},
		{"TelegramBot (like TwitterBot)", true},
		{"Mozilla/5.0 (compatible; Discordbot/2.0)", true},
		{"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36", false},
		{"curl/8.4.0", false},
		{"", false},
		// Case-insensitive matching
		{"FACEBOOKEXTERNALHIT/1.1", true},
	}

	for _, tc := range cases {
		if got := IsCrawler(tc.userAgent); got != tc.want {
			t.Errorf("IsCrawler(%q) = %v, want %v", tc.userAgent, got, tc.want)
		}
	}
}

// TestCompressedImageURL verifies the proxy wrapping strips the scheme.
func TestCompressedImageURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://cdn.example.com/a.jpg", "https://images.weserv.nl/?url=cdn.example.com/a.jpg&q=80"},
		{"http://cdn.example.com/b.png", "https://images.weserv.nl/?url=cdn.example.com/b.png&q=80"},
		{"cdn.example.com/c.webp", "https://images.weserv.nl/?url=cdn.example.com/c.webp&q=80"},
	}
	for _, tc := range cases {
		if got := CompressedImageURL(tc.in); got != tc.want {
			t.Errorf("CompressedImageURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestWallpaperPreview verifies the Open-Graph page content.
func TestWallpaperPreview(t *testing.T) {
	r := NewRenderer("http://localhost:5173/")

	var buf bytes.Buffer
	err := r.WallpaperPreview(&buf, model.Wallpaper{
		ID:       "w1",
		Title:    "Aurora",
		Filename: "https://cdn.example.com/aurora.jpg",
		Category: "Nature",
	})
	if err != nil {
		t.Fatalf("WallpaperPreview() error = %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		`og:title`,
		"Aurora - Walleyt",
		"Nature wallpaper",
		"images.weserv.nl",
		"http://localhost:5173/?wallpaper=w1",
		`twitter:card`,
		// Missing resolution falls back to HD
		"HD quality",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("preview HTML missing %q:\n%s", want, html)
		}
	}
}

// TestRedirect verifies the human-facing page deep-links into the SPA.
func TestRedirect(t *testing.T) {
	r := NewRenderer("http://localhost:5173")

	var buf bytes.Buffer
	if err := r.Redirect(&buf, "w9"); err != nil {
		t.Fatalf("Redirect() error = %v", err)
	}
	html := buf.String()

	if !strings.Contains(html, "wallpaper=w9") {
		t.Errorf("redirect page missing deep link:\n%s", html)
	}
	if strings.Contains(html, "og:image") {
		t.Errorf("redirect page must not carry wallpaper Open-Graph tags")
	}
}

// TestDefault verifies the site-level fallback page.
func TestDefault(t *testing.T) {
	r := NewRenderer("http://localhost:5173")

	var buf bytes.Buffer
	if err := r.Default(&buf); err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Walleyt | Premium Wallpapers") {
		t.Errorf("default page missing site title:\n%s", buf.String())
	}
}
