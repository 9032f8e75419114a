// internal/preview/preview.go
// Package preview implements the social-media link preview responder. Known
// crawler user agents receive server-rendered Open-Graph HTML; everyone else
// gets a page that redirects into the SPA with the wallpaper id as a query
// parameter.
package preview

import (
	"fmt"
	"html/template"
	"io"
	"regexp"
	"strings"

	"github.com/walleyt/walleyt-gallery-go/internal/model"
)

// botSignatures are matched case-insensitively as substrings of the
// user-agent string.
var botSignatures = []string{
	"facebookexternalhit",
	"whatsapp",
	"twitterbot",
	"linkedinbot",
	"slackbot",
	"telegrambot",
	"discordbot",
}

// IsCrawler reports whether the user agent belongs to a known social-platform
// link-preview bot.
func IsCrawler(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, sig := range botSignatures {
		if strings.Contains(ua, sig) {
			return true
		}
	}
	return false
}

var schemePrefix = regexp.MustCompile(`^https?://`)

// CompressedImageURL wraps an image URL with the weserv proxy so social
// platforms fetch a compressed variant.
func CompressedImageURL(filename string) string {
	return fmt.Sprintf("https://images.weserv.nl/?url=%s&q=80", schemePrefix.ReplaceAllString(filename, ""))
}

const ogTemplate = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} - Walleyt</title>

    <!-- Open Graph / Facebook / WhatsApp -->
    <meta property="og:type" content="website">
    <meta property="og:url" content="{{.TargetURL}}">
    <meta property="og:title" content="{{.Title}} - Walleyt">
    <meta property="og:description" content="{{.Category}} wallpaper in {{.Resolution}} quality.">
    <meta property="og:image" content="{{.ImageURL}}">
    <meta property="og:image:width" content="1200">
    <meta property="og:image:height" content="630">

    <!-- Twitter -->
    <meta name="twitter:card" content="summary_large_image">
    <meta name="twitter:url" content="{{.TargetURL}}">
    <meta name="twitter:title" content="{{.Title}} - Walleyt">
    <meta name="twitter:description" content="{{.Category}} wallpaper">
    <meta name="twitter:image" content="{{.ImageURL}}">
  </head>
  <body><p>{{.Title}}</p></body>
</html>
`

const redirectTemplate = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Walleyt | Premium Wallpapers</title>
    <meta http-equiv="refresh" content="0;url={{.TargetURL}}">
    <style>
      body {
        font-family: system-ui, -apple-system, sans-serif;
        background: #0f172a;
        color: white;
        height: 100vh;
        display: flex;
        flex-direction: column;
        align-items: center;
        justify-content: center;
        margin: 0;
      }
    </style>
  </head>
  <body>
    <p>Redirecting to Walleyt...</p>
    <script>window.location.href = {{.TargetURL}};</script>
  </body>
</html>
`

const defaultTemplate = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Walleyt | Premium Wallpapers</title>
    <meta property="og:title" content="Walleyt | Premium Wallpapers">
    <meta property="og:description" content="Premium 4K/8K Wallpapers for your device.">
    <meta property="og:type" content="website">
    <meta http-equiv="refresh" content="0;url={{.TargetURL}}">
  </head>
  <body><p>Loading...</p></body>
</html>
`

// Renderer builds preview and redirect pages for one frontend origin.
type Renderer struct {
	frontendURL string
	og          *template.Template
	redirect    *template.Template
	fallback    *template.Template
}

// NewRenderer creates a Renderer targeting the given SPA origin.
func NewRenderer(frontendURL string) *Renderer {
	return &Renderer{
		frontendURL: strings.TrimRight(frontendURL, "/"),
		og:          template.Must(template.New("og").Parse(ogTemplate)),
		redirect:    template.Must(template.New("redirect").Parse(redirectTemplate)),
		fallback:    template.Must(template.New("default").Parse(defaultTemplate)),
	}
}

// TargetURL is the SPA deep link for a wallpaper.
func (r *Renderer) TargetURL(wallpaperID string) string {
	return fmt.Sprintf("%s/?wallpaper=%s", r.frontendURL, wallpaperID)
}

type ogData struct {
	Title      string
	Category   string
	Resolution string
	ImageURL   string
	TargetURL  string
}

// WallpaperPreview renders the Open-Graph/Twitter meta page for crawlers.
func (r *Renderer) WallpaperPreview(w io.Writer, wp model.Wallpaper) error {
	resolution := wp.Resolution
	if resolution == "" {
		resolution = "HD"
	}
	return r.og.Execute(w, ogData{
		Title:      wp.Title,
		Category:   wp.Category,
		Resolution: resolution,
		ImageURL:   CompressedImageURL(wp.Filename),
		TargetURL:  r.TargetURL(wp.ID),
	})
}

// Redirect renders the human-facing page that bounces into the SPA.
func (r *Renderer) Redirect(w io.Writer, wallpaperID string) error {
	return r.redirect.Execute(w, struct{ TargetURL string }{r.TargetURL(wallpaperID)})
}

// Default renders the site-level preview used when no wallpaper id is given.
func (r *Renderer) Default(w io.Writer) error {
	return r.fallback.Execute(w, struct{ TargetURL string }{r.frontendURL + "/"})
}
