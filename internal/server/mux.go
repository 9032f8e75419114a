// internal/server/mux.go
// Package server implements the HTTP handlers and routing for the gallery
// service: wallpaper CRUD, category listing, analytics ingestion and
// reporting, and the social-media preview responder.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/walleyt/walleyt-gallery-go/internal/analytics"
	errordefs "github.com/walleyt/walleyt-gallery-go/internal/errors"
	"github.com/walleyt/walleyt-gallery-go/internal/event"
	"github.com/walleyt/walleyt-gallery-go/internal/metrics"
	"github.com/walleyt/walleyt-gallery-go/internal/model"
	"github.com/walleyt/walleyt-gallery-go/internal/preview"
	"github.com/walleyt/walleyt-gallery-go/internal/schema"
	"github.com/walleyt/walleyt-gallery-go/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ContextKey is used for context values to avoid collisions
// when storing values in request context
type ContextKey string

const (
	// ContextKeyCorrelationID stores the unique ID for request tracking
	ContextKeyCorrelationID ContextKey = "correlationId"

	// previewCacheControl is the cache directive for successful preview HTML
	previewCacheControl = "public, max-age=3600"
)

// MediaClient provides presigned image uploads and object verification.
// Satisfied by media.S3Client.
type MediaClient interface {
	GenerateUploadURL(ctx context.Context, key string, expires time.Duration) (string, error)
	ObjectExists(ctx context.Context, key string) (bool, int64, error)
}

// Options carries the configuration NewMux needs beyond its collaborators.
type Options struct {
	FrontendURL        string
	MaxImageSize       int64
	AllowedImageTypes  []string
	CORSAllowedOrigins []string
	MediaClient        MediaClient // nil disables the upload path
}

// Mux handles HTTP requests for the gallery service.
// It implements all the required endpoints and manages dependencies
// such as storage, the aggregation and reporting engines, and event
// publishing.
type Mux struct {
	mux       *http.ServeMux
	s         storage.Store
	p         event.Publisher
	agg       *analytics.Aggregator
	rep       *analytics.Reporter
	validator *schema.Validator
	renderer  *preview.Renderer
	media     MediaClient
	metrics   *metrics.Metrics

	maxImageSize       int64
	allowedImageTypes  []string
	corsAllowedOrigins []string
}

// NewMux creates a new HTTP mux with all gallery endpoints.
func NewMux(s storage.Store, p event.Publisher, opts Options) *http.ServeMux {
	validator, err := schema.NewValidator()
	if err != nil {
		slog.Error("failed to initialize schema validator", "error", err)
		os.Exit(1)
	}

	m := &Mux{
		mux:                http.NewServeMux(),
		s:                  s,
		p:                  p,
		agg:                analytics.NewAggregator(s, p),
		rep:                analytics.NewReporter(s),
		validator:          validator,
		renderer:           preview.NewRenderer(opts.FrontendURL),
		media:              opts.MediaClient,
		metrics:            metrics.NewMetrics(),
		maxImageSize:       opts.MaxImageSize,
		allowedImageTypes:  opts.AllowedImageTypes,
		corsAllowedOrigins: opts.CORSAllowedOrigins,
	}

	// Health endpoints
	m.mux.HandleFunc("/healthz", m.handleHealthz)
	m.mux.HandleFunc("/readyz", m.handleReadyz)
	m.mux.Handle("/metrics", promhttp.Handler())

	// Analytics endpoints
	m.mux.HandleFunc("/api/analytics/event", m.withMiddleware("/api/analytics/event", m.method("POST", m.handleTrackEvent)))
	m.mux.HandleFunc("/api/analytics/stats", m.withMiddleware("/api/analytics/stats", m.method("GET", m.handleGetStats)))
	m.mux.HandleFunc("/api/analytics/wallpaper/", m.withMiddleware("/api/analytics/wallpaper/{id}", m.method("GET", m.handleGetWallpaperStats)))

	// Catalog endpoints
	m.mux.HandleFunc("/api/wallpapers", m.withMiddleware("/api/wallpapers", m.handleWallpaperCollection))
	m.mux.HandleFunc("/api/wallpapers/uploadInit", m.withMiddleware("/api/wallpapers/uploadInit", m.method("POST", m.handleUploadInit)))
	m.mux.HandleFunc("/api/wallpapers/uploadComplete", m.withMiddleware("/api/wallpapers/uploadComplete", m.method("POST", m.handleUploadComplete)))
	m.mux.HandleFunc("/api/wallpapers/", m.withMiddleware("/api/wallpapers/{id}", m.handleWallpaperItem))
	m.mux.HandleFunc("/api/categories", m.withMiddleware("/api/categories", m.method("GET", m.handleListCategories)))

	// Social preview responder
	m.mux.HandleFunc("/share", m.withMiddleware("/share", m.method("GET", m.handlePreview)))
	m.mux.HandleFunc("/share/", m.withMiddleware("/share/{id}", m.method("GET", m.handlePreview)))

	return m.mux
}

// method ensures the HTTP method matches the expected method
func (m *Mux) method(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			err := errordefs.New(errordefs.WT_BAD_REQUEST, "method not allowed", "")
			m.writeErrorDef(w, err)
			return
		}
		h(w, r)
	}
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withMiddleware applies common middleware to handlers: CORS, correlation
// ID propagation, request logging, and HTTP metrics. route is the constant
// route pattern used as the metrics path label; raw request paths carry ids
// and would mint unbounded label values.
func (m *Mux) withMiddleware(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Handle CORS preflight requests
		if r.Method == "OPTIONS" {
			m.setCORSHeaders(w, r)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Correlation-Id")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours
			w.WriteHeader(http.StatusOK)
			return
		}

		m.setCORSHeaders(w, r)

		// Add correlation ID if not present
		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		r = r.WithContext(context.WithValue(r.Context(), ContextKeyCorrelationID, correlationID))
		w.Header().Set("X-Correlation-Id", correlationID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		duration := time.Since(start)
		status := strconv.Itoa(rec.status)
		m.metrics.HTTPRequestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, status).Observe(duration.Seconds())
		m.logRequest(r, rec.status, duration, correlationID)
	}
}

// setCORSHeaders sets the Access-Control-Allow-Origin header when the
// request origin is in the allow list.
func (m *Mux) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(m.corsAllowedOrigins) == 0 {
		return
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	for _, allowedOrigin := range m.corsAllowedOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			return
		}
	}
}

// writeJSON writes a JSON response with the given status code
func (m *Mux) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeErrorDef writes an error response using the error definitions package.
// The body keeps a top-level message field for API compatibility with the
// original client.
func (m *Mux) writeErrorDef(w http.ResponseWriter, err *errordefs.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	response := map[string]interface{}{
		"message":       err.Message,
		"code":          string(err.Code),
		"correlationId": err.CorrelationID,
	}
	if err.Details != nil {
		response["details"] = err.Details
	}
	_ = json.NewEncoder(w).Encode(response)
}

// correlationID extracts the correlation ID from the request context.
func correlationID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyCorrelationID).(string); ok {
		return id
	}
	return ""
}

// logRequest logs request details
func (m *Mux) logRequest(r *http.Request, status int, duration time.Duration, correlationID string) {
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("user_agent", r.UserAgent()),
		slog.String("remote_addr", r.RemoteAddr),
	}
	if correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	if status >= http.StatusInternalServerError {
		slog.LogAttrs(r.Context(), slog.LevelError, "request completed with error", attrs...)
	} else {
		slog.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
	}
}

// handleHealthz handles liveness health check requests
func (m *Mux) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz handles readiness health check requests
func (m *Mux) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Probe storage with a lookup that is expected to miss; ErrNotFound
	// means the store is reachable.
	_, err := m.s.GetWallpaper(ctx, "readiness-probe")
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleTrackEvent handles POST /api/analytics/event
func (m *Mux) handleTrackEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("walleyt-gallery").Start(r.Context(), "handleTrackEvent")
	defer span.End()
	defer r.Body.Close()

	var in model.EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeErrorDef(w, errordefs.New(errordefs.WT_VALIDATION, "invalid JSON", correlationID(ctx)))
		return
	}

	span.SetAttributes(
		attribute.String("event_type", in.EventType),
		attribute.Bool("has_wallpaper_id", in.WallpaperID != ""),
		attribute.Bool("has_category", in.Category != ""),
	)

	if err := m.agg.RecordEvent(ctx, in); err != nil {
		if errors.Is(err, analytics.ErrInvalidEvent) {
			span.SetStatus(codes.Error, "validation failed")
			m.writeErrorDef(w, errordefs.New(errordefs.WT_VALIDATION, err.Error(), correlationID(ctx)))
			return
		}
		span.SetStatus(codes.Error, "ingestion failed")
		m.writeErrorDef(w, errordefs.New(errordefs.WT_INTERNAL, "failed to record event", correlationID(ctx)))
		return
	}

	m.writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

// parseDays parses the days query parameter, falling back to the default
// reporting range.
func parseDays(r *http.Request) int {
	days := analytics.DefaultReportDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		if v, err := strconv.Atoi(daysStr); err == nil && v > 0 {
			days = v
		}
	}
	return days
}

// handleGetStats handles GET /api/analytics/stats
func (m *Mux) handleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("walleyt-gallery").Start(r.Context(), "handleGetStats")
	defer span.End()

	days := parseDays(r)
	span.SetAttributes(attribute.Int("days", days))

	report, err := m.rep.Stats(ctx, days)
	if err != nil {
		span.SetStatus(codes.Error, "failed to build stats report")
		m.writeErrorDef(w, errordefs.New(errordefs.WT_INTERNAL, "failed to build stats report", correlationID(ctx)))
		return
	}

	m.writeJSON(w, http.StatusOK, report)
}

// handleGetWallpaperStats handles GET /api/analytics/wallpaper/{id}
func (m *Mux) handleGetWallpaperStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("walleyt-gallery").Start(r.Context(), "handleGetWallpaperStats")
	defer span.End()

	id := strings.TrimPrefix(r.URL.Path, "/api/analytics/wallpaper/")
	if id == "" {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_VALIDATION, "wallpaper id is required", correlationID(ctx)))
		return
	}
	span.SetAttributes(attribute.String("wallpaper_id", id))

	stats, err := m.rep.WallpaperStats(ctx, id, parseDays(r))
	if err != nil {
		span.SetStatus(codes.Error, "failed to count wallpaper events")
		m.writeErrorDef(w, errordefs.New(errordefs.WT_INTERNAL, "failed to count wallpaper events", correlationID(ctx)))
		return
	}

	m.writeJSON(w, http.StatusOK, stats)
}

// handleWallpaperCollection handles GET and POST /api/wallpapers
func (m *Mux) handleWallpaperCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		m.handleListWallpapers(w, r)
	case http.MethodPost:
		m.handleCreateWallpaper(w, r)
	default:
		m.writeErrorDef(w, errordefs.New(errordefs.WT_BAD_REQUEST, "method not allowed", correlationID(r.Context())))
	}
}

// handleListWallpapers handles GET /api/wallpapers
func (m *Mux) handleListWallpapers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	wallpapers, err := m.s.ListWallpapers(ctx)
	if err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_INTERNAL, "failed to list wallpapers", correlationID(ctx)))
		return
	}
	if wallpapers == nil {
		wallpapers = []model.Wallpaper{}
	}

	m.writeJSON(w, http.StatusOK, wallpapers)
}

// handleCreateWallpaper handles POST /api/wallpapers
func (m *Mux) handleCreateWallpaper(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("walleyt-gallery").Start(r.Context(), "handleCreateWallpaper")
	defer span.End()
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_BAD_REQUEST, "failed to read request body", correlationID(ctx)))
		return
	}

	if err := m.validator.ValidateCreate(body); err != nil {
		span.SetStatus(codes.Error, "schema validation failed")
		m.writeErrorDef(w, errordefs.NewWithDetails(errordefs.WT_VALIDATION, "invalid wallpaper payload", correlationID(ctx), err.Error()))
		return
	}

	var wp model.Wallpaper
	if err := json.Unmarshal(body, &wp); err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_VALIDATION, "invalid JSON", correlationID(ctx)))
		return
	}
	span.SetAttributes(attribute.String("wallpaper_id", wp.ID), attribute.String("category", wp.Category))

	if wp.Resolution == "" {
		wp.Resolution = "HD"
	}
	if wp.Tags == nil {
		wp.Tags = []string{}
	}
	now := time.Now().UTC()
	wp.CreatedAt = now
	wp.UpdatedAt = now

	if err := m.s.CreateWallpaper(ctx, wp); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			m.writeErrorDef(w, errordefs.New(errordefs.WT_CONFLICT, "wallpaper already exists", correlationID(ctx)))
			return
		}
		span.SetStatus(codes.Error, "failed to create wallpaper")
		m.writeErrorDef(w, errordefs.New(errordefs.WT_INTERNAL, "failed to create wallpaper", correlationID(ctx)))
		return
	}

	if err := m.p.PublishWallpaperCreated(ctx, wp); err != nil {
		slog.Warn("failed to publish wallpaper created event", "error", err)
	}

	m.writeJSON(w, http.StatusCreated, wp)
}

// handleWallpaperItem handles GET, PUT, and DELETE /api/wallpapers/{id}
func (m *Mux) handleWallpaperItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := strings.TrimPrefix(r.URL.Path, "/api/wallpapers/")
	if id == "" || strings.Contains(id, "/") {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_BAD_REQUEST, "wallpaper id is required", correlationID(ctx)))
		return
	}

	switch r.Method {
	case http.MethodGet:
		m.handleGetWallpaper(w, r, id)
	case http.MethodPut:
		m.handleUpdateWallpaper(w, r, id)
	case http.MethodDelete:
		m.handleDeleteWallpaper(w, r, id)
	default:
		m.writeErrorDef(w, errordefs.New(errordefs.WT_BAD_REQUEST, "method not allowed", correlationID(ctx)))
	}
}

// handleGetWallpaper handles GET /api/wallpapers/{id}
func (m *Mux) handleGetWallpaper(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	wp, err := m.s.GetWallpaper(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.writeErrorDef(w, errordefs.New(errordefs.WT_NOT_FOUND, "wallpaper not found", correlationID(ctx)))
			return
		}
		m.writeErrorDef(w, errordefs.New(errordefs.WT_INTERNAL, "failed to get wallpaper", correlationID(ctx)))
		return
	}

	m.writeJSON(w, http.StatusOK, wp)
}

// handleUpdateWallpaper handles PUT /api/wallpapers/{id}
func (m *Mux) handleUpdateWallpaper(w http.ResponseWriter, r *http.Request, id string) {
	ctx, span := otel.Tracer("walleyt-gallery").Start(r.Context(), "handleUpdateWallpaper")
	defer span.End()
	defer r.Body.Close()

	span.SetAttributes(attribute.String("wallpaper_id", id))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_BAD_REQUEST, "failed to read request body", correlationID(ctx)))
		return
	}

	if err := m.validator.ValidateUpdate(body); err != nil {
		span.SetStatus(codes.Error, "schema validation failed")
		m.writeErrorDef(w, errordefs.NewWithDetails(errordefs.WT_VALIDATION, "invalid wallpaper payload", correlationID(ctx), err.Error()))
		return
	}

	existing, err := m.s.GetWallpaper(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.writeErrorDef(w, errordefs.New(errordefs.WT_NOT_FOUND, "wallpaper not found", correlationID(ctx)))
			return
		}
		m.writeErrorDef(w, errordefs.New(errordefs.WT_INTERNAL, "failed to get wallpaper", correlationID(ctx)))
		return
	}

	// Partial update: decode the body over a copy of the stored record
	merged := *existing
	if err := json.Unmarshal(body, &merged); err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_VALIDATION, "invalid JSON", correlationID(ctx)))
		return
	}
	merged.ID = id

	if err := m.s.UpdateWallpaper(ctx, merged); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.writeErrorDef(w, errordefs.New(errordefs.WT_NOT_FOUND, "wallpaper not found", correlationID(ctx)))
			return
		}
		span.SetStatus(codes.Error, "failed to update wallpaper")
		m.writeErrorDef(w, errordefs.New(errordefs.WT_INTERNAL, "failed to update wallpaper", correlationID(ctx)))
		return
	}

	updated, err := m.s.GetWallpaper(ctx, id)
	if err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_INTERNAL, "failed to get wallpaper", correlationID(ctx)))
		return
	}

	m.writeJSON(w, http.StatusOK, updated)
}

// handleDeleteWallpaper handles DELETE /api/wallpapers/{id}
func (m *Mux) handleDeleteWallpaper(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	if err := m.s.DeleteWallpaper(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.writeErrorDef(w, errordefs.New(errordefs.WT_NOT_FOUND, "wallpaper not found", correlationID(ctx)))
			return
		}
		m.writeErrorDef(w, errordefs.New(errordefs.WT_INTERNAL, "failed to delete wallpaper", correlationID(ctx)))
		return
	}

	m.writeJSON(w, http.StatusOK, map[string]string{"message": "wallpaper deleted"})
}

// handleListCategories handles GET /api/categories
func (m *Mux) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categories, err := m.s.ListCategories(ctx)
	if err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_INTERNAL, "failed to list categories", correlationID(ctx)))
		return
	}
	if categories == nil {
		categories = []string{}
	}

	m.writeJSON(w, http.StatusOK, categories)
}

// handleUploadInit handles POST /api/wallpapers/uploadInit
func (m *Mux) handleUploadInit(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("walleyt-gallery").Start(r.Context(), "handleUploadInit")
	defer span.End()
	defer r.Body.Close()

	if m.media == nil {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_UNAVAILABLE, "image uploads are not configured", correlationID(ctx)))
		return
	}

	var req model.UploadInitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_VALIDATION, "invalid JSON", correlationID(ctx)))
		return
	}

	span.SetAttributes(
		attribute.String("mime_type", req.MimeType),
		attribute.Int64("size", req.Size),
	)

	if req.Filename == "" || req.MimeType == "" || req.Size <= 0 {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_VALIDATION, "filename, mimeType, and size are required", correlationID(ctx)))
		return
	}
	if req.Size > m.maxImageSize {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_VALIDATION, fmt.Sprintf("image size exceeds limit of %d bytes", m.maxImageSize), correlationID(ctx)))
		return
	}

	allowed := false
	for _, mimeType := range m.allowedImageTypes {
		if req.MimeType == mimeType {
			allowed = true
			break
		}
	}
	if !allowed {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_VALIDATION, fmt.Sprintf("image type %s is not allowed", req.MimeType), correlationID(ctx)))
		return
	}

	objectKey := fmt.Sprintf("wallpapers/%s/%s", uuid.New().String(), req.Filename)
	expires := 15 * time.Minute
	uploadURL, err := m.media.GenerateUploadURL(ctx, objectKey, expires)
	if err != nil {
		span.SetStatus(codes.Error, "failed to generate upload URL")
		m.writeErrorDef(w, errordefs.New(errordefs.WT_INTERNAL, "failed to generate upload URL", correlationID(ctx)))
		return
	}

	m.writeJSON(w, http.StatusOK, model.UploadInitData{
		UploadURL: uploadURL,
		ObjectKey: objectKey,
		ExpiresAt: time.Now().Add(expires),
	})
}

// handleUploadComplete handles POST /api/wallpapers/uploadComplete.
// It verifies the uploaded object is actually present in the bucket before
// the client creates the wallpaper record referencing it.
func (m *Mux) handleUploadComplete(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("walleyt-gallery").Start(r.Context(), "handleUploadComplete")
	defer span.End()
	defer r.Body.Close()

	if m.media == nil {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_UNAVAILABLE, "image uploads are not configured", correlationID(ctx)))
		return
	}

	var req model.UploadCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_VALIDATION, "invalid JSON", correlationID(ctx)))
		return
	}
	if req.ObjectKey == "" {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_VALIDATION, "objectKey is required", correlationID(ctx)))
		return
	}
	span.SetAttributes(attribute.String("object_key", req.ObjectKey))

	exists, size, err := m.media.ObjectExists(ctx, req.ObjectKey)
	if err != nil {
		span.SetStatus(codes.Error, "failed to verify uploaded object")
		m.writeErrorDef(w, errordefs.New(errordefs.WT_INTERNAL, "failed to verify uploaded object", correlationID(ctx)))
		return
	}
	if !exists {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_NOT_FOUND, "uploaded object not found", correlationID(ctx)))
		return
	}
	if size > m.maxImageSize {
		m.writeErrorDef(w, errordefs.New(errordefs.WT_VALIDATION, fmt.Sprintf("uploaded object exceeds limit of %d bytes", m.maxImageSize), correlationID(ctx)))
		return
	}

	m.writeJSON(w, http.StatusOK, model.UploadCompleteData{
		ObjectKey: req.ObjectKey,
		Size:      size,
	})
}

// handlePreview handles GET /share/{id} and GET /share?wallpaper={id}.
// Known crawler user agents receive Open-Graph HTML; everyone else gets a
// redirect page into the SPA. Only successful pages carry the 1-hour cache
// directive.
func (m *Mux) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := strings.TrimPrefix(r.URL.Path, "/share")
	id = strings.TrimPrefix(id, "/")
	if id == "" {
		id = r.URL.Query().Get("wallpaper")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if id == "" {
		w.Header().Set("Cache-Control", previewCacheControl)
		_ = m.renderer.Default(w)
		return
	}

	wp, err := m.s.GetWallpaper(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("Wallpaper not found"))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Error generating preview"))
		return
	}

	w.Header().Set("Cache-Control", previewCacheControl)

	if preview.IsCrawler(r.UserAgent()) {
		if err := m.renderer.WallpaperPreview(w, *wp); err != nil {
			slog.Warn("failed to render wallpaper preview", "error", err)
		}
		return
	}

	if err := m.renderer.Redirect(w, wp.ID); err != nil {
		slog.Warn("failed to render redirect page", "error", err)
	}
}
