// internal/event/nats.go
// Package event provides NATS JetStream implementation for event publishing.
// It streams analytics and catalog events for downstream consumers such as
// dashboards and audit tooling.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/walleyt/walleyt-gallery-go/internal/model"
)

// Publisher interface defines the event publishing operations required by the
// gallery service.
type Publisher interface {
	// Analytics events
	PublishAnalyticsEvent(ctx context.Context, ev model.AnalyticsEvent) error

	// Catalog events
	PublishWallpaperCreated(ctx context.Context, w model.Wallpaper) error

	// Close closes the publisher connection
	Close() error
}

// noop is a no-op implementation of Publisher for when NATS is not configured.
// It allows the service to function without event streaming.
type noop struct{}

// NewNoopPublisher returns a Publisher that discards all events. Used in
// tests and when NATS is not configured.
func NewNoopPublisher() Publisher { return &noop{} }

// Close implements Publisher
func (n *noop) Close() error { return nil }

// PublishAnalyticsEvent implements Publisher
func (n *noop) PublishAnalyticsEvent(ctx context.Context, ev model.AnalyticsEvent) error {
	return nil
}

// PublishWallpaperCreated implements Publisher
func (n *noop) PublishWallpaperCreated(ctx context.Context, w model.Wallpaper) error {
	return nil
}

// natsPub is the NATS JetStream implementation of Publisher.
type natsPub struct {
	nc *nats.Conn
	js nats.JetStreamContext

	// Dedup window for catalog events; analytics events are never deduplicated
	// since repeated events are meaningful counts.
	catalogDedup map[string]time.Time
	mutex        sync.RWMutex
}

// NewPublisherFromEnv creates a new publisher based on environment configuration.
// It reads the WT_NATS_URL environment variable to determine if NATS should be
// used. If NATS is not configured or connection fails, it returns a no-op
// publisher.
func NewPublisherFromEnv() Publisher {
	url := os.Getenv("WT_NATS_URL")
	if url == "" {
		return &noop{}
	}

	nc, err := nats.Connect(url)
	if err != nil {
		slog.Warn("NATS connect failed, using noop publisher", "error", err)
		return &noop{}
	}

	js, err := nc.JetStream()
	if err != nil {
		slog.Warn("NATS JetStream context creation failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	if err := initStreams(js); err != nil {
		slog.Warn("NATS stream initialization failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	return &natsPub{
		nc:           nc,
		js:           js,
		catalogDedup: make(map[string]time.Time),
	}
}

// initStreams initializes the required NATS streams.
func initStreams(js nats.JetStreamContext) error {
	// WT_ANALYTICS carries raw analytics events for downstream consumers
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      "WT_ANALYTICS",
		Subjects:  []string{"walleyt.analytics.*"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Discard:   nats.DiscardOld,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create WT_ANALYTICS stream: %w", err)
	}

	// WT_CATALOG carries wallpaper lifecycle events
	_, err = js.AddStream(&nats.StreamConfig{
		Name:      "WT_CATALOG",
		Subjects:  []string{"walleyt.catalog.*"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Discard:   nats.DiscardOld,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create WT_CATALOG stream: %w", err)
	}

	return nil
}

// EventEnvelope represents the standard event envelope structure.
// All events published to NATS are wrapped in this envelope for consistency.
type EventEnvelope struct {
	Type          string      `json:"type"`
	Version       string      `json:"version"`
	OccurredAt    time.Time   `json:"occurredAt"`
	CorrelationID string      `json:"correlationId"`
	Payload       interface{} `json:"payload"`
}

// Close closes the NATS connection.
func (p *natsPub) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

// shouldDedup checks if a catalog event was published within the 2-minute window.
func (p *natsPub) shouldDedup(key string) bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if lastTime, exists := p.catalogDedup[key]; exists {
		return time.Since(lastTime) < 2*time.Minute
	}
	return false
}

// updateDedup records a publish time for a catalog event key and prunes stale entries.
func (p *natsPub) updateDedup(key string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	cutoff := time.Now().Add(-5 * time.Minute)
	for k, t := range p.catalogDedup {
		if t.Before(cutoff) {
			delete(p.catalogDedup, k)
		}
	}

	p.catalogDedup[key] = time.Now()
}

// PublishAnalyticsEvent publishes a raw analytics event to the WT_ANALYTICS stream.
func (p *natsPub) PublishAnalyticsEvent(ctx context.Context, ev model.AnalyticsEvent) error {
	subject := fmt.Sprintf("walleyt.analytics.%s", ev.EventType)

	envelope := EventEnvelope{
		Type:          subject,
		Version:       "1.0.0",
		OccurredAt:    time.Now().UTC(),
		CorrelationID: uuid.New().String(),
		Payload:       ev,
	}

	b, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(subject, b)
	return err
}

// PublishWallpaperCreated publishes a wallpaper created event to the WT_CATALOG stream.
func (p *natsPub) PublishWallpaperCreated(ctx context.Context, w model.Wallpaper) error {
	if p.shouldDedup(w.ID) {
		return nil
	}

	subject := "walleyt.catalog.created"

	envelope := EventEnvelope{
		Type:          subject,
		Version:       "1.0.0",
		OccurredAt:    time.Now().UTC(),
		CorrelationID: uuid.New().String(),
		Payload:       w,
	}

	b, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	if _, err = p.js.Publish(subject, b); err != nil {
		return err
	}

	p.updateDedup(w.ID)

	return nil
}
