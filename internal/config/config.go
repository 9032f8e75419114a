// Package config provides configuration loading and management for the
// gallery service. It handles environment variable parsing and provides
// default values for all settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// init loads environment variables from .env files during package initialization.
// In development, it loads .env and .env.local files if they exist.
// In production, it relies solely on system environment variables.
// godotenv.Load() does not override already-set environment variables,
// preserving OS env > .env precedence.
func init() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}

	// .env.local holds local overrides and is gitignored
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env.local file: %v\n", err)
		}
	}
}

// Config captures environment-driven settings for the gallery service.
type Config struct {
	Env         string // Deployment environment (dev, staging, prod)
	Port        string // HTTP server port
	DatabaseDSN string // Database connection string (PostgreSQL)
	NATSURL     string // NATS server URL
	FrontendURL string // SPA origin used for preview redirects and deep links

	// Analytics retention
	RetentionDays int // Days to keep raw analytics events (default 30)

	// S3-compatible storage for wallpaper images
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	// Image upload limits
	MaxImageSize      int64    // Maximum image size in bytes (default 10MB)
	AllowedImageTypes []string // Allowed MIME types for image uploads

	// CORS configuration
	CORSAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
}

// Default configuration values used when environment variables are not set
const (
	defaultPort          = "8080"
	defaultS3Region      = "us-east-1"
	defaultEnv           = "dev"
	defaultFrontendURL   = "http://localhost:5173"
	defaultRetentionDays = 30
)

// Load reads environment variables and produces a Config suitable for wiring
// the service. Returns an error if a parameter is present but invalid.
func Load() (Config, error) {
	cfg := Config{}

	cfg.Env = getEnv("WT_ENV", defaultEnv)
	cfg.Port = getEnv("WT_PORT", defaultPort)
	cfg.DatabaseDSN = os.Getenv("WT_DB_DSN")
	cfg.NATSURL = os.Getenv("WT_NATS_URL")
	cfg.FrontendURL = getEnv("WT_FRONTEND_URL", defaultFrontendURL)

	cfg.RetentionDays = defaultRetentionDays
	if retention, exists := os.LookupEnv("WT_RETENTION_DAYS"); exists {
		days, err := strconv.Atoi(retention)
		if err != nil || days <= 0 {
			return cfg, fmt.Errorf("WT_RETENTION_DAYS must be a positive integer, got %q", retention)
		}
		cfg.RetentionDays = days
	}

	cfg.S3Endpoint = os.Getenv("WT_S3_ENDPOINT")
	cfg.S3Region = getEnv("WT_S3_REGION", defaultS3Region)
	cfg.S3Bucket = os.Getenv("WT_S3_BUCKET")
	cfg.S3AccessKey = os.Getenv("WT_S3_ACCESS_KEY")
	cfg.S3SecretKey = os.Getenv("WT_S3_SECRET_KEY")

	cfg.MaxImageSize = 10 * 1024 * 1024
	if maxSize, exists := os.LookupEnv("WT_MAX_IMAGE_SIZE"); exists {
		size, err := strconv.ParseInt(maxSize, 10, 64)
		if err != nil || size <= 0 {
			return cfg, fmt.Errorf("WT_MAX_IMAGE_SIZE must be a positive integer, got %q", maxSize)
		}
		cfg.MaxImageSize = size
	}

	if allowedTypes, exists := os.LookupEnv("WT_ALLOWED_IMAGE_TYPES"); exists {
		cfg.AllowedImageTypes = splitAndTrim(allowedTypes)
	} else {
		cfg.AllowedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}
	}

	if corsOrigins, exists := os.LookupEnv("WT_CORS_ALLOWED_ORIGINS"); exists {
		cfg.CORSAllowedOrigins = splitAndTrim(corsOrigins)
	}

	return cfg, nil
}

// S3Configured reports whether the image upload path can be enabled.
func (c Config) S3Configured() bool {
	return c.S3Endpoint != "" && c.S3Bucket != ""
}

// getEnv retrieves an environment variable value, returning a fallback if not set or empty
func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return fallback
}

// splitAndTrim splits a comma-separated list and trims whitespace from each entry
func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
