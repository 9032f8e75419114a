// internal/storage/postgres.go
// Package storage provides PostgreSQL implementation of the Store interface.
// This implementation is intended for production use with persistent data storage.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/walleyt/walleyt-gallery-go/internal/model"
)

// It provides persistent storage for wallpapers, analytics events,
// daily stats, and the per-day visitor seen-set.
type postgres struct {
	db *pgxpool.Pool // Connection pool to PostgreSQL database
}

// NewPostgres creates a new PostgreSQL storage implementation.
// It establishes a connection pool to the database and initializes the schema.
func NewPostgres(dsn string) (Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 20
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30
	config.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &postgres{db: pool}, nil
}

// initSchema initializes the database schema.
// It creates all required tables and indexes if they don't already exist.
func initSchema(ctx context.Context, db *pgxpool.Pool) error {
	schema := `
		-- Wallpaper catalog with cumulative all-time counters
		CREATE TABLE IF NOT EXISTS wallpapers (
		    id TEXT PRIMARY KEY,
		    title TEXT NOT NULL,
		    filename TEXT NOT NULL,
		    category TEXT NOT NULL,
		    tags TEXT[] NOT NULL DEFAULT '{}',
		    resolution TEXT NOT NULL DEFAULT 'HD',
		    likes BIGINT NOT NULL DEFAULT 0,
		    downloads BIGINT NOT NULL DEFAULT 0,
		    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_wallpapers_created_at ON wallpapers(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_wallpapers_category ON wallpapers(category);
		CREATE INDEX IF NOT EXISTS idx_wallpapers_popularity ON wallpapers(downloads DESC, likes DESC);

		-- Append-only analytics event log; rows are removed only by the retention sweep
		CREATE TABLE IF NOT EXISTS analytics_events (
		    id TEXT PRIMARY KEY,
		    user_id TEXT NOT NULL,
		    session_id TEXT NOT NULL,
		    event_type TEXT NOT NULL,
		    wallpaper_id TEXT,
		    category TEXT,
		    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_events_user_time ON analytics_events(user_id, occurred_at DESC);
		CREATE INDEX IF NOT EXISTS idx_events_type_time ON analytics_events(event_type, occurred_at DESC);
		CREATE INDEX IF NOT EXISTS idx_events_wallpaper ON analytics_events(wallpaper_id, event_type, occurred_at);
		CREATE INDEX IF NOT EXISTS idx_events_occurred_at ON analytics_events(occurred_at);

		-- One pre-aggregated row per calendar day; date key enforces uniqueness
		CREATE TABLE IF NOT EXISTS daily_stats (
		    date TEXT PRIMARY KEY,
		    unique_visitors BIGINT NOT NULL DEFAULT 0,
		    sessions BIGINT NOT NULL DEFAULT 0,
		    downloads BIGINT NOT NULL DEFAULT 0,
		    likes BIGINT NOT NULL DEFAULT 0,
		    top_wallpapers JSONB NOT NULL DEFAULT '[]',
		    top_categories JSONB NOT NULL DEFAULT '[]',
		    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		-- Per-day visitor seen-set; the primary key is the uniqueness signal
		CREATE TABLE IF NOT EXISTS daily_visitors (
		    date TEXT NOT NULL,
		    user_id TEXT NOT NULL,
		    PRIMARY KEY (date, user_id)
		);
	`

	_, err := db.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool
func (p *postgres) Close() {
	p.db.Close()
}

func (p *postgres) CreateWallpaper(ctx context.Context, w model.Wallpaper) error {
	query := `INSERT INTO wallpapers (id, title, filename, category, tags, resolution, likes, downloads, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := p.db.Exec(ctx, query,
		w.ID, w.Title, w.Filename, w.Category, w.Tags, w.Resolution,
		w.Likes, w.Downloads, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("failed to create wallpaper: %w", err)
	}
	return nil
}

func (p *postgres) GetWallpaper(ctx context.Context, id string) (*model.Wallpaper, error) {
	query := `SELECT id, title, filename, category, tags, resolution, likes, downloads, created_at, updated_at
	          FROM wallpapers WHERE id = $1`

	var w model.Wallpaper
	err := p.db.QueryRow(ctx, query, id).Scan(
		&w.ID, &w.Title, &w.Filename, &w.Category, &w.Tags, &w.Resolution,
		&w.Likes, &w.Downloads, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallpaper: %w", err)
	}
	return &w, nil
}

func (p *postgres) ListWallpapers(ctx context.Context) ([]model.Wallpaper, error) {
	query := `SELECT id, title, filename, category, tags, resolution, likes, downloads, created_at, updated_at
	          FROM wallpapers ORDER BY created_at DESC, id ASC`

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallpapers: %w", err)
	}
	defer rows.Close()

	return scanWallpapers(rows)
}

func scanWallpapers(rows pgx.Rows) ([]model.Wallpaper, error) {
	var out []model.Wallpaper
	for rows.Next() {
		var w model.Wallpaper
		if err := rows.Scan(
			&w.ID, &w.Title, &w.Filename, &w.Category, &w.Tags, &w.Resolution,
			&w.Likes, &w.Downloads, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallpaper: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallpapers: %w", err)
	}
	return out, nil
}

func (p *postgres) UpdateWallpaper(ctx context.Context, w model.Wallpaper) error {
	// Counters are owned by the analytics path and deliberately not written here
	query := `UPDATE wallpapers SET title = $1, filename = $2, category = $3, tags = $4, resolution = $5, updated_at = NOW()
	          WHERE id = $6`

	result, err := p.db.Exec(ctx, query, w.Title, w.Filename, w.Category, w.Tags, w.Resolution, w.ID)
	if err != nil {
		return fmt.Errorf("failed to update wallpaper: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *postgres) DeleteWallpaper(ctx context.Context, id string) error {
	result, err := p.db.Exec(ctx, `DELETE FROM wallpapers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete wallpaper: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *postgres) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := p.db.Query(ctx, `SELECT DISTINCT category FROM wallpapers ORDER BY category ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return out, nil
}

func (p *postgres) IncrementWallpaperCounter(ctx context.Context, id string, metric CounterMetric) error {
	// Column chosen from a closed set; metric never comes from user input
	var query string
	switch metric {
	case MetricDownloads:
		query = `UPDATE wallpapers SET downloads = downloads + 1, updated_at = NOW() WHERE id = $1`
	case MetricLikes:
		query = `UPDATE wallpapers SET likes = likes + 1, updated_at = NOW() WHERE id = $1`
	default:
		return errors.New("unknown counter metric")
	}

	result, err := p.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment wallpaper counter: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *postgres) TopWallpapersByDownloads(ctx context.Context, limit int) ([]model.Wallpaper, error) {
	query := `SELECT id, title, filename, category, tags, resolution, likes, downloads, created_at, updated_at
	          FROM wallpapers ORDER BY downloads DESC, likes DESC, id ASC LIMIT $1`

	rows, err := p.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top wallpapers: %w", err)
	}
	defer rows.Close()

	return scanWallpapers(rows)
}

func (p *postgres) InsertEvent(ctx context.Context, ev model.AnalyticsEvent) error {
	query := `INSERT INTO analytics_events (id, user_id, session_id, event_type, wallpaper_id, category, occurred_at)
	          VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)`

	_, err := p.db.Exec(ctx, query,
		ev.ID, ev.UserID, ev.SessionID, string(ev.EventType), ev.WallpaperID, ev.Category, ev.Timestamp)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (p *postgres) CountEvents(ctx context.Context, wallpaperID string, eventType model.EventType, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM analytics_events
	          WHERE wallpaper_id = $1 AND event_type = $2 AND occurred_at >= $3`

	var n int64
	if err := p.db.QueryRow(ctx, query, wallpaperID, string(eventType), since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

func (p *postgres) DeleteExpiredEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := p.db.Exec(ctx, `DELETE FROM analytics_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired events: %w", err)
	}
	return result.RowsAffected(), nil
}

func (p *postgres) GetDailyStats(ctx context.Context, date string) (*model.DailyStats, error) {
	query := `SELECT date, unique_visitors, sessions, downloads, likes, top_wallpapers, top_categories, updated_at
	          FROM daily_stats WHERE date = $1`

	s, err := scanDailyStats(p.db.QueryRow(ctx, query, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// scanDailyStats scans one daily stats row, unmarshalling the JSONB leaderboards.
func scanDailyStats(row pgx.Row) (*model.DailyStats, error) {
	var s model.DailyStats
	var topWallpapersJSON, topCategoriesJSON []byte

	err := row.Scan(&s.Date, &s.UniqueVisitors, &s.Sessions, &s.Downloads, &s.Likes,
		&topWallpapersJSON, &topCategoriesJSON, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan daily stats: %w", err)
	}

	if err := json.Unmarshal(topWallpapersJSON, &s.TopWallpapers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal top wallpapers: %w", err)
	}
	if err := json.Unmarshal(topCategoriesJSON, &s.TopCategories); err != nil {
		return nil, fmt.Errorf("failed to unmarshal top categories: %w", err)
	}
	return &s, nil
}

func (p *postgres) ListDailyStatsSince(ctx context.Context, startDate string) ([]model.DailyStats, error) {
	// Date keys are YYYY-MM-DD, so lexicographic comparison is chronological
	query := `SELECT date, unique_visitors, sessions, downloads, likes, top_wallpapers, top_categories, updated_at
	          FROM daily_stats WHERE date >= $1 ORDER BY date ASC`

	rows, err := p.db.Query(ctx, query, startDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily stats: %w", err)
	}
	defer rows.Close()

	var out []model.DailyStats
	for rows.Next() {
		s, err := scanDailyStats(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily stats: %w", err)
	}
	return out, nil
}

// MutateDailyStats applies fn to the day's row inside a transaction holding a
// row lock, so concurrent leaderboard read-modify-writes cannot lose updates.
func (p *postgres) MutateDailyStats(ctx context.Context, date string, fn func(*model.DailyStats)) (*model.DailyStats, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lazily create the day's row so the FOR UPDATE below always has a target
	_, err = tx.Exec(ctx, `INSERT INTO daily_stats (date) VALUES ($1) ON CONFLICT (date) DO NOTHING`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure daily stats row: %w", err)
	}

	query := `SELECT date, unique_visitors, sessions, downloads, likes, top_wallpapers, top_categories, updated_at
	          FROM daily_stats WHERE date = $1 FOR UPDATE`
	s, err := scanDailyStats(tx.QueryRow(ctx, query, date))
	if err != nil {
		return nil, err
	}

	if fn != nil {
		fn(s)
		s.UpdatedAt = time.Now().UTC()

		topWallpapersJSON, err := json.Marshal(s.TopWallpapers)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal top wallpapers: %w", err)
		}
		topCategoriesJSON, err := json.Marshal(s.TopCategories)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal top categories: %w", err)
		}

		update := `UPDATE daily_stats
		           SET unique_visitors = $2, sessions = $3, downloads = $4, likes = $5,
		               top_wallpapers = $6, top_categories = $7, updated_at = $8
		           WHERE date = $1`
		_, err = tx.Exec(ctx, update, s.Date,
			s.UniqueVisitors, s.Sessions, s.Downloads, s.Likes,
			topWallpapersJSON, topCategoriesJSON, s.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to update daily stats: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit daily stats: %w", err)
	}
	return s, nil
}

// MarkVisitor inserts into the seen-set; the rows-affected count is the
// atomic first-sighting signal, so concurrent session starts for the same
// new user cannot both report first.
func (p *postgres) MarkVisitor(ctx context.Context, date, userID string) (bool, error) {
	result, err := p.db.Exec(ctx,
		`INSERT INTO daily_visitors (date, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		date, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark visitor: %w", err)
	}
	return result.RowsAffected() == 1, nil
}
