package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"marketplace_watcher/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// EnsureSchema creates the domain tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS monitors (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		url TEXT NOT NULL,
		check_frequency TEXT NOT NULL DEFAULT 'daily'
			CHECK (check_frequency IN ('hourly', 'daily', 'weekly')),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		price BIGINT NOT NULL DEFAULT 0,
		location TEXT,
		location_details JSONB,
		photos TEXT[] NOT NULL DEFAULT '{}',
		primary_photo_url TEXT,
		marketplace_url TEXT NOT NULL DEFAULT '',
		description TEXT,
		enrichment_attempts INT NOT NULL DEFAULT 0,
		first_seen_at TIMESTAMPTZ NOT NULL,
		last_seen_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS listing_price_history (
		id BIGSERIAL PRIMARY KEY,
		listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		price BIGINT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS monitor_matches (
		id UUID PRIMARY KEY,
		monitor_id UUID NOT NULL REFERENCES monitors(id) ON DELETE CASCADE,
		listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		matched_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		is_notified BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE (monitor_id, listing_id)
	);

	CREATE TABLE IF NOT EXISTS notification_settings (
		user_id TEXT PRIMARY KEY,
		email_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		email_frequency TEXT NOT NULL DEFAULT 'daily'
			CHECK (email_frequency IN ('immediate', 'daily', 'weekly')),
		last_sent_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_monitors_user ON monitors(user_id);
	CREATE INDEX IF NOT EXISTS idx_monitors_active ON monitors(is_active) WHERE is_active;
	CREATE INDEX IF NOT EXISTS idx_price_history_listing ON listing_price_history(listing_id, recorded_at DESC);
	CREATE INDEX IF NOT EXISTS idx_matches_monitor ON monitor_matches(monitor_id, matched_at DESC);
	CREATE INDEX IF NOT EXISTS idx_matches_unnotified ON monitor_matches(monitor_id) WHERE NOT is_notified;
	CREATE INDEX IF NOT EXISTS idx_listings_enrichment ON listings(last_seen_at) WHERE description IS NULL;
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// =============================================================================
// Users
// =============================================================================

func (s *PostgresStore) EnsureUser(ctx context.Context, id, email string) error {
	query := `
		INSERT INTO users (id, email) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email)`

	_, err := s.pool.Exec(ctx, query, id, email)
	return err
}

// =============================================================================
// Monitors
// =============================================================================

const monitorColumns = `id, user_id, name, url, check_frequency, is_active, created_at, updated_at`

func scanMonitor(row pgx.Row) (*models.Monitor, error) {
	var m models.Monitor
	err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.URL, &m.CheckFrequency, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) CreateMonitor(ctx context.Context, m *models.Monitor) error {
	query := `
		INSERT INTO monitors (id, user_id, name, url, check_frequency, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at`

	return s.pool.QueryRow(ctx, query,
		m.ID, m.UserID, m.Name, m.URL, m.CheckFrequency, m.IsActive,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (s *PostgresStore) GetMonitor(ctx context.Context, id uuid.UUID) (*models.Monitor, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE id = $1`, id)
	return scanMonitor(row)
}

func (s *PostgresStore) GetMonitorForUser(ctx context.Context, id uuid.UUID, userID string) (*models.Monitor, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE id = $1 AND user_id = $2`, id, userID)
	return scanMonitor(row)
}

func (s *PostgresStore) ListMonitorsByUser(ctx context.Context, userID string) ([]models.Monitor, error) {
	return s.queryMonitors(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (s *PostgresStore) ListActiveMonitors(ctx context.Context) ([]models.Monitor, error) {
	return s.queryMonitors(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE is_active ORDER BY created_at`)
}

func (s *PostgresStore) queryMonitors(ctx context.Context, query string, args ...any) ([]models.Monitor, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var monitors []models.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		monitors = append(monitors, *m)
	}
	return monitors, rows.Err()
}

func (s *PostgresStore) UpdateMonitor(ctx context.Context, m *models.Monitor) error {
	query := `
		UPDATE monitors SET
			name = $3,
			url = $4,
			check_frequency = $5,
			is_active = $6,
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at`

	err := s.pool.QueryRow(ctx, query, m.ID, m.UserID, m.Name, m.URL, m.CheckFrequency, m.IsActive).Scan(&m.UpdatedAt)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("monitor %s not found", m.ID)
	}
	return err
}

// DeleteMonitor removes a monitor and, by cascade, its matches.
func (s *PostgresStore) DeleteMonitor(ctx context.Context, id uuid.UUID, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM monitors WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// =============================================================================
// Notification settings
// =============================================================================

func (s *PostgresStore) GetNotificationSettings(ctx context.Context, userID string) (*models.NotificationSettings, error) {
	query := `
		SELECT user_id, email_enabled, email_frequency, last_sent_at
		FROM notification_settings WHERE user_id = $1`

	var ns models.NotificationSettings
	err := s.pool.QueryRow(ctx, query, userID).Scan(&ns.UserID, &ns.EmailEnabled, &ns.EmailFrequency, &ns.LastSentAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ns, nil
}

func (s *PostgresStore) SaveNotificationSettings(ctx context.Context, ns *models.NotificationSettings) error {
	query := `
		INSERT INTO notification_settings (user_id, email_enabled, email_frequency, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			email_frequency = EXCLUDED.email_frequency,
			updated_at = NOW()
		RETURNING last_sent_at`

	return s.pool.QueryRow(ctx, query, ns.UserID, ns.EmailEnabled, ns.EmailFrequency).Scan(&ns.LastSentAt)
}

func (s *PostgresStore) MarkDigestSent(ctx context.Context, userID string, at time.Time) error {
	query := `
		INSERT INTO notification_settings (user_id, last_sent_at, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			last_sent_at = EXCLUDED.last_sent_at,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query, userID, at)
	return err
}
