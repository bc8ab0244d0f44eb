package profile

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Default values for DatabaseConfig.
const (
	DefaultDBPort    = 5432
	DefaultDBSSLMode = "prefer"
	DefaultMaxConns  = 4
	DefaultMinConns  = 1
)

// DatabaseConfig describes the Postgres database backing a PostgresStore.
// URL takes precedence over the individual fields.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Enabled reports whether a database has been configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

// BuildConnString builds a PostgreSQL connection string from cfg.
func BuildConnString(cfg DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}

	port := cfg.Port
	if port == 0 {
		port = DefaultDBPort
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = DefaultDBSSLMode
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		url.QueryEscape(cfg.Password),
		cfg.Host,
		port,
		cfg.Name,
		sslMode,
	)
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS profiles (
	user_id    TEXT PRIMARY KEY,
	email      TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	avatar_url TEXT NOT NULL DEFAULT '',
	cached_at  TIMESTAMPTZ NOT NULL
)`

const selectProfileSQL = `
SELECT user_id, email, name, avatar_url, cached_at
FROM profiles
WHERE user_id = $1 AND cached_at > $2`

const upsertProfileSQL = `
INSERT INTO profiles (user_id, email, name, avatar_url, cached_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET
	email = EXCLUDED.email,
	name = EXCLUDED.name,
	avatar_url = EXCLUDED.avatar_url,
	cached_at = EXCLUDED.cached_at`

// PostgresStore keeps profiles in a Postgres table. Expired rows are filtered
// on read and overwritten on the next Put.
type PostgresStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewPostgresStore connects to the database and ensures the profiles table exists.
func NewPostgresStore(ctx context.Context, cfg DatabaseConfig, ttl time.Duration) (*PostgresStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	pool, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create profiles table: %w", err)
	}

	return &PostgresStore{pool: pool, ttl: ttl}, nil
}

func connect(ctx context.Context, cfg DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	maxConns, minConns := cfg.MaxConns, cfg.MinConns
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}
	if minConns <= 0 {
		minConns = DefaultMinConns
	}
	poolCfg.MaxConns = int32(maxConns)
	poolCfg.MinConns = int32(minConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Get returns the cached profile for userID, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := s.pool.QueryRow(ctx, selectProfileSQL, userID, time.Now().Add(-s.ttl)).
		Scan(&p.UserID, &p.Email, &p.Name, &p.AvatarURL, &p.CachedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("select profile: %w", err)
	}
	return p, nil
}

// Put upserts p with a fresh CachedAt.
func (s *PostgresStore) Put(ctx context.Context, p Profile) error {
	_, err := s.pool.Exec(ctx, upsertProfileSQL, p.UserID, p.Email, p.Name, p.AvatarURL, time.Now())
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
