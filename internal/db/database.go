package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoDSN is returned by Connect when no connection string is configured.
var ErrNoDSN = errors.New("database url not set")

// Query limits for scan history.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB wraps a pgx connection pool and stores scan history.
type DB struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect creates a new DB instance, connects to PostgreSQL, and runs migrations.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	if dsn == "" {
		return nil, ErrNoDSN
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	db := &DB{Pool: pool, logger: logger}
	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Migrate reads and executes the embedded SQL migration files.
func (db *DB) Migrate(ctx context.Context) error {
	sql, err := migrations.ReadFile("migrations/001_init.sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	db.logger.Info("database migrated")
	return nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// PingContext checks the database connection.
func (db *DB) PingContext(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// ClampLimit maps a requested page size onto [1, MaxLimit], using
// DefaultLimit for non-positive values.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// InsertScan stores one classification and fills in its ID and timestamp.
func (db *DB) InsertScan(ctx context.Context, s *Scan) error {
	return db.Pool.QueryRow(ctx,
		`INSERT INTO scans (url, normalized, domain, prediction, is_phishing, score, confidence, severity, client_ip)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		s.URL, s.Normalized, s.Domain, s.Prediction, s.IsPhishing, s.Score, s.Confidence, s.Severity, s.ClientIP,
	).Scan(&s.ID, &s.CreatedAt)
}

// ScanByID loads one stored scan.
func (db *DB) ScanByID(ctx context.Context, id int64) (*Scan, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, url, normalized, domain, prediction, is_phishing, score, confidence, severity, client_ip, created_at
		 FROM scans WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	scan, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[Scan])
	if err != nil {
		return nil, fmt.Errorf("scan %d: %w", id, err)
	}
	return scan, nil
}

// RecentScans returns the newest scans first.
func (db *DB) RecentScans(ctx context.Context, limit int) ([]Scan, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, url, normalized, domain, prediction, is_phishing, score, confidence, severity, client_ip, created_at
		 FROM scans ORDER BY created_at DESC, id DESC LIMIT $1`, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	scans, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Scan])
	if err != nil {
		return nil, fmt.Errorf("collect scans: %w", err)
	}
	return scans, nil
}

// Stats returns aggregate counts over all scans.
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	s := Stats{BySeverity: make(map[string]int64)}
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_phishing), COALESCE(AVG(score), 0)
		 FROM scans`,
	).Scan(&s.TotalScans, &s.PhishingScans, &s.AvgScore)
	if err != nil {
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, `SELECT severity, COUNT(*) FROM scans GROUP BY severity`)
	if err != nil {
		return nil, err
	}
	var sev string
	var n int64
	_, err = pgx.ForEachRow(rows, []any{&sev, &n}, func() error {
		s.BySeverity[sev] = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("severity counts: %w", err)
	}

	rows, err = db.Pool.Query(ctx,
		`SELECT domain, COUNT(*) AS n FROM scans
		 WHERE is_phishing AND domain <> ''
		 GROUP BY domain ORDER BY n DESC, domain LIMIT 10`)
	if err != nil {
		return nil, err
	}
	s.TopDomains, err = pgx.CollectRows(rows, pgx.RowToStructByPos[DomainCount])
	if err != nil {
		return nil, fmt.Errorf("top domains: %w", err)
	}
	return &s, nil
}
