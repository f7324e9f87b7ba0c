package sse

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veil-waf/phishguard/internal/db"
)

// ScanChannel is the PostgreSQL NOTIFY channel the scans table trigger
// writes to. Payloads carry only the row id: {"id": 42}.
const ScanChannel = "scan_stream"

// ScanLoader fetches a stored scan named by a notification.
type ScanLoader interface {
	ScanByID(ctx context.Context, id int64) (*db.Scan, error)
}

// PGListener subscribes to PostgreSQL NOTIFY and fans notifications out to
// the SSE hub, so every replica streams scans recorded by any of them.
type PGListener struct {
	pool   *pgxpool.Pool
	scans  ScanLoader
	hub    *Hub
	logger *slog.Logger
}

// NewPGListener creates a new PGListener that bridges PostgreSQL notifications to SSE.
func NewPGListener(pool *pgxpool.Pool, scans ScanLoader, hub *Hub, logger *slog.Logger) *PGListener {
	return &PGListener{pool: pool, scans: scans, hub: hub, logger: logger}
}

// Listen blocks until ctx is cancelled or the connection fails.
// It should be run inside RunWithRecovery so it auto-restarts on failure.
func (pl *PGListener) Listen(ctx context.Context) {
	conn, err := pl.pool.Acquire(ctx)
	if err != nil {
		pl.logger.Error("pg-listen: acquire connection failed", "err", err)
		return
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ScanChannel); err != nil {
		pl.logger.Error("pg-listen: LISTEN failed", "channel", ScanChannel, "err", err)
		return
	}
	pl.logger.Info("pg-listen: subscribed", "channel", ScanChannel)

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // graceful shutdown
			}
			pl.logger.Error("pg-listen: notification error", "err", err)
			return // RunWithRecovery will reconnect
		}
		pl.dispatch(ctx, notification.Channel, notification.Payload)
	}
}

// dispatch loads the scan a notification points at and publishes it.
func (pl *PGListener) dispatch(ctx context.Context, channel, payload string) {
	id, ok := notificationScanID(channel, payload)
	if !ok {
		pl.logger.Warn("pg-listen: ignoring notification", "channel", channel)
		return
	}
	scan, err := pl.scans.ScanByID(ctx, id)
	if err != nil {
		pl.logger.Warn("pg-listen: load scan failed", "id", id, "err", err)
		return
	}
	if err := pl.hub.PublishJSON("scan", scan); err != nil {
		pl.logger.Warn("pg-listen: publish failed", "id", id, "err", err)
	}
}

// notificationScanID extracts the row id from a scan notification. Payloads
// on other channels, or without a positive id, are rejected.
func notificationScanID(channel, payload string) (int64, bool) {
	if channel != ScanChannel {
		return 0, false
	}
	var msg struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(payload), &msg); err != nil || msg.ID <= 0 {
		return 0, false
	}
	return msg.ID, true
}
