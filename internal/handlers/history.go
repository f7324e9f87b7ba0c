package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/veil-waf/phishguard/internal/db"
)

// ScanHistory reads stored scans.
type ScanHistory interface {
	RecentScans(ctx context.Context, limit int) ([]db.Scan, error)
	Stats(ctx context.Context) (*db.Stats, error)
}

// HistoryHandler serves the scan history API. With no store configured every
// endpoint answers 503.
type HistoryHandler struct {
	store  ScanHistory
	logger *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler. store may be nil.
func NewHistoryHandler(store ScanHistory, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{store: store, logger: logger}
}

// ListScans handles GET /api/scans?limit=N.
func (h *HistoryHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		jsonError(w, "scan history is not enabled", http.StatusServiceUnavailable)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	scans, err := h.store.RecentScans(r.Context(), db.ClampLimit(limit))
	if err != nil {
		h.logger.Error("list scans failed", "err", err)
		jsonError(w, "failed to load scans", http.StatusInternalServerError)
		return
	}
	if scans == nil {
		scans = []db.Scan{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": scans})
}

// GetStats handles GET /api/stats.
func (h *HistoryHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		jsonError(w, "scan history is not enabled", http.StatusServiceUnavailable)
		return
	}
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Error("stats failed", "err", err)
		jsonError(w, "failed to load stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
