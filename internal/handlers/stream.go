package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/veil-waf/phishguard/internal/sse"
)

// StreamHandler serves the live scan feed over SSE.
type StreamHandler struct {
	hub       *sse.Hub
	history   ScanHistory
	keepalive time.Duration
	logger    *slog.Logger
}

// NewStreamHandler creates a new StreamHandler. history may be nil, in which
// case no backlog is sent.
func NewStreamHandler(hub *sse.Hub, history ScanHistory, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, history: history, keepalive: 30 * time.Second, logger: logger}
}

// HandleSSE handles GET /api/stream.
// It sends the most recent scans oldest first, then streams live scan events
// with periodic keepalives.
func (sh *StreamHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Subscribe before hydrating so nothing published in between is lost.
	ch, cancel := sh.hub.Subscribe()
	defer cancel()

	if sh.history != nil {
		recent, err := sh.history.RecentScans(r.Context(), 20)
		if err != nil {
			sh.logger.Warn("stream backlog query failed", "err", err)
		}
		for i := len(recent) - 1; i >= 0; i-- {
			data, _ := json.Marshal(recent[i])
			sse.Event{Type: "scan", Data: data}.WriteTo(w)
		}
	}
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(sh.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			event.WriteTo(w)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
