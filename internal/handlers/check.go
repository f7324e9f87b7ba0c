package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veil-waf/phishguard/internal/classify"
	"github.com/veil-waf/phishguard/internal/db"
	"github.com/veil-waf/phishguard/internal/ratelimit"
)

// Scorer classifies a single raw URL.
type Scorer interface {
	Score(rawURL string) (*classify.Prediction, error)
}

// ScanRecorder persists completed scans.
type ScanRecorder interface {
	InsertScan(ctx context.Context, s *db.Scan) error
}

// EventPublisher pushes live events to stream subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, v any) error
}

// Checker scores URLs and fans the result out to history and the live feed.
// Recorder and events are optional; pass untyped nil to disable them.
type Checker struct {
	scorer   Scorer
	recorder ScanRecorder
	events   EventPublisher
	logger   *slog.Logger
}

// NewChecker creates a Checker.
func NewChecker(scorer Scorer, recorder ScanRecorder, events EventPublisher, logger *slog.Logger) *Checker {
	return &Checker{scorer: scorer, recorder: recorder, events: events, logger: logger}
}

// Check analyzes rawURL. Storage and publish failures are logged and never
// fail the check.
func (c *Checker) Check(ctx context.Context, rawURL, clientIP string) (*CheckResponse, error) {
	pred, err := c.scorer.Score(rawURL)
	if err != nil {
		c.logger.Error("url analysis failed", "url", rawURL, "err", err)
		return nil, err
	}
	resp := NewCheckResponse(pred)

	scan := &db.Scan{
		URL:        resp.URL,
		Normalized: resp.Normalized,
		Domain:     resp.Domain,
		Prediction: resp.Prediction,
		IsPhishing: resp.IsPhishing,
		Score:      resp.PhishingScore,
		Confidence: pred.Confidence,
		Severity:   string(resp.RiskLevel),
		ClientIP:   clientIP,
		CreatedAt:  time.Now().UTC(),
	}
	if c.recorder != nil {
		if err := c.recorder.InsertScan(ctx, scan); err != nil {
			c.logger.Warn("failed to record scan", "normalized", scan.Normalized, "err", err)
		}
	}
	if c.events != nil {
		if err := c.events.PublishJSON("scan", scan); err != nil {
			c.logger.Warn("failed to publish scan", "err", err)
		}
	}
	return resp, nil
}

// CheckHandler serves the scoring endpoints.
type CheckHandler struct {
	checker     *Checker
	limiter     *ratelimit.Limiter
	maxBatch    int
	concurrency int
	logger      *slog.Logger
}

// NewCheckHandler creates a CheckHandler. A nil limiter disables rate limiting.
func NewCheckHandler(checker *Checker, limiter *ratelimit.Limiter, maxBatch, concurrency int, logger *slog.Logger) *CheckHandler {
	return &CheckHandler{
		checker:     checker,
		limiter:     limiter,
		maxBatch:    maxBatch,
		concurrency: concurrency,
		logger:      logger,
	}
}

type checkRequest struct {
	URL string `json:"url"`
}

// CheckURL handles POST /checkURL {"url": "..."}.
func (h *CheckHandler) CheckURL(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && h.limiter.Check(w, r, "check", 1) {
		return
	}

	var req checkRequest
	// A malformed body is treated like a missing URL.
	if err := decodeBody(w, r, &req); rejectOversized(w, err) {
		return
	}
	if req.URL == "" {
		jsonError(w, "No URL provided", http.StatusBadRequest)
		return
	}

	resp, err := h.checker.Check(r.Context(), req.URL, ratelimit.ClientIP(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ScoringError("", err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type batchRequest struct {
	URLs []string `json:"urls"`
}

type batchResponse struct {
	Results []any `json:"results"`
}

// CheckURLs handles POST /checkURLs {"urls": [...]}. Results keep request
// order; a URL that fails to score carries its own error entry.
func (h *CheckHandler) CheckURLs(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	err := decodeBody(w, r, &req)
	if rejectOversized(w, err) {
		return
	}
	if err != nil || len(req.URLs) == 0 {
		jsonError(w, "No URLs provided", http.StatusBadRequest)
		return
	}
	if len(req.URLs) > h.maxBatch {
		jsonError(w, "Too many URLs (max "+strconv.Itoa(h.maxBatch)+")", http.StatusBadRequest)
		return
	}
	if h.limiter != nil && h.limiter.Check(w, r, "batch", len(req.URLs)) {
		return
	}

	ip := ratelimit.ClientIP(r)
	results := make([]any, len(req.URLs))

	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(max(h.concurrency, 1))
	for i, u := range req.URLs {
		i, u := i, u
		g.Go(func() error {
			if u == "" {
				results[i] = ErrorResponse{Error: true, URL: u, Message: "No URL provided"}
				return nil
			}
			if err := ctx.Err(); err != nil {
				results[i] = ScoringError(u, err)
				return nil
			}
			resp, err := h.checker.Check(ctx, u, ip)
			if err != nil {
				results[i] = ScoringError(u, err)
				return nil
			}
			results[i] = resp
			return nil
		})
	}
	_ = g.Wait()

	h.logger.Info("batch checked", "count", len(req.URLs))
	writeJSON(w, http.StatusOK, batchResponse{Results: results})
}
