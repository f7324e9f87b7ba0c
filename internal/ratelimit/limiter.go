package ratelimit

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Bucket defines rate limit parameters.
type Bucket struct {
	PerMinute int
	Burst     int
}

// interval is the time it takes one token to refill.
func (b Bucket) interval() time.Duration {
	return time.Minute / time.Duration(max(b.PerMinute, 1))
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is an in-memory token-bucket rate limiter per bucket and client IP.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]Bucket
	def     Bucket
	clients map[string]*client
	now     func() time.Time
}

// New creates a limiter whose unnamed buckets use def.
func New(def Bucket) *Limiter {
	return &Limiter{
		buckets: make(map[string]Bucket),
		def:     def,
		clients: make(map[string]*client),
		now:     time.Now,
	}
}

// SetBucket overrides the limits for one named bucket.
func (l *Limiter) SetBucket(name string, b Bucket) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[name] = b
}

func (l *Limiter) bucket(name string) Bucket {
	if b, ok := l.buckets[name]; ok {
		return b
	}
	return l.def
}

// Allow consumes n tokens for key in the named bucket. It returns false when
// the client is over its limit; a rejected call consumes nothing.
func (l *Limiter) Allow(bucketName, key string, n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucket(bucketName)
	id := bucketName + ":" + key
	now := l.now()
	c, ok := l.clients[id]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Every(b.interval()), b.Burst)}
		l.clients[id] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, n)
}

// Check rejects the request with 429 when the client IP is over the named
// bucket's limit, charging n tokens capped at the bucket's burst. Returns true
// if the request was rejected.
func (l *Limiter) Check(w http.ResponseWriter, r *http.Request, bucketName string, n int) bool {
	l.mu.Lock()
	b := l.bucket(bucketName)
	l.mu.Unlock()

	if l.Allow(bucketName, ClientIP(r), min(max(n, 1), b.Burst)) {
		return false
	}

	retry := int(math.Ceil(b.interval().Seconds()))

	w.Header().Set("Retry-After", strconv.Itoa(retry))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]any{
		"error":               "Rate limited",
		"retry_after_seconds": retry,
	})
	return true
}

// ClientIP returns the caller's address without the port. RemoteAddr is
// expected to have been rewritten by a real-IP middleware already.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Sweep drops clients idle for longer than idle and returns how many were removed.
func (l *Limiter) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	removed := 0
	for id, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, id)
			removed++
		}
	}
	return removed
}

// CleanupLoop sweeps clients idle for ten minutes, once a minute, until ctx
// is cancelled.
func (l *Limiter) CleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(10 * time.Minute)
		}
	}
}

// Len reports the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
