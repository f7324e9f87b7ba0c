package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowBurstThenReject(t *testing.T) {
	l := New(Bucket{PerMinute: 60, Burst: 3})
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !l.Allow("check", "10.0.0.1", 1) {
			t.Fatalf("request %d rejected within burst", i)
		}
	}
	if l.Allow("check", "10.0.0.1", 1) {
		t.Fatal("request beyond burst allowed")
	}
	if !l.Allow("check", "10.0.0.2", 1) {
		t.Error("other clients must have their own bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("check", "10.0.0.1", 1) {
		t.Error("token should refill after one second at 60/min")
	}
}

func TestAllowChargesBatchSize(t *testing.T) {
	l := New(Bucket{PerMinute: 60, Burst: 10})
	if !l.Allow("batch", "ip", 10) {
		t.Fatal("full burst rejected")
	}
	if l.Allow("batch", "ip", 1) {
		t.Error("bucket should be empty")
	}
	if l.Allow("other", "ip", 11) {
		t.Error("request larger than burst must be rejected")
	}
}

func TestSetBucket(t *testing.T) {
	l := New(Bucket{PerMinute: 60, Burst: 1})
	l.SetBucket("batch", Bucket{PerMinute: 60, Burst: 5})
	if !l.Allow("batch", "ip", 5) {
		t.Error("named bucket limits not applied")
	}
}

func TestCheckWritesTooManyRequests(t *testing.T) {
	l := New(Bucket{PerMinute: 30, Burst: 1})
	req := httptest.NewRequest(http.MethodPost, "/checkURL", nil)
	req.RemoteAddr = "192.0.2.7:5555"

	if l.Check(httptest.NewRecorder(), req, "check", 1) {
		t.Fatal("first request rejected")
	}
	rec := httptest.NewRecorder()
	if !l.Check(rec, req, "check", 1) {
		t.Fatal("second request allowed")
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "Rate limited" {
		t.Errorf("body = %v", body)
	}
}

func TestCheckCapsChargeAtBurst(t *testing.T) {
	l := New(Bucket{PerMinute: 60, Burst: 10})
	req := httptest.NewRequest(http.MethodPost, "/checkURLs", nil)
	req.RemoteAddr = "192.0.2.8:1000"

	if l.Check(httptest.NewRecorder(), req, "batch", 50) {
		t.Fatal("batch larger than burst should drain the bucket, not be rejected")
	}
	if !l.Check(httptest.NewRecorder(), req, "batch", 1) {
		t.Error("bucket should be empty after a capped charge")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	if got := ClientIP(req); got != "2001:db8::1" {
		t.Errorf("ClientIP = %q", got)
	}
	req.RemoteAddr = "203.0.113.9"
	if got := ClientIP(req); got != "203.0.113.9" {
		t.Errorf("ClientIP without port = %q", got)
	}
}

func TestSweep(t *testing.T) {
	l := New(Bucket{PerMinute: 60, Burst: 1})
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	l.Allow("check", "old", 1)
	now = now.Add(20 * time.Minute)
	l.Allow("check", "fresh", 1)

	if removed := l.Sweep(10 * time.Minute); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}
}
