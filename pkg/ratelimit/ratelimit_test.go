package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowExhaustsWindow(t *testing.T) {
	l := New(3, time.Hour)
	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1:5000") {
			t.Fatalf("request %d denied inside the window", i)
		}
	}
	if l.Allow("10.0.0.1:5001") {
		t.Error("fourth request allowed, per-IP tokens should be spent")
	}
	if !l.Allow("10.0.0.2:5000") {
		t.Error("different IP denied, buckets should be independent")
	}
}

func TestAllowRefreshesAfterWindow(t *testing.T) {
	l := New(1, 10*time.Millisecond)
	if !l.Allow("10.0.0.1:5000") {
		t.Fatal("first request denied")
	}
	if l.Allow("10.0.0.1:5000") {
		t.Fatal("second request allowed in the same window")
	}
	time.Sleep(20 * time.Millisecond)
	if !l.Allow("10.0.0.1:5000") {
		t.Error("request denied after the window lapsed")
	}
}

func TestMiddleware(t *testing.T) {
	l := New(1, time.Hour)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", rec.Code)
	}
}
