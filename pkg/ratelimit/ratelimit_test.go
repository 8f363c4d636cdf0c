package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAllowWithinBurst(t *testing.T) {
	l := NewLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow("client-a") {
			t.Errorf("request %d denied, want allowed within burst", i+1)
		}
	}
	if l.Allow("client-a") {
		t.Error("request beyond burst allowed, want denied")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := NewLimiter(1, 1)

	if !l.Allow("client-a") {
		t.Error("first request for client-a denied")
	}
	if !l.Allow("client-b") {
		t.Error("client-b throttled by client-a's bucket")
	}
}

func TestMiddlewareRejectsWith429(t *testing.T) {
	l := NewLimiter(1, 1)
	handler := l.Middleware(IPKeyFunc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/status", nil)
	req.RemoteAddr = "10.0.0.1:51234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request = %d, want 429", rec.Code)
	}
}

func TestIPKeyFunc(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"strips port", "192.168.1.5:40022", "", "192.168.1.5"},
		{"same host different port", "192.168.1.5:40023", "", "192.168.1.5"},
		{"prefers forwarded header", "10.0.0.1:80", "203.0.113.9", "203.0.113.9"},
		{"no port passes through", "192.168.1.5", "", "192.168.1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := IPKeyFunc(req); got != tt.want {
				t.Errorf("IPKeyFunc() = %q, want %q", got, tt.want)
			}
		})
	}
}
