package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestAuth(t *testing.T) {
	h := Auth("s3cret", "/api/health")(okHandler)
	cases := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{"open path", func() *http.Request { return httptest.NewRequest(http.MethodGet, "/api/health", nil) }, http.StatusOK},
		{"missing", func() *http.Request { return httptest.NewRequest(http.MethodGet, "/api/summary", nil) }, http.StatusUnauthorized},
		{"bearer", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
			r.Header.Set("Authorization", "Bearer s3cret")
			return r
		}, http.StatusOK},
		{"header", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
			r.Header.Set("X-API-Key", "s3cret")
			return r
		}, http.StatusOK},
		{"query for websocket", func() *http.Request { return httptest.NewRequest(http.MethodGet, "/ws?api_key=s3cret", nil) }, http.StatusOK},
		{"wrong", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
			r.Header.Set("X-API-Key", "nope")
			return r
		}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		if rec := serve(h, tc.req()); rec.Code != tc.status {
			t.Fatalf("%s: status=%d want=%d", tc.name, rec.Code, tc.status)
		}
	}

	if rec := serve(Auth("")(okHandler), httptest.NewRequest(http.MethodGet, "/api/summary", nil)); rec.Code != http.StatusOK {
		t.Fatalf("disabled auth status=%d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://ledger.example.com"})(okHandler)

	r := httptest.NewRequest(http.MethodOptions, "/api/movements", nil)
	r.Header.Set("Origin", "https://ledger.example.com")
	rec := serve(h, r)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "https://ledger.example.com" {
		t.Fatalf("preflight status=%d headers=%v", rec.Code, rec.Header())
	}

	r = httptest.NewRequest(http.MethodGet, "/api/movements", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	if rec := serve(h, r); rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("foreign origin allowed: %v", rec.Header())
	}
}

func TestLoggingSetsRequestIDAndRedactsKey(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Logging(logger)(okHandler)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/ws?api_key=s3cret", nil))
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatal("missing request id")
	}
	if strings.Contains(buf.String(), "s3cret") {
		t.Fatalf("api key leaked into log: %s", buf.String())
	}

	r := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r.Header.Set(RequestIDHeader, "req-42")
	if rec := serve(h, r); rec.Header().Get(RequestIDHeader) != "req-42" {
		t.Fatalf("request id=%q want req-42", rec.Header().Get(RequestIDHeader))
	}
}

func TestLoggingRecordsStatusAndBytes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	serve(h, httptest.NewRequest(http.MethodGet, "/api/positions/9", nil))

	var line struct {
		Level  string `json:"level"`
		Status int    `json:"status"`
		Bytes  int64  `json:"bytes"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode %s: %v", buf.String(), err)
	}
	if line.Level != "WARN" || line.Status != http.StatusNotFound || line.Bytes != int64(len("nope\n")) {
		t.Fatalf("log=%+v", line)
	}
}

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}

func TestRateLimitOnlyWrites(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := &stubLimiter{}
	h := RateLimit(l, 10, time.Minute, logger)(okHandler)

	if rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/summary", nil)); rec.Code != http.StatusOK {
		t.Fatalf("read status=%d", rec.Code)
	}
	r := httptest.NewRequest(http.MethodPost, "/api/movements", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := serve(h, r)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("write status=%d retry=%s", rec.Code, rec.Header().Get("Retry-After"))
	}
	if len(l.keys) != 1 || l.keys[0] != "api:write:203.0.113.7" {
		t.Fatalf("keys=%v", l.keys)
	}

	l.err = errors.New("redis down")
	if rec := serve(h, httptest.NewRequest(http.MethodPut, "/api/movements/1", nil)); rec.Code != http.StatusOK {
		t.Fatalf("fail-open status=%d", rec.Code)
	}
}
