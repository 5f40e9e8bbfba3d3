package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	orig := L()
	Replace(zap.New(core))
	t.Cleanup(func() { Replace(orig) })
	return logs
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	logs := observe(t)

	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog", nil))

	if seen == "" {
		t.Fatal("expected a generated request id in the context")
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("response header id = %q, want %q", got, seen)
	}

	done := logs.FilterMessage("request completed").All()
	if len(done) != 1 {
		t.Fatalf("expected 1 completion entry, got %d", len(done))
	}
	fields := done[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("status field = %v, want %d", fields["status"], http.StatusTeapot)
	}
	if fields["request_id"] != seen {
		t.Errorf("request_id field = %v, want %q", fields["request_id"], seen)
	}
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	observe(t)

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, want abc-123", got)
	}
}

func TestResolveFormat(t *testing.T) {
	if got := resolveFormat("json"); got != "json" {
		t.Errorf("resolveFormat(json) = %q", got)
	}
	if got := resolveFormat("console"); got != "console" {
		t.Errorf("resolveFormat(console) = %q", got)
	}
	if got := resolveFormat("auto"); got != "json" && got != "console" {
		t.Errorf("resolveFormat(auto) = %q", got)
	}
}
