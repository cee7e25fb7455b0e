package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "carmatch/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var seen string
	var logged *applog.Logger
	m := NewMiddleware(nil, func(*http.Request) string { return "198.51.100.1" })
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		logged = applog.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if !strings.HasPrefix(seen, "req_") || len(seen) != len("req_")+16 {
		t.Fatalf("unexpected request id %q", seen)
	}
	if rr.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("response header %q does not match context id %q", rr.Header().Get(HeaderRequestID), seen)
	}
	if logged == nil {
		t.Fatalf("expected request-scoped logger in context")
	}
	if got := m.GetMetrics().TotalRequests; got != 1 {
		t.Fatalf("expected 1 traced request, got %d", got)
	}
}

func TestMiddlewareTagsRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Component: applog.ComponentHTTP, Handler: slog.NewTextHandler(&buf, nil)})
	h := NewMiddleware(logger, nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).InfoContext(r.Context(), "handler ran")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected start, handler and completion lines, got %q", buf.String())
	}
	for _, l := range lines {
		if !strings.Contains(l, "request_id=abc-123") {
			t.Fatalf("line without request id: %q", l)
		}
	}
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"valid", "abc-123", true},
		{"with space", "abc 123", false},
		{"too long", strings.Repeat("x", 65), false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMiddleware(nil, nil).Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(HeaderRequestID, tt.incoming)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			got := rr.Header().Get(HeaderRequestID)
			if tt.keep && got != tt.incoming {
				t.Fatalf("expected incoming id kept, got %q", got)
			}
			if !tt.keep && !strings.HasPrefix(got, "req_") {
				t.Fatalf("expected generated id, got %q", got)
			}
		})
	}
}
