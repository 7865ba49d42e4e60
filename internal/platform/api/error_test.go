package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func decode(t *testing.T, rr *httptest.ResponseRecorder) APIError {
	t.Helper()
	var body ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rr.Body.String())
	}
	return body.Error
}

func TestWriteError_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	BadRequest(rr, "INVALID_MODE", "mode must be unseen or all", "rid-1", map[string]any{"mode": "x"})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
	e := decode(t, rr)
	if e.Code != "INVALID_MODE" || e.RequestID != "rid-1" || e.Details["mode"] != "x" {
		t.Fatalf("unexpected envelope %+v", e)
	}
}

func TestHelpers_Status(t *testing.T) {
	cases := []struct {
		name  string
		write func(w http.ResponseWriter)
		want  int
	}{
		{"unauthorized", func(w http.ResponseWriter) { Unauthorized(w, "UNAUTHENTICATED", "m", "") }, http.StatusUnauthorized},
		{"forbidden", func(w http.ResponseWriter) { Forbidden(w, "FORBIDDEN", "m", "") }, http.StatusForbidden},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "NOT_FOUND", "m", "") }, http.StatusNotFound},
		{"conflict", func(w http.ResponseWriter) { Conflict(w, "SESSION_RESET", "m", "", nil) }, http.StatusConflict},
		{"bad gateway", func(w http.ResponseWriter) { BadGateway(w, "UPSTREAM_ERROR", "m", "", nil) }, http.StatusBadGateway},
		{"unavailable", func(w http.ResponseWriter) { Unavailable(w, "NOT_READY", "m", "") }, http.StatusServiceUnavailable},
		{"internal", func(w http.ResponseWriter) { Internal(w, "") }, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tc.write(rr)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
			if e := decode(t, rr); e.Code == "" {
				t.Fatal("expected error code in envelope")
			}
		})
	}
}

func TestRateLimited_RetryAfter(t *testing.T) {
	rr := httptest.NewRecorder()
	RateLimited(rr, 1500*time.Millisecond, "rid")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2, got %q", got)
	}
	if e := decode(t, rr); e.Code != "RATE_LIMITED" {
		t.Fatalf("unexpected code %q", e.Code)
	}

	rr = httptest.NewRecorder()
	RateLimited(rr, 0, "")
	if rr.Header().Get("Retry-After") != "" {
		t.Fatal("expected no Retry-After for zero wait")
	}
}
