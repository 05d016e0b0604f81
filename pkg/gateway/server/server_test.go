package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vt-labs/tutor-live/pkg/core/bus"
	"github.com/vt-labs/tutor-live/pkg/core/session"
	"github.com/vt-labs/tutor-live/pkg/core/transcript"
	"github.com/vt-labs/tutor-live/pkg/gateway/apierror"
	"github.com/vt-labs/tutor-live/pkg/gateway/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	b := bus.New(logger)
	buf := transcript.NewBuffer(logger, 64)
	orch := session.New(b, buf, nil, session.Options{Logger: logger})
	return New(config.Config{Transport: config.TransportNone}, orch, buf, nil, logger)
}

func TestServer_UnknownRoute_ReturnsJSON404(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type = %q, want application/json", ct)
	}
	var env apierror.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error == nil || env.Error.Type != "not_found" {
		t.Fatalf("error envelope = %+v", env.Error)
	}
}

func TestServer_RequestIDOnEveryResponse(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID header")
	}
}

func TestServer_SessionLifecycleThroughRouter(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	start := httptest.NewRecorder()
	h.ServeHTTP(start, httptest.NewRequest(http.MethodPost, "/v1/sessions",
		strings.NewReader(`{"student_id":"stu","topic":"long division"}`)))
	if start.Code != http.StatusCreated {
		t.Fatalf("start status = %d: %s", start.Code, start.Body.String())
	}

	end := httptest.NewRecorder()
	h.ServeHTTP(end, httptest.NewRequest(http.MethodDelete, "/v1/sessions/current", nil))
	if end.Code != http.StatusOK {
		t.Fatalf("end status = %d: %s", end.Code, end.Body.String())
	}
}
