package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/vt-labs/tutor-live/pkg/gateway/config"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// Pinger is implemented by backends with a liveness probe, such as the
// Postgres store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type ReadyHandler struct {
	Config config.Config
	// Store is nil when persistence is disabled.
	Store Pinger
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK           bool     `json:"ok"`
		Transport    string   `json:"transport"`
		StoreEnabled bool     `json:"store_enabled"`
		Issues       []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 2)

	switch h.Config.Transport {
	case config.TransportLiveKit, config.TransportRealtime, config.TransportNone:
	default:
		issues = append(issues, "invalid transport")
	}

	if h.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Store.Ping(ctx); err != nil {
			issues = append(issues, "database unreachable")
		}
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, readyResp{
		OK:           ok,
		Transport:    string(h.Config.Transport),
		StoreEnabled: h.Store != nil,
		Issues:       issues,
	})
}
