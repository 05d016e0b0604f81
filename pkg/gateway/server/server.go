// Package server wires the HTTP surface: routes, middleware, and the
// collaborators each handler needs.
package server

import (
	"log/slog"
	"net/http"

	"github.com/vt-labs/tutor-live/pkg/core/session"
	"github.com/vt-labs/tutor-live/pkg/core/transcript"
	"github.com/vt-labs/tutor-live/pkg/gateway/config"
	"github.com/vt-labs/tutor-live/pkg/gateway/handlers"
	"github.com/vt-labs/tutor-live/pkg/gateway/mw"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	engine *session.Orchestrator
	buffer *transcript.Buffer
	store  handlers.Pinger
}

// New builds the server around an already-constructed session engine and
// buffer. store may be nil when persistence is disabled.
func New(cfg config.Config, engine *session.Orchestrator, buffer *transcript.Buffer, store handlers.Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		engine: engine,
		buffer: buffer,
		store:  store,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg, Store: s.store})

	sessions := handlers.SessionsHandler{Engine: s.engine, Logger: s.logger}
	s.mux.Handle("/v1/sessions", sessions)
	s.mux.Handle("/v1/sessions/", sessions)

	s.mux.Handle("/v1/display", handlers.DisplayHandler{
		Engine:       s.engine,
		Buffer:       s.buffer,
		Logger:       s.logger,
		PingInterval: s.cfg.WSPingInterval,
		WriteTimeout: s.cfg.WSWriteTimeout,
	})

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
