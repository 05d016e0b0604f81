package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vt-labs/tutor-live/pkg/core"
	"github.com/vt-labs/tutor-live/pkg/core/session"
)

// SessionsHandler exposes the single-session lifecycle over HTTP:
//
//	POST   /v1/sessions                start a session
//	GET    /v1/sessions/{id}           snapshot the live session
//	POST   /v1/sessions/{id}/pause     pause delivery upstream
//	POST   /v1/sessions/{id}/resume    resume from paused
//	POST   /v1/sessions/{id}/messages  relay student text to the tutor
//	DELETE /v1/sessions/{id}           end the session
//
// The engine holds at most one session; "current" is accepted as an alias
// for its id. An id that does not match the live session is a 404.
type SessionsHandler struct {
	Engine *session.Orchestrator
	Logger *slog.Logger
}

func (h SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutPrefix(r.URL.Path, "/v1/sessions")
	if !ok {
		writeError(w, core.NewNotFoundError("unknown route"))
		return
	}
	rest = strings.Trim(rest, "/")

	if rest == "" {
		if r.Method != http.MethodPost {
			writeError(w, core.NewNotFoundError("unknown route"))
			return
		}
		h.start(w, r)
		return
	}

	id, action, _ := strings.Cut(rest, "/")
	if id != "current" && id != h.Engine.SessionID() {
		writeError(w, core.NewNotFoundError("no such session"))
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.snapshot(w, r)
	case action == "" && r.Method == http.MethodDelete:
		h.end(w, r)
	case action == "pause" && r.Method == http.MethodPost:
		h.pause(w, r)
	case action == "resume" && r.Method == http.MethodPost:
		h.resume(w, r)
	case action == "messages" && r.Method == http.MethodPost:
		h.sendText(w, r)
	default:
		writeError(w, core.NewNotFoundError("unknown route"))
	}
}

func (h SessionsHandler) start(w http.ResponseWriter, r *http.Request) {
	var cfg session.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, core.NewInvalidConfigError("invalid request body", ""))
		return
	}

	id, err := h.Engine.Start(r.Context(), cfg)
	if err != nil {
		writeError(w, err)
		return
	}

	info, _ := h.Engine.Snapshot()
	h.Logger.Info("session started", "session_id", id, "student_id", cfg.StudentID, "topic", cfg.Topic)
	writeJSON(w, http.StatusCreated, info)
}

func (h SessionsHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	info, ok := h.Engine.Snapshot()
	if !ok {
		writeError(w, core.NewNotFoundError("no session"))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h SessionsHandler) pause(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Pause(); err != nil {
		writeError(w, err)
		return
	}
	info, _ := h.Engine.Snapshot()
	writeJSON(w, http.StatusOK, info)
}

func (h SessionsHandler) resume(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Resume(); err != nil {
		writeError(w, err)
		return
	}
	info, _ := h.Engine.Snapshot()
	writeJSON(w, http.StatusOK, info)
}

func (h SessionsHandler) sendText(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, core.NewInvalidConfigError("invalid request body", ""))
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, core.NewInvalidConfigError("text is required", "text"))
		return
	}

	if err := h.Engine.SendText(r.Context(), body.Text); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"sent": true})
}

func (h SessionsHandler) end(w http.ResponseWriter, r *http.Request) {
	id := h.Engine.SessionID()
	if err := h.Engine.End(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	if id != "" {
		h.Logger.Info("session ended", "session_id", id)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}
