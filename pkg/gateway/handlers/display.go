package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vt-labs/tutor-live/pkg/core/session"
	"github.com/vt-labs/tutor-live/pkg/core/transcript"
)

// displayFrame is the wire shape pushed to display clients. Every frame
// carries the full ordered transcript so a client can render statelessly.
type displayFrame struct {
	Type      string                   `json:"type"`
	SessionID string                   `json:"session_id,omitempty"`
	VoiceConn string                   `json:"voice_connection_status,omitempty"`
	Items     []transcript.DisplayItem `json:"items"`
}

// DisplayHandler streams the transcription buffer to rendering clients
// over a websocket. Clients get one snapshot frame on connect, then an
// update frame whenever the buffer changes. Bursty appends coalesce: a
// slow client skips intermediate states and always lands on the latest.
type DisplayHandler struct {
	Engine *session.Orchestrator
	Buffer *transcript.Buffer
	Logger *slog.Logger

	PingInterval time.Duration
	WriteTimeout time.Duration
}

var displayUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The display feed is same-origin in production deployments; the
	// reverse proxy enforces origin policy ahead of us.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h DisplayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := displayUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	defer conn.Close()

	pingInterval := h.PingInterval
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	writeTimeout := h.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	// Latest-wins mailbox: the buffer callback replaces any pending
	// snapshot instead of queueing, so the writer never falls behind.
	updates := make(chan []transcript.DisplayItem, 1)
	push := func(items []transcript.DisplayItem) {
		for {
			select {
			case updates <- items:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	}

	unsubscribe := h.Buffer.Subscribe(func(items []transcript.DisplayItem) {
		push(items)
	})
	defer unsubscribe()

	// Reader exists only to surface the peer closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	writeFrame := func(frameType string, items []transcript.DisplayItem) error {
		if items == nil {
			items = []transcript.DisplayItem{}
		}
		frame := displayFrame{
			Type:      frameType,
			SessionID: h.Engine.SessionID(),
			VoiceConn: string(h.Engine.VoiceConnectionStatus()),
			Items:     items,
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(frame)
	}

	if err := writeFrame("snapshot", h.Buffer.Items()); err != nil {
		return
	}

	pinger := time.NewTicker(pingInterval)
	defer pinger.Stop()

	for {
		select {
		case items := <-updates:
			if err := writeFrame("update", items); err != nil {
				return
			}
		case <-pinger.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
