// Package livekitroom implements the voice transport contract against a
// WebRTC room service's signalling endpoint. Audio flows through the room
// itself; this adapter only handles the side channel: joining, the data
// packets the tutoring agent publishes, and discrete upstream sends.
package livekitroom

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vt-labs/tutor-live/pkg/core/bus"
	"github.com/vt-labs/tutor-live/pkg/core/transport"
)

// Config holds the room service connection settings.
type Config struct {
	// URL is the signalling endpoint, e.g. wss://tutor.livekit.cloud.
	URL       string
	APIKey    string
	APISecret string

	DialTimeout  time.Duration
	WriteTimeout time.Duration
	TokenTTL     time.Duration
}

// envelope is a text control frame on the signalling socket. Binary frames
// are raw data packets.
type envelope struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Engine is the WebRTC-room voice transport backend.
type Engine struct {
	cfg    Config
	bus    *bus.Bus
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	closed    chan struct{}

	// writeMu serializes data writes; the websocket allows at most one
	// concurrent writer.
	writeMu sync.Mutex
}

// New constructs the room backend. The bus is injected; the engine
// publishes every inbound data packet on it.
func New(cfg Config, b *bus.Bus, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Engine{cfg: cfg, bus: b, logger: logger}
}

func (e *Engine) Name() string { return "livekit-room" }

// Connect mints a room token, dials the signalling socket, and starts the
// read loop. The returned channel delivers nil once the room acknowledges
// the join, or the definite failure.
func (e *Engine) Connect(ctx context.Context, params transport.ConnectParams) (<-chan error, error) {
	token, err := AccessToken(TokenOptions{
		APIKey:    e.cfg.APIKey,
		APISecret: e.cfg.APISecret,
		Room:      params.Room,
		Identity:  params.Identity,
		TTL:       e.cfg.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}

	u, err := url.Parse(e.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse room url: %w", err)
	}
	u.Path = "/rtc"
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: e.cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial room: %w", err)
	}

	closed := make(chan struct{})
	e.mu.Lock()
	if e.conn != nil {
		e.mu.Unlock()
		_ = conn.Close()
		return nil, fmt.Errorf("already connected")
	}
	e.conn = conn
	e.sessionID = params.SessionID
	e.closed = closed
	e.mu.Unlock()

	e.bus.Emit(transport.EventConnState, transport.ConnStateChange{
		SessionID: params.SessionID,
		State:     transport.ConnConnecting,
	})

	ready := make(chan error, 1)
	go e.readLoop(conn, params.SessionID, ready, closed)
	return ready, nil
}

// readLoop owns all reads on the socket. The first frame must be the join
// acknowledgement; everything after is either a binary data packet or a
// text control envelope.
func (e *Engine) readLoop(conn *websocket.Conn, sessionID string, ready chan<- error, closed chan struct{}) {
	joined := false
	defer func() {
		if !joined {
			return
		}
		select {
		case <-closed:
			// Deliberate disconnect; not an error.
			e.bus.Emit(transport.EventConnState, transport.ConnStateChange{
				SessionID: sessionID,
				State:     transport.ConnDisconnected,
				Reason:    "disconnect requested",
			})
		default:
			e.bus.Emit(transport.EventConnState, transport.ConnStateChange{
				SessionID: sessionID,
				State:     transport.ConnFailed,
				Reason:    "signalling socket closed unexpectedly",
			})
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if !joined {
				ready <- fmt.Errorf("read join ack: %w", err)
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			var env envelope
			if err := json.Unmarshal(data, &env); err != nil {
				e.logger.Warn("unparseable control frame", "session_id", sessionID, "bytes", len(data))
				continue
			}
			switch env.Type {
			case "joined":
				if !joined {
					joined = true
					ready <- nil
					e.bus.Emit(transport.EventConnState, transport.ConnStateChange{
						SessionID: sessionID,
						State:     transport.ConnConnected,
					})
				}
			case "error":
				if !joined {
					ready <- fmt.Errorf("room error before join: %s", env.Reason)
					return
				}
				e.bus.Emit(transport.EventConnState, transport.ConnStateChange{
					SessionID: sessionID,
					State:     transport.ConnFailed,
					Reason:    env.Reason,
				})
			case "leave":
				return
			default:
				e.logger.Debug("ignoring control frame", "type", env.Type)
			}

		case websocket.BinaryMessage:
			if !joined {
				// The room contract never sends data before the join ack.
				e.logger.Warn("data packet before join ack", "session_id", sessionID, "bytes", len(data))
				continue
			}
			e.bus.Emit(transport.EventDataPacket, transport.DataPacket{
				SessionID: sessionID,
				Data:      data,
			})
		}
	}
}

// SendText publishes a discrete user text message into the room's data
// channel.
func (e *Engine) SendText(ctx context.Context, text string) error {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	payload, err := json.Marshal(envelope{Type: "user_text", Text: text})
	if err != nil {
		return fmt.Errorf("encode user text: %w", err)
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(e.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write user text: %w", err)
	}
	return nil
}

// Disconnect closes the signalling socket. Safe to call more than once.
func (e *Engine) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	conn := e.conn
	closed := e.closed
	e.conn = nil
	e.sessionID = ""
	e.closed = nil
	e.mu.Unlock()

	if conn == nil {
		return nil
	}
	close(closed)

	deadline := time.Now().Add(e.cfg.WriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}
