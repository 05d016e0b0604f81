// Package realtime connects a session to the Gemini Live API and turns the
// model's streaming transcriptions into display packets on the event bus.
//
// Unlike the room backend, which relays frames produced elsewhere, this
// engine owns the model conversation: student text goes up as client
// content, and both input and output transcription streams come back down
// as data packets in the shared wire format.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/vt-labs/tutor-live/pkg/core"
	"github.com/vt-labs/tutor-live/pkg/core/bus"
	"github.com/vt-labs/tutor-live/pkg/core/transport"
)

const defaultModel = "gemini-2.0-flash-live-001"

// Config holds the Gemini Live connection settings.
type Config struct {
	APIKey string
	// Model overrides the default live model name.
	Model string
	// SystemInstruction seeds the tutoring persona. Optional.
	SystemInstruction string
}

func (c Config) validate() error {
	if c.APIKey == "" {
		return core.NewInvalidConfigError("gemini api key is required", "api_key")
	}
	return nil
}

// packetSegment mirrors the segment shape the session layer decodes.
type packetSegment struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type packetBody struct {
	Speaker  string          `json:"speaker"`
	Segments []packetSegment `json:"segments"`
}

// Engine implements transport.Engine over a Gemini Live session.
type Engine struct {
	cfg    Config
	bus    *bus.Bus
	logger *slog.Logger

	mu        sync.Mutex
	session   *genai.Session
	sessionID string
	closed    chan struct{}
}

func New(cfg Config, b *bus.Bus, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, bus: b, logger: logger}
}

func (e *Engine) Name() string { return "gemini-realtime" }

// Connect opens a live session with the model. The ready channel resolves as
// soon as the live handshake completes, since the SDK blocks on setup.
func (e *Engine) Connect(ctx context.Context, params transport.ConnectParams) (<-chan error, error) {
	if err := e.cfg.validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.session != nil {
		e.mu.Unlock()
		return nil, core.NewTransportError("realtime engine already connected", nil)
	}
	e.sessionID = params.SessionID
	closed := make(chan struct{})
	e.closed = closed
	e.mu.Unlock()

	e.bus.Emit(transport.EventConnState, transport.ConnStateChange{
		SessionID: params.SessionID,
		State:     transport.ConnConnecting,
	})

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  e.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		e.reset()
		return nil, core.NewTransportConnectFailedError(err)
	}

	model := e.cfg.Model
	if model == "" {
		model = defaultModel
	}

	cfg := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
	}
	if e.cfg.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: e.cfg.SystemInstruction}},
		}
	}

	session, err := client.Live.Connect(ctx, model, cfg)
	if err != nil {
		e.reset()
		return nil, core.NewTransportConnectFailedError(err)
	}

	e.mu.Lock()
	e.session = session
	e.mu.Unlock()

	ready := make(chan error, 1)
	ready <- nil
	e.bus.Emit(transport.EventConnState, transport.ConnStateChange{
		SessionID: params.SessionID,
		State:     transport.ConnConnected,
	})

	go e.receiveLoop(session, params.SessionID, closed)
	return ready, nil
}

// receiveLoop drains the live session and republishes finished transcription
// turns as data packets. Partial transcription fragments accumulate until the
// model marks the turn complete.
func (e *Engine) receiveLoop(session *genai.Session, sessionID string, closed chan struct{}) {
	var teacherTurn, studentTurn strings.Builder

	flush := func(speaker string, turn *strings.Builder) {
		text := strings.TrimSpace(turn.String())
		turn.Reset()
		if text == "" {
			return
		}
		e.emitPacket(sessionID, speaker, text)
	}

	defer func() {
		flush("teacher", &teacherTurn)
		flush("student", &studentTurn)
		select {
		case <-closed:
			e.bus.Emit(transport.EventConnState, transport.ConnStateChange{
				SessionID: sessionID,
				State:     transport.ConnDisconnected,
			})
		default:
			e.bus.Emit(transport.EventConnState, transport.ConnStateChange{
				SessionID: sessionID,
				State:     transport.ConnFailed,
				Reason:    "live session closed unexpectedly",
			})
		}
	}()

	for {
		msg, err := session.Receive()
		if err != nil {
			select {
			case <-closed:
			default:
				e.logger.Warn("realtime receive failed", "session_id", sessionID, "error", err)
			}
			return
		}
		sc := msg.ServerContent
		if sc == nil {
			continue
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			teacherTurn.WriteString(sc.OutputTranscription.Text)
		}
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			studentTurn.WriteString(sc.InputTranscription.Text)
		}
		if sc.TurnComplete {
			flush("student", &studentTurn)
			flush("teacher", &teacherTurn)
		}
	}
}

func (e *Engine) emitPacket(sessionID, speaker, text string) {
	body := packetBody{
		Speaker:  speaker,
		Segments: []packetSegment{{Type: "text", Content: text}},
	}
	data, err := json.Marshal(body)
	if err != nil {
		e.logger.Error("marshal transcription packet", "error", err)
		return
	}
	e.bus.Emit(transport.EventDataPacket, transport.DataPacket{
		SessionID: sessionID,
		Data:      data,
	})
}

// SendText forwards student text to the model as a completed turn.
func (e *Engine) SendText(ctx context.Context, text string) error {
	e.mu.Lock()
	session := e.session
	e.mu.Unlock()
	if session == nil {
		return core.NewTransportError("realtime engine is not connected", nil)
	}
	err := session.SendClientContent(genai.LiveClientContentInput{
		Turns: []*genai.Content{{
			Role:  "user",
			Parts: []*genai.Part{{Text: text}},
		}},
		TurnComplete: genai.Ptr(true),
	})
	if err != nil {
		return core.NewTransportError("send client content failed", err)
	}
	return nil
}

// Disconnect closes the live session. Safe to call more than once.
func (e *Engine) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	session := e.session
	closed := e.closed
	e.session = nil
	e.sessionID = ""
	e.closed = nil
	e.mu.Unlock()

	if closed != nil {
		close(closed)
	}
	if session != nil {
		return session.Close()
	}
	return nil
}

func (e *Engine) reset() {
	e.mu.Lock()
	e.session = nil
	e.sessionID = ""
	e.closed = nil
	e.mu.Unlock()
}
