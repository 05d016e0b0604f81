// Package session owns the tutoring session lifecycle: the state machine,
// the wiring between the voice transport's events and the transcription
// pipeline, and the at-most-one-live-session guarantee.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vt-labs/tutor-live/pkg/core"
	"github.com/vt-labs/tutor-live/pkg/core/bus"
	"github.com/vt-labs/tutor-live/pkg/core/timing"
	"github.com/vt-labs/tutor-live/pkg/core/transcript"
	"github.com/vt-labs/tutor-live/pkg/core/transport"
)

const (
	defaultConnectTimeout = 8 * time.Second
	defaultErrorLimit     = 5
)

// Options tunes orchestrator behavior. The zero value selects defaults.
type Options struct {
	// ConnectTimeout bounds the wait for the transport ready signal. Past
	// it the session continues in degraded mode instead of hanging.
	ConnectTimeout time.Duration

	// ErrorLimit is the number of active-phase errors that forces the
	// session to failed.
	ErrorLimit int

	// Recorder, when set, receives the session record at end-of-session.
	Recorder Recorder

	Logger *slog.Logger
}

// RawItem is a transcription fragment before it becomes a DisplayItem.
type RawItem struct {
	Content    string
	Kind       transcript.Kind
	Speaker    transcript.Speaker
	Confidence float64

	// Words, when already present from a real timing source, suppresses
	// estimation.
	Words     []transcript.WordTiming
	Fragments []transcript.Fragment

	// AudioDuration anchors word-timing estimation when known.
	AudioDuration time.Duration
}

// Info is a read-only snapshot of the current session.
type Info struct {
	ID           string              `json:"session_id"`
	Config       Config              `json:"config"`
	Status       Status              `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	LastActivity time.Time           `json:"last_activity"`
	VoiceConn    transport.ConnState `json:"voice_connection_status"`
	ErrorCount   int                 `json:"error_count"`
}

type sessionState struct {
	id           string
	cfg          Config
	status       Status
	createdAt    time.Time
	startedAt    time.Time
	endedAt      time.Time
	lastActivity time.Time
	voiceConn    transport.ConnState
	errorCount   int
}

// Orchestrator is the sole authority over session state. It holds at most
// one live session, drives the transport adapter's lifecycle, and funnels
// the adapter's bus events into the transcription buffer.
//
// The bus and buffer are injected; the orchestrator never constructs its
// own. Session state is mutated only by orchestrator operations.
type Orchestrator struct {
	bus    *bus.Bus
	buffer *transcript.Buffer
	engine transport.Engine

	recorder       Recorder
	logger         *slog.Logger
	connectTimeout time.Duration
	errorLimit     int

	mu        sync.Mutex
	sess      *sessionState
	packetSub bus.Subscription
	stateSub  bus.Subscription
	listening bool

	discarded atomic.Int64
}

// New constructs an orchestrator. engine may be nil when every session will
// run with voice disabled.
func New(b *bus.Bus, buffer *transcript.Buffer, engine transport.Engine, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	errorLimit := opts.ErrorLimit
	if errorLimit <= 0 {
		errorLimit = defaultErrorLimit
	}
	return &Orchestrator{
		bus:            b,
		buffer:         buffer,
		engine:         engine,
		recorder:       opts.Recorder,
		logger:         logger,
		connectTimeout: connectTimeout,
		errorLimit:     errorLimit,
	}
}

// Start begins a new session and returns its identifier. It fails with
// session_already_active while a session is live, and never silently
// replaces one.
//
// With voice enabled, Start connects the transport and then waits for its
// ready signal; the bus listener is registered only after ready, so events
// for a connection that never came up are not delivered to a dead listener.
// A definite connect failure surfaces to the caller and the session becomes
// failed. A ready timeout logs a warning and continues degraded: the
// session stays initializing (still accepting items) until a late ready
// arrives or the caller ends it.
func (o *Orchestrator) Start(ctx context.Context, cfg Config) (string, error) {
	if err := cfg.validate(); err != nil {
		return "", err
	}
	cfg.applyDefaults()

	o.mu.Lock()
	if o.sess != nil && o.sess.status.live() {
		id := o.sess.id
		o.mu.Unlock()
		return "", core.NewSessionAlreadyActiveError(id)
	}
	// A failed session must be explicitly ended (recording its final
	// disposition) before a new one can start.
	if o.sess != nil && o.sess.status == StatusFailed {
		o.mu.Unlock()
		return "", core.NewInvalidStateError("start", string(StatusFailed))
	}
	if cfg.VoiceEnabled && o.engine == nil {
		o.mu.Unlock()
		return "", core.NewInvalidConfigError("voice enabled but no transport engine configured", "voice_enabled")
	}

	// The single mint point for the session identifier. Every layer —
	// transport, buffer, persistence — sees this one value.
	now := time.Now()
	id := fmt.Sprintf("sess_%d", now.UnixNano())
	st := &sessionState{
		id:           id,
		cfg:          cfg,
		status:       StatusInitializing,
		createdAt:    now,
		startedAt:    now,
		lastActivity: now,
		voiceConn:    transport.ConnDisconnected,
	}
	o.sess = st
	o.discarded.Store(0)
	o.mu.Unlock()

	o.buffer.Clear()

	if !cfg.VoiceEnabled {
		o.mu.Lock()
		st.status = StatusActive
		o.mu.Unlock()
		o.logger.Info("session started", "session_id", id, "topic", cfg.Topic, "voice", false)
		return id, nil
	}

	o.mu.Lock()
	st.voiceConn = transport.ConnConnecting
	o.mu.Unlock()

	room := cfg.Room
	if room == "" {
		room = "room-" + id
	}
	ready, err := o.engine.Connect(ctx, transport.ConnectParams{
		SessionID: id,
		Room:      room,
		Identity:  "student:" + cfg.StudentID,
	})
	if err != nil {
		o.failSession(st, err)
		return "", core.NewTransportConnectFailedError(err)
	}

	timer := time.NewTimer(o.connectTimeout)
	defer timer.Stop()

	select {
	case res := <-ready:
		if res != nil {
			o.failSession(st, res)
			return "", core.NewTransportConnectFailedError(res)
		}
		o.activate(st)
		o.logger.Info("session started", "session_id", id, "topic", cfg.Topic, "voice", true)
		return id, nil

	case <-timer.C:
		o.logger.Warn("transport ready signal timed out, continuing degraded",
			"session_id", id,
			"timeout", o.connectTimeout,
		)
		go o.awaitLateReady(st, ready)
		return id, nil

	case <-ctx.Done():
		o.failSession(st, ctx.Err())
		return "", core.NewTransportConnectFailedError(ctx.Err())
	}
}

// activate registers the bus listener and flips the session to active. It
// is a no-op if the session was ended or replaced in the meantime.
func (o *Orchestrator) activate(st *sessionState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess != st || st.status != StatusInitializing {
		return
	}
	// Listener registration is gated on the transport's explicit ready
	// signal, never on call order or elapsed time.
	o.registerListenerLocked()
	st.status = StatusActive
	st.voiceConn = transport.ConnConnected
}

func (o *Orchestrator) awaitLateReady(st *sessionState, ready <-chan error) {
	res, ok := <-ready
	if !ok {
		return
	}
	if res == nil {
		o.activate(st)
		o.logger.Info("transport ready arrived late, session active", "session_id", st.id)
		return
	}
	o.logger.Error("transport failed after degraded wait", "session_id", st.id, "error", res)
	o.failSession(st, res)
}

func (o *Orchestrator) registerListenerLocked() {
	if o.listening {
		return
	}
	o.packetSub = o.bus.On(transport.EventDataPacket, o.onDataPacket)
	o.stateSub = o.bus.On(transport.EventConnState, o.onConnState)
	o.listening = true
}

// unregisterListenerLocked removes exactly this orchestrator's callbacks.
// The bus itself is never torn down.
func (o *Orchestrator) unregisterListenerLocked() {
	if !o.listening {
		return
	}
	o.bus.Off(o.packetSub)
	o.bus.Off(o.stateSub)
	o.packetSub = bus.Subscription{}
	o.stateSub = bus.Subscription{}
	o.listening = false
}

func (o *Orchestrator) onDataPacket(payload any) {
	pkt, ok := payload.(transport.DataPacket)
	if !ok {
		return
	}

	o.mu.Lock()
	st := o.sess
	o.mu.Unlock()
	if st == nil || pkt.SessionID != st.id {
		return
	}

	decoded, err := DecodePacket(pkt.Data)
	if err != nil {
		// Dropped and logged with the raw payload size; the listener
		// stays registered and the conversation continues without this
		// fragment.
		o.logger.Warn("dropping malformed data packet",
			"session_id", st.id,
			"payload_bytes", len(pkt.Data),
			"error", err,
		)
		return
	}

	var perSegment time.Duration
	if decoded.AudioDurationMs > 0 {
		perSegment = time.Duration(decoded.AudioDurationMs) * time.Millisecond / time.Duration(len(decoded.Segments))
	}

	for _, seg := range decoded.Segments {
		raw := RawItem{
			Content:       seg.Content,
			Kind:          seg.Type,
			Speaker:       decoded.Speaker,
			AudioDuration: perSegment,
		}
		if seg.Confidence != nil {
			raw.Confidence = *seg.Confidence
		}
		if _, err := o.AddItem(raw); err != nil {
			// Rejections during teardown are already counted and logged
			// by AddItem.
			continue
		}
	}
}

func (o *Orchestrator) onConnState(payload any) {
	ch, ok := payload.(transport.ConnStateChange)
	if !ok {
		return
	}

	o.mu.Lock()
	st := o.sess
	if st == nil || ch.SessionID != st.id || !st.status.live() {
		o.mu.Unlock()
		return
	}
	st.voiceConn = ch.State
	o.mu.Unlock()

	switch ch.State {
	case transport.ConnFailed:
		o.logger.Error("voice connection failed", "session_id", st.id, "reason", ch.Reason)
		o.noteError(st)
	case transport.ConnDisconnected:
		o.logger.Warn("voice connection dropped", "session_id", st.id, "reason", ch.Reason)
	}
}

// AddItem accepts one transcription fragment into the buffer. Outside an
// accepting state it rejects with session_not_ready; every rejection
// increments the observable discard counter, so nothing is lost silently.
func (o *Orchestrator) AddItem(raw RawItem) (string, error) {
	o.mu.Lock()
	st := o.sess
	if st == nil || !st.status.accepting() {
		status := StatusIdle
		if st != nil {
			status = st.status
		}
		o.mu.Unlock()
		n := o.discarded.Add(1)
		o.logger.Warn("discarding transcription item",
			"status", string(status),
			"discarded_total", n,
		)
		return "", core.NewSessionNotReadyError(string(status))
	}
	st.lastActivity = time.Now()
	wordTiming := st.cfg.WordTimingEnabled
	o.mu.Unlock()

	if raw.Kind == "" {
		raw.Kind = transcript.KindText
	}
	if raw.Speaker == "" {
		raw.Speaker = transcript.SpeakerTeacher
	}

	item := transcript.DisplayItem{
		Content:    raw.Content,
		Kind:       raw.Kind,
		Speaker:    raw.Speaker,
		Timestamp:  time.Now(),
		Confidence: raw.Confidence,
		Words:      raw.Words,
		Fragments:  raw.Fragments,
	}
	if wordTiming && len(item.Words) == 0 && item.Kind != transcript.KindCode {
		item.Words = timing.Estimate(item.Content, raw.AudioDuration)
	}

	// An item that raced End past the status check still lands in the
	// buffer, which stays intact through teardown.
	return o.buffer.Append(item), nil
}

// Pause suspends upstream sends. Inbound transcription is still buffered.
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.sess
	if st == nil {
		return core.NewInvalidStateError("pause", string(StatusIdle))
	}
	if st.status != StatusActive {
		return core.NewInvalidStateError("pause", string(st.status))
	}
	st.status = StatusPaused
	st.lastActivity = time.Now()
	return nil
}

// Resume returns a paused session to active.
func (o *Orchestrator) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.sess
	if st == nil {
		return core.NewInvalidStateError("resume", string(StatusIdle))
	}
	if st.status != StatusPaused {
		return core.NewInvalidStateError("resume", string(st.status))
	}
	st.status = StatusActive
	st.lastActivity = time.Now()
	return nil
}

// SendText delivers a discrete text message upstream to the voice backend.
func (o *Orchestrator) SendText(ctx context.Context, text string) error {
	o.mu.Lock()
	st := o.sess
	if st == nil {
		o.mu.Unlock()
		return core.NewInvalidStateError("send", string(StatusIdle))
	}
	if st.status != StatusActive {
		status := st.status
		o.mu.Unlock()
		return core.NewInvalidStateError("send", string(status))
	}
	if !st.cfg.VoiceEnabled {
		o.mu.Unlock()
		return core.NewInvalidConfigError("voice is not enabled for this session", "voice_enabled")
	}
	o.mu.Unlock()

	if err := o.engine.SendText(ctx, text); err != nil {
		o.noteError(st)
		return core.NewTransportError("send text", err)
	}
	return nil
}

// End terminates the session. Idempotent: a second call is a no-op that
// returns nil. The buffer content is left intact for post-session
// retrieval; the bus keeps running with this orchestrator's callbacks
// removed.
func (o *Orchestrator) End(ctx context.Context) error {
	o.mu.Lock()
	st := o.sess
	if st == nil || st.status == StatusEnded {
		o.mu.Unlock()
		return nil
	}
	prev := st.status
	st.status = StatusEnded
	st.endedAt = time.Now()
	if st.voiceConn == transport.ConnConnected || st.voiceConn == transport.ConnConnecting {
		st.voiceConn = transport.ConnDisconnected
	}
	o.unregisterListenerLocked()
	o.mu.Unlock()

	// A failed session already tore its transport down in failSession.
	if st.cfg.VoiceEnabled && o.engine != nil && prev != StatusFailed {
		if err := o.engine.Disconnect(ctx); err != nil {
			o.logger.Warn("transport disconnect failed", "session_id", st.id, "error", err)
		}
	}

	// Persist the true final disposition: a session that failed before
	// cleanup is recorded as failed, not as a clean end.
	finalStatus := StatusEnded
	if prev == StatusFailed {
		finalStatus = StatusFailed
	}

	if o.recorder != nil {
		rec := Record{
			SessionID:      st.id,
			StudentID:      st.cfg.StudentID,
			Topic:          st.cfg.Topic,
			Subject:        st.cfg.Subject,
			Grade:          st.cfg.Grade,
			Status:         finalStatus,
			StartedAt:      st.startedAt,
			EndedAt:        st.endedAt,
			DiscardedItems: o.discarded.Load(),
			ErrorCount:     st.errorCount,
			Items:          o.buffer.Items(),
		}
		if err := o.recorder.RecordSession(ctx, rec); err != nil {
			o.logger.Error("record session failed", "session_id", st.id, "error", err)
		}
	}

	o.logger.Info("session ended",
		"session_id", st.id,
		"previous_status", string(prev),
		"items", o.buffer.Len(),
		"discarded", o.discarded.Load(),
	)
	return nil
}

// failSession moves the session to failed, removes the listener, and tears
// the transport connection down so nothing keeps reading from a dead
// session. After this only End is valid.
func (o *Orchestrator) failSession(st *sessionState, cause error) {
	o.mu.Lock()
	if o.sess != st || st.status == StatusEnded || st.status == StatusFailed {
		o.mu.Unlock()
		return
	}
	st.status = StatusFailed
	st.voiceConn = transport.ConnFailed
	o.unregisterListenerLocked()
	o.mu.Unlock()

	if st.cfg.VoiceEnabled && o.engine != nil {
		if err := o.engine.Disconnect(context.Background()); err != nil {
			o.logger.Warn("transport disconnect failed", "session_id", st.id, "error", err)
		}
	}

	o.logger.Error("session failed", "session_id", st.id, "error", cause)
}

// noteError counts an active-phase error; at the limit the session is
// forced to failed.
func (o *Orchestrator) noteError(st *sessionState) {
	o.mu.Lock()
	if o.sess != st || !st.status.live() {
		o.mu.Unlock()
		return
	}
	st.errorCount++
	count := st.errorCount
	o.mu.Unlock()

	if count >= o.errorLimit {
		o.failSession(st, fmt.Errorf("error limit reached (%d)", count))
	}
}

// Status returns the current session status, idle when none exists.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil {
		return StatusIdle
	}
	return o.sess.status
}

// SessionID returns the current session identifier, empty when none exists.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil {
		return ""
	}
	return o.sess.id
}

// VoiceConnectionStatus is the field the UI collaborator observes to drive
// its retry affordance.
func (o *Orchestrator) VoiceConnectionStatus() transport.ConnState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil {
		return transport.ConnDisconnected
	}
	return o.sess.voiceConn
}

// DiscardedItems returns the running count of rejected transcription items.
func (o *Orchestrator) DiscardedItems() int64 {
	return o.discarded.Load()
}

// ErrorCount returns the current session's error counter.
func (o *Orchestrator) ErrorCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil {
		return 0
	}
	return o.sess.errorCount
}

// Snapshot returns a read-only view of the current session.
func (o *Orchestrator) Snapshot() (Info, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil {
		return Info{}, false
	}
	st := o.sess
	return Info{
		ID:           st.id,
		Config:       st.cfg,
		Status:       st.status,
		CreatedAt:    st.createdAt,
		LastActivity: st.lastActivity,
		VoiceConn:    st.voiceConn,
		ErrorCount:   st.errorCount,
	}, true
}
