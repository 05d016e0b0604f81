// Package transport defines the narrow contract between the session engine
// and the interchangeable voice transport backends.
package transport

import "context"

// Bus event names the backends publish on. The orchestrator registers its
// listener for these only after a backend has reported ready.
const (
	// EventDataPacket carries a DataPacket with raw data-channel bytes.
	EventDataPacket = "transport.data_packet"

	// EventConnState carries a ConnStateChange.
	EventConnState = "transport.conn_state"
)

// ConnState is the voice connection status observable by consumers.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnFailed       ConnState = "failed"
)

// DataPacket is one opaque data-channel message from the transport. The
// engine decodes it into transcription segments; backends never interpret
// the payload beyond framing.
type DataPacket struct {
	SessionID string
	Data      []byte
}

// ConnStateChange reports a connection status transition.
type ConnStateChange struct {
	SessionID string
	State     ConnState
	Reason    string
}

// ConnectParams identifies the session on the transport side. SessionID is
// the one opaque identifier minted by the orchestrator; backends must carry
// it through unchanged rather than minting their own.
type ConnectParams struct {
	SessionID string
	Room      string
	Identity  string
}

// Engine is a voice transport backend.
//
// Connect is two-phase: it returns once the connection attempt is underway,
// and the returned channel delivers exactly one value when the outcome is
// definite: nil when the transport is live, an error on failure. Callers
// gate listener registration on that signal, never on call order or elapsed
// time.
type Engine interface {
	Name() string

	Connect(ctx context.Context, params ConnectParams) (ready <-chan error, err error)

	// Disconnect tears the connection down. Safe to call more than once.
	Disconnect(ctx context.Context) error

	// SendText delivers a discrete text message upstream to the voice
	// backend.
	SendText(ctx context.Context, text string) error
}
