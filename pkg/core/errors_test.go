package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := NewSessionNotReadyError("idle")
	got := err.Error()
	want := "session_not_ready: session is not accepting transcription (status: idle)"
	if got != want {
		t.Fatalf("Error()=%q, want %q", got, want)
	}

	withCode := &Error{Type: ErrTransport, Message: "boom", Code: "read_failed"}
	if withCode.Error() != "transport_error: boom (code: read_failed)" {
		t.Fatalf("Error()=%q", withCode.Error())
	}
}

func TestIsType(t *testing.T) {
	err := NewSessionAlreadyActiveError("sess_1")
	if !IsType(err, ErrSessionAlreadyActive) {
		t.Fatalf("expected session_already_active")
	}
	if IsType(err, ErrSessionNotReady) {
		t.Fatalf("did not expect session_not_ready")
	}

	wrapped := fmt.Errorf("start: %w", err)
	if !IsType(wrapped, ErrSessionAlreadyActive) {
		t.Fatalf("expected IsType to see through wrapping")
	}

	if IsType(errors.New("plain"), ErrSessionAlreadyActive) {
		t.Fatalf("plain error should not match")
	}
}

func TestUnwrap(t *testing.T) {
	underlying := errors.New("dial tcp: refused")
	err := NewTransportConnectFailedError(underlying)
	if !errors.Is(err, underlying) {
		t.Fatalf("expected errors.Is to find the underlying error")
	}
}
