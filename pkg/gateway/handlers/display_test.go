package handlers

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vt-labs/tutor-live/pkg/core/session"
	"github.com/vt-labs/tutor-live/pkg/core/transcript"
)

func dialDisplay(t *testing.T, eng *session.Orchestrator, buf *transcript.Buffer) (*websocket.Conn, func()) {
	t.Helper()
	h := DisplayHandler{
		Engine: eng,
		Buffer: buf,
		Logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	srv := httptest.NewServer(h)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) displayFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame displayFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func TestDisplaySnapshotOnConnect(t *testing.T) {
	eng, buf := newTestEngine(t)
	if _, err := eng.Start(t.Context(), session.Config{StudentID: "s", Topic: "t"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := eng.AddItem(session.RawItem{
		Content: "hello", Kind: transcript.KindText, Speaker: transcript.SpeakerTeacher,
	}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	conn, done := dialDisplay(t, eng, buf)
	defer done()

	frame := readFrame(t, conn)
	if frame.Type != "snapshot" {
		t.Fatalf("first frame type = %q, want snapshot", frame.Type)
	}
	if frame.SessionID != eng.SessionID() {
		t.Fatalf("frame session id = %q, want %q", frame.SessionID, eng.SessionID())
	}
	if len(frame.Items) != 1 || frame.Items[0].Content != "hello" {
		t.Fatalf("snapshot items = %+v", frame.Items)
	}
}

func TestDisplayReceivesUpdates(t *testing.T) {
	eng, buf := newTestEngine(t)
	if _, err := eng.Start(t.Context(), session.Config{StudentID: "s", Topic: "t"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn, done := dialDisplay(t, eng, buf)
	defer done()

	if frame := readFrame(t, conn); frame.Type != "snapshot" {
		t.Fatalf("first frame type = %q", frame.Type)
	}

	if _, err := eng.AddItem(session.RawItem{
		Content: "one half", Kind: transcript.KindText, Speaker: transcript.SpeakerTeacher,
	}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	frame := readFrame(t, conn)
	if frame.Type != "update" {
		t.Fatalf("frame type = %q, want update", frame.Type)
	}
	if len(frame.Items) != 1 || frame.Items[0].Content != "one half" {
		t.Fatalf("update items = %+v", frame.Items)
	}
}

func TestDisplayCoalescesBursts(t *testing.T) {
	eng, buf := newTestEngine(t)
	if _, err := eng.Start(t.Context(), session.Config{StudentID: "s", Topic: "t"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn, done := dialDisplay(t, eng, buf)
	defer done()

	if frame := readFrame(t, conn); frame.Type != "snapshot" {
		t.Fatalf("first frame type = %q", frame.Type)
	}

	const n = 50
	for i := 0; i < n; i++ {
		if _, err := eng.AddItem(session.RawItem{
			Content: "word", Kind: transcript.KindText, Speaker: transcript.SpeakerTeacher,
		}); err != nil {
			t.Fatalf("AddItem %d: %v", i, err)
		}
	}

	// Frames may be skipped under the burst, but the final frame must
	// carry all n items in order.
	deadline := time.Now().Add(2 * time.Second)
	var last displayFrame
	for time.Now().Before(deadline) {
		last = readFrame(t, conn)
		if len(last.Items) == n {
			break
		}
	}
	if len(last.Items) != n {
		t.Fatalf("final frame items = %d, want %d", len(last.Items), n)
	}
}

func TestDisplayUnsubscribesOnClose(t *testing.T) {
	eng, buf := newTestEngine(t)
	if _, err := eng.Start(t.Context(), session.Config{StudentID: "s", Topic: "t"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn, done := dialDisplay(t, eng, buf)
	if frame := readFrame(t, conn); frame.Type != "snapshot" {
		t.Fatalf("first frame type = %q", frame.Type)
	}
	done()

	// The handler drops its buffer subscription once the client goes away.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if buf.SubscriberCount() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("buffer subscription leaked after close")
}
