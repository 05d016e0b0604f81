package session

import (
	"testing"

	"github.com/vt-labs/tutor-live/pkg/core"
	"github.com/vt-labs/tutor-live/pkg/core/transcript"
)

func TestDecodePacketValid(t *testing.T) {
	raw := []byte(`{"speaker":"teacher","segments":[{"type":"text","content":"Let's begin."},{"type":"math","content":"3/4 + 1/4","confidence":0.9}],"audio_duration_ms":1800}`)

	pkt, err := DecodePacket(raw)
	if err != nil {
		t.Fatalf("DecodePacket: %v", err)
	}
	if pkt.Speaker != transcript.SpeakerTeacher {
		t.Fatalf("speaker=%q", pkt.Speaker)
	}
	if len(pkt.Segments) != 2 {
		t.Fatalf("segments=%d, want 2", len(pkt.Segments))
	}
	if pkt.Segments[1].Type != transcript.KindMath {
		t.Fatalf("segment type=%q, want math", pkt.Segments[1].Type)
	}
	if pkt.Segments[1].Confidence == nil || *pkt.Segments[1].Confidence != 0.9 {
		t.Fatalf("confidence not decoded")
	}
	if pkt.AudioDurationMs != 1800 {
		t.Fatalf("audio_duration_ms=%d", pkt.AudioDurationMs)
	}
}

func TestDecodePacketMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `not json at all`},
		{"unknown speaker", `{"speaker":"narrator","segments":[{"type":"text","content":"x"}]}`},
		{"no segments", `{"speaker":"teacher","segments":[]}`},
		{"unknown type", `{"speaker":"teacher","segments":[{"type":"audio","content":"x"}]}`},
		{"empty content", `{"speaker":"teacher","segments":[{"type":"text","content":""}]}`},
	}

	for _, tc := range cases {
		_, err := DecodePacket([]byte(tc.raw))
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !core.IsType(err, core.ErrMalformedDataPacket) {
			t.Fatalf("%s: error type=%v, want malformed_data_packet", tc.name, err)
		}
	}
}
