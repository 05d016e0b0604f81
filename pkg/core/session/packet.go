package session

import (
	"encoding/json"
	"fmt"

	"github.com/vt-labs/tutor-live/pkg/core"
	"github.com/vt-labs/tutor-live/pkg/core/transcript"
)

// Segment is one transcription fragment inside a data packet.
type Segment struct {
	Type       transcript.Kind `json:"type"`
	Content    string          `json:"content"`
	Confidence *float64        `json:"confidence,omitempty"`
}

// Packet is the decoded shape of a transport data packet. AudioDurationMs is
// an optional hint covering the whole utterance, used to anchor word-timing
// estimates.
type Packet struct {
	Speaker         transcript.Speaker `json:"speaker"`
	Segments        []Segment          `json:"segments"`
	AudioDurationMs int                `json:"audio_duration_ms,omitempty"`
}

// DecodePacket parses and validates raw data-channel bytes. A packet that
// does not match the expected {speaker, segments} shape yields a
// malformed_data_packet error carrying only the payload size.
func DecodePacket(data []byte) (Packet, error) {
	var pkt Packet
	if err := json.Unmarshal(data, &pkt); err != nil {
		return Packet{}, core.NewMalformedDataPacketError(len(data), err)
	}
	if !pkt.Speaker.Valid() {
		return Packet{}, core.NewMalformedDataPacketError(len(data), fmt.Errorf("unknown speaker %q", pkt.Speaker))
	}
	if len(pkt.Segments) == 0 {
		return Packet{}, core.NewMalformedDataPacketError(len(data), fmt.Errorf("no segments"))
	}
	for i, seg := range pkt.Segments {
		if !seg.Type.Valid() {
			return Packet{}, core.NewMalformedDataPacketError(len(data), fmt.Errorf("segment %d: unknown type %q", i, seg.Type))
		}
		if seg.Content == "" {
			return Packet{}, core.NewMalformedDataPacketError(len(data), fmt.Errorf("segment %d: empty content", i))
		}
	}
	return pkt, nil
}
