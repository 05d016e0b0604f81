package transcript

import "time"

// Kind identifies what a display item's content holds.
type Kind string

const (
	KindText Kind = "text"
	KindMath Kind = "math"
	KindCode Kind = "code"
)

// Valid reports whether the kind is one the display contract knows.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindMath, KindCode:
		return true
	}
	return false
}

// Speaker identifies who produced a display item.
type Speaker string

const (
	SpeakerStudent Speaker = "student"
	SpeakerTeacher Speaker = "teacher"
	SpeakerSystem  Speaker = "system"
)

// Valid reports whether the speaker is one the display contract knows.
func (s Speaker) Valid() bool {
	switch s {
	case SpeakerStudent, SpeakerTeacher, SpeakerSystem:
		return true
	}
	return false
}

// WordTiming carries per-word start/end offsets relative to the utterance
// start. Offsets are estimated unless a real timing source produced them,
// and are always optional metadata: absence degrades to whole-item display.
type WordTiming struct {
	Word               string  `json:"word"`
	StartOffsetMs      int     `json:"start_offset_ms"`
	EndOffsetMs        int     `json:"end_offset_ms"`
	Confidence         float64 `json:"confidence"`
	IsNotationFragment bool    `json:"is_notation_fragment,omitempty"`
}

// Fragment is one step of a progressive notation reveal.
type Fragment struct {
	Content       string `json:"content"`
	RevealAfterMs int    `json:"reveal_after_ms"`
}

// DisplayItem is one renderable unit of transcribed content. Items are
// exclusively owned by the Buffer once appended and read-only to consumers.
type DisplayItem struct {
	ID         string       `json:"id"`
	Content    string       `json:"content"`
	Kind       Kind         `json:"kind"`
	Speaker    Speaker      `json:"speaker"`
	Timestamp  time.Time    `json:"timestamp"`
	Confidence float64      `json:"confidence,omitempty"`
	Words      []WordTiming `json:"words,omitempty"`
	Fragments  []Fragment   `json:"fragments,omitempty"`
}
