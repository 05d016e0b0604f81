// Package timing estimates per-word display timing for transcription
// fragments. The upstream voice backends do not provide ground-truth word
// timestamps, so everything here is best-effort metadata used to drive
// synchronized highlighting; it is never a correctness-bearing field.
package timing

import (
	"strings"
	"time"
	"unicode"

	"github.com/vt-labs/tutor-live/pkg/core/transcript"
)

const (
	// defaultWordsPerMinute approximates an unhurried teaching voice.
	defaultWordsPerMinute = 150

	// notationDwellFactor stretches words carrying digits or operators so
	// the display lingers on notation a little longer than on prose.
	notationDwellFactor = 1.5

	estimatedConfidence = 0.6
	anchoredConfidence  = 0.85
)

const mathOperators = "+-*/=^<>%()[]{}|~±×÷√∫∑πθ"

// Estimate assigns start/end offsets to each word of text. When
// audioDuration is positive the base per-word slot is the duration divided
// evenly across the words; otherwise a fixed default speaking rate is used.
// Words matching the notation predicate get a stretched slot. Offsets are
// laid out sequentially, so the result always satisfies
// start[i] <= end[i] <= start[i+1].
func Estimate(text string, audioDuration time.Duration) []transcript.WordTiming {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	baseMs := float64(time.Minute.Milliseconds()) / defaultWordsPerMinute
	confidence := estimatedConfidence
	if audioDuration > 0 {
		baseMs = float64(audioDuration.Milliseconds()) / float64(len(words))
		confidence = anchoredConfidence
	}

	out := make([]transcript.WordTiming, 0, len(words))
	cursor := 0.0
	for _, w := range words {
		notation := IsNotationWord(w)
		width := baseMs
		if notation {
			width *= notationDwellFactor
		}
		start := int(cursor)
		cursor += width
		end := int(cursor)
		if end < start {
			end = start
		}
		out = append(out, transcript.WordTiming{
			Word:               w,
			StartOffsetMs:      start,
			EndOffsetMs:        end,
			Confidence:         confidence,
			IsNotationFragment: notation,
		})
	}
	return out
}

// IsNotationWord reports whether a word reads as mathematical notation:
// it contains a digit or a mathematical operator.
func IsNotationWord(word string) bool {
	for _, r := range word {
		if unicode.IsDigit(r) {
			return true
		}
		if strings.ContainsRune(mathOperators, r) {
			return true
		}
	}
	return false
}
