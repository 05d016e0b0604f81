package session

import (
	"context"
	"time"

	"github.com/vt-labs/tutor-live/pkg/core/transcript"
)

// Record is what the engine hands to the persistence collaborator at
// end-of-session. The engine persists nothing itself.
type Record struct {
	SessionID string
	StudentID string
	Topic     string
	Subject   string
	Grade     string

	Status    Status
	StartedAt time.Time
	EndedAt   time.Time

	DiscardedItems int64
	ErrorCount     int

	Items []transcript.DisplayItem
}

// Recorder receives completed session records for durable storage.
type Recorder interface {
	RecordSession(ctx context.Context, rec Record) error
}
