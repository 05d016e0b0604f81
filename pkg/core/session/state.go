package session

// Status is the session lifecycle state.
//
// idle → initializing → active ⇄ paused → ended; any state may transition
// to failed on an unrecoverable adapter error, after which only End is
// valid. A session is immutable once ended.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusInitializing Status = "initializing"
	StatusActive       Status = "active"
	StatusPaused       Status = "paused"
	StatusEnded        Status = "ended"
	StatusFailed       Status = "failed"
)

// live reports whether the status counts against the at-most-one-live-session
// invariant.
func (s Status) live() bool {
	switch s {
	case StatusInitializing, StatusActive, StatusPaused:
		return true
	}
	return false
}

// accepting reports whether transcription items are accepted in this status.
// Paused sessions still accept and buffer inbound transcription: the
// teaching voice is not assumed to stop mid-pause.
func (s Status) accepting() bool {
	switch s {
	case StatusInitializing, StatusActive, StatusPaused:
		return true
	}
	return false
}
