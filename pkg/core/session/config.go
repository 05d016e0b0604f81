package session

import (
	"strings"

	"github.com/vt-labs/tutor-live/pkg/core"
)

const (
	defaultSubject = "General"
	defaultGrade   = "Unspecified"
)

// Config is the session configuration supplied by the external wizard/config
// collaborator. StudentID and Topic are required; everything else has
// documented defaults.
type Config struct {
	StudentID string `json:"student_id"`
	Topic     string `json:"topic"`
	Subject   string `json:"subject,omitempty"`
	Grade     string `json:"grade,omitempty"`

	VoiceEnabled      bool `json:"voice_enabled"`
	WordTimingEnabled bool `json:"word_timing_enabled"`

	// Room overrides the transport room identifier. Empty derives it from
	// the session ID.
	Room string `json:"room,omitempty"`
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.StudentID) == "" {
		return core.NewInvalidConfigError("student_id is required", "student_id")
	}
	if strings.TrimSpace(c.Topic) == "" {
		return core.NewInvalidConfigError("topic is required", "topic")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Subject) == "" {
		c.Subject = defaultSubject
	}
	if strings.TrimSpace(c.Grade) == "" {
		c.Grade = defaultGrade
	}
}
