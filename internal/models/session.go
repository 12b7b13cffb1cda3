package models

import "time"

// ChatMode decides whether the bot answers a user automatically
type ChatMode string

const (
	ChatModeAuto         ChatMode = "auto"
	ChatModeHumanHandoff ChatMode = "human-handoff"
)

// Valid reports whether m is a known mode
func (m ChatMode) Valid() bool {
	return m == ChatModeAuto || m == ChatModeHumanHandoff
}

// ChatSession is the per-user conversational state.
// RemoteRecordID is empty when the session lives only in the process-local fallback.
type ChatSession struct {
	UserID         string    `json:"userId"`
	Mode           ChatMode  `json:"mode"`
	LastActiveAt   time.Time `json:"lastActiveAt"`
	RemoteRecordID string    `json:"remoteRecordId,omitempty"`
}

// SetSessionModeRequest is the admin request body for a mode toggle
type SetSessionModeRequest struct {
	Mode ChatMode `json:"mode"`
}
