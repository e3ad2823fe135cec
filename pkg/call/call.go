// Package call holds the call record model, the status state machine, and
// the per-session conversation state shared by the session controller and
// the speech pipeline.
package call

import "time"

// Speaker tags who produced a transcription entry.
type Speaker string

const (
	SpeakerAI    Speaker = "ai"
	SpeakerHuman Speaker = "human"
	SpeakerUser  Speaker = "user"
)

// Entry is one timestamped line in a call's visible transcript.
// Entries are append-only and chronologically ordered.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
}

// Role tags a conversation turn fed to the reply generator.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged utterance in the conversation history.
type Turn struct {
	Role    Role
	Content string
}

// Call is the record tracked for one delegated phone call. It is created
// by the call-initiation endpoint and mutated by the session until the
// status reaches a terminal value, after which it is immutable.
type Call struct {
	ID               string     `json:"id"`
	PhoneNumber      string     `json:"phone_number"`
	IssueDescription string     `json:"issue_description"`
	UserPhone        string     `json:"user_phone"`
	ProviderCallID   string     `json:"provider_call_id,omitempty"`
	Status           Status     `json:"status"`
	CallbackRequested bool      `json:"callback_requested"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Duration         int        `json:"call_duration,omitempty"` // seconds
	AIResponses      int        `json:"ai_responses_count"`
	Transcription    []Entry    `json:"transcription"`
}
