// Package voice owns the conversational state machine: one authoritative
// session state, at most one active capture, at most one in-flight
// backend prompt.
package voice

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/KingLuiBoi/GWENApp/internal/transcript"
)

// State is the single authoritative voice session state. It is the sole
// source of truth for what the microphone subsystem should be doing.
type State int

const (
	StateIdle State = iota
	StateWakeWordListening
	StateActiveListening
	StateAwaitingReply
	StatePlayingReply
	StatePermissionBlocked
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWakeWordListening:
		return "wake-word-listening"
	case StateActiveListening:
		return "active-listening"
	case StateAwaitingReply:
		return "awaiting-reply"
	case StatePlayingReply:
		return "playing-reply"
	case StatePermissionBlocked:
		return "permission-blocked"
	default:
		return "unknown"
	}
}

// Interaction is one user/assistant exchange. The conversation log is
// append-only; entries are never mutated after the reply is attached.
type Interaction struct {
	ID         uuid.UUID `json:"id"`
	Prompt     string    `json:"prompt"`
	ReplyAudio []byte    `json:"-"`
	ReplyText  string    `json:"replyText,omitempty"`
	Errored    bool      `json:"errored"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Transcriber is the speech capture provider as the engine consumes it.
type Transcriber interface {
	Start(mode transcript.CaptureMode) error
	Stop() error
	Events() <-chan transcript.Event
}

// Player plays a reply audio buffer, blocking until done.
type Player interface {
	Play(ctx context.Context, mp3Data []byte) error
}

// PromptSender is the slice of the backend client the engine needs.
type PromptSender interface {
	SendPrompt(ctx context.Context, prompt string) (audio []byte, replyText string, err error)
}

// Snapshot is the observable engine state handed to the presentation
// layer. Reply audio stays out of it.
type Snapshot struct {
	State         string        `json:"state"`
	PendingPrompt string        `json:"pendingPrompt,omitempty"`
	LastError     string        `json:"lastError,omitempty"`
	Conversation  []Interaction `json:"conversation"`
}
