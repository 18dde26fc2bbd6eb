// Package voice wraps the single-active-voice-session transport used to
// talk to conversational agent backends. The orchestrator only depends on
// the contract in this file; the websocket client in convai.go is the
// production implementation.
package voice

import "context"

// TurnRole attributes a transcript event from the backend.
type TurnRole string

const (
	TurnUser  TurnRole = "user"  // the human's transcribed speech or sent text
	TurnAgent TurnRole = "agent" // the live specialist's response
)

// EventType discriminates session events.
type EventType int

const (
	// EventConnected fires once the session is ready for turns.
	EventConnected EventType = iota
	// EventDisconnected fires when the session ends, cleanly or not.
	EventDisconnected
	// EventTurn carries one completed transcript turn.
	EventTurn
	// EventSpeaking reports a change in the agent's speaking state.
	EventSpeaking
)

// Event is the tagged union delivered on a session's event stream.
type Event struct {
	Type     EventType
	Role     TurnRole // EventTurn only
	Text     string   // EventTurn only
	Speaking bool     // EventSpeaking only
	Err      error    // EventDisconnected only, nil on clean close
}

// Session is one live connection to an agent backend. At most one session
// per Transport is open at a time; the orchestrator enforces this.
type Session interface {
	// SendTurn submits a text turn on behalf of the user.
	SendTurn(text string) error
	// SetVolume sets playback volume, 0-100. Applies to this session only.
	SetVolume(percent int) error
	// Events returns the session's event stream. EventDisconnected is the
	// terminal event; nothing is delivered after it and the channel is
	// never closed.
	Events() <-chan Event
	// End tears the session down. Safe to call more than once.
	End(ctx context.Context) error
}

// Transport opens sessions against agent backends.
type Transport interface {
	// Start opens a session for the given backend agent ID. It blocks
	// until the connection is established or fails.
	Start(ctx context.Context, agentID string) (Session, error)
}
