// Package thread keeps the ordered transcript of one conversation across
// every specialist switch. The store is append-only: turns are never
// mutated or reordered, and arrival order is the sequencing guarantee all
// context payloads are built from.
package thread

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"socroom/internal/roster"
)

// SpeakerUser attributes a turn to the human in the room rather than a
// roster role.
const SpeakerUser = "user"

// Attachment describes a file attached to a turn. Only images come
// through the current UI boundary.
type Attachment struct {
	Filename string
	MIMEType string
}

// Turn is one attributed utterance. Immutable once appended.
type Turn struct {
	ID          string
	Speaker     string      // SpeakerUser or a roster.Role string
	Text        string
	SessionRole roster.Role // which specialist's session was live on arrival
	At          time.Time
	Attachment  *Attachment
}

// Store is the conversation log. It is not internally synchronized; the
// orchestrator's single event loop is the only writer.
type Store struct {
	id            string
	turns         []Turn
	originalQuery string
}

// NewStore starts an empty conversation.
func NewStore() *Store {
	return &Store{id: uuid.NewString()}
}

// ID returns the conversation identifier.
func (s *Store) ID() string { return s.id }

// Append records a turn and returns it with ID and timestamp filled in.
// The first user turn is retained as the original query.
func (s *Store) Append(speaker, text string, live roster.Role, att *Attachment) Turn {
	t := Turn{
		ID:          uuid.NewString(),
		Speaker:     speaker,
		Text:        text,
		SessionRole: live,
		At:          time.Now(),
		Attachment:  att,
	}
	s.turns = append(s.turns, t)
	if s.originalQuery == "" && speaker == SpeakerUser {
		s.originalQuery = text
	}
	return t
}

// Turns returns a copy of the transcript in arrival order.
func (s *Store) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns recorded so far.
func (s *Store) Len() int { return len(s.turns) }

// OriginalQuery returns the first user turn of the conversation, or ""
// if the user has not spoken yet.
func (s *Store) OriginalQuery() string { return s.originalQuery }

// Reset clears the transcript for a fresh conversation.
func (s *Store) Reset() {
	s.id = uuid.NewString()
	s.turns = nil
	s.originalQuery = ""
}

// Render returns the transcript as "[SPEAKER]: text" lines using roster
// display names. This is the stable wire form for context payloads.
func (s *Store) Render(reg *roster.Registry) string {
	var b strings.Builder
	for _, t := range s.turns {
		name := t.Speaker
		if t.Speaker != SpeakerUser {
			name = reg.DisplayName(roster.Role(t.Speaker))
		}
		fmt.Fprintf(&b, "[%s]: %s\n", strings.ToUpper(name), t.Text)
	}
	return b.String()
}

// ContextPayload builds the synthetic briefing turn sent to a specialist
// joining mid-conversation. The underlying transport has no multi-agent
// concept, so this is how context survives a session teardown and rebuild.
func (s *Store) ContextPayload(reg *roster.Registry, target roster.Role) string {
	name := reg.DisplayName(target)
	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s joining an ongoing client conversation.\n", name)
	if s.originalQuery != "" {
		fmt.Fprintf(&b, "The client's original request: %q\n", s.originalQuery)
	}
	b.WriteString("Conversation so far:\n")
	b.WriteString(s.Render(reg))
	b.WriteString("Give your specialist assessment of the situation.")
	return b.String()
}
