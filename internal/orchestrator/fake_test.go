package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"socroom/internal/roster"
	"socroom/internal/voice"
)

// fakeTransport hands out scripted sessions and records every start.
type fakeTransport struct {
	mu       sync.Mutex
	sessions []*fakeSession
	failFor  map[string]error // agentID -> start error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failFor: make(map[string]error)}
}

func (t *fakeTransport) Start(ctx context.Context, agentID string) (voice.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.failFor[agentID]; err != nil {
		return nil, err
	}
	s := &fakeSession{
		agentID: agentID,
		events:  make(chan voice.Event, 32),
	}
	s.events <- voice.Event{Type: voice.EventConnected}
	t.sessions = append(t.sessions, s)
	return s, nil
}

// last returns the most recently started session.
func (t *fakeTransport) last() *fakeSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sessions) == 0 {
		return nil
	}
	return t.sessions[len(t.sessions)-1]
}

func (t *fakeTransport) startCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// fakeSession records outbound turns and lets tests script inbound events.
type fakeSession struct {
	agentID string
	events  chan voice.Event

	mu        sync.Mutex
	sent      []string
	volume    int
	ended     bool
	silentEnd bool // swallow the disconnect event, for stale-guard tests
}

func (s *fakeSession) SendTurn(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return fmt.Errorf("session is closed")
	}
	s.sent = append(s.sent, text)
	return nil
}

func (s *fakeSession) SetVolume(percent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = percent
	return nil
}

func (s *fakeSession) Events() <-chan voice.Event { return s.events }

func (s *fakeSession) End(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil
	}
	s.ended = true
	if !s.silentEnd {
		s.events <- voice.Event{Type: voice.EventDisconnected}
	}
	return nil
}

func (s *fakeSession) sentTurns() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *fakeSession) isEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *fakeSession) currentVolume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// emit scripts an inbound event from the backend.
func (s *fakeSession) emit(ev voice.Event) {
	s.events <- ev
}

func (s *fakeSession) emitTurn(role voice.TurnRole, text string) {
	s.emit(voice.Event{Type: voice.EventTurn, Role: role, Text: text})
}

func (s *fakeSession) emitSpeaking(speaking bool) {
	s.emit(voice.Event{Type: voice.EventSpeaking, Speaking: speaking})
}

// testRoster returns a registry with every role configured except medical,
// which stays unconfigured for failure-path tests.
func testRoster() []roster.Specialist {
	members := roster.Default()
	for i := range members {
		if members[i].Role == roster.RoleMedical {
			continue
		}
		members[i].AgentID = "agent_" + string(members[i].Role)
	}
	return members
}
