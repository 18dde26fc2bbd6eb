package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultEndpoint is the conversational agent websocket endpoint.
const DefaultEndpoint = "wss://api.elevenlabs.io/v1/convai/conversation"

// speakingQuiet is how long after the last audio frame the agent is
// considered done speaking. The backend streams audio in bursts with no
// explicit end-of-speech marker. Variable so tests can shorten it.
var speakingQuiet = 1500 * time.Millisecond

// AudioSink receives decoded audio payloads with the session's current
// volume. Playback is the presentation layer's problem; a nil sink
// discards audio after it has driven speaking-state detection.
type AudioSink func(b64 string, volume int)

// WSTransport dials conversational agent sessions over websocket.
type WSTransport struct {
	endpoint string
	dialer   *websocket.Dialer
	sink     AudioSink
	log      *zap.Logger
}

// WSOption configures a WSTransport.
type WSOption func(*WSTransport)

// WithEndpoint overrides the backend endpoint (used by tests).
func WithEndpoint(endpoint string) WSOption {
	return func(t *WSTransport) { t.endpoint = endpoint }
}

// WithAudioSink forwards audio payloads to the given sink.
func WithAudioSink(sink AudioSink) WSOption {
	return func(t *WSTransport) { t.sink = sink }
}

// NewWSTransport creates the production transport.
func NewWSTransport(log *zap.Logger, opts ...WSOption) *WSTransport {
	if log == nil {
		log = zap.NewNop()
	}
	t := &WSTransport{
		endpoint: DefaultEndpoint,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:      log,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start implements Transport.
func (t *WSTransport) Start(ctx context.Context, agentID string) (Session, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent ID is required")
	}

	u, err := url.Parse(t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("agent_id", agentID)
	u.RawQuery = q.Encode()

	conn, _, err := t.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial agent %s: %w", agentID, err)
	}

	s := &wsSession{
		conn:   conn,
		sink:   t.sink,
		log:    t.log.With(zap.String("agent_id", agentID)),
		events: make(chan Event, 32),
		outbox: make(chan []byte, 32),
		done:   make(chan struct{}),
		volume: 100,
	}

	// The backend expects the initiation message before anything else.
	init, _ := json.Marshal(map[string]string{
		"type": "conversation_initiation_client_data",
	})
	if err := conn.WriteMessage(websocket.TextMessage, init); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initiate conversation: %w", err)
	}

	go s.readPump()
	go s.writePump()

	s.events <- Event{Type: EventConnected}
	return s, nil
}

// wsSession is one live websocket conversation.
type wsSession struct {
	conn   *websocket.Conn
	sink   AudioSink
	log    *zap.Logger
	events chan Event
	outbox chan []byte
	done   chan struct{}

	mu       sync.Mutex
	volume   int
	speaking bool
	quiet    *time.Timer
	ended    bool
}

// serverMessage covers every inbound frame shape we care about.
type serverMessage struct {
	Type string `json:"type"`

	UserTranscriptionEvent *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event,omitempty"`

	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event,omitempty"`

	AgentResponseCorrectionEvent *struct {
		CorrectedAgentResponse string `json:"corrected_agent_response"`
	} `json:"agent_response_correction_event,omitempty"`

	AudioEvent *struct {
		AudioBase64 string `json:"audio_base_64"`
		EventID     int    `json:"event_id"`
	} `json:"audio_event,omitempty"`

	PingEvent *struct {
		EventID int `json:"event_id"`
	} `json:"ping_event,omitempty"`
}

func (s *wsSession) readPump() {
	defer s.stopSpeakingTimer()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			ended := s.ended
			s.mu.Unlock()
			if ended || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.events <- Event{Type: EventDisconnected}
			} else {
				s.events <- Event{Type: EventDisconnected, Err: err}
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Debug("unparseable frame", zap.Error(err))
			continue
		}

		switch msg.Type {
		case "user_transcript":
			if msg.UserTranscriptionEvent != nil {
				s.events <- Event{Type: EventTurn, Role: TurnUser, Text: msg.UserTranscriptionEvent.UserTranscript}
			}
		case "agent_response":
			if msg.AgentResponseEvent != nil {
				s.events <- Event{Type: EventTurn, Role: TurnAgent, Text: msg.AgentResponseEvent.AgentResponse}
			}
		case "agent_response_correction":
			// A barge-in truncated the previous response; the corrected
			// text replaces what the agent actually got to say. Emit it
			// as a fresh agent turn.
			if msg.AgentResponseCorrectionEvent != nil {
				s.events <- Event{Type: EventTurn, Role: TurnAgent, Text: msg.AgentResponseCorrectionEvent.CorrectedAgentResponse}
			}
		case "audio":
			if msg.AudioEvent != nil {
				s.onAudio(msg.AudioEvent.AudioBase64)
			}
		case "ping":
			if msg.PingEvent != nil {
				pong, _ := json.Marshal(map[string]any{
					"type":     "pong",
					"event_id": msg.PingEvent.EventID,
				})
				s.enqueue(pong)
			}
		default:
			s.log.Debug("ignoring frame", zap.String("type", msg.Type))
		}
	}
}

func (s *wsSession) writePump() {
	for {
		select {
		case frame := <-s.outbox:
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug("write failed", zap.Error(err))
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *wsSession) enqueue(frame []byte) {
	select {
	case s.outbox <- frame:
	case <-s.done:
	}
}

// onAudio drives speaking-state detection and forwards the payload.
func (s *wsSession) onAudio(b64 string) {
	s.mu.Lock()
	volume := s.volume
	wasSpeaking := s.speaking
	s.speaking = true
	if s.quiet == nil {
		s.quiet = time.AfterFunc(speakingQuiet, s.onQuiet)
	} else {
		s.quiet.Reset(speakingQuiet)
	}
	s.mu.Unlock()

	if !wasSpeaking {
		s.emit(Event{Type: EventSpeaking, Speaking: true})
	}
	if s.sink != nil {
		s.sink(b64, volume)
	}
}

// onQuiet fires once no audio has arrived for speakingQuiet.
func (s *wsSession) onQuiet() {
	s.mu.Lock()
	wasSpeaking := s.speaking
	s.speaking = false
	s.mu.Unlock()
	if wasSpeaking {
		s.emit(Event{Type: EventSpeaking, Speaking: false})
	}
}

// emit delivers a speaking-state event. Non-blocking: a full buffer means
// the consumer is gone or stalled, and a dropped speaking flip is
// recoverable while a blocked timer callback is not.
func (s *wsSession) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

func (s *wsSession) stopSpeakingTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quiet != nil {
		s.quiet.Stop()
	}
}

// SendTurn implements Session.
func (s *wsSession) SendTurn(text string) error {
	frame, err := json.Marshal(map[string]string{
		"type": "user_message",
		"text": text,
	})
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	select {
	case s.outbox <- frame:
		return nil
	case <-s.done:
		return fmt.Errorf("session is closed")
	}
}

// SetVolume implements Session.
func (s *wsSession) SetVolume(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("volume %d out of range [0,100]", percent)
	}
	s.mu.Lock()
	s.volume = percent
	s.mu.Unlock()
	return nil
}

// Events implements Session.
func (s *wsSession) Events() <-chan Event { return s.events }

// End implements Session.
func (s *wsSession) End(ctx context.Context) error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil
	}
	s.ended = true
	s.mu.Unlock()

	close(s.done)
	deadline := time.Now().Add(2 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	return s.conn.Close()
}
