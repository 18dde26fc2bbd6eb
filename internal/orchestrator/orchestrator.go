// Package orchestrator is the state machine at the center of the room: it
// owns the single live voice session, decides when the conversation moves
// between the primary officer and the specialists, carries transcript
// context across session switches, and triggers background research.
//
// All transitions run on one event-loop goroutine. External API calls,
// transport events, timers, and research completions are funneled into the
// loop as a tagged event union, so no two transitions ever interleave.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"socroom/internal/intent"
	"socroom/internal/research"
	"socroom/internal/roster"
	"socroom/internal/thread"
	"socroom/internal/voice"
)

// Phase is the connection lifecycle of the room.
type Phase string

const (
	PhaseDisconnected Phase = "disconnected"
	PhaseConnecting   Phase = "connecting"
	PhaseConnected    Phase = "connected"
)

// DefaultSettleDelay is the pause between tearing down one session and
// starting the next. The backend needs a moment after teardown before a
// new session can be reliably opened.
const DefaultSettleDelay = 500 * time.Millisecond

// defaultConsultPair is queued when the primary signals uncertainty with
// no specific specialist match.
var defaultConsultPair = []roster.Role{roster.RoleResearcher, roster.RoleSecurity}

// API error taxonomy. Configuration and sequencing errors are detected
// synchronously and never retried.
var (
	ErrNotConfigured    = errors.New("role has no configured backend agent")
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrSameAgent        = errors.New("role already holds the live session")
)

// Snapshot is the immutable view handed to subscribers after every
// transition. This is the whole UI boundary: the presentation layer
// renders snapshots and calls the public methods, nothing more.
type Snapshot struct {
	Phase         Phase
	Current       roster.Role // zero when disconnected
	Consulting    bool
	SOS           bool
	Volume        int
	ActiveSpeaker roster.Role // zero when nobody is speaking
	Statuses      map[roster.Role]roster.Status
	Turns         []thread.Turn
	LastResearch  string
	Err           string // last surfaced connection error, "" when healthy
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Registry  *roster.Registry
	Transport voice.Transport
	Research  *research.Runner // optional; nil disables research lookups
	Log       *zap.Logger

	// SettleDelay overrides DefaultSettleDelay (tests use a short one).
	SettleDelay time.Duration
	// OnState receives a snapshot after every transition. Called from the
	// event loop; subscribers must not call back into the orchestrator
	// synchronously.
	OnState func(Snapshot)
	// OnResearch receives completed research prose, including the fixed
	// fallback text on gateway failure.
	OnResearch func(string)
	// StartTimeout bounds one transport dial. Default 15s.
	StartTimeout time.Duration
}

// Orchestrator is the room controller. Create with New, stop with Close.
type Orchestrator struct {
	cfg        Config
	classifier *intent.Classifier
	log        *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	events chan event
	done   chan struct{}

	// Everything below is owned by the event loop goroutine.
	st           state
	store        *thread.Store
	session      voice.Session
	liveGen      uint64
	genSeq       uint64
	settleTimer  *time.Timer
	settleSeq    uint64
	lastResearch string
	lastErr      string
}

// state is the orchestrator's explicit state bundle. It is passed through
// transition functions rather than living in ambient mutable cells, and a
// disconnect resets it to the zero value bit for bit.
type state struct {
	phase      Phase
	current    roster.Role
	queue      []roster.Role
	pending    roster.Role // at most one; zero when none
	consulting bool
	sos        bool
	volume     int
	speaking   bool
	statuses   map[roster.Role]roster.Status
}

// initialState returns the disconnected baseline.
func initialState(reg *roster.Registry) state {
	st := state{phase: PhaseDisconnected, volume: 80, statuses: make(map[roster.Role]roster.Status)}
	for _, m := range reg.Members() {
		st.statuses[m.Role] = roster.StatusIdle
	}
	return st
}

// event is the tagged union the loop dispatches on.
type event interface{ isEvent() }

type (
	cmdConnect struct {
		role  roster.Role
		sos   bool
		reply chan error
	}
	cmdDisconnect struct{ reply chan error }
	cmdSwitch     struct {
		role  roster.Role
		reply chan error
	}
	cmdSendText struct {
		text  string
		reply chan error
	}
	cmdSendImage struct {
		filename string
		mimeType string
		reply    chan error
	}
	cmdSetVolume struct {
		percent int
		reply   chan error
	}
	sessEvent struct {
		gen uint64
		ev  voice.Event
	}
	settleFired struct {
		seq    uint64
		target roster.Role
	}
	researchDone struct{ result string }
)

func (cmdConnect) isEvent()    {}
func (cmdDisconnect) isEvent() {}
func (cmdSwitch) isEvent()     {}
func (cmdSendText) isEvent()   {}
func (cmdSendImage) isEvent()  {}
func (cmdSetVolume) isEvent()  {}
func (sessEvent) isEvent()     {}
func (settleFired) isEvent()   {}
func (researchDone) isEvent()  {}

// New creates an orchestrator and starts its event loop.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 15 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:        cfg,
		classifier: intent.NewClassifier(cfg.Registry),
		log:        cfg.Log.Named("orchestrator"),
		ctx:        ctx,
		cancel:     cancel,
		events:     make(chan event, 64),
		done:       make(chan struct{}),
		st:         initialState(cfg.Registry),
		store:      thread.NewStore(),
	}
	go o.run()
	return o, nil
}

// Close stops the event loop and tears down any live session.
func (o *Orchestrator) Close() {
	o.cancel()
	<-o.done
}

// Connect opens the room with the given role on the line. An empty role
// means the primary officer. Only valid while disconnected.
func (o *Orchestrator) Connect(role roster.Role) error {
	if role == "" {
		role = roster.Primary
	}
	return o.post(cmdConnect{role: role, reply: make(chan error, 1)})
}

// TriggerSOS opens the room in panic mode: security takes the line
// immediately and the contact agent is pre-queued for consultation.
func (o *Orchestrator) TriggerSOS() error {
	return o.post(cmdConnect{role: roster.RoleSecurity, sos: true, reply: make(chan error, 1)})
}

// Disconnect tears the room down and resets all state.
func (o *Orchestrator) Disconnect() error {
	return o.post(cmdDisconnect{reply: make(chan error, 1)})
}

// SwitchAgent manually puts a role on the line. Consultation state is not
// altered; this is the user overriding the room.
func (o *Orchestrator) SwitchAgent(role roster.Role) error {
	return o.post(cmdSwitch{role: role, reply: make(chan error, 1)})
}

// SendText submits a typed user turn to the live session.
func (o *Orchestrator) SendText(text string) error {
	return o.post(cmdSendText{text: text, reply: make(chan error, 1)})
}

// SendImage attaches an image to the transcript. It records a turn with
// attachment metadata and notifies the live agent, but never alters
// orchestration state.
func (o *Orchestrator) SendImage(filename, mimeType string) error {
	return o.post(cmdSendImage{filename: filename, mimeType: mimeType, reply: make(chan error, 1)})
}

// SetVolume sets playback volume (0-100) for the live session and every
// session opened after it. Applied immediately, never queued.
func (o *Orchestrator) SetVolume(percent int) error {
	return o.post(cmdSetVolume{percent: percent, reply: make(chan error, 1)})
}

// post submits a command and waits for the loop's synchronous answer.
func (o *Orchestrator) post(ev event) error {
	var reply chan error
	switch c := ev.(type) {
	case cmdConnect:
		reply = c.reply
	case cmdDisconnect:
		reply = c.reply
	case cmdSwitch:
		reply = c.reply
	case cmdSendText:
		reply = c.reply
	case cmdSendImage:
		reply = c.reply
	case cmdSetVolume:
		reply = c.reply
	}
	select {
	case o.events <- ev:
	case <-o.ctx.Done():
		return fmt.Errorf("orchestrator is closed")
	}
	select {
	case err := <-reply:
		return err
	case <-o.ctx.Done():
		return fmt.Errorf("orchestrator is closed")
	}
}

// snapshot builds the subscriber view from loop-owned state.
func (o *Orchestrator) snapshot() Snapshot {
	statuses := make(map[roster.Role]roster.Status, len(o.st.statuses))
	for r, s := range o.st.statuses {
		statuses[r] = s
	}
	snap := Snapshot{
		Phase:        o.st.phase,
		Current:      o.st.current,
		Consulting:   o.st.consulting,
		SOS:          o.st.sos,
		Volume:       o.st.volume,
		Statuses:     statuses,
		Turns:        o.store.Turns(),
		LastResearch: o.lastResearch,
		Err:          o.lastErr,
	}
	if o.st.speaking {
		snap.ActiveSpeaker = o.st.current
	}
	return snap
}

// notify pushes a fresh snapshot to the subscriber, if any.
func (o *Orchestrator) notify() {
	if o.cfg.OnState != nil {
		o.cfg.OnState(o.snapshot())
	}
}
