package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"socroom/internal/intent"
	"socroom/internal/roster"
	"socroom/internal/thread"
	"socroom/internal/voice"
)

// run is the event loop. It is the only goroutine that touches state.
func (o *Orchestrator) run() {
	defer close(o.done)
	for {
		select {
		case <-o.ctx.Done():
			o.cancelSettle()
			o.teardownSession()
			return
		case ev := <-o.events:
			o.dispatch(ev)
		}
	}
}

func (o *Orchestrator) dispatch(ev event) {
	switch e := ev.(type) {
	case cmdConnect:
		e.reply <- o.handleConnect(e)
	case cmdDisconnect:
		e.reply <- o.handleDisconnect()
	case cmdSwitch:
		e.reply <- o.handleSwitch(e)
	case cmdSendText:
		e.reply <- o.handleSendText(e)
	case cmdSendImage:
		e.reply <- o.handleSendImage(e)
	case cmdSetVolume:
		e.reply <- o.handleSetVolume(e)
	case sessEvent:
		o.handleSessionEvent(e)
	case settleFired:
		o.handleSettleFired(e)
	case researchDone:
		o.handleResearchDone(e)
	}
}

// ---------------------------------------------------------------------------
// Commands

func (o *Orchestrator) handleConnect(c cmdConnect) error {
	if o.st.phase != PhaseDisconnected {
		return ErrAlreadyConnected
	}

	o.store.Reset()
	o.lastErr = ""
	o.lastResearch = ""
	o.st = initialState(o.cfg.Registry)
	o.st.phase = PhaseConnecting
	o.st.sos = c.sos
	o.notify()

	if err := o.startSession(c.role); err != nil {
		o.st = initialState(o.cfg.Registry)
		o.lastErr = err.Error()
		o.log.Warn("connect failed", zap.String("role", string(c.role)), zap.Error(err))
		o.notify()
		return err
	}

	o.st.phase = PhaseConnected
	o.st.current = c.role
	o.st.statuses[c.role] = roster.StatusActive
	if c.sos {
		// Panic mode: the contact agent is pre-queued so local resources
		// are lined up as soon as security has assessed the situation.
		o.st.queue = append(o.st.queue, roster.RoleContacts)
		o.st.statuses[roster.RoleContacts] = roster.StatusTasked
		o.st.consulting = true
	}
	o.log.Info("connected", zap.String("role", string(c.role)), zap.Bool("sos", c.sos))
	o.notify()
	return nil
}

func (o *Orchestrator) handleDisconnect() error {
	o.cancelSettle()
	o.teardownSession()
	o.store.Reset()
	o.st = initialState(o.cfg.Registry)
	o.lastErr = ""
	o.lastResearch = ""
	o.log.Info("disconnected")
	o.notify()
	return nil
}

func (o *Orchestrator) handleSwitch(c cmdSwitch) error {
	if o.st.phase != PhaseConnected {
		return ErrNotConnected
	}
	member, ok := o.cfg.Registry.Get(c.role)
	if !ok {
		return fmt.Errorf("unknown role %q", c.role)
	}
	if !member.Configured() {
		return fmt.Errorf("%s: %w", c.role, ErrNotConfigured)
	}
	if c.role == o.st.current {
		return ErrSameAgent
	}

	// Manual override: the scheduled switch, if any, is superseded. The
	// consult queue and consulting flag are deliberately left alone.
	o.st.pending = ""
	o.log.Info("manual switch", zap.String("to", string(c.role)))
	o.beginSwitch(c.role)
	return nil
}

func (o *Orchestrator) handleSendText(c cmdSendText) error {
	if o.st.phase != PhaseConnected || o.session == nil {
		return ErrNotConnected
	}
	o.store.Append(thread.SpeakerUser, c.text, o.st.current, nil)
	if err := o.session.SendTurn(c.text); err != nil {
		return fmt.Errorf("send turn: %w", err)
	}
	o.notify()
	return nil
}

func (o *Orchestrator) handleSendImage(c cmdSendImage) error {
	if o.st.phase != PhaseConnected {
		return ErrNotConnected
	}
	att := &thread.Attachment{Filename: c.filename, MIMEType: c.mimeType}
	o.store.Append(thread.SpeakerUser, fmt.Sprintf("[Image: %s]", c.filename), o.st.current, att)
	if o.session != nil {
		// Tell the live agent about the attachment. This records a turn
		// only; it never alters routing or consultation state.
		_ = o.session.SendTurn(fmt.Sprintf("The client shared an image: %s", c.filename))
	}
	o.notify()
	return nil
}

func (o *Orchestrator) handleSetVolume(c cmdSetVolume) error {
	if c.percent < 0 || c.percent > 100 {
		return fmt.Errorf("volume %d out of range [0,100]", c.percent)
	}
	o.st.volume = c.percent
	if o.session != nil {
		if err := o.session.SetVolume(c.percent); err != nil {
			return fmt.Errorf("set volume: %w", err)
		}
	}
	o.notify()
	return nil
}

// ---------------------------------------------------------------------------
// Session events

func (o *Orchestrator) handleSessionEvent(e sessEvent) {
	// Stale-session guard: teardown is asynchronous and a late event from
	// a superseded session must not corrupt state.
	if e.gen != o.liveGen || o.liveGen == 0 {
		o.log.Debug("dropping stale session event", zap.Uint64("gen", e.gen))
		return
	}

	switch e.ev.Type {
	case voice.EventConnected:
		o.onSessionConnected()
	case voice.EventTurn:
		o.onTurnReceived(e.ev.Role, e.ev.Text)
	case voice.EventSpeaking:
		o.onSpeakingChanged(e.ev.Speaking)
	case voice.EventDisconnected:
		o.onSessionLost(e.ev.Err)
	}
}

// onSessionConnected briefs a specialist joining mid-conversation. The
// transport has no multi-agent concept, so the full thread is replayed as
// a synthetic turn on the fresh session.
func (o *Orchestrator) onSessionConnected() {
	if o.st.current == roster.Primary || o.store.Len() == 0 {
		return
	}
	payload := o.store.ContextPayload(o.cfg.Registry, o.st.current)
	if err := o.session.SendTurn(payload); err != nil {
		o.log.Warn("context briefing failed", zap.Error(err))
	}
}

func (o *Orchestrator) onTurnReceived(role voice.TurnRole, text string) {
	speaker := string(o.st.current)
	if role == voice.TurnUser {
		speaker = thread.SpeakerUser
	}
	o.store.Append(speaker, text, o.st.current, nil)

	if role != voice.TurnUser {
		if o.st.current == roster.Primary && !o.st.consulting {
			o.classifyPrimaryTurn(text)
		} else if o.st.current != roster.Primary {
			o.specialistTurn(text)
		}
	}
	o.notify()
}

// classifyPrimaryTurn decides the officer's next move after one of its
// turns completes. Priority: explicit handoff, then topical relevance,
// then the default consult pair on an uncertain turn; otherwise the
// officer keeps the line.
func (o *Orchestrator) classifyPrimaryTurn(text string) {
	if target, ok := o.classifier.HandoffTarget(text, roster.Primary); ok {
		o.st.pending = target
		o.st.consulting = true
		o.st.statuses[target] = roster.StatusTasked
		o.log.Info("handoff signaled", zap.String("to", string(target)))
		return
	}

	// Topical relevance is judged on what the client said, not on the
	// officer's phrasing; the officer's reply is included so wording like
	// "that hotel" still counts toward the topic.
	scanText := o.latestUserText() + " " + text
	relevant := o.classifier.RelevantSpecialists(scanText)

	switch {
	case len(relevant) > 0:
		o.enqueueAll(relevant)
	case intent.IsUncertain(text):
		o.enqueueAll(defaultConsultPair)
	default:
		return // officer keeps the line
	}

	o.promoteQueue()
	o.st.consulting = true
	o.fireResearch()
}

// specialistTurn lets other specialists chime in reactively, then lines up
// the next switch: the queue head if there is one, otherwise back to the
// primary to summarize.
func (o *Orchestrator) specialistTurn(text string) {
	for _, r := range o.classifier.RelevantSpecialists(text) {
		if r == o.st.current || r == o.st.pending || o.queued(r) {
			continue
		}
		o.st.queue = append(o.st.queue, r)
		o.st.statuses[r] = roster.StatusTasked
	}

	if o.st.pending == "" {
		if len(o.st.queue) > 0 {
			o.promoteQueue()
		} else {
			o.st.pending = roster.Primary
		}
	}
	// consulting stays true until the switch back to primary completes.
}

func (o *Orchestrator) onSpeakingChanged(speaking bool) {
	o.st.speaking = speaking
	if speaking {
		o.st.statuses[o.st.current] = roster.StatusSpeaking
		o.notify()
		return
	}
	o.st.statuses[o.st.current] = roster.StatusActive
	o.notify()

	// The session is idle; a scheduled switch can now run.
	if o.st.pending != "" {
		target := o.st.pending
		o.st.pending = ""
		o.beginSwitch(target)
	}
}

// onSessionLost handles the live session dropping out from under us.
func (o *Orchestrator) onSessionLost(err error) {
	o.cancelSettle()
	o.session = nil
	o.liveGen = 0
	o.st = initialState(o.cfg.Registry)
	if err != nil {
		o.lastErr = err.Error()
		o.log.Warn("session lost", zap.Error(err))
	} else {
		o.log.Info("session closed by backend")
	}
	o.notify()
}

// ---------------------------------------------------------------------------
// Switching

// beginSwitch tears down the live session and schedules the next start
// after the settle delay. The old role stays authoritative until the new
// session is actually open.
func (o *Orchestrator) beginSwitch(target roster.Role) {
	o.teardownSession()
	if o.st.statuses[o.st.current] == roster.StatusActive || o.st.statuses[o.st.current] == roster.StatusSpeaking {
		o.st.statuses[o.st.current] = roster.StatusIdle
	}
	o.st.speaking = false

	o.settleSeq++
	seq := o.settleSeq
	o.settleTimer = time.AfterFunc(o.cfg.SettleDelay, func() {
		select {
		case o.events <- settleFired{seq: seq, target: target}:
		case <-o.ctx.Done():
		}
	})
	o.log.Debug("switch scheduled", zap.String("to", string(target)))
	o.notify()
}

func (o *Orchestrator) handleSettleFired(f settleFired) {
	if f.seq != o.settleSeq || o.st.phase != PhaseConnected {
		return // canceled or superseded
	}

	if err := o.startSession(f.target); err != nil {
		// The old session is already gone, and the orchestrator never
		// retries on its own: the room goes down with the error surfaced.
		o.log.Warn("switch failed", zap.String("to", string(f.target)), zap.Error(err))
		o.cancelSettle()
		o.st = initialState(o.cfg.Registry)
		o.lastErr = err.Error()
		o.notify()
		return
	}

	o.st.current = f.target
	o.st.statuses[f.target] = roster.StatusActive
	if f.target == roster.Primary {
		// The consultation cycle ends when the primary is back on line.
		o.st.consulting = false
	}
	o.log.Info("agent changed", zap.String("to", string(f.target)))
	o.notify()
}

// startSession validates configuration and opens the transport session.
// Configuration errors are detected before any network work.
func (o *Orchestrator) startSession(role roster.Role) error {
	member, ok := o.cfg.Registry.Get(role)
	if !ok {
		return fmt.Errorf("unknown role %q", role)
	}
	if !member.Configured() {
		return fmt.Errorf("%s: %w", role, ErrNotConfigured)
	}

	ctx, cancel := context.WithTimeout(o.ctx, o.cfg.StartTimeout)
	defer cancel()
	sess, err := o.cfg.Transport.Start(ctx, member.AgentID)
	if err != nil {
		return fmt.Errorf("start session for %s: %w", role, err)
	}

	o.genSeq++
	o.liveGen = o.genSeq
	o.session = sess
	if err := sess.SetVolume(o.st.volume); err != nil {
		o.log.Debug("volume carry-over failed", zap.Error(err))
	}
	go o.pump(o.liveGen, sess)
	return nil
}

// pump forwards one session's events into the loop, stamped with the
// session generation so stale events are identifiable after teardown.
func (o *Orchestrator) pump(gen uint64, sess voice.Session) {
	for {
		select {
		case ev := <-sess.Events():
			select {
			case o.events <- sessEvent{gen: gen, ev: ev}:
			case <-o.ctx.Done():
				return
			}
			if ev.Type == voice.EventDisconnected {
				return
			}
		case <-o.ctx.Done():
			return
		}
	}
}

// teardownSession ends the live session, if any, and invalidates its
// generation so late events are dropped by the stale guard.
func (o *Orchestrator) teardownSession() {
	if o.session == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := o.session.End(ctx); err != nil {
		o.log.Debug("session end", zap.Error(err))
	}
	o.session = nil
	o.liveGen = 0
}

// cancelSettle stops any scheduled switch. Disconnect must be able to
// cancel in-flight transitions deterministically.
func (o *Orchestrator) cancelSettle() {
	if o.settleTimer != nil {
		o.settleTimer.Stop()
		o.settleTimer = nil
	}
	o.settleSeq++ // invalidates a callback that already fired
}

// ---------------------------------------------------------------------------
// Research

// fireResearch kicks off a background lookup seeded with the original
// client query and the full running context. Fire-and-forget: completion
// is an event like any other and is never awaited by a transition.
func (o *Orchestrator) fireResearch() {
	if o.cfg.Research == nil {
		return
	}
	query := o.store.OriginalQuery()
	if query == "" {
		query = o.latestUserText()
	}
	if query == "" {
		return
	}
	convContext := o.store.Render(o.cfg.Registry)

	go func() {
		result := o.cfg.Research.Perform(o.ctx, query, convContext)
		select {
		case o.events <- researchDone{result: result}:
		case <-o.ctx.Done():
		}
	}()
}

func (o *Orchestrator) handleResearchDone(r researchDone) {
	o.lastResearch = r.result
	if o.cfg.OnResearch != nil {
		o.cfg.OnResearch(r.result)
	}
	if o.st.phase != PhaseConnected {
		// The conversation moved on; the result was delivered to the
		// callback and is otherwise ignored.
		return
	}
	o.store.Append(string(roster.RoleResearcher), "Research update: "+r.result, o.st.current, nil)
	o.notify()
}

// ---------------------------------------------------------------------------
// Helpers

func (o *Orchestrator) enqueueAll(roles []roster.Role) {
	for _, r := range roles {
		if r == o.st.pending || o.queued(r) {
			continue
		}
		o.st.queue = append(o.st.queue, r)
		o.st.statuses[r] = roster.StatusTasked
	}
}

func (o *Orchestrator) promoteQueue() {
	if o.st.pending != "" || len(o.st.queue) == 0 {
		return
	}
	o.st.pending = o.st.queue[0]
	o.st.queue = o.st.queue[1:]
}

func (o *Orchestrator) queued(r roster.Role) bool {
	for _, q := range o.st.queue {
		if q == r {
			return true
		}
	}
	return false
}

func (o *Orchestrator) latestUserText() string {
	turns := o.store.Turns()
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Speaker == thread.SpeakerUser {
			return turns[i].Text
		}
	}
	return ""
}
