// Package chat is the terminal front-end for the operations room. It is
// strictly presentation: it renders orchestrator snapshots and forwards
// user input through the public API, holding no orchestration state of
// its own.
package chat

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"socroom/internal/orchestrator"
	"socroom/internal/roster"
)

// Run wires the orchestrator to a bubbletea program and blocks until the
// user quits.
func Run(cfg orchestrator.Config, reg *roster.Registry, startRole roster.Role) error {
	states := make(chan orchestrator.Snapshot, 64)
	cfg.OnState = func(s orchestrator.Snapshot) {
		// Drop rather than block: the loop must never wait on the UI.
		select {
		case states <- s:
		default:
		}
	}

	orch, err := orchestrator.New(cfg)
	if err != nil {
		return err
	}
	defer orch.Close()

	m := newModel(orch, reg, startRole, states)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

type stateMsg orchestrator.Snapshot

type actionMsg struct {
	action string
	err    error
}

type model struct {
	orch      *orchestrator.Orchestrator
	reg       *roster.Registry
	startRole roster.Role
	states    chan orchestrator.Snapshot

	viewport viewport.Model
	input    textarea.Model
	spin     spinner.Model

	snap     orchestrator.Snapshot
	width    int
	height   int
	ready    bool
	status   string // transient action feedback line
	quitting bool
}

func newModel(orch *orchestrator.Orchestrator, reg *roster.Registry, startRole roster.Role, states chan orchestrator.Snapshot) *model {
	ta := textarea.New()
	ta.Placeholder = "Talk to the room (or /help)"
	ta.Prompt = "> "
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &model{
		orch:      orch,
		reg:       reg,
		startRole: startRole,
		states:    states,
		input:     ta,
		spin:      sp,
		snap:      orchestrator.Snapshot{Phase: orchestrator.PhaseDisconnected},
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spin.Tick,
		m.waitState(),
		m.do("connect", func() error { return m.orch.Connect(m.startRole) }),
	)
}

// waitState turns the snapshot subscription into tea messages.
func (m *model) waitState() tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-m.states)
	}
}

// do runs an orchestrator call off the UI goroutine.
func (m *model) do(action string, f func() error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{action: action, err: f()}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true

	case stateMsg:
		m.snap = orchestrator.Snapshot(msg)
		m.refreshTranscript()
		cmds = append(cmds, m.waitState())

	case actionMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else {
			m.status = ""
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Sequence(
				m.do("disconnect", m.orch.Disconnect),
				tea.Quit,
			)
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if text == "" {
				break
			}
			if cmd := m.handleInput(text); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleInput routes a submitted line: slash commands drive the room,
// anything else is a text turn.
func (m *model) handleInput(text string) tea.Cmd {
	if !strings.HasPrefix(text, "/") {
		return m.do("send", func() error { return m.orch.SendText(text) })
	}

	fields := strings.Fields(text)
	switch fields[0] {
	case "/help":
		m.status = "/switch <role>  /sos  /volume <0-100>  /image <file>  /connect  /disconnect  /quit"
	case "/connect":
		return m.do("connect", func() error { return m.orch.Connect(m.startRole) })
	case "/disconnect":
		return m.do("disconnect", m.orch.Disconnect)
	case "/sos":
		return m.do("sos", m.orch.TriggerSOS)
	case "/switch":
		if len(fields) < 2 {
			m.status = "usage: /switch <role>"
			break
		}
		role, err := roster.ParseRole(fields[1])
		if err != nil {
			m.status = err.Error()
			break
		}
		return m.do("switch", func() error { return m.orch.SwitchAgent(role) })
	case "/volume":
		if len(fields) < 2 {
			m.status = "usage: /volume <0-100>"
			break
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			m.status = "usage: /volume <0-100>"
			break
		}
		return m.do("volume", func() error { return m.orch.SetVolume(v) })
	case "/image":
		if len(fields) < 2 {
			m.status = "usage: /image <file>"
			break
		}
		name := fields[1]
		mime := "image/jpeg"
		if strings.EqualFold(filepath.Ext(name), ".png") {
			mime = "image/png"
		}
		return m.do("image", func() error { return m.orch.SendImage(filepath.Base(name), mime) })
	case "/quit":
		m.quitting = true
		return tea.Sequence(m.do("disconnect", m.orch.Disconnect), tea.Quit)
	default:
		m.status = fmt.Sprintf("unknown command %s (try /help)", fields[0])
	}
	return nil
}
