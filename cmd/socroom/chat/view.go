package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"socroom/internal/orchestrator"
	"socroom/internal/roster"
	"socroom/internal/thread"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("54")).Padding(0, 1)
	sosStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("160")).Padding(0, 1)
	teamStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	speakStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	taskedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	agentStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("171"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (m *model) layout() {
	// header + team + status + input + help
	chrome := 5
	h := m.height - chrome
	if h < 3 {
		h = 3
	}
	if m.viewport.Width == 0 {
		m.viewport = viewport.New(m.width, h)
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = h
	}
	m.input.SetWidth(m.width - 4)
	m.refreshTranscript()
}

// refreshTranscript rebuilds the viewport content from the snapshot.
func (m *model) refreshTranscript() {
	if m.viewport.Width == 0 {
		return
	}
	var b strings.Builder
	for _, t := range m.snap.Turns {
		b.WriteString(m.renderTurn(t))
		b.WriteString("\n")
	}
	if m.snap.LastResearch != "" {
		b.WriteString(m.renderResearch(m.snap.LastResearch))
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *model) renderTurn(t thread.Turn) string {
	var who string
	if t.Speaker == thread.SpeakerUser {
		who = userStyle.Render("You")
	} else {
		who = agentStyle.Render(m.reg.DisplayName(roster.Role(t.Speaker)))
	}
	line := fmt.Sprintf("%s: %s", who, t.Text)
	if t.Attachment != nil {
		line += helpStyle.Render(fmt.Sprintf("  (%s)", t.Attachment.MIMEType))
	}
	return line
}

// renderResearch formats research prose as markdown. Rendering failures
// fall back to the raw text.
func (m *model) renderResearch(text string) string {
	md := "---\n**Research update**\n\n" + text + "\n"
	out, err := glamour.Render(md, "dark")
	if err != nil {
		return md
	}
	return out
}

func (m *model) View() string {
	if !m.ready {
		return "loading..."
	}
	if m.quitting {
		return "Room closed.\n"
	}

	header := m.renderHeader()
	team := m.renderTeam()
	status := m.renderStatus()
	help := helpStyle.Render("enter: send  /help: commands  esc: leave the room")

	return strings.Join([]string{header, team, m.viewport.View(), status, m.input.View(), help}, "\n")
}

func (m *model) renderHeader() string {
	title := fmt.Sprintf("SOC ROOM • %s", strings.ToUpper(string(m.snap.Phase)))
	if m.snap.Phase == orchestrator.PhaseConnecting {
		title += " " + m.spin.View()
	}
	if m.snap.SOS {
		return sosStyle.Render("⚠ SOS " + title)
	}
	return headerStyle.Render(title)
}

// renderTeam shows every roster member with its live status.
func (m *model) renderTeam() string {
	var parts []string
	for _, member := range m.reg.Members() {
		st := m.snap.Statuses[member.Role]
		label := member.Name
		switch st {
		case roster.StatusSpeaking:
			label = speakStyle.Render("● " + label)
		case roster.StatusActive:
			label = activeStyle.Render("● " + label)
		case roster.StatusTasked:
			label = taskedStyle.Render("◌ " + label)
		default:
			label = teamStyle.Render("· " + label)
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, "  ")
}

func (m *model) renderStatus() string {
	if m.status != "" {
		return errStyle.Render(m.status)
	}
	if m.snap.Err != "" {
		return errStyle.Render(m.snap.Err)
	}
	if m.snap.Consulting {
		return helpStyle.Render(fmt.Sprintf("consulting… volume %d%%", m.snap.Volume))
	}
	return helpStyle.Render(fmt.Sprintf("volume %d%%", m.snap.Volume))
}
