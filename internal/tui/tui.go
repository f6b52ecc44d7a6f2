// Package tui renders the live interview session in the terminal: the
// current question, the growing transcript, the countdown, and the final
// report.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/interview"
)

// SnapshotMsg delivers a controller state change to the UI. Send one with
// [tea.Program.Send] from the controller's update callback.
type SnapshotMsg struct {
	Snapshot interview.Snapshot
}

// SessionEndedMsg tells the UI the controller has returned. Err is nil on a
// completed interview.
type SessionEndedMsg struct {
	Err error
}

type tickMsg time.Time

// Controls are the session actions the UI exposes through key bindings.
// *interview.Controller satisfies this.
type Controls interface {
	Done()
	Retry()
	Repeat()
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	turnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	statusStyles = map[interview.Status]lipgloss.Style{
		interview.StatusSpeaking:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		interview.StatusListening:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		interview.StatusSubmitting: lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true),
		interview.StatusIdle:       lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
		interview.StatusComplete:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		interview.StatusFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true),
	}

	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).PaddingLeft(2)
	transcriptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).PaddingLeft(2)
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	noticeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	countdownStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	reportStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).PaddingLeft(2)
	helpStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
)

// spinnerFrames animate the submitting state.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Model is the bubbletea model for the interview session.
type Model struct {
	controls Controls

	snap   interview.Snapshot
	ended  bool
	endErr error

	frame         int
	width, height int
}

// New creates a Model bound to the given session controls.
func New(controls Controls) Model {
	return Model{controls: controls}
}

// NewProgram wraps the model in a [tea.Program] with the alternate screen
// enabled.
func NewProgram(controls Controls) *tea.Program {
	return tea.NewProgram(New(controls), tea.WithAltScreen())
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.frame++
		return m, tick()

	case SnapshotMsg:
		m.snap = msg.Snapshot

	case SessionEndedMsg:
		m.ended = true
		m.endErr = msg.Err
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "d":
		if m.controls != nil && m.snap.Status == interview.StatusListening {
			m.controls.Done()
		}
	case "r":
		if m.controls != nil && m.snap.Status == interview.StatusIdle {
			m.controls.Retry()
		}
	case "p":
		if m.controls != nil && m.snap.Status == interview.StatusListening {
			m.controls.Repeat()
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	header := headerStyle.Render("Mock Interview")
	if m.snap.TotalTurns > 0 {
		header += "  " + turnStyle.Render(fmt.Sprintf("question %d of %d", m.snap.Turn, m.snap.TotalTurns))
	}
	b.WriteString(header + "\n")
	b.WriteString(m.statusLine() + "\n\n")

	switch m.snap.Status {
	case interview.StatusComplete:
		b.WriteString(headerStyle.Render("Final report") + "\n\n")
		for _, line := range wrapText(m.snap.FinalReport, m.wrapWidth()) {
			b.WriteString(reportStyle.Render(line) + "\n")
		}
	case interview.StatusFailed:
		b.WriteString(noticeStyle.Render("The session cannot continue.") + "\n")
		if m.snap.Notice != "" {
			b.WriteString(noticeStyle.Render(m.snap.Notice) + "\n")
		}
	default:
		b.WriteString(m.questionPanel())
		b.WriteString(m.transcriptPanel())
	}

	if m.snap.Notice != "" && m.snap.Status != interview.StatusFailed {
		b.WriteString("\n" + noticeStyle.Render("! "+m.snap.Notice) + "\n")
	}

	b.WriteString("\n" + m.helpLine() + "\n")
	return b.String()
}

func (m Model) statusLine() string {
	style, ok := statusStyles[m.snap.Status]
	if !ok {
		style = dimStyle
	}

	switch m.snap.Status {
	case interview.StatusSpeaking:
		return style.Render("▶ interviewer speaking")
	case interview.StatusListening:
		line := style.Render("● listening")
		if m.snap.Remaining > 0 {
			line += "  " + countdownStyle.Render(formatCountdown(m.snap.Remaining))
		}
		return line
	case interview.StatusSubmitting:
		frame := spinnerFrames[m.frame%len(spinnerFrames)]
		return style.Render(frame + " submitting answer")
	case interview.StatusIdle:
		return style.Render("✗ submission failed")
	case interview.StatusComplete:
		return style.Render("✓ interview complete")
	case interview.StatusFailed:
		return style.Render("✗ session failed")
	}
	return dimStyle.Render("starting")
}

func (m Model) questionPanel() string {
	if m.snap.Question == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(dimStyle.Render("Question") + "\n")
	for _, line := range wrapText(m.snap.Question, m.wrapWidth()) {
		b.WriteString(questionStyle.Render(line) + "\n")
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) transcriptPanel() string {
	var b strings.Builder
	b.WriteString(dimStyle.Render("Your answer") + "\n")
	if m.snap.Transcript == "" {
		b.WriteString(dimStyle.Render("  (waiting for speech)") + "\n")
		return b.String()
	}
	for _, line := range wrapText(m.snap.Transcript, m.wrapWidth()) {
		b.WriteString(transcriptStyle.Render(line) + "\n")
	}
	return b.String()
}

func (m Model) helpLine() string {
	switch m.snap.Status {
	case interview.StatusListening:
		return helpStyle.Render("d done · p repeat question · q quit · or say \"I'm done\"")
	case interview.StatusIdle:
		return helpStyle.Render("r retry submission · q quit")
	case interview.StatusComplete, interview.StatusFailed:
		return helpStyle.Render("q quit")
	}
	return helpStyle.Render("q quit")
}

func (m Model) wrapWidth() int {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	return w
}

// formatCountdown renders seconds as m:ss.
func formatCountdown(seconds int) string {
	return fmt.Sprintf("%d:%02d left", seconds/60, seconds%60)
}

// wrapText splits text into lines of at most width runes, breaking on
// spaces where possible.
func wrapText(text string, width int) []string {
	if text == "" {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		runes := []rune(paragraph)
		for len(runes) > width {
			splitAt := width
			for i := width; i > 0; i-- {
				if runes[i] == ' ' {
					splitAt = i
					break
				}
			}
			lines = append(lines, string(runes[:splitAt]))
			runes = runes[splitAt:]
			for len(runes) > 0 && runes[0] == ' ' {
				runes = runes[1:]
			}
		}
		lines = append(lines, string(runes))
	}
	return lines
}
