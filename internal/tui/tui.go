package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yourusername/milemarker/internal/logger"
	"github.com/yourusername/milemarker/internal/numfmt"
	"github.com/yourusername/milemarker/internal/tracker"
)

// View represents different screens in the TUI
type View int

const (
	ViewDashboard View = iota
	ViewLogs
	ViewHelp
)

const maxLogs = 1000

// tickMsg is sent periodically to update the UI
type tickMsg time.Time

// KeyMap defines the keybindings for the TUI
type KeyMap struct {
	Quit      key.Binding
	Help      key.Binding
	Dashboard key.Binding
	Logs      key.Binding
	Pause     key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Dashboard: key.NewBinding(
			key.WithKeys("d", "1"),
			key.WithHelp("d/1", "dashboard"),
		),
		Logs: key.NewBinding(
			key.WithKeys("l", "2"),
			key.WithHelp("l/2", "logs"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pause/resume"),
		),
	}
}

// ShortHelp returns the short help bindings
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Dashboard, k.Logs, k.Pause, k.Quit}
}

// FullHelp returns the full help bindings
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Dashboard, k.Logs},
		{k.Pause},
		{k.Help, k.Quit},
	}
}

// Model is the main TUI model
type Model struct {
	// Job
	Name       string
	Total      int64 // expected units, 0 when unknown
	Controller Controller
	Bridge     *Bridge

	// UI State
	CurrentView View
	Width       int
	Height      int
	Ready       bool

	// Progress
	Latest    tracker.Snapshot // refreshed every tick
	LastBatch tracker.Snapshot // most recent boundary
	Batches   int
	Paused    bool
	Done      bool
	Summary   tracker.Summary
	Err       error

	// Logs
	Logs []LogEntry

	// Components
	Keys     KeyMap
	Styles   Styles
	Help     help.Model
	Viewport viewport.Model
	Spinner  spinner.Model
	Progress progress.Model

	// cancel stops the job when the user quits
	cancel context.CancelFunc
}

// New creates a new TUI model. cancel may be nil.
func New(name string, total int64, c Controller, b *Bridge, cancel context.CancelFunc) Model {
	// Initialize spinner
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(DefaultTheme.Primary)

	return Model{
		Name:        name,
		Total:       total,
		Controller:  c,
		Bridge:      b,
		CurrentView: ViewDashboard,
		Keys:        DefaultKeyMap(),
		Styles:      NewStyles(DefaultTheme),
		Help:        help.New(),
		Viewport:    viewport.New(80, 20),
		Spinner:     s,
		Progress:    progress.New(progress.WithDefaultGradient()),
		Logs:        make([]LogEntry, 0, maxLogs),
		cancel:      cancel,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(),
		m.Spinner.Tick,
	}

	// Listen for batches, logs and completion if a bridge is attached
	if m.Bridge != nil {
		cmds = append(cmds,
			batchUpdateCmd(m.Bridge.batchChan),
			logUpdateCmd(m.Bridge.logChan),
			doneCmd(m.Bridge.doneChan),
		)
	}

	return tea.Batch(cmds...)
}

// tickCmd returns a command that sends a tick every second
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.Help.Width = msg.Width
		m.Progress.Width = max(20, msg.Width-16)

		// Resize viewport for logs view
		headerHeight := 6
		footerHeight := 5
		m.Viewport.Width = msg.Width - 4
		m.Viewport.Height = max(5, msg.Height-headerHeight-footerHeight)
		m.updateViewportContent()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit

		case key.Matches(msg, m.Keys.Help):
			if m.CurrentView == ViewHelp {
				m.CurrentView = ViewDashboard
			} else {
				m.CurrentView = ViewHelp
			}

		case key.Matches(msg, m.Keys.Dashboard):
			m.CurrentView = ViewDashboard

		case key.Matches(msg, m.Keys.Logs):
			m.CurrentView = ViewLogs

		case key.Matches(msg, m.Keys.Pause):
			if m.Controller != nil && !m.Done {
				m.Paused = !m.Paused
				m.Controller.SetPaused(m.Paused)
			}
		}

	case tickMsg:
		if m.Controller != nil && !m.Done {
			m.Latest = m.Controller.Snapshot()
			m.Paused = m.Controller.Paused()
		}
		return m, tickCmd()

	case batchUpdateMsg:
		s := tracker.Snapshot(msg)
		m.LastBatch = s
		m.Batches++
		if s.Count >= m.Latest.Count {
			m.Latest = s
		}
		if m.Bridge != nil {
			cmds = append(cmds, batchUpdateCmd(m.Bridge.batchChan))
		}

	case logUpdateMsg:
		m.Logs = append(m.Logs, LogEntry(msg))
		if len(m.Logs) > maxLogs {
			m.Logs = m.Logs[len(m.Logs)-maxLogs:]
		}
		m.updateViewportContent()
		m.Viewport.GotoBottom()

		if m.Bridge != nil {
			cmds = append(cmds, logUpdateCmd(m.Bridge.logChan))
		}

	case DoneMsg:
		m.Done = true
		m.Paused = false
		m.Summary = msg.Summary
		m.Err = msg.Err
		m.Latest = msg.Summary.Run

	case spinner.TickMsg:
		m.Spinner, cmd = m.Spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Update viewport if on logs view
	if m.CurrentView == ViewLogs {
		m.Viewport, cmd = m.Viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	if len(cmds) > 0 {
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if !m.Ready {
		return "Initializing..."
	}

	var content string
	switch m.CurrentView {
	case ViewDashboard:
		content = m.viewDashboard()
	case ViewLogs:
		content = m.viewLogs()
	case ViewHelp:
		content = m.viewHelp()
	}

	return m.Styles.App.Width(m.Width - 4).Render(
		lipgloss.JoinVertical(
			lipgloss.Left,
			m.renderHeader(),
			content,
			m.renderFooter(),
		),
	)
}

// renderHeader renders the application header
func (m Model) renderHeader() string {
	title := m.Styles.Title.Render(IconFlag + " milemarker")
	if m.Name != "" {
		title += m.Styles.Highlight.Render(m.Name)
	}

	var status string
	switch {
	case m.Done && m.Err != nil:
		status = m.Styles.StatusError.Render(IconError + " Stopped")
	case m.Done:
		status = m.Styles.StatusFinished.Render(IconFinished + " Finished")
	case m.Paused:
		status = m.Styles.StatusPaused.Render(IconPaused + " Paused")
	default:
		status = m.Spinner.View() + m.Styles.StatusRunning.Render(" Running")
	}

	elapsed := m.Styles.Label.Render("Elapsed: ") + m.Styles.Value.Render(numfmt.Duration(m.Latest.TotalElapsed))

	left := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", status)
	gap := strings.Repeat(" ", max(0, m.Width-lipgloss.Width(left)-lipgloss.Width(elapsed)-12))

	return m.Styles.Header.Width(m.Width - 8).Render(
		lipgloss.JoinHorizontal(lipgloss.Center, left, gap, elapsed),
	)
}

// renderFooter renders the key help
func (m Model) renderFooter() string {
	return m.Styles.Footer.Width(m.Width - 8).Render(m.Help.View(m.Keys))
}

// viewLogs renders the log viewer with viewport
func (m Model) viewLogs() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.Styles.Title.Render(IconLogs+" Logs"),
		"",
		m.Viewport.View(),
	)
}

// updateViewportContent regenerates the logs string for the viewport
func (m *Model) updateViewportContent() {
	var content strings.Builder

	if len(m.Logs) == 0 {
		content.WriteString(m.Styles.Muted.Render("No logs yet..."))
	} else {
		for _, l := range m.Logs {
			content.WriteString(m.formatLog(l, 0) + "\n")
		}
	}

	m.Viewport.SetContent(content.String())
}

// formatLog renders one entry, truncating the message to maxWidth when positive.
func (m Model) formatLog(l LogEntry, maxWidth int) string {
	msg := l.Message
	if maxWidth > 0 && len(msg) > maxWidth {
		msg = msg[:maxWidth] + "..."
	}

	line := fmt.Sprintf("%s %s ",
		m.Styles.Muted.Render(l.Time.Format("15:04:05")),
		m.levelStyle(l.Level).Render("["+l.Level.String()+"]"),
	)
	if l.Tag != "" {
		line += m.Styles.Highlight.Render("["+l.Tag+"]") + " "
	}
	return line + msg
}

func (m Model) levelStyle(level logger.Level) lipgloss.Style {
	switch level {
	case logger.Success:
		return m.Styles.StatusFinished
	case logger.Warn:
		return m.Styles.StatusPaused
	case logger.Error:
		return m.Styles.StatusError
	case logger.Info:
		return m.Styles.StatusRunning
	default:
		return m.Styles.Muted
	}
}

// viewHelp renders the help screen
func (m Model) viewHelp() string {
	var content strings.Builder
	content.WriteString(m.Styles.Title.Render(IconHelp + " Help"))
	content.WriteString("\n\n")

	bindings := []struct{ key, desc string }{
		{"d / 1", "Dashboard view"},
		{"l / 2", "Log viewer"},
		{"p", "Pause or resume reading"},
		{"?", "Toggle help"},
		{"q", "Quit (stops the job)"},
	}

	for _, b := range bindings {
		keyStyle := m.Styles.HelpKey.Render(fmt.Sprintf("%-8s", b.key))
		descStyle := m.Styles.HelpDesc.Render(b.desc)
		content.WriteString(keyStyle + " " + descStyle + "\n")
	}

	return content.String()
}

// Run starts the dashboard and blocks until the user quits. Console output
// of l is silenced while the TUI owns the terminal and its lines are shown
// in the log pane instead.
func Run(name string, total int64, c Controller, b *Bridge, l *logger.Logger, cancel context.CancelFunc) error {
	if l != nil {
		l.SetConsoleOutput(io.Discard)
		l.AddHook(b.LogHook())
	}

	model := New(name, total, c, b, cancel)

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
