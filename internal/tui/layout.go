package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/yourusername/milemarker/internal/numfmt"
	"github.com/yourusername/milemarker/internal/tracker"
)

// viewDashboard renders the stat cards, the progress bar, the latest lines
// and a tail of the log.
func (m Model) viewDashboard() string {
	availableWidth := max(60, m.Width-4)

	sections := []string{m.renderCards()}

	if m.Total > 0 {
		sections = append(sections, m.renderProgress())
	}

	sections = append(sections, m.renderLines(availableWidth))

	// Logs pinned below, sized to the remaining height
	logHeight := max(4, m.Height-28)
	sections = append(sections, m.renderLogsPane(logHeight, availableWidth))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderCards renders one card per headline number
func (m Model) renderCards() string {
	s := m.Latest
	cards := []struct{ title, value string }{
		{"Records", numfmt.Int(s.Count, 0)},
		{"Batches", numfmt.Int(s.BatchNumber, 0)},
		{"Batch rate", s.BatchRateString(0) + " r/s"},
		{"Overall rate", s.TotalRateString(0) + " r/s"},
	}

	rendered := make([]string, 0, len(cards))
	for _, c := range cards {
		rendered = append(rendered, m.Styles.Card.Render(
			lipgloss.JoinVertical(lipgloss.Left,
				m.Styles.CardTitle.Render(c.title),
				m.Styles.Value.Render(c.value),
			),
		))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// renderProgress renders the bar against the expected total and an ETA from
// the overall rate.
func (m Model) renderProgress() string {
	s := m.Latest
	percent := float64(s.Count) / float64(m.Total)
	if percent > 1 {
		percent = 1
	}

	eta := "--"
	if s.TotalRate > 0 && s.Count < m.Total {
		eta = numfmt.Duration(float64(m.Total-s.Count) / s.TotalRate)
	} else if s.Count >= m.Total {
		eta = numfmt.Duration(0)
	}

	info := m.Styles.Label.Render("of "+numfmt.Int(m.Total, 0)+"   ETA: ") + m.Styles.Value.Render(eta)
	return lipgloss.JoinVertical(lipgloss.Left,
		"",
		m.Progress.ViewAs(percent),
		info,
	)
}

// renderLines shows the latest batch line and, once done, the final line and
// the trailing partial batch.
func (m Model) renderLines(width int) string {
	f := tracker.Human{}
	var rows []string

	rows = append(rows, m.Styles.Subtitle.Render("LATEST"))
	if m.Batches == 0 {
		rows = append(rows, m.Styles.Muted.Render("(no batch completed yet)"))
	} else {
		rows = append(rows, f.BatchLine(m.LastBatch).Text)
	}

	if m.Done {
		rows = append(rows, m.Styles.StatusFinished.Render(f.FinalLine(m.Summary.Run).Text))
		if m.Summary.Partial.LastBatchSize > 0 {
			rows = append(rows, m.Styles.Muted.Render(f.BatchLine(m.Summary.Partial).Text))
		}
		if m.Err != nil {
			rows = append(rows, m.Styles.StatusError.Render(m.Err.Error()))
		}
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(DefaultTheme.Border).
		Padding(0, 1).
		Width(width - 4).
		Render(strings.Join(rows, "\n"))
}

// renderLogsPane renders the most recent log entries
func (m Model) renderLogsPane(height int, width int) string {
	visibleCount := height - 2
	start := max(0, len(m.Logs)-visibleCount)

	var lines []string
	for _, l := range m.Logs[start:] {
		lines = append(lines, m.formatLog(l, max(10, width-40)))
	}

	// Fill
	for len(lines) < visibleCount {
		lines = append(lines, "")
	}

	return m.Styles.Card.
		Width(width - 8).
		Height(height).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			m.Styles.Subtitle.Render("Activity Log"),
			strings.Join(lines, "\n"),
		))
}
