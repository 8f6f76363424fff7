package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yourusername/milemarker/internal/logger"
	"github.com/yourusername/milemarker/internal/tracker"
)

// Controller is the part of a running job the dashboard drives.
// *job.Runner satisfies it.
type Controller interface {
	SetPaused(paused bool)
	Paused() bool
	Snapshot() tracker.Snapshot
}

// Bridge carries job events into the bubbletea program. Every send is
// non-blocking so a busy UI never slows the job down.
type Bridge struct {
	batchChan chan tracker.Snapshot
	logChan   chan LogEntry
	doneChan  chan DoneMsg
}

// LogEntry represents a log message for the TUI
type LogEntry struct {
	Time    time.Time
	Level   logger.Level
	Tag     string
	Message string
}

// DoneMsg is sent once when the job has finished.
type DoneMsg struct {
	Summary tracker.Summary
	Err     error
}

// NewBridge creates a bridge with buffered channels.
func NewBridge() *Bridge {
	return &Bridge{
		batchChan: make(chan tracker.Snapshot, 100),
		logChan:   make(chan LogEntry, 1000),
		doneChan:  make(chan DoneMsg, 1),
	}
}

// PublishBatch forwards a batch snapshot. Dropped when the UI is behind.
func (b *Bridge) PublishBatch(s tracker.Snapshot) {
	select {
	case b.batchChan <- s:
	default:
		// Channel full, skip update
	}
}

// LogHook returns a logger hook that forwards log lines.
func (b *Bridge) LogHook() logger.Hook {
	return func(level logger.Level, tag, msg string) {
		entry := LogEntry{
			Time:    time.Now(),
			Level:   level,
			Tag:     tag,
			Message: msg,
		}
		// Non-blocking send to avoid blocking the job
		select {
		case b.logChan <- entry:
		default:
			// Drop log if channel full to prevent blocking
		}
	}
}

// Finish reports the end of the job.
func (b *Bridge) Finish(sum tracker.Summary, err error) {
	select {
	case b.doneChan <- DoneMsg{Summary: sum, Err: err}:
	default:
	}
}

// batchUpdateCmd creates a tea.Cmd that waits for batch snapshots
func batchUpdateCmd(ch <-chan tracker.Snapshot) tea.Cmd {
	return func() tea.Msg {
		return batchUpdateMsg(<-ch)
	}
}

// batchUpdateMsg is sent when a batch boundary fires
type batchUpdateMsg tracker.Snapshot

// logUpdateCmd creates a tea.Cmd that waits for log entries
func logUpdateCmd(logChan <-chan LogEntry) tea.Cmd {
	return func() tea.Msg {
		return logUpdateMsg(<-logChan)
	}
}

// logUpdateMsg is sent when a new log entry arrives
type logUpdateMsg LogEntry

// doneCmd creates a tea.Cmd that waits for the job to finish
func doneCmd(ch <-chan DoneMsg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}
