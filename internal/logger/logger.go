package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ANSI Color Codes for console output formatting
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"
)

// FileName is the log file created inside the log directory.
const FileName = "milemarker.log"

// Hook receives every line written at or above the logger's minimum level.
type Hook func(level Level, tag, msg string)

// Logger handles concurrent logging to both stdout (console) and a file.
// It ensures thread safety using a mutex.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer // Console output (Standard Output)
	file  io.Writer // File output (Append only)
	min   Level
	hooks []Hook
}

// New initializes a new Logger instance.
// It ensures the log directory exists and opens the 'milemarker.log' file for appending.
// If logDir is empty, it defaults to "logs".
func New(logDir string) (*Logger, error) {
	if logDir == "" {
		logDir = "logs"
	}
	// Create directory with standard permissions (rwxr-xr-x)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	// Open log file, create if missing, append if exists.
	f, err := os.OpenFile(filepath.Join(logDir, FileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return &Logger{
		out:  os.Stdout,
		file: f,
		min:  Info,
	}, nil
}

// NewWriters builds a Logger over arbitrary console and file writers.
func NewWriters(console, file io.Writer) *Logger {
	if console == nil {
		console = io.Discard
	}
	if file == nil {
		file = io.Discard
	}
	return &Logger{out: console, file: file, min: Info}
}

// SetLevel drops lines below min.
func (l *Logger) SetLevel(min Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.min = min
}

// SetConsoleOutput redirects console output, e.g. to io.Discard while a TUI owns the terminal.
func (l *Logger) SetConsoleOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// AddHook registers fn to observe every emitted line.
func (l *Logger) AddHook(fn Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, fn)
}

// Close closes the log file if the logger owns one.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.file.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// format constructs formatted strings for console (colored) and file (structured/timestamped) output.
// returns (consoleMsg, fileMsg)
func (l *Logger) format(level Level, tag, msg string) (string, string) {
	now := time.Now()
	tsConsole := now.Format("15:04:05")
	tsFile := now.Format("2006/01/02 15:04:05")

	// Console Format: [HH:mm:ss] ℹ️ [tag] Msg (Colored)
	// Example: [12:00:00] ⚠️ [load] input stalled
	var console, file string
	if tag == "" {
		console = fmt.Sprintf("%s[%s]%s %s %s%s%s\n",
			Gray, tsConsole, Reset,
			level.icon(),
			level.color(), msg, Reset,
		)
		file = fmt.Sprintf("%s [%s] %s\n", tsFile, level, msg)
		return console, file
	}

	console = fmt.Sprintf("%s[%s]%s %s %s[%s]%s %s%s%s\n",
		Gray, tsConsole, Reset,
		level.icon(),
		Cyan, tag, Reset,
		level.color(), msg, Reset,
	)

	// File Format: YYYY/MM/DD HH:mm:ss [tag] [LEVEL] Msg
	// Example: 2023/01/01 12:00:00 [load] [WARN] input stalled
	file = fmt.Sprintf("%s [%s] [%s] %s\n", tsFile, tag, level, msg)
	return console, file
}

// log writes one line to both outputs under the mutex and fans it out to hooks.
func (l *Logger) log(level Level, tag, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.min {
		return
	}
	c, f := l.format(level, tag, msg)
	fmt.Fprint(l.out, c)
	fmt.Fprint(l.file, f)
	for _, h := range l.hooks {
		h(level, tag, msg)
	}
}

// Emit writes an untagged line. It makes Logger usable as a tracker sink.
func (l *Logger) Emit(level Level, msg string) {
	l.log(level, "", msg)
}

// Debug logs diagnostic detail, hidden at the default level.
func (l *Logger) Debug(tag, msg string) {
	l.log(Debug, tag, msg)
}

// Info logs general informational messages.
func (l *Logger) Info(tag, msg string) {
	l.log(Info, tag, msg)
}

// Success logs positive outcomes (e.g., run finished).
func (l *Logger) Success(tag, msg string) {
	l.log(Success, tag, msg)
}

// Warn logs warnings or recoverable errors.
func (l *Logger) Warn(tag, msg string) {
	l.log(Warn, tag, msg)
}

// Error logs critical failures.
func (l *Logger) Error(tag, msg string) {
	l.log(Error, tag, msg)
}

// Section logs a visual divider to separate logical execution blocks (runs).
func (l *Logger) Section(msg string) {
	line := strings.Repeat("=", 60)
	l.mu.Lock()
	defer l.mu.Unlock()
	// Console: Blue Divider (Visual only)
	fmt.Fprintf(l.out, "%s%s\n%s%s\n", Blue, line, msg, Reset)

	// File: Timestamped Entry with generic tag
	ts := time.Now().Format("2006/01/02 15:04:05")
	fmt.Fprintf(l.file, "%s [SECTION] === %s ===\n", ts, msg)
}

// Plain logs a raw message without tag context or icons (e.g., startup info).
func (l *Logger) Plain(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// Console: Plain text
	fmt.Fprintln(l.out, msg)

	// File: Timestamped Info
	ts := time.Now().Format("2006/01/02 15:04:05")
	fmt.Fprintf(l.file, "%s [INFO] %s\n", ts, msg)
}
