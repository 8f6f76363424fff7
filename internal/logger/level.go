package logger

import (
	"fmt"
	"strings"
)

// Level is the severity attached to a log line.
type Level int

const (
	Debug Level = iota
	Info
	Success
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Success:
		return "SUCCESS"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

func (l Level) icon() string {
	switch l {
	case Debug:
		return "🔍"
	case Success:
		return "✅"
	case Warn:
		return "⚠️"
	case Error:
		return "❌"
	default:
		return "ℹ️"
	}
}

func (l Level) color() string {
	switch l {
	case Debug:
		return Gray
	case Success:
		return Green
	case Warn:
		return Yellow
	case Error:
		return Red
	default:
		return ""
	}
}

// ParseLevel accepts level names case-insensitively. An empty string is Info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "INFO":
		return Info, nil
	case "DEBUG":
		return Debug, nil
	case "SUCCESS":
		return Success, nil
	case "WARN", "WARNING":
		return Warn, nil
	case "ERROR":
		return Error, nil
	}
	return Info, fmt.Errorf("unknown log level %q", s)
}
