package logger

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// JSON writes one JSON object per line. Plain messages land under "msg";
// structured records are merged into the object alongside "level" and "time".
type JSON struct {
	mu       sync.Mutex
	zl       zerolog.Logger
	min      Level
	hostname string
}

// NewJSON returns a JSON sink over w. A non-empty runID is attached to every line.
func NewJSON(w io.Writer, runID string) *JSON {
	ctx := zerolog.New(w).With().Timestamp()
	if runID != "" {
		ctx = ctx.Str("run_id", runID)
	}
	hostname, _ := os.Hostname()
	return &JSON{zl: ctx.Logger(), min: Info, hostname: hostname}
}

// SetLevel drops lines below min.
func (j *JSON) SetLevel(min Level) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.min = min
}

// Emit writes {"level":..., "time":..., "msg": msg}.
func (j *JSON) Emit(level Level, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if level < j.min {
		return
	}
	j.zl.WithLevel(zerologLevel(level)).Str("msg", msg).Send()
}

// EmitFields writes fields merged with "level" and "time".
func (j *JSON) EmitFields(level Level, fields map[string]any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if level < j.min {
		return
	}
	j.zl.WithLevel(zerologLevel(level)).Fields(fields).Send()
}

// EmitError writes {"level":..., "time":..., "msg": msg, "error": err, "hostname": ...}.
func (j *JSON) EmitError(level Level, msg string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if level < j.min {
		return
	}
	j.zl.WithLevel(zerologLevel(level)).Err(err).Str("hostname", j.hostname).Str("msg", msg).Send()
}

func zerologLevel(l Level) zerolog.Level {
	switch l {
	case Debug:
		return zerolog.DebugLevel
	case Warn:
		return zerolog.WarnLevel
	case Error:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) Emit(Level, string)               {}
func (Nop) EmitFields(Level, map[string]any) {}
func (Nop) EmitError(Level, string, error)   {}
