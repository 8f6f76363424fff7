package tracker

import "github.com/yourusername/milemarker/internal/logger"

// Sink receives formatted lines. Implementations must not fail loudly:
// logging is best-effort.
type Sink interface {
	Emit(level logger.Level, msg string)
}

// FieldSink is a Sink that can also take structured records. Lines that carry
// fields are sent to EmitFields instead of Emit.
type FieldSink interface {
	Sink
	EmitFields(level logger.Level, fields map[string]any)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(level logger.Level, msg string)

func (f SinkFunc) Emit(level logger.Level, msg string) { f(level, msg) }
