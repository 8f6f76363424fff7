package tracker

import (
	"encoding/json"
	"fmt"

	"github.com/yourusername/milemarker/internal/numfmt"
)

// Line is one formatted output.
type Line struct {
	// Text is what a plain sink writes.
	Text string

	// Fields is the structured record, nil for human-readable output.
	Fields map[string]any
}

// Formatter renders snapshots. Implementations are pure: the same snapshot
// always yields the same line.
type Formatter interface {
	// BatchLine describes a completed batch.
	BatchLine(s Snapshot) Line
	// FinalLine describes a finished run.
	FinalLine(s Snapshot) Line
}

// Human renders fixed-width, digit-grouped log lines:
//
//	load records.ndj  8_000_000. This batch 2_000_000 in 26.2s (76_469 r/s). Overall 72_705 r/s.
//	load records.ndj FINISHED. 27_138_118 total records in 00h 12m 39s. Overall 35_718 r/s.
type Human struct{}

func (Human) BatchLine(s Snapshot) Line {
	return Line{Text: fmt.Sprintf("%s%s. This batch %s in %ss (%s r/s). Overall %s r/s.",
		prefix(s.Name),
		numfmt.Int(s.Count, 10),
		numfmt.Int(s.LastBatchSize, 5),
		numfmt.PP(s.LastBatchSeconds, 4, 1),
		s.BatchRateString(0),
		s.TotalRateString(0),
	)}
}

func (Human) FinalLine(s Snapshot) Line {
	return Line{Text: fmt.Sprintf("%sFINISHED. %s total records in %s. Overall %s r/s.",
		prefix(s.Name),
		numfmt.Int(s.Count, 10),
		numfmt.Duration(s.TotalElapsed),
		s.TotalRateString(0),
	)}
}

// prefix keeps the separator even without a name, so unnamed lines start
// with a space and columns line up with named ones.
func prefix(name string) string {
	return name + " "
}

// BatchRecord is the structured form of a batch line.
type BatchRecord struct {
	Name         string  `json:"name"`
	BatchCount   int64   `json:"batch_count"`
	BatchSeconds float64 `json:"batch_seconds"`
	BatchRate    float64 `json:"batch_rate"`
	TotalCount   int64   `json:"total_count"`
	TotalSeconds float64 `json:"total_seconds"`
	TotalRate    float64 `json:"total_rate"`
}

// Fields returns r keyed by its JSON names.
func (r BatchRecord) Fields() map[string]any {
	return map[string]any{
		"name":          r.Name,
		"batch_count":   r.BatchCount,
		"batch_seconds": r.BatchSeconds,
		"batch_rate":    r.BatchRate,
		"total_count":   r.TotalCount,
		"total_seconds": r.TotalSeconds,
		"total_rate":    r.TotalRate,
	}
}

// FinalRecord is the structured form of a final line. Batch-local fields are
// omitted since the run has ended.
type FinalRecord struct {
	Name         string  `json:"name"`
	TotalCount   int64   `json:"total_count"`
	TotalSeconds float64 `json:"total_seconds"`
	TotalRate    float64 `json:"total_rate"`
}

// Fields returns r keyed by its JSON names.
func (r FinalRecord) Fields() map[string]any {
	return map[string]any{
		"name":          r.Name,
		"total_count":   r.TotalCount,
		"total_seconds": r.TotalSeconds,
		"total_rate":    r.TotalRate,
	}
}

// Structured renders machine-readable records. Line.Text holds the JSON
// encoding so that plain sinks still write something parseable.
type Structured struct{}

func (Structured) BatchRecord(s Snapshot) BatchRecord {
	return BatchRecord{
		Name:         s.Name,
		BatchCount:   s.LastBatchSize,
		BatchSeconds: s.LastBatchSeconds,
		BatchRate:    s.BatchRate,
		TotalCount:   s.Count,
		TotalSeconds: s.TotalElapsed,
		TotalRate:    s.TotalRate,
	}
}

func (Structured) FinalRecord(s Snapshot) FinalRecord {
	return FinalRecord{
		Name:         s.Name,
		TotalCount:   s.Count,
		TotalSeconds: s.TotalElapsed,
		TotalRate:    s.TotalRate,
	}
}

func (f Structured) BatchLine(s Snapshot) Line {
	r := f.BatchRecord(s)
	return Line{Text: encode(r), Fields: r.Fields()}
}

func (f Structured) FinalLine(s Snapshot) Line {
	r := f.FinalRecord(s)
	return Line{Text: encode(r), Fields: r.Fields()}
}

func encode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}

// FormatterByName maps "human" and "structured" to their formatters.
func FormatterByName(name string) (Formatter, error) {
	switch name {
	case "", "human":
		return Human{}, nil
	case "structured", "json":
		return Structured{}, nil
	}
	return nil, fmt.Errorf("%w: unknown format %q", ErrConfiguration, name)
}
