// Package tracker counts units of work for long-running iterative jobs and
// reports elapsed time and throughput each time the count crosses a batch
// boundary.
//
// A Tracker is not safe for concurrent use. Wrap it with Guard when several
// goroutines feed the same count.
//
//	t, _ := tracker.New(tracker.Options{BatchSize: 1000, Name: "load", Sink: l})
//	for rec := range records {
//	    process(rec)
//	    t.IncrementAndLogBatchLine(logger.Info)
//	}
//	t.LogFinalLine(logger.Info)
package tracker

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/yourusername/milemarker/internal/logger"
)

const (
	// DefaultBatchSize is the batch size used by DefaultOptions.
	DefaultBatchSize = 1000

	// LightBatchSize suits jobs whose units are slow enough that 1000 would
	// leave minutes between progress lines.
	LightBatchSize = 100
)

var (
	// ErrConfiguration is returned for a batch size that is not positive.
	ErrConfiguration = errors.New("invalid tracker configuration")

	// ErrInvalidArgument is returned for a negative increment.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Options configures a Tracker. Every field is fixed for the tracker's lifetime.
type Options struct {
	// BatchSize is the number of units per batch. Must be positive.
	BatchSize int64

	// Name labels every line the tracker formats.
	Name string

	// Sink receives formatted lines. Nil disables logging.
	Sink Sink

	// Formatter renders snapshots. Default: Human{}.
	Formatter Formatter

	// Clock supplies the current time. Default: time.Now.
	Clock func() time.Time
}

// DefaultOptions returns Options with BatchSize set to DefaultBatchSize.
func DefaultOptions() Options {
	return Options{BatchSize: DefaultBatchSize}
}

// Tracker holds the count and timing state for one run.
type Tracker struct {
	name      string
	batchSize int64
	sink      Sink
	formatter Formatter
	clock     func() time.Time

	count       int64
	prevCount   int64
	batchNumber int64

	startTime      time.Time
	batchStartTime time.Time
	batchEndTime   time.Time
	lastSeen       time.Time

	lastBatchSize    int64
	lastBatchSeconds float64
}

// New creates a Tracker whose run starts now.
func New(opts Options) (*Tracker, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive (got %d)", ErrConfiguration, opts.BatchSize)
	}
	if opts.Formatter == nil {
		opts.Formatter = Human{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	start := opts.Clock()
	return &Tracker{
		name:           opts.Name,
		batchSize:      opts.BatchSize,
		sink:           opts.Sink,
		formatter:      opts.Formatter,
		clock:          opts.Clock,
		startTime:      start,
		batchStartTime: start,
		batchEndTime:   start,
		lastSeen:       start,
	}, nil
}

// Name returns the tracker's label.
func (t *Tracker) Name() string { return t.name }

// BatchSize returns the configured batch size.
func (t *Tracker) BatchSize() int64 { return t.batchSize }

// Formatter returns the formatter chosen at construction.
func (t *Tracker) Formatter() Formatter { return t.formatter }

// Count returns the number of units counted so far.
func (t *Tracker) Count() int64 { return t.count }

// StartTime returns the time the run started.
func (t *Tracker) StartTime() time.Time { return t.startTime }

// Increment adds one unit. It does not check for a boundary. The count
// saturates at math.MaxInt64.
func (t *Tracker) Increment() *Tracker {
	if t.count < math.MaxInt64 {
		t.count++
	}
	return t
}

// IncrementBy adds by units. It does not check for a boundary. A negative by,
// or one that would overflow the count, returns ErrInvalidArgument and leaves
// the count untouched; zero is a no-op.
func (t *Tracker) IncrementBy(by int64) (*Tracker, error) {
	if by < 0 {
		return t, fmt.Errorf("%w: increment must not be negative (got %d)", ErrInvalidArgument, by)
	}
	if by > math.MaxInt64-t.count {
		return t, fmt.Errorf("%w: increment of %d overflows count %d", ErrInvalidArgument, by, t.count)
	}
	t.count += by
	return t, nil
}

// CheckBoundary fires when count/batchSize has moved past the batch number
// recorded at the previous firing. Firing freezes the size and duration of the
// batch that just ended, starts the next one, and returns the fresh snapshot.
// Several boundaries crossed since the last check produce a single firing
// that spans all of them.
func (t *Tracker) CheckBoundary() (Snapshot, bool) {
	divisor := t.count / t.batchSize
	if divisor <= t.batchNumber {
		return Snapshot{}, false
	}

	t.batchEndTime = t.now()
	t.lastBatchSize = t.count - t.prevCount
	t.lastBatchSeconds = t.batchEndTime.Sub(t.batchStartTime).Seconds()

	t.batchStartTime = t.batchEndTime
	t.prevCount = t.count
	t.batchNumber = divisor

	return t.snapshotAt(t.batchEndTime), true
}

// IncrementAndCheck adds one unit and calls fn with the snapshot if that
// crossed a boundary. It reports whether a boundary fired.
func (t *Tracker) IncrementAndCheck(fn func(Snapshot)) bool {
	s, fired := t.Increment().CheckBoundary()
	if fired && fn != nil {
		fn(s)
	}
	return fired
}

// IncrementByAndCheck is IncrementAndCheck for by units.
func (t *Tracker) IncrementByAndCheck(by int64, fn func(Snapshot)) (bool, error) {
	if _, err := t.IncrementBy(by); err != nil {
		return false, err
	}
	s, fired := t.CheckBoundary()
	if fired && fn != nil {
		fn(s)
	}
	return fired, nil
}

// Snapshot reads the current statistics without changing batch state.
func (t *Tracker) Snapshot() Snapshot {
	return t.snapshotAt(t.now())
}

// Summary is the end-of-run view returned by Finalize.
type Summary struct {
	// Partial covers the units counted since the last firing.
	Partial Snapshot

	// Run covers the whole run.
	Run Snapshot
}

// Finalize reports the trailing partial batch and the whole run. It does not
// reset anything, so calling it again reports the same trailing units and a
// later CheckBoundary still behaves normally.
func (t *Tracker) Finalize() Summary {
	now := t.now()

	run := t.snapshotAt(now)

	partial := run
	partial.LastBatchSize = t.count - t.prevCount
	partial.LastBatchSeconds = run.BatchElapsed
	partial.BatchRate = rate(partial.Count, partial.LastBatchSize, partial.LastBatchSeconds)

	return Summary{Partial: partial, Run: run}
}

// Log sends line to the sink. Records go to a FieldSink when the sink is one.
// Log only reads fields fixed at construction, so it may be called outside
// any lock guarding the tracker.
func (t *Tracker) Log(level logger.Level, line Line) {
	if t.sink == nil {
		return
	}
	if line.Fields != nil {
		if fs, ok := t.sink.(FieldSink); ok {
			fs.EmitFields(level, line.Fields)
			return
		}
	}
	t.sink.Emit(level, line.Text)
}

// LogBatchLine checks for a boundary and logs the batch line if one fired.
func (t *Tracker) LogBatchLine(level logger.Level) bool {
	s, fired := t.CheckBoundary()
	if fired {
		t.Log(level, t.formatter.BatchLine(s))
	}
	return fired
}

// IncrementAndLogBatchLine adds one unit and logs the batch line if that
// crossed a boundary.
func (t *Tracker) IncrementAndLogBatchLine(level logger.Level) bool {
	t.Increment()
	return t.LogBatchLine(level)
}

// LogFinalLine logs the whole-run line. Pass logger.Info unless the run
// warrants otherwise.
func (t *Tracker) LogFinalLine(level logger.Level) {
	t.Log(level, t.formatter.FinalLine(t.Finalize().Run))
}

// now reads the clock, never returning a time before one already observed.
func (t *Tracker) now() time.Time {
	n := t.clock()
	if n.Before(t.lastSeen) {
		n = t.lastSeen
	}
	t.lastSeen = n
	return n
}

func (t *Tracker) snapshotAt(now time.Time) Snapshot {
	s := Snapshot{
		Name:             t.name,
		Count:            t.count,
		BatchNumber:      t.batchNumber,
		LastBatchSize:    t.lastBatchSize,
		LastBatchSeconds: t.lastBatchSeconds,
		BatchElapsed:     now.Sub(t.batchStartTime).Seconds(),
		TotalElapsed:     now.Sub(t.startTime).Seconds(),
		Taken:            now,
	}
	s.BatchRate = rate(s.Count, s.LastBatchSize, s.LastBatchSeconds)
	s.TotalRate = rate(s.Count, s.Count, s.TotalElapsed)
	return s
}
