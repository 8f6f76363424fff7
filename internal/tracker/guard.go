package tracker

import (
	"sync"

	"github.com/yourusername/milemarker/internal/logger"
)

// Guarded serializes access to a Tracker so several goroutines can feed one
// count. Increment, boundary check and callback run as one unit under a single
// mutex: a callback sees the snapshot produced by its own increment, and a
// slow callback holds up every producer for its duration. The Detached
// variants release the lock before calling back.
type Guarded struct {
	mu sync.Mutex
	t  *Tracker
}

// Guard wraps t. The caller must stop using t directly.
func Guard(t *Tracker) *Guarded {
	return &Guarded{t: t}
}

// NewGuarded creates a Tracker and wraps it.
func NewGuarded(opts Options) (*Guarded, error) {
	t, err := New(opts)
	if err != nil {
		return nil, err
	}
	return Guard(t), nil
}

// IncrementAndCheck adds one unit and, on a boundary, calls fn with the lock held.
func (g *Guarded) IncrementAndCheck(fn func(Snapshot)) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t.IncrementAndCheck(fn)
}

// IncrementByAndCheck adds by units and, on a boundary, calls fn with the lock held.
func (g *Guarded) IncrementByAndCheck(by int64, fn func(Snapshot)) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t.IncrementByAndCheck(by, fn)
}

// IncrementAndCheckDetached adds one unit and, on a boundary, calls fn after
// releasing the lock. Callbacks from different goroutines may then run
// concurrently and out of order.
func (g *Guarded) IncrementAndCheckDetached(fn func(Snapshot)) bool {
	fired, _ := g.IncrementByAndCheckDetached(1, fn)
	return fired
}

// IncrementByAndCheckDetached is IncrementAndCheckDetached for by units.
func (g *Guarded) IncrementByAndCheckDetached(by int64, fn func(Snapshot)) (bool, error) {
	g.mu.Lock()
	if _, err := g.t.IncrementBy(by); err != nil {
		g.mu.Unlock()
		return false, err
	}
	s, fired := g.t.CheckBoundary()
	g.mu.Unlock()

	if fired && fn != nil {
		fn(s)
	}
	return fired, nil
}

// IncrementAndLogBatchLine adds one unit and logs the batch line, if any, with the lock held.
func (g *Guarded) IncrementAndLogBatchLine(level logger.Level) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t.IncrementAndLogBatchLine(level)
}

// LogFinalLine logs the whole-run line.
func (g *Guarded) LogFinalLine(level logger.Level) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.t.LogFinalLine(level)
}

// Log sends line to the tracker's sink. It takes no lock.
func (g *Guarded) Log(level logger.Level, line Line) {
	g.t.Log(level, line)
}

// Formatter returns the wrapped tracker's formatter.
func (g *Guarded) Formatter() Formatter {
	return g.t.Formatter()
}

// Finalize reports the trailing partial batch and the whole run.
func (g *Guarded) Finalize() Summary {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t.Finalize()
}

// Snapshot reads the current statistics.
func (g *Guarded) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t.Snapshot()
}

// Count returns the number of units counted so far.
func (g *Guarded) Count() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t.Count()
}
