package tracker

import (
	"math"
	"time"

	"github.com/yourusername/milemarker/internal/numfmt"
)

// Snapshot is an immutable read of a Tracker's statistics.
type Snapshot struct {
	Name        string
	Count       int64
	BatchNumber int64

	// LastBatchSize and LastBatchSeconds describe the most recent completed
	// batch, or the trailing partial batch in Summary.Partial.
	LastBatchSize    int64
	LastBatchSeconds float64

	// BatchElapsed is the time since the current batch started.
	BatchElapsed float64
	// TotalElapsed is the time since the run started.
	TotalElapsed float64

	// BatchRate and TotalRate are units per second, 0 when undefined.
	BatchRate float64
	TotalRate float64

	// Taken is the clock reading the snapshot was computed at.
	Taken time.Time
}

// BatchRateString renders BatchRate with the given decimals, "0" before any unit.
func (s Snapshot) BatchRateString(decimals int) string {
	if s.Count == 0 {
		return "0"
	}
	return numfmt.PP(s.BatchRate, 0, decimals)
}

// TotalRateString renders TotalRate with the given decimals, "0" before any unit.
func (s Snapshot) TotalRateString(decimals int) string {
	if s.Count == 0 {
		return "0"
	}
	return numfmt.PP(s.TotalRate, 0, decimals)
}

// rate is units/seconds, or 0 when nothing has been counted or no time has passed.
func rate(count, units int64, seconds float64) float64 {
	if count == 0 || seconds <= 0 {
		return 0
	}
	r := float64(units) / seconds
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}
