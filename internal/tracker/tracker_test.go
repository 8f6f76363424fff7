package tracker

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/yourusername/milemarker/internal/logger"
)

// --- Helpers ---

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type recordingSink struct {
	levels []logger.Level
	lines  []string
	fields []map[string]any
}

func (s *recordingSink) Emit(level logger.Level, msg string) {
	s.levels = append(s.levels, level)
	s.lines = append(s.lines, msg)
}

type recordingFieldSink struct {
	recordingSink
}

func (s *recordingFieldSink) EmitFields(level logger.Level, fields map[string]any) {
	s.levels = append(s.levels, level)
	s.fields = append(s.fields, fields)
}

func mustNew(t *testing.T, opts Options) *Tracker {
	t.Helper()
	tr, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return tr
}

// runUnits increments one unit at a time and returns the counts at which a boundary fired.
func runUnits(tr *Tracker, n int) []int64 {
	var fired []int64
	for i := 0; i < n; i++ {
		tr.IncrementAndCheck(func(s Snapshot) {
			fired = append(fired, s.Count)
		})
	}
	return fired
}

// --- Tests ---

func TestNew_InvalidBatchSize(t *testing.T) {
	for _, size := range []int64{0, -1, -1000} {
		_, err := New(Options{BatchSize: size})
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("New(BatchSize=%d): expected ErrConfiguration, got %v", size, err)
		}
	}
}

func TestDefaultOptions(t *testing.T) {
	tr := mustNew(t, DefaultOptions())
	if tr.BatchSize() != DefaultBatchSize {
		t.Errorf("expected default batch size %d, got %d", DefaultBatchSize, tr.BatchSize())
	}
	if _, ok := tr.Formatter().(Human); !ok {
		t.Errorf("expected Human formatter by default, got %T", tr.Formatter())
	}
}

func TestIncrementAndCheck_Boundaries(t *testing.T) {
	tests := []struct {
		batchSize int64
		units     int
		fired     []int64
		partial   int64
	}{
		{5, 12, []int64{5, 10}, 2},
		{5, 15, []int64{5, 10, 15}, 0},
		{5, 4, nil, 4},
		{1, 3, []int64{1, 2, 3}, 0},
		{100, 1000, []int64{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000}, 0},
	}

	for _, tt := range tests {
		tr := mustNew(t, Options{BatchSize: tt.batchSize})
		fired := runUnits(tr, tt.units)

		if len(fired) != len(tt.fired) {
			t.Errorf("B=%d N=%d: fired %v, want %v", tt.batchSize, tt.units, fired, tt.fired)
			continue
		}
		for i := range fired {
			if fired[i] != tt.fired[i] {
				t.Errorf("B=%d N=%d: fired %v, want %v", tt.batchSize, tt.units, fired, tt.fired)
				break
			}
		}

		sum := tr.Finalize()
		if sum.Partial.LastBatchSize != tt.partial {
			t.Errorf("B=%d N=%d: partial %d, want %d", tt.batchSize, tt.units, sum.Partial.LastBatchSize, tt.partial)
		}
		if sum.Run.Count != int64(tt.units) {
			t.Errorf("B=%d N=%d: run count %d", tt.batchSize, tt.units, sum.Run.Count)
		}
	}
}

func TestFirings_SumToTotal(t *testing.T) {
	tr := mustNew(t, Options{BatchSize: 7})
	amounts := []int64{1, 3, 0, 12, 2, 2, 20, 1, 1, 1, 6, 50, 4}

	var total, batched int64
	for _, by := range amounts {
		total += by
		if _, err := tr.IncrementByAndCheck(by, func(s Snapshot) {
			batched += s.LastBatchSize
		}); err != nil {
			t.Fatalf("IncrementByAndCheck(%d): %v", by, err)
		}
	}

	partial := tr.Finalize().Partial.LastBatchSize
	if batched+partial != total {
		t.Errorf("batches %d + partial %d != total %d", batched, partial, total)
	}
	if partial >= 7 {
		t.Errorf("partial %d should be less than one batch", partial)
	}
}

func TestCheckBoundary_SkippedBoundariesFireOnce(t *testing.T) {
	tr := mustNew(t, Options{BatchSize: 5})

	fires := 0
	var snap Snapshot
	if _, err := tr.IncrementByAndCheck(25, func(s Snapshot) {
		fires++
		snap = s
	}); err != nil {
		t.Fatalf("IncrementByAndCheck failed: %v", err)
	}

	if fires != 1 {
		t.Fatalf("expected exactly one firing, got %d", fires)
	}
	if snap.LastBatchSize != 25 {
		t.Errorf("expected last batch size 25, got %d", snap.LastBatchSize)
	}
	if snap.BatchNumber != 5 {
		t.Errorf("expected batch number 5, got %d", snap.BatchNumber)
	}

	// Idempotent without an intervening increment
	if _, fired := tr.CheckBoundary(); fired {
		t.Error("CheckBoundary fired twice for one crossing")
	}
}

func TestIncrement_DoesNotCheck(t *testing.T) {
	tr := mustNew(t, Options{BatchSize: 2})
	tr.Increment().Increment().Increment()

	if tr.Count() != 3 {
		t.Fatalf("expected count 3, got %d", tr.Count())
	}
	if tr.Snapshot().LastBatchSize != 0 {
		t.Error("Increment should not fire a boundary")
	}

	s, fired := tr.CheckBoundary()
	if !fired || s.LastBatchSize != 3 {
		t.Errorf("expected pending boundary with 3 units, got fired=%v size=%d", fired, s.LastBatchSize)
	}
}

func TestIncrementBy_InvalidArgument(t *testing.T) {
	tr := mustNew(t, Options{BatchSize: 5})
	tr.Increment()

	if _, err := tr.IncrementBy(-1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := tr.IncrementByAndCheck(-3, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if tr.Count() != 1 {
		t.Errorf("negative increment changed count to %d", tr.Count())
	}

	if _, err := tr.IncrementBy(0); err != nil {
		t.Errorf("zero increment should be a no-op, got %v", err)
	}
	if tr.Count() != 1 {
		t.Errorf("zero increment changed count to %d", tr.Count())
	}

	// Overflow is rejected and leaves state untouched
	if _, err := tr.IncrementBy(math.MaxInt64); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument on overflow, got %v", err)
	}
	if fired, err := tr.IncrementByAndCheck(math.MaxInt64, nil); fired || !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument without firing, got fired=%v err=%v", fired, err)
	}
	if tr.Count() != 1 {
		t.Errorf("overflowing increment changed count to %d", tr.Count())
	}
	if p := tr.Finalize().Partial.LastBatchSize; p != 1 {
		t.Errorf("expected trailing partial 1, got %d", p)
	}
}

func TestIncrement_Saturates(t *testing.T) {
	tr := mustNew(t, Options{BatchSize: math.MaxInt64})
	if _, err := tr.IncrementBy(math.MaxInt64); err != nil {
		t.Fatalf("filling to MaxInt64 should succeed, got %v", err)
	}
	tr.Increment()
	if tr.Count() != math.MaxInt64 {
		t.Errorf("expected count to stay at MaxInt64, got %d", tr.Count())
	}
	if _, err := tr.IncrementBy(1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument at MaxInt64, got %v", err)
	}
}

func TestRates(t *testing.T) {
	clk := newFakeClock()
	tr := mustNew(t, Options{BatchSize: 5, Clock: clk.Now})

	var snaps []Snapshot
	for i := 0; i < 10; i++ {
		clk.Advance(time.Second)
		tr.IncrementAndCheck(func(s Snapshot) { snaps = append(snaps, s) })
	}

	if len(snaps) != 2 {
		t.Fatalf("expected 2 firings, got %d", len(snaps))
	}
	first := snaps[0]
	if first.LastBatchSeconds != 5 || first.BatchRate != 1 {
		t.Errorf("first batch: seconds=%v rate=%v", first.LastBatchSeconds, first.BatchRate)
	}
	if first.TotalElapsed != 5 || first.TotalRate != 1 {
		t.Errorf("first batch totals: elapsed=%v rate=%v", first.TotalElapsed, first.TotalRate)
	}
	if first.BatchElapsed != 0 {
		t.Errorf("a new batch starts at the firing, got elapsed %v", first.BatchElapsed)
	}

	// Slow down: 5 more units over 20s
	for i := 0; i < 5; i++ {
		clk.Advance(4 * time.Second)
		tr.IncrementAndCheck(func(s Snapshot) { snaps = append(snaps, s) })
	}
	third := snaps[2]
	if third.LastBatchSeconds != 20 || third.BatchRate != 0.25 {
		t.Errorf("third batch: seconds=%v rate=%v", third.LastBatchSeconds, third.BatchRate)
	}
	if third.TotalElapsed != 30 || third.TotalRate != 0.5 {
		t.Errorf("third batch totals: elapsed=%v rate=%v", third.TotalElapsed, third.TotalRate)
	}
}

func TestRates_ZeroDurationBatch(t *testing.T) {
	clk := newFakeClock() // never advances
	tr := mustNew(t, Options{BatchSize: 1, Clock: clk.Now})

	var snap Snapshot
	if !tr.IncrementAndCheck(func(s Snapshot) { snap = s }) {
		t.Fatal("expected a firing")
	}
	if snap.LastBatchSeconds != 0 {
		t.Fatalf("expected zero-second batch, got %v", snap.LastBatchSeconds)
	}
	if snap.BatchRate != 0 || snap.TotalRate != 0 {
		t.Errorf("expected zero rates, got batch=%v total=%v", snap.BatchRate, snap.TotalRate)
	}
	if snap.BatchRateString(2) != "0.00" {
		t.Errorf("unexpected batch rate string %q", snap.BatchRateString(2))
	}
}

func TestRates_ZeroCount(t *testing.T) {
	clk := newFakeClock()
	tr := mustNew(t, Options{BatchSize: 10, Clock: clk.Now})
	clk.Advance(time.Minute)

	s := tr.Snapshot()
	if s.BatchRate != 0 || s.TotalRate != 0 {
		t.Errorf("expected zero rates before any unit, got %v/%v", s.BatchRate, s.TotalRate)
	}
	if s.BatchRateString(0) != "0" || s.TotalRateString(3) != "0" {
		t.Errorf("rate strings should be \"0\" before any unit")
	}
}

func TestTotalElapsed_Monotonic(t *testing.T) {
	clk := newFakeClock()
	tr := mustNew(t, Options{BatchSize: 10, Clock: clk.Now})

	steps := []time.Duration{time.Second, -3 * time.Second, 2 * time.Second, 0, -time.Hour, 5 * time.Second}
	prev := tr.Snapshot().TotalElapsed
	for _, d := range steps {
		clk.Advance(d)
		cur := tr.Snapshot().TotalElapsed
		if cur < prev {
			t.Fatalf("total elapsed went backwards: %v -> %v", prev, cur)
		}
		prev = cur
	}
}

func TestFinalize_NonDestructive(t *testing.T) {
	clk := newFakeClock()
	tr := mustNew(t, Options{BatchSize: 5, Clock: clk.Now})
	for i := 0; i < 12; i++ {
		clk.Advance(time.Second)
		tr.IncrementAndCheck(nil)
	}

	clk.Advance(3 * time.Second)
	first := tr.Finalize()
	second := tr.Finalize()

	if first.Partial.LastBatchSize != 2 || second.Partial.LastBatchSize != 2 {
		t.Errorf("expected trailing partial 2 twice, got %d and %d",
			first.Partial.LastBatchSize, second.Partial.LastBatchSize)
	}
	// Units 11 and 12 took 2s, plus 3s idle
	if first.Partial.LastBatchSeconds != 5 {
		t.Errorf("expected partial seconds 5, got %v", first.Partial.LastBatchSeconds)
	}
	if first.Partial.BatchRate != 0.4 {
		t.Errorf("expected partial rate 0.4, got %v", first.Partial.BatchRate)
	}
	if first.Run.Count != 12 || first.Run.TotalElapsed != 15 {
		t.Errorf("unexpected run snapshot: %+v", first.Run)
	}
	if first.Run.LastBatchSize != 5 {
		t.Errorf("run snapshot should keep the last completed batch, got %d", first.Run.LastBatchSize)
	}

	// A later boundary still fires normally
	for i := 0; i < 3; i++ {
		tr.Increment()
	}
	s, fired := tr.CheckBoundary()
	if !fired || s.LastBatchSize != 5 {
		t.Errorf("expected boundary at 15 with 5 units, got fired=%v size=%d", fired, s.LastBatchSize)
	}
}

func TestLogBatchLine_Human(t *testing.T) {
	sink := &recordingSink{}
	tr := mustNew(t, Options{BatchSize: 5, Name: "load", Sink: sink})

	for i := 0; i < 12; i++ {
		tr.IncrementAndLogBatchLine(logger.Info)
	}

	if len(sink.lines) != 2 {
		t.Fatalf("expected 2 batch lines, got %d: %v", len(sink.lines), sink.lines)
	}
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`^load\s+5\.\s+This batch\s+5 in`),
		regexp.MustCompile(`^load\s+10\.\s+This batch\s+5 in`),
	}
	for i, re := range patterns {
		if !re.MatchString(sink.lines[i]) {
			t.Errorf("line %d %q does not match %s", i, sink.lines[i], re)
		}
	}

	tr.LogFinalLine(logger.Info)
	final := sink.lines[len(sink.lines)-1]
	if !regexp.MustCompile(`FINISHED\.\s+12 total records in \d\dh \d\dm \d\ds\.`).MatchString(final) {
		t.Errorf("unexpected final line %q", final)
	}
	for _, lvl := range sink.levels {
		if lvl != logger.Info {
			t.Errorf("expected info level, got %v", lvl)
		}
	}
}

func TestLog_NilSink(t *testing.T) {
	tr := mustNew(t, Options{BatchSize: 1})
	tr.IncrementAndLogBatchLine(logger.Info)
	tr.LogFinalLine(logger.Warn)
}

func TestLog_StructuredSinks(t *testing.T) {
	plain := &recordingSink{}
	tr := mustNew(t, Options{BatchSize: 2, Name: "s", Sink: plain, Formatter: Structured{}})
	tr.Increment()
	tr.IncrementAndLogBatchLine(logger.Info)

	if len(plain.lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(plain.lines))
	}
	var rec BatchRecord
	if err := json.Unmarshal([]byte(plain.lines[0]), &rec); err != nil {
		t.Fatalf("plain sink should receive JSON, got %q: %v", plain.lines[0], err)
	}
	if rec.Name != "s" || rec.BatchCount != 2 || rec.TotalCount != 2 {
		t.Errorf("unexpected record %+v", rec)
	}

	fs := &recordingFieldSink{}
	tr = mustNew(t, Options{BatchSize: 2, Name: "s", Sink: fs, Formatter: Structured{}})
	tr.IncrementBy(2)
	tr.LogBatchLine(logger.Info)
	tr.LogFinalLine(logger.Info)

	if len(fs.lines) != 0 {
		t.Errorf("field sink should not receive text lines, got %v", fs.lines)
	}
	if len(fs.fields) != 2 {
		t.Fatalf("expected 2 records, got %d", len(fs.fields))
	}
	if fs.fields[0]["batch_count"] != int64(2) {
		t.Errorf("unexpected batch record %v", fs.fields[0])
	}
	if _, ok := fs.fields[1]["batch_count"]; ok {
		t.Errorf("final record should not carry batch fields: %v", fs.fields[1])
	}
}

func TestHuman_Lines(t *testing.T) {
	s := Snapshot{
		Name:             "load records.ndj",
		Count:            8000000,
		LastBatchSize:    2000000,
		LastBatchSeconds: 26.2,
		BatchRate:        76469,
		TotalRate:        72705,
	}
	want := "load records.ndj  8_000_000. This batch 2_000_000 in 26.2s (76_469 r/s). Overall 72_705 r/s."
	if got := (Human{}).BatchLine(s).Text; got != want {
		t.Errorf("BatchLine:\n got %q\nwant %q", got, want)
	}

	s = Snapshot{
		Name:         "load records.ndj",
		Count:        27138118,
		TotalElapsed: 759,
		TotalRate:    35718,
	}
	want = "load records.ndj FINISHED. 27_138_118 total records in 00h 12m 39s. Overall 35_718 r/s."
	line := (Human{}).FinalLine(s)
	if line.Text != want {
		t.Errorf("FinalLine:\n got %q\nwant %q", line.Text, want)
	}
	if line.Fields != nil {
		t.Error("human lines carry no fields")
	}
}

func TestHuman_NoName(t *testing.T) {
	line := (Human{}).BatchLine(Snapshot{Count: 5, LastBatchSize: 5})
	if !strings.HasPrefix(line.Text, "          5. This batch     5 in  0.0s (0 r/s)") {
		t.Errorf("unexpected line %q", line.Text)
	}

	final := (Human{}).FinalLine(Snapshot{Count: 5})
	if !strings.HasPrefix(final.Text, " FINISHED.          5 total records") {
		t.Errorf("unexpected final line %q", final.Text)
	}
}

func TestStructured_Records(t *testing.T) {
	s := Snapshot{
		Name:             "x",
		Count:            10,
		LastBatchSize:    5,
		LastBatchSeconds: 2.5,
		BatchRate:        2,
		TotalElapsed:     4,
		TotalRate:        2.5,
	}

	line := (Structured{}).BatchLine(s)
	var got map[string]any
	if err := json.Unmarshal([]byte(line.Text), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", line.Text, err)
	}
	expected := map[string]any{
		"name":          "x",
		"batch_count":   float64(5),
		"batch_seconds": 2.5,
		"batch_rate":    float64(2),
		"total_count":   float64(10),
		"total_seconds": float64(4),
		"total_rate":    2.5,
	}
	for k, v := range expected {
		if got[k] != v {
			t.Errorf("field %s = %v, want %v", k, got[k], v)
		}
	}
	if len(line.Fields) != len(expected) {
		t.Errorf("expected %d fields, got %d", len(expected), len(line.Fields))
	}

	final := (Structured{}).FinalLine(s)
	if len(final.Fields) != 4 {
		t.Errorf("final record should have 4 fields, got %v", final.Fields)
	}
	if final.Fields["total_count"] != int64(10) {
		t.Errorf("unexpected final record %v", final.Fields)
	}
}

func TestFormatterByName(t *testing.T) {
	if f, err := FormatterByName("human"); err != nil || f != (Human{}) {
		t.Errorf("human: %v %v", f, err)
	}
	if f, err := FormatterByName("structured"); err != nil || f != (Structured{}) {
		t.Errorf("structured: %v %v", f, err)
	}
	if _, err := FormatterByName("xml"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}
