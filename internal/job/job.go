// Package job runs a counting job: it reads record sources line by line and
// feeds one unit per line into a tracker.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/yourusername/milemarker/internal/logger"
	"github.com/yourusername/milemarker/internal/source"
	"github.com/yourusername/milemarker/internal/tracker"
)

// Counter is what a Runner feeds. *tracker.Tracker and *tracker.Guarded both
// satisfy it.
type Counter interface {
	IncrementByAndCheck(by int64, fn func(tracker.Snapshot)) (bool, error)
	Finalize() tracker.Summary
	Snapshot() tracker.Snapshot
	Log(level logger.Level, line tracker.Line)
	Formatter() tracker.Formatter
}

// detachedCounter is implemented by *tracker.Guarded.
type detachedCounter interface {
	IncrementByAndCheckDetached(by int64, fn func(tracker.Snapshot)) (bool, error)
}

// ErrorSink receives per-source failures as error records. *logger.JSON
// satisfies it.
type ErrorSink interface {
	EmitError(level logger.Level, msg string, err error)
}

// Options configures a Runner.
type Options struct {
	// Sources are file paths, or source.Stdin. Empty means stdin.
	Sources []string

	// Source controls follow mode.
	Source source.Options

	// Workers is the number of sources read concurrently. Values above 1
	// require a counter that is safe for concurrent use.
	Workers int

	// Detached runs batch callbacks outside the counter's lock when the
	// counter supports it.
	Detached bool

	// OnBatch is called with every batch snapshot after its line is logged.
	OnBatch func(tracker.Snapshot)

	// Errors, when set, also receives every logged source failure.
	Errors ErrorSink
}

// Runner reads sources into a Counter.
type Runner struct {
	counter Counter
	opts    Options
	log     *logger.Logger

	paused atomic.Bool
	mu     sync.Mutex
	resume chan struct{}
}

// New validates opts and returns a Runner. l receives per-source errors and
// may be nil.
func New(c Counter, opts Options, l *logger.Logger) (*Runner, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if len(opts.Sources) == 0 {
		opts.Sources = []string{source.Stdin}
	}
	if _, plain := c.(*tracker.Tracker); plain && opts.Workers > 1 {
		return nil, fmt.Errorf("%w: %d workers need a guarded tracker", tracker.ErrConfiguration, opts.Workers)
	}
	if _, ok := c.(detachedCounter); opts.Detached && !ok {
		return nil, fmt.Errorf("%w: detached callbacks need a guarded tracker", tracker.ErrConfiguration)
	}
	return &Runner{counter: c, opts: opts, log: l}, nil
}

// Run reads every source to the end, or until ctx is done, then logs the
// final line at Info and the trailing partial batch at Debug. A source that
// fails is logged and skipped; its error is part of the returned error. The
// summary is valid even when an error is returned.
func (r *Runner) Run(ctx context.Context) (tracker.Summary, error) {
	paths := make(chan string)
	errs := make(chan error, len(r.opts.Sources))

	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				if err := r.readOne(ctx, path); err != nil {
					if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
						r.logError(path, err)
					}
					errs <- fmt.Errorf("%s: %w", path, err)
				}
			}
		}()
	}

feed:
	for _, p := range r.opts.Sources {
		select {
		case paths <- p:
		case <-ctx.Done():
			break feed
		}
	}
	close(paths)
	wg.Wait()
	close(errs)

	var all []error
	for err := range errs {
		all = append(all, err)
	}
	if ctx.Err() != nil && len(all) == 0 {
		all = append(all, ctx.Err())
	}

	sum := r.counter.Finalize()
	f := r.counter.Formatter()
	r.counter.Log(logger.Info, f.FinalLine(sum.Run))
	if sum.Partial.LastBatchSize > 0 {
		r.counter.Log(logger.Debug, f.BatchLine(sum.Partial))
	}

	return sum, errors.Join(all...)
}

// SetPaused stops or resumes reading. Workers block before their next line
// while paused.
func (r *Runner) SetPaused(paused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if paused == r.paused.Load() {
		return
	}
	if paused {
		r.resume = make(chan struct{})
	} else {
		close(r.resume)
	}
	r.paused.Store(paused)
}

// Paused reports whether reading is paused.
func (r *Runner) Paused() bool {
	return r.paused.Load()
}

// Snapshot reads the counter's current statistics.
func (r *Runner) Snapshot() tracker.Snapshot {
	return r.counter.Snapshot()
}

func (r *Runner) readOne(ctx context.Context, path string) error {
	rc, err := source.Open(ctx, path, r.opts.Source)
	if err != nil {
		return err
	}
	defer rc.Close()

	return source.Lines(ctx, rc, func([]byte) error {
		if err := r.waitIfPaused(ctx); err != nil {
			return err
		}
		return r.increment()
	})
}

func (r *Runner) increment() error {
	if d, ok := r.counter.(detachedCounter); ok && r.opts.Detached {
		_, err := d.IncrementByAndCheckDetached(1, r.onBatch)
		return err
	}
	_, err := r.counter.IncrementByAndCheck(1, r.onBatch)
	return err
}

func (r *Runner) onBatch(s tracker.Snapshot) {
	r.counter.Log(logger.Info, r.counter.Formatter().BatchLine(s))
	if r.opts.OnBatch != nil {
		r.opts.OnBatch(s)
	}
}

func (r *Runner) waitIfPaused(ctx context.Context) error {
	if !r.paused.Load() {
		return nil
	}
	r.mu.Lock()
	ch := r.resume
	paused := r.paused.Load()
	r.mu.Unlock()
	if !paused {
		return nil
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) logError(path string, err error) {
	if r.opts.Errors != nil {
		r.opts.Errors.EmitError(logger.Error, "source failed: "+path, err)
	}
	if r.log == nil {
		return
	}
	r.log.Error("SOURCE", fmt.Sprintf("%s: %v", path, err))
}
