// Package source opens record inputs for counting: plain files, stdin, and
// files that keep growing while the job runs.
package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/muesli/cancelreader"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// DefaultPollInterval is used when Options.PollInterval is not set.
const DefaultPollInterval = time.Second

// Options controls how a source is read.
type Options struct {
	// Follow keeps reading at end of file, waiting for more data until the
	// context is cancelled.
	Follow bool

	// PollInterval is the fallback stat interval while following. fsnotify
	// events are not delivered on some bind mounts and network filesystems.
	PollInterval time.Duration
}

// Open returns a reader for path. Stdin is never followed; a read blocked on
// it ends with io.EOF once ctx is done.
func Open(ctx context.Context, path string, opts Options) (io.ReadCloser, error) {
	if path == Stdin {
		return openStdin(ctx, os.Stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	if !opts.Follow {
		return f, nil
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return newFollower(ctx, f, opts.PollInterval), nil
}

// Lines calls fn for every line of r. It stops early when ctx is done and
// returns ctx.Err() in that case.
func Lines(ctx context.Context, r io.Reader, fn func(line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 20*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan source: %w", err)
	}
	return ctx.Err()
}

// stdinReader ends a pending read on cancellation. Like follower, it reports
// cancellation as io.EOF so the scanner hands over the lines it holds.
type stdinReader struct {
	cr   cancelreader.CancelReader
	stop func() bool
}

func openStdin(ctx context.Context, f *os.File) io.ReadCloser {
	cr, err := cancelreader.NewReader(f)
	if err != nil {
		// Not pollable (e.g. a redirected regular file), so reads never block for long
		return io.NopCloser(f)
	}
	return &stdinReader{
		cr:   cr,
		stop: context.AfterFunc(ctx, func() { cr.Cancel() }),
	}
}

func (s *stdinReader) Read(p []byte) (int, error) {
	n, err := s.cr.Read(p)
	if errors.Is(err, cancelreader.ErrCanceled) {
		return n, io.EOF
	}
	return n, err
}

// Close releases the poller. Stdin itself stays open.
func (s *stdinReader) Close() error {
	s.stop()
	return s.cr.Close()
}

// follower reads a file and, at end of file, waits for a write event, a poll
// tick, or cancellation. Cancellation is reported as io.EOF so that scanners
// finish the lines they hold.
type follower struct {
	ctx     context.Context
	f       *os.File
	name    string
	watcher *fsnotify.Watcher
	poll    *time.Ticker
}

func newFollower(ctx context.Context, f *os.File, interval time.Duration) *follower {
	fl := &follower{
		ctx:  ctx,
		f:    f,
		name: filepath.Base(f.Name()),
		poll: time.NewTicker(interval),
	}

	// Watch the directory, not the file, so rotations and atomic replacements
	// still produce events. Polling covers the case where this fails.
	if w, err := fsnotify.NewWatcher(); err == nil {
		if err := w.Add(filepath.Dir(f.Name())); err == nil {
			fl.watcher = w
		} else {
			w.Close()
		}
	}
	return fl
}

func (fl *follower) Read(p []byte) (int, error) {
	for {
		n, err := fl.f.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		if err := fl.wait(); err != nil {
			return 0, err
		}
	}
}

func (fl *follower) wait() error {
	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if fl.watcher != nil {
		events = fl.watcher.Events
		errs = fl.watcher.Errors
	}

	for {
		select {
		case <-fl.ctx.Done():
			return io.EOF

		case event, ok := <-events:
			if !ok {
				events, errs = nil, nil
				continue
			}
			if filepath.Base(event.Name) != fl.name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				return fl.rewindIfTruncated()
			}

		case _, ok := <-errs:
			if !ok {
				events, errs = nil, nil
			}

		case <-fl.poll.C:
			return fl.rewindIfTruncated()
		}
	}
}

// rewindIfTruncated restarts from the top when the file shrank below the
// current offset, as happens with copytruncate log rotation.
func (fl *follower) rewindIfTruncated() error {
	info, err := fl.f.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	offset, err := fl.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("seek source: %w", err)
	}
	if info.Size() < offset {
		if _, err := fl.f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("seek source: %w", err)
		}
	}
	return nil
}

func (fl *follower) Close() error {
	fl.poll.Stop()
	if fl.watcher != nil {
		fl.watcher.Close()
	}
	return fl.f.Close()
}
