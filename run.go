package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yourusername/milemarker/internal/config"
	"github.com/yourusername/milemarker/internal/job"
	"github.com/yourusername/milemarker/internal/logger"
	"github.com/yourusername/milemarker/internal/notifier"
	"github.com/yourusername/milemarker/internal/sentryx"
	"github.com/yourusername/milemarker/internal/source"
	"github.com/yourusername/milemarker/internal/status"
	"github.com/yourusername/milemarker/internal/tracker"
	"github.com/yourusername/milemarker/internal/tui"
	"github.com/yourusername/milemarker/internal/wizard"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Interactively write a " + config.FileName,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.FileName
			if len(args) == 1 {
				path = args[0]
			}
			w := &wizard.Wizard{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
			return w.Run(path)
		},
	}
}

// runOptions is everything a run needs after config and flags are merged.
type runOptions struct {
	cfg     *config.Config
	sources []string
	tui     bool
	runID   string

	// console and jsonOut default to stdout; tests swap them.
	console io.Writer
	jsonOut io.Writer
}

func runCount(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, loadedPath, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	useTUI, _ := cmd.Flags().GetBool("tui")

	// Graceful shutdown on Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := runOptions{
		cfg:     cfg,
		sources: args,
		tui:     useTUI,
		runID:   uuid.NewString(),
		console: cmd.OutOrStdout(),
		jsonOut: cmd.OutOrStdout(),
	}
	if loadedPath == "" {
		loadedPath = "(defaults)"
	}
	return execute(ctx, opts, loadedPath)
}

// execute performs one counting run. A run stopped by ctx is not an error.
func execute(ctx context.Context, o runOptions, configPath string) error {
	cfg := o.cfg

	if ok, serr := sentryx.Init(cfg.Sentry.DSN, cfg.Sentry.Environment, version, o.runID); serr != nil {
		fmt.Fprintf(os.Stderr, "sentry disabled: %v\n", serr)
	} else if ok {
		defer sentryx.Flush(2 * time.Second)
		defer sentryx.RecoverPanicAndCapture()
	}

	// 1. Logging
	l, err := logger.New(cfg.Logging.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Close()

	level, _ := logger.ParseLevel(cfg.Logging.Level)
	l.SetLevel(level)
	l.SetConsoleOutput(o.console)

	// Tracker lines go to the console logger unless JSON output is on, in
	// which case stdout is reserved for records and the console moves to stderr.
	var (
		sink    tracker.Sink = l
		errSink job.ErrorSink
	)
	if cfg.Logging.JSON && !o.tui {
		js := logger.NewJSON(o.jsonOut, o.runID)
		js.SetLevel(level)
		sink, errSink = js, js
		l.SetConsoleOutput(os.Stderr)
	}

	l.Section(fmt.Sprintf("🚀 milemarker %s (run %s)", version, o.runID))
	l.Plain(fmt.Sprintf("📝 Config: %s", configPath))
	l.Plain(fmt.Sprintf("📦 Batch size: %d  Workers: %d  Format: %s", cfg.Tracker.BatchSize, cfg.Tracker.Workers, cfg.Tracker.Format))

	// 2. Tracker
	formatter, err := tracker.FormatterByName(cfg.Tracker.Format)
	if err != nil {
		return err
	}
	topts := tracker.Options{
		BatchSize: cfg.Tracker.BatchSize,
		Name:      cfg.Tracker.Name,
		Sink:      sink,
		Formatter: formatter,
	}

	n := notifier.New(cfg.Notifications)

	// Anything that reads the tracker from another goroutine needs the guard.
	guarded := cfg.Tracker.Guarded || o.tui || cfg.Status.Listen != "" ||
		(n.Active() && cfg.Notifications.DigestInterval > 0)

	var counter job.Counter
	if guarded {
		counter, err = tracker.NewGuarded(topts)
	} else {
		counter, err = tracker.New(topts)
	}
	if err != nil {
		return err
	}

	// 3. Side channels
	var (
		srv    *status.Server
		bridge *tui.Bridge
		wg     sync.WaitGroup
	)
	sideCtx, cancelSide := context.WithCancel(ctx)
	defer func() {
		cancelSide()
		wg.Wait()
	}()

	if cfg.Status.Listen != "" {
		srv = status.New(o.runID, counter.Snapshot, l)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(sideCtx, cfg.Status.Listen); err != nil {
				l.Error("STATUS", fmt.Sprintf("Status server stopped: %v", err))
			}
		}()
		l.Info("STATUS", fmt.Sprintf("🌐 Serving progress on %s", cfg.Status.Listen))
	}

	if n.Active() && cfg.Notifications.DigestInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.RunDigest(sideCtx, o.runID, counter.Snapshot, func(err error) {
				l.Warn("NOTIFY", fmt.Sprintf("Digest failed: %v", err))
			})
		}()
	}

	if o.tui {
		bridge = tui.NewBridge()
	}

	// 4. Job
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runner, err := job.New(counter, job.Options{
		Sources: o.sources,
		Source: source.Options{
			Follow:       cfg.Source.Follow,
			PollInterval: cfg.Source.PollInterval,
		},
		Workers:  cfg.Tracker.Workers,
		Detached: cfg.Tracker.DetachedCallbacks,
		Errors:   errSink,
		OnBatch: func(s tracker.Snapshot) {
			if srv != nil {
				srv.Publish(s)
			}
			if bridge != nil {
				bridge.PublishBatch(s)
			}
		},
	}, l)
	if err != nil {
		return err
	}

	var (
		sum    tracker.Summary
		runErr error
	)
	if o.tui {
		done := make(chan struct{})
		go func() {
			defer close(done)
			sum, runErr = runner.Run(runCtx)
			bridge.Finish(sum, runErr)
		}()
		if err := tui.Run(cfg.Tracker.Name, cfg.Tracker.Total, runner, bridge, l, cancelRun); err != nil {
			cancelRun()
			<-done
			return fmt.Errorf("dashboard: %w", err)
		}
		// Quitting the dashboard stops the job.
		cancelRun()
		<-done
		l.SetConsoleOutput(o.console)
	} else {
		sum, runErr = runner.Run(runCtx)
	}

	// 5. Wrap up
	if srv != nil {
		srv.PublishFinal(sum.Run)
	}
	if nerr := n.SendFinished(o.runID, sum, stoppedOnly(runErr)); nerr != nil {
		l.Warn("NOTIFY", fmt.Sprintf("Failed to send notification: %v", nerr))
	}

	if runErr != nil {
		if stoppedOnly(runErr) == nil {
			l.Warn("MAIN", "🛑 Stopped before the input ended.")
			return nil
		}
		sentryx.CaptureError(runErr, "run %s failed", o.runID)
		return runErr
	}
	l.Success("MAIN", "✅ Done.")
	return nil
}

// stoppedOnly drops an error that only says the run was cancelled.
func stoppedOnly(err error) error {
	if err == nil {
		return nil
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	for _, e := range errs {
		if !errors.Is(e, context.Canceled) && !errors.Is(e, context.DeadlineExceeded) {
			return err
		}
	}
	return nil
}
