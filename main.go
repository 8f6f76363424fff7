package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/milemarker/internal/config"
)

// Set via -ldflags at build time.
var version = "dev"

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "milemarker [flags] [file ...]",
		Short: "Count records from files or stdin and report progress every batch",
		Long: `milemarker counts lines from the given files (or stdin, or "-") as a
long-running job. Every time the count crosses a batch boundary it logs the
batch size, how long the batch took and the batch and overall rates. When the
input ends, or on SIGINT/SIGTERM, it logs a final line for the whole run.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE:          runCount,
	}
	cmd.AddCommand(newInitCmd())

	f := cmd.Flags()
	f.String("config", "", "Config file (default: $MILEMARKER_CONFIG, ./"+config.FileName+", ~/.config/milemarker/"+config.FileName+")")
	f.Int64P("batch-size", "b", 0, "Units per batch")
	f.StringP("name", "n", "", "Label printed on every progress line")
	f.String("format", "", "Line format: human or structured")
	f.Bool("guarded", false, "Serialize tracker access for concurrent producers")
	f.Bool("detached", false, "Run batch callbacks outside the tracker lock (implies --guarded)")
	f.IntP("workers", "w", 0, "Files read concurrently (more than 1 implies --guarded)")
	f.BoolP("follow", "f", false, "Keep reading files as they grow until interrupted")
	f.Duration("poll-interval", 0, "Stat interval while following when file events are unavailable")
	f.Bool("tui", false, "Show a live dashboard instead of console lines")
	f.Int64("total", 0, "Expected number of records, for the dashboard progress bar")
	f.String("listen", "", "Serve /healthz, /snapshot and /ws on this address (e.g. :8080)")
	f.String("log-dir", "", "Directory for milemarker.log")
	f.String("log-level", "", "Minimum level: debug, info, warn, error")
	f.Bool("json", false, "Write JSON lines to stdout")

	return cmd
}

// applyFlags copies explicitly set flags over cfg and re-validates.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()

	if f.Changed("batch-size") {
		cfg.Tracker.BatchSize, _ = f.GetInt64("batch-size")
	}
	if f.Changed("name") {
		cfg.Tracker.Name, _ = f.GetString("name")
	}
	if f.Changed("format") {
		cfg.Tracker.Format, _ = f.GetString("format")
	}
	if f.Changed("guarded") {
		cfg.Tracker.Guarded, _ = f.GetBool("guarded")
	}
	if f.Changed("detached") {
		cfg.Tracker.DetachedCallbacks, _ = f.GetBool("detached")
		if cfg.Tracker.DetachedCallbacks {
			cfg.Tracker.Guarded = true
		}
	}
	if f.Changed("workers") {
		cfg.Tracker.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("total") {
		cfg.Tracker.Total, _ = f.GetInt64("total")
	}
	if f.Changed("follow") {
		cfg.Source.Follow, _ = f.GetBool("follow")
	}
	if f.Changed("poll-interval") {
		cfg.Source.PollInterval, _ = f.GetDuration("poll-interval")
	}
	if f.Changed("listen") {
		cfg.Status.Listen, _ = f.GetString("listen")
	}
	if f.Changed("log-dir") {
		cfg.Logging.LogDir, _ = f.GetString("log-dir")
	}
	if f.Changed("log-level") {
		cfg.Logging.Level, _ = f.GetString("log-level")
	}
	if f.Changed("json") {
		cfg.Logging.JSON, _ = f.GetBool("json")
	}

	return cfg.Validate()
}
