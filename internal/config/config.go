package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yourusername/milemarker/internal/logger"
	"github.com/yourusername/milemarker/internal/tracker"
)

// EnvPrefix is prepended to every environment override, e.g.
// MILEMARKER_TRACKER_BATCH_SIZE.
const EnvPrefix = "MILEMARKER_"

// FileName is the config file looked up in the standard locations.
const FileName = "milemarker.yaml"

// Config represents the top-level configuration for a milemarker run.
// It maps directly to the YAML configuration file; every field can also be
// set from the environment.
type Config struct {
	// Tracker controls batching and output format.
	Tracker TrackerConfig `yaml:"tracker" envPrefix:"TRACKER_"`

	// Source controls how inputs are read.
	Source SourceConfig `yaml:"source" envPrefix:"SOURCE_"`

	// Logging configures the output verbosity and storage location.
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOGGING_"`

	// Status configures the optional HTTP progress endpoint.
	Status StatusConfig `yaml:"status" envPrefix:"STATUS_"`

	// Notifications handles external alerts (e.g., Discord/Slack webhook).
	Notifications NotificationConfig `yaml:"notifications" envPrefix:"NOTIFY_"`

	// Sentry configures error reporting.
	Sentry SentryConfig `yaml:"sentry" envPrefix:"SENTRY_"`
}

// TrackerConfig defines how units are batched and reported.
type TrackerConfig struct {
	BatchSize         int64  `yaml:"batch_size" env:"BATCH_SIZE"`
	Name              string `yaml:"name" env:"NAME"`
	Format            string `yaml:"format" env:"FORMAT"`                         // "human" or "structured".
	Guarded           bool   `yaml:"guarded" env:"GUARDED"`                       // Serialize access for concurrent producers.
	DetachedCallbacks bool   `yaml:"detached_callbacks" env:"DETACHED_CALLBACKS"` // Run batch callbacks outside the lock.
	Workers           int    `yaml:"workers" env:"WORKERS"`                       // Sources read concurrently.
	Total             int64  `yaml:"total" env:"TOTAL"`                           // Expected units, for the dashboard progress bar. 0 = unknown.
}

// SourceConfig governs input reading.
type SourceConfig struct {
	Follow       bool          `yaml:"follow" env:"FOLLOW"`               // Keep reading growing files until interrupted.
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"` // Fallback when fsnotify events are unavailable.
}

// LoggingConfig configures the application logs.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`     // e.g., "INFO", "DEBUG".
	LogDir string `yaml:"log_dir" env:"LOG_DIR"` // Directory to store log files (e.g., "logs").
	JSON   bool   `yaml:"json" env:"JSON"`       // Write JSON lines to stdout instead of the console/file logger.
}

// StatusConfig configures the HTTP status server.
type StatusConfig struct {
	Listen string `yaml:"listen" env:"LISTEN"` // e.g., ":8080". Empty = disabled.
}

// NotificationConfig holds settings for alerting the user when a run ends.
type NotificationConfig struct {
	Enabled        bool          `yaml:"enabled" env:"ENABLED"`
	WebhookURL     string        `yaml:"webhook_url" env:"WEBHOOK_URL"` // Generic Webhook (Discord/Slack compatible)
	TelegramToken  string        `yaml:"telegram_token" env:"TELEGRAM_TOKEN"`
	TelegramChatID string        `yaml:"telegram_chat_id" env:"TELEGRAM_CHAT_ID"`
	InsistentPing  bool          `yaml:"insistent_ping" env:"INSISTENT_PING"`   // If true, adds @everyone to the finish message.
	DigestInterval time.Duration `yaml:"digest_interval" env:"DIGEST_INTERVAL"` // e.g., "1h". 0 = disabled.
}

// SentryConfig configures error reporting. An empty DSN falls back to the
// SENTRY_DSN environment variable read by the SDK itself.
type SentryConfig struct {
	DSN         string `yaml:"dsn" env:"DSN"`
	Environment string `yaml:"environment" env:"ENVIRONMENT"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	var cfg Config
	cfg.Tracker.BatchSize = tracker.DefaultBatchSize
	cfg.Tracker.Format = "human"
	cfg.Tracker.Workers = 1
	cfg.Source.PollInterval = time.Second
	cfg.Logging.Level = "INFO"
	cfg.Logging.LogDir = "logs"
	return &cfg
}

// LoadConfig attempts to locate and parse the YAML configuration file, then
// applies .env and environment overrides.
// Prioritizes 'path' argument -> MILEMARKER_CONFIG env var -> standard file locations.
// A missing file is not an error unless path was given explicitly.
// Returns the parsed Config struct, the path of the loaded file ("" if none), or an error.
func LoadConfig(path string) (*Config, string, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	loadPath := path
	if loadPath == "" {
		loadPath = findConfig()
	}

	if loadPath != "" {
		// Convert to absolute path for clarity in logs.
		if abs, err := filepath.Abs(loadPath); err == nil {
			loadPath = abs
		}

		data, err := os.ReadFile(loadPath)
		if err != nil {
			return nil, loadPath, fmt.Errorf("error reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, loadPath, fmt.Errorf("error parsing yaml: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, loadPath, fmt.Errorf("error parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, loadPath, err
	}
	return cfg, loadPath, nil
}

// Validate rejects settings the tracker cannot run with and clamps the rest
// into range.
func (c *Config) Validate() error {
	if c.Tracker.BatchSize <= 0 {
		return fmt.Errorf("%w: tracker.batch_size must be positive (got %d)", tracker.ErrConfiguration, c.Tracker.BatchSize)
	}
	if _, err := tracker.FormatterByName(c.Tracker.Format); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", tracker.ErrConfiguration, err)
	}
	if c.Tracker.Total < 0 {
		return fmt.Errorf("%w: tracker.total must not be negative (got %d)", tracker.ErrConfiguration, c.Tracker.Total)
	}

	// Concurrency
	if c.Tracker.Workers < 1 {
		c.Tracker.Workers = 1
	}
	if c.Tracker.Workers > 1 {
		c.Tracker.Guarded = true
	}
	if c.Tracker.DetachedCallbacks && !c.Tracker.Guarded {
		return fmt.Errorf("%w: tracker.detached_callbacks requires tracker.guarded", tracker.ErrConfiguration)
	}

	const minPollInterval = 10 * time.Millisecond
	if c.Source.PollInterval < minPollInterval {
		c.Source.PollInterval = minPollInterval
	}
	if c.Notifications.DigestInterval < 0 {
		c.Notifications.DigestInterval = 0
	}
	return nil
}

// findConfig searches for 'milemarker.yaml' in an ordered list of standard locations.
func findConfig() string {
	// 1. Environment Variable
	if env := os.Getenv(EnvPrefix + "CONFIG"); env != "" {
		return env
	}
	// 2. Current Working Directory
	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}
	// 3. User Config Directory (~/.config/milemarker/)
	usr, err := user.Current()
	if err == nil {
		p := filepath.Join(usr.HomeDir, ".config", "milemarker", FileName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	// 4. System Config Directory
	if _, err := os.Stat(filepath.Join("/etc/milemarker", FileName)); err == nil {
		return filepath.Join("/etc/milemarker", FileName)
	}
	return ""
}
