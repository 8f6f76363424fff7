package wizard

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yourusername/milemarker/internal/config"
)

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.FileName)

	// 1. Create Config
	err := SaveConfig(path, Answers{
		Name:      "load records.ndj",
		BatchSize: 50000,
		Format:    "structured",
		Workers:   4,
		Notifications: config.NotificationConfig{
			Enabled:        true,
			WebhookURL:     "https://discord.example/hook",
			DigestInterval: 30 * time.Minute,
		},
	})
	if err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	// 2. Load it back through the real loader
	cfg, _, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("Generated config does not load: %v", err)
	}

	// 3. Assert Content
	if cfg.Tracker.Name != "load records.ndj" || cfg.Tracker.BatchSize != 50000 || cfg.Tracker.Format != "structured" {
		t.Errorf("unexpected tracker section: %+v", cfg.Tracker)
	}
	if cfg.Tracker.Workers != 4 || !cfg.Tracker.Guarded {
		t.Errorf("expected 4 guarded workers, got %+v", cfg.Tracker)
	}
	if !cfg.Notifications.Enabled || cfg.Notifications.WebhookURL != "https://discord.example/hook" {
		t.Errorf("unexpected notifications: %+v", cfg.Notifications)
	}
	if cfg.Notifications.DigestInterval != 30*time.Minute {
		t.Errorf("expected 30m digest, got %v", cfg.Notifications.DigestInterval)
	}

	// 4. Test Backup Logic
	if err := SaveConfig(path, Answers{BatchSize: 1, Format: "human", Workers: 1}); err != nil {
		t.Fatalf("Failed to overwrite config: %v", err)
	}
	if _, err := os.Stat(path + ".bak"); os.IsNotExist(err) {
		t.Error("Backup file was not created on overwrite")
	}
}

func TestWizard_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.FileName)
	var out bytes.Buffer

	// name, batch size, format, workers, notifications
	w := &Wizard{In: strings.NewReader("\n\n\n\n\n"), Out: &out}
	if err := w.Run(path); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	cfg, _, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("Generated config does not load: %v", err)
	}
	if cfg.Tracker.BatchSize != 1000 || cfg.Tracker.Format != "human" || cfg.Tracker.Workers != 1 {
		t.Errorf("expected defaults, got %+v", cfg.Tracker)
	}
	if cfg.Notifications.Enabled {
		t.Error("notifications should stay off")
	}
	if !strings.Contains(out.String(), "written") {
		t.Errorf("expected success message, got:\n%s", out.String())
	}
}

func TestWizard_RetriesInvalidAnswers(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.FileName)

	input := strings.Join([]string{
		"etl",
		"abc", "-5", "250", // batch size
		"xml", "Structured", // format
		"0", "2", // workers
		"n",
	}, "\n") + "\n"

	w := &Wizard{In: strings.NewReader(input), Out: &bytes.Buffer{}}
	if err := w.Run(path); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	cfg, _, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("Generated config does not load: %v", err)
	}
	if cfg.Tracker.Name != "etl" || cfg.Tracker.BatchSize != 250 || cfg.Tracker.Format != "structured" || cfg.Tracker.Workers != 2 {
		t.Errorf("unexpected tracker section: %+v", cfg.Tracker)
	}
}

func TestWizard_WebhookTested(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), config.FileName)
	input := strings.Join([]string{
		"", "", "", "",
		"y", "1", srv.URL, // webhook
		"y",   // insistent ping
		"45m", // digest
	}, "\n") + "\n"

	w := &Wizard{In: strings.NewReader(input), Out: &bytes.Buffer{}}
	if err := w.Run(path); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected one test message, got %d", hits.Load())
	}

	cfg, _, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("Generated config does not load: %v", err)
	}
	nc := cfg.Notifications
	if !nc.Enabled || nc.WebhookURL != srv.URL || !nc.InsistentPing || nc.DigestInterval != 45*time.Minute {
		t.Errorf("unexpected notifications: %+v", nc)
	}
}

func TestWizard_FailedTestNotSaved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), config.FileName)
	input := strings.Join([]string{"", "", "", "", "y", "1", srv.URL, "n", "", "n"}, "\n") + "\n"

	w := &Wizard{In: strings.NewReader(input), Out: &bytes.Buffer{}}
	if err := w.Run(path); err == nil {
		t.Fatal("expected an error when the test fails and the user declines")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("config should not be written")
	}
}

func TestWizard_TelegramChatDetection(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			w.Write([]byte(`{"ok":true,"result":[{"message":{"chat":{"id":424242}}}]}`))
		default:
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer api.Close()

	chatID, err := (&Wizard{TelegramAPI: api.URL, PollAttempts: 1, PollDelay: time.Millisecond, Out: &bytes.Buffer{}}).
		pollTelegramChatID("token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chatID != "424242" {
		t.Errorf("expected 424242, got %s", chatID)
	}
}

func TestWizard_TelegramChatTimeout(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"result":[]}`))
	}))
	defer api.Close()

	_, err := (&Wizard{TelegramAPI: api.URL, PollAttempts: 2, PollDelay: time.Millisecond, Out: &bytes.Buffer{}}).
		pollTelegramChatID("token")
	if err == nil {
		t.Error("expected timeout")
	}
}
