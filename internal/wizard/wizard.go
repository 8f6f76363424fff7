// Package wizard implements "milemarker init": an interactive prompt that
// writes a starter milemarker.yaml.
package wizard

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/yourusername/milemarker/internal/config"
	"github.com/yourusername/milemarker/internal/logger"
	"github.com/yourusername/milemarker/internal/notifier"
	"github.com/yourusername/milemarker/internal/tracker"
)

// Answers holds everything the wizard asks for.
type Answers struct {
	Name          string
	BatchSize     int64
	Format        string
	Workers       int
	Notifications config.NotificationConfig
}

// Wizard reads answers from In and writes prompts to Out.
type Wizard struct {
	In  io.Reader
	Out io.Writer
	Log *logger.Logger

	// TelegramAPI is the Bot API base URL. Default: https://api.telegram.org.
	TelegramAPI string
	// PollAttempts bounds chat ID detection. Default: 6, three seconds apart.
	PollAttempts int
	PollDelay    time.Duration

	// Notifier builds the client used for the test message. Default: notifier.New.
	Notifier func(config.NotificationConfig) *notifier.Notifier

	reader *bufio.Reader
}

// Run asks the questions, sends a test notification when one is configured,
// and writes the config to path. An existing file is moved to path+".bak".
func (w *Wizard) Run(path string) error {
	w.defaults()

	w.Log.Section("🧭 milemarker setup")
	fmt.Fprintln(w.Out, "This wizard writes a "+config.FileName+" with your batch and alert settings.")
	fmt.Fprintln(w.Out)

	var a Answers
	a.Name = w.ask("👉 Job name, printed on every line (optional): ", "")

	for {
		raw := w.ask(fmt.Sprintf("👉 Batch size (default %d): ", tracker.DefaultBatchSize), strconv.FormatInt(tracker.DefaultBatchSize, 10))
		n, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && n > 0 {
			a.BatchSize = n
			break
		}
		w.Log.Error("WIZARD", "Batch size must be a positive whole number.")
	}

	for {
		a.Format = strings.ToLower(w.ask("👉 Output format, human or structured (default human): ", "human"))
		if _, err := tracker.FormatterByName(a.Format); err == nil {
			break
		}
		w.Log.Error("WIZARD", "Choose human or structured.")
	}

	for {
		raw := w.ask("👉 Files to read in parallel (default 1): ", "1")
		n, err := strconv.Atoi(raw)
		if err == nil && n > 0 {
			a.Workers = n
			break
		}
		w.Log.Error("WIZARD", "Workers must be at least 1.")
	}

	fmt.Fprintln(w.Out, "\n--- Notifications ---")
	if strings.ToLower(w.ask("👉 Send a message when a run finishes? (y/N): ", "n")) == "y" {
		if err := w.askNotifications(&a.Notifications); err != nil {
			return err
		}
	}

	if err := SaveConfig(path, a); err != nil {
		w.Log.Error("WIZARD", fmt.Sprintf("Failed to save config: %v", err))
		return err
	}
	w.Log.Success("WIZARD", fmt.Sprintf("✅ %s written", path))
	return nil
}

func (w *Wizard) defaults() {
	if w.In == nil {
		w.In = os.Stdin
	}
	if w.Out == nil {
		w.Out = os.Stdout
	}
	if w.Log == nil {
		w.Log = logger.NewWriters(w.Out, nil)
	}
	if w.TelegramAPI == "" {
		w.TelegramAPI = "https://api.telegram.org"
	}
	if w.PollAttempts <= 0 {
		w.PollAttempts = 6
	}
	if w.PollDelay <= 0 {
		w.PollDelay = 3 * time.Second
	}
	if w.Notifier == nil {
		w.Notifier = notifier.New
	}
	w.reader = bufio.NewReader(w.In)
}

// ask prints prompt and returns the trimmed answer, or def when it is empty.
func (w *Wizard) ask(prompt, def string) string {
	fmt.Fprint(w.Out, prompt)
	line, _ := w.reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func (w *Wizard) askNotifications(nc *config.NotificationConfig) error {
	fmt.Fprintln(w.Out, "Select your platform:")
	fmt.Fprintln(w.Out, "1. Discord / Slack")
	fmt.Fprintln(w.Out, "2. Telegram")

	switch w.ask("Enter choice (1/2): ", "") {
	case "1":
		fmt.Fprintln(w.Out, "\n--- Discord/Slack Setup ---")
		fmt.Fprintln(w.Out, "1. Go to Server Settings -> Integrations -> Webhooks (Discord)")
		fmt.Fprintln(w.Out, "   OR Create an Incoming Webhook (Slack)")
		fmt.Fprintln(w.Out, "2. Copy the URL.")
		nc.WebhookURL = w.ask("👉 Paste the Webhook URL: ", "")
	case "2":
		fmt.Fprintln(w.Out, "\n--- Telegram Setup ---")
		fmt.Fprintln(w.Out, "1. Open Telegram and search for @BotFather")
		fmt.Fprintln(w.Out, "2. Create a new bot with /newbot")
		fmt.Fprintln(w.Out, "3. Copy the HTTP API Token.")
		nc.TelegramToken = w.ask("👉 Paste Bot Token: ", "")
		if nc.TelegramToken == "" {
			w.Log.Error("WIZARD", "Token required.")
			return fmt.Errorf("telegram token required")
		}

		fmt.Fprintln(w.Out, "\n⏳ Identifying Chat ID...")
		fmt.Fprintln(w.Out, "👉 Please send a message (e.g. /start) to your bot in Telegram NOW.")
		chatID, err := w.pollTelegramChatID(nc.TelegramToken)
		if err != nil {
			w.Log.Error("WIZARD", fmt.Sprintf("Failed to detect Chat ID: %v", err))
			nc.TelegramChatID = w.ask("Enter Chat ID (optional, press enter to skip): ", "")
		} else {
			nc.TelegramChatID = chatID
			w.Log.Success("WIZARD", fmt.Sprintf("✅ Detected Chat ID: %s", chatID))
		}
	default:
		w.Log.Error("WIZARD", "Invalid choice.")
		return fmt.Errorf("invalid notification choice")
	}

	nc.Enabled = true
	nc.InsistentPing = strings.ToLower(w.ask("👉 Ping @everyone when a run finishes? (y/N): ", "n")) == "y"
	if raw := w.ask("👉 Progress digest interval, e.g. 30m (empty = off): ", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			w.Log.Warn("WIZARD", fmt.Sprintf("Ignoring digest interval %q", raw))
		} else {
			nc.DigestInterval = d
		}
	}

	fmt.Fprintln(w.Out, "\nTesting connection...")
	if err := w.Notifier(*nc).SendDigest("setup-test", tracker.Snapshot{Name: "milemarker setup"}); err != nil {
		w.Log.Error("WIZARD", fmt.Sprintf("❌ Test failed: %v", err))
		if strings.ToLower(w.ask("Save anyway? (y/n): ", "n")) != "y" {
			return fmt.Errorf("notification test failed: %w", err)
		}
	} else {
		w.Log.Success("WIZARD", "✅ Test message sent!")
	}
	return nil
}

func (w *Wizard) pollTelegramChatID(token string) (string, error) {
	url := fmt.Sprintf("%s/bot%s/getUpdates", w.TelegramAPI, token)
	client := http.Client{Timeout: 5 * time.Second}

	for i := 0; i < w.PollAttempts; i++ {
		resp, err := client.Get(url)
		if err == nil {
			var result struct {
				Ok     bool `json:"ok"`
				Result []struct {
					Message struct {
						Chat struct {
							ID int64 `json:"id"`
						} `json:"chat"`
					} `json:"message"`
				} `json:"result"`
			}
			decodeErr := json.NewDecoder(resp.Body).Decode(&result)
			resp.Body.Close()
			if decodeErr == nil && result.Ok && len(result.Result) > 0 {
				return strconv.FormatInt(result.Result[0].Message.Chat.ID, 10), nil
			}
		}
		time.Sleep(w.PollDelay)
		fmt.Fprint(w.Out, ".")
	}
	return "", fmt.Errorf("timeout waiting for message")
}

const configTemplate = `tracker:
  name: {{printf "%q" .Name}}
  batch_size: {{.BatchSize}}
  format: "{{.Format}}"
  workers: {{.Workers}}
  guarded: {{gt .Workers 1}}

source:
  follow: false
  poll_interval: 1s

logging:
  level: "INFO"
  log_dir: "logs"
  json: false

status:
  listen: ""

notifications:
  enabled: {{.Notifications.Enabled}}
  webhook_url: "{{.Notifications.WebhookURL}}"
  telegram_token: "{{.Notifications.TelegramToken}}"
  telegram_chat_id: "{{.Notifications.TelegramChatID}}"
  insistent_ping: {{.Notifications.InsistentPing}}
  digest_interval: {{.Notifications.DigestInterval}}
`

var configTmpl = template.Must(template.New("config").Parse(configTemplate))

// SaveConfig renders a into path, moving an existing file to path+".bak".
func SaveConfig(path string, a Answers) error {
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".bak"); err != nil {
			return fmt.Errorf("backup %s: %w", path, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return configTmpl.Execute(f, a)
}
