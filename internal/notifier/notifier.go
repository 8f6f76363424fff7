package notifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/yourusername/milemarker/internal/config"
	"github.com/yourusername/milemarker/internal/numfmt"
	"github.com/yourusername/milemarker/internal/tracker"
)

type Notifier struct {
	Config config.NotificationConfig
	Client *http.Client
}

func New(cfg config.NotificationConfig) *Notifier {
	return &Notifier{
		Config: cfg,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Discord Payload Structure
type discordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color"` // Decimal color code
	Footer      *footer `json:"footer,omitempty"`
	Fields      []field `json:"fields,omitempty"`
}

type footer struct {
	Text string `json:"text"`
}

type field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

const (
	ColorSuccess = 5763719  // Green
	ColorError   = 15548997 // Red
	ColorInfo    = 3447003  // Blue
)

// Telegram Payload
type telegramPayload struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Active reports whether any provider is configured.
func (n *Notifier) Active() bool {
	return n.Config.Enabled && (n.Config.WebhookURL != "" || n.Config.TelegramToken != "")
}

func (n *Notifier) sendWebhook(payload discordPayload) error {
	if n.Config.WebhookURL == "" {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", n.Config.WebhookURL, bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook failed: %d", resp.StatusCode)
	}
	return nil
}

func (n *Notifier) sendTelegram(text string) error {
	if n.Config.TelegramToken == "" || n.Config.TelegramChatID == "" {
		return nil
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.Config.TelegramToken)
	payload := telegramPayload{
		ChatID:    n.Config.TelegramChatID,
		Text:      text,
		ParseMode: "HTML",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("telegram failed: %d", resp.StatusCode)
	}
	return nil
}

// SendFinished reports the end of a run. runErr, if set, turns the message
// into a failure report; the counts are still included.
func (n *Notifier) SendFinished(runID string, sum tracker.Summary, runErr error) error {
	if !n.Active() {
		return nil
	}
	run := sum.Run
	var errs []error

	// 1. Discord/Slack Webhook
	if n.Config.WebhookURL != "" {
		content := ""
		if n.Config.InsistentPing {
			content = "@everyone 🏁 Run finished!"
		}
		embed := discordEmbed{
			Title: "✅ Run Finished",
			Color: ColorSuccess,
			Fields: []field{
				{Name: "Name", Value: displayName(run.Name), Inline: true},
				{Name: "Records", Value: numfmt.Int(run.Count, 0), Inline: true},
				{Name: "Elapsed", Value: numfmt.Duration(run.TotalElapsed), Inline: true},
				{Name: "Rate", Value: run.TotalRateString(0) + " r/s", Inline: true},
				{Name: "Trailing batch", Value: numfmt.Int(sum.Partial.LastBatchSize, 0), Inline: true},
			},
			Footer: &footer{Text: "milemarker • " + runID},
		}
		if runErr != nil {
			embed.Title = "❌ Run Stopped"
			embed.Color = ColorError
			embed.Description = runErr.Error()
		}
		if err := n.sendWebhook(discordPayload{Content: content, Embeds: []discordEmbed{embed}}); err != nil {
			errs = append(errs, err)
		}
	}

	// 2. Telegram
	if n.Config.TelegramToken != "" {
		title := "🏁 Run Finished"
		if runErr != nil {
			title = "❌ Run Stopped"
		}
		msg := fmt.Sprintf("<b>%s</b>\n\n<b>Name:</b> %s\n<b>Records:</b> %s\n<b>Elapsed:</b> %s\n<b>Rate:</b> %s r/s\n<b>Run:</b> <code>%s</code>",
			title, displayName(run.Name), numfmt.Int(run.Count, 0), numfmt.Duration(run.TotalElapsed), run.TotalRateString(0), runID)
		if runErr != nil {
			msg += fmt.Sprintf("\n<b>Error:</b> %s", runErr)
		}
		if n.Config.InsistentPing {
			msg = "🚨 <b>ATTENTION!</b> 🚨\n\n" + msg
		}
		if err := n.sendTelegram(msg); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %w", errors.Join(errs...))
	}
	return nil
}

// SendDigest reports progress of a run that is still going.
func (n *Notifier) SendDigest(runID string, snap tracker.Snapshot) error {
	if !n.Active() {
		return nil
	}
	var errs []error

	// Discord
	if n.Config.WebhookURL != "" {
		embed := discordEmbed{
			Title: "📊 Progress Digest",
			Color: ColorInfo,
			Fields: []field{
				{Name: "Name", Value: displayName(snap.Name), Inline: true},
				{Name: "Records", Value: numfmt.Int(snap.Count, 0), Inline: true},
				{Name: "Batches", Value: numfmt.Int(snap.BatchNumber, 0), Inline: true},
				{Name: "Uptime", Value: numfmt.Duration(snap.TotalElapsed), Inline: true},
				{Name: "Batch Rate", Value: snap.BatchRateString(0) + " r/s", Inline: true},
				{Name: "Overall Rate", Value: snap.TotalRateString(0) + " r/s", Inline: true},
			},
			Footer: &footer{Text: "milemarker • " + runID},
		}
		if err := n.sendWebhook(discordPayload{Embeds: []discordEmbed{embed}}); err != nil {
			errs = append(errs, err)
		}
	}

	// Telegram
	if n.Config.TelegramToken != "" {
		msg := fmt.Sprintf("<b>📊 Progress Digest</b>\n\n🏷 <b>Name:</b> %s\n🔢 <b>Records:</b> %s\n🕒 <b>Uptime:</b> %s\n⚡ <b>Rate:</b> %s r/s",
			displayName(snap.Name), numfmt.Int(snap.Count, 0), numfmt.Duration(snap.TotalElapsed), snap.TotalRateString(0))
		if err := n.sendTelegram(msg); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("digest errors: %w", errors.Join(errs...))
	}
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}
