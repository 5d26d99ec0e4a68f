// Package alerting delivers monitoring alerts to chat channels.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/logging"
)

// Notification is one monitoring alert ready for delivery.
type Notification struct {
	CheckedAt   time.Time
	PeriodStart string
	PeriodEnd   string
	Type        string
	Severity    string
	Message     string
	Details     json.RawMessage
	// Funnel carries the headline numbers of the check for context.
	Funnel map[string]float64
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// LogNotifier only logs. It stands in when no channel is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logging.Component(logger, "alert_log")}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Warn().
		Str("type", note.Type).
		Str("severity", note.Severity).
		Str("message", note.Message).
		Msg("monitoring alert")
	return nil
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logging.Component(logger, "alert_telegram"),
	}
}

// Notify calls sendMessage with the rendered alert.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false: %s", result.Description)
		}
	}

	n.logger.Info().
		Str("type", note.Type).
		Str("severity", note.Severity).
		Msg("alert sent (telegram)")
	return nil
}

// RenderMessage formats a notification as plain text.
func RenderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[%s] %s\n", strings.ToUpper(note.Severity), note.Type))
	builder.WriteString(note.Message)
	builder.WriteString("\n")
	if note.PeriodStart != "" || note.PeriodEnd != "" {
		builder.WriteString(fmt.Sprintf("Period: %s -> %s\n", note.PeriodStart, note.PeriodEnd))
	}
	if !note.CheckedAt.IsZero() {
		builder.WriteString(fmt.Sprintf("Checked: %s UTC\n", note.CheckedAt.UTC().Format(time.RFC3339)))
	}
	if len(note.Funnel) > 0 {
		keys := make([]string, 0, len(note.Funnel))
		for k := range note.Funnel {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			builder.WriteString(fmt.Sprintf("%s: %g\n", k, note.Funnel[k]))
		}
	}
	if len(note.Details) > 0 && string(note.Details) != "null" {
		var compact bytes.Buffer
		if err := json.Compact(&compact, note.Details); err == nil {
			builder.WriteString("Details: ")
			builder.Write(compact.Bytes())
			builder.WriteString("\n")
		}
	}
	return builder.String()
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
