package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Issue names a symbol that did not make it into the output and why.
type Issue struct {
	Symbol string
	Reason string
}

// Notification summarises a finished batch.
type Notification struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Processed  int
	Skipped    []Issue
	Failed     []Issue
}

// Notifier delivers batch summaries.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier posts summaries through the Telegram Bot API.
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
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify sends the rendered summary with sendMessage.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
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
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Int("processed", note.Processed).
		Int("skipped", len(note.Skipped)).
		Int("failed", len(note.Failed)).
		Msg("batch summary sent (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Fundamentals Merge]\n")
	builder.WriteString(fmt.Sprintf("Finished: %s UTC (%s)\n", note.FinishedAt.UTC().Format(time.RFC3339), note.FinishedAt.Sub(note.StartedAt).Round(time.Second)))
	builder.WriteString(fmt.Sprintf("Merged: %d\n", note.Processed))
	writeIssues(&builder, "Skipped", note.Skipped)
	writeIssues(&builder, "Failed", note.Failed)
	return builder.String()
}

func writeIssues(b *strings.Builder, title string, issues []Issue) {
	if len(issues) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("%s: %d\n", title, len(issues)))
	for _, issue := range issues {
		b.WriteString(fmt.Sprintf("- %s: %s\n", issue.Symbol, issue.Reason))
	}
}

var _ Notifier = (*TelegramNotifier)(nil)
