package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"QuoteWatch/internal/model"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	APIBase  string
	Enabled  bool
	Client   *http.Client

	log     zerolog.Logger
	backoff time.Duration
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string, logger zerolog.Logger) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		APIBase:  telegramAPI,
		Enabled:  botToken != "" && chatID != "",
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		log:     logger.With().Str("component", "telegram").Logger(),
		backoff: time.Second,
	}
}

// Send implements Sink. recipient overrides the configured chat when set.
func (t *TelegramNotifier) Send(ctx context.Context, recipient, subject, bodyHTML string) error {
	if !t.Enabled {
		return nil
	}
	chat := t.ChatID
	if recipient != "" && !strings.Contains(recipient, "@") {
		chat = recipient
	}
	text := toTelegramHTML(bodyHTML)
	if subject != "" {
		text = "<b>" + html.EscapeString(subject) + "</b>\n" + text
	}
	return t.SendText(ctx, chat, text)
}

// SendText posts an already formatted message to chat.
func (t *TelegramNotifier) SendText(ctx context.Context, chat, text string) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.APIBase, t.BotToken)
	payload := map[string]string{
		"chat_id":    chat,
		"text":       text,
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: telegram send: %v", model.ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: telegram API error: status %d, body: %s", model.ErrFetch, resp.StatusCode, string(respBody))
	}
	return nil
}

// SendWithRetry sends text to the configured chat, doubling the wait after
// each failed attempt.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	if !t.Enabled {
		return nil
	}
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := t.SendText(ctx, t.ChatID, text)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == maxRetries {
			break
		}
		backoff := t.backoff << uint(i)
		t.log.Warn().Err(err).Int("attempt", i+1).Int("of", maxRetries+1).
			Dur("backoff", backoff).Msg("telegram send failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", maxRetries+1, lastErr)
}

var (
	blockTag = regexp.MustCompile(`(?i)</(p|h[1-6]|tr|div)>|<br\s*/?>`)
	anyTag   = regexp.MustCompile(`<(/?)([a-zA-Z0-9]+)[^>]*>`)
	blankRun = regexp.MustCompile(`\n{3,}`)
)

// toTelegramHTML reduces mail HTML to the subset Telegram accepts: block
// ends become newlines and only b, i and code survive.
func toTelegramHTML(s string) string {
	s = blockTag.ReplaceAllString(s, "\n")
	s = strings.ReplaceAll(s, "</td><td>", ": ")
	s = anyTag.ReplaceAllStringFunc(s, func(tag string) string {
		m := anyTag.FindStringSubmatch(tag)
		switch strings.ToLower(m[2]) {
		case "b", "i", "code":
			return "<" + m[1] + strings.ToLower(m[2]) + ">"
		}
		return ""
	})
	s = blankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
