package notifications

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramNotifier delivers alerts through the Telegram bot API.
type TelegramNotifier struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		apiBase: telegramAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SendAlert posts the message to the configured chat. Markdown parse
// mode, level rendered as a leading emoji.
func (t *TelegramNotifier) SendAlert(level, message string) error {
	emoji := "ℹ️"
	switch level {
	case LevelWarning:
		emoji = "⚠️"
	case LevelError:
		emoji = "🚨"
	case LevelSuccess:
		emoji = "✅"
	}

	text := fmt.Sprintf("%s *Trading Bot Alert*\n\n%s", emoji, message)
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)

	data := url.Values{}
	data.Set("chat_id", t.chatID)
	data.Set("text", text)
	data.Set("parse_mode", "Markdown")

	resp, err := t.client.Post(apiURL, "application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
