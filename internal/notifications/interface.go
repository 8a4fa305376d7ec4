// Package notifications pushes operator alerts out of band. The engine
// treats delivery as best effort: a failed alert is logged, never fatal.
package notifications

import "github.com/earthskyorg/bybit-trading-bot/internal/config"

// Alert levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notifier delivers an operator alert.
type Notifier interface {
	SendAlert(level, message string) error
}

// Noop discards every alert. Used when notifications are disabled.
type Noop struct{}

func (Noop) SendAlert(level, message string) error { return nil }

// NewFromConfig picks the notifier the config asks for.
func NewFromConfig(cfg config.NotificationConfig) Notifier {
	if !cfg.Enabled || cfg.TelegramToken == "" || cfg.TelegramChat == "" {
		return Noop{}
	}
	return NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChat)
}
