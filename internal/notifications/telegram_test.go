package notifications

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earthskyorg/bybit-trading-bot/internal/config"
)

func TestTelegramNotifier_SendAlert(t *testing.T) {
	var gotPath, gotChat, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotChat = r.FormValue("chat_id")
		gotText = r.FormValue("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewTelegramNotifier("token123", "chat456")
	n.apiBase = server.URL

	require.NoError(t, n.SendAlert(LevelError, "position flattened"))

	assert.Equal(t, "/bottoken123/sendMessage", gotPath)
	assert.Equal(t, "chat456", gotChat)
	assert.Contains(t, gotText, "🚨")
	assert.Contains(t, gotText, "position flattened")
}

func TestTelegramNotifier_SendAlertNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	n := NewTelegramNotifier("token", "chat")
	n.apiBase = server.URL

	err := n.SendAlert(LevelInfo, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestNewFromConfig(t *testing.T) {
	n := NewFromConfig(config.NotificationConfig{Enabled: false})
	assert.IsType(t, Noop{}, n)

	n = NewFromConfig(config.NotificationConfig{Enabled: true})
	assert.IsType(t, Noop{}, n, "enabled without credentials falls back to noop")

	n = NewFromConfig(config.NotificationConfig{
		Enabled:       true,
		TelegramToken: "t",
		TelegramChat:  "c",
	})
	assert.IsType(t, &TelegramNotifier{}, n)
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.SendAlert(LevelWarning, "ignored"))
}
