package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalJSON = `{
	"strategy": {"name": "triple_ema"},
	"trading": {"symbols": ["BTCUSDT", "ETHUSDT"]}
}`

func TestLoad_JSONWithDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "bot.json", minimalJSON))
	require.NoError(t, err)

	assert.Equal(t, "triple_ema", cfg.Strategy.Name)
	assert.Equal(t, "5", cfg.Strategy.Interval)
	assert.Equal(t, 200, cfg.Strategy.WindowSize)
	assert.Equal(t, 1, cfg.Trading.Leverage)
	assert.Equal(t, 0.02, cfg.Trading.OrderRisk)
	assert.Equal(t, 0.6, cfg.Trading.ConfidenceThreshold)
	assert.Equal(t, time.Minute, cfg.Trading.SignalInterval.Std())
	assert.Equal(t, 30*time.Second, cfg.Trading.MonitoringInterval.Std())
	assert.Equal(t, 0.1, cfg.Risk.MaxPositionSize)
	assert.Equal(t, 10, cfg.Risk.MaxPositions)
	assert.Equal(t, 9090, cfg.Monitoring.MetricsPort)
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "bot.yaml", `
strategy:
  name: stoch_rsi_macd
  interval: "60"
trading:
  symbols: [BTCUSDT]
  signal_interval: 2m
  dry_run: true
risk:
  max_positions: 3
`))
	require.NoError(t, err)

	assert.Equal(t, "stoch_rsi_macd", cfg.Strategy.Name)
	assert.Equal(t, "60", cfg.Strategy.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Trading.SignalInterval.Std())
	assert.True(t, cfg.Trading.DryRun)
	assert.Equal(t, 3, cfg.Risk.MaxPositions)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, boterrors.IsConfigurationError(err))
}

func TestLoad_DurationRejectsGarbage(t *testing.T) {
	_, err := Load(writeConfig(t, "bot.json",
		`{"strategy": {"name": "triple_ema"}, "trading": {"symbols": ["BTCUSDT"], "signal_interval": "soon"}}`))
	require.Error(t, err)
	assert.True(t, boterrors.IsConfigurationError(err))
}

func TestValidate_Failures(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.Strategy.Name = "triple_ema"
		cfg.Trading.Symbols = []string{"BTCUSDT"}
		cfg.setDefaults()
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown strategy", func(c *Config) { c.Strategy.Name = "martingale" }},
		{"no symbols", func(c *Config) { c.Trading.Symbols = nil; c.Trading.TradeAll = false }},
		{"leverage too high", func(c *Config) { c.Trading.Leverage = 200 }},
		{"order risk above one", func(c *Config) { c.Trading.OrderRisk = 1.5 }},
		{"threshold above one", func(c *Config) { c.Trading.ConfidenceThreshold = 1.2 }},
		{"sub-second signal interval", func(c *Config) { c.Trading.SignalInterval = Duration(100 * time.Millisecond) }},
		{"bad risk fraction", func(c *Config) { c.Risk.MaxDrawdown = 1.4 }},
		{"zero max positions", func(c *Config) { c.Risk.MaxPositions = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, boterrors.IsConfigurationError(err))
		})
	}
}

func TestValidate_TradeAllWithoutSymbolList(t *testing.T) {
	cfg := &Config{}
	cfg.Strategy.Name = "breakout"
	cfg.Trading.TradeAll = true
	cfg.setDefaults()

	require.NoError(t, cfg.Validate())
}

func TestApplyEnv_Overrides(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "key-from-env")
	t.Setenv("BYBIT_API_SECRET", "secret-from-env")
	t.Setenv("BYBIT_ENV", "demo")

	cfg, err := Load(writeConfig(t, "bot.json", minimalJSON))
	require.NoError(t, err)

	assert.Equal(t, "key-from-env", cfg.Exchange.APIKey)
	assert.Equal(t, "secret-from-env", cfg.Exchange.APISecret)
	assert.True(t, cfg.Exchange.Demo)
	assert.False(t, cfg.Exchange.Testnet)
}

func TestActiveSymbols(t *testing.T) {
	cfg := &Config{}
	cfg.Trading.ExcludedSymbols = []string{"DOGEUSDT"}

	got := cfg.ActiveSymbols([]string{"BTCUSDT", "DOGEUSDT", "ETHUSDT", "BTCUSDT"})
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, got)
}
