// Package config loads and validates the trading configuration. The
// resulting Config is an immutable snapshot: it is read once at startup
// and never re-read while the engine runs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
	"github.com/earthskyorg/bybit-trading-bot/internal/strategy"
)

// Duration wraps time.Duration so config files can write "30s" or "5m".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the full bot configuration.
type Config struct {
	Strategy      StrategyConfig     `json:"strategy" yaml:"strategy"`
	Trading       TradingConfig      `json:"trading" yaml:"trading"`
	Risk          RiskConfig         `json:"risk" yaml:"risk"`
	Exchange      ExchangeConfig     `json:"exchange" yaml:"exchange"`
	Monitoring    MonitoringConfig   `json:"monitoring" yaml:"monitoring"`
	Notifications NotificationConfig `json:"notifications" yaml:"notifications"`
	Logging       LoggingConfig      `json:"logging" yaml:"logging"`
}

// StrategyConfig selects the signal strategy and its market-data window.
type StrategyConfig struct {
	Name       string `json:"name" yaml:"name"`
	Interval   string `json:"interval" yaml:"interval"`       // venue kline interval code, e.g. "5" or "60"
	WindowSize int    `json:"window_size" yaml:"window_size"` // candles per market-data window
}

// TradingConfig holds the order-placement and loop settings.
type TradingConfig struct {
	Symbols         []string `json:"symbols" yaml:"symbols"`
	TradeAll        bool     `json:"trade_all" yaml:"trade_all"` // trade every listed symbol minus exclusions
	ExcludedSymbols []string `json:"excluded_symbols" yaml:"excluded_symbols"`

	Leverage            int     `json:"leverage" yaml:"leverage"`
	OrderRisk           float64 `json:"order_risk" yaml:"order_risk"` // balance fraction risked per order
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`

	SignalInterval     Duration `json:"signal_interval" yaml:"signal_interval"`
	MonitoringInterval Duration `json:"monitoring_interval" yaml:"monitoring_interval"`
	ErrorBackoff       Duration `json:"error_backoff" yaml:"error_backoff"`

	// Fractions applied to the entry price when a signal carries no
	// explicit stop or target.
	StopLossFraction   float64 `json:"stop_loss_fraction" yaml:"stop_loss_fraction"`
	TakeProfitFraction float64 `json:"take_profit_fraction" yaml:"take_profit_fraction"`

	TrailingStop         bool `json:"trailing_stop" yaml:"trailing_stop"`
	UseMarketOrders      bool `json:"use_market_orders" yaml:"use_market_orders"`
	WaitForCandleClose   bool `json:"wait_for_candle_close" yaml:"wait_for_candle_close"`
	DryRun               bool `json:"dry_run" yaml:"dry_run"`
	ClosePositionsOnStop bool `json:"close_positions_on_stop" yaml:"close_positions_on_stop"`
	PriceStream          bool `json:"price_stream" yaml:"price_stream"`
}

// RiskConfig holds the account-level risk limits as balance fractions.
type RiskConfig struct {
	MaxPositionSize  float64 `json:"max_position_size" yaml:"max_position_size"`
	MaxTotalExposure float64 `json:"max_total_exposure" yaml:"max_total_exposure"`
	MaxDailyLoss     float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
	MaxDrawdown      float64 `json:"max_drawdown" yaml:"max_drawdown"`
	MaxPositions     int     `json:"max_positions" yaml:"max_positions"`
}

// ExchangeConfig holds venue credentials and environment selection.
// Credentials come from the environment, never from the config file.
type ExchangeConfig struct {
	APIKey    string `json:"-" yaml:"-"`
	APISecret string `json:"-" yaml:"-"`
	Testnet   bool   `json:"testnet" yaml:"testnet"`
	Demo      bool   `json:"demo" yaml:"demo"`
}

// MonitoringConfig holds the ports for the metrics and health servers.
type MonitoringConfig struct {
	MetricsPort int    `json:"metrics_port" yaml:"metrics_port"`
	HealthPort  int    `json:"health_port" yaml:"health_port"`
	ReportDir   string `json:"report_dir" yaml:"report_dir"`
}

// NotificationConfig holds the optional Telegram alert settings.
type NotificationConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	TelegramToken string `json:"telegram_token,omitempty" yaml:"telegram_token,omitempty"`
	TelegramChat  string `json:"telegram_chat,omitempty" yaml:"telegram_chat,omitempty"`
}

// LoggingConfig selects log level, encoder and tracing.
type LoggingConfig struct {
	Level   string `json:"level" yaml:"level"`
	Format  string `json:"format" yaml:"format"` // json or console
	Tracing bool   `json:"tracing" yaml:"tracing"`
}

// DefaultReportDir is where session reports land when the config does
// not name a directory. Relative to the working directory.
const DefaultReportDir = "reports"

// Load reads, defaults and validates a config file. Bare file names
// resolve under configs/; a missing extension defaults to .json; .yaml
// and .yml files are parsed as YAML.
func Load(path string) (*Config, error) {
	if !strings.ContainsAny(path, "/\\") {
		path = filepath.Join("configs", path)
	}
	if filepath.Ext(path) == "" {
		path += ".json"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, boterrors.NewConfigurationError("config", "load",
			fmt.Sprintf("failed to read config file %s: %v", path, err))
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, boterrors.NewConfigurationError("config", "load",
			fmt.Sprintf("failed to parse config file %s: %v", path, err))
	}

	cfg.applyEnv()
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays secrets and environment selection from the process
// environment. BYBIT_ENV accepts mainnet, testnet or demo.
func (c *Config) applyEnv() {
	if v := os.Getenv("BYBIT_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("BYBIT_API_SECRET"); v != "" {
		c.Exchange.APISecret = v
	}
	switch strings.ToLower(os.Getenv("BYBIT_ENV")) {
	case "testnet":
		c.Exchange.Testnet = true
		c.Exchange.Demo = false
	case "demo":
		c.Exchange.Demo = true
		c.Exchange.Testnet = false
	case "mainnet":
		c.Exchange.Testnet = false
		c.Exchange.Demo = false
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notifications.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Notifications.TelegramChat = v
	}
}

func (c *Config) setDefaults() {
	if c.Strategy.Name == "" {
		c.Strategy.Name = "triple_ema"
	}
	if c.Strategy.Interval == "" {
		c.Strategy.Interval = "5"
	}
	if c.Strategy.WindowSize == 0 {
		c.Strategy.WindowSize = 200
	}

	if c.Trading.Leverage == 0 {
		c.Trading.Leverage = 1
	}
	if c.Trading.OrderRisk == 0 {
		c.Trading.OrderRisk = 0.02
	}
	if c.Trading.ConfidenceThreshold == 0 {
		c.Trading.ConfidenceThreshold = 0.6
	}
	if c.Trading.SignalInterval == 0 {
		c.Trading.SignalInterval = Duration(time.Minute)
	}
	if c.Trading.MonitoringInterval == 0 {
		c.Trading.MonitoringInterval = Duration(30 * time.Second)
	}
	if c.Trading.ErrorBackoff == 0 {
		c.Trading.ErrorBackoff = Duration(5 * time.Second)
	}
	if c.Trading.StopLossFraction == 0 {
		c.Trading.StopLossFraction = 0.02
	}
	if c.Trading.TakeProfitFraction == 0 {
		c.Trading.TakeProfitFraction = 0.04
	}

	if c.Risk.MaxPositionSize == 0 {
		c.Risk.MaxPositionSize = 0.1
	}
	if c.Risk.MaxTotalExposure == 0 {
		c.Risk.MaxTotalExposure = 0.5
	}
	if c.Risk.MaxDailyLoss == 0 {
		c.Risk.MaxDailyLoss = 0.05
	}
	if c.Risk.MaxDrawdown == 0 {
		c.Risk.MaxDrawdown = 0.15
	}
	if c.Risk.MaxPositions == 0 {
		c.Risk.MaxPositions = 10
	}

	if c.Monitoring.MetricsPort == 0 {
		c.Monitoring.MetricsPort = 9090
	}
	if c.Monitoring.HealthPort == 0 {
		c.Monitoring.HealthPort = 8081
	}
	if c.Monitoring.ReportDir == "" {
		c.Monitoring.ReportDir = DefaultReportDir
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate checks the configuration for values the engine cannot run
// with. Failures are configuration errors and fatal at startup.
func (c *Config) Validate() error {
	fail := func(msg string) error {
		return boterrors.NewConfigurationError("config", "validate", msg)
	}

	if !knownStrategy(c.Strategy.Name) {
		return fail(fmt.Sprintf("unknown strategy %q, available: %s",
			c.Strategy.Name, strings.Join(strategy.Names(), ", ")))
	}
	if c.Strategy.WindowSize < 1 {
		return fail("strategy window size must be at least 1 candle")
	}

	if !c.Trading.TradeAll && len(c.Trading.Symbols) == 0 {
		return fail("no symbols configured: list symbols or set trade_all")
	}
	if c.Trading.Leverage < 1 || c.Trading.Leverage > 125 {
		return fail(fmt.Sprintf("leverage %d outside [1, 125]", c.Trading.Leverage))
	}
	if c.Trading.OrderRisk <= 0 || c.Trading.OrderRisk > 1 {
		return fail(fmt.Sprintf("order risk %g outside (0, 1]", c.Trading.OrderRisk))
	}
	if c.Trading.ConfidenceThreshold < 0 || c.Trading.ConfidenceThreshold > 1 {
		return fail(fmt.Sprintf("confidence threshold %g outside [0, 1]", c.Trading.ConfidenceThreshold))
	}
	if c.Trading.SignalInterval.Std() < time.Second {
		return fail("signal interval must be at least 1s")
	}
	if c.Trading.MonitoringInterval.Std() < time.Second {
		return fail("monitoring interval must be at least 1s")
	}
	if c.Trading.StopLossFraction <= 0 || c.Trading.StopLossFraction >= 1 {
		return fail(fmt.Sprintf("stop loss fraction %g outside (0, 1)", c.Trading.StopLossFraction))
	}

	for _, f := range []struct {
		name  string
		value float64
	}{
		{"max_position_size", c.Risk.MaxPositionSize},
		{"max_total_exposure", c.Risk.MaxTotalExposure},
		{"max_daily_loss", c.Risk.MaxDailyLoss},
		{"max_drawdown", c.Risk.MaxDrawdown},
	} {
		if f.value <= 0 || f.value > 1 {
			return fail(fmt.Sprintf("risk fraction %s=%g outside (0, 1]", f.name, f.value))
		}
	}
	if c.Risk.MaxPositions < 1 {
		return fail("max positions must be at least 1")
	}

	return nil
}

func knownStrategy(name string) bool {
	for _, n := range strategy.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// ActiveSymbols applies the exclusion list to a symbol universe,
// preserving order and dropping duplicates.
func (c *Config) ActiveSymbols(universe []string) []string {
	excluded := make(map[string]struct{}, len(c.Trading.ExcludedSymbols))
	for _, s := range c.Trading.ExcludedSymbols {
		excluded[s] = struct{}{}
	}

	seen := make(map[string]struct{}, len(universe))
	out := make([]string, 0, len(universe))
	for _, s := range universe {
		if _, skip := excluded[s]; skip {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
