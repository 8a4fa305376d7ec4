package bybit

import (
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"go.uber.org/zap"

	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
	"github.com/earthskyorg/bybit-trading-bot/internal/exchange"
	"github.com/earthskyorg/bybit-trading-bot/internal/logger"
)

// All REST calls run against the linear (USDT perpetual) category.
const linearCategory = "linear"

// Config holds the connection settings for the Bybit v5 API.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool // demo trading environment (paper trading)

	// RequestsPerWindow and Window bound outbound REST traffic.
	// Zero values fall back to 120 requests per 60s.
	RequestsPerWindow int
	Window            time.Duration
}

// Client adapts the official bybit.go.api client to the
// exchange.Client interface for USDT linear perpetuals.
type Client struct {
	httpClient  *bybit_api.Client
	config      Config
	limiter     *slidingLimiter
	instruments *instrumentCache
	retry       retryPolicy
	log         *zap.Logger
}

var _ exchange.Client = (*Client)(nil)

// NewClient creates a new Bybit client for the configured environment.
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" || config.APISecret == "" {
		return nil, boterrors.NewAuthenticationError("bybit", "new_client", "API key and secret are required")
	}

	var baseURL string
	if config.Demo {
		baseURL = "https://api-demo.bybit.com"
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	c := &Client{
		httpClient: httpClient,
		config:     config,
		limiter:    newSlidingLimiter(config.RequestsPerWindow, config.Window),
		retry:      defaultRetryPolicy(),
		log:        logger.Component("bybit"),
	}
	c.instruments = newInstrumentCache(c)
	return c, nil
}

// Environment returns a string describing the configured environment.
func (c *Client) Environment() string {
	if c.config.Demo {
		return "demo"
	}
	if c.config.Testnet {
		return "testnet"
	}
	return "mainnet"
}

// IsDemo returns whether the client trades against the demo environment.
func (c *Client) IsDemo() bool {
	return c.config.Demo
}
