package safety

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/earthskyorg/bybit-trading-bot/internal/exchange"
	"github.com/earthskyorg/bybit-trading-bot/internal/logger"
	"github.com/earthskyorg/bybit-trading-bot/pkg/types"
)

// Call classes. Trading gets the strictest budget and breaker; market
// data the loosest.
const (
	classTrading    = "trading"
	classMarketData = "market_data"
	classAccount    = "account"
)

// GuardedClient wraps an exchange client so every call passes a
// per-class rate limiter and circuit breaker. It satisfies
// exchange.Client, so the trading core never knows it is there.
type GuardedClient struct {
	inner    exchange.Client
	limiters *RateLimiterManager
	breakers *CircuitBreakerManager
	log      *zap.Logger
}

var _ exchange.Client = (*GuardedClient)(nil)

// NewGuardedClient wraps inner with the default budgets: 10 trading,
// 50 market-data and 20 account calls per second, breakers opening
// after repeated failures per class.
func NewGuardedClient(inner exchange.Client) *GuardedClient {
	g := &GuardedClient{
		inner:    inner,
		limiters: NewRateLimiterManager(),
		breakers: NewCircuitBreakerManager(),
		log:      logger.Component("safety"),
	}

	g.limiters.GetOrCreate(classTrading, 10, 10)
	g.limiters.GetOrCreate(classMarketData, 50, 50)
	g.limiters.GetOrCreate(classAccount, 20, 20)

	tradingConfig := CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          2 * time.Minute,
	}
	dataConfig := CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          time.Minute,
	}
	g.breakers.GetOrCreate(classTrading, tradingConfig)
	g.breakers.GetOrCreate(classMarketData, dataConfig)
	g.breakers.GetOrCreate(classAccount, dataConfig)

	for _, name := range []string{classTrading, classMarketData, classAccount} {
		name := name
		cb, _ := g.breakers.Get(name)
		cb.SetStateChangeCallback(func(from, to CircuitBreakerState) {
			g.log.Warn("circuit breaker state changed",
				zap.String("class", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		})
	}
	return g
}

// guard applies the class limiter and breaker around fn.
func (g *GuardedClient) guard(ctx context.Context, class string, fn func() error) error {
	rl, _ := g.limiters.Get(class)
	if err := rl.Wait(ctx); err != nil {
		return err
	}
	cb, _ := g.breakers.Get(class)
	return cb.Call(fn)
}

func (g *GuardedClient) GetAccountSnapshot(ctx context.Context) (*exchange.AccountSnapshot, error) {
	var snapshot *exchange.AccountSnapshot
	err := g.guard(ctx, classAccount, func() error {
		var callErr error
		snapshot, callErr = g.inner.GetAccountSnapshot(ctx)
		return callErr
	})
	return snapshot, err
}

func (g *GuardedClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error) {
	var candles []types.OHLCV
	err := g.guard(ctx, classMarketData, func() error {
		var callErr error
		candles, callErr = g.inner.GetKlines(ctx, symbol, interval, limit)
		return callErr
	})
	return candles, err
}

func (g *GuardedClient) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	var price float64
	err := g.guard(ctx, classMarketData, func() error {
		var callErr error
		price, callErr = g.inner.GetLatestPrice(ctx, symbol)
		return callErr
	})
	return price, err
}

func (g *GuardedClient) PlaceMarketOrder(ctx context.Context, symbol string, side exchange.Side, quantity float64) (*exchange.OrderResult, error) {
	var result *exchange.OrderResult
	err := g.guard(ctx, classTrading, func() error {
		var callErr error
		result, callErr = g.inner.PlaceMarketOrder(ctx, symbol, side, quantity)
		return callErr
	})
	return result, err
}

func (g *GuardedClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return g.guard(ctx, classTrading, func() error {
		return g.inner.SetLeverage(ctx, symbol, leverage)
	})
}

func (g *GuardedClient) ListTradableSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := g.guard(ctx, classAccount, func() error {
		var callErr error
		symbols, callErr = g.inner.ListTradableSymbols(ctx)
		return callErr
	})
	return symbols, err
}

func (g *GuardedClient) CancelAll(ctx context.Context, symbol string) error {
	return g.guard(ctx, classTrading, func() error {
		return g.inner.CancelAll(ctx, symbol)
	})
}

// OpenCircuits lists the call classes currently cut off.
func (g *GuardedClient) OpenCircuits() []string {
	return g.breakers.OpenCircuits()
}
