package exchange

import (
	"context"
	"time"

	"github.com/earthskyorg/bybit-trading-bot/pkg/types"
)

// Side is the direction of an order, using the venue's spelling.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// Opposite returns the side that closes a position opened with s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Position is an open contract position as reported by the venue.
// Size is always positive; Side carries the direction.
type Position struct {
	Symbol        string
	Side          Side
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealisedPnl float64
	Leverage      float64
	UpdatedAt     time.Time
}

// AccountSnapshot is the wallet state plus open positions at one instant.
type AccountSnapshot struct {
	Equity    float64 // total account equity in USD terms
	Balance   float64 // wallet balance of the settlement coin
	Available float64 // balance free for new orders
	Positions []Position
	Taken     time.Time
}

// OrderResult reports an order the venue accepted. Price is the average
// fill price when the venue returns one, zero otherwise.
type OrderResult struct {
	OrderID     string
	OrderLinkID string
	Symbol      string
	Side        Side
	Qty         float64
	Price       float64
	CreatedAt   time.Time
}

// Client is the venue-facing surface the trading core depends on.
// Implementations translate venue payloads into bot types and venue
// failures into the categorized error taxonomy; rate limiting and
// retries happen behind this interface, so callers see them only as
// latency. Klines are returned oldest-first.
type Client interface {
	GetAccountSnapshot(ctx context.Context) (*AccountSnapshot, error)
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error)
	GetLatestPrice(ctx context.Context, symbol string) (float64, error)
	PlaceMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (*OrderResult, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	ListTradableSymbols(ctx context.Context) ([]string, error)
	CancelAll(ctx context.Context, symbol string) error
}
