package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
)

// Constraints are the order-size rules for one instrument.
type Constraints struct {
	Symbol      string
	QtyStep     decimal.Decimal
	MinQty      decimal.Decimal
	MaxQty      decimal.Decimal
	MinNotional decimal.Decimal
	TickSize    decimal.Decimal
	MaxLeverage int
}

// NormalizeQty floors a raw quantity to the instrument step and checks
// it against the venue minimums. Flooring keeps the submitted size at
// or below the risk-derived size. price is used for the min-notional
// check and may be zero to skip it.
func (cs Constraints) NormalizeQty(qty, price float64) (decimal.Decimal, error) {
	d := decimal.NewFromFloat(qty)
	if cs.QtyStep.IsPositive() {
		d = d.Div(cs.QtyStep).Floor().Mul(cs.QtyStep)
	}
	if cs.MaxQty.IsPositive() && d.GreaterThan(cs.MaxQty) {
		d = cs.MaxQty
	}
	if cs.MinQty.IsPositive() && d.LessThan(cs.MinQty) {
		return decimal.Zero, boterrors.NewInsufficientFundsError("bybit", "normalize_qty",
			fmt.Sprintf("quantity %s is below the minimum %s for %s", d, cs.MinQty, cs.Symbol))
	}
	if cs.MinNotional.IsPositive() && price > 0 {
		notional := d.Mul(decimal.NewFromFloat(price))
		if notional.LessThan(cs.MinNotional) {
			return decimal.Zero, boterrors.NewInsufficientFundsError("bybit", "normalize_qty",
				fmt.Sprintf("order value %s is below the minimum %s for %s", notional, cs.MinNotional, cs.Symbol))
		}
	}
	return d, nil
}

const instrumentCacheTTL = time.Hour

type cachedConstraints struct {
	constraints Constraints
	fetched     time.Time
}

// instrumentCache keeps per-symbol order constraints with a refresh
// TTL, so order placement does not pay an instruments-info round trip
// every sweep.
type instrumentCache struct {
	client   *Client
	mu       sync.RWMutex
	bySymbol map[string]cachedConstraints
	ttl      time.Duration
	now      func() time.Time
}

func newInstrumentCache(client *Client) *instrumentCache {
	return &instrumentCache{
		client:   client,
		bySymbol: make(map[string]cachedConstraints),
		ttl:      instrumentCacheTTL,
		now:      time.Now,
	}
}

// Get returns the constraints for a symbol, fetching them when the
// cache entry is missing or stale.
func (ic *instrumentCache) Get(ctx context.Context, symbol string) (Constraints, error) {
	ic.mu.RLock()
	entry, ok := ic.bySymbol[symbol]
	ic.mu.RUnlock()
	if ok && ic.now().Sub(entry.fetched) < ic.ttl {
		return entry.constraints, nil
	}

	constraints, err := ic.fetch(ctx, symbol)
	if err != nil {
		// A stale entry beats a failed sweep.
		if ok {
			return entry.constraints, nil
		}
		return Constraints{}, err
	}

	ic.mu.Lock()
	ic.bySymbol[symbol] = cachedConstraints{constraints: constraints, fetched: ic.now()}
	ic.mu.Unlock()
	return constraints, nil
}

// MaxLeverage returns the instrument's leverage ceiling, or 0 when it
// cannot be determined.
func (ic *instrumentCache) MaxLeverage(ctx context.Context, symbol string) int {
	constraints, err := ic.Get(ctx, symbol)
	if err != nil {
		return 0
	}
	return constraints.MaxLeverage
}

func (ic *instrumentCache) fetch(ctx context.Context, symbol string) (Constraints, error) {
	params := map[string]interface{}{
		"category": linearCategory,
		"symbol":   symbol,
	}

	resp, err := ic.client.call(ctx, "instruments_info", func() (interface{}, error) {
		return ic.client.httpClient.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
	})
	if err != nil {
		return Constraints{}, venueError("get_instrument_info", err)
	}

	constraints, err := parseConstraints(resp.Result, symbol)
	if err != nil {
		return Constraints{}, venueError("get_instrument_info", err)
	}
	return constraints, nil
}

func parseConstraints(result interface{}, symbol string) (Constraints, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return Constraints{}, fmt.Errorf("failed to marshal instrument result: %w", err)
	}

	var instrumentResult struct {
		List []struct {
			Symbol         string `json:"symbol"`
			LeverageFilter struct {
				MaxLeverage string `json:"maxLeverage"`
			} `json:"leverageFilter"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
			LotSizeFilter struct {
				MinNotionalValue string `json:"minNotionalValue"`
				MaxOrderQty      string `json:"maxOrderQty"`
				MinOrderQty      string `json:"minOrderQty"`
				QtyStep          string `json:"qtyStep"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &instrumentResult); err != nil {
		return Constraints{}, fmt.Errorf("failed to unmarshal instrument result: %w", err)
	}

	for _, item := range instrumentResult.List {
		if item.Symbol != symbol {
			continue
		}
		return Constraints{
			Symbol:      symbol,
			QtyStep:     parseDecimal(item.LotSizeFilter.QtyStep),
			MinQty:      parseDecimal(item.LotSizeFilter.MinOrderQty),
			MaxQty:      parseDecimal(item.LotSizeFilter.MaxOrderQty),
			MinNotional: parseDecimal(item.LotSizeFilter.MinNotionalValue),
			TickSize:    parseDecimal(item.PriceFilter.TickSize),
			MaxLeverage: int(parseFloat64(item.LeverageFilter.MaxLeverage)),
		}, nil
	}
	return Constraints{}, fmt.Errorf("instrument %s not in response", symbol)
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
