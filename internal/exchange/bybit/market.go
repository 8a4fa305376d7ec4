package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/earthskyorg/bybit-trading-bot/pkg/types"
)

// Kline intervals accepted by the v5 market endpoints.
const (
	Interval1m  = "1"
	Interval5m  = "5"
	Interval15m = "15"
	Interval30m = "30"
	Interval1h  = "60"
	Interval4h  = "240"
	Interval1d  = "D"
)

// IntervalFromDuration maps a candle duration to the venue's interval
// code. Durations without an exact match are rejected.
func IntervalFromDuration(d time.Duration) (string, error) {
	switch d {
	case time.Minute:
		return Interval1m, nil
	case 5 * time.Minute:
		return Interval5m, nil
	case 15 * time.Minute:
		return Interval15m, nil
	case 30 * time.Minute:
		return Interval30m, nil
	case time.Hour:
		return Interval1h, nil
	case 4 * time.Hour:
		return Interval4h, nil
	case 24 * time.Hour:
		return Interval1d, nil
	}
	return "", fmt.Errorf("no kline interval for duration %s", d)
}

const defaultKlineLimit = 200

// GetKlines fetches candles for a symbol and returns them oldest-first.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error) {
	if limit <= 0 {
		limit = defaultKlineLimit
	}
	params := map[string]interface{}{
		"category": linearCategory,
		"symbol":   symbol,
		"interval": interval,
		"limit":    limit,
	}

	resp, err := c.call(ctx, "market_kline", func() (interface{}, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	})
	if err != nil {
		return nil, venueError("get_klines", err)
	}

	candles, err := parseKlineRows(resp.Result, symbol)
	if err != nil {
		return nil, venueError("get_klines", err)
	}
	return candles, nil
}

// parseKlineRows decodes the [][]string kline payload. The venue
// returns rows newest-first; strategy windows want oldest-first.
func parseKlineRows(result interface{}, symbol string) ([]types.OHLCV, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal kline result: %w", err)
	}

	var klineResult struct {
		Symbol   string     `json:"symbol"`
		Category string     `json:"category"`
		List     [][]string `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &klineResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal kline result: %w", err)
	}

	candles := make([]types.OHLCV, 0, len(klineResult.List))
	for i := len(klineResult.List) - 1; i >= 0; i-- {
		row := klineResult.List[i]
		if len(row) < 6 {
			return nil, fmt.Errorf("kline row for %s has %d fields, want at least 6", symbol, len(row))
		}
		candles = append(candles, types.OHLCV{
			Timestamp: time.UnixMilli(parseInt64(row[0])),
			Open:      parseFloat64(row[1]),
			High:      parseFloat64(row[2]),
			Low:       parseFloat64(row[3]),
			Close:     parseFloat64(row[4]),
			Volume:    parseFloat64(row[5]),
		})
	}
	return candles, nil
}

// GetLatestPrice returns the last traded price for a symbol.
func (c *Client) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	params := map[string]interface{}{
		"category": linearCategory,
		"symbol":   symbol,
	}

	resp, err := c.call(ctx, "market_tickers", func() (interface{}, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	})
	if err != nil {
		return 0, venueError("get_latest_price", err)
	}

	price, err := parseLastPrice(resp.Result, symbol)
	if err != nil {
		return 0, venueError("get_latest_price", err)
	}
	return price, nil
}

func parseLastPrice(result interface{}, symbol string) (float64, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal ticker result: %w", err)
	}

	var tickerResult struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &tickerResult); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ticker result: %w", err)
	}

	for _, t := range tickerResult.List {
		if t.Symbol != symbol {
			continue
		}
		price := parseFloat64(t.LastPrice)
		if price <= 0 {
			return 0, fmt.Errorf("ticker for %s has no valid last price", symbol)
		}
		return price, nil
	}
	return 0, fmt.Errorf("ticker for %s not in response", symbol)
}

// ListTradableSymbols returns the linear symbols currently open for
// trading, sorted alphabetically.
func (c *Client) ListTradableSymbols(ctx context.Context) ([]string, error) {
	params := map[string]interface{}{
		"category": linearCategory,
		"limit":    1000,
	}

	resp, err := c.call(ctx, "instruments_info", func() (interface{}, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
	})
	if err != nil {
		return nil, venueError("list_tradable_symbols", err)
	}

	resultBytes, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, venueError("list_tradable_symbols", err)
	}

	var instrumentResult struct {
		List []struct {
			Symbol string `json:"symbol"`
			Status string `json:"status"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &instrumentResult); err != nil {
		return nil, venueError("list_tradable_symbols", err)
	}

	symbols := make([]string, 0, len(instrumentResult.List))
	for _, inst := range instrumentResult.List {
		if inst.Status == "Trading" {
			symbols = append(symbols, inst.Symbol)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}
