package types

import (
	"errors"
	"time"
)

// MarketDataView is an immutable per-symbol OHLCV window. All columns are
// aligned: index i describes the same candle in every sequence. Views are
// rebuilt from fresh kline data each evaluation cycle and must not be
// mutated after construction; accessors return the internal slices, so
// callers treat them as read-only.
type MarketDataView struct {
	symbol     string
	open       []float64
	high       []float64
	low        []float64
	close      []float64
	volume     []float64
	timestamps []time.Time
}

var ErrEmptyWindow = errors.New("market data window requires at least one candle")

// NewMarketDataView builds a view from candle rows, oldest first.
func NewMarketDataView(symbol string, candles []OHLCV) (*MarketDataView, error) {
	if len(candles) == 0 {
		return nil, ErrEmptyWindow
	}

	v := &MarketDataView{
		symbol:     symbol,
		open:       make([]float64, len(candles)),
		high:       make([]float64, len(candles)),
		low:        make([]float64, len(candles)),
		close:      make([]float64, len(candles)),
		volume:     make([]float64, len(candles)),
		timestamps: make([]time.Time, len(candles)),
	}
	for i, c := range candles {
		v.open[i] = c.Open
		v.high[i] = c.High
		v.low[i] = c.Low
		v.close[i] = c.Close
		v.volume[i] = c.Volume
		v.timestamps[i] = c.Timestamp
	}
	return v, nil
}

// NewMarketDataViewFromSeries builds a view directly from column data.
// Every sequence must have the same non-zero length.
func NewMarketDataViewFromSeries(symbol string, open, high, low, closes, volume []float64, timestamps []time.Time) (*MarketDataView, error) {
	n := len(closes)
	if n == 0 {
		return nil, ErrEmptyWindow
	}
	if len(open) != n || len(high) != n || len(low) != n || len(volume) != n || len(timestamps) != n {
		return nil, errors.New("market data sequences have mismatched lengths")
	}

	return &MarketDataView{
		symbol:     symbol,
		open:       open,
		high:       high,
		low:        low,
		close:      closes,
		volume:     volume,
		timestamps: timestamps,
	}, nil
}

func (v *MarketDataView) Symbol() string          { return v.symbol }
func (v *MarketDataView) Len() int                { return len(v.close) }
func (v *MarketDataView) Open() []float64         { return v.open }
func (v *MarketDataView) High() []float64         { return v.high }
func (v *MarketDataView) Low() []float64          { return v.low }
func (v *MarketDataView) Close() []float64        { return v.close }
func (v *MarketDataView) Volume() []float64       { return v.volume }
func (v *MarketDataView) Timestamps() []time.Time { return v.timestamps }

// LastIndex returns the index of the most recent candle.
func (v *MarketDataView) LastIndex() int { return len(v.close) - 1 }

// LastClose returns the most recent close price.
func (v *MarketDataView) LastClose() float64 { return v.close[len(v.close)-1] }
