// Package strategy defines the polymorphic signal-generation contract and
// the built-in strategy variants. Strategies are evaluated sequentially by
// the signal loop and are not safe for concurrent use: GenerateSignal reads
// the indicator set cached by the preceding CalculateIndicators call for
// the same view.
package strategy

import (
	"github.com/earthskyorg/bybit-trading-bot/internal/indicators"
	"github.com/earthskyorg/bybit-trading-bot/pkg/types"
)

// Direction is the action a signal asks for.
type Direction int

const (
	Hold Direction = iota
	Buy
	Sell
)

func (d Direction) String() string {
	switch d {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "hold"
	}
}

// Signal is one strategy decision at one index. StopLoss and TakeProfit
// are optional; zero means the strategy did not provide one.
type Signal struct {
	Direction  Direction
	Confidence float64
	StopLoss   float64
	TakeProfit float64
	Metadata   map[string]interface{}
}

// HoldSignal is the neutral result used whenever a strategy cannot or
// should not act.
func HoldSignal() Signal {
	return Signal{Direction: Hold, Confidence: 0}
}

// IndicatorSet maps an indicator name to a series aligned 1:1 with the
// owning view's closes.
type IndicatorSet map[string][]float64

// Strategy is the capability contract every variant implements.
type Strategy interface {
	// Name identifies the strategy in the registry and in logs.
	Name() string
	// ValidateParameters fails with a configuration error on inconsistent
	// periods. Called once at startup before any loop runs.
	ValidateParameters() error
	// CalculateIndicators computes and caches the indicator set for view.
	CalculateIndicators(view *types.MarketDataView) (IndicatorSet, error)
	// GenerateSignal derives the signal at index from the cached
	// indicators. Never mutates; degrades to Hold when a value is not
	// ready or out of range.
	GenerateSignal(view *types.MarketDataView, index int) Signal
	// RequiredBufferSize is the minimum history length before signals are
	// meaningful.
	RequiredBufferSize() int
}

// indicatorCache holds the series computed for the current view. Embedded
// by the concrete strategies.
type indicatorCache struct {
	set IndicatorSet
}

func (c *indicatorCache) store(set IndicatorSet) {
	c.set = set
}

// value reads one indicator at one index. Reports false when the series is
// missing, the index is out of range or the entry is not ready yet.
func (c *indicatorCache) value(name string, index int) (float64, bool) {
	series, ok := c.set[name]
	if !ok || index < 0 || index >= len(series) {
		return 0, false
	}
	v := series[index]
	if !indicators.Ready(v) {
		return 0, false
	}
	return v, true
}
