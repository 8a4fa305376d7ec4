package strategy

import (
	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
	"github.com/earthskyorg/bybit-trading-bot/internal/indicators"
	"github.com/earthskyorg/bybit-trading-bot/pkg/types"
)

func init() {
	Register("momentum_divergence", func() Strategy { return NewMomentumDivergence() })
}

// MomentumDivergence looks for price and RSI disagreeing at the two most
// recent swing points inside a lookback window: price printing a lower low
// while RSI prints a higher low is a bullish divergence (buy), the mirror
// at swing highs a bearish one (sell).
type MomentumDivergence struct {
	RSIPeriod int
	Lookback  int

	cache indicatorCache
}

// NewMomentumDivergence returns the strategy with RSI 14 over a 20-candle
// lookback.
func NewMomentumDivergence() *MomentumDivergence {
	return &MomentumDivergence{RSIPeriod: 14, Lookback: 20}
}

func (s *MomentumDivergence) Name() string { return "momentum_divergence" }

func (s *MomentumDivergence) ValidateParameters() error {
	if s.RSIPeriod < 2 {
		return boterrors.NewConfigurationError("strategy", "validate_parameters",
			"RSI period must be at least 2")
	}
	if s.Lookback < 5 {
		return boterrors.NewConfigurationError("strategy", "validate_parameters",
			"divergence lookback must be at least 5 candles")
	}
	return nil
}

func (s *MomentumDivergence) CalculateIndicators(view *types.MarketDataView) (IndicatorSet, error) {
	set := IndicatorSet{
		"rsi": indicators.RSI(view.Close(), s.RSIPeriod),
	}
	s.cache.store(set)
	return set, nil
}

func (s *MomentumDivergence) GenerateSignal(view *types.MarketDataView, index int) Signal {
	if index < s.RSIPeriod+2 || index >= view.Len() {
		return HoldSignal()
	}

	closes := view.Close()
	start := index - s.Lookback
	if start < 1 {
		start = 1
	}

	lows := swingPoints(closes, start, index, func(prev, cur, next float64) bool {
		return cur < prev && cur < next
	})
	if sig, ok := s.divergenceAt(lows, closes, func(priceNewer, priceOlder, rsiNewer, rsiOlder float64) bool {
		return priceNewer < priceOlder && rsiNewer > rsiOlder
	}, Buy); ok {
		return sig
	}

	highs := swingPoints(closes, start, index, func(prev, cur, next float64) bool {
		return cur > prev && cur > next
	})
	if sig, ok := s.divergenceAt(highs, closes, func(priceNewer, priceOlder, rsiNewer, rsiOlder float64) bool {
		return priceNewer > priceOlder && rsiNewer < rsiOlder
	}, Sell); ok {
		return sig
	}

	return HoldSignal()
}

// divergenceAt checks the two most recent swing points for a divergence.
func (s *MomentumDivergence) divergenceAt(points []int, closes []float64, diverges func(priceNewer, priceOlder, rsiNewer, rsiOlder float64) bool, direction Direction) (Signal, bool) {
	if len(points) < 2 {
		return Signal{}, false
	}

	newer := points[len(points)-1]
	older := points[len(points)-2]

	rsiNewer, ok1 := s.cache.value("rsi", newer)
	rsiOlder, ok2 := s.cache.value("rsi", older)
	if !ok1 || !ok2 {
		return Signal{}, false
	}

	if diverges(closes[newer], closes[older], rsiNewer, rsiOlder) {
		return Signal{
			Direction:  direction,
			Confidence: 0.75,
			Metadata: map[string]interface{}{
				"swing_newer": newer,
				"swing_older": older,
				"rsi_newer":   rsiNewer,
				"rsi_older":   rsiOlder,
			},
		}, true
	}
	return Signal{}, false
}

// swingPoints returns indices in [start, end) that are local extremes of
// closes per the isExtreme predicate, oldest first.
func swingPoints(closes []float64, start, end int, isExtreme func(prev, cur, next float64) bool) []int {
	var points []int
	for i := start; i < end; i++ {
		if isExtreme(closes[i-1], closes[i], closes[i+1]) {
			points = append(points, i)
		}
	}
	return points
}

func (s *MomentumDivergence) RequiredBufferSize() int {
	longest := s.RSIPeriod
	if s.Lookback > longest {
		longest = s.Lookback
	}
	return longest + 50
}
