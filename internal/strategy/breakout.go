package strategy

import (
	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
	"github.com/earthskyorg/bybit-trading-bot/internal/indicators"
	"github.com/earthskyorg/bybit-trading-bot/pkg/types"
)

func init() {
	Register("breakout", func() Strategy { return NewBreakout() })
}

// Breakout trades channel breaks: a buy when the close clears the highest
// high of the preceding period, a sell when it loses the lowest low.
// Confidence scales with the break distance measured in ATR units.
type Breakout struct {
	Period int

	cache indicatorCache
}

// NewBreakout returns the strategy with a 20-candle channel.
func NewBreakout() *Breakout {
	return &Breakout{Period: 20}
}

func (s *Breakout) Name() string { return "breakout" }

func (s *Breakout) ValidateParameters() error {
	if s.Period < 2 {
		return boterrors.NewConfigurationError("strategy", "validate_parameters",
			"breakout period must be at least 2")
	}
	return nil
}

func (s *Breakout) CalculateIndicators(view *types.MarketDataView) (IndicatorSet, error) {
	set := IndicatorSet{
		"highest_high": indicators.Highest(view.High(), s.Period),
		"lowest_low":   indicators.Lowest(view.Low(), s.Period),
		"atr":          indicators.ATR(view.High(), view.Low(), view.Close(), s.Period),
	}
	s.cache.store(set)
	return set, nil
}

func (s *Breakout) GenerateSignal(view *types.MarketDataView, index int) Signal {
	if index < s.Period || index >= view.Len() {
		return HoldSignal()
	}

	// Channel values one candle back, so the current close is not part of
	// the range it has to break.
	channelHigh, ok1 := s.cache.value("highest_high", index-1)
	channelLow, ok2 := s.cache.value("lowest_low", index-1)
	if !ok1 || !ok2 {
		return HoldSignal()
	}

	closePrice := view.Close()[index]
	atr, atrReady := s.cache.value("atr", index)

	if closePrice > channelHigh {
		return Signal{
			Direction:  Buy,
			Confidence: s.breakConfidence(closePrice-channelHigh, atr, atrReady),
			StopLoss:   channelLow,
			Metadata: map[string]interface{}{
				"channel_high": channelHigh,
				"channel_low":  channelLow,
				"break_type":   "upper",
			},
		}
	}

	if closePrice < channelLow {
		return Signal{
			Direction:  Sell,
			Confidence: s.breakConfidence(channelLow-closePrice, atr, atrReady),
			StopLoss:   channelHigh,
			Metadata: map[string]interface{}{
				"channel_high": channelHigh,
				"channel_low":  channelLow,
				"break_type":   "lower",
			},
		}
	}

	return HoldSignal()
}

// breakConfidence maps break distance in ATR units into [0.5, 0.9].
func (s *Breakout) breakConfidence(distance, atr float64, atrReady bool) float64 {
	if !atrReady || atr <= 0 {
		return 0.5
	}
	confidence := 0.5 + 0.2*(distance/atr)
	if confidence > 0.9 {
		confidence = 0.9
	}
	return confidence
}

func (s *Breakout) RequiredBufferSize() int {
	return s.Period + 50
}
