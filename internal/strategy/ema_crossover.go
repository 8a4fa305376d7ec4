package strategy

import (
	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
	"github.com/earthskyorg/bybit-trading-bot/internal/indicators"
	"github.com/earthskyorg/bybit-trading-bot/pkg/types"
)

func init() {
	Register("ema_crossover", func() Strategy { return NewEMACrossover() })
}

// EMACrossover is the classic two-line cross: buy when the fast EMA moves
// above the slow EMA, sell when it moves below.
type EMACrossover struct {
	FastPeriod int
	SlowPeriod int

	cache indicatorCache
}

// NewEMACrossover returns the strategy with 9/21 periods.
func NewEMACrossover() *EMACrossover {
	return &EMACrossover{FastPeriod: 9, SlowPeriod: 21}
}

func (s *EMACrossover) Name() string { return "ema_crossover" }

func (s *EMACrossover) ValidateParameters() error {
	if s.FastPeriod < 1 {
		return boterrors.NewConfigurationError("strategy", "validate_parameters",
			"fast EMA period must be a positive integer")
	}
	if s.SlowPeriod <= s.FastPeriod {
		return boterrors.NewConfigurationError("strategy", "validate_parameters",
			"slow EMA period must be greater than the fast period")
	}
	return nil
}

func (s *EMACrossover) CalculateIndicators(view *types.MarketDataView) (IndicatorSet, error) {
	closes := view.Close()
	set := IndicatorSet{
		"ema_fast": indicators.EMA(closes, s.FastPeriod),
		"ema_slow": indicators.EMA(closes, s.SlowPeriod),
	}
	s.cache.store(set)
	return set, nil
}

func (s *EMACrossover) GenerateSignal(view *types.MarketDataView, index int) Signal {
	if index < 1 {
		return HoldSignal()
	}

	fast, ok1 := s.cache.value("ema_fast", index)
	slow, ok2 := s.cache.value("ema_slow", index)
	fastPrev, ok3 := s.cache.value("ema_fast", index-1)
	slowPrev, ok4 := s.cache.value("ema_slow", index-1)
	if !(ok1 && ok2 && ok3 && ok4) {
		return HoldSignal()
	}

	if fastPrev < slowPrev && fast > slow {
		return Signal{
			Direction:  Buy,
			Confidence: 0.7,
			Metadata: map[string]interface{}{
				"ema_fast": fast,
				"ema_slow": slow,
			},
		}
	}
	if fastPrev > slowPrev && fast < slow {
		return Signal{
			Direction:  Sell,
			Confidence: 0.7,
			Metadata: map[string]interface{}{
				"ema_fast": fast,
				"ema_slow": slow,
			},
		}
	}

	return HoldSignal()
}

func (s *EMACrossover) RequiredBufferSize() int {
	return s.SlowPeriod + 50
}
