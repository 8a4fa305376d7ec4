package strategy

import (
	"fmt"

	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
	"github.com/earthskyorg/bybit-trading-bot/internal/indicators"
	"github.com/earthskyorg/bybit-trading-bot/pkg/types"
)

func init() {
	Register("triple_ema", func() Strategy { return NewTripleEMA() })
}

// TripleEMA trades crossovers of a fast EMA against a medium and a slow
// EMA: a buy fires when the fast line moves from below both to above both
// between one candle and the next, a sell on the mirrored move.
type TripleEMA struct {
	FastPeriod   int
	MediumPeriod int
	SlowPeriod   int
	MinCandles   int

	cache indicatorCache
}

// NewTripleEMA returns the strategy with its default 5/20/50 periods.
func NewTripleEMA() *TripleEMA {
	return &TripleEMA{
		FastPeriod:   5,
		MediumPeriod: 20,
		SlowPeriod:   50,
		MinCandles:   4,
	}
}

func (s *TripleEMA) Name() string { return "triple_ema" }

func (s *TripleEMA) ValidateParameters() error {
	if s.FastPeriod < 1 || s.MediumPeriod < 1 || s.SlowPeriod < 1 {
		return boterrors.NewConfigurationError("strategy", "validate_parameters",
			"EMA periods must be positive integers")
	}
	if !(s.FastPeriod < s.MediumPeriod && s.MediumPeriod < s.SlowPeriod) {
		return boterrors.NewConfigurationError("strategy", "validate_parameters",
			fmt.Sprintf("EMA periods must be in ascending order: fast < medium < slow, got %d/%d/%d",
				s.FastPeriod, s.MediumPeriod, s.SlowPeriod))
	}
	return nil
}

func (s *TripleEMA) CalculateIndicators(view *types.MarketDataView) (IndicatorSet, error) {
	closes := view.Close()
	set := IndicatorSet{
		"ema_fast":   indicators.EMA(closes, s.FastPeriod),
		"ema_medium": indicators.EMA(closes, s.MediumPeriod),
		"ema_slow":   indicators.EMA(closes, s.SlowPeriod),
	}
	s.cache.store(set)
	return set, nil
}

func (s *TripleEMA) GenerateSignal(view *types.MarketDataView, index int) Signal {
	if index < s.MinCandles {
		return HoldSignal()
	}

	fast, ok1 := s.cache.value("ema_fast", index)
	medium, ok2 := s.cache.value("ema_medium", index)
	slow, ok3 := s.cache.value("ema_slow", index)
	fastPrev, ok4 := s.cache.value("ema_fast", index-1)
	mediumPrev, ok5 := s.cache.value("ema_medium", index-1)
	slowPrev, ok6 := s.cache.value("ema_slow", index-1)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return HoldSignal()
	}

	if fastPrev > mediumPrev && fastPrev > slowPrev && fast < medium && fast < slow {
		return Signal{
			Direction:  Sell,
			Confidence: 0.8,
			Metadata: map[string]interface{}{
				"ema_fast":       fast,
				"ema_medium":     medium,
				"ema_slow":       slow,
				"crossover_type": "bearish",
			},
		}
	}

	if fastPrev < mediumPrev && fastPrev < slowPrev && fast > medium && fast > slow {
		return Signal{
			Direction:  Buy,
			Confidence: 0.8,
			Metadata: map[string]interface{}{
				"ema_fast":       fast,
				"ema_medium":     medium,
				"ema_slow":       slow,
				"crossover_type": "bullish",
			},
		}
	}

	return HoldSignal()
}

func (s *TripleEMA) RequiredBufferSize() int {
	longest := s.FastPeriod
	if s.MediumPeriod > longest {
		longest = s.MediumPeriod
	}
	if s.SlowPeriod > longest {
		longest = s.SlowPeriod
	}
	return longest + 50
}
