package strategy

import (
	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
	"github.com/earthskyorg/bybit-trading-bot/internal/indicators"
	"github.com/earthskyorg/bybit-trading-bot/pkg/types"
)

func init() {
	Register("stoch_rsi_macd", func() Strategy { return NewStochRSIMACD() })
}

// stochRSIMACDMinIndex is how much history the combined indicator stack
// needs before its conditions are trustworthy.
const stochRSIMACDMinIndex = 50

// StochRSIMACD confirms stochastic-zone signals with RSI midline position,
// a MACD crossover and a %K/%D crossover. Three of the four conditions on
// one side fire a signal; confidence grows with the number of conditions
// met.
type StochRSIMACD struct {
	RSIPeriod    int
	StochKPeriod int
	StochDPeriod int
	MACDFast     int
	MACDSlow     int
	MACDSignal   int

	RSIOversold     float64
	RSIOverbought   float64
	StochOversold   float64
	StochOverbought float64

	cache indicatorCache
}

// NewStochRSIMACD returns the strategy with its standard parameters.
func NewStochRSIMACD() *StochRSIMACD {
	return &StochRSIMACD{
		RSIPeriod:       14,
		StochKPeriod:    14,
		StochDPeriod:    3,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		RSIOversold:     30,
		RSIOverbought:   70,
		StochOversold:   20,
		StochOverbought: 80,
	}
}

func (s *StochRSIMACD) Name() string { return "stoch_rsi_macd" }

func (s *StochRSIMACD) ValidateParameters() error {
	if s.RSIPeriod < 2 || s.StochKPeriod < 2 || s.StochDPeriod < 1 {
		return boterrors.NewConfigurationError("strategy", "validate_parameters",
			"RSI and stochastic periods must be positive integers")
	}
	if s.StochDPeriod > s.StochKPeriod {
		return boterrors.NewConfigurationError("strategy", "validate_parameters",
			"stochastic D period must be <= K period")
	}
	return nil
}

func (s *StochRSIMACD) CalculateIndicators(view *types.MarketDataView) (IndicatorSet, error) {
	closes := view.Close()
	stochK, stochD := indicators.Stochastic(view.High(), view.Low(), closes, s.StochKPeriod, s.StochDPeriod)
	macdLine, signalLine, histogram := indicators.MACD(closes, s.MACDFast, s.MACDSlow, s.MACDSignal)

	set := IndicatorSet{
		"rsi":            indicators.RSI(closes, s.RSIPeriod),
		"stoch_k":        stochK,
		"stoch_d":        stochD,
		"macd":           macdLine,
		"macd_signal":    signalLine,
		"macd_histogram": histogram,
	}
	s.cache.store(set)
	return set, nil
}

func (s *StochRSIMACD) GenerateSignal(view *types.MarketDataView, index int) Signal {
	if index < stochRSIMACDMinIndex {
		return HoldSignal()
	}

	rsi, ok1 := s.cache.value("rsi", index)
	stochK, ok2 := s.cache.value("stoch_k", index)
	stochD, ok3 := s.cache.value("stoch_d", index)
	macd, ok4 := s.cache.value("macd", index)
	macdSignal, ok5 := s.cache.value("macd_signal", index)
	stochKPrev, ok6 := s.cache.value("stoch_k", index-1)
	stochDPrev, ok7 := s.cache.value("stoch_d", index-1)
	macdPrev, ok8 := s.cache.value("macd", index-1)
	macdSignalPrev, ok9 := s.cache.value("macd_signal", index-1)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7 && ok8 && ok9) {
		return HoldSignal()
	}

	buyScore := countTrue(
		stochK < s.StochOversold && stochD < s.StochOversold,
		rsi > 50,
		macd > macdSignal && macdPrev < macdSignalPrev,
		stochK > stochD && stochKPrev < stochDPrev,
	)
	sellScore := countTrue(
		stochK > s.StochOverbought && stochD > s.StochOverbought,
		rsi < 50,
		macd < macdSignal && macdPrev > macdSignalPrev,
		stochK < stochD && stochKPrev > stochDPrev,
	)

	if buyScore >= 3 {
		return Signal{
			Direction:  Buy,
			Confidence: confidenceFromScore(buyScore),
			Metadata: map[string]interface{}{
				"rsi":         rsi,
				"stoch_k":     stochK,
				"stoch_d":     stochD,
				"macd":        macd,
				"macd_signal": macdSignal,
				"buy_score":   buyScore,
			},
		}
	}
	if sellScore >= 3 {
		return Signal{
			Direction:  Sell,
			Confidence: confidenceFromScore(sellScore),
			Metadata: map[string]interface{}{
				"rsi":         rsi,
				"stoch_k":     stochK,
				"stoch_d":     stochD,
				"macd":        macd,
				"macd_signal": macdSignal,
				"sell_score":  sellScore,
			},
		}
	}

	return HoldSignal()
}

func (s *StochRSIMACD) RequiredBufferSize() int {
	longest := s.RSIPeriod
	if s.StochKPeriod > longest {
		longest = s.StochKPeriod
	}
	if s.MACDSlow > longest {
		longest = s.MACDSlow
	}
	return longest + 50
}

func countTrue(conditions ...bool) int {
	n := 0
	for _, c := range conditions {
		if c {
			n++
		}
	}
	return n
}

func confidenceFromScore(score int) float64 {
	confidence := 0.5 + float64(score)*0.1
	if confidence > 0.9 {
		confidence = 0.9
	}
	return confidence
}
