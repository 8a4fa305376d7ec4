package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stochCacheAt injects indicator values at index 49 (prev) and 50 (cur).
func stochCacheAt(s *StochRSIMACD, prev, cur map[string]float64) {
	set := IndicatorSet{}
	for _, name := range []string{"rsi", "stoch_k", "stoch_d", "macd", "macd_signal", "macd_histogram"} {
		set[name] = sparseSeries(52, map[int]float64{49: prev[name], 50: cur[name]})
	}
	s.cache.store(set)
}

func TestStochRSIMACD_ValidateParameters(t *testing.T) {
	require.NoError(t, NewStochRSIMACD().ValidateParameters())

	s := NewStochRSIMACD()
	s.StochDPeriod = s.StochKPeriod + 1
	assert.Error(t, s.ValidateParameters())

	s = NewStochRSIMACD()
	s.RSIPeriod = 1
	assert.Error(t, s.ValidateParameters())
}

func TestStochRSIMACD_AllFourBuyConditions(t *testing.T) {
	s := NewStochRSIMACD()
	stochCacheAt(s,
		map[string]float64{"stoch_k": 10, "stoch_d": 12, "macd": 0.4, "macd_signal": 0.5, "rsi": 55},
		map[string]float64{"stoch_k": 18, "stoch_d": 15, "macd": 1.0, "macd_signal": 0.5, "rsi": 55},
	)

	sig := s.GenerateSignal(viewFromCloses(t, make([]float64, 52)), 50)
	assert.Equal(t, Buy, sig.Direction)
	assert.InDelta(t, 0.9, sig.Confidence, 1e-9, "four conditions cap at 0.9")
	assert.Equal(t, 4, sig.Metadata["buy_score"])
}

func TestStochRSIMACD_ThreeOfFourBuy(t *testing.T) {
	s := NewStochRSIMACD()
	// RSI below the midline knocks out one condition.
	stochCacheAt(s,
		map[string]float64{"stoch_k": 10, "stoch_d": 12, "macd": 0.4, "macd_signal": 0.5, "rsi": 45},
		map[string]float64{"stoch_k": 18, "stoch_d": 15, "macd": 1.0, "macd_signal": 0.5, "rsi": 45},
	)

	sig := s.GenerateSignal(viewFromCloses(t, make([]float64, 52)), 50)
	assert.Equal(t, Buy, sig.Direction)
	assert.InDelta(t, 0.8, sig.Confidence, 1e-9)
}

func TestStochRSIMACD_TwoConditionsHold(t *testing.T) {
	s := NewStochRSIMACD()
	// No MACD cross and RSI below midline: only two buy conditions left.
	stochCacheAt(s,
		map[string]float64{"stoch_k": 10, "stoch_d": 12, "macd": 0.6, "macd_signal": 0.5, "rsi": 45},
		map[string]float64{"stoch_k": 18, "stoch_d": 15, "macd": 1.0, "macd_signal": 0.5, "rsi": 45},
	)

	sig := s.GenerateSignal(viewFromCloses(t, make([]float64, 52)), 50)
	assert.Equal(t, Hold, sig.Direction)
}

func TestStochRSIMACD_SellSide(t *testing.T) {
	s := NewStochRSIMACD()
	// Overbought zone, RSI under 50 and a bearish MACD cross.
	stochCacheAt(s,
		map[string]float64{"stoch_k": 85, "stoch_d": 82, "macd": 0.6, "macd_signal": 0.5, "rsi": 45},
		map[string]float64{"stoch_k": 85, "stoch_d": 82, "macd": 0.4, "macd_signal": 0.5, "rsi": 45},
	)

	sig := s.GenerateSignal(viewFromCloses(t, make([]float64, 52)), 50)
	assert.Equal(t, Sell, sig.Direction)
	assert.InDelta(t, 0.8, sig.Confidence, 1e-9)
	assert.Equal(t, 3, sig.Metadata["sell_score"])
}

func TestStochRSIMACD_HoldBeforeMinIndex(t *testing.T) {
	s := NewStochRSIMACD()
	sig := s.GenerateSignal(viewFromCloses(t, make([]float64, 52)), stochRSIMACDMinIndex-1)
	assert.Equal(t, Hold, sig.Direction)
}

func TestStochRSIMACD_HoldWhenIndicatorsNotReady(t *testing.T) {
	s := NewStochRSIMACD()
	view := viewFromCloses(t, make([]float64, 52))
	_, err := s.CalculateIndicators(view)
	require.NoError(t, err)

	// Flat zero closes leave RSI undefined at every index.
	assert.Equal(t, Hold, s.GenerateSignal(view, 51).Direction)
}

func TestCountTrue(t *testing.T) {
	assert.Equal(t, 0, countTrue())
	assert.Equal(t, 2, countTrue(true, false, true))
}

func TestConfidenceFromScore(t *testing.T) {
	assert.InDelta(t, 0.8, confidenceFromScore(3), 1e-9)
	assert.InDelta(t, 0.9, confidenceFromScore(4), 1e-9)
	assert.Equal(t, 0.9, confidenceFromScore(10))
}
