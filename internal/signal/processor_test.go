package signal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earthskyorg/bybit-trading-bot/internal/risk"
	"github.com/earthskyorg/bybit-trading-bot/internal/strategy"
	"github.com/earthskyorg/bybit-trading-bot/pkg/types"
)

func newLowRiskManager(t *testing.T) *risk.Manager {
	t.Helper()
	m := risk.NewManager(risk.DefaultLimits())
	m.SetAccountBalance(10000)
	return m
}

// candleView builds a one-candle window stamped at ts.
func candleView(t *testing.T, ts time.Time, price float64) *types.MarketDataView {
	t.Helper()
	view, err := types.NewMarketDataView("BTCUSDT", []types.OHLCV{{
		Open: price, High: price, Low: price, Close: price, Volume: 100, Timestamp: ts,
	}})
	require.NoError(t, err)
	return view
}

func buySignal(confidence float64) strategy.Signal {
	return strategy.Signal{Direction: strategy.Buy, Confidence: confidence}
}

func TestGate_RejectsBelowThreshold(t *testing.T) {
	p := NewProcessor(0.7, newLowRiskManager(t))

	assert.False(t, p.ShouldActOnSignal("BTCUSDT", buySignal(0.69)))
	assert.True(t, p.ShouldActOnSignal("BTCUSDT", buySignal(0.7)))
}

func TestGate_RejectsDuplicateDirection(t *testing.T) {
	p := NewProcessor(0.6, newLowRiskManager(t))

	require.True(t, p.ShouldActOnSignal("BTCUSDT", buySignal(0.8)))

	// Same direction, confidence moved by less than 0.1: duplicate.
	assert.False(t, p.ShouldActOnSignal("BTCUSDT", buySignal(0.85)))

	// Large enough confidence jump counts as a new signal.
	assert.True(t, p.ShouldActOnSignal("BTCUSDT", buySignal(0.95)))

	// Opposite direction always counts as new.
	assert.True(t, p.ShouldActOnSignal("BTCUSDT", strategy.Signal{Direction: strategy.Sell, Confidence: 0.95}))
}

func TestGate_DuplicateTrackingIsPerSymbol(t *testing.T) {
	p := NewProcessor(0.6, newLowRiskManager(t))

	require.True(t, p.ShouldActOnSignal("BTCUSDT", buySignal(0.8)))
	assert.True(t, p.ShouldActOnSignal("ETHUSDT", buySignal(0.8)))
}

func TestGate_RejectsOnElevatedRisk(t *testing.T) {
	rm := risk.NewManager(risk.DefaultLimits())
	rm.SetAccountBalance(10000)
	rm.SetAccountBalance(5000)
	rm.AddPosition(risk.PositionRisk{Symbol: "ETHUSDT", Size: 1, EntryPrice: 2000, CurrentPrice: 2000})
	require.Equal(t, risk.RiskLevelHigh, rm.CalculateRiskMetrics().Level)

	p := NewProcessor(0.6, rm)

	assert.False(t, p.ShouldActOnSignal("BTCUSDT", buySignal(0.9)))
}

func TestGate_RejectsWhenPositionOpen(t *testing.T) {
	rm := newLowRiskManager(t)
	rm.AddPosition(risk.PositionRisk{Symbol: "BTCUSDT", Size: 0.001, EntryPrice: 100, CurrentPrice: 100})

	p := NewProcessor(0.6, rm)

	assert.False(t, p.ShouldActOnSignal("BTCUSDT", buySignal(0.9)))
	assert.True(t, p.ShouldActOnSignal("ETHUSDT", buySignal(0.9)))
}

func TestGate_MonotonicInThreshold(t *testing.T) {
	stream := []strategy.Signal{
		buySignal(0.55),
		{Direction: strategy.Sell, Confidence: 0.72},
		buySignal(0.91),
		{Direction: strategy.Sell, Confidence: 0.64},
	}

	run := func(threshold float64) []bool {
		p := NewProcessor(threshold, newLowRiskManager(t))
		out := make([]bool, len(stream))
		for i, sig := range stream {
			out[i] = p.ShouldActOnSignal("BTCUSDT", sig)
		}
		return out
	}

	loose := run(0.5)
	strict := run(0.8)

	for i := range stream {
		if strict[i] {
			assert.True(t, loose[i], "signal %d accepted at 0.8 but not at 0.5", i)
		}
	}
}

func TestProcessSignal_CountsAndRecordsHistory(t *testing.T) {
	p := NewProcessor(0.7, newLowRiskManager(t))
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	acted := p.ProcessSignal(ctx, "BTCUSDT", buySignal(0.8), candleView(t, ts, 50000))
	assert.True(t, acted)

	acted = p.ProcessSignal(ctx, "BTCUSDT", buySignal(0.5), candleView(t, ts.Add(time.Hour), 50100))
	assert.False(t, acted)

	stats := p.GetStats()
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.ActedUpon)
	assert.InDelta(t, 0.5, stats.ActionRate, 1e-9)
	assert.Equal(t, 2, stats.TotalSignals)
	assert.Equal(t, 1, stats.SymbolsTracked)

	history := p.GetSignalHistory("BTCUSDT", 0)
	require.Len(t, history, 2)
	assert.Equal(t, strategy.Buy, history[0].Direction)
	assert.InDelta(t, 50000.0, history[0].Price, 1e-9)
	assert.Equal(t, ts, history[0].Timestamp)
}

func TestProcessSignal_HistoryCapEviction(t *testing.T) {
	p := NewProcessor(0.99, newLowRiskManager(t))
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < historyCap+7; i++ {
		view := candleView(t, base.Add(time.Duration(i)*time.Minute), 100+float64(i))
		p.ProcessSignal(ctx, "BTCUSDT", buySignal(0.1), view)
	}

	history := p.GetSignalHistory("BTCUSDT", 0)
	require.Len(t, history, historyCap)
	// Oldest entries were evicted; the first survivor is record 7.
	assert.InDelta(t, 107.0, history[0].Price, 1e-9)
}

func TestGetSignalHistory_Limit(t *testing.T) {
	p := NewProcessor(0.99, newLowRiskManager(t))
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		p.ProcessSignal(ctx, "BTCUSDT", buySignal(0.1), candleView(t, base.Add(time.Duration(i)*time.Minute), float64(i)))
	}

	history := p.GetSignalHistory("BTCUSDT", 3)
	require.Len(t, history, 3)
	assert.InDelta(t, 7.0, history[0].Price, 1e-9)
	assert.InDelta(t, 9.0, history[2].Price, 1e-9)
}

func TestGetQualityMetrics(t *testing.T) {
	p := NewProcessor(0.99, newLowRiskManager(t))
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	p.ProcessSignal(ctx, "BTCUSDT", buySignal(0.8), candleView(t, base, 100))
	p.ProcessSignal(ctx, "BTCUSDT", buySignal(0.8), candleView(t, base.Add(time.Hour), 101))
	p.ProcessSignal(ctx, "BTCUSDT", strategy.Signal{Direction: strategy.Sell, Confidence: 0.9}, candleView(t, base.Add(2*time.Hour), 102))

	metrics := p.GetQualityMetrics()
	m, ok := metrics["BTCUSDT"]
	require.True(t, ok)

	assert.InDelta(t, (0.8+0.8+0.9)/3, m.AverageConfidence, 1e-9)
	assert.InDelta(t, 1.5, m.SignalsPerHour, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.Consistency, 1e-9)
	assert.Equal(t, 3, m.TotalSignals)
	assert.Equal(t, 2, m.BuySignals)
	assert.Equal(t, 1, m.SellSignals)
}

func TestGetLastSignal_OnlyRecordedOnAcceptance(t *testing.T) {
	p := NewProcessor(0.7, newLowRiskManager(t))

	_, ok := p.GetLastSignal("BTCUSDT")
	assert.False(t, ok)

	// Rejected signals leave the cache untouched.
	require.False(t, p.ShouldActOnSignal("BTCUSDT", buySignal(0.5)))
	_, ok = p.GetLastSignal("BTCUSDT")
	assert.False(t, ok)

	require.True(t, p.ShouldActOnSignal("BTCUSDT", buySignal(0.8)))
	last, ok := p.GetLastSignal("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 0.8, last.Confidence, 1e-9)
}

func TestClearHistory(t *testing.T) {
	p := NewProcessor(0.7, newLowRiskManager(t))
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	p.ProcessSignal(ctx, "BTCUSDT", buySignal(0.8), candleView(t, ts, 100))
	p.ProcessSignal(ctx, "ETHUSDT", buySignal(0.8), candleView(t, ts, 100))

	p.ClearHistory("BTCUSDT")
	assert.Empty(t, p.GetSignalHistory("BTCUSDT", 0))
	assert.Len(t, p.GetSignalHistory("ETHUSDT", 0), 1)

	p.ClearHistory("")
	assert.Equal(t, 0, p.GetStats().SymbolsTracked)
}
