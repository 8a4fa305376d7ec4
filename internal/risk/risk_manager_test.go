package risk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
)

func newTestManager(balance float64) *Manager {
	m := NewManager(DefaultLimits())
	m.SetAccountBalance(balance)
	return m
}

func TestCalculatePositionSize_RiskBeforeCap(t *testing.T) {
	m := newTestManager(10000)

	// Risk leg: 10000*0.02/100 = 2.0; value cap: 10000*0.1/2000 = 0.5.
	size, err := m.CalculatePositionSize("ETHUSDT", 2000, 1900, 0.02)

	require.NoError(t, err)
	assert.InDelta(t, 0.5, size, 1e-9)
}

func TestCalculatePositionSize_CapBinds(t *testing.T) {
	m := newTestManager(10000)

	// Risk leg alone would give (10000*0.02)/1000 = 0.2; the 10% value
	// cap at entry 50000 allows only 0.02.
	size, err := m.CalculatePositionSize("BTCUSDT", 50000, 49000, 0.02)

	require.NoError(t, err)
	assert.InDelta(t, 0.02, size, 1e-9)
}

func TestCalculatePositionSize_InvalidInputs(t *testing.T) {
	m := newTestManager(10000)

	cases := []struct {
		name  string
		entry float64
		stop  float64
	}{
		{"zero entry", 0, 49000},
		{"negative entry", -1, 49000},
		{"zero stop", 50000, 0},
		{"negative stop", 50000, -5},
		{"entry equals stop", 50000, 50000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.CalculatePositionSize("BTCUSDT", tc.entry, tc.stop, 0.02)
			require.Error(t, err)
			assert.True(t, boterrors.IsRiskManagementError(err))
		})
	}
}

func TestCalculatePositionSize_BelowMinimum(t *testing.T) {
	m := newTestManager(10)

	// 10*0.1/50000 is far below the 0.001 floor.
	_, err := m.CalculatePositionSize("BTCUSDT", 50000, 49000, 0.02)

	require.Error(t, err)
	assert.True(t, boterrors.IsInsufficientFundsError(err))
}

func TestCalculatePositionSize_UpperBounds(t *testing.T) {
	m := newTestManager(10000)

	entry, stop, riskPct := 320.0, 300.0, 0.02
	size, err := m.CalculatePositionSize("SOLUSDT", entry, stop, riskPct)

	require.NoError(t, err)
	assert.LessOrEqual(t, size, 10000*riskPct/20.0+1e-9)
	assert.LessOrEqual(t, size, 10000*0.1/entry+1e-9)
}

func TestCheckRiskLimits_PositionSizeViolation(t *testing.T) {
	m := newTestManager(10000)

	// Notional 2500 against a 1000 per-position cap.
	ok, violations := m.CheckRiskLimits("BTCUSDT", 0.05, 50000)

	assert.False(t, ok)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "Position size exceeds maximum allowed")
}

func TestCheckRiskLimits_ExposureViolation(t *testing.T) {
	m := newTestManager(10000)
	m.AddPosition(PositionRisk{Symbol: "ETHUSDT", Size: 1.5, EntryPrice: 3000, CurrentPrice: 3000})

	// Existing exposure 4500 plus candidate 900 breaches the 5000 cap
	// without breaching the 1000 per-position cap.
	ok, violations := m.CheckRiskLimits("BTCUSDT", 0.02, 45000)

	assert.False(t, ok)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "Total exposure would exceed maximum allowed")
}

func TestCheckRiskLimits_MaxPositionsReached(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxPositions = 5
	m := NewManager(limits)
	m.SetAccountBalance(100000)

	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT", "ADAUSDT"}
	for _, s := range symbols {
		m.AddPosition(PositionRisk{Symbol: s, Size: 0.001, EntryPrice: 100, CurrentPrice: 100})
	}

	ok, violations := m.CheckRiskLimits("DOGEUSDT", 0.001, 100)

	assert.False(t, ok)
	found := false
	for _, v := range violations {
		if strings.Contains(v, "Maximum number of positions reached") {
			found = true
		}
	}
	assert.True(t, found, "violations: %v", violations)
}

func TestCheckRiskLimits_DailyLossViolation(t *testing.T) {
	m := newTestManager(10000)
	m.UpdateDailyPnL(-600)

	// Trailing daily P&L -600 against the -500 limit.
	ok, violations := m.CheckRiskLimits("BTCUSDT", 0.001, 100)

	assert.False(t, ok)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "Daily loss limit exceeded")
}

func TestCheckRiskLimits_DrawdownViolation(t *testing.T) {
	m := newTestManager(10000)
	m.SetAccountBalance(8000)

	// Equity 8000 against a 10000 baseline is a 20% drawdown.
	ok, violations := m.CheckRiskLimits("BTCUSDT", 0.001, 100)

	assert.False(t, ok)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "Maximum drawdown exceeded")
}

func TestCheckRiskLimits_AllChecksRun(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxPositions = 1
	m := NewManager(limits)
	m.SetAccountBalance(10000)
	m.SetAccountBalance(8000)
	m.AddPosition(PositionRisk{Symbol: "ETHUSDT", Size: 1.4, EntryPrice: 3000, CurrentPrice: 3000})
	m.UpdateDailyPnL(-600)

	ok, violations := m.CheckRiskLimits("BTCUSDT", 0.05, 50000)

	assert.False(t, ok)
	// Every limit is breached at once; each rule reports independently.
	assert.Len(t, violations, 5)
}

func TestCheckRiskLimits_OKWhenWithinLimits(t *testing.T) {
	m := newTestManager(10000)

	ok, violations := m.CheckRiskLimits("BTCUSDT", 0.01, 50000)

	assert.True(t, ok)
	assert.Empty(t, violations)
}

func TestCheckRiskLimits_Idempotent(t *testing.T) {
	m := newTestManager(10000)
	m.SetAccountBalance(8000)
	m.AddPosition(PositionRisk{Symbol: "ETHUSDT", Size: 1.5, EntryPrice: 3000, CurrentPrice: 3000})
	m.UpdateDailyPnL(-600)

	ok1, v1 := m.CheckRiskLimits("BTCUSDT", 0.05, 50000)
	ok2, v2 := m.CheckRiskLimits("BTCUSDT", 0.05, 50000)

	assert.Equal(t, ok1, ok2)
	assert.Equal(t, v1, v2)
}

func TestAddRemoveRoundTrip(t *testing.T) {
	m := newTestManager(10000)
	before := m.CalculateRiskMetrics()

	m.AddPosition(PositionRisk{Symbol: "BTCUSDT", Size: 0.01, EntryPrice: 50000, CurrentPrice: 50000})
	during := m.CalculateRiskMetrics()
	assert.Equal(t, before.PositionCount+1, during.PositionCount)
	assert.InDelta(t, before.TotalExposure+500, during.TotalExposure, 1e-9)

	m.RemovePosition("BTCUSDT")
	after := m.CalculateRiskMetrics()
	assert.Equal(t, before.PositionCount, after.PositionCount)
	assert.Equal(t, before.TotalExposure, after.TotalExposure)
}

func TestUpdatePosition_LongAndShortPnL(t *testing.T) {
	m := newTestManager(10000)
	m.AddPosition(PositionRisk{Symbol: "BTCUSDT", Size: 0.1, EntryPrice: 50000, CurrentPrice: 50000})
	m.AddPosition(PositionRisk{Symbol: "ETHUSDT", Size: -0.5, EntryPrice: 100, CurrentPrice: 100})

	m.UpdatePosition("BTCUSDT", 51000)
	m.UpdatePosition("ETHUSDT", 90)

	long, ok := m.Position("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 100.0, long.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 0.01, long.RiskPercentage, 1e-9)

	short, ok := m.Position("ETHUSDT")
	require.True(t, ok)
	assert.InDelta(t, 5.0, short.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 0.0005, short.RiskPercentage, 1e-9)
}

func TestUpdatePosition_UnknownSymbolIsNoOp(t *testing.T) {
	m := newTestManager(10000)

	m.UpdatePosition("BTCUSDT", 51000)

	assert.False(t, m.HasPosition("BTCUSDT"))
}

func TestSyncPosition_RebasesSizeAndEntry(t *testing.T) {
	m := newTestManager(10000)
	m.AddPosition(PositionRisk{
		Symbol: "BTCUSDT", Size: 1.0, EntryPrice: 50000, CurrentPrice: 50000,
		StopLossDistance: 1000, TakeProfitDistance: 2000,
	})

	m.SyncPosition("BTCUSDT", 0.4, 50500, 50100)

	p, ok := m.Position("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 0.4, p.Size, 1e-9)
	assert.InDelta(t, 50500.0, p.EntryPrice, 1e-9)
	assert.InDelta(t, 50100.0, p.CurrentPrice, 1e-9)
	assert.InDelta(t, 0.4*(50100-50500), p.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 160.0/10000, p.RiskPercentage, 1e-9)
	assert.InDelta(t, 1000.0, p.StopLossDistance, 1e-9, "distances recorded at open survive the re-sync")
	assert.InDelta(t, 2000.0, p.TakeProfitDistance, 1e-9)
}

func TestSyncPosition_UnknownSymbolIsNoOp(t *testing.T) {
	m := newTestManager(10000)

	m.SyncPosition("BTCUSDT", 1.0, 50000, 50000)

	assert.False(t, m.HasPosition("BTCUSDT"))
}

func TestShouldClosePosition_StopLossBoundaryExclusive(t *testing.T) {
	m := newTestManager(10000)
	m.AddPosition(PositionRisk{Symbol: "BTCUSDT", Size: 0.1, EntryPrice: 50000, CurrentPrice: 50000})

	// Loss of exactly 200 sits on the -2% boundary and stays open.
	m.UpdatePosition("BTCUSDT", 48000)
	closeIt, reason := m.ShouldClosePosition("BTCUSDT")
	assert.False(t, closeIt)
	assert.Equal(t, "Position within risk limits", reason)

	// One more tick down crosses it.
	m.UpdatePosition("BTCUSDT", 47999)
	closeIt, reason = m.ShouldClosePosition("BTCUSDT")
	assert.True(t, closeIt)
	assert.Equal(t, "Stop loss triggered", reason)
}

func TestShouldClosePosition_TakeProfitBoundaryExclusive(t *testing.T) {
	m := newTestManager(10000)
	m.AddPosition(PositionRisk{Symbol: "BTCUSDT", Size: 0.1, EntryPrice: 50000, CurrentPrice: 50000})

	// Gain of exactly 400 sits on the +4% boundary and stays open.
	m.UpdatePosition("BTCUSDT", 54000)
	closeIt, reason := m.ShouldClosePosition("BTCUSDT")
	assert.False(t, closeIt)
	assert.Equal(t, "Position within risk limits", reason)

	m.UpdatePosition("BTCUSDT", 54001)
	closeIt, reason = m.ShouldClosePosition("BTCUSDT")
	assert.True(t, closeIt)
	assert.Equal(t, "Take profit reached", reason)
}

func TestShouldClosePosition_RiskTooHigh(t *testing.T) {
	m := newTestManager(10000)
	// Risk percentage recorded against an older, much smaller balance;
	// P&L itself is inside both the stop and take-profit bands.
	m.AddPosition(PositionRisk{
		Symbol:         "BTCUSDT",
		Size:           0.1,
		EntryPrice:     50000,
		CurrentPrice:   50000,
		UnrealizedPnL:  60,
		RiskPercentage: 0.06,
	})

	closeIt, reason := m.ShouldClosePosition("BTCUSDT")

	assert.True(t, closeIt)
	assert.Equal(t, "Position risk too high", reason)
}

func TestShouldClosePosition_UnknownSymbol(t *testing.T) {
	m := newTestManager(10000)

	closeIt, reason := m.ShouldClosePosition("BTCUSDT")

	assert.False(t, closeIt)
	assert.Equal(t, "Position not found", reason)
}

func TestDrawdown_BoundsAndBaseline(t *testing.T) {
	m := newTestManager(10000)

	// Equity above the baseline: no drawdown.
	m.SetAccountBalance(12000)
	assert.Zero(t, m.CalculateRiskMetrics().Drawdown)

	// Equity below the baseline.
	m.SetAccountBalance(9000)
	dd := m.CalculateRiskMetrics().Drawdown
	assert.InDelta(t, 0.1, dd, 1e-9)
	assert.GreaterOrEqual(t, dd, 0.0)
	assert.LessOrEqual(t, dd, 1.0)

	// Unrealized gains lift equity back over the baseline.
	m.AddPosition(PositionRisk{Symbol: "BTCUSDT", Size: 0.1, EntryPrice: 50000, CurrentPrice: 50000})
	m.UpdatePosition("BTCUSDT", 60001)
	assert.Zero(t, m.CalculateRiskMetrics().Drawdown)
}

func TestDrawdown_ZeroWithoutBaseline(t *testing.T) {
	m := NewManager(DefaultLimits())

	assert.Zero(t, m.CalculateRiskMetrics().Drawdown)
}

func TestInitialBalanceFixedOnFirstNonZero(t *testing.T) {
	m := NewManager(DefaultLimits())

	m.SetAccountBalance(0)
	m.SetAccountBalance(10000)
	m.SetAccountBalance(7000)

	report := m.GetRiskReport()
	assert.InDelta(t, 10000.0, report.InitialBalance, 1e-9)
	assert.InDelta(t, 7000.0, report.AccountBalance, 1e-9)
}

func TestDailyPnL_TrailingWindow(t *testing.T) {
	m := newTestManager(10000)

	// Old losses scroll out of the 24-sample window.
	for i := 0; i < 720; i++ {
		m.UpdateDailyPnL(-1000)
	}
	for i := 0; i < 24; i++ {
		m.UpdateDailyPnL(1)
	}

	assert.InDelta(t, 24.0, m.CalculateRiskMetrics().DailyPnL, 1e-9)
}

func TestRiskScore_Composition(t *testing.T) {
	m := newTestManager(10000)
	m.AddPosition(PositionRisk{Symbol: "BTCUSDT", Size: 0.2, EntryPrice: 20000, CurrentPrice: 20000})
	m.UpdateDailyPnL(-300)

	metrics := m.CalculateRiskMetrics()

	// Exposure ratio 0.4 caps at 30 points; daily loss 3% adds 3; no
	// drawdown.
	assert.InDelta(t, 33.0, metrics.Score, 1e-9)
	assert.Equal(t, RiskLevelMedium, metrics.Level)
	assert.InDelta(t, 4000.0, metrics.TotalExposure, 1e-9)
	assert.Equal(t, 1, metrics.PositionCount)
}

func TestRiskLevelFromScore_Thresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  RiskLevel
	}{
		{0, RiskLevelLow},
		{29.99, RiskLevelLow},
		{30, RiskLevelMedium},
		{59.99, RiskLevelMedium},
		{60, RiskLevelHigh},
		{79.99, RiskLevelHigh},
		{80, RiskLevelCritical},
		{100, RiskLevelCritical},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RiskLevelFromScore(tc.score), "score %v", tc.score)
	}
}

func TestGetRiskReport_Snapshot(t *testing.T) {
	m := newTestManager(10000)
	m.AddPosition(PositionRisk{Symbol: "ETHUSDT", Size: 1, EntryPrice: 3000, CurrentPrice: 3000})
	m.AddPosition(PositionRisk{Symbol: "BTCUSDT", Size: 0.01, EntryPrice: 50000, CurrentPrice: 50000})

	report := m.GetRiskReport()

	assert.InDelta(t, 10000.0, report.AccountBalance, 1e-9)
	assert.InDelta(t, 3500.0, report.TotalExposure, 1e-9)
	assert.InDelta(t, 35.0, report.ExposurePercentage, 1e-9)
	assert.Equal(t, 2, report.PositionCount)
	require.Len(t, report.Positions, 2)
	// Sorted by symbol for stable rendering.
	assert.Equal(t, "BTCUSDT", report.Positions[0].Symbol)
	assert.Equal(t, "ETHUSDT", report.Positions[1].Symbol)
	assert.Equal(t, DefaultLimits(), report.Limits)
	assert.False(t, report.Timestamp.IsZero())
}
