package reporting

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/earthskyorg/bybit-trading-bot/internal/exchange"
	"github.com/earthskyorg/bybit-trading-bot/internal/position"
	"github.com/earthskyorg/bybit-trading-bot/internal/risk"
)

func sampleReport() SessionReport {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return SessionReport{
		StartedAt: start,
		EndedAt:   start.Add(2 * time.Hour),
		Strategy:  "triple_ema",
		Symbols:   []string{"BTCUSDT", "ETHUSDT"},
		Performance: position.PerformanceMetrics{
			Balance:      10050,
			RealizedPnL:  50,
			ClosedTrades: 2,
			WinRate:      0.5,
		},
		Risk: risk.Report{
			Score:         12.5,
			Level:         risk.RiskLevelLow,
			TotalExposure: 1500,
			Drawdown:      0.01,
		},
		Trades: []position.ClosedTrade{
			{
				Symbol:     "BTCUSDT",
				Side:       exchange.SideBuy,
				Size:       0.5,
				EntryPrice: 42000,
				ExitPrice:  42100,
				PnL:        50,
				Reason:     "Take profit reached",
				OpenedAt:   start,
				ClosedAt:   start.Add(time.Hour),
			},
		},
	}
}

func TestSessionReport_Duration(t *testing.T) {
	r := sampleReport()
	assert.Equal(t, 2*time.Hour, r.Duration())
}

func TestFprintSession(t *testing.T) {
	var buf bytes.Buffer
	FprintSession(&buf, sampleReport())

	out := buf.String()
	assert.Contains(t, out, "SESSION SUMMARY")
	assert.Contains(t, out, "triple_ema")
	assert.Contains(t, out, "CLOSED TRADES")
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "Take profit reached")
	assert.Contains(t, out, "RISK")
	assert.Contains(t, out, "low")
}

func TestFprintSession_OpenPositions(t *testing.T) {
	r := sampleReport()
	r.Risk.Positions = []risk.PositionRisk{
		{Symbol: "ETHUSDT", Size: 1.5, EntryPrice: 2500, CurrentPrice: 2550, UnrealizedPnL: 75},
	}

	var buf bytes.Buffer
	FprintSession(&buf, r)

	out := buf.String()
	assert.Contains(t, out, "OPEN POSITIONS")
	assert.Contains(t, out, "ETHUSDT")
	assert.Contains(t, out, "75.0000")
}

func TestFprintSession_NoTrades(t *testing.T) {
	r := sampleReport()
	r.Trades = nil

	var buf bytes.Buffer
	FprintSession(&buf, r)
	assert.NotContains(t, buf.String(), "CLOSED TRADES")
}

func TestWriteWorkbook(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteWorkbook(filepath.Join(dir, "reports"), sampleReport())
	require.NoError(t, err)

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.ElementsMatch(t, []string{summarySheet, tradesSheet}, fx.GetSheetList())

	strategy, err := fx.GetCellValue(summarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "triple_ema", strategy)

	symbol, err := fx.GetCellValue(tradesSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", symbol)
}
