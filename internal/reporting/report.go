// Package reporting renders the session's outcome: rounded console
// tables at startup and shutdown, plus an optional Excel workbook with
// the closed-trade log.
package reporting

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/earthskyorg/bybit-trading-bot/internal/position"
	"github.com/earthskyorg/bybit-trading-bot/internal/risk"
)

// SessionReport gathers everything worth showing when a session ends.
type SessionReport struct {
	StartedAt   time.Time
	EndedAt     time.Time
	Strategy    string
	Symbols     []string
	Performance position.PerformanceMetrics
	Risk        risk.Report
	Trades      []position.ClosedTrade
}

// Duration is the session's wall-clock length.
func (r SessionReport) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// PrintStartupBanner shows the resolved configuration before the first
// sweep.
func PrintStartupBanner(strategyName, environment string, symbols []string, dryRun bool) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("TRADING BOT")
	t.SetStyle(table.StyleRounded)

	mode := "live"
	if dryRun {
		mode = "dry run"
	}
	t.AppendRows([]table.Row{
		{"Strategy", strategyName},
		{"Environment", environment},
		{"Symbols", fmt.Sprintf("%d", len(symbols))},
		{"Mode", mode},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 14, Align: text.AlignLeft},
		{Number: 2, WidthMin: 24, Align: text.AlignLeft},
	})
	t.Render()
	fmt.Println()
}

// PrintSession renders the full session report to stdout.
func PrintSession(r SessionReport) {
	FprintSession(os.Stdout, r)
}

// FprintSession renders the session summary, trade log and risk tables.
func FprintSession(w io.Writer, r SessionReport) {
	summary := table.NewWriter()
	summary.SetOutputMirror(w)
	summary.SetTitle("SESSION SUMMARY")
	summary.SetStyle(table.StyleRounded)
	summary.AppendRows([]table.Row{
		{"Strategy", r.Strategy},
		{"Duration", r.Duration().Round(time.Second).String()},
		{"Symbols", len(r.Symbols)},
		{"Balance", fmt.Sprintf("%.2f", r.Performance.Balance)},
		{"Realized P&L", fmt.Sprintf("%.4f", r.Performance.RealizedPnL)},
		{"Unrealized P&L", fmt.Sprintf("%.4f", r.Performance.UnrealizedPnL)},
		{"Closed trades", r.Performance.ClosedTrades},
		{"Open positions", r.Performance.ActivePositions},
		{"Win rate", fmt.Sprintf("%.1f%%", r.Performance.WinRate*100)},
	})
	summary.Render()
	fmt.Fprintln(w)

	if len(r.Trades) > 0 {
		trades := table.NewWriter()
		trades.SetOutputMirror(w)
		trades.SetTitle("CLOSED TRADES")
		trades.SetStyle(table.StyleRounded)
		trades.AppendHeader(table.Row{"Symbol", "Side", "Size", "Entry", "Exit", "P&L", "Reason"})
		for _, trade := range r.Trades {
			trades.AppendRow(table.Row{
				trade.Symbol,
				string(trade.Side),
				fmt.Sprintf("%.6f", trade.Size),
				fmt.Sprintf("%.4f", trade.EntryPrice),
				fmt.Sprintf("%.4f", trade.ExitPrice),
				fmt.Sprintf("%.4f", trade.PnL),
				trade.Reason,
			})
		}
		trades.Render()
		fmt.Fprintln(w)
	}

	if len(r.Risk.Positions) > 0 {
		open := table.NewWriter()
		open.SetOutputMirror(w)
		open.SetTitle("OPEN POSITIONS")
		open.SetStyle(table.StyleRounded)
		open.AppendHeader(table.Row{"Symbol", "Size", "Entry", "Current", "P&L"})
		for _, p := range r.Risk.Positions {
			open.AppendRow(table.Row{
				p.Symbol,
				fmt.Sprintf("%.6f", p.Size),
				fmt.Sprintf("%.4f", p.EntryPrice),
				fmt.Sprintf("%.4f", p.CurrentPrice),
				fmt.Sprintf("%.4f", p.UnrealizedPnL),
			})
		}
		open.Render()
		fmt.Fprintln(w)
	}

	riskTable := table.NewWriter()
	riskTable.SetOutputMirror(w)
	riskTable.SetTitle("RISK")
	riskTable.SetStyle(table.StyleRounded)
	riskTable.AppendRows([]table.Row{
		{"Score", fmt.Sprintf("%.1f", r.Risk.Score)},
		{"Level", r.Risk.Level.String()},
		{"Exposure", fmt.Sprintf("%.2f (%.1f%%)", r.Risk.TotalExposure, r.Risk.ExposurePercentage)},
		{"Drawdown", fmt.Sprintf("%.2f%%", r.Risk.Drawdown*100)},
		{"Daily P&L", fmt.Sprintf("%.4f", r.Risk.DailyPnL)},
	})
	riskTable.Render()
}
