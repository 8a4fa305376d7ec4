// Package position owns the live position lifecycle: opening from
// accepted signals, refreshing from account snapshots and closing on
// risk-manager verdicts. The Risk Manager mirrors every tracked
// position; this package keeps the two maps in step.
package position

import (
	"time"

	"github.com/earthskyorg/bybit-trading-bot/internal/exchange"
)

// TrackedPosition is the bot's own record of an open position. Size is
// signed: positive long, negative short. Side carries the venue spelling
// of the opening order.
type TrackedPosition struct {
	Symbol        string
	Side          exchange.Side
	Size          float64
	EntryPrice    float64
	CurrentPrice  float64
	UnrealizedPnL float64
	OpenedAt      time.Time
	OrderID       string
}

// ClosedTrade is the terminal record kept for session reporting.
type ClosedTrade struct {
	Symbol     string
	Side       exchange.Side
	Size       float64
	EntryPrice float64
	ExitPrice  float64
	PnL        float64
	Reason     string
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// Summary aggregates the tracked positions at one instant. WinRate is
// the fraction of open positions currently in profit.
type Summary struct {
	ActivePositions int
	TotalPnL        float64
	WinRate         float64
	Positions       []TrackedPosition
}

// PerformanceMetrics extends Summary with account balance and the
// realized side of the ledger.
type PerformanceMetrics struct {
	Balance         float64
	ActivePositions int
	UnrealizedPnL   float64
	RealizedPnL     float64
	ClosedTrades    int
	WinRate         float64
}
