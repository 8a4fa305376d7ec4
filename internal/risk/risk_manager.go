// Package risk owns account-level risk state: the balance, per-position
// risk records and the daily P&L history. It sizes orders, enforces
// exposure/drawdown/position-count limits and scores aggregate risk. One
// mutex guards all state, so every operation is safe to call from the
// signal and monitoring loops concurrently.
package risk

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
	"github.com/earthskyorg/bybit-trading-bot/internal/logger"
)

const (
	// minPositionSize is the smallest size worth placing.
	minPositionSize = 0.001

	// Fixed closure thresholds. These act as a safety net independent of
	// whatever stop or take-profit a strategy attached to the position.
	closeLossFraction   = 0.02
	closeProfitFraction = 0.04
	closeRiskFraction   = 0.05

	// dailyPnLWindow is the number of trailing samples counted as one
	// day; samples arrive hourly.
	dailyPnLWindow = 24

	// dailyPnLCap bounds the history to 30 days of hourly samples.
	dailyPnLCap = 720
)

// Manager tracks open-position risk against the account balance.
type Manager struct {
	mu sync.Mutex

	limits         Limits
	positions      map[string]*PositionRisk
	dailyPnL       []float64
	accountBalance float64
	initialBalance float64

	log *zap.Logger
}

// NewManager builds a Manager enforcing the given limits.
func NewManager(limits Limits) *Manager {
	return &Manager{
		limits:    limits,
		positions: make(map[string]*PositionRisk),
		log:       logger.Component("risk"),
	}
}

// SetAccountBalance records the current balance. The first non-zero value
// also fixes the drawdown baseline, which is never overwritten afterwards.
func (m *Manager) SetAccountBalance(balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialBalance == 0 {
		m.initialBalance = balance
	}
	m.accountBalance = balance
}

// AccountBalance returns the most recently recorded balance.
func (m *Manager) AccountBalance() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accountBalance
}

// AddPosition starts tracking a position. A record already present for
// the same symbol is replaced.
func (m *Manager) AddPosition(p PositionRisk) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.positions[p.Symbol] = &p
	m.log.Info("position added to risk tracking",
		zap.String("symbol", p.Symbol),
		zap.Float64("size", p.Size),
		zap.Float64("entry_price", p.EntryPrice))
}

// RemovePosition stops tracking symbol. Unknown symbols are a no-op.
func (m *Manager) RemovePosition(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.positions[symbol]; !ok {
		return
	}
	delete(m.positions, symbol)
	m.log.Info("position removed from risk tracking", zap.String("symbol", symbol))
}

// UpdatePosition refreshes a tracked position with the latest price,
// recomputing unrealized P&L and the balance-relative risk percentage.
func (m *Manager) UpdatePosition(symbol string, currentPrice float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[symbol]
	if !ok {
		return
	}
	p.CurrentPrice = currentPrice
	p.UnrealizedPnL = unrealizedPnL(p)
	p.RiskPercentage = 0
	if m.accountBalance > 0 {
		p.RiskPercentage = math.Abs(p.UnrealizedPnL) / m.accountBalance
	}
}

// SyncPosition re-bases a tracked position on fresh venue values: signed
// size, entry price and current price. The venue is authoritative for all
// three, so a partial close or manual trade flows straight into the
// exposure and closure checks. Stop and take-profit distances recorded at
// open are preserved. Unknown symbols are a no-op.
func (m *Manager) SyncPosition(symbol string, size, entryPrice, currentPrice float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[symbol]
	if !ok {
		return
	}
	p.Size = size
	p.EntryPrice = entryPrice
	p.CurrentPrice = currentPrice
	p.UnrealizedPnL = unrealizedPnL(p)
	p.RiskPercentage = 0
	if m.accountBalance > 0 {
		p.RiskPercentage = math.Abs(p.UnrealizedPnL) / m.accountBalance
	}
}

// Position returns a copy of the tracked record for symbol.
func (m *Manager) Position(symbol string) (PositionRisk, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[symbol]
	if !ok {
		return PositionRisk{}, false
	}
	return *p, true
}

// HasPosition reports whether symbol is currently tracked.
func (m *Manager) HasPosition(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.positions[symbol]
	return ok
}

// Positions returns copies of every tracked record, sorted by symbol.
func (m *Manager) Positions() []PositionRisk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionsLocked()
}

// CalculatePositionSize sizes an order so that hitting the stop costs at
// most riskPercentage of the balance. The result is additionally capped
// at the max-position-size fraction of balance taken at the entry price,
// and must clear the exchange-wide minimum size.
func (m *Manager) CalculatePositionSize(symbol string, entryPrice, stopLossPrice, riskPercentage float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entryPrice <= 0 || stopLossPrice <= 0 {
		return 0, boterrors.NewRiskManagementError("risk", "calculate_position_size",
			fmt.Sprintf("invalid price values for %s: entry %.8f, stop %.8f", symbol, entryPrice, stopLossPrice))
	}

	riskPerUnit := math.Abs(entryPrice - stopLossPrice)
	if riskPerUnit == 0 {
		return 0, boterrors.NewRiskManagementError("risk", "calculate_position_size",
			fmt.Sprintf("stop loss too close to entry price for %s", symbol))
	}

	maxRiskAmount := m.accountBalance * riskPercentage
	size := maxRiskAmount / riskPerUnit

	maxSizeByValue := m.accountBalance * m.limits.MaxPositionSize / entryPrice
	if maxSizeByValue < size {
		size = maxSizeByValue
	}

	if size < minPositionSize {
		return 0, boterrors.NewInsufficientFundsError("risk", "calculate_position_size",
			fmt.Sprintf("position size %.6f for %s below minimum %.3f", size, symbol, minPositionSize))
	}
	return size, nil
}

// CheckRiskLimits evaluates a candidate order of size units at
// referencePrice against every limit. All five checks run without
// short-circuiting; the result lists every violated rule and ok is true
// only when the list is empty.
func (m *Manager) CheckRiskLimits(symbol string, size, referencePrice float64) (bool, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var violations []string

	notional := size * referencePrice
	if notional > m.accountBalance*m.limits.MaxPositionSize {
		violations = append(violations,
			fmt.Sprintf("Position size exceeds maximum allowed (%g%%)", m.limits.MaxPositionSize*100))
	}

	if m.totalExposureLocked()+notional > m.accountBalance*m.limits.MaxTotalExposure {
		violations = append(violations,
			fmt.Sprintf("Total exposure would exceed maximum allowed (%g%%)", m.limits.MaxTotalExposure*100))
	}

	if len(m.positions) >= m.limits.MaxPositions {
		violations = append(violations,
			fmt.Sprintf("Maximum number of positions reached (%d)", m.limits.MaxPositions))
	}

	if m.dailyPnLLocked() < -m.accountBalance*m.limits.MaxDailyLoss {
		violations = append(violations,
			fmt.Sprintf("Daily loss limit exceeded (%g%%)", m.limits.MaxDailyLoss*100))
	}

	if m.drawdownLocked() > m.limits.MaxDrawdown {
		violations = append(violations,
			fmt.Sprintf("Maximum drawdown exceeded (%g%%)", m.limits.MaxDrawdown*100))
	}

	if len(violations) > 0 {
		m.log.Warn("risk limits violated",
			zap.String("symbol", symbol),
			zap.Float64("candidate_size", size),
			zap.Float64("reference_price", referencePrice),
			zap.Strings("violations", violations))
	}
	return len(violations) == 0, violations
}

// CalculateRiskMetrics derives the aggregate risk snapshot.
func (m *Manager) CalculateRiskMetrics() RiskMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.riskMetricsLocked()
}

// ShouldClosePosition applies the fixed closure thresholds to a tracked
// position. Boundaries are exclusive: a loss of exactly 2% of balance
// keeps the position open.
func (m *Manager) ShouldClosePosition(symbol string) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[symbol]
	if !ok {
		return false, "Position not found"
	}

	if p.UnrealizedPnL < -m.accountBalance*closeLossFraction {
		return true, "Stop loss triggered"
	}
	if p.UnrealizedPnL > m.accountBalance*closeProfitFraction {
		return true, "Take profit reached"
	}
	if p.RiskPercentage > closeRiskFraction {
		return true, "Position risk too high"
	}
	return false, "Position within risk limits"
}

// UpdateDailyPnL appends one P&L sample, evicting the oldest beyond the
// 30-day cap.
func (m *Manager) UpdateDailyPnL(pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dailyPnL = append(m.dailyPnL, pnl)
	if len(m.dailyPnL) > dailyPnLCap {
		m.dailyPnL = m.dailyPnL[len(m.dailyPnL)-dailyPnLCap:]
	}
}

// GetRiskReport assembles the full observability snapshot.
func (m *Manager) GetRiskReport() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.riskMetricsLocked()

	exposurePct := 0.0
	if m.accountBalance > 0 {
		exposurePct = metrics.TotalExposure / m.accountBalance * 100
	}

	return Report{
		Timestamp:          time.Now().UTC(),
		AccountBalance:     m.accountBalance,
		InitialBalance:     m.initialBalance,
		TotalExposure:      metrics.TotalExposure,
		ExposurePercentage: exposurePct,
		DailyPnL:           metrics.DailyPnL,
		Drawdown:           metrics.Drawdown,
		PositionCount:      metrics.PositionCount,
		Score:              metrics.Score,
		Level:              metrics.Level,
		Positions:          m.positionsLocked(),
		Limits:             m.limits,
	}
}

func (m *Manager) riskMetricsLocked() RiskMetrics {
	exposure := m.totalExposureLocked()
	daily := m.dailyPnLLocked()
	drawdown := m.drawdownLocked()
	score := m.riskScoreLocked(exposure, daily, drawdown)

	return RiskMetrics{
		TotalExposure: exposure,
		Drawdown:      drawdown,
		DailyPnL:      daily,
		PositionCount: len(m.positions),
		Score:         score,
		Level:         RiskLevelFromScore(score),
	}
}

// riskScoreLocked composes the 0-100 score: up to 30 points from the
// exposure ratio, up to 30 from negative daily P&L, up to 40 from
// drawdown.
func (m *Manager) riskScoreLocked(exposure, dailyPnL, drawdown float64) float64 {
	var score float64
	if m.accountBalance > 0 {
		score += math.Min(30, exposure/m.accountBalance*100)
		if dailyPnL < 0 {
			score += math.Min(30, -dailyPnL/m.accountBalance*100)
		}
	}
	score += math.Min(40, drawdown*100)
	return math.Min(100, score)
}

func (m *Manager) totalExposureLocked() float64 {
	var total float64
	for _, p := range m.positions {
		total += p.Size * p.CurrentPrice
	}
	return total
}

func (m *Manager) dailyPnLLocked() float64 {
	n := len(m.dailyPnL)
	if n == 0 {
		return 0
	}
	start := n - dailyPnLWindow
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, v := range m.dailyPnL[start:] {
		sum += v
	}
	return sum
}

// drawdownLocked measures how far equity (balance plus unrealized P&L)
// has fallen below the initial-balance baseline. Always in [0, 1]; zero
// while equity is at or above the baseline.
func (m *Manager) drawdownLocked() float64 {
	if m.initialBalance == 0 {
		return 0
	}
	equity := m.accountBalance
	for _, p := range m.positions {
		equity += p.UnrealizedPnL
	}
	if equity >= m.initialBalance {
		return 0
	}
	return (m.initialBalance - equity) / m.initialBalance
}

func (m *Manager) positionsLocked() []PositionRisk {
	out := make([]PositionRisk, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// unrealizedPnL computes signed P&L: longs gain when price rises, shorts
// when it falls.
func unrealizedPnL(p *PositionRisk) float64 {
	if p.Size > 0 {
		return (p.CurrentPrice - p.EntryPrice) * p.Size
	}
	return (p.EntryPrice - p.CurrentPrice) * math.Abs(p.Size)
}
