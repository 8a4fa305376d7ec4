package position

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/earthskyorg/bybit-trading-bot/internal/config"
	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
	"github.com/earthskyorg/bybit-trading-bot/internal/exchange"
	"github.com/earthskyorg/bybit-trading-bot/internal/logger"
	"github.com/earthskyorg/bybit-trading-bot/internal/monitoring"
	"github.com/earthskyorg/bybit-trading-bot/internal/notifications"
	"github.com/earthskyorg/bybit-trading-bot/internal/risk"
	"github.com/earthskyorg/bybit-trading-bot/internal/safety"
	"github.com/earthskyorg/bybit-trading-bot/internal/strategy"
	"github.com/earthskyorg/bybit-trading-bot/pkg/types"
)

// dryRunOrderID marks synthetic fills produced in paper mode.
const dryRunOrderID = "dry_run"

// Manager tracks open positions and drives their lifecycle against the
// venue. Every tracked position has a mirrored record in the Risk
// Manager; the two are added and removed together.
type Manager struct {
	mu        sync.Mutex
	client    exchange.Client
	risk      *risk.Manager
	notifier  notifications.Notifier
	log       *zap.Logger
	positions map[string]*TrackedPosition
	closed    []ClosedTrade

	orderRisk          float64
	stopLossFraction   float64
	takeProfitFraction float64
	dryRun             bool
}

// NewManager wires the manager to its collaborators. notifier may be
// the no-op implementation.
func NewManager(client exchange.Client, riskManager *risk.Manager, notifier notifications.Notifier, cfg config.TradingConfig) *Manager {
	return &Manager{
		client:             client,
		risk:               riskManager,
		notifier:           notifier,
		log:                logger.Component("position"),
		positions:          make(map[string]*TrackedPosition),
		orderRisk:          cfg.OrderRisk,
		stopLossFraction:   cfg.StopLossFraction,
		takeProfitFraction: cfg.TakeProfitFraction,
		dryRun:             cfg.DryRun,
	}
}

// UpdateAllPositions refreshes every tracked position from one account
// snapshot, then runs the closure checks. All updates complete before
// the first closure check so the checks see a consistent sweep.
// Per-symbol closure failures are logged and do not stop the sweep.
func (m *Manager) UpdateAllPositions(ctx context.Context) error {
	snapshot, err := m.client.GetAccountSnapshot(ctx)
	if err != nil {
		return boterrors.NewPositionError("position", "update_all", err)
	}

	m.risk.SetAccountBalance(snapshot.Balance)
	monitoring.UpdateAccountBalance(snapshot.Balance)

	m.mu.Lock()
	seen := make(map[string]bool, len(snapshot.Positions))
	for _, p := range snapshot.Positions {
		if p.Size == 0 {
			continue
		}
		seen[p.Symbol] = true
		m.applySnapshotLocked(p)
	}
	for symbol := range m.positions {
		if seen[symbol] {
			continue
		}
		// Gone from the venue: closed externally or liquidated.
		m.log.Warn("tracked position no longer on venue, dropping",
			zap.String("symbol", symbol))
		delete(m.positions, symbol)
		m.risk.RemovePosition(symbol)
	}
	monitoring.UpdateOpenPositions(len(m.positions))

	symbols := make([]string, 0, len(m.positions))
	for symbol := range m.positions {
		symbols = append(symbols, symbol)
	}
	m.mu.Unlock()

	for _, symbol := range symbols {
		closeIt, reason := m.risk.ShouldClosePosition(symbol)
		if !closeIt {
			continue
		}
		if err := m.ClosePosition(ctx, symbol, reason); err != nil {
			logger.ErrorWithContext(ctx, "position", "close_position", err,
				zap.String("symbol", symbol))
		}
	}
	return nil
}

// applySnapshotLocked folds one venue position into the tracked map and
// the risk mirror. Caller holds mu.
func (m *Manager) applySnapshotLocked(p exchange.Position) {
	signed := p.Size
	if p.Side == exchange.SideSell {
		signed = -p.Size
	}

	tracked, ok := m.positions[p.Symbol]
	if !ok {
		// Position opened outside this session; adopt it.
		tracked = &TrackedPosition{
			Symbol:     p.Symbol,
			Side:       p.Side,
			EntryPrice: p.EntryPrice,
			OpenedAt:   p.UpdatedAt,
		}
		m.positions[p.Symbol] = tracked
		m.log.Info("adopted venue position",
			zap.String("symbol", p.Symbol),
			zap.String("side", string(p.Side)),
			zap.Float64("size", p.Size))
	}
	tracked.Side = p.Side
	tracked.Size = signed
	tracked.EntryPrice = p.EntryPrice
	tracked.CurrentPrice = p.MarkPrice
	tracked.UnrealizedPnL = p.UnrealisedPnl
	monitoring.UpdatePrice(p.Symbol, p.MarkPrice)

	if !m.risk.HasPosition(p.Symbol) {
		m.risk.AddPosition(risk.PositionRisk{
			Symbol:       p.Symbol,
			Size:         signed,
			EntryPrice:   p.EntryPrice,
			CurrentPrice: p.MarkPrice,
		})
	}
	// The venue is authoritative: size and entry follow it every sweep,
	// not just at adoption.
	m.risk.SyncPosition(p.Symbol, signed, p.EntryPrice, p.MarkPrice)
}

// OpenPosition turns an accepted signal into an order. A risk-limit
// violation is not an error: it logs the violations and returns
// (nil, nil) so the sweep moves on. Sizing failures come back as typed
// errors for the caller to skip the symbol.
func (m *Manager) OpenPosition(ctx context.Context, symbol string, sig strategy.Signal, view *types.MarketDataView) (*exchange.OrderResult, error) {
	if err := safety.ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	var side exchange.Side
	switch sig.Direction {
	case strategy.Buy:
		side = exchange.SideBuy
	case strategy.Sell:
		side = exchange.SideSell
	default:
		return nil, boterrors.NewOrderError("position", "open_position",
			fmt.Errorf("signal for %s has no direction", symbol))
	}

	// Size off the live price, not the possibly stale window close.
	price, err := m.client.GetLatestPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := safety.ValidatePrice(symbol, price); err != nil {
		return nil, err
	}

	stop := sig.StopLoss
	if stop <= 0 {
		if side == exchange.SideBuy {
			stop = price * (1 - m.stopLossFraction)
		} else {
			stop = price * (1 + m.stopLossFraction)
		}
	}

	size, err := m.risk.CalculatePositionSize(symbol, price, stop, m.orderRisk)
	if err != nil {
		return nil, err
	}
	if err := safety.ValidateQuantity(symbol, size); err != nil {
		return nil, err
	}

	if ok, violations := m.risk.CheckRiskLimits(symbol, size, price); !ok {
		m.log.Warn("order blocked by risk limits",
			zap.String("symbol", symbol),
			zap.String("side", string(side)),
			zap.Float64("size", size),
			zap.Strings("violations", violations))
		return nil, nil
	}

	var result *exchange.OrderResult
	if m.dryRun {
		result = &exchange.OrderResult{
			OrderID:   dryRunOrderID,
			Symbol:    symbol,
			Side:      side,
			Qty:       size,
			Price:     price,
			CreatedAt: time.Now(),
		}
		m.log.Info("dry run: simulated market order",
			zap.String("symbol", symbol),
			zap.String("side", string(side)),
			zap.Float64("qty", size),
			zap.Float64("price", price))
	} else {
		result, err = m.client.PlaceMarketOrder(ctx, symbol, side, size)
		if err != nil {
			return nil, err
		}
	}

	signed := result.Qty
	if side == exchange.SideSell {
		signed = -result.Qty
	}

	m.mu.Lock()
	m.positions[symbol] = &TrackedPosition{
		Symbol:       symbol,
		Side:         side,
		Size:         signed,
		EntryPrice:   price,
		CurrentPrice: price,
		OpenedAt:     result.CreatedAt,
		OrderID:      result.OrderID,
	}
	openCount := len(m.positions)
	m.mu.Unlock()

	pr := risk.PositionRisk{
		Symbol:       symbol,
		Size:         signed,
		EntryPrice:   price,
		CurrentPrice: price,
	}
	if sig.StopLoss > 0 {
		pr.StopLossDistance = math.Abs(price - sig.StopLoss)
	}
	if sig.TakeProfit > 0 {
		pr.TakeProfitDistance = math.Abs(sig.TakeProfit - price)
	}
	m.risk.AddPosition(pr)

	monitoring.RecordTrade(symbol, string(side), result.Qty)
	monitoring.UpdateOpenPositions(openCount)
	logger.TradeOpened(ctx, symbol, string(side), result.Qty, price, result.OrderID)
	m.notify(notifications.LevelSuccess,
		fmt.Sprintf("Opened %s %s qty %.6f @ %.4f", side, symbol, result.Qty, price))

	return result, nil
}

// ClosePosition flattens one tracked position with an opposing market
// order and retires it from both maps.
func (m *Manager) ClosePosition(ctx context.Context, symbol, reason string) error {
	m.mu.Lock()
	tracked, ok := m.positions[symbol]
	if !ok {
		m.mu.Unlock()
		return boterrors.NewPositionError("position", "close_position",
			fmt.Errorf("no tracked position for %s", symbol))
	}
	snapshot := *tracked
	m.mu.Unlock()

	qty := math.Abs(snapshot.Size)
	closeSide := snapshot.Side.Opposite()

	if m.dryRun {
		m.log.Info("dry run: simulated position close",
			zap.String("symbol", symbol),
			zap.String("side", string(closeSide)),
			zap.Float64("qty", qty),
			zap.String("reason", reason))
	} else {
		if _, err := m.client.PlaceMarketOrder(ctx, symbol, closeSide, qty); err != nil {
			return err
		}
	}

	m.mu.Lock()
	delete(m.positions, symbol)
	m.closed = append(m.closed, ClosedTrade{
		Symbol:     symbol,
		Side:       snapshot.Side,
		Size:       snapshot.Size,
		EntryPrice: snapshot.EntryPrice,
		ExitPrice:  snapshot.CurrentPrice,
		PnL:        snapshot.UnrealizedPnL,
		Reason:     reason,
		OpenedAt:   snapshot.OpenedAt,
		ClosedAt:   time.Now(),
	})
	openCount := len(m.positions)
	m.mu.Unlock()

	m.risk.RemovePosition(symbol)
	monitoring.UpdateOpenPositions(openCount)
	logger.TradeClosed(ctx, symbol, reason, snapshot.UnrealizedPnL)
	m.notify(notifications.LevelInfo,
		fmt.Sprintf("Closed %s (%s), P&L %.4f", symbol, reason, snapshot.UnrealizedPnL))
	return nil
}

// CloseAllPositions flattens everything, collecting per-symbol failures
// instead of stopping at the first.
func (m *Manager) CloseAllPositions(ctx context.Context, reason string) error {
	m.mu.Lock()
	symbols := make([]string, 0, len(m.positions))
	for symbol := range m.positions {
		symbols = append(symbols, symbol)
	}
	m.mu.Unlock()

	var failed []string
	for _, symbol := range symbols {
		if err := m.ClosePosition(ctx, symbol, reason); err != nil {
			failed = append(failed, symbol)
			logger.ErrorWithContext(ctx, "position", "close_all", err,
				zap.String("symbol", symbol))
		}
	}
	if len(failed) > 0 {
		return boterrors.NewPositionError("position", "close_all",
			fmt.Errorf("failed to close %d of %d positions: %v", len(failed), len(symbols), failed))
	}
	return nil
}

// GetPositionSummary reports the tracked positions at this instant.
func (m *Manager) GetPositionSummary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{
		ActivePositions: len(m.positions),
		Positions:       make([]TrackedPosition, 0, len(m.positions)),
	}
	winners := 0
	for _, p := range m.positions {
		s.TotalPnL += p.UnrealizedPnL
		if p.UnrealizedPnL > 0 {
			winners++
		}
		s.Positions = append(s.Positions, *p)
	}
	if len(m.positions) > 0 {
		s.WinRate = float64(winners) / float64(len(m.positions))
	}
	return s
}

// ClosedTrades returns a copy of the session's closed-trade log.
func (m *Manager) ClosedTrades() []ClosedTrade {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ClosedTrade, len(m.closed))
	copy(out, m.closed)
	return out
}

// GetPerformanceMetrics combines the open and realized sides of the
// ledger with the current account balance.
func (m *Manager) GetPerformanceMetrics(ctx context.Context) (PerformanceMetrics, error) {
	snapshot, err := m.client.GetAccountSnapshot(ctx)
	if err != nil {
		return PerformanceMetrics{}, boterrors.NewPositionError("position", "performance_metrics", err)
	}

	summary := m.GetPositionSummary()

	m.mu.Lock()
	realized := 0.0
	for _, c := range m.closed {
		realized += c.PnL
	}
	closedCount := len(m.closed)
	m.mu.Unlock()

	return PerformanceMetrics{
		Balance:         snapshot.Balance,
		ActivePositions: summary.ActivePositions,
		UnrealizedPnL:   summary.TotalPnL,
		RealizedPnL:     realized,
		ClosedTrades:    closedCount,
		WinRate:         summary.WinRate,
	}, nil
}

// notify sends a best-effort alert; failures are logged only.
func (m *Manager) notify(level, message string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.SendAlert(level, message); err != nil {
		m.log.Warn("notification failed", zap.Error(err))
	}
}
