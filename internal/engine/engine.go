// Package engine orchestrates the trading session: it owns the symbol
// universe, the signal loop and the monitoring loop, and shepherds the
// other components through startup and shutdown.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/earthskyorg/bybit-trading-bot/internal/config"
	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
	"github.com/earthskyorg/bybit-trading-bot/internal/exchange"
	"github.com/earthskyorg/bybit-trading-bot/internal/logger"
	"github.com/earthskyorg/bybit-trading-bot/internal/monitoring"
	"github.com/earthskyorg/bybit-trading-bot/internal/notifications"
	"github.com/earthskyorg/bybit-trading-bot/internal/position"
	"github.com/earthskyorg/bybit-trading-bot/internal/reporting"
	"github.com/earthskyorg/bybit-trading-bot/internal/risk"
	"github.com/earthskyorg/bybit-trading-bot/internal/signal"
	"github.com/earthskyorg/bybit-trading-bot/internal/strategy"
	"github.com/earthskyorg/bybit-trading-bot/pkg/types"
)

// sweepTimeout bounds one loop iteration end to end.
const sweepTimeout = 30 * time.Second

// State is the engine lifecycle phase.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// PriceStream is the optional live ticker feed.
type PriceStream interface {
	Start() error
	Stop()
}

// Deps are the engine's collaborators. Clock and StreamFactory are
// optional; a nil Clock means wall-clock time. StreamFactory is called
// with the resolved universe once Start knows it.
type Deps struct {
	Config        *config.Config
	Exchange      exchange.Client
	Strategy      strategy.Strategy
	Risk          *risk.Manager
	Positions     *position.Manager
	Signals       *signal.Processor
	Notifier      notifications.Notifier
	Health        *monitoring.HealthChecker
	Clock         Clock
	StreamFactory func(symbols []string) PriceStream
}

// Engine runs the signal and monitoring loops over a symbol universe.
type Engine struct {
	mu    sync.Mutex
	state State

	deps  Deps
	clock Clock
	log   *zap.Logger

	symbols   []string
	stream    PriceStream
	stopChan  chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time
}

// New builds a stopped engine.
func New(deps Deps) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Engine{
		deps:  deps,
		clock: clock,
		log:   logger.Component("engine"),
	}
}

// State reports the current lifecycle phase.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Symbols returns the resolved universe. Empty before Start.
func (e *Engine) Symbols() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.symbols))
	copy(out, e.symbols)
	return out
}

// Start brings the engine to Running: fetch the account, resolve the
// universe, set leverage, seed the data windows, start the optional
// price stream and launch both loops. Start on a non-stopped engine is
// an error.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateStopped {
		state := e.state
		e.mu.Unlock()
		return boterrors.NewBotError(boterrors.ErrorCategoryPosition, "engine", "start",
			fmt.Sprintf("cannot start engine in state %s", state))
	}
	e.state = StateStarting
	e.stopChan = make(chan struct{})
	e.mu.Unlock()

	if err := e.initialize(ctx); err != nil {
		e.setState(StateStopped)
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancel = cancel
	e.startedAt = e.clock.Now()
	e.state = StateRunning
	e.mu.Unlock()

	e.wg.Add(2)
	go e.signalLoop(loopCtx)
	go e.monitoringLoop(loopCtx)

	e.log.Info("engine running",
		zap.String("strategy", e.deps.Strategy.Name()),
		zap.Strings("symbols", e.symbols),
		zap.Bool("dry_run", e.deps.Config.Trading.DryRun))
	e.notify(notifications.LevelInfo,
		fmt.Sprintf("Bot started: %s on %d symbols", e.deps.Strategy.Name(), len(e.symbols)))
	return nil
}

func (e *Engine) initialize(ctx context.Context) error {
	cfg := e.deps.Config

	if err := e.deps.Strategy.ValidateParameters(); err != nil {
		return err
	}

	snapshot, err := e.deps.Exchange.GetAccountSnapshot(ctx)
	if err != nil {
		return err
	}
	e.deps.Risk.SetAccountBalance(snapshot.Balance)
	monitoring.UpdateAccountBalance(snapshot.Balance)
	if e.deps.Health != nil {
		e.deps.Health.SetConnected(true)
	}
	e.log.Info("account loaded",
		zap.Float64("balance", snapshot.Balance),
		zap.Float64("equity", snapshot.Equity))

	symbols, err := e.resolveUniverse(ctx)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		return boterrors.NewConfigurationError("engine", "resolve_universe",
			"symbol universe is empty after exclusions")
	}
	e.mu.Lock()
	e.symbols = symbols
	e.mu.Unlock()

	for _, symbol := range symbols {
		if err := e.deps.Exchange.SetLeverage(ctx, symbol, cfg.Trading.Leverage); err != nil {
			e.log.Warn("set leverage failed",
				zap.String("symbol", symbol), zap.Error(err))
		}
	}

	for _, symbol := range symbols {
		if _, err := e.fetchView(ctx, symbol); err != nil {
			e.log.Warn("seeding market data failed",
				zap.String("symbol", symbol), zap.Error(err))
		}
	}

	if e.deps.StreamFactory != nil {
		e.stream = e.deps.StreamFactory(symbols)
		if err := e.stream.Start(); err != nil {
			e.log.Warn("price stream unavailable", zap.Error(err))
			e.stream = nil
		}
	}
	return nil
}

// resolveUniverse honors the configured list, or the venue's tradable
// set when trade-all is on. Exclusions apply either way.
func (e *Engine) resolveUniverse(ctx context.Context) ([]string, error) {
	cfg := e.deps.Config
	if cfg.Trading.TradeAll {
		all, err := e.deps.Exchange.ListTradableSymbols(ctx)
		if err != nil {
			return nil, err
		}
		return cfg.ActiveSymbols(all), nil
	}
	return cfg.ActiveSymbols(cfg.Trading.Symbols), nil
}

// Stop winds the session down: stop the loops, optionally flatten,
// print the session report. Stop on a non-running engine is an error.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != StateRunning {
		state := e.state
		e.mu.Unlock()
		return boterrors.NewBotError(boterrors.ErrorCategoryPosition, "engine", "stop",
			fmt.Sprintf("cannot stop engine in state %s", state))
	}
	e.state = StateStopping
	cancel := e.cancel
	e.mu.Unlock()

	close(e.stopChan)
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()

	if e.stream != nil {
		e.stream.Stop()
	}

	ctx, cancelCtx := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancelCtx()

	if e.deps.Config.Trading.ClosePositionsOnStop {
		if err := e.deps.Positions.CloseAllPositions(ctx, "engine shutdown"); err != nil {
			logger.ErrorWithContext(ctx, "engine", "stop_flatten", err)
		}
	}

	e.finalReport(ctx)

	e.setState(StateStopped)
	e.log.Info("engine stopped")
	return nil
}

// finalReport assembles and prints the session report, exports the
// optional workbook and emits the closing risk report event.
func (e *Engine) finalReport(ctx context.Context) {
	report := reporting.SessionReport{
		StartedAt: e.startedAt,
		EndedAt:   e.clock.Now(),
		Strategy:  e.deps.Strategy.Name(),
		Symbols:   e.Symbols(),
		Risk:      e.deps.Risk.GetRiskReport(),
		Trades:    e.deps.Positions.ClosedTrades(),
	}
	if metrics, err := e.deps.Positions.GetPerformanceMetrics(ctx); err == nil {
		report.Performance = metrics
	} else {
		logger.ErrorWithContext(ctx, "engine", "final_report", err)
	}

	reporting.PrintSession(report)

	if len(report.Trades) > 0 {
		dir := e.deps.Config.Monitoring.ReportDir
		if dir == "" {
			dir = config.DefaultReportDir
		}
		if path, err := reporting.WriteWorkbook(dir, report); err != nil {
			logger.ErrorWithContext(ctx, "engine", "export_workbook", err)
		} else {
			e.log.Info("session workbook written", zap.String("path", path))
		}
	}

	logger.RiskReport(ctx, report.Risk.Score, report.Risk.Level.String(),
		report.Risk.TotalExposure, report.Risk.Drawdown, report.Risk.PositionCount)
	e.notify(notifications.LevelInfo,
		fmt.Sprintf("Bot stopped. Realized P&L %.4f over %d trades",
			report.Performance.RealizedPnL, report.Performance.ClosedTrades))
}

// signalLoop sweeps the universe every signal interval. A sweep error
// shortens the wait to the error backoff.
func (e *Engine) signalLoop(ctx context.Context) {
	defer e.wg.Done()

	interval := e.deps.Config.Trading.SignalInterval.Std()
	backoff := e.deps.Config.Trading.ErrorBackoff.Std()
	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C():
			if err := e.signalSweep(ctx); err != nil {
				logger.ErrorWithContext(ctx, "engine", "signal_sweep", err)
				monitoring.RecordError("signal_sweep")
				if e.deps.Health != nil {
					e.deps.Health.AddError(err.Error())
				}
				if !e.pause(ctx, backoff) {
					return
				}
			}
		}
	}
}

// signalSweep evaluates every symbol once. Per-symbol errors are logged
// and skipped; the sweep error is the last one seen.
func (e *Engine) signalSweep(ctx context.Context) (err error) {
	timer := logger.StartOperation(ctx, "signal_sweep")
	defer func() {
		if err != nil {
			timer.EndWithError(err)
		} else {
			timer.End()
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in signal sweep: %v", r)
			e.log.Error("recovered from sweep panic", zap.Any("panic", r))
		}
	}()

	sweepCtx, cancel := context.WithTimeout(timer.Context(), sweepTimeout)
	defer cancel()

	if e.deps.Health != nil {
		e.deps.Health.RecordSweep()
	}

	for _, symbol := range e.Symbols() {
		if sweepCtx.Err() != nil {
			return sweepCtx.Err()
		}
		if symErr := e.evaluateSymbol(sweepCtx, symbol); symErr != nil {
			logger.ErrorWithContext(sweepCtx, "engine", "evaluate_symbol", symErr,
				zap.String("symbol", symbol))
			monitoring.RecordError("evaluate_symbol")
			err = symErr
		}
	}
	return err
}

// evaluateSymbol refreshes one symbol's window, runs the strategy and
// hands accepted signals to the position manager.
func (e *Engine) evaluateSymbol(ctx context.Context, symbol string) error {
	view, err := e.fetchView(ctx, symbol)
	if err != nil {
		return err
	}

	if _, err := e.deps.Strategy.CalculateIndicators(view); err != nil {
		return err
	}
	sig := e.deps.Strategy.GenerateSignal(view, view.LastIndex())
	monitoring.UpdateStrategyConfidence(e.deps.Strategy.Name(), sig.Confidence)
	if sig.Direction == strategy.Hold {
		return nil
	}

	if !e.deps.Signals.ProcessSignal(ctx, symbol, sig, view) {
		return nil
	}

	result, err := e.deps.Positions.OpenPosition(ctx, symbol, sig, view)
	if err != nil {
		return err
	}
	if result != nil {
		e.log.Info("position opened from signal",
			zap.String("symbol", symbol),
			zap.String("direction", sig.Direction.String()),
			zap.Float64("confidence", sig.Confidence),
			zap.String("order_id", result.OrderID))
	}
	return nil
}

func (e *Engine) fetchView(ctx context.Context, symbol string) (*types.MarketDataView, error) {
	cfg := e.deps.Config
	candles, err := e.deps.Exchange.GetKlines(ctx, symbol, cfg.Strategy.Interval, cfg.Strategy.WindowSize)
	if err != nil {
		return nil, err
	}
	return types.NewMarketDataView(symbol, candles)
}

// monitoringLoop refreshes positions and risk gauges every monitoring
// interval and flattens everything on a Critical risk level.
func (e *Engine) monitoringLoop(ctx context.Context) {
	defer e.wg.Done()

	interval := e.deps.Config.Trading.MonitoringInterval.Std()
	backoff := e.deps.Config.Trading.ErrorBackoff.Std()
	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()

	sampler := dailySampler{at: e.clock.Now(), equity: e.equity()}

	for {
		select {
		case <-e.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C():
			if err := e.monitoringSweep(ctx, &sampler); err != nil {
				logger.ErrorWithContext(ctx, "engine", "monitoring_sweep", err)
				monitoring.RecordError("monitoring_sweep")
				if e.deps.Health != nil {
					e.deps.Health.AddError(err.Error())
				}
				if !e.pause(ctx, backoff) {
					return
				}
			}
		}
	}
}

// dailySampler remembers the equity seen at the last hourly sample so
// the risk manager's P&L window receives deltas, not running totals.
type dailySampler struct {
	at     time.Time
	equity float64
}

// equity is balance plus the unrealized P&L of every tracked position.
func (e *Engine) equity() float64 {
	total := e.deps.Risk.AccountBalance()
	for _, p := range e.deps.Risk.Positions() {
		total += p.UnrealizedPnL
	}
	return total
}

func (e *Engine) monitoringSweep(ctx context.Context, sampler *dailySampler) (err error) {
	timer := logger.StartOperation(ctx, "monitoring_sweep")
	defer func() {
		if err != nil {
			timer.EndWithError(err)
		} else {
			timer.End()
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in monitoring sweep: %v", r)
			e.log.Error("recovered from sweep panic", zap.Any("panic", r))
		}
	}()

	sweepCtx, cancel := context.WithTimeout(timer.Context(), sweepTimeout)
	defer cancel()

	if err := e.deps.Positions.UpdateAllPositions(sweepCtx); err != nil {
		return err
	}

	metrics := e.deps.Risk.CalculateRiskMetrics()
	monitoring.UpdateRiskScore(metrics.Score)

	now := e.clock.Now()
	if now.Sub(sampler.at) >= time.Hour {
		equity := e.equity()
		e.deps.Risk.UpdateDailyPnL(equity - sampler.equity)
		sampler.at, sampler.equity = now, equity
	}

	if metrics.Level == risk.RiskLevelCritical {
		e.log.Error("critical risk level, flattening all positions",
			zap.Float64("score", metrics.Score),
			zap.Float64("exposure", metrics.TotalExposure),
			zap.Float64("drawdown", metrics.Drawdown))
		e.notify(notifications.LevelError,
			fmt.Sprintf("Critical risk (score %.1f): closing all positions", metrics.Score))
		if err := e.deps.Positions.CloseAllPositions(sweepCtx, "Critical risk level"); err != nil {
			return err
		}
	}
	return nil
}

// pause waits out the error backoff; false means the engine is
// shutting down.
func (e *Engine) pause(ctx context.Context, backoff time.Duration) bool {
	ticker := e.clock.NewTicker(backoff)
	defer ticker.Stop()
	select {
	case <-e.stopChan:
		return false
	case <-ctx.Done():
		return false
	case <-ticker.C():
		return true
	}
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) notify(level, message string) {
	if e.deps.Notifier == nil {
		return
	}
	if err := e.deps.Notifier.SendAlert(level, message); err != nil {
		e.log.Warn("notification failed", zap.Error(err))
	}
}
