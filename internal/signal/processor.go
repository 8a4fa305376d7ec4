// Package signal gates raw strategy signals before they reach order
// placement. A signal passes only when it clears the confidence
// threshold, differs from the last accepted signal for its symbol, the
// aggregate risk level allows new entries and no position is already open
// for the symbol.
package signal

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/earthskyorg/bybit-trading-bot/internal/logger"
	"github.com/earthskyorg/bybit-trading-bot/internal/monitoring"
	"github.com/earthskyorg/bybit-trading-bot/internal/risk"
	"github.com/earthskyorg/bybit-trading-bot/internal/strategy"
	"github.com/earthskyorg/bybit-trading-bot/pkg/types"
)

const (
	// historyCap bounds the per-symbol signal history.
	historyCap = 100

	// confidenceEpsilon is the minimum confidence change that makes a
	// same-direction signal count as new.
	confidenceEpsilon = 0.1
)

// Gate decision reasons, also used as the result label on the processed
// counter.
const (
	ReasonAccepted       = "accepted"
	ReasonBelowThreshold = "below_confidence_threshold"
	ReasonDuplicate      = "duplicate_signal"
	ReasonRiskElevated   = "risk_level_elevated"
	ReasonPositionOpen   = "position_already_open"
)

// Record is one remembered signal observation for a symbol.
type Record struct {
	Timestamp  time.Time
	Direction  strategy.Direction
	Confidence float64
	Price      float64
}

// Stats summarizes processor throughput.
type Stats struct {
	Processed      int
	ActedUpon      int
	ActionRate     float64
	TotalSignals   int
	SymbolsTracked int
}

// QualityMetrics describes the recent signal stream for one symbol.
type QualityMetrics struct {
	AverageConfidence float64
	SignalsPerHour    float64
	Consistency       float64
	TotalSignals      int
	BuySignals        int
	SellSignals       int
}

// Processor applies the four-rule gate and keeps bounded signal history
// for statistics. Safe for concurrent use.
type Processor struct {
	mu sync.Mutex

	threshold   float64
	riskManager *risk.Manager

	lastSignals map[string]strategy.Signal
	history     map[string][]Record

	processed int
	actedUpon int

	log *zap.Logger
}

// NewProcessor builds a Processor gating at the given confidence
// threshold against the risk manager's live state.
func NewProcessor(threshold float64, riskManager *risk.Manager) *Processor {
	return &Processor{
		threshold:   threshold,
		riskManager: riskManager,
		lastSignals: make(map[string]strategy.Signal),
		history:     make(map[string][]Record),
		log:         logger.Component("signal"),
	}
}

// ShouldActOnSignal runs the gate for one signal. Acceptance records the
// signal as the symbol's last accepted signal, so the next identical one
// is treated as a duplicate.
func (p *Processor) ShouldActOnSignal(symbol string, sig strategy.Signal) bool {
	ok, _ := p.evaluate(symbol, sig)
	return ok
}

// ProcessSignal runs the gate and maintains history and counters. It
// returns true when the caller should forward the signal to order
// placement.
func (p *Processor) ProcessSignal(ctx context.Context, symbol string, sig strategy.Signal, view *types.MarketDataView) bool {
	p.mu.Lock()
	p.processed++
	p.appendHistoryLocked(symbol, sig, view)
	p.mu.Unlock()

	accepted, reason := p.evaluate(symbol, sig)
	if accepted {
		p.mu.Lock()
		p.actedUpon++
		p.mu.Unlock()
	}

	monitoring.RecordSignalProcessed(reason)
	logger.TradeSignal(ctx, symbol, sig.Direction.String(), sig.Confidence, reason)
	return accepted
}

// evaluate applies the four rules in order and returns the first
// rejection reason, or ReasonAccepted.
func (p *Processor) evaluate(symbol string, sig strategy.Signal) (bool, string) {
	p.mu.Lock()

	if sig.Confidence < p.threshold {
		p.mu.Unlock()
		p.log.Debug("signal below confidence threshold",
			zap.String("symbol", symbol),
			zap.Float64("confidence", sig.Confidence),
			zap.Float64("threshold", p.threshold))
		return false, ReasonBelowThreshold
	}

	if last, ok := p.lastSignals[symbol]; ok {
		if last.Direction == sig.Direction && math.Abs(last.Confidence-sig.Confidence) < confidenceEpsilon {
			p.mu.Unlock()
			p.log.Debug("signal unchanged since last accepted",
				zap.String("symbol", symbol),
				zap.String("direction", sig.Direction.String()))
			return false, ReasonDuplicate
		}
	}
	p.mu.Unlock()

	// Risk manager has its own lock; never call it while holding ours.
	level := p.riskManager.CalculateRiskMetrics().Level
	if level == risk.RiskLevelHigh || level == risk.RiskLevelCritical {
		p.log.Warn("risk level too high to act on signal",
			zap.String("symbol", symbol),
			zap.String("risk_level", level.String()))
		return false, ReasonRiskElevated
	}

	if p.riskManager.HasPosition(symbol) {
		p.log.Debug("position already open", zap.String("symbol", symbol))
		return false, ReasonPositionOpen
	}

	p.mu.Lock()
	p.lastSignals[symbol] = sig
	p.mu.Unlock()
	return true, ReasonAccepted
}

func (p *Processor) appendHistoryLocked(symbol string, sig strategy.Signal, view *types.MarketDataView) {
	rec := Record{
		Direction:  sig.Direction,
		Confidence: sig.Confidence,
	}
	if view != nil && view.Len() > 0 {
		rec.Timestamp = view.Timestamps()[view.LastIndex()]
		rec.Price = view.LastClose()
	}

	h := append(p.history[symbol], rec)
	if len(h) > historyCap {
		h = h[len(h)-historyCap:]
	}
	p.history[symbol] = h
}

// GetStats reports throughput counters.
func (p *Processor) GetStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, h := range p.history {
		total += len(h)
	}

	rate := 0.0
	if p.processed > 0 {
		rate = float64(p.actedUpon) / float64(p.processed)
	}

	return Stats{
		Processed:      p.processed,
		ActedUpon:      p.actedUpon,
		ActionRate:     rate,
		TotalSignals:   total,
		SymbolsTracked: len(p.history),
	}
}

// GetQualityMetrics derives per-symbol quality figures from the bounded
// history.
func (p *Processor) GetQualityMetrics() map[string]QualityMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]QualityMetrics, len(p.history))
	for symbol, records := range p.history {
		if len(records) == 0 {
			continue
		}

		var confSum float64
		buys, sells := 0, 0
		for _, r := range records {
			confSum += r.Confidence
			switch r.Direction {
			case strategy.Buy:
				buys++
			case strategy.Sell:
				sells++
			}
		}

		perHour := 0.0
		if len(records) > 1 {
			span := records[len(records)-1].Timestamp.Sub(records[0].Timestamp)
			if span > 0 {
				perHour = float64(len(records)) / span.Hours()
			}
		}

		dominant := buys
		if sells > dominant {
			dominant = sells
		}

		out[symbol] = QualityMetrics{
			AverageConfidence: confSum / float64(len(records)),
			SignalsPerHour:    perHour,
			Consistency:       float64(dominant) / float64(len(records)),
			TotalSignals:      len(records),
			BuySignals:        buys,
			SellSignals:       sells,
		}
	}
	return out
}

// GetSignalHistory returns up to limit most recent records for symbol,
// oldest first.
func (p *Processor) GetSignalHistory(symbol string, limit int) []Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := p.history[symbol]
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	out := make([]Record, len(h))
	copy(out, h)
	return out
}

// GetLastSignal returns the last accepted signal for symbol.
func (p *Processor) GetLastSignal(symbol string) (strategy.Signal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sig, ok := p.lastSignals[symbol]
	return sig, ok
}

// ClearHistory drops stored history and the last-signal cache for
// symbol; an empty symbol clears every symbol.
func (p *Processor) ClearHistory(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if symbol == "" {
		p.history = make(map[string][]Record)
		p.lastSignals = make(map[string]strategy.Signal)
	} else {
		delete(p.history, symbol)
		delete(p.lastSignals, symbol)
	}
	p.log.Info("signal history cleared", zap.String("symbol", symbol))
}
