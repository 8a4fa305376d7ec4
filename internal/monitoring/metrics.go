package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_bot_trades_total",
			Help: "Total number of orders executed",
		},
		[]string{"symbol", "side"},
	)

	tradeQuantity = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trading_bot_trade_quantity",
			Help:    "Distribution of executed order quantities",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"symbol"},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trading_bot_current_price",
			Help: "Latest observed price per symbol",
		},
		[]string{"symbol"},
	)

	// Strategy metrics
	strategyConfidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trading_bot_strategy_confidence",
			Help: "Confidence of the most recent strategy signal",
		},
		[]string{"strategy"},
	)

	signalsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_bot_signals_processed_total",
			Help: "Signals run through the gate, labelled by outcome",
		},
		[]string{"result"},
	)

	// Account and risk metrics
	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trading_bot_open_positions",
			Help: "Number of currently tracked positions",
		},
	)

	accountBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trading_bot_account_balance",
			Help: "Account balance in quote currency",
		},
	)

	riskScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trading_bot_risk_score",
			Help: "Aggregate risk score (0-100)",
		},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_bot_errors_total",
			Help: "Total number of errors by category",
		},
		[]string{"type"},
	)

	// Exchange metrics
	exchangeRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trading_bot_exchange_request_duration_seconds",
			Help:    "Latency of exchange API round trips",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradeQuantity)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(strategyConfidence)
	prometheus.MustRegister(signalsProcessedTotal)
	prometheus.MustRegister(openPositions)
	prometheus.MustRegister(accountBalance)
	prometheus.MustRegister(riskScore)
	prometheus.MustRegister(errorsTotal)
	prometheus.MustRegister(exchangeRequestDuration)
}

// MetricsHandler serves the Prometheus scrape endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordTrade records an executed order
func RecordTrade(symbol, side string, quantity float64) {
	tradesTotal.WithLabelValues(symbol, side).Inc()
	tradeQuantity.WithLabelValues(symbol).Observe(quantity)
}

// UpdatePrice updates the latest price gauge
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// UpdateStrategyConfidence updates the strategy confidence gauge
func UpdateStrategyConfidence(strategy string, confidence float64) {
	strategyConfidence.WithLabelValues(strategy).Set(confidence)
}

// RecordSignalProcessed counts one gate decision
func RecordSignalProcessed(result string) {
	signalsProcessedTotal.WithLabelValues(result).Inc()
}

// UpdateOpenPositions updates the tracked-position gauge
func UpdateOpenPositions(count int) {
	openPositions.Set(float64(count))
}

// UpdateAccountBalance updates the balance gauge
func UpdateAccountBalance(balance float64) {
	accountBalance.Set(balance)
}

// UpdateRiskScore updates the aggregate risk score gauge
func UpdateRiskScore(score float64) {
	riskScore.Set(score)
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}

// ObserveExchangeRequest records one exchange round trip's latency
func ObserveExchangeRequest(endpoint string, duration time.Duration) {
	exchangeRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
