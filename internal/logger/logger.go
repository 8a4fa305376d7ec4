// Package logger is the observability sink for the trading core. It wraps
// a zap logger and an optional OpenTelemetry stdout tracer; domain events
// (trade_signal, trade_opened, trade_closed, risk_report,
// error_with_context) are emitted as structured records and, when tracing
// is on, attached to the active span.
package logger

import (
	"context"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "bybit-trading-bot"

var (
	globalLogger   *zap.Logger
	tracingEnabled bool
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
)

// Config holds logging configuration
type Config struct {
	Level          string // debug, info, warn, error
	Format         string // json or console
	TracingEnabled bool
}

// LoadConfigFromEnv loads logging configuration from environment variables
func LoadConfigFromEnv() Config {
	return Config{
		Level:          getEnvOrDefault("LOG_LEVEL", "info"),
		Format:         getEnvOrDefault("LOG_FORMAT", "console"),
		TracingEnabled: getEnvOrDefault("LOG_TRACING_ENABLED", "false") == "true",
	}
}

// Init initializes the global logger and tracer from environment variables
func Init() error {
	return InitWithConfig(LoadConfigFromEnv())
}

// InitWithConfig initializes the global logger and tracer
func InitWithConfig(config Config) error {
	var zapCfg zap.Config
	if config.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(parseLevel(config.Level))

	log, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	globalLogger = log

	tracingEnabled = config.TracingEnabled
	if tracingEnabled {
		if err := initTracer(); err != nil {
			globalLogger.Warn("tracing disabled, tracer init failed", zap.Error(err))
			tracingEnabled = false
		}
	}

	return nil
}

func initTracer() error {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return err
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = otel.Tracer(serviceName)

	return nil
}

// Shutdown flushes pending log entries and spans
func Shutdown(ctx context.Context) error {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
	if tracerProvider != nil {
		return tracerProvider.Shutdown(ctx)
	}
	return nil
}

// Component returns a named logger for a component. Falls back to a no-op
// logger when Init has not run (tests).
func Component(name string) *zap.Logger {
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger.Named(name)
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// StartSpan starts a new span when tracing is enabled
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !tracingEnabled || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, opts...)
}

func spanFields(ctx context.Context) []zap.Field {
	if !tracingEnabled {
		return nil
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	}
}

func log(ctx context.Context, level zapcore.Level, msg string, fields ...zap.Field) {
	if globalLogger == nil {
		return
	}
	fields = append(spanFields(ctx), fields...)
	if ce := globalLogger.Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

// Debug logs a debug message with trace correlation
func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	log(ctx, zapcore.DebugLevel, msg, fields...)
}

// Info logs an info message with trace correlation
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	log(ctx, zapcore.InfoLevel, msg, fields...)
}

// Warn logs a warning message with trace correlation
func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	log(ctx, zapcore.WarnLevel, msg, fields...)
}

// Error logs an error message with trace correlation
func Error(ctx context.Context, msg string, fields ...zap.Field) {
	log(ctx, zapcore.ErrorLevel, msg, fields...)
}

// OperationTimer measures an operation's duration inside its own span
type OperationTimer struct {
	ctx   context.Context
	span  trace.Span
	name  string
	start time.Time
}

// StartOperation opens a span for a named operation
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *OperationTimer {
	var span trace.Span
	if tracingEnabled {
		ctx, span = StartSpan(ctx, operation)
		span.SetAttributes(attrs...)
	}

	return &OperationTimer{
		ctx:   ctx,
		span:  span,
		name:  operation,
		start: time.Now(),
	}
}

// Context returns the context carrying the operation's span
func (ot *OperationTimer) Context() context.Context {
	return ot.ctx
}

// End completes the operation
func (ot *OperationTimer) End() {
	duration := time.Since(ot.start)
	if tracingEnabled && ot.span != nil {
		ot.span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		ot.span.SetStatus(codes.Ok, "completed")
		ot.span.End()
	}
	Debug(ot.ctx, "operation completed",
		zap.String("operation", ot.name),
		zap.Duration("duration", duration))
}

// EndWithError completes the operation recording the error on the span
func (ot *OperationTimer) EndWithError(err error) {
	duration := time.Since(ot.start)
	if tracingEnabled && ot.span != nil {
		ot.span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		ot.span.RecordError(err)
		ot.span.SetStatus(codes.Error, err.Error())
		ot.span.End()
	}
	Error(ot.ctx, "operation failed",
		zap.String("operation", ot.name),
		zap.Duration("duration", duration),
		zap.Error(err))
}

// TradeSignal records a strategy signal decision
func TradeSignal(ctx context.Context, symbol, direction string, confidence float64, reason string) {
	if tracingEnabled {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.AddEvent("trade_signal", trace.WithAttributes(
				attribute.String("symbol", symbol),
				attribute.String("direction", direction),
				attribute.Float64("confidence", confidence),
				attribute.String("reason", reason),
			))
		}
	}

	Info(ctx, "trade_signal",
		zap.String("symbol", symbol),
		zap.String("direction", direction),
		zap.Float64("confidence", confidence),
		zap.String("reason", reason))
}

// TradeOpened records an executed entry order
func TradeOpened(ctx context.Context, symbol, side string, quantity, price float64, orderID string) {
	if tracingEnabled {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.AddEvent("trade_opened", trace.WithAttributes(
				attribute.String("symbol", symbol),
				attribute.String("side", side),
				attribute.Float64("quantity", quantity),
				attribute.Float64("price", price),
				attribute.String("order_id", orderID),
			))
		}
	}

	Info(ctx, "trade_opened",
		zap.String("symbol", symbol),
		zap.String("side", side),
		zap.Float64("quantity", quantity),
		zap.Float64("price", price),
		zap.String("order_id", orderID))
}

// TradeClosed records an executed exit order
func TradeClosed(ctx context.Context, symbol, reason string, pnl float64) {
	if tracingEnabled {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.AddEvent("trade_closed", trace.WithAttributes(
				attribute.String("symbol", symbol),
				attribute.String("reason", reason),
				attribute.Float64("pnl", pnl),
			))
		}
	}

	Info(ctx, "trade_closed",
		zap.String("symbol", symbol),
		zap.String("reason", reason),
		zap.Float64("pnl", pnl))
}

// RiskReport records an aggregate risk snapshot
func RiskReport(ctx context.Context, score float64, level string, exposure, drawdown float64, positions int) {
	if tracingEnabled {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.AddEvent("risk_report", trace.WithAttributes(
				attribute.Float64("score", score),
				attribute.String("level", level),
				attribute.Float64("exposure", exposure),
				attribute.Float64("drawdown", drawdown),
				attribute.Int("positions", positions),
			))
		}
	}

	Info(ctx, "risk_report",
		zap.Float64("score", score),
		zap.String("level", level),
		zap.Float64("exposure", exposure),
		zap.Float64("drawdown", drawdown),
		zap.Int("positions", positions))
}

// ErrorWithContext records a failure with its component and operation
func ErrorWithContext(ctx context.Context, component, operation string, err error, fields ...zap.Field) {
	if tracingEnabled {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}

	all := append([]zap.Field{
		zap.String("component", component),
		zap.String("operation", operation),
		zap.Error(err),
	}, fields...)
	Error(ctx, "error_with_context", all...)
}
