// Command bot runs the live trading bot: one strategy over a symbol
// universe on Bybit USDT perpetuals, with metrics and health endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/earthskyorg/bybit-trading-bot/internal/config"
	"github.com/earthskyorg/bybit-trading-bot/internal/engine"
	"github.com/earthskyorg/bybit-trading-bot/internal/exchange"
	"github.com/earthskyorg/bybit-trading-bot/internal/exchange/bybit"
	"github.com/earthskyorg/bybit-trading-bot/internal/logger"
	"github.com/earthskyorg/bybit-trading-bot/internal/monitoring"
	"github.com/earthskyorg/bybit-trading-bot/internal/notifications"
	"github.com/earthskyorg/bybit-trading-bot/internal/position"
	"github.com/earthskyorg/bybit-trading-bot/internal/reporting"
	"github.com/earthskyorg/bybit-trading-bot/internal/risk"
	"github.com/earthskyorg/bybit-trading-bot/internal/safety"
	sigproc "github.com/earthskyorg/bybit-trading-bot/internal/signal"
	"github.com/earthskyorg/bybit-trading-bot/internal/strategy"
)

const version = "1.0.0"

const shutdownGrace = 30 * time.Second

func main() {
	var (
		configFile     = flag.String("config", "", "Configuration file (bare names resolve under configs/)")
		dryRun         = flag.Bool("dry-run", false, "Paper mode: log orders instead of placing them")
		validateConfig = flag.Bool("validate-config", false, "Load and validate the config, then exit")
		logLevel       = flag.String("log-level", "", "Override the configured log level")
		envFile        = flag.String("env", ".env", "Environment file path")
		showVersion    = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("bybit-trading-bot %s\n", version)
		return
	}

	if *configFile == "" {
		log.Fatal("specify a config file with -config")
	}

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load %s: %v", *envFile, err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *dryRun {
		cfg.Trading.DryRun = true
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if *validateConfig {
		printConfigSummary(cfg)
		return
	}

	if err := run(cfg); err != nil {
		log.Fatalf("bot: %v", err)
	}
}

func printConfigSummary(cfg *config.Config) {
	fmt.Println("configuration OK")
	fmt.Printf("  strategy:   %s (interval %s, window %d)\n",
		cfg.Strategy.Name, cfg.Strategy.Interval, cfg.Strategy.WindowSize)
	if cfg.Trading.TradeAll {
		fmt.Printf("  symbols:    all tradable (minus %d exclusions)\n", len(cfg.Trading.ExcludedSymbols))
	} else {
		fmt.Printf("  symbols:    %v\n", cfg.Trading.Symbols)
	}
	fmt.Printf("  leverage:   %dx, order risk %.1f%%\n", cfg.Trading.Leverage, cfg.Trading.OrderRisk*100)
	fmt.Printf("  intervals:  signal %s, monitoring %s\n",
		cfg.Trading.SignalInterval.Std(), cfg.Trading.MonitoringInterval.Std())
	fmt.Printf("  dry run:    %v\n", cfg.Trading.DryRun)
}

func run(cfg *config.Config) error {
	if err := logger.InitWithConfig(logger.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		TracingEnabled: cfg.Logging.Tracing,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = logger.Shutdown(ctx)
	}()
	log := logger.Component("main")

	strat, err := strategy.New(cfg.Strategy.Name)
	if err != nil {
		return err
	}

	bybitConfig := bybit.Config{
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		Testnet:   cfg.Exchange.Testnet,
		Demo:      cfg.Exchange.Demo,
	}
	venue, err := bybit.NewClient(bybitConfig)
	if err != nil {
		return err
	}
	var client exchange.Client = safety.NewGuardedClient(venue)

	riskManager := risk.NewManager(risk.Limits{
		MaxPositionSize:  cfg.Risk.MaxPositionSize,
		MaxTotalExposure: cfg.Risk.MaxTotalExposure,
		MaxDailyLoss:     cfg.Risk.MaxDailyLoss,
		MaxDrawdown:      cfg.Risk.MaxDrawdown,
		MaxPositions:     cfg.Risk.MaxPositions,
	})
	notifier := notifications.NewFromConfig(cfg.Notifications)
	positions := position.NewManager(client, riskManager, notifier, cfg.Trading)
	signals := sigproc.NewProcessor(cfg.Trading.ConfidenceThreshold, riskManager)
	health := monitoring.NewHealthChecker()

	metricsServer := startServer(cfg.Monitoring.MetricsPort, "/metrics", monitoring.NewMetricsHandler(), log)
	healthServer := startServer(cfg.Monitoring.HealthPort, "/health", health, log)

	var streamFactory func(symbols []string) engine.PriceStream
	if cfg.Trading.PriceStream {
		streamFactory = func(symbols []string) engine.PriceStream {
			return bybit.NewTickerStream(bybitConfig, symbols, func(symbol string, price float64) {
				monitoring.UpdatePrice(symbol, price)
				health.UpdatePrice(price)
			})
		}
	}

	eng := engine.New(engine.Deps{
		Config:        cfg,
		Exchange:      client,
		Strategy:      strat,
		Risk:          riskManager,
		Positions:     positions,
		Signals:       signals,
		Notifier:      notifier,
		Health:        health,
		StreamFactory: streamFactory,
	})

	startCtx, cancelStart := context.WithTimeout(context.Background(), shutdownGrace)
	err = eng.Start(startCtx)
	cancelStart()
	if err != nil {
		return err
	}
	reporting.PrintStartupBanner(strat.Name(), venue.Environment(), eng.Symbols(), cfg.Trading.DryRun)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	received := <-sigChan
	log.Info("shutdown signal received", zap.String("signal", received.String()))

	done := make(chan error, 1)
	go func() { done <- eng.Stop() }()
	select {
	case err = <-done:
	case <-time.After(shutdownGrace):
		err = fmt.Errorf("shutdown timed out after %s", shutdownGrace)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = metricsServer.Shutdown(shutdownCtx)
	_ = healthServer.Shutdown(shutdownCtx)

	return err
}

func startServer(port int, path string, handler http.Handler, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server stopped", zap.String("path", path), zap.Error(err))
		}
	}()
	return server
}
