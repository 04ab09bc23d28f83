// Command server runs the TradeSmart webhook server: it receives charting
// alerts, renders LLM trade verdicts, and paper-trades the ones that pass
// the risk gates.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mikemcculloch/TradeSmart/internal/admission"
	"github.com/mikemcculloch/TradeSmart/internal/analysis"
	"github.com/mikemcculloch/TradeSmart/internal/api"
	"github.com/mikemcculloch/TradeSmart/internal/config"
	"github.com/mikemcculloch/TradeSmart/internal/engine"
	"github.com/mikemcculloch/TradeSmart/internal/marketdata"
	"github.com/mikemcculloch/TradeSmart/internal/monitor"
	"github.com/mikemcculloch/TradeSmart/internal/notify"
	"github.com/mikemcculloch/TradeSmart/internal/oracle"
	"github.com/mikemcculloch/TradeSmart/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.Server.LogLevel)

	pt := cfg.PaperTrading
	if pt.Enabled {
		logger.Infof("paper trading enabled: balance=$%.2f maxPositions=%d leverage=%dx sizePct=%.0f%%",
			pt.InitialBalance, pt.MaxConcurrentPositions, pt.Leverage, pt.MaxPositionSizePercent*100)
	} else {
		logger.Info("paper trading disabled: alerts are analyzed but never executed")
	}

	store := storage.NewJSONStore(pt.StateFilePath, decimal.NewFromFloat(pt.InitialBalance), logger)

	eng := engine.New(engine.Config{
		MaxPositionSizePercent: decimal.NewFromFloat(pt.MaxPositionSizePercent),
		MaxConcurrentPositions: pt.MaxConcurrentPositions,
		Leverage:               pt.Leverage,
		MaxStopLossPercent:     decimal.NewFromFloat(pt.MaxStopLossPercent),
	}, store, logger)

	quotes := marketdata.NewBreakerProvider(
		marketdata.NewClient(cfg.MarketData.BaseURL, cfg.MarketData.APIKey, logger),
		logger,
	)

	verdictOracle := oracle.NewClient(oracle.Config{
		BaseURL:   cfg.Oracle.BaseURL,
		Model:     cfg.Oracle.Model,
		MaxTokens: cfg.Oracle.MaxTokens,
		APIKey:    cfg.Oracle.APIKey,
	}, logger)

	notifier := notify.NewWebhookNotifier(cfg.Notifier.WebhookURL, logger)

	filter := admission.NewFilter(admission.Config{
		Enabled:             pt.Enabled,
		ConfidenceThreshold: pt.ConfidenceThreshold,
		AllowedBaseSymbols:  pt.AllowedBaseSymbols,
	}, eng, notifier, logger)

	orchestrator := analysis.New(
		quotes, verdictOracle, notifier, filter,
		cfg.MarketData.Timeframes, cfg.MarketData.CandleCount, logger,
	)

	server := api.NewServer(api.Config{
		Port:          cfg.Server.Port,
		WebhookSecret: cfg.Server.WebhookSecret,
	}, orchestrator, eng, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if pt.Enabled {
		if err := eng.EnsureLoaded(); err != nil {
			logger.Fatalf("failed to load engine state: %v", err)
		}
		mon := monitor.New(eng, quotes, notifier, cfg.MonitorInterval(), logger)
		go mon.Run(ctx)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown failed")
	}

	logger.Info("server stopped")
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	return logger
}
