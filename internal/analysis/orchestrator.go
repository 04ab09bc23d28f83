// Package analysis drives the alert pipeline: normalize the symbol, fan out
// candle fetches across the timeframe ladder, ask the oracle for a verdict,
// then detach notification and admission so the caller gets the verdict
// independent of whether a paper trade opens.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mikemcculloch/TradeSmart/internal/admission"
	"github.com/mikemcculloch/TradeSmart/internal/marketdata"
	"github.com/mikemcculloch/TradeSmart/internal/models"
	"github.com/mikemcculloch/TradeSmart/internal/notify"
	"github.com/mikemcculloch/TradeSmart/internal/oracle"
	"github.com/mikemcculloch/TradeSmart/internal/symbols"
)

var (
	// ErrInvalidInput indicates the alert is missing its symbol.
	ErrInvalidInput = errors.New("alert symbol is required")
	// ErrNoMarketData indicates no timeframe fetch succeeded.
	ErrNoMarketData = errors.New("no market data available for any timeframe")
)

// detachTimeout bounds the detached notification/admission tasks.
const detachTimeout = 30 * time.Second

// Admitter evaluates a verdict for paper execution.
type Admitter interface {
	Evaluate(ctx context.Context, verdict *models.Verdict) admission.ExecutionResult
}

// Orchestrator coordinates the quote client, oracle, notifier, and
// admission filter for one alert.
type Orchestrator struct {
	quotes      marketdata.Provider
	oracle      oracle.Oracle
	notifier    notify.Notifier
	admitter    Admitter
	timeframes  []string
	candleCount int
	logger      *logrus.Logger
}

// New creates an orchestrator over the configured timeframe ladder.
func New(
	quotes marketdata.Provider,
	verdictOracle oracle.Oracle,
	notifier notify.Notifier,
	admitter Admitter,
	timeframes []string,
	candleCount int,
	logger *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		quotes:      quotes,
		oracle:      verdictOracle,
		notifier:    notifier,
		admitter:    admitter,
		timeframes:  timeframes,
		candleCount: candleCount,
		logger:      logger,
	}
}

// Analyze runs the pipeline for one alert and returns the verdict. The
// notifier and admission branches run detached on a background context, so
// their failures (and the inbound request's cancellation) cannot affect the
// returned verdict.
func (o *Orchestrator) Analyze(ctx context.Context, alert *models.Alert) (*models.Verdict, error) {
	if alert == nil || alert.Symbol == "" {
		return nil, ErrInvalidInput
	}

	canonical := symbols.Normalize(alert.Symbol)
	o.logger.Infof("analyzing alert for %s (canonical %s)", alert.Symbol, canonical)

	marketData := o.fetchTimeframes(ctx, canonical)
	if len(marketData) == 0 {
		return nil, ErrNoMarketData
	}

	verdict, err := o.oracle.Analyze(ctx, alert, marketData)
	if err != nil {
		return nil, err
	}
	verdict.Symbol = canonical

	o.logger.Infof("verdict for %s: %s confidence=%.0f",
		canonical, verdict.Direction, verdict.Confidence)

	go func() {
		detachCtx, cancel := context.WithTimeout(context.Background(), detachTimeout)
		defer cancel()
		o.notifier.OnAlertAnalyzed(detachCtx, alert, verdict)
	}()
	go func() {
		detachCtx, cancel := context.WithTimeout(context.Background(), detachTimeout)
		defer cancel()
		o.admitter.Evaluate(detachCtx, verdict)
	}()

	return verdict, nil
}

// fetchTimeframes requests candles for every timeframe in parallel and
// keeps the successful responses in ladder order. Per-timeframe failures
// are dropped with a warning.
func (o *Orchestrator) fetchTimeframes(ctx context.Context, symbol string) []models.TimeframeData {
	results := make([][]models.Candle, len(o.timeframes))

	var g errgroup.Group
	for i, tf := range o.timeframes {
		i, tf := i, tf
		g.Go(func() error {
			candles, err := o.quotes.FetchCandles(ctx, symbol, tf, o.candleCount)
			if err != nil {
				o.logger.WithError(err).Warnf("dropping timeframe %s for %s", tf, symbol)
				return nil
			}
			results[i] = candles
			return nil
		})
	}
	_ = g.Wait()

	collected := make([]models.TimeframeData, 0, len(o.timeframes))
	for i, tf := range o.timeframes {
		if len(results[i]) == 0 {
			continue
		}
		collected = append(collected, models.TimeframeData{
			Timeframe: tf,
			Candles:   results[i],
		})
	}
	return collected
}
