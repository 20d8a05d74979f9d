package trader

import (
	"context"
	"time"

	"cexio-trade-bot-go/internal/cexio"
	"cexio-trade-bot-go/internal/config"
	"cexio-trade-bot-go/internal/ledger"
	"cexio-trade-bot-go/internal/lock"
	"cexio-trade-bot-go/internal/models"
	"cexio-trade-bot-go/internal/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine owns the periodic scheduling of the decision engine, the
// reconciler and the daily report. Each pass runs to completion
// synchronously; the per-pair advisory lock keeps a slow pass from
// overlapping with the next tick.
type Engine struct {
	UUID      string
	StartTime time.Time

	logger     *zap.Logger
	cfg        *config.Config
	client     cexio.RestClientInterface
	decision   *DecisionEngine
	reconciler *Reconciler
	reporter   *Reporter
	locker     lock.Locker

	lastReportDay string
}

// NewEngine creates a new trading engine and its core components.
func NewEngine(logger *zap.Logger, cfg *config.Config, client cexio.RestClientInterface, lg *ledger.Ledger, notifier notify.Notifier, locker lock.Locker) *Engine {
	return &Engine{
		UUID:       uuid.NewString(),
		StartTime:  time.Now(),
		logger:     logger,
		cfg:        cfg,
		client:     client,
		decision:   NewDecisionEngine(logger, &cfg.Trading, client, lg, notifier),
		reconciler: NewReconciler(logger, &cfg.Trading, client, lg),
		reporter:   NewReporter(logger, &cfg.Trading, client, lg, notifier),
		locker:     locker,
	}
}

// Posture reports the current trading posture, for the status API.
func (e *Engine) Posture() string {
	return e.decision.Posture()
}

// Pair returns the configured trading pair.
func (e *Engine) Pair() string {
	return e.cfg.Trading.Pair
}

// Run starts the engine's scheduling loop and blocks until the context is
// cancelled. A failed pass is logged and retried wholesale on its next
// tick; state is re-derived from the exchange and the ledger every time.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("Initializing trading engine...")
	if _, err := e.client.Ticker(models.Pair(e.cfg.Trading.Pair)); err != nil {
		e.logger.Fatal("Failed to reach the exchange", zap.Error(err))
	}
	e.logger.Info("Engine initialized successfully.",
		zap.String("uuid", e.UUID),
		zap.String("pair", e.cfg.Trading.Pair),
		zap.Bool("enabled", e.cfg.Trading.Enabled),
	)

	decisionTicker := time.NewTicker(time.Duration(e.cfg.Trading.TickInterval) * time.Second)
	defer decisionTicker.Stop()
	reconcileTicker := time.NewTicker(time.Duration(e.cfg.Trading.ReconcileInterval) * time.Second)
	defer reconcileTicker.Stop()
	reportTicker := time.NewTicker(time.Minute)
	defer reportTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping trading engine...")
			return
		case <-decisionTicker.C:
			e.decisionPass(ctx)
		case <-reconcileTicker.C:
			if err := e.reconciler.ReconcileOnce(ctx); err != nil {
				e.logger.Error("Reconciliation pass failed", zap.Error(err))
			}
		case <-reportTicker.C:
			e.maybeReport(ctx)
		}
	}
}

// decisionPass runs one decision pass under the per-pair lock. A busy lock
// means the previous pass is still in flight; this tick is skipped rather
// than queued.
func (e *Engine) decisionPass(ctx context.Context) {
	key := "pair:" + e.cfg.Trading.Pair

	ok, err := e.locker.TryAcquire(ctx, key)
	if err != nil {
		e.logger.Error("Failed to acquire pair lock", zap.String("key", key), zap.Error(err))
		return
	}
	if !ok {
		e.logger.Debug("Previous decision pass still in flight, skipping tick", zap.String("key", key))
		return
	}
	defer func() {
		if err := e.locker.Release(ctx, key); err != nil {
			e.logger.Error("Failed to release pair lock", zap.String("key", key), zap.Error(err))
		}
	}()

	if err := e.decision.RunOnce(ctx); err != nil {
		e.logger.Error("Decision pass failed", zap.Error(err))
	}
}

// maybeReport fires the daily report once per day at the configured
// display-timezone hour.
func (e *Engine) maybeReport(ctx context.Context) {
	if !e.cfg.Report.Enabled {
		return
	}

	now := time.Now().In(e.reporter.location)
	day := now.Format("2006-01-02")
	if now.Hour() != e.cfg.Report.Hour || day == e.lastReportDay {
		return
	}

	if err := e.reporter.SendReport(ctx); err != nil {
		e.logger.Error("Daily report failed", zap.Error(err))
		return
	}
	e.lastReportDay = day
}
