package trader

import (
	"context"
	"fmt"
	"time"

	"cexio-trade-bot-go/internal/cexio"
	"cexio-trade-bot-go/internal/config"
	"cexio-trade-bot-go/internal/ledger"
	"cexio-trade-bot-go/internal/models"

	"go.uber.org/zap"
)

// Reconciler reaps stale open orders: anything on the exchange older than
// the configured auto-cancel period is cancelled, and ledger rows for
// confirmed cancellations are pruned so they never serve as a reference
// price again.
type Reconciler struct {
	logger *zap.Logger
	cfg    *config.Trading
	client cexio.RestClientInterface
	ledger *ledger.Ledger

	// now is swappable in tests.
	now func() time.Time
}

// NewReconciler creates a Reconciler.
func NewReconciler(logger *zap.Logger, cfg *config.Trading, client cexio.RestClientInterface, lg *ledger.Ledger) *Reconciler {
	return &Reconciler{
		logger: logger.Named("reconciler"),
		cfg:    cfg,
		client: client,
		ledger: lg,
		now:    time.Now,
	}
}

// ReconcileOnce performs a single reconciliation pass. All ages are
// compared in UTC; the gateway already normalized exchange timestamps.
// A cancellation the exchange does not confirm is simply left for the
// next pass, and the batch delete is idempotent, so rerunning a partially
// applied pass converges.
func (r *Reconciler) ReconcileOnce(ctx context.Context) error {
	if !r.cfg.Enabled {
		r.logger.Debug("Bot is disabled, skipping reconciliation pass")
		return nil
	}

	pair := models.Pair(r.cfg.Pair)

	open, err := r.client.OpenOrders(pair)
	if err != nil {
		return fmt.Errorf("could not check open orders: %w", err)
	}
	if len(open) == 0 {
		r.logger.Debug("No open orders to reconcile")
		return nil
	}

	maxAge := time.Duration(r.cfg.AutoCancelMinutes) * time.Minute
	now := r.now().UTC()

	var cancelled []string
	for _, order := range open {
		age := now.Sub(order.Time)
		if age <= maxAge {
			continue
		}

		l := r.logger.With(
			zap.String("order_id", order.ID),
			zap.Duration("age", age),
			zap.Duration("max_age", maxAge),
		)
		l.Info("Open order exceeded the auto-cancel period, cancelling")

		ok, err := r.client.CancelOrder(order.ID)
		if err != nil {
			// Left for the next pass, no in-run retry.
			l.Error("Cancellation attempt failed", zap.Error(err))
			continue
		}
		if !ok {
			l.Warn("Exchange did not confirm cancellation, leaving for next pass")
			continue
		}
		cancelled = append(cancelled, order.ID)
	}

	if len(cancelled) == 0 {
		return nil
	}

	pruned, err := r.ledger.DeleteByExchangeOrderIDs(cancelled)
	if err != nil {
		// Cancelled on the exchange but still in the ledger; the ids will
		// be retried the next time they appear in a confirmed-cancel set.
		return fmt.Errorf("cancelled %d orders but failed to prune the ledger: %w", len(cancelled), err)
	}

	r.logger.Info("Reconciliation pass complete",
		zap.Int("cancelled", len(cancelled)),
		zap.Int64("ledger_rows_pruned", pruned),
	)
	return nil
}
