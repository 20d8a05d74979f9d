package trader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cexio-trade-bot-go/internal/cexio"
	"cexio-trade-bot-go/internal/config"
	"cexio-trade-bot-go/internal/ledger"
	"cexio-trade-bot-go/internal/models"
	"cexio-trade-bot-go/internal/notify"

	"go.uber.org/zap"
)

// Reporter sends the daily summary: current balances plus every order from
// the last 24 hours. Timestamps are rendered in the display timezone;
// everything else in the bot stays in UTC.
type Reporter struct {
	logger   *zap.Logger
	cfg      *config.Trading
	client   cexio.RestClientInterface
	ledger   *ledger.Ledger
	notifier notify.Notifier
	location *time.Location
}

// NewReporter creates a Reporter. An unknown display timezone falls back
// to UTC rather than failing the bot.
func NewReporter(logger *zap.Logger, cfg *config.Trading, client cexio.RestClientInterface, lg *ledger.Ledger, notifier notify.Notifier) *Reporter {
	log := logger.Named("reporter")
	location, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		log.Warn("Unknown display timezone, falling back to UTC", zap.String("timezone", cfg.DisplayTimezone))
		location = time.UTC
	}
	return &Reporter{
		logger:   log,
		cfg:      cfg,
		client:   client,
		ledger:   lg,
		notifier: notifier,
		location: location,
	}
}

// SendReport gathers balances and the last day's orders and delivers the
// summary through the notifier.
func (r *Reporter) SendReport(ctx context.Context) error {
	pair := models.Pair(r.cfg.Pair)

	balances, err := r.client.Balance()
	if err != nil {
		return fmt.Errorf("could not get balances for daily report: %w", err)
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	orders, err := r.ledger.Since(since)
	if err != nil {
		return err
	}

	body := r.render(pair, balances, orders, since)
	if err := r.notifier.Notify(ctx, "Daily report", body); err != nil {
		return fmt.Errorf("could not deliver daily report: %w", err)
	}

	r.logger.Info("Daily report sent", zap.Int("orders", len(orders)))
	return nil
}

func (r *Reporter) render(pair models.Pair, balances map[string]cexio.AssetBalance, orders []models.Order, since time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Trading summary for %s since %s\n\n", pair, since.In(r.location).Format("Mon Jan 2 15:04 MST"))

	b.WriteString("Balances:\n")
	for _, asset := range []string{pair.Base(), pair.Quote()} {
		if entry, ok := balances[asset]; ok {
			fmt.Fprintf(&b, "  %s available: %s\n", asset, entry.Available)
		} else {
			fmt.Fprintf(&b, "  %s available: unknown\n", asset)
		}
	}

	b.WriteString("\nOrders in the last 24 hours:\n")
	if len(orders) == 0 {
		b.WriteString("  none\n")
		return b.String()
	}
	for _, order := range orders {
		fmt.Fprintf(&b, "  %s  %-4s %s  amount %v  price %v  total %v\n",
			order.CreatedAt.In(r.location).Format("Jan 2 15:04"),
			order.Side, order.Pair, order.Amount, order.Price, order.Total)
	}

	return b.String()
}
