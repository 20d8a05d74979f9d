package trader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cexio-trade-bot-go/internal/cexio"
	"cexio-trade-bot-go/internal/config"
	"cexio-trade-bot-go/internal/ledger"
	"cexio-trade-bot-go/internal/models"
	"cexio-trade-bot-go/internal/notify"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Trading postures, derived from the side of the most recent ledger order.
const (
	PostureAwaitingSell = "AWAITING_SELL" // last order was a BUY, holding the base asset
	PostureAwaitingBuy  = "AWAITING_BUY"  // last order was a SELL, holding quote currency
	PostureUnseeded     = "UNSEEDED"      // empty ledger, no reference price yet
)

var one = decimal.NewFromInt(1)

// DecisionEngine decides whether to flip between holding the base asset
// and holding quote currency, and places the limit order that does it.
//
// It keeps no state of its own: the posture is recomputed on every pass
// from the most recent ledger order, so a pass is safe to repeat.
type DecisionEngine struct {
	logger   *zap.Logger
	cfg      *config.Trading
	client   cexio.RestClientInterface
	ledger   *ledger.Ledger
	notifier notify.Notifier
}

// NewDecisionEngine creates a DecisionEngine.
func NewDecisionEngine(logger *zap.Logger, cfg *config.Trading, client cexio.RestClientInterface, lg *ledger.Ledger, notifier notify.Notifier) *DecisionEngine {
	return &DecisionEngine{
		logger:   logger.Named("decision"),
		cfg:      cfg,
		client:   client,
		ledger:   lg,
		notifier: notifier,
	}
}

// RunOnce performs a single decision pass. Expected conditions (bot off,
// an order still open, empty ledger, no trigger hit, exchange rejection)
// are handled internally and return nil; only transport-level failures
// propagate, to be retried by the next scheduled pass.
func (e *DecisionEngine) RunOnce(ctx context.Context) error {
	if !e.cfg.Enabled {
		e.logger.Debug("Bot is disabled, skipping decision pass")
		return nil
	}

	pair := models.Pair(e.cfg.Pair)

	// At most one outstanding order: while a prior order is unresolved we
	// must not open an overlapping position.
	open, err := e.client.OpenOrders(pair)
	if err != nil {
		return fmt.Errorf("could not check open orders: %w", err)
	}
	if len(open) > 0 {
		e.logger.Debug("Open order outstanding, skipping decision pass", zap.Int("open_orders", len(open)))
		return nil
	}

	last, err := e.ledger.MostRecent(pair)
	if err != nil {
		return err
	}
	if last == nil {
		// No reference price to compare against; a manual seed trade
		// bootstraps the bot.
		e.logger.Debug("Ledger is empty, waiting for a seed trade")
		return nil
	}

	ticker, err := e.client.Ticker(pair)
	if err != nil {
		return fmt.Errorf("could not get ticker: %w", err)
	}
	bid, err := decimal.NewFromString(ticker.Bid.String())
	if err != nil {
		return fmt.Errorf("exchange returned an unparsable bid %q: %w", ticker.Bid, err)
	}

	refPrice := decimal.NewFromFloat(last.Price)
	l := e.logger.With(
		zap.String("pair", pair.String()),
		zap.String("bid", bid.String()),
		zap.String("ref_price", refPrice.String()),
	)

	switch last.Side {
	case models.SideBuy:
		return e.trySell(ctx, l, pair, refPrice, bid)
	case models.SideSell:
		return e.tryBuy(ctx, l, pair, refPrice, bid)
	default:
		l.Warn("Most recent order has an unknown side, refusing to trade", zap.String("side", last.Side))
		return nil
	}
}

// Posture reports the current trading posture, for the status API.
func (e *DecisionEngine) Posture() string {
	last, err := e.ledger.MostRecent(models.Pair(e.cfg.Pair))
	if err != nil || last == nil {
		return PostureUnseeded
	}
	if last.Side == models.SideBuy {
		return PostureAwaitingSell
	}
	return PostureAwaitingBuy
}

// trySell fires when the bid rises to the profit-taking trigger or falls
// to the downswing stop, and sells the entire available base balance at
// the current bid.
func (e *DecisionEngine) trySell(ctx context.Context, l *zap.Logger, pair models.Pair, refPrice, bid decimal.Decimal) error {
	sellTrigger := refPrice.Mul(one.Add(decimal.NewFromFloat(e.cfg.SellThreshold)))
	stopTrigger := refPrice.Mul(one.Sub(decimal.NewFromFloat(e.cfg.DownswingSellThreshold)))

	l = l.With(
		zap.String("posture", PostureAwaitingSell),
		zap.String("sell_trigger", sellTrigger.String()),
		zap.String("stop_trigger", stopTrigger.String()),
	)

	if bid.LessThan(sellTrigger) && bid.GreaterThan(stopTrigger) {
		l.Debug("No sell trigger hit this pass")
		return nil
	}

	balances, err := e.client.Balance()
	if err != nil {
		return fmt.Errorf("could not get balance: %w", err)
	}
	amount, err := availableBalance(balances, pair.Base())
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		l.Warn("No base asset balance available to sell", zap.String("amount", amount.String()))
		return nil
	}

	l.Info("Sell trigger hit, placing limit sell for full balance", zap.String("amount", amount.String()))
	return e.place(ctx, l, pair, models.SideSell, amount, bid)
}

// tryBuy fires when the bid drops to the discount trigger or climbs to the
// upswing stop, and spends the full quote balance less the configured fee.
// The original bot rounded the buy-side triggers to whole cents; keep that.
func (e *DecisionEngine) tryBuy(ctx context.Context, l *zap.Logger, pair models.Pair, refPrice, bid decimal.Decimal) error {
	buyTrigger := refPrice.Mul(one.Sub(decimal.NewFromFloat(e.cfg.BuyThreshold))).Round(2)
	stopTrigger := refPrice.Mul(one.Add(decimal.NewFromFloat(e.cfg.UpswingBuyThreshold))).Round(2)

	l = l.With(
		zap.String("posture", PostureAwaitingBuy),
		zap.String("buy_trigger", buyTrigger.String()),
		zap.String("stop_trigger", stopTrigger.String()),
	)

	if bid.GreaterThan(buyTrigger) && bid.LessThan(stopTrigger) {
		l.Debug("No buy trigger hit this pass")
		return nil
	}

	balances, err := e.client.Balance()
	if err != nil {
		return fmt.Errorf("could not get balance: %w", err)
	}
	quote, err := availableBalance(balances, pair.Quote())
	if err != nil {
		return err
	}

	amount := quote.Sub(decimal.NewFromFloat(e.cfg.Fee)).Div(bid).Round(6)
	if !amount.IsPositive() {
		l.Warn("Quote balance does not cover the fee, skipping buy",
			zap.String("quote_balance", quote.String()),
			zap.Float64("fee", e.cfg.Fee),
		)
		return nil
	}

	l.Info("Buy trigger hit, placing limit buy", zap.String("amount", amount.String()))
	return e.place(ctx, l, pair, models.SideBuy, amount, bid)
}

// place submits the limit order and settles the result: a rejection or a
// malformed confirmation is reported to the admin and never persisted,
// a confirmed order is appended to the ledger and announced.
func (e *DecisionEngine) place(ctx context.Context, l *zap.Logger, pair models.Pair, side string, amount, price decimal.Decimal) error {
	placed, err := e.client.PlaceLimitOrder(side, amount.String(), price.String(), pair)

	var rejected *cexio.OrderRejectedError
	if errors.As(err, &rejected) {
		l.Warn("Exchange rejected the order", zap.String("reason", rejected.Reason))
		e.notify(ctx, "New order error", "There was an error processing an order: "+rejected.Reason)
		return nil
	}
	if err != nil {
		// Transport failure: the placement outcome is ambiguous, so no
		// Ledger write and no resubmit. The open-orders guard protects the
		// next pass if the order actually went through.
		return err
	}

	order, err := parsePlacedOrder(placed, pair)
	if err != nil {
		l.Error("Placement confirmation could not be parsed, order not recorded", zap.Error(err))
		e.notify(ctx, "Error Creating Order", err.Error())
		return nil
	}

	if err := e.ledger.Record(order); err != nil {
		e.notify(ctx, "Error Creating Order", err.Error())
		return err
	}

	l.Info("Recorded new order",
		zap.String("exchange_order_id", order.ExchangeOrderID),
		zap.String("side", order.Side),
		zap.Float64("price", order.Price),
		zap.Float64("amount", order.Amount),
	)
	e.notify(ctx,
		fmt.Sprintf("New %s order placed", order.Side),
		fmt.Sprintf("Amount: %v\nPrice: %v", order.Amount, order.Price),
	)
	return nil
}

// notify delivers fire-and-forget; a delivery failure is logged, never fatal.
func (e *DecisionEngine) notify(ctx context.Context, subject, body string) {
	if err := e.notifier.Notify(ctx, subject, body); err != nil {
		e.logger.Error("Failed to deliver notification", zap.String("subject", subject), zap.Error(err))
	}
}

// parsePlacedOrder validates a placement confirmation and converts it to a
// ledger order. Any missing or unparsable field fails the whole parse: a
// partially understood order must never be persisted.
func parsePlacedOrder(placed *cexio.PlacedOrder, pair models.Pair) (*models.Order, error) {
	if placed.ID == "" {
		return nil, fmt.Errorf("placement confirmation is missing the order id")
	}
	side := strings.ToUpper(placed.Side)
	if side != models.SideBuy && side != models.SideSell {
		return nil, fmt.Errorf("placement confirmation for %s has an invalid side %q", placed.ID, placed.Side)
	}
	price, err := placed.Price.Float64()
	if err != nil {
		return nil, fmt.Errorf("placement confirmation for %s has an invalid price %q: %w", placed.ID, placed.Price, err)
	}
	amount, err := placed.Amount.Float64()
	if err != nil {
		return nil, fmt.Errorf("placement confirmation for %s has an invalid amount %q: %w", placed.ID, placed.Amount, err)
	}

	return &models.Order{
		ExchangeOrderID: placed.ID,
		Pair:            pair.String(),
		Side:            side,
		Price:           price,
		Amount:          amount,
	}, nil
}

// availableBalance extracts the available amount for one asset.
func availableBalance(balances map[string]cexio.AssetBalance, asset string) (decimal.Decimal, error) {
	entry, ok := balances[asset]
	if !ok {
		return decimal.Zero, fmt.Errorf("balance response is missing asset %s", asset)
	}
	avail, err := decimal.NewFromString(entry.Available.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance for %s is unparsable %q: %w", asset, entry.Available, err)
	}
	return avail, nil
}
