package ledger

import (
	"errors"
	"fmt"
	"time"

	"cexio-trade-bot-go/internal/models"

	"gorm.io/gorm"
)

// Ledger is the local record of executed orders. It is append-only with
// respect to financial fields: rows are created after a confirmed
// placement and removed only after a confirmed cancellation.
type Ledger struct {
	db *gorm.DB
}

// New creates a Ledger on top of an opened database.
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Record appends a new order to the ledger.
func (l *Ledger) Record(order *models.Order) error {
	if err := l.db.Create(order).Error; err != nil {
		return fmt.Errorf("failed to record order %s: %w", order.ExchangeOrderID, err)
	}
	return nil
}

// MostRecent returns the most recently created order for a pair, or
// (nil, nil) when the ledger holds none. The bot's trading posture is
// derived entirely from this row, so ordering is strictly by creation
// time.
func (l *Ledger) MostRecent(pair models.Pair) (*models.Order, error) {
	var order models.Order
	err := l.db.Where("pair = ?", pair.String()).Order("created_at DESC, id DESC").First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load most recent order for %s: %w", pair, err)
	}
	return &order, nil
}

// DeleteByExchangeOrderIDs removes the ledger rows matching the given
// exchange order ids and reports how many were removed. Ids without a
// matching row are ignored, so a partially applied pass can simply be
// rerun.
func (l *Ledger) DeleteByExchangeOrderIDs(ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := l.db.Unscoped().Where("exchange_order_id IN ?", ids).Delete(&models.Order{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete orders %v: %w", ids, res.Error)
	}
	return res.RowsAffected, nil
}

// Since returns all orders created after the given instant, newest first.
func (l *Ledger) Since(t time.Time) ([]models.Order, error) {
	var orders []models.Order
	if err := l.db.Where("created_at > ?", t).Order("created_at DESC, id DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to load orders since %s: %w", t, err)
	}
	return orders, nil
}
