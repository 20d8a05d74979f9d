package models

import "gorm.io/gorm"

// Order side values as CEX.IO reports them, upper-cased.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order is the local record of an executed buy or sell.
// One row is created per confirmed order placement; rows are removed only
// when the reconciler confirms the exchange cancelled the order.
type Order struct {
	gorm.Model
	ExchangeOrderID string  `gorm:"uniqueIndex;not null" json:"exchange_order_id"`
	Pair            string  `json:"pair"`
	Side            string  `json:"side"` // "BUY" or "SELL"
	Price           float64 `json:"price"`
	Amount          float64 `json:"amount"`
	Total           float64 `json:"total"`
}

// BeforeSave recomputes Total from Price and Amount on every write, so the
// stored value can never drift from price * amount no matter what a caller
// put in the field.
func (o *Order) BeforeSave(tx *gorm.DB) error {
	o.Total = o.Price * o.Amount
	return nil
}

// OppositeSide returns the side that would reverse this order.
func (o *Order) OppositeSide() string {
	if o.Side == SideBuy {
		return SideSell
	}
	return SideBuy
}
