package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&Order{}))
	return db
}

func TestOrder_TotalComputedOnSave(t *testing.T) {
	db := setupDB(t)

	cases := []struct {
		name   string
		price  float64
		amount float64
	}{
		{"typical", 55000, 0.0001},
		{"fractional", 411.626, 1.5},
		{"zero amount", 50000, 0},
		{"zero price", 0, 1.25},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := Order{
				ExchangeOrderID: string(rune('a' + i)),
				Pair:            "BTC/USD",
				Side:            SideBuy,
				Price:           tc.price,
				Amount:          tc.amount,
			}
			assert.NoError(t, db.Create(&order).Error)

			var loaded Order
			assert.NoError(t, db.First(&loaded, order.ID).Error)
			assert.Equal(t, tc.price*tc.amount, loaded.Total)
		})
	}
}

func TestOrder_TotalMutationIgnored(t *testing.T) {
	db := setupDB(t)

	order := Order{ExchangeOrderID: "x", Pair: "BTC/USD", Side: SideBuy, Price: 100, Amount: 2}
	assert.NoError(t, db.Create(&order).Error)

	// A caller writing a bogus total gets it recomputed on save.
	order.Total = 12345
	assert.NoError(t, db.Save(&order).Error)

	var loaded Order
	assert.NoError(t, db.First(&loaded, order.ID).Error)
	assert.Equal(t, 200.0, loaded.Total)
}

func TestOrder_TimestampsOnWrite(t *testing.T) {
	db := setupDB(t)

	order := Order{ExchangeOrderID: "ts", Pair: "BTC/USD", Side: SideSell, Price: 100, Amount: 1}
	assert.NoError(t, db.Create(&order).Error)
	assert.False(t, order.CreatedAt.IsZero())

	created := order.CreatedAt
	order.Amount = 2
	assert.NoError(t, db.Save(&order).Error)

	var loaded Order
	assert.NoError(t, db.First(&loaded, order.ID).Error)
	assert.WithinDuration(t, created, loaded.CreatedAt, time.Second)
	assert.False(t, loaded.UpdatedAt.Before(loaded.CreatedAt))
}

func TestOrder_OppositeSide(t *testing.T) {
	assert.Equal(t, SideSell, (&Order{Side: SideBuy}).OppositeSide())
	assert.Equal(t, SideBuy, (&Order{Side: SideSell}).OppositeSide())
}

func TestPair(t *testing.T) {
	assert.True(t, PairBTCUSD.Valid())
	assert.True(t, PairETHUSD.Valid())
	assert.False(t, Pair("DOGE/USD").Valid())

	assert.Equal(t, "BTC", PairBTCUSD.Base())
	assert.Equal(t, "USD", PairBTCUSD.Quote())
	assert.Equal(t, "ETH", PairETHUSD.Base())
}
