package ledger

import (
	"testing"
	"time"

	"cexio-trade-bot-go/internal/database"
	"cexio-trade-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, database.AutoMigrate(db))
	return New(db)
}

func TestLedger_MostRecent_Empty(t *testing.T) {
	lg := setupLedger(t)

	order, err := lg.MostRecent(models.PairBTCUSD)

	assert.NoError(t, err)
	assert.Nil(t, order)
}

func TestLedger_MostRecent_OrderedByCreation(t *testing.T) {
	lg := setupLedger(t)

	assert.NoError(t, lg.Record(&models.Order{ExchangeOrderID: "first", Pair: "BTC/USD", Side: models.SideBuy, Price: 50000, Amount: 0.01}))
	assert.NoError(t, lg.Record(&models.Order{ExchangeOrderID: "second", Pair: "BTC/USD", Side: models.SideSell, Price: 51000, Amount: 0.01}))

	order, err := lg.MostRecent(models.PairBTCUSD)

	assert.NoError(t, err)
	assert.NotNil(t, order)
	assert.Equal(t, "second", order.ExchangeOrderID)
	assert.Equal(t, models.SideSell, order.Side)
}

func TestLedger_MostRecent_FiltersByPair(t *testing.T) {
	lg := setupLedger(t)

	assert.NoError(t, lg.Record(&models.Order{ExchangeOrderID: "eth", Pair: "ETH/USD", Side: models.SideBuy, Price: 3000, Amount: 1}))

	order, err := lg.MostRecent(models.PairBTCUSD)

	assert.NoError(t, err)
	assert.Nil(t, order)
}

func TestLedger_Record_DuplicateExchangeIDRejected(t *testing.T) {
	lg := setupLedger(t)

	assert.NoError(t, lg.Record(&models.Order{ExchangeOrderID: "dup", Pair: "BTC/USD", Side: models.SideBuy, Price: 50000, Amount: 0.01}))
	err := lg.Record(&models.Order{ExchangeOrderID: "dup", Pair: "BTC/USD", Side: models.SideSell, Price: 51000, Amount: 0.01})

	assert.Error(t, err)
}

func TestLedger_DeleteByExchangeOrderIDs(t *testing.T) {
	lg := setupLedger(t)

	assert.NoError(t, lg.Record(&models.Order{ExchangeOrderID: "a", Pair: "BTC/USD", Side: models.SideBuy, Price: 50000, Amount: 0.01}))
	assert.NoError(t, lg.Record(&models.Order{ExchangeOrderID: "b", Pair: "BTC/USD", Side: models.SideBuy, Price: 50000, Amount: 0.01}))

	// "c" has no row; the batch is still applied for the ids that exist.
	removed, err := lg.DeleteByExchangeOrderIDs([]string{"a", "c"})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// Rerunning the same batch is a no-op, not an error.
	removed, err = lg.DeleteByExchangeOrderIDs([]string{"a", "c"})
	assert.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	order, err := lg.MostRecent(models.PairBTCUSD)
	assert.NoError(t, err)
	assert.Equal(t, "b", order.ExchangeOrderID)
}

func TestLedger_DeleteByExchangeOrderIDs_EmptySet(t *testing.T) {
	lg := setupLedger(t)

	removed, err := lg.DeleteByExchangeOrderIDs(nil)

	assert.NoError(t, err)
	assert.Equal(t, int64(0), removed)
}

func TestLedger_Since(t *testing.T) {
	lg := setupLedger(t)

	assert.NoError(t, lg.Record(&models.Order{ExchangeOrderID: "recent", Pair: "BTC/USD", Side: models.SideBuy, Price: 50000, Amount: 0.01}))

	orders, err := lg.Since(time.Now().UTC().Add(-time.Hour))
	assert.NoError(t, err)
	assert.Len(t, orders, 1)

	orders, err = lg.Since(time.Now().UTC().Add(time.Hour))
	assert.NoError(t, err)
	assert.Empty(t, orders)
}
