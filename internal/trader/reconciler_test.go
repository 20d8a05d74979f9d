package trader

import (
	"context"
	"errors"
	"testing"
	"time"

	"cexio-trade-bot-go/internal/cexio"
	"cexio-trade-bot-go/internal/ledger"
	"cexio-trade-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func seedLedgerOrder(t *testing.T, lg *ledger.Ledger, exchangeID string) {
	t.Helper()
	err := lg.Record(&models.Order{
		ExchangeOrderID: exchangeID,
		Pair:            "BTC/USD",
		Side:            models.SideBuy,
		Price:           50000,
		Amount:          0.01,
	})
	assert.NoError(t, err)
}

func hasOrder(t *testing.T, lg *ledger.Ledger, exchangeID string) bool {
	t.Helper()
	for _, o := range allOrders(t, lg) {
		if o.ExchangeOrderID == exchangeID {
			return true
		}
	}
	return false
}

func TestReconciler_Disabled_NoCalls(t *testing.T) {
	lg, mockClient, _ := setupTest(t)
	seedLedgerOrder(t, lg, "1")

	cfg := testTradingConfig()
	cfg.Enabled = false
	rec := NewReconciler(zap.NewNop(), cfg, mockClient, lg)

	err := rec.ReconcileOnce(context.Background())

	assert.NoError(t, err)
	mockClient.AssertExpectations(t)
	assert.True(t, hasOrder(t, lg, "1"))
}

func TestReconciler_StaleOrderCancelledAndPruned(t *testing.T) {
	// Arrange: auto-cancel after 10 minutes. A 15-minute-old order gets
	// cancelled and its ledger row removed; a 5-minute-old order is left
	// untouched.
	lg, mockClient, _ := setupTest(t)
	seedLedgerOrder(t, lg, "stale")
	seedLedgerOrder(t, lg, "fresh")

	rec := NewReconciler(zap.NewNop(), testTradingConfig(), mockClient, lg)

	now := time.Now().UTC()
	mockClient.On("OpenOrders", models.PairBTCUSD).Return([]cexio.OpenOrder{
		{ID: "stale", Side: "BUY", Time: now.Add(-15 * time.Minute)},
		{ID: "fresh", Side: "BUY", Time: now.Add(-5 * time.Minute)},
	}, nil)
	mockClient.On("CancelOrder", "stale").Return(true, nil)

	// Act
	err := rec.ReconcileOnce(context.Background())

	// Assert
	assert.NoError(t, err)
	mockClient.AssertExpectations(t)
	mockClient.AssertNotCalled(t, "CancelOrder", "fresh")
	assert.False(t, hasOrder(t, lg, "stale"))
	assert.True(t, hasOrder(t, lg, "fresh"))
}

func TestReconciler_UnconfirmedCancellationLeftForNextPass(t *testing.T) {
	// Arrange: the exchange answers false. The ledger row must survive and
	// no delete may happen this pass.
	lg, mockClient, _ := setupTest(t)
	seedLedgerOrder(t, lg, "stubborn")

	rec := NewReconciler(zap.NewNop(), testTradingConfig(), mockClient, lg)

	mockClient.On("OpenOrders", models.PairBTCUSD).Return([]cexio.OpenOrder{
		{ID: "stubborn", Side: "SELL", Time: time.Now().UTC().Add(-30 * time.Minute)},
	}, nil)
	mockClient.On("CancelOrder", "stubborn").Return(false, nil)

	// Act
	err := rec.ReconcileOnce(context.Background())

	// Assert
	assert.NoError(t, err)
	mockClient.AssertExpectations(t)
	assert.True(t, hasOrder(t, lg, "stubborn"))
}

func TestReconciler_CancelErrorDoesNotAbortPass(t *testing.T) {
	// Arrange: one cancellation errors out, the other succeeds; the pass
	// still prunes what was confirmed.
	lg, mockClient, _ := setupTest(t)
	seedLedgerOrder(t, lg, "erroring")
	seedLedgerOrder(t, lg, "ok")

	rec := NewReconciler(zap.NewNop(), testTradingConfig(), mockClient, lg)

	old := time.Now().UTC().Add(-20 * time.Minute)
	mockClient.On("OpenOrders", models.PairBTCUSD).Return([]cexio.OpenOrder{
		{ID: "erroring", Side: "BUY", Time: old},
		{ID: "ok", Side: "BUY", Time: old},
	}, nil)
	mockClient.On("CancelOrder", "erroring").Return(false, errors.New("timeout"))
	mockClient.On("CancelOrder", "ok").Return(true, nil)

	// Act
	err := rec.ReconcileOnce(context.Background())

	// Assert
	assert.NoError(t, err)
	mockClient.AssertExpectations(t)
	assert.True(t, hasOrder(t, lg, "erroring"))
	assert.False(t, hasOrder(t, lg, "ok"))
}

func TestReconciler_Idempotent(t *testing.T) {
	// Arrange: after a pass cancelled everything, a second pass with no
	// open orders mutates nothing.
	lg, mockClient, _ := setupTest(t)
	seedLedgerOrder(t, lg, "stale")

	rec := NewReconciler(zap.NewNop(), testTradingConfig(), mockClient, lg)

	mockClient.On("OpenOrders", models.PairBTCUSD).Return([]cexio.OpenOrder{
		{ID: "stale", Side: "BUY", Time: time.Now().UTC().Add(-15 * time.Minute)},
	}, nil).Once()
	mockClient.On("CancelOrder", "stale").Return(true, nil).Once()
	mockClient.On("OpenOrders", models.PairBTCUSD).Return([]cexio.OpenOrder{}, nil).Once()

	// Act
	assert.NoError(t, rec.ReconcileOnce(context.Background()))
	before := allOrders(t, lg)
	assert.NoError(t, rec.ReconcileOnce(context.Background()))
	after := allOrders(t, lg)

	// Assert
	mockClient.AssertExpectations(t)
	mockClient.AssertNumberOfCalls(t, "CancelOrder", 1)
	assert.Equal(t, before, after)
}

func TestReconciler_TransportFailurePropagates(t *testing.T) {
	lg, mockClient, _ := setupTest(t)
	rec := NewReconciler(zap.NewNop(), testTradingConfig(), mockClient, lg)

	mockClient.On("OpenOrders", models.PairBTCUSD).Return([]cexio.OpenOrder{}, errors.New("connection refused"))

	err := rec.ReconcileOnce(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	mockClient.AssertExpectations(t)
}

func TestReconciler_BoundaryAgeNotCancelled(t *testing.T) {
	// An order aged exactly the auto-cancel period is not yet stale; only
	// strictly older orders are cancelled.
	lg, mockClient, _ := setupTest(t)
	seedLedgerOrder(t, lg, "edge")

	rec := NewReconciler(zap.NewNop(), testTradingConfig(), mockClient, lg)
	fixed := time.Now().UTC()
	rec.now = func() time.Time { return fixed }

	mockClient.On("OpenOrders", models.PairBTCUSD).Return([]cexio.OpenOrder{
		{ID: "edge", Side: "BUY", Time: fixed.Add(-10 * time.Minute)},
	}, nil)

	err := rec.ReconcileOnce(context.Background())

	assert.NoError(t, err)
	mockClient.AssertExpectations(t)
	mockClient.AssertNotCalled(t, "CancelOrder", mock.Anything)
	assert.True(t, hasOrder(t, lg, "edge"))
}
