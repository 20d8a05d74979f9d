package lock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()

	ok, err := locker.TryAcquire(ctx, "pair:BTC/USD")
	assert.NoError(t, err)
	assert.True(t, ok)

	// Second acquire on the same key is refused, other keys are independent.
	ok, err = locker.TryAcquire(ctx, "pair:BTC/USD")
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = locker.TryAcquire(ctx, "pair:ETH/USD")
	assert.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, locker.Release(ctx, "pair:BTC/USD"))

	ok, err = locker.TryAcquire(ctx, "pair:BTC/USD")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLocker_ReleaseUnheldIsNoop(t *testing.T) {
	locker := NewLocalLocker()
	assert.NoError(t, locker.Release(context.Background(), "pair:BTC/USD"))
}
