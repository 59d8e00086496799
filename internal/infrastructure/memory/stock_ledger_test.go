package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/shopcore/internal/domain/stock"
)

func TestStockLedger_ReserveRelease(t *testing.T) {
	ctx := context.Background()
	l := NewStockLedger()
	require.NoError(t, l.SetStock(ctx, "p1", 10))

	require.NoError(t, l.Reserve(ctx, "p1", 3))

	got, err := l.Peek(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	require.NoError(t, l.Release(ctx, "p1", 3))

	got, err = l.Peek(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, got)
}

func TestStockLedger_InsufficientStock(t *testing.T) {
	ctx := context.Background()
	l := NewStockLedger()
	require.NoError(t, l.SetStock(ctx, "p1", 2))

	err := l.Reserve(ctx, "p1", 3)

	var insufficient *stock.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "p1", insufficient.ProductID)
	assert.Equal(t, 3, insufficient.Requested)
	assert.Equal(t, 2, insufficient.Available)

	// A rejected reservation must not touch the balance.
	got, err := l.Peek(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestStockLedger_UnknownProduct(t *testing.T) {
	ctx := context.Background()
	l := NewStockLedger()

	assert.ErrorIs(t, l.Reserve(ctx, "ghost", 1), stock.ErrNotFound)
	assert.ErrorIs(t, l.Release(ctx, "ghost", 1), stock.ErrNotFound)
	_, err := l.Peek(ctx, "ghost")
	assert.ErrorIs(t, err, stock.ErrNotFound)
}

func TestStockLedger_InvalidQuantity(t *testing.T) {
	ctx := context.Background()
	l := NewStockLedger()
	require.NoError(t, l.SetStock(ctx, "p1", 5))

	assert.ErrorIs(t, l.Reserve(ctx, "p1", 0), stock.ErrInvalidQuantity)
	assert.ErrorIs(t, l.Release(ctx, "p1", -1), stock.ErrInvalidQuantity)
	assert.ErrorIs(t, l.SetStock(ctx, "p1", -1), stock.ErrInvalidQuantity)
}

// Hammers a single product from many goroutines and checks that exactly
// initial-stock reservations succeed and the balance never goes negative.
func TestStockLedger_ConcurrentReserve_NoOversell(t *testing.T) {
	const (
		initial = 100
		workers = 500
	)

	ctx := context.Background()
	l := NewStockLedger()
	require.NoError(t, l.SetStock(ctx, "p1", initial))

	var successes atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if err := l.Reserve(ctx, "p1", 1); err == nil {
				successes.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int64(initial), successes.Load())

	got, err := l.Peek(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestStockLedger_ConcurrentReserveRelease(t *testing.T) {
	const (
		initial = 50
		rounds  = 200
	)

	ctx := context.Background()
	l := NewStockLedger()
	require.NoError(t, l.SetStock(ctx, "p1", initial))

	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Reserve(ctx, "p1", 2); err == nil {
				_ = l.Release(ctx, "p1", 2)
			}
		}()
	}
	wg.Wait()

	// Every successful reserve was paired with a release.
	got, err := l.Peek(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, initial, got)
}

func TestStockLedger_SetStockOverwrites(t *testing.T) {
	ctx := context.Background()
	l := NewStockLedger()
	require.NoError(t, l.SetStock(ctx, "p1", 5))
	require.NoError(t, l.SetStock(ctx, "p1", 42))

	got, err := l.Peek(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
