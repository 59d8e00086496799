package memory

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/shopcore/internal/domain/stock"
)

// StockLedger is an in-process stock.Ledger with per-product locking: the
// outer RWMutex guards only the map, each product carries its own mutex, so
// checkouts for unrelated products never serialize against each other.
type StockLedger struct {
	mu       sync.RWMutex
	products map[string]*stockEntry
}

type stockEntry struct {
	mu        sync.Mutex
	available int
}

func NewStockLedger() *StockLedger {
	return &StockLedger{
		products: make(map[string]*stockEntry),
	}
}

func (l *StockLedger) entry(productID string) (*stockEntry, bool) {
	l.mu.RLock()
	e, ok := l.products[productID]
	l.mu.RUnlock()
	return e, ok
}

func (l *StockLedger) Reserve(ctx context.Context, productID string, quantity int) error {
	_ = ctx
	if quantity <= 0 {
		return stock.ErrInvalidQuantity
	}

	e, ok := l.entry(productID)
	if !ok {
		return stock.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.available < quantity {
		return &stock.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: e.available,
		}
	}
	e.available -= quantity
	return nil
}

func (l *StockLedger) Release(ctx context.Context, productID string, quantity int) error {
	_ = ctx
	if quantity <= 0 {
		return stock.ErrInvalidQuantity
	}

	e, ok := l.entry(productID)
	if !ok {
		return stock.ErrNotFound
	}

	e.mu.Lock()
	e.available += quantity
	e.mu.Unlock()
	return nil
}

func (l *StockLedger) Peek(ctx context.Context, productID string) (int, error) {
	_ = ctx

	e, ok := l.entry(productID)
	if !ok {
		return 0, stock.ErrNotFound
	}

	e.mu.Lock()
	available := e.available
	e.mu.Unlock()
	return available, nil
}

func (l *StockLedger) SetStock(ctx context.Context, productID string, quantity int) error {
	_ = ctx
	if quantity < 0 {
		return stock.ErrInvalidQuantity
	}

	l.mu.Lock()
	e, ok := l.products[productID]
	if !ok {
		l.products[productID] = &stockEntry{available: quantity}
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	e.mu.Lock()
	e.available = quantity
	e.mu.Unlock()
	return nil
}
