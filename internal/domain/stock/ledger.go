package stock

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("stock: product not found")
	ErrInvalidQuantity = errors.New("stock: quantity must be greater than zero")
)

// InsufficientStockError reports a failed reservation together with the
// quantity still available, so callers can surface it for user-facing retry.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock: insufficient stock for %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// IsInsufficient reports whether err is an InsufficientStockError.
func IsInsufficient(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

// Ledger is the single source of truth for committable stock. Reserve and
// Release must be atomic per product: no two concurrent reserves may both
// succeed past the available ceiling.
type Ledger interface {
	// Reserve atomically checks and decrements available quantity.
	// It returns an *InsufficientStockError when the ceiling would be crossed.
	Reserve(ctx context.Context, productID string, quantity int) error

	// Release atomically increments available quantity, reversing a prior
	// reservation (order failure, cancellation, sweep).
	Release(ctx context.Context, productID string, quantity int) error

	// Peek returns the currently available quantity. The value is advisory:
	// it may be stale by the time a subsequent Reserve runs.
	Peek(ctx context.Context, productID string) (int, error)

	// SetStock overwrites the available quantity for a product. Used by
	// catalog seeding and external restock, never by checkout.
	SetStock(ctx context.Context, productID string, quantity int) error
}
