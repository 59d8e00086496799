package catalog

import "context"

// Provider supplies current product snapshots. It is owned outside the
// ordering core; the core never writes through it.
type Provider interface {
	GetProduct(ctx context.Context, productID string) (*Product, error)
	ListProducts(ctx context.Context) ([]*Product, error)
}
