package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/shopcore/internal/domain/catalog"
)

// CatalogRepository is an in-memory catalog.Provider. Product CRUD is owned
// outside the core; Save exists for seeding and price-change simulation.
type CatalogRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		products: make(map[string]*domain.Product),
	}
}

func (r *CatalogRepository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (r *CatalogRepository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *CatalogRepository) Save(ctx context.Context, product *domain.Product) error {
	_ = ctx
	if product == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.products[product.ID] = cloneProduct(product)
	return nil
}

func cloneProduct(p *domain.Product) *domain.Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
