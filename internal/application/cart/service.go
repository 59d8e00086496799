package cart

import (
	"context"
	"errors"
	"sync"

	domcart "github.com/Zhima-Mochi/shopcore/internal/domain/cart"
	"github.com/Zhima-Mochi/shopcore/internal/domain/catalog"
	"github.com/Zhima-Mochi/shopcore/internal/domain/stock"
	"github.com/Zhima-Mochi/shopcore/internal/observability"
	"github.com/Zhima-Mochi/shopcore/internal/observability/logctx"
)

const componentCart = "cart_service"

var ErrShopperRequired = errors.New("cart: shopper id is required")

// Service tracks one advisory cart per shopper. Mutations are bounded by the
// last-read ledger value but never touch the ledger; checkout re-validates.
// A shopper's cart is mutated from one session at a time, so a single lock
// over the cart map is enough.
type Service struct {
	mu      sync.Mutex
	carts   map[string]*domcart.Cart
	catalog catalog.Provider
	ledger  stock.Ledger
	log     observability.Logger
}

func NewService(provider catalog.Provider, ledger stock.Ledger, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		carts:   make(map[string]*domcart.Cart),
		catalog: provider,
		ledger:  ledger,
		log:     logger.With(observability.F("component", componentCart)),
	}
}

// View is a read-only projection of a cart for transport layers.
type View struct {
	ShopperID string
	Lines     []domcart.Line
	Total     int64
}

// AddItem increases a cart line by delta, bounded by the currently reported
// available stock minus what the cart already holds for the product. The
// recorded price is the catalog price at call time; it is advisory only.
func (s *Service) AddItem(ctx context.Context, shopperID, productID string, delta int) (*View, error) {
	if shopperID == "" {
		return nil, ErrShopperRequired
	}

	logger := logctx.FromOr(ctx, s.log)

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	available, err := s.ledger.Peek(ctx, productID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cart(shopperID)
	if err := c.AddLine(productID, delta, product.Price, available); err != nil {
		logger.Info("cart_add_rejected",
			observability.F("shopper_id", shopperID),
			observability.F("product_id", productID),
			observability.F("delta", delta),
			observability.F("available", available),
		)
		return nil, err
	}

	return view(c), nil
}

// RemoveItem decreases a cart line by delta (default 1), deleting it at zero.
// Removing an absent line is a no-op.
func (s *Service) RemoveItem(ctx context.Context, shopperID, productID string, delta int) (*View, error) {
	_ = ctx
	if shopperID == "" {
		return nil, ErrShopperRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cart(shopperID)
	c.RemoveLine(productID, delta)
	return view(c), nil
}

// Get returns the shopper's cart, empty if none exists yet.
func (s *Service) Get(ctx context.Context, shopperID string) (*View, error) {
	_ = ctx
	if shopperID == "" {
		return nil, ErrShopperRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return view(s.cart(shopperID)), nil
}

// Snapshot returns the cart lines for checkout input.
func (s *Service) Snapshot(ctx context.Context, shopperID string) ([]domcart.Line, error) {
	_ = ctx
	if shopperID == "" {
		return nil, ErrShopperRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart(shopperID).Snapshot(), nil
}

// Clear empties the shopper's cart. Called only after a confirmed order.
func (s *Service) Clear(ctx context.Context, shopperID string) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.carts[shopperID]; ok {
		c.Clear()
	}
}

func (s *Service) cart(shopperID string) *domcart.Cart {
	c, ok := s.carts[shopperID]
	if !ok {
		c = domcart.New(shopperID)
		s.carts[shopperID] = c
	}
	return c
}

func view(c *domcart.Cart) *View {
	lines := c.Snapshot()
	var total int64
	for _, l := range lines {
		total += int64(l.Quantity) * l.UnitPriceAtAdd
	}
	return &View{
		ShopperID: c.ShopperID,
		Lines:     lines,
		Total:     total,
	}
}
