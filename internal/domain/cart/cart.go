package cart

import (
	"errors"
	"time"
)

var (
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
	ErrOutOfStock      = errors.New("cart: requested quantity exceeds available stock")
)

// Line is one product entry in a shopper's cart. UnitPriceAtAdd is the catalog
// price observed when the line was last increased; it is advisory only and is
// re-priced at checkout.
type Line struct {
	ProductID      string
	Quantity       int
	UnitPriceAtAdd int64
	AddedAt        time.Time
}

// Cart is a per-shopper ordered collection of lines. It never holds inventory:
// AddLine bounds itself against the last-read ledger value, and checkout
// re-validates against the ledger. Carts are not safe for concurrent use; a
// shopper is expected to mutate their own cart from a single session.
type Cart struct {
	ShopperID string
	lines     []Line
	UpdatedAt time.Time
}

func New(shopperID string) *Cart {
	return &Cart{
		ShopperID: shopperID,
		UpdatedAt: time.Now().UTC(),
	}
}

// AddLine increases the quantity for a product, creating the line on first
// add. available is the ledger quantity read by the caller at call time; the
// line total after the add may not exceed it.
func (c *Cart) AddLine(productID string, delta int, unitPrice int64, available int) error {
	if delta <= 0 {
		return ErrInvalidQuantity
	}

	held := 0
	idx := -1
	for i, l := range c.lines {
		if l.ProductID == productID {
			held = l.Quantity
			idx = i
			break
		}
	}

	if held+delta > available {
		return ErrOutOfStock
	}

	now := time.Now().UTC()
	if idx >= 0 {
		c.lines[idx].Quantity += delta
		c.lines[idx].UnitPriceAtAdd = unitPrice
	} else {
		c.lines = append(c.lines, Line{
			ProductID:      productID,
			Quantity:       delta,
			UnitPriceAtAdd: unitPrice,
			AddedAt:        now,
		})
	}
	c.UpdatedAt = now
	return nil
}

// RemoveLine decreases the quantity for a product, deleting the line when it
// reaches zero. Removing an absent line is a no-op, not an error.
func (c *Cart) RemoveLine(productID string, delta int) {
	if delta <= 0 {
		delta = 1
	}
	for i, l := range c.lines {
		if l.ProductID != productID {
			continue
		}
		if l.Quantity <= delta {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		} else {
			c.lines[i].Quantity -= delta
		}
		c.UpdatedAt = time.Now().UTC()
		return
	}
}

// Quantity returns the quantity currently held for a product, zero if absent.
func (c *Cart) Quantity(productID string) int {
	for _, l := range c.lines {
		if l.ProductID == productID {
			return l.Quantity
		}
	}
	return 0
}

// Snapshot returns a copy of the lines in insertion order, suitable as
// checkout input.
func (c *Cart) Snapshot() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int { return len(c.lines) }

// Clear removes all lines. Called only after a confirmed order.
func (c *Cart) Clear() {
	c.lines = nil
	c.UpdatedAt = time.Now().UTC()
}
