package catalog

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("catalog: product not found")
	ErrInvalidPrice = errors.New("catalog: price must be zero or greater")
	ErrInvalidStock = errors.New("catalog: stock must be zero or greater")
)

// Product is a read-only snapshot of a catalog entry. Price is in minor
// currency units. Stock is the quantity reported by the catalog at read time;
// the stock ledger remains authoritative for commitments.
type Product struct {
	ID        string
	Name      string
	Price     int64
	Stock     int
	UpdatedAt time.Time
}

func NewProduct(id, name string, price int64, stock int) (*Product, error) {
	if price < 0 {
		return nil, ErrInvalidPrice
	}
	if stock < 0 {
		return nil, ErrInvalidStock
	}
	return &Product{
		ID:        id,
		Name:      name,
		Price:     price,
		Stock:     stock,
		UpdatedAt: time.Now().UTC(),
	}, nil
}
