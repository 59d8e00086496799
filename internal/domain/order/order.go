package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrConflict          = errors.New("order: conflict")
	ErrEmptyCart         = errors.New("order: cart must contain at least one line")
	ErrInvalidQuantity   = errors.New("order: quantity must be greater than zero")
	ErrInvalidUnitPrice  = errors.New("order: unit price must be zero or greater")
	ErrUnknownStatus     = errors.New("order: unknown status")
	ErrConflictingStatus = errors.New("order: conflicting terminal status")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus normalises an externally reported status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusPaid, StatusFailed, StatusCancelled:
		return Status(s), nil
	}
	return "", ErrUnknownStatus
}

// Line is one immutable order line. UnitPrice is the catalog price at the
// moment of order creation and never changes afterwards, even if the catalog
// price does.
type Line struct {
	ProductID string
	Quantity  int
	UnitPrice int64
}

// Order is an immutable set of lines plus a mutable payment status. Lines and
// prices are write-once at construction; only Status and UpdatedAt mutate.
type Order struct {
	ID          string
	ShopperID   string
	Lines       []Line
	TotalAmount int64
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func New(id, shopperID string, lines []Line) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	var total int64
	copied := make([]Line, len(lines))
	for i, l := range lines {
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if l.UnitPrice < 0 {
			return nil, ErrInvalidUnitPrice
		}
		copied[i] = l
		total += int64(l.Quantity) * l.UnitPrice
	}

	now := time.Now().UTC()
	return &Order{
		ID:          id,
		ShopperID:   shopperID,
		Lines:       copied,
		TotalAmount: total,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Terminal reports whether the order has reached a status from which no
// further transition is permitted.
func (o *Order) Terminal() bool {
	return o.Status == StatusPaid || o.Status == StatusFailed || o.Status == StatusCancelled
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Lines = make([]Line, len(o.Lines))
	copy(clone.Lines, o.Lines)
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
