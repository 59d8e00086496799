package order

import "time"

// OrderPlacedEvent is emitted after a checkout commits its reservations and
// the order is persisted. The payment gateway simulator consumes it.
type OrderPlacedEvent struct {
	OrderID      string
	ShopperID    string
	TotalAmount  int64
	PaymentToken string
	OccurredAt   time.Time
}

func (OrderPlacedEvent) EventName() string { return "order.placed" }

func NewOrderPlacedEvent(o *Order, paymentToken string) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:      o.ID,
		ShopperID:    o.ShopperID,
		TotalAmount:  o.TotalAmount,
		PaymentToken: paymentToken,
		OccurredAt:   time.Now().UTC(),
	}
}

// PaymentResolvedEvent is emitted when an order reaches a terminal status.
type PaymentResolvedEvent struct {
	OrderID    string
	Status     Status
	Released   bool
	OccurredAt time.Time
}

func (PaymentResolvedEvent) EventName() string { return "order.payment_resolved" }

func NewPaymentResolvedEvent(o *Order, released bool) PaymentResolvedEvent {
	return PaymentResolvedEvent{
		OrderID:    o.ID,
		Status:     o.Status,
		Released:   released,
		OccurredAt: time.Now().UTC(),
	}
}
