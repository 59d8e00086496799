package order

import (
	"context"
	"errors"
	"time"
)

// ErrStaleStatus is returned by TransitionStatus when the stored status no
// longer matches the expected one, i.e. a concurrent report won the race.
var ErrStaleStatus = errors.New("order: stale status")

type Repository interface {
	// Insert persists a new order. ErrConflict when the id already exists.
	Insert(ctx context.Context, order *Order) error

	// Get returns the order or ErrNotFound. Implementations return a copy;
	// mutations go through TransitionStatus.
	Get(ctx context.Context, id string) (*Order, error)

	// TransitionStatus atomically moves an order from one status to another.
	// ErrNotFound for unknown ids, ErrStaleStatus when the stored status is
	// not `from`. Exactly one of several concurrent callers with the same
	// `from` succeeds, which is what keeps stock release single-shot.
	TransitionStatus(ctx context.Context, id string, from, to Status) error

	// FindPendingBefore lists orders still PENDING whose creation time is
	// before the cutoff. Used by the expiry sweeper.
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]*Order, error)
}
