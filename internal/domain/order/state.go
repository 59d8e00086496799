package order

// Transition is the outcome of applying an externally reported payment status.
type Transition struct {
	// Applied is false when the report was an idempotent replay of the
	// already-recorded terminal status.
	Applied bool
	// ReleaseStock is true exactly once per order, on the transition into
	// FAILED or CANCELLED. PAID commits the sale and keeps stock decremented.
	ReleaseStock bool
}

// paymentState implements the state pattern for the payment lifecycle.
// PENDING is the only non-terminal state; every terminal state accepts a
// repeated report of itself and rejects any other.
type paymentState interface {
	Status() Status
	OnReport(o *Order, to Status) (Transition, error)
}

// Report applies a terminal status reported by the payment gateway.
// Reporting the already-recorded terminal status is an idempotent no-op;
// reporting a different terminal status is ErrConflictingStatus and leaves
// the order untouched.
func (o *Order) Report(to Status) (Transition, error) {
	if to != StatusPaid && to != StatusFailed && to != StatusCancelled {
		return Transition{}, ErrUnknownStatus
	}
	return stateFor(o.Status).OnReport(o, to)
}

func stateFor(s Status) paymentState {
	switch s {
	case StatusPaid:
		return paidState{}
	case StatusFailed:
		return failedState{}
	case StatusCancelled:
		return cancelledState{}
	default:
		return pendingState{}
	}
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }

func (pendingState) OnReport(o *Order, to Status) (Transition, error) {
	o.Status = to
	o.touch()
	return Transition{
		Applied:      true,
		ReleaseStock: to == StatusFailed || to == StatusCancelled,
	}, nil
}

type paidState struct{}

func (paidState) Status() Status { return StatusPaid }

func (paidState) OnReport(o *Order, to Status) (Transition, error) {
	if to == StatusPaid {
		return Transition{}, nil
	}
	return Transition{}, ErrConflictingStatus
}

type failedState struct{}

func (failedState) Status() Status { return StatusFailed }

func (failedState) OnReport(o *Order, to Status) (Transition, error) {
	if to == StatusFailed {
		return Transition{}, nil
	}
	return Transition{}, ErrConflictingStatus
}

type cancelledState struct{}

func (cancelledState) Status() Status { return StatusCancelled }

func (cancelledState) OnReport(o *Order, to Status) (Transition, error) {
	if to == StatusCancelled {
		return Transition{}, nil
	}
	return Transition{}, ErrConflictingStatus
}
