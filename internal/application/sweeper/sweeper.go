package sweeper

import (
	"context"
	"errors"
	"sync"
	"time"

	domorder "github.com/Zhima-Mochi/shopcore/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/shopcore/internal/domain/outbox"
	"github.com/Zhima-Mochi/shopcore/internal/domain/stock"
	"github.com/Zhima-Mochi/shopcore/internal/observability"
)

const componentSweeper = "order_sweeper"

// Worker cancels PENDING orders that never received a terminal payment
// report, releasing their stock. Without it, reserved-but-unpaid stock would
// be lost forever.
type Worker struct {
	orders    domorder.Repository
	ledger    stock.Ledger
	publisher domoutbox.Publisher
	interval  time.Duration
	timeout   time.Duration

	log          observability.Logger
	sweptCounter observability.Counter

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func New(
	orders domorder.Repository,
	ledger stock.Ledger,
	publisher domoutbox.Publisher,
	interval, timeout time.Duration,
	tel observability.Observability,
) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Worker{
		orders:    orders,
		ledger:    ledger,
		publisher: publisher,
		interval:  interval,
		timeout:   timeout,
		log: tel.Logger().With(
			observability.F("component", componentSweeper),
		),
		sweptCounter: tel.Metrics().Counter(observability.MOrdersSwept),
		done:         make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		bg, cancel := context.WithCancel(ctx)
		w.cancel = cancel
		go w.loop(bg)
		w.log.Info("sweeper_started",
			observability.F("interval", w.interval.String()),
			observability.F("pending_timeout", w.timeout.String()),
		)
	})
}

func (w *Worker) Stop(ctx context.Context) {
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		select {
		case <-w.done:
		case <-ctx.Done():
		}
		w.log.Info("sweeper_stopped")
	})
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep cancels every PENDING order older than the timeout. Exported so
// operators can trigger a pass outside the ticker.
func (w *Worker) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.timeout)

	expired, err := w.orders.FindPendingBefore(ctx, cutoff)
	if err != nil {
		w.log.Error("sweep_query_failed", observability.F("error", err))
		return
	}

	for _, o := range expired {
		err := w.orders.TransitionStatus(ctx, o.ID, domorder.StatusPending, domorder.StatusCancelled)
		if errors.Is(err, domorder.ErrStaleStatus) {
			// A payment report landed between the query and the CAS; that
			// transition owns the stock decision.
			continue
		}
		if err != nil {
			w.log.Error("sweep_transition_failed",
				observability.F("order_id", o.ID),
				observability.F("error", err),
			)
			continue
		}

		for _, l := range o.Lines {
			if rerr := w.ledger.Release(ctx, l.ProductID, l.Quantity); rerr != nil {
				w.log.Error("sweep_release_failed",
					observability.F("order_id", o.ID),
					observability.F("product_id", l.ProductID),
					observability.F("error", rerr),
				)
			}
		}

		o.Status = domorder.StatusCancelled
		if w.publisher != nil {
			if perr := w.publisher.Publish(ctx, domorder.NewPaymentResolvedEvent(o, true)); perr != nil {
				w.log.Warn("sweep_publish_failed",
					observability.F("order_id", o.ID),
					observability.F("error", perr),
				)
			}
		}

		w.sweptCounter.Add(1)
		w.log.Info("pending_order_swept",
			observability.F("order_id", o.ID),
			observability.F("age", time.Since(o.CreatedAt).String()),
		)
	}
}
