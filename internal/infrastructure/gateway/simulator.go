package gateway

import (
	"context"
	"math/rand"
	"sync"
	"time"

	apppayment "github.com/Zhima-Mochi/shopcore/internal/application/payment"
	domorder "github.com/Zhima-Mochi/shopcore/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/shopcore/internal/domain/outbox"
	"github.com/Zhima-Mochi/shopcore/internal/observability"
)

const componentGateway = "gateway_simulator"

// StatusReporter is the slice of the payment use case the simulator needs.
type StatusReporter interface {
	Execute(ctx context.Context, cmd apppayment.ReportStatusInput) (*apppayment.ReportStatusResult, error)
}

// Simulator stands in for an external payment gateway during local runs. It
// consumes order.placed events and, after a short delay, reports a terminal
// status back through the same webhook path a real gateway would use. The
// core never depends on its timing.
type Simulator struct {
	mu          sync.Mutex
	random      *rand.Rand
	successRate float64
	delay       time.Duration
	reporter    StatusReporter
	log         observability.Logger
}

func NewSimulator(reporter StatusReporter, successRate float64, delay time.Duration, logger observability.Logger) *Simulator {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if successRate < 0 || successRate > 1 {
		successRate = 0.7
	}
	return &Simulator{
		random:      rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate: successRate,
		delay:       delay,
		reporter:    reporter,
		log:         logger.With(observability.F("component", componentGateway)),
	}
}

// Register subscribes the simulator to order.placed events.
func (s *Simulator) Register(sub domoutbox.Subscriber) {
	sub.Subscribe(domorder.OrderPlacedEvent{}.EventName(), s.handle)
}

func (s *Simulator) handle(ctx context.Context, e domoutbox.Event) error {
	placed, ok := e.(domorder.OrderPlacedEvent)
	if !ok {
		return nil
	}

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	status := domorder.StatusFailed
	if s.roll() {
		status = domorder.StatusPaid
	}

	result, err := s.reporter.Execute(ctx, apppayment.ReportStatusInput{
		Token:  placed.PaymentToken,
		Status: string(status),
	})
	if err != nil {
		s.log.Warn("simulated_report_rejected",
			observability.F("order_id", placed.OrderID),
			observability.F("status", string(status)),
			observability.F("error", err),
		)
		return err
	}

	s.log.Info("simulated_report_delivered",
		observability.F("order_id", result.OrderID),
		observability.F("status", string(result.Status)),
	)
	return nil
}

func (s *Simulator) roll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.random.Float64() <= s.successRate
}
