package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	domorder "github.com/Zhima-Mochi/shopcore/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/shopcore/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/shopcore/internal/domain/payment"
	"github.com/Zhima-Mochi/shopcore/internal/domain/stock"
	"github.com/Zhima-Mochi/shopcore/internal/observability"
	"github.com/Zhima-Mochi/shopcore/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	paymentService      = "payment-service"
	useCaseReportStatus = "payment.report_status"
	spanPrefix          = "UC."
	publishTimeout      = 300 * time.Millisecond
)

var (
	// ErrValidation marks malformed input, mapped to a 4xx at the boundary.
	ErrValidation = errors.New("payment: validation")

	ErrConflictingStatus = domorder.ErrConflictingStatus
	ErrOrderNotFound     = domorder.ErrNotFound
	ErrSessionNotFound   = dompayment.ErrSessionNotFound
)

type ReportStatusInput struct {
	// Token identifies the payment session minted at checkout. Either Token
	// or OrderID must be set; when both are set they must agree, which is
	// what stops a captured token being replayed against another order.
	Token   string
	OrderID string
	Status  string
}

type ReportStatusResult struct {
	OrderID string
	Status  domorder.Status
	// Applied is false for an idempotent replay of the recorded status.
	Applied bool
}

// ReportStatusUseCase consumes the payment gateway's terminal report and
// drives the order's payment state machine. On the single transition into
// FAILED or CANCELLED it releases the order's stock commitment.
type ReportStatusUseCase struct {
	orders    domorder.Repository
	ledger    stock.Ledger
	sessions  dompayment.SessionStore
	publisher domoutbox.Publisher
	tel       observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewReportStatusUseCase(
	orders domorder.Repository,
	ledger stock.Ledger,
	sessions dompayment.SessionStore,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *ReportStatusUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	return &ReportStatusUseCase{
		orders:    orders,
		ledger:    ledger,
		sessions:  sessions,
		publisher: publisher,
		tel:       tel,
		log: tel.Logger().With(
			observability.F("service", paymentService),
		),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

// Execute applies a gateway status report.
func (uc *ReportStatusUseCase) Execute(ctx context.Context, cmd ReportStatusInput) (_ *ReportStatusResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseReportStatus),
		observability.F("reported_status", cmd.Status),
	)

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"ReportStatus",
		attribute.String("use_case", useCaseReportStatus),
		attribute.String("payment.reported_status", cmd.Status),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var orderID string

	defer func() {
		lat := time.Since(start).Seconds()

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseReportStatus),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCaseReportStatus),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if orderID != "" {
			fields = append(fields, observability.F("order_id", orderID))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	to, perr := domorder.ParseStatus(cmd.Status)
	if perr != nil || to == domorder.StatusPending {
		outcome, statusText = "error", "STATUS_INVALID"
		return nil, fmt.Errorf("%w: status must be one of PAID, FAILED, CANCELLED", ErrValidation)
	}

	orderID, err = uc.resolveOrder(ctx, cmd)
	if err != nil {
		outcome, statusText = "error", "ORDER_RESOLUTION_FAILED"
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", orderID))

	result, rerr := uc.apply(ctx, orderID, to)
	if rerr != nil {
		switch {
		case errors.Is(rerr, domorder.ErrConflictingStatus):
			outcome, statusText = "error", "CONFLICTING_STATUS"
		case errors.Is(rerr, domorder.ErrNotFound):
			outcome, statusText = "error", "ORDER_NOT_FOUND"
		default:
			outcome, statusText = "error", "REPORT_FAILED"
		}
		return nil, rerr
	}

	if !result.Applied {
		statusText = "IDEMPOTENT_REPLAY"
		span.AddEvent("payment.idempotent_replay",
			trace.WithAttributes(attribute.String("order.id", orderID)),
		)
	}
	return result, nil
}

// resolveOrder maps the report to an order id via the session token when one
// is supplied. A token bound to a different order than the one named in the
// same report is rejected outright.
func (uc *ReportStatusUseCase) resolveOrder(ctx context.Context, cmd ReportStatusInput) (string, error) {
	if cmd.Token == "" {
		if cmd.OrderID == "" {
			return "", fmt.Errorf("%w: payment token or order id is required", ErrValidation)
		}
		return cmd.OrderID, nil
	}

	session, err := uc.sessions.Resolve(ctx, cmd.Token)
	if err != nil {
		return "", err
	}
	if cmd.OrderID != "" && cmd.OrderID != session.OrderID {
		return "", fmt.Errorf("%w: token is not bound to order %s", ErrValidation, cmd.OrderID)
	}
	return session.OrderID, nil
}

// apply runs the state machine and persists the transition with a status CAS.
// Exactly one concurrent report wins the CAS, so stock release runs once.
func (uc *ReportStatusUseCase) apply(ctx context.Context, orderID string, to domorder.Status) (*ReportStatusResult, error) {
	logger := logctx.FromOr(ctx, uc.log)

	for {
		entity, err := uc.orders.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		from := entity.Status

		tr, err := entity.Report(to)
		if err != nil {
			return nil, err
		}
		if !tr.Applied {
			return &ReportStatusResult{OrderID: orderID, Status: entity.Status, Applied: false}, nil
		}

		err = uc.orders.TransitionStatus(ctx, orderID, from, to)
		if errors.Is(err, domorder.ErrStaleStatus) {
			// Lost the race against a concurrent report or the sweeper;
			// re-read and let the state machine decide again.
			continue
		}
		if err != nil {
			return nil, err
		}

		if tr.ReleaseStock {
			uc.releaseAll(ctx, entity, logger)
		}

		if uc.publisher != nil {
			pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
			if perr := uc.publisher.Publish(pubCtx, domorder.NewPaymentResolvedEvent(entity, tr.ReleaseStock)); perr != nil {
				logger.Warn("payment_resolved_publish_failed",
					observability.F("order_id", orderID),
					observability.F("error", perr),
				)
			}
			cancel()
		}

		return &ReportStatusResult{OrderID: orderID, Status: to, Applied: true}, nil
	}
}

func (uc *ReportStatusUseCase) releaseAll(ctx context.Context, entity *domorder.Order, logger observability.Logger) {
	ctx = context.WithoutCancel(ctx)
	for _, l := range entity.Lines {
		if err := uc.ledger.Release(ctx, l.ProductID, l.Quantity); err != nil {
			logger.Error("stock_release_failed",
				observability.F("order_id", entity.ID),
				observability.F("product_id", l.ProductID),
				observability.F("quantity", l.Quantity),
				observability.F("error", err),
			)
		}
	}
}
