package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Zhima-Mochi/shopcore/internal/domain/catalog"
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
	checkoutService   = "checkout-service"
	useCasePlaceOrder = "checkout.place_order"
	spanPrefix        = "UC."
	publishTimeout    = 300 * time.Millisecond
)

var (
	ErrEmptyCart = domorder.ErrEmptyCart

	// ErrValidation marks malformed input, mapped to a 4xx at the boundary.
	ErrValidation = errors.New("checkout: validation")

	// ErrPersistence signals a storage failure after stock was already
	// reserved; compensation has run and the caller may retry.
	ErrPersistence = errors.New("checkout: persistence failure")
)

// LineInput is one client-submitted cart line. Price fields from the client
// are deliberately absent: the order is always re-priced from the catalog.
type LineInput struct {
	ProductID string
	Quantity  int
}

type PlaceOrderInput struct {
	ShopperID string
	Lines     []LineInput
}

type PlaceOrderResult struct {
	OrderID      string
	TotalAmount  int64
	Status       domorder.Status
	PaymentToken string
}

// PlaceOrderUseCase converts a cart snapshot into an immutable order:
// re-validate against the catalog, atomically commit stock, snapshot prices,
// persist, and mint a payment session. Checkout is all-or-nothing.
type PlaceOrderUseCase struct {
	orders    domorder.Repository
	ledger    stock.Ledger
	catalog   catalog.Provider
	sessions  dompayment.SessionStore
	idGen     IDGenerator
	publisher domoutbox.Publisher
	tel       observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	resvCounter  observability.Counter
}

func NewPlaceOrderUseCase(
	orders domorder.Repository,
	ledger stock.Ledger,
	provider catalog.Provider,
	sessions dompayment.SessionStore,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *PlaceOrderUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	return &PlaceOrderUseCase{
		orders:    orders,
		ledger:    ledger,
		catalog:   provider,
		sessions:  sessions,
		idGen:     idGen,
		publisher: publisher,
		tel:       tel,
		log: tel.Logger().With(
			observability.F("service", checkoutService),
		),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
		resvCounter:  tel.Metrics().Counter(observability.MStockReservations),
	}
}

// Execute performs the checkout flow.
func (uc *PlaceOrderUseCase) Execute(ctx context.Context, cmd PlaceOrderInput) (_ *PlaceOrderResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCasePlaceOrder),
		observability.F("shopper_id", cmd.ShopperID),
	)

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"PlaceOrder",
		attribute.String("use_case", useCasePlaceOrder),
		attribute.String("order.shopper_id", cmd.ShopperID),
		attribute.Int("order.line_count", len(cmd.Lines)),
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
			observability.L("use_case", useCasePlaceOrder),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCasePlaceOrder),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if orderID != "" {
			fields = append(fields, observability.F("order_id", orderID))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if cmd.ShopperID == "" {
		outcome, statusText = "error", "SHOPPER_ID_REQUIRED"
		return nil, newValidation("shopper id is required")
	}
	if len(cmd.Lines) == 0 {
		outcome, statusText = "error", "EMPTY_CART"
		return nil, ErrEmptyCart
	}

	lines, err := mergeLines(cmd.Lines)
	if err != nil {
		outcome, statusText = "error", "INVALID_LINE"
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}

	// Re-price from the catalog before touching the ledger. Client-held
	// prices are advisory and never trusted at commit time.
	priced := make([]domorder.Line, 0, len(lines))
	for _, l := range lines {
		product, perr := uc.catalog.GetProduct(ctx, l.ProductID)
		if perr != nil {
			outcome, statusText = "error", "PRODUCT_LOOKUP_FAILED"
			return nil, perr
		}
		priced = append(priced, domorder.Line{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: product.Price,
		})
	}

	// Reserve in ascending product order so concurrent checkouts sharing
	// products cannot deadlock. Any failure rolls back what this call holds.
	reserved := make([]domorder.Line, 0, len(priced))
	for _, l := range priced {
		if rerr := uc.ledger.Reserve(ctx, l.ProductID, l.Quantity); rerr != nil {
			uc.resvCounter.Add(1, observability.L("outcome", "rejected"))
			uc.releaseAll(ctx, reserved, logger)
			outcome, statusText = "error", "INSUFFICIENT_STOCK"
			span.AddEvent("checkout.reservation_failed",
				trace.WithAttributes(attribute.String("product.id", l.ProductID)),
			)
			return nil, rerr
		}
		reserved = append(reserved, l)
	}
	uc.resvCounter.Add(float64(len(reserved)), observability.L("outcome", "reserved"))

	orderID = uc.idGen.NewID()
	entity, derr := domorder.New(orderID, cmd.ShopperID, priced)
	if derr != nil {
		uc.releaseAll(ctx, reserved, logger)
		outcome, statusText = "error", "DOMAIN_CONSTRUCTION_FAILED"
		return nil, fmt.Errorf("checkout: construct order: %w", derr)
	}

	if ierr := uc.orders.Insert(ctx, entity); ierr != nil {
		uc.releaseAll(ctx, reserved, logger)
		outcome, statusText = "error", "REPO_INSERT_FAILED"
		return nil, fmt.Errorf("%w: %w", ErrPersistence, ierr)
	}

	token := uc.idGen.NewID()
	if berr := uc.sessions.Bind(ctx, dompayment.NewSession(token, entity.ID)); berr != nil {
		// The order row exists but cannot be paid for; cancel it and hand
		// the stock back rather than leaving an unpayable PENDING order.
		if terr := uc.orders.TransitionStatus(ctx, entity.ID, domorder.StatusPending, domorder.StatusCancelled); terr != nil {
			logger.Error("checkout_compensation_failed",
				observability.F("order_id", entity.ID),
				observability.F("error", terr),
			)
		}
		uc.releaseAll(ctx, reserved, logger)
		outcome, statusText = "error", "SESSION_BIND_FAILED"
		return nil, fmt.Errorf("%w: %w", ErrPersistence, berr)
	}

	if uc.publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		if perr := uc.publisher.Publish(pubCtx, domorder.NewOrderPlacedEvent(entity, token)); perr != nil {
			logger.Warn("order_placed_publish_failed",
				observability.F("order_id", entity.ID),
				observability.F("error", perr),
			)
		}
		cancel()
	}

	span.SetAttributes(attribute.String("order.id", orderID))
	span.AddEvent("order.placed",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.Int64("order.total_amount", entity.TotalAmount),
		),
	)

	return &PlaceOrderResult{
		OrderID:      entity.ID,
		TotalAmount:  entity.TotalAmount,
		Status:       entity.Status,
		PaymentToken: token,
	}, nil
}

// releaseAll hands back every reservation this call made. Release failures
// are logged, not surfaced: the caller's error is the original failure.
func (uc *PlaceOrderUseCase) releaseAll(ctx context.Context, reserved []domorder.Line, logger observability.Logger) {
	ctx = context.WithoutCancel(ctx)
	for _, l := range reserved {
		if err := uc.ledger.Release(ctx, l.ProductID, l.Quantity); err != nil {
			logger.Error("stock_release_failed",
				observability.F("product_id", l.ProductID),
				observability.F("quantity", l.Quantity),
				observability.F("error", err),
			)
		}
	}
}

// mergeLines collapses duplicate product entries and returns the result in
// ascending product order, the fixed order Reserve calls are made in.
func mergeLines(in []LineInput) ([]LineInput, error) {
	byProduct := make(map[string]int, len(in))
	for _, l := range in {
		if l.ProductID == "" {
			return nil, newValidation("product id is required")
		}
		if l.Quantity <= 0 {
			return nil, newValidation("quantity must be greater than zero")
		}
		byProduct[l.ProductID] += l.Quantity
	}

	out := make([]LineInput, 0, len(byProduct))
	for id, qty := range byProduct {
		out = append(out, LineInput{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func newValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
