package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	appcart "github.com/Zhima-Mochi/shopcore/internal/application/cart"
	appcheckout "github.com/Zhima-Mochi/shopcore/internal/application/checkout"
	apppayment "github.com/Zhima-Mochi/shopcore/internal/application/payment"
	domcart "github.com/Zhima-Mochi/shopcore/internal/domain/cart"
	domcatalog "github.com/Zhima-Mochi/shopcore/internal/domain/catalog"
	domorder "github.com/Zhima-Mochi/shopcore/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/shopcore/internal/domain/payment"
	"github.com/Zhima-Mochi/shopcore/internal/domain/stock"
)

type Handler struct {
	cart     *appcart.Service
	checkout *appcheckout.PlaceOrderUseCase
	payment  *apppayment.ReportStatusUseCase
	catalog  domcatalog.Provider
	orders   domorder.Repository
}

func NewHandler(
	cartSvc *appcart.Service,
	checkoutUC *appcheckout.PlaceOrderUseCase,
	paymentUC *apppayment.ReportStatusUseCase,
	catalog domcatalog.Provider,
	orders domorder.Repository,
) *Handler {
	return &Handler{
		cart:     cartSvc,
		checkout: checkoutUC,
		payment:  paymentUC,
		catalog:  catalog,
		orders:   orders,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/checkout", h.method(http.MethodPost, h.handleCheckout))
	mux.HandleFunc("/payment/status", h.method(http.MethodPost, h.handlePaymentStatus))
	mux.HandleFunc("/cart/add", h.method(http.MethodPost, h.handleCartAdd))
	mux.HandleFunc("/cart/remove", h.method(http.MethodPost, h.handleCartRemove))
	mux.HandleFunc("/cart", h.method(http.MethodGet, h.handleCartGet))
	mux.HandleFunc("/products", h.method(http.MethodGet, h.handleListProducts))
	mux.HandleFunc("/products/", h.method(http.MethodGet, h.handleGetProduct))
	mux.HandleFunc("/orders/", h.method(http.MethodGet, h.handleGetOrder))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

type checkoutLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	// Price is what the client-held cart believed; it is accepted for
	// interface compatibility and ignored: orders are re-priced server-side.
	Price int64 `json:"price,omitempty"`
}

type checkoutRequest struct {
	ShopperID string         `json:"shopper_id"`
	Lines     []checkoutLine `json:"lines"`
}

type checkoutResponse struct {
	OrderID      string `json:"order_id"`
	TotalAmount  int64  `json:"total_amount"`
	Status       string `json:"status"`
	PaymentToken string `json:"payment_token"`
	PaymentURL   string `json:"payment_url"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	lines := make([]appcheckout.LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, appcheckout.LineInput{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
		})
	}

	result, err := h.checkout.Execute(r.Context(), appcheckout.PlaceOrderInput{
		ShopperID: req.ShopperID,
		Lines:     lines,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// The server-side cart mirror is cleared only now, after the order is
	// confirmed to the caller.
	h.cart.Clear(r.Context(), req.ShopperID)

	writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:      result.OrderID,
		TotalAmount:  result.TotalAmount,
		Status:       string(result.Status),
		PaymentToken: result.PaymentToken,
		PaymentURL:   "/payment/" + result.PaymentToken,
	})
}

type paymentStatusRequest struct {
	PaymentToken string `json:"payment_token"`
	OrderID      string `json:"order_id"`
	Status       string `json:"status"`
}

type paymentStatusResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

func (h *Handler) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req paymentStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.payment.Execute(r.Context(), apppayment.ReportStatusInput{
		Token:   req.PaymentToken,
		OrderID: req.OrderID,
		Status:  req.Status,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, paymentStatusResponse{
		OrderID: result.OrderID,
		Status:  string(result.Status),
	})
}

type cartMutationRequest struct {
	ShopperID string `json:"shopper_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type cartLineView struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type cartResponse struct {
	ShopperID string         `json:"shopper_id"`
	Lines     []cartLineView `json:"lines"`
	Total     int64          `json:"total"`
}

func (h *Handler) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	var req cartMutationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	view, err := h.cart.AddItem(r.Context(), req.ShopperID, req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

func (h *Handler) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	var req cartMutationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	view, err := h.cart.RemoveItem(r.Context(), req.ShopperID, req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

func (h *Handler) handleCartGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.cart.Get(r.Context(), r.URL.Query().Get("shopper_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

type productView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Stock int    `json:"stock"`
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, productView{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/products/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id is required"))
		return
	}

	p, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, productView{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock})
}

type orderLineView struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type orderResponse struct {
	OrderID     string          `json:"order_id"`
	ShopperID   string          `json:"shopper_id"`
	Lines       []orderLineView `json:"lines"`
	TotalAmount int64           `json:"total_amount"`
	Status      string          `json:"status"`
	CreatedAt   string          `json:"created_at"`
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/orders/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("order id is required"))
		return
	}

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	lines := make([]orderLineView, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, orderLineView{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	writeJSON(w, http.StatusOK, orderResponse{
		OrderID:     o.ID,
		ShopperID:   o.ShopperID,
		Lines:       lines,
		TotalAmount: o.TotalAmount,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (h *Handler) method(method string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}
		handler(w, r)
	}
}

func toCartResponse(v *appcart.View) cartResponse {
	lines := make([]cartLineView, 0, len(v.Lines))
	for _, l := range v.Lines {
		lines = append(lines, cartLineView{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPriceAtAdd,
		})
	}
	return cartResponse{ShopperID: v.ShopperID, Lines: lines, Total: v.Total}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var insufficient *stock.InsufficientStockError

	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      insufficient.Error(),
			"product_id": insufficient.ProductID,
			"available":  insufficient.Available,
		})
	case errors.Is(err, domorder.ErrConflictingStatus):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domcatalog.ErrNotFound),
		errors.Is(err, stock.ErrNotFound),
		errors.Is(err, dompayment.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domorder.ErrEmptyCart),
		errors.Is(err, domcart.ErrInvalidQuantity),
		errors.Is(err, appcheckout.ErrValidation),
		errors.Is(err, apppayment.ErrValidation),
		errors.Is(err, appcart.ErrShopperRequired):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domcart.ErrOutOfStock):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
