package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcart "github.com/Zhima-Mochi/shopcore/internal/application/cart"
	appcheckout "github.com/Zhima-Mochi/shopcore/internal/application/checkout"
	apppayment "github.com/Zhima-Mochi/shopcore/internal/application/payment"
	"github.com/Zhima-Mochi/shopcore/internal/domain/catalog"
	"github.com/Zhima-Mochi/shopcore/internal/infrastructure/memory"
)

type seqIDGen struct {
	n atomic.Int64
}

func (g *seqIDGen) NewID() string {
	return fmt.Sprintf("id-%d", g.n.Add(1))
}

type env struct {
	server *httptest.Server
	ledger *memory.StockLedger
	orders *memory.OrderRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()

	orders := memory.NewOrderRepository()
	ledger := memory.NewStockLedger()
	cat := memory.NewCatalogRepository()
	sessions := memory.NewSessionStore()

	seed := func(id, name string, price int64, qty int) {
		p, err := catalog.NewProduct(id, name, price, qty)
		require.NoError(t, err)
		require.NoError(t, cat.Save(context.Background(), p))
		require.NoError(t, ledger.SetStock(context.Background(), id, qty))
	}
	seed("p1", "keyboard", 75000, 10)
	seed("p2", "mouse", 45000, 2)

	cartSvc := appcart.NewService(cat, ledger, nil)
	checkoutUC := appcheckout.NewPlaceOrderUseCase(orders, ledger, cat, sessions, &seqIDGen{}, nil, nil)
	paymentUC := apppayment.NewReportStatusUseCase(orders, ledger, sessions, nil, nil)

	h := NewHandler(cartSvc, checkoutUC, paymentUC, cat, orders)
	server := httptest.NewServer(h.Router())
	t.Cleanup(server.Close)

	return &env{server: server, ledger: ledger, orders: orders}
}

func (e *env) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func (e *env) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCheckoutAndPayment_EndToEnd(t *testing.T) {
	e := newEnv(t)

	resp := e.post(t, "/checkout", map[string]any{
		"shopper_id": "shopper-1",
		"lines": []map[string]any{
			{"product_id": "p1", "quantity": 2},
			{"product_id": "p2", "quantity": 1},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	placed := decode[checkoutResponse](t, resp)

	assert.Equal(t, int64(195000), placed.TotalAmount)
	assert.Equal(t, "PENDING", placed.Status)
	assert.NotEmpty(t, placed.PaymentToken)
	assert.Equal(t, "/payment/"+placed.PaymentToken, placed.PaymentURL)

	resp = e.post(t, "/payment/status", map[string]any{
		"payment_token": placed.PaymentToken,
		"status":        "PAID",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	paid := decode[paymentStatusResponse](t, resp)
	assert.Equal(t, placed.OrderID, paid.OrderID)
	assert.Equal(t, "PAID", paid.Status)

	resp = e.get(t, "/orders/"+placed.OrderID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	order := decode[orderResponse](t, resp)
	assert.Equal(t, "PAID", order.Status)
	assert.Equal(t, int64(195000), order.TotalAmount)
	require.Len(t, order.Lines, 2)
}

func TestCheckout_ClientPriceIgnored(t *testing.T) {
	e := newEnv(t)

	// A tampered client price must not survive server-side re-pricing.
	resp := e.post(t, "/checkout", map[string]any{
		"shopper_id": "shopper-1",
		"lines": []map[string]any{
			{"product_id": "p1", "quantity": 1, "price": 1},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	placed := decode[checkoutResponse](t, resp)
	assert.Equal(t, int64(75000), placed.TotalAmount)
}

func TestCheckout_InsufficientStock(t *testing.T) {
	e := newEnv(t)

	resp := e.post(t, "/checkout", map[string]any{
		"shopper_id": "shopper-1",
		"lines": []map[string]any{
			{"product_id": "p2", "quantity": 5},
		},
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "p2", body["product_id"])
	assert.Equal(t, float64(2), body["available"])
}

func TestCheckout_ValidationErrors(t *testing.T) {
	e := newEnv(t)

	resp := e.post(t, "/checkout", map[string]any{
		"shopper_id": "shopper-1",
		"lines":      []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = e.post(t, "/checkout", map[string]any{
		"lines": []map[string]any{{"product_id": "p1", "quantity": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestCheckout_UnknownProduct(t *testing.T) {
	e := newEnv(t)

	resp := e.post(t, "/checkout", map[string]any{
		"shopper_id": "shopper-1",
		"lines":      []map[string]any{{"product_id": "ghost", "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestPaymentStatus_Conflict(t *testing.T) {
	e := newEnv(t)

	resp := e.post(t, "/checkout", map[string]any{
		"shopper_id": "shopper-1",
		"lines":      []map[string]any{{"product_id": "p1", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	placed := decode[checkoutResponse](t, resp)

	resp = e.post(t, "/payment/status", map[string]any{
		"payment_token": placed.PaymentToken,
		"status":        "PAID",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = e.post(t, "/payment/status", map[string]any{
		"payment_token": placed.PaymentToken,
		"status":        "FAILED",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestPaymentStatus_UnknownToken(t *testing.T) {
	e := newEnv(t)

	resp := e.post(t, "/payment/status", map[string]any{
		"payment_token": "ghost",
		"status":        "PAID",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCartFlow(t *testing.T) {
	e := newEnv(t)

	resp := e.post(t, "/cart/add", map[string]any{
		"shopper_id": "shopper-1",
		"product_id": "p1",
		"quantity":   2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart := decode[cartResponse](t, resp)
	assert.Equal(t, int64(150000), cart.Total)

	resp = e.get(t, "/cart?shopper_id=shopper-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart = decode[cartResponse](t, resp)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 2, cart.Lines[0].Quantity)

	resp = e.post(t, "/cart/remove", map[string]any{
		"shopper_id": "shopper-1",
		"product_id": "p1",
		"quantity":   2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart = decode[cartResponse](t, resp)
	assert.Empty(t, cart.Lines)
}

func TestCartAdd_BeyondStock(t *testing.T) {
	e := newEnv(t)

	resp := e.post(t, "/cart/add", map[string]any{
		"shopper_id": "shopper-1",
		"product_id": "p2",
		"quantity":   3,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestProducts(t *testing.T) {
	e := newEnv(t)

	resp := e.get(t, "/products")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	products := decode[[]productView](t, resp)
	require.Len(t, products, 2)
	assert.Equal(t, "p1", products[0].ID)

	resp = e.get(t, "/products/p1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[productView](t, resp)
	assert.Equal(t, "keyboard", p.Name)
	assert.Equal(t, int64(75000), p.Price)

	resp = e.get(t, "/products/ghost")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGetOrder_NotFound(t *testing.T) {
	e := newEnv(t)

	resp := e.get(t, "/orders/ghost")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestMethodNotAllowed(t *testing.T) {
	e := newEnv(t)

	resp := e.get(t, "/checkout")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}

func TestHealth(t *testing.T) {
	e := newEnv(t)

	resp := e.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
