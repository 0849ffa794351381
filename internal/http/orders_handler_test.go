package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_cart/order-service/internal/auth"
	"github.com/fjod/go_cart/order-service/internal/domain"
	"github.com/fjod/go_cart/order-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var admin = auth.Session{UserID: "admin-1", Role: auth.RoleAdmin}

const createOrderBody = `{
	"shippingAddress": {"fullName": "Ada Lovelace", "addressLine1": "1 Main St", "city": "London", "state": "LDN", "zipCode": "N1", "country": "UK", "phoneNumber": "+44 1"},
	"billingAddress": {"fullName": "Ada Lovelace", "addressLine1": "1 Main St", "city": "London", "state": "LDN", "zipCode": "N1", "country": "UK", "phoneNumber": "+44 1"},
	"paymentMethod": "credit_card",
	"notes": "leave at door"
}`

func TestCreateOrder_Success(t *testing.T) {
	orders := &mockOrderService{order: sampleOrder()}
	handler := NewOrdersHandler(orders, 5*time.Second, false)

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(createOrderBody)), user)
	rec := httptest.NewRecorder()
	handler.CreateOrder(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeBody[OrderResponseDTO](t, rec)
	assert.Equal(t, "Order created successfully", resp.Message)
	assert.Equal(t, "AB12CD34", resp.Order.OrderNumber)
	assert.Equal(t, 111.1, resp.Order.Total)
	assert.Equal(t, 10.1, resp.Order.Tax)
	assert.Equal(t, "processing", resp.Order.Status)
	assert.Equal(t, "pending", resp.Order.PaymentStatus)
	require.Len(t, resp.Order.Items, 1)

	call := orders.lastCall()
	assert.Equal(t, "u-1", call.session.UserID)
	require.NotNil(t, call.input.ShippingAddress)
	assert.Equal(t, "Ada Lovelace", call.input.ShippingAddress.FullName)
	assert.Equal(t, domain.PaymentMethodCreditCard, call.input.PaymentMethod)
	assert.Equal(t, "leave at door", call.input.Notes)
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	orders := &mockOrderService{err: service.ErrEmptyCart}
	handler := NewOrdersHandler(orders, 5*time.Second, false)

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(createOrderBody)), user)
	rec := httptest.NewRecorder()
	handler.CreateOrder(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "empty_cart", resp.Code)
	assert.Equal(t, "cart is empty", resp.Error)
}

func TestCreateOrder_Unauthorized(t *testing.T) {
	orders := &mockOrderService{}
	handler := NewOrdersHandler(orders, 5*time.Second, false)

	rec := httptest.NewRecorder()
	handler.CreateOrder(rec, httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(createOrderBody)))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, orders.calls)
}

func TestListOrders_Success(t *testing.T) {
	orders := &mockOrderService{orders: []*domain.Order{sampleOrder(), sampleOrder()}}
	handler := NewOrdersHandler(orders, 5*time.Second, false)

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/orders", nil), user)
	rec := httptest.NewRecorder()
	handler.ListOrders(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[OrderListResponseDTO](t, rec).Orders, 2)
	assert.Equal(t, "u-1", orders.lastCall().session.UserID)
}

func TestListOrders_EmptyIsArray(t *testing.T) {
	handler := NewOrdersHandler(&mockOrderService{}, 5*time.Second, false)

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/orders", nil), user)
	rec := httptest.NewRecorder()
	handler.ListOrders(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"orders":[]}`, rec.Body.String())
}

func TestGetOrder_Forbidden(t *testing.T) {
	orders := &mockOrderService{err: service.ErrForbidden}
	handler := NewOrdersHandler(orders, 5*time.Second, false)

	id := sampleOrder().ID.String()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+id, nil)
	req = withSession(withURLParam(req, "id", id), auth.Session{UserID: "someone-else"})
	rec := httptest.NewRecorder()
	handler.GetOrder(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeBody[ErrorResponse](t, rec).Code)
	assert.Equal(t, id, orders.lastCall().orderID)
}

func TestGetOrder_NotFound(t *testing.T) {
	orders := &mockOrderService{err: fmt.Errorf("%w: order not-a-uuid", service.ErrNotFound)}
	handler := NewOrdersHandler(orders, 5*time.Second, false)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/not-a-uuid", nil)
	req = withSession(withURLParam(req, "id", "not-a-uuid"), user)
	rec := httptest.NewRecorder()
	handler.GetOrder(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelOrder_Success(t *testing.T) {
	order := sampleOrder()
	order.Status = domain.OrderStatusCancelled
	orders := &mockOrderService{order: order}
	handler := NewOrdersHandler(orders, 5*time.Second, false)

	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+order.ID.String()+"/cancel", nil)
	req = withSession(withURLParam(req, "id", order.ID.String()), user)
	rec := httptest.NewRecorder()
	handler.CancelOrder(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[OrderResponseDTO](t, rec)
	assert.Equal(t, "Order cancelled successfully", resp.Message)
	assert.Equal(t, "cancelled", resp.Order.Status)
}

func TestCancelOrder_InvalidTransition(t *testing.T) {
	orders := &mockOrderService{err: fmt.Errorf("%w: order cannot be cancelled in status shipped", service.ErrInvalidTransition)}
	handler := NewOrdersHandler(orders, 5*time.Second, false)

	id := sampleOrder().ID.String()
	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+id+"/cancel", nil)
	req = withSession(withURLParam(req, "id", id), user)
	rec := httptest.NewRecorder()
	handler.CancelOrder(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "invalid_transition", resp.Code)
	assert.Contains(t, resp.Error, "shipped")
}

func TestUpdateStatus_PassesSessionAndBody(t *testing.T) {
	order := sampleOrder()
	order.Status = domain.OrderStatusShipped
	orders := &mockOrderService{order: order}
	handler := NewOrdersHandler(orders, 5*time.Second, false)

	body, _ := json.Marshal(UpdateStatusRequestDTO{Status: "shipped"})
	req := httptest.NewRequest(http.MethodPatch, "/api/orders/"+order.ID.String()+"/status", bytes.NewReader(body))
	req = withSession(withURLParam(req, "id", order.ID.String()), admin)
	rec := httptest.NewRecorder()
	handler.UpdateStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shipped", decodeBody[OrderResponseDTO](t, rec).Order.Status)

	call := orders.lastCall()
	assert.Equal(t, admin, call.session)
	assert.Equal(t, order.ID.String(), call.orderID)
	assert.Equal(t, "shipped", call.value)
}

func TestUpdatePaymentStatus_Validation(t *testing.T) {
	orders := &mockOrderService{err: &service.ValidationError{Message: "invalid payment status refunded"}}
	handler := NewOrdersHandler(orders, 5*time.Second, false)

	body, _ := json.Marshal(UpdatePaymentRequestDTO{PaymentStatus: "refunded"})
	id := sampleOrder().ID.String()
	req := httptest.NewRequest(http.MethodPatch, "/api/orders/"+id+"/payment", bytes.NewReader(body))
	req = withSession(withURLParam(req, "id", id), admin)
	rec := httptest.NewRecorder()
	handler.UpdatePaymentStatus(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeBody[ErrorResponse](t, rec).Code)
	assert.Equal(t, "refunded", orders.lastCall().value)
}

func TestListAllOrders_StatusFilter(t *testing.T) {
	orders := &mockOrderService{orders: []*domain.Order{sampleOrder()}}
	handler := NewOrdersHandler(orders, 5*time.Second, false)

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/admin/orders?status=processing", nil), admin)
	rec := httptest.NewRecorder()
	handler.ListAllOrders(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[OrderListResponseDTO](t, rec).Orders, 1)
	assert.Equal(t, "processing", orders.lastCall().value)
}
