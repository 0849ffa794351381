package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fjod/go_cart/order-service/internal/auth"
	"github.com/fjod/go_cart/order-service/internal/domain"
	"github.com/fjod/go_cart/order-service/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type cartCall struct {
	method    string
	userID    string
	productID string
	quantity  int
}

type mockCartService struct {
	m     sync.Mutex
	cart  *domain.Cart
	err   error
	calls []cartCall
}

func (s *mockCartService) record(c cartCall) (*domain.Cart, error) {
	s.m.Lock()
	defer s.m.Unlock()
	s.calls = append(s.calls, c)
	if s.err != nil {
		return nil, s.err
	}
	return s.cart, nil
}

func (s *mockCartService) lastCall() cartCall {
	s.m.Lock()
	defer s.m.Unlock()
	if len(s.calls) == 0 {
		return cartCall{}
	}
	return s.calls[len(s.calls)-1]
}

func (s *mockCartService) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	return s.record(cartCall{method: "GetCart", userID: userID})
}

func (s *mockCartService) AddItem(_ context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	return s.record(cartCall{method: "AddItem", userID: userID, productID: productID, quantity: quantity})
}

func (s *mockCartService) UpdateItem(_ context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	return s.record(cartCall{method: "UpdateItem", userID: userID, productID: productID, quantity: quantity})
}

func (s *mockCartService) RemoveItem(_ context.Context, userID, productID string) (*domain.Cart, error) {
	return s.record(cartCall{method: "RemoveItem", userID: userID, productID: productID})
}

func (s *mockCartService) ClearCart(_ context.Context, userID string) (*domain.Cart, error) {
	return s.record(cartCall{method: "ClearCart", userID: userID})
}

type orderCall struct {
	method  string
	session auth.Session
	orderID string
	value   string
	input   service.CreateOrderInput
}

type mockOrderService struct {
	m      sync.Mutex
	order  *domain.Order
	orders []*domain.Order
	err    error
	calls  []orderCall
}

func (s *mockOrderService) record(c orderCall) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.calls = append(s.calls, c)
	return s.err
}

func (s *mockOrderService) lastCall() orderCall {
	s.m.Lock()
	defer s.m.Unlock()
	if len(s.calls) == 0 {
		return orderCall{}
	}
	return s.calls[len(s.calls)-1]
}

func (s *mockOrderService) CreateOrder(_ context.Context, userID string, in service.CreateOrderInput) (*domain.Order, error) {
	if err := s.record(orderCall{method: "CreateOrder", session: auth.Session{UserID: userID}, input: in}); err != nil {
		return nil, err
	}
	return s.order, nil
}

func (s *mockOrderService) GetOrder(_ context.Context, session auth.Session, orderID string) (*domain.Order, error) {
	if err := s.record(orderCall{method: "GetOrder", session: session, orderID: orderID}); err != nil {
		return nil, err
	}
	return s.order, nil
}

func (s *mockOrderService) ListOrders(_ context.Context, userID string) ([]*domain.Order, error) {
	if err := s.record(orderCall{method: "ListOrders", session: auth.Session{UserID: userID}}); err != nil {
		return nil, err
	}
	return s.orders, nil
}

func (s *mockOrderService) ListAllOrders(_ context.Context, session auth.Session, status string) ([]*domain.Order, error) {
	if err := s.record(orderCall{method: "ListAllOrders", session: session, value: status}); err != nil {
		return nil, err
	}
	return s.orders, nil
}

func (s *mockOrderService) UpdateStatus(_ context.Context, session auth.Session, orderID, status string) (*domain.Order, error) {
	if err := s.record(orderCall{method: "UpdateStatus", session: session, orderID: orderID, value: status}); err != nil {
		return nil, err
	}
	return s.order, nil
}

func (s *mockOrderService) UpdatePaymentStatus(_ context.Context, session auth.Session, orderID, paymentStatus string) (*domain.Order, error) {
	if err := s.record(orderCall{method: "UpdatePaymentStatus", session: session, orderID: orderID, value: paymentStatus}); err != nil {
		return nil, err
	}
	return s.order, nil
}

func (s *mockOrderService) CancelOrder(_ context.Context, session auth.Session, orderID string) (*domain.Order, error) {
	if err := s.record(orderCall{method: "CancelOrder", session: session, orderID: orderID}); err != nil {
		return nil, err
	}
	return s.order, nil
}

func withSession(req *http.Request, s auth.Session) *http.Request {
	return req.WithContext(auth.NewContext(req.Context(), s))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func sampleCart() *domain.Cart {
	return &domain.Cart{
		UserID: "u-1",
		Items: []domain.CartItem{
			{ProductID: "p-1", Name: "Mug", Quantity: 2, Price: decimal.RequireFromString("12.50")},
			{ProductID: "p-2", Name: "Pen", Quantity: 1, Price: decimal.RequireFromString("3.00")},
		},
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:          uuid.MustParse("6f1c1a9e-5b7d-4a3c-9d2e-1f0a2b3c4d5e"),
		OrderNumber: "AB12CD34",
		UserID:      "u-1",
		Items: []domain.OrderItem{
			{ProductID: "p-1", Name: "Mug", Quantity: 2, Price: decimal.RequireFromString("50.50")},
		},
		PaymentMethod: domain.PaymentMethodCreditCard,
		PaymentStatus: domain.PaymentStatusPending,
		Status:        domain.OrderStatusProcessing,
		Subtotal:      decimal.RequireFromString("101.00"),
		Tax:           decimal.RequireFromString("10.10"),
		Shipping:      decimal.Zero,
		Discount:      decimal.Zero,
		Total:         decimal.RequireFromString("111.10"),
		CreatedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}
