package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/order-service/internal/auth"
	"github.com/fjod/go_cart/order-service/internal/domain"
	"github.com/fjod/go_cart/order-service/internal/service"
	"github.com/go-chi/chi/v5"
)

type OrderService interface {
	CreateOrder(ctx context.Context, userID string, in service.CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, session auth.Session, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]*domain.Order, error)
	ListAllOrders(ctx context.Context, session auth.Session, status string) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, session auth.Session, orderID, status string) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, session auth.Session, orderID, paymentStatus string) (*domain.Order, error)
	CancelOrder(ctx context.Context, session auth.Session, orderID string) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
	errors  errorMapper
}

func NewOrdersHandler(orders OrderService, timeout time.Duration, exposeInternalErrors bool) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
		errors:  errorMapper{exposeInternal: exposeInternalErrors},
	}
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

type UpdatePaymentRequestDTO struct {
	PaymentStatus string `json:"paymentStatus"`
}

type OrderItemDTO struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Thumbnail string  `json:"thumbnail,omitempty"`
}

type OrderDTO struct {
	ID              string         `json:"id"`
	OrderNumber     string         `json:"orderNumber"`
	UserID          string         `json:"userId"`
	Items           []OrderItemDTO `json:"items"`
	ShippingAddress domain.Address `json:"shippingAddress"`
	BillingAddress  domain.Address `json:"billingAddress"`
	PaymentMethod   string         `json:"paymentMethod"`
	PaymentStatus   string         `json:"paymentStatus"`
	Status          string         `json:"status"`
	Subtotal        float64        `json:"subtotal"`
	Tax             float64        `json:"tax"`
	Shipping        float64        `json:"shipping"`
	Discount        float64        `json:"discount"`
	Total           float64        `json:"total"`
	Notes           string         `json:"notes,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

type OrderResponseDTO struct {
	Message string   `json:"message,omitempty"`
	Order   OrderDTO `json:"order"`
}

type OrderListResponseDTO struct {
	Orders []OrderDTO `json:"orders"`
}

// POST /api/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req service.CreateOrderInput
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.CreateOrder(ctx, session.UserID, req)
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, OrderResponseDTO{Message: "Order created successfully", Order: convertOrder(order)})
}

// GET /api/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListOrders(ctx, session.UserID)
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, OrderListResponseDTO{Orders: convertOrders(orders)})
}

// GET /api/orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	order, err := h.orders.GetOrder(ctx, session, chi.URLParam(r, "id"))
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, OrderResponseDTO{Order: convertOrder(order)})
}

// POST /api/orders/{id}/cancel
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	order, err := h.orders.CancelOrder(ctx, session, chi.URLParam(r, "id"))
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, OrderResponseDTO{Message: "Order cancelled successfully", Order: convertOrder(order)})
}

// PATCH /api/orders/{id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req UpdateStatusRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.UpdateStatus(ctx, session, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, OrderResponseDTO{Message: "Order status updated", Order: convertOrder(order)})
}

// PATCH /api/orders/{id}/payment
func (h *OrdersHandler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req UpdatePaymentRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.UpdatePaymentStatus(ctx, session, chi.URLParam(r, "id"), req.PaymentStatus)
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, OrderResponseDTO{Message: "Payment status updated", Order: convertOrder(order)})
}

// GET /api/admin/orders?status=
func (h *OrdersHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListAllOrders(ctx, session, r.URL.Query().Get("status"))
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, OrderListResponseDTO{Orders: convertOrders(orders)})
}

func convertOrders(orders []*domain.Order) []OrderDTO {
	dtos := make([]OrderDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}
	return dtos
}

func convertOrder(o *domain.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price.InexactFloat64(),
			Thumbnail: item.Thumbnail,
		})
	}

	return OrderDTO{
		ID:              o.ID.String(),
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Items:           items,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		Status:          string(o.Status),
		Subtotal:        o.Subtotal.InexactFloat64(),
		Tax:             o.Tax.InexactFloat64(),
		Shipping:        o.Shipping.InexactFloat64(),
		Discount:        o.Discount.InexactFloat64(),
		Total:           o.Total.InexactFloat64(),
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
