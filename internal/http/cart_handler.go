package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/order-service/internal/auth"
	"github.com/fjod/go_cart/order-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error)
	UpdateItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) (*domain.Cart, error)
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
	errors  errorMapper
}

func NewCartHandler(carts CartService, timeout time.Duration, exposeInternalErrors bool) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
		errors:  errorMapper{exposeInternal: exposeInternalErrors},
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartItemDTO struct {
	ProductID string    `json:"productId"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
}

type CartDTO struct {
	Items     []CartItemDTO `json:"items"`
	Total     float64       `json:"total"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type CartResponseDTO struct {
	Message string  `json:"message,omitempty"`
	Cart    CartDTO `json:"cart"`
}

// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	cart, err := h.carts.GetCart(ctx, session.UserID)
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponseDTO{Cart: convertCart(cart)})
}

// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, err := h.carts.AddItem(ctx, session.UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponseDTO{Message: "Item added to cart", Cart: convertCart(cart)})
}

// PUT /api/cart/items/{productId}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID := chi.URLParam(r, "productId")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, err := h.carts.UpdateItem(ctx, session.UserID, productID, req.Quantity)
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponseDTO{Message: "Cart updated", Cart: convertCart(cart)})
}

// DELETE /api/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID := chi.URLParam(r, "productId")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}

	cart, err := h.carts.RemoveItem(ctx, session.UserID, productID)
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponseDTO{Message: "Item removed from cart", Cart: convertCart(cart)})
}

// DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	cart, err := h.carts.ClearCart(ctx, session.UserID)
	if err != nil {
		h.errors.handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponseDTO{Message: "Cart cleared", Cart: convertCart(cart)})
}

func convertCart(c *domain.Cart) CartDTO {
	items := make([]CartItemDTO, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, CartItemDTO{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price.InexactFloat64(),
			Thumbnail: item.Thumbnail,
			AddedAt:   item.AddedAt,
		})
	}
	return CartDTO{
		Items:     items,
		Total:     c.Total().InexactFloat64(),
		UpdatedAt: c.UpdatedAt,
	}
}
