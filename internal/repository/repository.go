package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/order-service/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrCartNotFound         = errors.New("cart not found")
	ErrItemNotFound         = errors.New("item not found in cart")
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("order with this order number already exists")
	ErrStatusConflict       = errors.New("order status changed concurrently")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SSLMode           string
	MigrationsDirPath string
}

// CartRepository defines the interface for cart data operations
// Consumers define this interface, not the MongoDB implementation
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	UpsertCart(ctx context.Context, cart *domain.Cart) error
	AddItem(ctx context.Context, userID string, item domain.CartItem) error
	UpdateItemQuantity(ctx context.Context, userID string, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID string, productID string) error
	ClearCart(ctx context.Context, userID string) error
}

// OrderRepository persists orders and the outbox events describing them.
// Every write that changes an order also records an event in the same
// transaction.
type OrderRepository interface {
	// CreateOrder inserts the order and its order.created event. beforeCommit,
	// when non-nil, runs inside the transaction after the insert; an error
	// from it rolls the insert back.
	CreateOrder(ctx context.Context, order *domain.Order, beforeCommit func(context.Context) error) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	// ListOrders returns all orders, newest first, optionally filtered by status.
	ListOrders(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error)
	// UpdateStatus sets the status. When from is non-empty the update only
	// applies if the current status is one of from; otherwise ErrStatusConflict.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, from ...domain.OrderStatus) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) (*domain.Order, error)
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	RunMigrations(*Credentials) error
	Close() error
}
