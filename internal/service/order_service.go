package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/fjod/go_cart/order-service/internal/auth"
	"github.com/fjod/go_cart/order-service/internal/domain"
	"github.com/fjod/go_cart/order-service/internal/logger"
	"github.com/fjod/go_cart/order-service/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"
)

const (
	maxOrderNumberAttempts = 3
	restoreCartTimeout     = 5 * time.Second
)

// CheckoutCart is the part of the cart service an order needs.
type CheckoutCart interface {
	LoadForCheckout(ctx context.Context, userID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) (*domain.Cart, error)
	RestoreCart(ctx context.Context, cart *domain.Cart) error
}

type CreateOrderInput struct {
	ShippingAddress *domain.Address      `json:"shippingAddress" validate:"required"`
	BillingAddress  *domain.Address      `json:"billingAddress" validate:"required"`
	PaymentMethod   domain.PaymentMethod `json:"paymentMethod" validate:"required,oneof=credit_card paypal bank_transfer"`
	Notes           string               `json:"notes" validate:"max=2000"`
}

type OrderService struct {
	orders   repository.OrderRepository
	carts    CheckoutCart
	pricing  domain.Pricing
	policy   StatusPolicy
	validate *validator.Validate
	now      func() time.Time
}

type OrderOption func(*OrderService)

func WithPricing(p domain.Pricing) OrderOption {
	return func(s *OrderService) { s.pricing = p }
}

func WithStatusPolicy(p StatusPolicy) OrderOption {
	return func(s *OrderService) { s.policy = p }
}

func WithClock(now func() time.Time) OrderOption {
	return func(s *OrderService) { s.now = now }
}

func NewOrderService(orders repository.OrderRepository, carts CheckoutCart, opts ...OrderOption) *OrderService {
	s := &OrderService{
		orders:   orders,
		carts:    carts,
		pricing:  domain.DefaultPricing(),
		policy:   StatusPolicyFree,
		validate: newValidator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder turns the user's cart into an order. The order row, its
// outbox event and the cart clear succeed or fail together; if the commit
// fails after the cart was cleared the cart is written back.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, in CreateOrderInput) (*domain.Order, error) {
	if err := s.validateStruct(in); err != nil {
		return nil, err
	}

	cart, err := s.carts.LoadForCheckout(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	snapshot := &domain.Cart{
		ID:        cart.ID,
		UserID:    cart.UserID,
		Items:     cart.Snapshot(),
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	order := &domain.Order{
		UserID:          userID,
		Items:           domain.OrderItemsFromCart(snapshot.Items),
		ShippingAddress: *in.ShippingAddress,
		BillingAddress:  *in.BillingAddress,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   domain.PaymentStatusPending,
		Status:          domain.OrderStatusProcessing,
		Notes:           strings.TrimSpace(in.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.pricing.Quote(snapshot.Total()).Apply(order)

	for attempt := 1; ; attempt++ {
		order.ID = uuid.New()
		order.OrderNumber = domain.NewOrderNumber()

		cleared := false
		err = s.orders.CreateOrder(ctx, order, func(ctx context.Context) error {
			if _, err := s.carts.ClearCart(ctx, userID); err != nil {
				return err
			}
			cleared = true
			return nil
		})
		if err == nil {
			break
		}

		if cleared {
			s.restoreCart(ctx, snapshot, order.OrderNumber)
		}
		if errors.Is(err, repository.ErrDuplicateOrderNumber) && attempt < maxOrderNumberAttempts {
			logger.FromContext(ctx).Debug().Ctx(ctx).Str("order_number", order.OrderNumber).Int("attempt", attempt).Msg("order number collision, retrying")
			continue
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	logger.FromContext(ctx).Info().Ctx(ctx).
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("user_id", userID).
		Str("total", order.Total.StringFixed(2)).
		Msg("order created")
	return order, nil
}

func (s *OrderService) restoreCart(ctx context.Context, cart *domain.Cart, orderNumber string) {
	restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreCartTimeout)
	defer cancel()

	if err := s.carts.RestoreCart(restoreCtx, cart); err != nil {
		logger.FromContext(ctx).Error().Ctx(ctx).Err(err).
			Str("user_id", cart.UserID).
			Str("order_number", orderNumber).
			Msg("failed to restore cart after order rollback")
	}
}

func (s *OrderService) GetOrder(ctx context.Context, session auth.Session, orderID string) (*domain.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsOwnedBy(session.UserID) && !session.IsAdmin() {
		return nil, ErrForbidden
	}
	return order, nil
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	orders, err := s.orders.ListOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// ListAllOrders returns every order, newest first, optionally filtered by status.
func (s *OrderService) ListAllOrders(ctx context.Context, session auth.Session, status string) ([]*domain.Order, error) {
	if !session.IsAdmin() {
		return nil, ErrForbidden
	}

	filter := domain.OrderStatus(status)
	if status != "" && !filter.IsValid() {
		return nil, invalid("invalid status filter " + status)
	}

	orders, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, session auth.Session, orderID, status string) (*domain.Order, error) {
	if !session.IsAdmin() {
		return nil, ErrForbidden
	}
	if status == "" {
		return nil, invalid("status is required")
	}
	next := domain.OrderStatus(status)
	if !next.IsValid() {
		return nil, invalid("invalid status " + status)
	}

	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}

	var (
		order   *domain.Order
		current *domain.Order
	)
	if s.policy == StatusPolicyStrict {
		if current, err = s.findOrder(ctx, orderID); err != nil {
			return nil, err
		}
		if !s.policy.Allows(current.Status, next) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, next)
		}
		// only apply if nobody moved the order in the meantime
		order, err = s.orders.UpdateStatus(ctx, id, next, current.Status)
	} else {
		order, err = s.orders.UpdateStatus(ctx, id, next)
	}
	if err != nil {
		return nil, mapOrderError(err)
	}

	logger.FromContext(ctx).Info().Ctx(ctx).Str("order_id", orderID).Str("status", string(next)).Str("admin_id", session.UserID).Msg("order status updated")
	return order, nil
}

func (s *OrderService) UpdatePaymentStatus(ctx context.Context, session auth.Session, orderID, paymentStatus string) (*domain.Order, error) {
	if !session.IsAdmin() {
		return nil, ErrForbidden
	}
	if paymentStatus == "" {
		return nil, invalid("paymentStatus is required")
	}
	next := domain.PaymentStatus(paymentStatus)
	if !next.IsValid() {
		return nil, invalid("invalid payment status " + paymentStatus)
	}

	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.UpdatePaymentStatus(ctx, id, next)
	if err != nil {
		return nil, mapOrderError(err)
	}

	logger.FromContext(ctx).Info().Ctx(ctx).Str("order_id", orderID).Str("payment_status", string(next)).Str("admin_id", session.UserID).Msg("payment status updated")
	return order, nil
}

// CancelOrder lets the owner or an admin cancel an order that has not
// shipped yet.
func (s *OrderService) CancelOrder(ctx context.Context, session auth.Session, orderID string) (*domain.Order, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsOwnedBy(session.UserID) && !session.IsAdmin() {
		return nil, ErrForbidden
	}
	if !order.Status.IsCancellable() {
		return nil, fmt.Errorf("%w: order cannot be cancelled in status %s", ErrInvalidTransition, order.Status)
	}

	cancelled, err := s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled, domain.CancellableStatuses()...)
	if err != nil {
		return nil, mapOrderError(err)
	}

	logger.FromContext(ctx).Info().Ctx(ctx).Str("order_id", orderID).Str("user_id", session.UserID).Msg("order cancelled")
	return cancelled, nil
}

func (s *OrderService) findOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, mapOrderError(err)
	}
	return order, nil
}

func (s *OrderService) validateStruct(in interface{}) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe.Namespace())] = describe(fe)
	}
	return &ValidationError{Message: "invalid order request", Fields: fields}
}

// parseOrderID treats a malformed id as an order that does not exist.
func parseOrderID(orderID string) (uuid.UUID, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	return id, nil
}

func mapOrderError(err error) error {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		return fmt.Errorf("%w: order not found", ErrNotFound)
	case errors.Is(err, repository.ErrStatusConflict):
		return fmt.Errorf("%w: order status changed concurrently", ErrInvalidTransition)
	default:
		return err
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
