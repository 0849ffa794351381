package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Name      string          `json:"name"`
	Thumbnail string          `json:"thumbnail,omitempty"`
}

type Address struct {
	FullName     string `json:"fullName" validate:"required,notblank"`
	AddressLine1 string `json:"addressLine1" validate:"required,notblank"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city" validate:"required,notblank"`
	State        string `json:"state" validate:"required,notblank"`
	ZipCode      string `json:"zipCode" validate:"required,notblank"`
	Country      string `json:"country" validate:"required,notblank"`
	PhoneNumber  string `json:"phoneNumber" validate:"required,notblank"`
}

type Order struct {
	ID              uuid.UUID
	OrderNumber     string
	UserID          string
	Items           []OrderItem
	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	Status          OrderStatus
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Shipping        decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrderNumber derives a short human-facing reference from a random uuid.
func NewOrderNumber() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// OrderItemsFromCart copies cart lines into order lines. The result is
// detached from the cart.
func OrderItemsFromCart(items []CartItem) []OrderItem {
	out := make([]OrderItem, len(items))
	for i, item := range items {
		out[i] = OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Name:      item.Name,
			Thumbnail: item.Thumbnail,
		}
	}
	return out
}

func (o *Order) IsOwnedBy(userID string) bool {
	return o.UserID == userID
}
