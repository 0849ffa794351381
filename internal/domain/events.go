package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	EventOrderCreated        OrderEventType = "order.created"
	EventOrderStatusChanged  OrderEventType = "order.status_changed"
	EventOrderPaymentChanged OrderEventType = "order.payment_status_changed"
)

// OrderEvent is the payload written to the outbox and published to Kafka.
type OrderEvent struct {
	Type          OrderEventType  `json:"event_type"`
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	UserID        string          `json:"user_id"`
	Status        OrderStatus     `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Total         decimal.Decimal `json:"total"`
	Items         []OrderItem     `json:"items,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func NewOrderEvent(t OrderEventType, o *Order, at time.Time) OrderEvent {
	ev := OrderEvent{
		Type:          t,
		OrderID:       o.ID.String(),
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total,
		OccurredAt:    at,
	}
	if t == EventOrderCreated {
		ev.Items = o.Items
	}
	return ev
}
