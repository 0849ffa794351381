package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/order-service/internal/domain"
)

// CartCache stores the read view of a cart keyed by owner.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
