package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/order-service/internal/cache"
	"github.com/fjod/go_cart/order-service/internal/catalog"
	"github.com/fjod/go_cart/order-service/internal/domain"
	"github.com/fjod/go_cart/order-service/internal/logger"
	"github.com/fjod/go_cart/order-service/internal/repository"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	cartLoadTimeout = 5 * time.Second
	versionShards   = 256
)

// ProductCatalog looks up the product snapshot stored on a cart line.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID string) (*catalog.Product, error)
}

type CartService struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	catalog ProductCatalog
	sfg     singleflight.Group // collapses concurrent misses per user
	now     func() time.Time

	// versions counts cart mutations per user shard. A cache fill only
	// survives if no mutation of its shard happened since the load.
	versions [versionShards]atomic.Uint64
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, catalog ProductCatalog) *CartService {
	return &CartService{
		repo:    repo,
		cache:   cache,
		catalog: catalog,
		now:     time.Now,
	}
}

// GetCart returns the user's cart, or an empty one if none was stored yet.
// The result may be shared with concurrent callers and must not be mutated.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		// shared by every waiter, so it must not die with the first caller
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cartLoadTimeout)
		defer cancel()

		cart, err := s.cache.Get(loadCtx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.FromContext(ctx).Warn().Ctx(ctx).Err(err).Str("user_id", userID).Msg("cart cache get failed")
		}

		version := s.version(userID).Load()
		cart, err = s.load(loadCtx, userID)
		if err != nil {
			return nil, err
		}

		go s.fillCache(userID, cart, version)

		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

// fillCache stores a cart loaded at version. A mutation racing with the
// write bumps the version, in which case the entry is dropped again.
func (s *CartService) fillCache(userID string, cart *domain.Cart, version uint64) {
	counter := s.version(userID)
	if counter.Load() != version {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, userID, cart); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("cart cache set failed")
		return
	}
	if counter.Load() != version {
		if err := s.cache.Delete(ctx, userID); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("stale cart cache entry not removed")
		}
	}
}

func (s *CartService) version(userID string) *atomic.Uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.versions[h.Sum32()%versionShards]
}

func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, invalid("productId is required")
	}
	if quantity < 1 {
		return nil, invalid("quantity must be at least 1")
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		return nil, &ValidationError{
			Message: "product not found",
			Fields:  map[string]string{"productId": "unknown product " + productID},
		}
	case errors.Is(err, catalog.ErrUnavailable):
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	case err != nil:
		return nil, fmt.Errorf("lookup product %s: %w", productID, err)
	}

	item := domain.CartItem{
		ProductID: productID,
		Quantity:  quantity,
		Price:     product.Price,
		Name:      product.Name,
		Thumbnail: product.Thumbnail,
		AddedAt:   s.now().UTC(),
	}
	if err := s.repo.AddItem(ctx, userID, item); err != nil {
		return nil, fmt.Errorf("add item: %w", err)
	}

	return s.afterMutation(ctx, userID)
}

func (s *CartService) UpdateItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, invalid("quantity must be at least 1")
	}

	if err := s.repo.UpdateItemQuantity(ctx, userID, productID, quantity); err != nil {
		return nil, mapCartError(err)
	}
	return s.afterMutation(ctx, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	if err := s.repo.RemoveItem(ctx, userID, productID); err != nil {
		return nil, mapCartError(err)
	}
	return s.afterMutation(ctx, userID)
}

// ClearCart empties the cart, creating an empty one if needed.
func (s *CartService) ClearCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if err := s.repo.ClearCart(ctx, userID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}
	return s.afterMutation(ctx, userID)
}

// LoadForCheckout reads the cart straight from the store, skipping the cache.
func (s *CartService) LoadForCheckout(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.load(ctx, userID)
}

// RestoreCart writes a previously captured cart back after a failed checkout.
func (s *CartService) RestoreCart(ctx context.Context, cart *domain.Cart) error {
	if err := s.repo.UpsertCart(ctx, cart); err != nil {
		return fmt.Errorf("restore cart: %w", err)
	}
	s.invalidateCache(cart.UserID)
	return nil
}

func (s *CartService) load(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return domain.NewEmptyCart(userID, s.now().UTC()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

func (s *CartService) afterMutation(ctx context.Context, userID string) (*domain.Cart, error) {
	s.invalidateCache(userID)
	return s.load(ctx, userID)
}

func (s *CartService) invalidateCache(userID string) {
	s.version(userID).Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("cart cache invalidate failed")
	}
}

func mapCartError(err error) error {
	switch {
	case errors.Is(err, repository.ErrCartNotFound):
		return fmt.Errorf("%w: cart not found", ErrNotFound)
	case errors.Is(err, repository.ErrItemNotFound):
		return fmt.Errorf("%w: item not found in cart", ErrNotFound)
	default:
		return err
	}
}
