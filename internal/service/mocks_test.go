package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_cart/order-service/internal/cache"
	"github.com/fjod/go_cart/order-service/internal/catalog"
	"github.com/fjod/go_cart/order-service/internal/domain"
	"github.com/fjod/go_cart/order-service/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memCartRepo mimics the Mongo repository: adds increment existing lines,
// missing carts and lines are reported with the repository sentinels.
type memCartRepo struct {
	m        sync.Mutex
	carts    map[string]*domain.Cart
	err      error
	clearErr error
	gets     int
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{carts: map[string]*domain.Cart{}}
}

func (r *memCartRepo) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	r.m.Lock()
	defer r.m.Unlock()
	r.gets++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}
	c, ok := r.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	cp := *c
	cp.Items = c.Snapshot()
	return &cp, nil
}

func (r *memCartRepo) UpsertCart(_ context.Context, c *domain.Cart) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := *c
	cp.Items = c.Snapshot()
	r.carts[c.UserID] = &cp
	return nil
}

func (r *memCartRepo) AddItem(_ context.Context, userID string, item domain.CartItem) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	c, ok := r.carts[userID]
	if !ok {
		c = domain.NewEmptyCart(userID, time.Now())
		r.carts[userID] = c
	}
	if i := c.FindItem(item.ProductID); i >= 0 {
		c.Items[i].Quantity += item.Quantity
		return nil
	}
	c.Items = append(c.Items, item)
	return nil
}

func (r *memCartRepo) UpdateItemQuantity(_ context.Context, userID, productID string, quantity int) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	c, ok := r.carts[userID]
	if !ok {
		return repository.ErrCartNotFound
	}
	i := c.FindItem(productID)
	if i < 0 {
		return repository.ErrItemNotFound
	}
	c.Items[i].Quantity = quantity
	return nil
}

func (r *memCartRepo) RemoveItem(_ context.Context, userID, productID string) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	c, ok := r.carts[userID]
	if !ok {
		return repository.ErrCartNotFound
	}
	i := c.FindItem(productID)
	if i < 0 {
		return repository.ErrItemNotFound
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return nil
}

func (r *memCartRepo) ClearCart(_ context.Context, userID string) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.clearErr != nil {
		return r.clearErr
	}
	if r.err != nil {
		return r.err
	}
	c, ok := r.carts[userID]
	if !ok {
		r.carts[userID] = domain.NewEmptyCart(userID, time.Now())
		return nil
	}
	c.Items = []domain.CartItem{}
	return nil
}

func (r *memCartRepo) items(userID string) []domain.CartItem {
	r.m.Lock()
	defer r.m.Unlock()
	if c, ok := r.carts[userID]; ok {
		return c.Snapshot()
	}
	return nil
}

type mockCache struct {
	m       sync.RWMutex
	carts   map[string]*domain.Cart
	err     error
	deletes int
}

func newMockCache() *mockCache {
	return &mockCache{carts: map[string]*domain.Cart{}}
}

func (m *mockCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c, nil
}

func (m *mockCache) Set(_ context.Context, userID string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[userID] = cart
	return m.err
}

func (m *mockCache) Delete(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.deletes++
	delete(m.carts, userID)
	return m.err
}

func (m *mockCache) deleteCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.deletes
}

func (m *mockCache) cached(userID string) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.carts[userID]
}

// gatedCache holds the first Set until release is closed, so a test can
// mutate the cart while a cache fill is in flight.
type gatedCache struct {
	*mockCache
	once    sync.Once
	held    chan struct{}
	release chan struct{}
}

func newGatedCache() *gatedCache {
	return &gatedCache{
		mockCache: newMockCache(),
		held:      make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (g *gatedCache) Set(ctx context.Context, userID string, cart *domain.Cart) error {
	first := false
	g.once.Do(func() { first = true })
	if !first {
		return g.mockCache.Set(ctx, userID, cart)
	}
	close(g.held)
	<-g.release
	return g.mockCache.Set(ctx, userID, cart)
}

type mockCatalog struct {
	m        sync.Mutex
	products map[string]*catalog.Product
	err      error
	calls    int
}

func newMockCatalog(products ...*catalog.Product) *mockCatalog {
	c := &mockCatalog{products: map[string]*catalog.Product{}}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *mockCatalog) GetProduct(_ context.Context, productID string) (*catalog.Product, error) {
	c.m.Lock()
	defer c.m.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.products[productID]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

func product(id, name, price string) *catalog.Product {
	return &catalog.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Thumbnail: id + ".png"}
}

// memOrderRepo keeps orders in memory and records outbox event types.
type memOrderRepo struct {
	m          sync.Mutex
	orders     map[uuid.UUID]*domain.Order
	events     []domain.OrderEventType
	duplicates int   // CreateOrder reports this many order number collisions first
	commitErr  error // returned after beforeCommit succeeded
	err        error
	creates    int
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[uuid.UUID]*domain.Order{}}
}

func (r *memOrderRepo) CreateOrder(ctx context.Context, order *domain.Order, beforeCommit func(context.Context) error) error {
	r.m.Lock()
	r.creates++
	if r.err != nil {
		r.m.Unlock()
		return r.err
	}
	if r.duplicates > 0 {
		r.duplicates--
		r.m.Unlock()
		return repository.ErrDuplicateOrderNumber
	}
	r.m.Unlock()

	if beforeCommit != nil {
		if err := beforeCommit(ctx); err != nil {
			return err
		}
	}

	r.m.Lock()
	defer r.m.Unlock()
	if r.commitErr != nil {
		return r.commitErr
	}
	cp := *order
	r.orders[order.ID] = &cp
	r.events = append(r.events, domain.EventOrderCreated)
	return nil
}

func (r *memOrderRepo) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.m.Lock()
	defer r.m.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	return r.list(func(o *domain.Order) bool { return o.UserID == userID })
}

func (r *memOrderRepo) ListOrders(_ context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	return r.list(func(o *domain.Order) bool { return status == "" || o.Status == status })
}

func (r *memOrderRepo) list(keep func(*domain.Order) bool) ([]*domain.Order, error) {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := []*domain.Order{}
	for _, o := range r.orders {
		if keep(o) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.OrderStatus, from ...domain.OrderStatus) (*domain.Order, error) {
	r.m.Lock()
	defer r.m.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if len(from) > 0 {
		allowed := false
		for _, s := range from {
			if o.Status == s {
				allowed = true
			}
		}
		if !allowed {
			return nil, repository.ErrStatusConflict
		}
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	r.events = append(r.events, domain.EventOrderStatusChanged)
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) UpdatePaymentStatus(_ context.Context, id uuid.UUID, status domain.PaymentStatus) (*domain.Order, error) {
	r.m.Lock()
	defer r.m.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	o.PaymentStatus = status
	r.events = append(r.events, domain.EventOrderPaymentChanged)
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) GetUnprocessedEvents(context.Context, int) ([]*repository.OutboxEvent, error) {
	return nil, nil
}

func (r *memOrderRepo) MarkEventAsProcessed(context.Context, int64) error { return nil }

func (r *memOrderRepo) RunMigrations(*repository.Credentials) error { return nil }

func (r *memOrderRepo) Close() error { return nil }

func (r *memOrderRepo) eventTypes() []domain.OrderEventType {
	r.m.Lock()
	defer r.m.Unlock()
	return append([]domain.OrderEventType(nil), r.events...)
}
