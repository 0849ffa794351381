package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/order-service/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// addItemAttempts bounds the retry loop used when two requests race to
// create the same cart or the same line item.
const addItemAttempts = 3

type cartDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Items     []cartItemDocument `bson:"items"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

type cartItemDocument struct {
	ProductID string               `bson:"product_id"`
	Quantity  int                  `bson:"quantity"`
	Price     primitive.Decimal128 `bson:"price"`
	Name      string               `bson:"name"`
	Thumbnail string               `bson:"thumbnail,omitempty"`
	AddedAt   time.Time            `bson:"added_at"`
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *mongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var doc cartDocument

	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return doc.toDomain()
}

// UpsertCart replaces the whole cart document. It is used to put a cart
// back after a failed checkout.
func (m *mongoRepository) UpsertCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now().UTC()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	doc, err := newCartDocument(cart)
	if err != nil {
		return err
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := m.collection.ReplaceOne(ctx, bson.M{"user_id": cart.UserID}, doc, opts); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

// AddItem increments the quantity of an existing line or appends a new one.
// Both paths are single-document atomic updates, so concurrent adds of the
// same product are summed rather than lost.
func (m *mongoRepository) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	price, err := toDecimal128(item.Price)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < addItemAttempts; attempt++ {
		now := time.Now().UTC()

		incremented, err := m.incrementItem(ctx, userID, item.ProductID, item.Quantity, now)
		if err != nil {
			return err
		}
		if incremented {
			return nil
		}

		doc := cartItemDocument{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     price,
			Name:      item.Name,
			Thumbnail: item.Thumbnail,
			AddedAt:   now,
		}
		filter := bson.M{
			"user_id":          userID,
			"items.product_id": bson.M{"$ne": item.ProductID},
		}
		update := bson.M{
			"$push":        bson.M{"items": doc},
			"$set":         bson.M{"updated_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		}

		_, err = m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		if err == nil {
			return nil
		}
		// The line appeared between the two updates, or another request
		// created the cart first; both surface as a unique user_id violation.
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		return fmt.Errorf("failed to add new item: %w", err)
	}

	return fmt.Errorf("failed to add item after %d attempts", addItemAttempts)
}

func (m *mongoRepository) incrementItem(ctx context.Context, userID, productID string, quantity int, now time.Time) (bool, error) {
	filter := bson.M{
		"user_id":          userID,
		"items.product_id": productID,
	}
	update := bson.M{
		"$inc": bson.M{"items.$.quantity": quantity},
		"$set": bson.M{"updated_at": now},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to update existing item: %w", err)
	}
	return result.MatchedCount > 0, nil
}

func (m *mongoRepository) UpdateItemQuantity(ctx context.Context, userID string, productID string, quantity int) error {
	filter := bson.M{
		"user_id":          userID,
		"items.product_id": productID,
	}

	update := bson.M{
		"$set": bson.M{
			"items.$[elem].quantity": quantity,
			"updated_at":             time.Now().UTC(),
		},
	}

	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": productID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}

	if result.MatchedCount == 0 {
		return m.missingItemError(ctx, userID)
	}
	return nil
}

func (m *mongoRepository) RemoveItem(ctx context.Context, userID string, productID string) error {
	filter := bson.M{
		"user_id":          userID,
		"items.product_id": productID,
	}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	if result.MatchedCount == 0 {
		return m.missingItemError(ctx, userID)
	}
	return nil
}

// ClearCart empties the cart, creating it if the owner has none yet.
func (m *mongoRepository) ClearCart(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"items":      bson.A{},
			"updated_at": now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}

	_, err := m.collection.UpdateOne(ctx, bson.M{"user_id": userID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// missingItemError tells a missing cart apart from a missing line.
func (m *mongoRepository) missingItemError(ctx context.Context, userID string) error {
	n, err := m.collection.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to check cart: %w", err)
	}
	if n == 0 {
		return ErrCartNotFound
	}
	return ErrItemNotFound
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // abandoned carts
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// EnsureCartIndexes creates the cart collection indexes. The unique user_id
// index is what makes concurrent AddItem calls safe.
func EnsureCartIndexes(ctx context.Context, repo CartRepository) error {
	m, ok := repo.(*mongoRepository)
	if !ok {
		return nil
	}
	return m.CreateIndexes(ctx)
}

func newCartDocument(cart *domain.Cart) (*cartDocument, error) {
	doc := &cartDocument{
		UserID:    cart.UserID,
		Items:     make([]cartItemDocument, 0, len(cart.Items)),
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	}
	if cart.ID != "" {
		id, err := primitive.ObjectIDFromHex(cart.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid cart id %q: %w", cart.ID, err)
		}
		doc.ID = id
	}

	for _, item := range cart.Items {
		price, err := toDecimal128(item.Price)
		if err != nil {
			return nil, err
		}
		doc.Items = append(doc.Items, cartItemDocument{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     price,
			Name:      item.Name,
			Thumbnail: item.Thumbnail,
			AddedAt:   item.AddedAt,
		})
	}
	return doc, nil
}

func (d *cartDocument) toDomain() (*domain.Cart, error) {
	cart := &domain.Cart{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Items:     make([]domain.CartItem, 0, len(d.Items)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}

	for _, item := range d.Items {
		price, err := decimal.NewFromString(item.Price.String())
		if err != nil {
			return nil, fmt.Errorf("invalid price for product %s: %w", item.ProductID, err)
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     price,
			Name:      item.Name,
			Thumbnail: item.Thumbnail,
			AddedAt:   item.AddedAt,
		})
	}
	return cart, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("invalid price %s: %w", d.String(), err)
	}
	return v, nil
}
