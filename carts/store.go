package carts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tienda/models"
	"tienda/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

// Store persists carts. Mongo's TTL index eventually evicts expired
// documents; Get additionally treats an expired-but-not-yet-evicted cart
// as missing so callers never observe the eviction lag.
type Store struct {
	col *mongo.Collection
	ttl time.Duration
	now func() time.Time
}

func NewStore(col *mongo.Collection, ttl time.Duration) *Store {
	return &Store{col: col, ttl: ttl, now: time.Now}
}

func (s *Store) Create(ctx context.Context) (*models.Cart, error) {
	now := s.now()
	cart := &models.Cart{
		CartID:    utils.GetUUID(),
		Items:     map[string]models.CartItem{},
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.col.InsertOne(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return cart, nil
}

func (s *Store) Get(ctx context.Context, cartID string) (*models.Cart, error) {
	var cart models.Cart
	err := s.col.FindOne(ctx, bson.M{"cartid": cartID}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if cart.Expired(s.now()) {
		return nil, ErrCartNotFound
	}
	if cart.Items == nil {
		cart.Items = map[string]models.CartItem{}
	}
	return &cart, nil
}

// save writes the cart's items and refreshed timestamps back. Cart
// mutations are plain read-modify-write: a cart has a single owner, so
// last-write-wins between that owner's own requests is acceptable.
func (s *Store) save(ctx context.Context, cart *models.Cart) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"cartid": cart.CartID},
		bson.M{"$set": bson.M{
			"items":      cart.Items,
			"expires_at": cart.ExpiresAt,
			"updated_at": cart.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// AddItem increments the line's quantity if the product is already in the
// cart, or appends a new line. Renews expiration.
func (s *Store) AddItem(ctx context.Context, cartID, productID string, quantity int) (*models.Cart, error) {
	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}

	cart.AddItem(productID, quantity)
	cart.Touch(s.now(), s.ttl)

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// SetItemQuantity replaces an existing line's quantity. Renews expiration.
func (s *Store) SetItemQuantity(ctx context.Context, cartID, productID string, quantity int) (*models.Cart, error) {
	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}

	if !cart.SetQuantity(productID, quantity) {
		return nil, ErrItemNotFound
	}
	cart.Touch(s.now(), s.ttl)

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem drops the line if present; removing an absent line is not an
// error. Renews expiration while the cart stays non-empty.
func (s *Store) RemoveItem(ctx context.Context, cartID, productID string) (*models.Cart, error) {
	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}

	cart.RemoveItem(productID)
	cart.Touch(s.now(), s.ttl)

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Clear empties the cart. The expiration clock is deliberately not renewed
// for the now-empty cart.
func (s *Store) Clear(ctx context.Context, cartID string) (*models.Cart, error) {
	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}

	cart.ClearItems()
	cart.Touch(s.now(), s.ttl)

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Replace swaps the cart's lines wholesale. Checkout uses this to leave
// only the unfulfilled remainder behind.
func (s *Store) Replace(ctx context.Context, cartID string, items map[string]models.CartItem) (*models.Cart, error) {
	cart, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}

	if items == nil {
		items = map[string]models.CartItem{}
	}
	cart.Items = items
	cart.Touch(s.now(), s.ttl)

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// AdminCart is a cart joined with the accounts bound to it.
type AdminCart struct {
	models.Cart `bson:",inline"`
	Owners      []models.User `bson:"owners" json:"owners"`
}

// AllWithOwners returns every live cart together with its owner, for the
// admin panel.
func (s *Store) AllWithOwners(ctx context.Context) ([]AdminCart, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "cartid",
			"foreignField": "cartid",
			"as":           "owners",
		}}},
	}

	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to list carts: %w", err)
	}
	defer cursor.Close(ctx)

	var carts []AdminCart
	if err := cursor.All(ctx, &carts); err != nil {
		return nil, fmt.Errorf("failed to read carts: %w", err)
	}
	if carts == nil {
		carts = []AdminCart{}
	}
	return carts, nil
}
