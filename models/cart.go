package models

import "time"

// CartItem is one line of a cart: a product reference plus a positive quantity.
type CartItem struct {
	ProductID string `json:"productid" bson:"productid"`
	Quantity  int    `json:"quantity" bson:"quantity"`
}

// Cart holds a user's pending purchase lines keyed by product id, with a
// rolling expiration. Mongo evicts the document through a TTL index on
// expires_at; readers also check Expired so eviction lag is not observable.
type Cart struct {
	CartID    string              `json:"cartid" bson:"cartid"`
	Items     map[string]CartItem `json:"items" bson:"items"`
	ExpiresAt time.Time           `json:"expires_at" bson:"expires_at"`
	CreatedAt time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time           `json:"updated_at" bson:"updated_at"`
}

func (c *Cart) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// Touch pushes the expiration forward by ttl. Empty carts are not renewed:
// once the last item is gone the old deadline keeps ticking.
func (c *Cart) Touch(now time.Time, ttl time.Duration) {
	c.UpdatedAt = now
	if len(c.Items) == 0 {
		return
	}
	c.ExpiresAt = now.Add(ttl)
}

// AddItem increments the quantity if the product is already a line item,
// or inserts a new line.
func (c *Cart) AddItem(productID string, quantity int) {
	if c.Items == nil {
		c.Items = make(map[string]CartItem)
	}
	item, ok := c.Items[productID]
	if ok {
		item.Quantity += quantity
	} else {
		item = CartItem{ProductID: productID, Quantity: quantity}
	}
	c.Items[productID] = item
}

// SetQuantity replaces an existing line's quantity. Returns false when the
// product is not in the cart.
func (c *Cart) SetQuantity(productID string, quantity int) bool {
	item, ok := c.Items[productID]
	if !ok {
		return false
	}
	item.Quantity = quantity
	c.Items[productID] = item
	return true
}

func (c *Cart) RemoveItem(productID string) {
	delete(c.Items, productID)
}

func (c *Cart) ClearItems() {
	c.Items = map[string]CartItem{}
}

// TimeRemaining reports the whole seconds left before the cart expires.
func (c *Cart) TimeRemaining(now time.Time) int {
	remaining := c.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds())
}

// ResolvedItem pairs a cart line with the product's current catalog data.
// Product is nil when the catalog entry no longer exists.
type ResolvedItem struct {
	ProductID string   `json:"productid"`
	Quantity  int      `json:"quantity"`
	Product   *Product `json:"product,omitempty"`
}

// ResolvedCart is a cart with its lines joined against the catalog, used
// both for display and as the checkout input snapshot.
type ResolvedCart struct {
	CartID    string         `json:"cartid"`
	Items     []ResolvedItem `json:"items"`
	ExpiresAt time.Time      `json:"expires_at"`
}
