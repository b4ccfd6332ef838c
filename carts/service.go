package carts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"tienda/models"
	"tienda/products"
)

var (
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrForbiddenRole      = errors.New("a buyer role is required")
	ErrNotOwner           = errors.New("cart does not belong to user")
	ErrInvalidID          = errors.New("id must not be empty")
	ErrInvalidQuantity    = errors.New("quantity must be a positive integer")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrProductUnavailable = errors.New("product not available")
)

// BuyerRole is the capability required to hold and mutate a cart.
const BuyerRole = "user"

// CartBackend is what the service needs from cart persistence.
type CartBackend interface {
	Create(ctx context.Context) (*models.Cart, error)
	Get(ctx context.Context, cartID string) (*models.Cart, error)
	AddItem(ctx context.Context, cartID, productID string, quantity int) (*models.Cart, error)
	SetItemQuantity(ctx context.Context, cartID, productID string, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, cartID, productID string) (*models.Cart, error)
	Clear(ctx context.Context, cartID string) (*models.Cart, error)
	Replace(ctx context.Context, cartID string, items map[string]models.CartItem) (*models.Cart, error)
}

// Catalog is the slice of the product store checkout relies on.
// DecrementStock must be atomic and conditional.
type Catalog interface {
	GetByID(ctx context.Context, productID string) (*models.Product, error)
	DecrementStock(ctx context.Context, productID string, quantity int) (*models.Product, error)
	IncrementStock(ctx context.Context, productID string, quantity int) error
}

// Ledger issues immutable receipts.
type Ledger interface {
	Create(ctx context.Context, purchaser string, amount float64, lines []models.TicketLine) (*models.Ticket, error)
}

// Binder repairs the user -> cart reference.
type Binder interface {
	SetCartRef(ctx context.Context, userID, cartID string) error
}

// StockNotifier pushes live stock levels to subscribers. Optional.
type StockNotifier interface {
	Broadcast(productID string, remaining int)
}

// EventEmitter announces completed purchases to interested consumers
// (mail, indexing). Optional.
type EventEmitter interface {
	EmitPurchase(ctx context.Context, ticket *models.Ticket, unprocessed []string)
}

// Service owns the cart lifecycle and the checkout engine. Stores are
// injected once at startup; stock and events may be nil.
type Service struct {
	carts   CartBackend
	catalog Catalog
	tickets Ledger
	users   Binder
	stock   StockNotifier
	events  EventEmitter
}

func NewService(carts CartBackend, catalog Catalog, tickets Ledger, users Binder, stock StockNotifier, events EventEmitter) *Service {
	return &Service{
		carts:   carts,
		catalog: catalog,
		tickets: tickets,
		users:   users,
		stock:   stock,
		events:  events,
	}
}

func (s *Service) requireBuyer(user *models.User) error {
	if user == nil {
		return ErrUnauthenticated
	}
	if !user.HasRole(BuyerRole) {
		return ErrForbiddenRole
	}
	return nil
}

// checkOwnership compares the user's bound cart against the target. A
// mismatch is a permission error, never a not-found.
func (s *Service) checkOwnership(user *models.User, cartID string) error {
	if cartID == "" {
		return ErrInvalidID
	}
	if user.CartID != cartID {
		return ErrNotOwner
	}
	return nil
}

// EnsureUserCart resolves the user's live cart, creating and binding a
// fresh one when none exists or the bound cart has expired. Safe to call
// on every cart-touching request.
func (s *Service) EnsureUserCart(ctx context.Context, user *models.User) (*models.Cart, error) {
	if err := s.requireBuyer(user); err != nil {
		return nil, err
	}

	if user.CartID != "" {
		cart, err := s.carts.Get(ctx, user.CartID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, ErrCartNotFound) {
			return nil, err
		}
		// Bound cart was evicted; fall through and rebind.
	}

	cart, err := s.carts.Create(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetCartRef(ctx, user.UserID, cart.CartID); err != nil {
		return nil, fmt.Errorf("failed to bind cart: %w", err)
	}
	user.CartID = cart.CartID
	return cart, nil
}

// resolve loads a cart and joins each line against the catalog. Lines are
// ordered by product id so downstream processing is deterministic.
func (s *Service) resolve(ctx context.Context, cartID string) (*models.ResolvedCart, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(cart.Items))
	for id := range cart.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	resolved := &models.ResolvedCart{
		CartID:    cart.CartID,
		Items:     make([]models.ResolvedItem, 0, len(ids)),
		ExpiresAt: cart.ExpiresAt,
	}
	for _, id := range ids {
		item := cart.Items[id]
		product, err := s.catalog.GetByID(ctx, id)
		if err != nil && !errors.Is(err, products.ErrProductNotFound) {
			return nil, err
		}
		resolved.Items = append(resolved.Items, models.ResolvedItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Product:   product,
		})
	}
	return resolved, nil
}

// GetResolved returns the user's cart with product details, for display
// and for the checkout preview.
func (s *Service) GetResolved(ctx context.Context, user *models.User, cartID string) (*models.ResolvedCart, error) {
	if err := s.requireBuyer(user); err != nil {
		return nil, err
	}
	if err := s.checkOwnership(user, cartID); err != nil {
		return nil, err
	}
	return s.resolve(ctx, cartID)
}

// AddProduct validates and adds quantity units of a product to the cart.
func (s *Service) AddProduct(ctx context.Context, user *models.User, cartID, productID string, quantity int) (*models.ResolvedCart, error) {
	if err := s.requireBuyer(user); err != nil {
		return nil, err
	}
	if err := s.checkOwnership(user, cartID); err != nil {
		return nil, err
	}
	if productID == "" {
		return nil, ErrInvalidID
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Status {
		return nil, ErrProductUnavailable
	}

	if _, err := s.carts.AddItem(ctx, cartID, productID, quantity); err != nil {
		return nil, err
	}
	return s.resolve(ctx, cartID)
}

// UpdateQuantity replaces an existing line's quantity.
func (s *Service) UpdateQuantity(ctx context.Context, user *models.User, cartID, productID string, quantity int) (*models.ResolvedCart, error) {
	if err := s.requireBuyer(user); err != nil {
		return nil, err
	}
	if err := s.checkOwnership(user, cartID); err != nil {
		return nil, err
	}
	if productID == "" {
		return nil, ErrInvalidID
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	if _, err := s.carts.SetItemQuantity(ctx, cartID, productID, quantity); err != nil {
		return nil, err
	}
	return s.resolve(ctx, cartID)
}

// RemoveProduct drops a line from the cart; absent lines are a no-op.
func (s *Service) RemoveProduct(ctx context.Context, user *models.User, cartID, productID string) (*models.ResolvedCart, error) {
	if err := s.requireBuyer(user); err != nil {
		return nil, err
	}
	if err := s.checkOwnership(user, cartID); err != nil {
		return nil, err
	}
	if productID == "" {
		return nil, ErrInvalidID
	}

	if _, err := s.carts.RemoveItem(ctx, cartID, productID); err != nil {
		return nil, err
	}
	return s.resolve(ctx, cartID)
}

// Clear removes every line from the cart.
func (s *Service) Clear(ctx context.Context, user *models.User, cartID string) (*models.ResolvedCart, error) {
	if err := s.requireBuyer(user); err != nil {
		return nil, err
	}
	if err := s.checkOwnership(user, cartID); err != nil {
		return nil, err
	}

	if _, err := s.carts.Clear(ctx, cartID); err != nil {
		return nil, err
	}
	return s.resolve(ctx, cartID)
}

// PurchaseResult reports a checkout's outcome. Status is "error" only when
// nothing at all could be bought.
type PurchaseResult struct {
	Status      string         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Ticket      *models.Ticket `json:"ticket,omitempty"`
	Unprocessed []string       `json:"unprocessedProducts,omitempty"`
}

// Purchase runs the checkout: each line is settled independently by one
// atomic conditional stock decrement, fulfilled lines go onto a receipt,
// and the cart keeps only the unfulfilled remainder. No cross-item locking
// is needed; concurrent checkouts racing for the same product are decided
// by the decrement itself.
func (s *Service) Purchase(ctx context.Context, user *models.User, cartID string) (*PurchaseResult, error) {
	if err := s.requireBuyer(user); err != nil {
		return nil, err
	}
	if err := s.checkOwnership(user, cartID); err != nil {
		return nil, err
	}

	resolved, err := s.resolve(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(resolved.Items) == 0 {
		return nil, ErrEmptyCart
	}

	var fulfilled []models.TicketLine
	var unprocessed []string
	remainder := map[string]models.CartItem{}

	for _, item := range resolved.Items {
		if item.Quantity < 1 || item.Product == nil || !item.Product.Status {
			unprocessed = append(unprocessed, item.ProductID)
			remainder[item.ProductID] = models.CartItem{ProductID: item.ProductID, Quantity: item.Quantity}
			continue
		}

		updated, err := s.catalog.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			if !errors.Is(err, products.ErrInsufficientStock) {
				log.Printf("Purchase: decrement failed for %s: %v", item.ProductID, err)
			}
			unprocessed = append(unprocessed, item.ProductID)
			remainder[item.ProductID] = models.CartItem{ProductID: item.ProductID, Quantity: item.Quantity}
			continue
		}

		// Snapshot title and price from the resolved cart, not re-read
		// after the decrement.
		fulfilled = append(fulfilled, models.TicketLine{
			ProductID: item.ProductID,
			Title:     item.Product.Title,
			Price:     item.Product.Price,
			Quantity:  item.Quantity,
		})

		if s.stock != nil {
			s.stock.Broadcast(item.ProductID, updated.Stock)
		}
	}

	if len(fulfilled) == 0 {
		// Nothing happened for the buyer; the cart is left untouched.
		return &PurchaseResult{
			Status:      "error",
			Message:     "No products could be purchased",
			Unprocessed: unprocessed,
		}, nil
	}

	total := 0.0
	for _, line := range fulfilled {
		total += line.Subtotal()
	}

	ticket, err := s.tickets.Create(ctx, user.Email, total, fulfilled)
	if err != nil {
		// Stock was already taken; give it back rather than leave units
		// sold without a receipt.
		for _, line := range fulfilled {
			if rbErr := s.catalog.IncrementStock(ctx, line.ProductID, line.Quantity); rbErr != nil {
				log.Printf("Purchase: stock compensation failed for %s: %v", line.ProductID, rbErr)
			}
		}
		return nil, fmt.Errorf("failed to persist receipt: %w", err)
	}

	if _, err := s.carts.Replace(ctx, cartID, remainder); err != nil {
		// The receipt exists and stock is correct; only the cart still
		// shows the bought lines. Log and carry on.
		log.Printf("Purchase: failed to rewrite cart %s: %v", cartID, err)
	}

	if s.events != nil {
		s.events.EmitPurchase(ctx, ticket, unprocessed)
	}

	return &PurchaseResult{
		Status:      "success",
		Message:     "Purchase completed",
		Ticket:      ticket,
		Unprocessed: unprocessed,
	}, nil
}
