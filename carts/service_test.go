package carts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tienda/models"
	"tienda/products"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCarts struct {
	mu    sync.Mutex
	carts map[string]*models.Cart
	ttl   time.Duration
	now   time.Time
	seq   int
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{
		carts: map[string]*models.Cart{},
		ttl:   4 * time.Hour,
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeCarts) Create(ctx context.Context) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	cart := &models.Cart{
		CartID:    fmt.Sprintf("cart-%d", f.seq),
		Items:     map[string]models.CartItem{},
		ExpiresAt: f.now.Add(f.ttl),
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
	f.carts[cart.CartID] = cart
	return f.snapshot(cart), nil
}

func (f *fakeCarts) snapshot(cart *models.Cart) *models.Cart {
	cp := *cart
	cp.Items = make(map[string]models.CartItem, len(cart.Items))
	for k, v := range cart.Items {
		cp.Items[k] = v
	}
	return &cp
}

func (f *fakeCarts) get(cartID string) (*models.Cart, error) {
	cart, ok := f.carts[cartID]
	if !ok || cart.Expired(f.now) {
		return nil, ErrCartNotFound
	}
	return cart, nil
}

func (f *fakeCarts) Get(ctx context.Context, cartID string) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, err := f.get(cartID)
	if err != nil {
		return nil, err
	}
	return f.snapshot(cart), nil
}

func (f *fakeCarts) AddItem(ctx context.Context, cartID, productID string, quantity int) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, err := f.get(cartID)
	if err != nil {
		return nil, err
	}
	cart.AddItem(productID, quantity)
	cart.Touch(f.now, f.ttl)
	return f.snapshot(cart), nil
}

func (f *fakeCarts) SetItemQuantity(ctx context.Context, cartID, productID string, quantity int) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, err := f.get(cartID)
	if err != nil {
		return nil, err
	}
	if !cart.SetQuantity(productID, quantity) {
		return nil, ErrItemNotFound
	}
	cart.Touch(f.now, f.ttl)
	return f.snapshot(cart), nil
}

func (f *fakeCarts) RemoveItem(ctx context.Context, cartID, productID string) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, err := f.get(cartID)
	if err != nil {
		return nil, err
	}
	cart.RemoveItem(productID)
	cart.Touch(f.now, f.ttl)
	return f.snapshot(cart), nil
}

func (f *fakeCarts) Clear(ctx context.Context, cartID string) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, err := f.get(cartID)
	if err != nil {
		return nil, err
	}
	cart.ClearItems()
	cart.Touch(f.now, f.ttl)
	return f.snapshot(cart), nil
}

func (f *fakeCarts) Replace(ctx context.Context, cartID string, items map[string]models.CartItem) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cart, err := f.get(cartID)
	if err != nil {
		return nil, err
	}
	cart.Items = make(map[string]models.CartItem, len(items))
	for k, v := range items {
		cart.Items[k] = v
	}
	cart.Touch(f.now, f.ttl)
	return f.snapshot(cart), nil
}

func (f *fakeCarts) expire(cartID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cart, ok := f.carts[cartID]; ok {
		cart.ExpiresAt = f.now.Add(-time.Minute)
	}
}

type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]*models.Product
}

func newFakeCatalog(items ...*models.Product) *fakeCatalog {
	f := &fakeCatalog{products: map[string]*models.Product{}}
	for _, p := range items {
		f.products[p.ProductID] = p
	}
	return f
}

func (f *fakeCatalog) GetByID(ctx context.Context, productID string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return nil, products.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) DecrementStock(ctx context.Context, productID string, quantity int) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return nil, products.ErrProductNotFound
	}
	if !p.Status || p.Stock < quantity {
		return nil, products.ErrInsufficientStock
	}
	p.Stock -= quantity
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) IncrementStock(ctx context.Context, productID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return products.ErrProductNotFound
	}
	p.Stock += quantity
	return nil
}

func (f *fakeCatalog) stockOf(productID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[productID].Stock
}

type fakeLedger struct {
	mu      sync.Mutex
	fail    error
	created []*models.Ticket
}

func (f *fakeLedger) Create(ctx context.Context, purchaser string, amount float64, lines []models.TicketLine) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	ticket := &models.Ticket{
		TicketID:         fmt.Sprintf("ticket-%d", len(f.created)+1),
		Code:             fmt.Sprintf("code-%d", len(f.created)+1),
		PurchaseDatetime: time.Now(),
		Amount:           amount,
		Purchaser:        purchaser,
		Products:         lines,
	}
	f.created = append(f.created, ticket)
	return ticket, nil
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakeBinder struct {
	mu    sync.Mutex
	bound map[string]string
}

func (f *fakeBinder) SetCartRef(ctx context.Context, userID, cartID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bound == nil {
		f.bound = map[string]string{}
	}
	f.bound[userID] = cartID
	return nil
}

func buyer(id string) *models.User {
	return &models.User{
		UserID: id,
		Email:  id + "@example.com",
		Role:   []string{"user"},
	}
}

func newTestService() (*Service, *fakeCarts, *fakeCatalog, *fakeLedger, *fakeBinder) {
	carts := newFakeCarts()
	catalog := newFakeCatalog(
		&models.Product{ProductID: "p1", Title: "Keyboard", Price: 50, Stock: 10, Status: true},
		&models.Product{ProductID: "p2", Title: "Mouse", Price: 20, Stock: 3, Status: true},
		&models.Product{ProductID: "p3", Title: "Retired monitor", Price: 200, Stock: 5, Status: false},
	)
	ledger := &fakeLedger{}
	binder := &fakeBinder{}
	svc := NewService(carts, catalog, ledger, binder, nil, nil)
	return svc, carts, catalog, ledger, binder
}

func TestEnsureUserCartCreatesAndBinds(t *testing.T) {
	svc, _, _, _, binder := newTestService()
	user := buyer("u1")

	cart, err := svc.EnsureUserCart(context.Background(), user)
	require.NoError(t, err)
	require.NotEmpty(t, cart.CartID)
	assert.Equal(t, cart.CartID, user.CartID)
	assert.Equal(t, cart.CartID, binder.bound["u1"])

	again, err := svc.EnsureUserCart(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, cart.CartID, again.CartID)
}

func TestEnsureUserCartRebindsAfterExpiry(t *testing.T) {
	svc, carts, _, _, binder := newTestService()
	user := buyer("u1")

	first, err := svc.EnsureUserCart(context.Background(), user)
	require.NoError(t, err)

	carts.expire(first.CartID)

	second, err := svc.EnsureUserCart(context.Background(), user)
	require.NoError(t, err)
	assert.NotEqual(t, first.CartID, second.CartID)
	assert.Equal(t, second.CartID, binder.bound["u1"])
	assert.Equal(t, second.CartID, user.CartID)
}

func TestEnsureUserCartRequiresBuyerRole(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	_, err := svc.EnsureUserCart(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	admin := &models.User{UserID: "a1", Email: "a1@example.com", Role: []string{"admin"}}
	_, err = svc.EnsureUserCart(context.Background(), admin)
	assert.ErrorIs(t, err, ErrForbiddenRole)
}

func TestAddProductValidation(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	user := buyer("u1")
	cart, err := svc.EnsureUserCart(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.AddProduct(context.Background(), user, cart.CartID, "p1", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AddProduct(context.Background(), user, cart.CartID, "p1", -2)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AddProduct(context.Background(), user, cart.CartID, "nope", 1)
	assert.ErrorIs(t, err, products.ErrProductNotFound)

	_, err = svc.AddProduct(context.Background(), user, cart.CartID, "p3", 1)
	assert.ErrorIs(t, err, ErrProductUnavailable)

	_, err = svc.AddProduct(context.Background(), user, "someone-elses-cart", "p1", 1)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestAddProductAccumulates(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	user := buyer("u1")
	cart, err := svc.EnsureUserCart(context.Background(), user)
	require.NoError(t, err)

	resolved, err := svc.AddProduct(context.Background(), user, cart.CartID, "p1", 2)
	require.NoError(t, err)
	require.Len(t, resolved.Items, 1)
	assert.Equal(t, 2, resolved.Items[0].Quantity)

	resolved, err = svc.AddProduct(context.Background(), user, cart.CartID, "p1", 3)
	require.NoError(t, err)
	require.Len(t, resolved.Items, 1)
	assert.Equal(t, 5, resolved.Items[0].Quantity)
	assert.Equal(t, "Keyboard", resolved.Items[0].Product.Title)
}

func TestUpdateQuantityRequiresExistingLine(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	user := buyer("u1")
	cart, err := svc.EnsureUserCart(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.UpdateQuantity(context.Background(), user, cart.CartID, "p1", 4)
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = svc.AddProduct(context.Background(), user, cart.CartID, "p1", 1)
	require.NoError(t, err)

	resolved, err := svc.UpdateQuantity(context.Background(), user, cart.CartID, "p1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, resolved.Items[0].Quantity)
}

func TestRemoveAndClear(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	user := buyer("u1")
	cart, err := svc.EnsureUserCart(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.AddProduct(context.Background(), user, cart.CartID, "p1", 1)
	require.NoError(t, err)
	_, err = svc.AddProduct(context.Background(), user, cart.CartID, "p2", 1)
	require.NoError(t, err)

	resolved, err := svc.RemoveProduct(context.Background(), user, cart.CartID, "p1")
	require.NoError(t, err)
	assert.Len(t, resolved.Items, 1)

	// Removing again is a no-op, not an error.
	resolved, err = svc.RemoveProduct(context.Background(), user, cart.CartID, "p1")
	require.NoError(t, err)
	assert.Len(t, resolved.Items, 1)

	resolved, err = svc.Clear(context.Background(), user, cart.CartID)
	require.NoError(t, err)
	assert.Empty(t, resolved.Items)
}

func TestPurchaseEmptyCart(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	user := buyer("u1")
	cart, err := svc.EnsureUserCart(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.Purchase(context.Background(), user, cart.CartID)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestPurchaseFullFulfillment(t *testing.T) {
	svc, carts, catalog, ledger, _ := newTestService()
	user := buyer("u1")
	cart, err := svc.EnsureUserCart(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.AddProduct(context.Background(), user, cart.CartID, "p1", 2)
	require.NoError(t, err)
	_, err = svc.AddProduct(context.Background(), user, cart.CartID, "p2", 3)
	require.NoError(t, err)

	result, err := svc.Purchase(context.Background(), user, cart.CartID)
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Empty(t, result.Unprocessed)
	require.NotNil(t, result.Ticket)
	assert.Equal(t, "u1@example.com", result.Ticket.Purchaser)
	assert.InDelta(t, 2*50.0+3*20.0, result.Ticket.Amount, 1e-9)
	assert.Len(t, result.Ticket.Products, 2)

	assert.Equal(t, 8, catalog.stockOf("p1"))
	assert.Equal(t, 0, catalog.stockOf("p2"))
	assert.Equal(t, 1, ledger.count())

	after, err := carts.Get(context.Background(), cart.CartID)
	require.NoError(t, err)
	assert.Empty(t, after.Items)
}

func TestPurchasePartialFulfillment(t *testing.T) {
	svc, carts, catalog, _, _ := newTestService()
	user := buyer("u1")
	cart, err := svc.EnsureUserCart(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.AddProduct(context.Background(), user, cart.CartID, "p1", 2)
	require.NoError(t, err)
	// p2 only has 3 units in stock.
	_, err = svc.AddProduct(context.Background(), user, cart.CartID, "p2", 5)
	require.NoError(t, err)

	result, err := svc.Purchase(context.Background(), user, cart.CartID)
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, []string{"p2"}, result.Unprocessed)
	require.NotNil(t, result.Ticket)
	require.Len(t, result.Ticket.Products, 1)
	assert.Equal(t, "p1", result.Ticket.Products[0].ProductID)
	assert.InDelta(t, 100.0, result.Ticket.Amount, 1e-9)

	// The line that could not be bought stays in the cart at full quantity.
	after, err := carts.Get(context.Background(), cart.CartID)
	require.NoError(t, err)
	require.Len(t, after.Items, 1)
	assert.Equal(t, 5, after.Items["p2"].Quantity)

	assert.Equal(t, 8, catalog.stockOf("p1"))
	assert.Equal(t, 3, catalog.stockOf("p2"))
}

func TestPurchaseZeroFulfillmentLeavesCartAlone(t *testing.T) {
	svc, carts, catalog, ledger, _ := newTestService()
	user := buyer("u1")
	cart, err := svc.EnsureUserCart(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.AddProduct(context.Background(), user, cart.CartID, "p2", 99)
	require.NoError(t, err)

	result, err := svc.Purchase(context.Background(), user, cart.CartID)
	require.NoError(t, err)
	assert.Equal(t, "error", result.Status)
	assert.Nil(t, result.Ticket)
	assert.Equal(t, []string{"p2"}, result.Unprocessed)
	assert.Zero(t, ledger.count())

	after, err := carts.Get(context.Background(), cart.CartID)
	require.NoError(t, err)
	assert.Equal(t, 99, after.Items["p2"].Quantity)
	assert.Equal(t, 3, catalog.stockOf("p2"))
}

func TestPurchaseCompensatesOnReceiptFailure(t *testing.T) {
	svc, carts, catalog, ledger, _ := newTestService()
	user := buyer("u1")
	cart, err := svc.EnsureUserCart(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.AddProduct(context.Background(), user, cart.CartID, "p1", 4)
	require.NoError(t, err)

	ledger.fail = errors.New("ledger down")

	_, err = svc.Purchase(context.Background(), user, cart.CartID)
	require.Error(t, err)

	// The decrement was rolled back and the cart still holds the line.
	assert.Equal(t, 10, catalog.stockOf("p1"))
	after, err := carts.Get(context.Background(), cart.CartID)
	require.NoError(t, err)
	assert.Equal(t, 4, after.Items["p1"].Quantity)
}

func TestPurchaseNeverOversells(t *testing.T) {
	svc, _, catalog, ledger, _ := newTestService()

	const (
		stock    = 10
		perCart  = 3
		shoppers = 20
	)
	catalog.products["p1"].Stock = stock

	buyers := make([]*models.User, shoppers)
	cartIDs := make([]string, shoppers)
	for i := 0; i < shoppers; i++ {
		user := buyer(fmt.Sprintf("u%d", i))
		cart, err := svc.EnsureUserCart(context.Background(), user)
		require.NoError(t, err)
		_, err = svc.AddProduct(context.Background(), user, cart.CartID, "p1", perCart)
		require.NoError(t, err)
		buyers[i] = user
		cartIDs[i] = cart.CartID
	}

	var wg sync.WaitGroup
	results := make([]*PurchaseResult, shoppers)
	for i := 0; i < shoppers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := svc.Purchase(context.Background(), buyers[i], cartIDs[i])
			if err != nil {
				t.Errorf("purchase %d: %v", i, err)
				return
			}
			results[i] = result
		}(i)
	}
	wg.Wait()

	won := 0
	for _, result := range results {
		if result != nil && result.Status == "success" {
			won++
		}
	}

	// Exactly floor(stock/perCart) shoppers can win; the rest must fail
	// cleanly and stock can never go negative.
	assert.Equal(t, stock/perCart, won)
	assert.Equal(t, won, ledger.count())
	assert.Equal(t, stock%perCart, catalog.stockOf("p1"))
}

func TestPurchaseOwnershipEnforced(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	owner := buyer("u1")
	cart, err := svc.EnsureUserCart(context.Background(), owner)
	require.NoError(t, err)
	_, err = svc.AddProduct(context.Background(), owner, cart.CartID, "p1", 1)
	require.NoError(t, err)

	intruder := buyer("u2")
	_, err = svc.EnsureUserCart(context.Background(), intruder)
	require.NoError(t, err)

	_, err = svc.Purchase(context.Background(), intruder, cart.CartID)
	assert.ErrorIs(t, err, ErrNotOwner)
}
