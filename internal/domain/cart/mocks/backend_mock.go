package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/food-cart/internal/domain/cart"
)

// MockBackend is an in-memory cart service. It implements both
// cart.AnonymousBackend and cart.UserBackend and enforces the one restaurant
// rule like the real service does.
type MockBackend struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart

	// Merge writes into this backend's carts; nil means merge is unsupported.
	MergeTarget *MockBackend

	// Injected failures
	GetErr      error
	AddErr      error
	UpdateErr   error
	RemoveErr   error
	ClearErr    error
	MergeErr    error
	GenerateErr error
	CheckoutErr error
	OrdersErr   error
	ExtendOK    bool

	// AddErrMeal limits AddErr to adds of that meal when set.
	AddErrMeal string

	// BeforeUpdate runs outside the lock before Update touches the cart.
	BeforeUpdate func()

	// For tracking calls in tests
	Calls         []string
	MergeCalls    []MergeCall
	CheckoutCalls []cart.OrderRequest
	ExtendCalls   []ExtendCall

	orders    []cart.Order
	nextID    int64
	generated int
}

type MergeCall struct {
	CartID   string
	UserID   string
	Strategy cart.MergeStrategy
}

type ExtendCall struct {
	CartID string
	Days   int
}

func NewMockBackend() *MockBackend {
	return &MockBackend{
		carts:    make(map[string]*cart.Cart),
		ExtendOK: true,
	}
}

// SetCart seeds the cart stored under scope.
func (m *MockBackend) SetCart(scope string, c *cart.Cart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seeded := c.Clone()
	seeded.Normalize()
	m.carts[scope] = seeded
}

// Stored returns a copy of the cart stored under scope, nil when absent.
func (m *MockBackend) Stored(scope string) *cart.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[scope]
	if !ok {
		return nil
	}
	return c.Clone()
}

func (m *MockBackend) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, call := range m.Calls {
		if call == name {
			n++
		}
	}
	return n
}

func (m *MockBackend) record(name string) {
	m.Calls = append(m.Calls, name)
}

func (m *MockBackend) cartFor(scope string) *cart.Cart {
	c, ok := m.carts[scope]
	if !ok {
		c = cart.NewEmpty()
		m.carts[scope] = c
	}
	return c
}

// GenerateID hands out anon-1, anon-2, ... in call order.
func (m *MockBackend) GenerateID(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GenerateID")
	if m.GenerateErr != nil {
		return "", m.GenerateErr
	}
	m.generated++
	return fmt.Sprintf("anon-%d", m.generated), nil
}

func (m *MockBackend) Get(ctx context.Context, scope string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Get")
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if c, ok := m.carts[scope]; ok {
		return c.Clone(), nil
	}
	return cart.NewEmpty(), nil
}

func (m *MockBackend) Add(ctx context.Context, scope string, req cart.AddRequest) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Add")
	if m.AddErr != nil && (m.AddErrMeal == "" || m.AddErrMeal == req.MealID) {
		return nil, m.AddErr
	}
	c := m.cartFor(scope)
	if c.HasItemsFromDifferentRestaurant(req.RestaurantID) {
		return nil, cart.ErrRestaurantConflict
	}
	item, ok := c.Items[req.MealID]
	if ok {
		item.Quantity += req.Quantity
	} else {
		// The service does not store display fields.
		item = cart.CartItem{
			MealID:       req.MealID,
			RestaurantID: req.RestaurantID,
			Quantity:     req.Quantity,
			Note:         req.Note,
			ScheduleDate: req.ScheduleDate,
		}
	}
	c.Items[req.MealID] = item
	c.Normalize()
	return c.Clone(), nil
}

func (m *MockBackend) Update(ctx context.Context, scope, mealID string, upd cart.ItemUpdate) (*cart.Cart, error) {
	if m.BeforeUpdate != nil {
		m.BeforeUpdate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Update")
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	c := m.cartFor(scope)
	item, ok := c.Items[mealID]
	if !ok {
		return nil, cart.ErrItemNotFound
	}
	if upd.Quantity != nil {
		item.Quantity = *upd.Quantity
	}
	if upd.Note != nil {
		item.Note = *upd.Note
	}
	if upd.ScheduleDate != nil {
		item.ScheduleDate = upd.ScheduleDate
	}
	c.Items[mealID] = item
	c.Normalize()
	return c.Clone(), nil
}

func (m *MockBackend) Remove(ctx context.Context, scope, mealID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Remove")
	if m.RemoveErr != nil {
		return nil, m.RemoveErr
	}
	c := m.cartFor(scope)
	delete(c.Items, mealID)
	c.Normalize()
	return c.Clone(), nil
}

func (m *MockBackend) Clear(ctx context.Context, scope string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Clear")
	if m.ClearErr != nil {
		return nil, m.ClearErr
	}
	m.carts[scope] = cart.NewEmpty()
	return cart.NewEmpty(), nil
}

func (m *MockBackend) Validate(ctx context.Context, cartID string) cart.Validation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Validate")
	c, ok := m.carts[cartID]
	if !ok {
		return cart.Validation{CartID: cartID}
	}
	return cart.Validation{
		CartID:       cartID,
		Exists:       true,
		IsValid:      !c.IsEmpty(),
		ItemCount:    c.ItemCount,
		RestaurantID: c.RestaurantID,
	}
}

// Merge folds the anonymous cart into MergeTarget the way the cart service
// does: lines present on both sides count as resolved conflicts.
func (m *MockBackend) Merge(ctx context.Context, cartID, userID string, strategy cart.MergeStrategy) (cart.MergeResult, error) {
	m.mu.Lock()
	m.record("Merge")
	m.MergeCalls = append(m.MergeCalls, MergeCall{CartID: cartID, UserID: userID, Strategy: strategy})
	if m.MergeErr != nil {
		m.mu.Unlock()
		return cart.MergeResult{}, m.MergeErr
	}
	anon, ok := m.carts[cartID]
	if !ok || anon.IsEmpty() {
		m.mu.Unlock()
		return cart.MergeResult{Message: "Anonymous cart is empty or not found"}, nil
	}
	lines := anon.Lines()
	delete(m.carts, cartID)
	m.mu.Unlock()

	target := m.MergeTarget
	target.mu.Lock()
	defer target.mu.Unlock()

	user := target.cartFor(userID)
	result := cart.MergeResult{Message: "Cart merged successfully"}
	for _, line := range lines {
		existing, found := user.Items[line.MealID]
		switch {
		case found && strategy == cart.StrategyReplace:
			result.ConflictsResolved++
			user.Items[line.MealID] = line
		case found:
			result.ConflictsResolved++
			existing.Quantity += line.Quantity
			user.Items[line.MealID] = existing
		default:
			user.Items[line.MealID] = line
		}
		result.MergedItemsCount++
	}
	user.Normalize()
	return result, nil
}

func (m *MockBackend) ExtendExpiry(ctx context.Context, cartID string, days int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ExtendExpiry")
	m.ExtendCalls = append(m.ExtendCalls, ExtendCall{CartID: cartID, Days: days})
	return m.ExtendOK
}

func (m *MockBackend) Checkout(ctx context.Context, req cart.OrderRequest) (*cart.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Checkout")
	m.CheckoutCalls = append(m.CheckoutCalls, req)
	if m.CheckoutErr != nil {
		return nil, m.CheckoutErr
	}
	m.nextID++
	order := cart.Order{
		ID:            m.nextID,
		UserID:        req.UserID,
		RestaurantID:  req.RestaurantID,
		Items:         req.Items,
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
		CreatedAt:     time.Now(),
		Message:       "Order created successfully",
	}
	m.orders = append(m.orders, order)
	return &order, nil
}

func (m *MockBackend) Orders(ctx context.Context, userID string) ([]cart.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Orders")
	if m.OrdersErr != nil {
		return nil, m.OrdersErr
	}
	out := make([]cart.Order, 0, len(m.orders))
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	Events []cart.Event
	Err    error
}

func (p *MockPublisher) Publish(ctx context.Context, event cart.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, event)
	return nil
}

func (p *MockPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		out = append(out, e.EventType)
	}
	return out
}

// MockCatalog serves meals keyed by meal id.
type MockCatalog struct {
	Meals   map[string]cart.MealInfo
	Lookups int
}

func (c *MockCatalog) Lookup(ctx context.Context, restaurantID, mealID string) (cart.MealInfo, bool) {
	c.Lookups++
	info, ok := c.Meals[mealID]
	return info, ok
}
