package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/food-cart/internal/identity"
	"github.com/example/food-cart/internal/infrastructure/store"
	"github.com/google/uuid"
)

// Container owns the current cart of one session and routes every mutation
// to the backend of the active identity.
//
// Mutations and Reload are serialized. Every remote call is tagged with a
// sequence number and a response older than the last settled one is dropped.
type Container struct {
	identities IdentitySource
	anon       AnonymousBackend
	user       UserBackend
	store      store.Store
	publisher  Publisher
	catalog    Catalog
	now        func() time.Time

	opMu sync.Mutex // one mutation at a time

	mu      sync.Mutex // guards the fields below
	cart    *Cart
	key     string
	settled uint64

	seq atomic.Uint64
}

type Option func(*Container)

func WithPublisher(p Publisher) Option {
	return func(c *Container) { c.publisher = p }
}

func WithCatalog(cat Catalog) Option {
	return func(c *Container) { c.catalog = cat }
}

func WithClock(now func() time.Time) Option {
	return func(c *Container) { c.now = now }
}

func NewContainer(identities IdentitySource, anon AnonymousBackend, user UserBackend, st store.Store, opts ...Option) *Container {
	c := &Container{
		identities: identities,
		anon:       anon,
		user:       user,
		store:      st,
		now:        time.Now,
		cart:       NewEmpty(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore loads the persisted snapshot. A snapshot left with an optimistic
// change in flight is rolled back.
func (c *Container) Restore(ctx context.Context) error {
	snap, err := loadSnapshot(ctx, c.store)
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}

	cart := snap.Cart
	if snap.Pending {
		log.Printf("[Cart] Snapshot for %s has an unconfirmed change, rolling back", snap.Key)
		cart = snap.Rollback
		if cart == nil {
			cart = NewEmpty()
		}
	}
	cart.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cart = cart
	c.key = snap.Key
	c.settled = snap.Sequence
	if c.seq.Load() < snap.Sequence {
		c.seq.Store(snap.Sequence)
	}
	if snap.Pending {
		c.persistLocked(ctx)
	}
	return nil
}

// Cart returns a copy of the current cart.
func (c *Container) Cart() *Cart {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.Clone()
}

// Identity reports the identity the session currently resolves to.
func (c *Container) Identity(ctx context.Context) (identity.Identity, error) {
	id, err := c.identities.Current(ctx)
	if err != nil {
		return identity.Identity{}, loginRequired(nil)
	}
	return id, nil
}

// Reload replaces the local cart with the remote one. It waits for an
// in-flight mutation so it cannot overtake that mutation's response.
func (c *Container) Reload(ctx context.Context) (*Cart, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	id, err := c.resolve(ctx, nil)
	if err != nil {
		return nil, err
	}
	return c.fetch(ctx, id)
}

// Add adds a meal to the cart. A meal from another restaurant than the one the
// cart holds fails with KindDifferentRestaurant and leaves the cart untouched.
func (c *Container) Add(ctx context.Context, req AddRequest) (*Cart, error) {
	req = req.withDefaults()
	if err := req.Validate(); err != nil {
		return nil, general("invalid item", err)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	id, err := c.resolve(ctx, &req)
	if err != nil {
		return nil, err
	}
	if err := c.ensureCurrent(ctx, id); err != nil {
		return nil, err
	}
	if c.Cart().HasItemsFromDifferentRestaurant(req.RestaurantID) {
		log.Printf("[Cart] Rejecting meal %s from restaurant %s: cart holds another restaurant", req.MealID, req.RestaurantID)
		return nil, differentRestaurant(req)
	}

	seq := c.next()
	remote, err := c.backendFor(id).Add(ctx, id.Scope(), req)
	if err != nil {
		if errors.Is(err, ErrRestaurantConflict) {
			log.Printf("[Cart] Backend reported restaurant conflict for meal %s", req.MealID)
			return nil, differentRestaurant(req)
		}
		return nil, general("failed to add item", err)
	}

	overlay(remote, req)
	c.decorate(ctx, id, remote)
	result := c.settle(ctx, seq, id, remote)
	c.emit(ctx, id, seq, EventItemAdded, ItemAddedToCart{
		CartKey:      id.Key(),
		RestaurantID: req.RestaurantID,
		MealID:       req.MealID,
		Quantity:     req.Quantity,
		AddedAt:      c.now(),
	})
	return result, nil
}

// ClearAndAdd empties the cart and makes req its only line with quantity 1.
// When the add fails after the clear, the previous lines are put back.
func (c *Container) ClearAndAdd(ctx context.Context, req AddRequest) (*Cart, error) {
	req.Quantity = 1
	if err := req.Validate(); err != nil {
		return nil, general("invalid item", err)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	id, err := c.resolve(ctx, &req)
	if err != nil {
		return nil, err
	}
	if err := c.ensureCurrent(ctx, id); err != nil {
		return nil, err
	}
	backend := c.backendFor(id)
	prev := c.Cart()

	seq := c.next()
	if _, err := backend.Clear(ctx, id.Scope()); err != nil {
		return nil, general("failed to clear cart", err)
	}

	remote, err := backend.Add(ctx, id.Scope(), req)
	if err != nil {
		c.restoreLines(ctx, seq, id, backend, prev)
		return nil, general("failed to add item after clearing cart", err)
	}
	overlay(remote, req)
	c.decorate(ctx, id, remote)
	result := c.settle(ctx, seq, id, remote)
	c.emit(ctx, id, seq, EventCartCleared, CartCleared{CartKey: id.Key(), ClearedAt: c.now()})
	c.emit(ctx, id, seq, EventItemAdded, ItemAddedToCart{
		CartKey:      id.Key(),
		RestaurantID: req.RestaurantID,
		MealID:       req.MealID,
		Quantity:     req.Quantity,
		AddedAt:      c.now(),
	})
	return result, nil
}

// restoreLines re-adds prev's lines after a failed ClearAndAdd. The local
// cart keeps prev even when the backend cannot take every line back.
func (c *Container) restoreLines(ctx context.Context, seq uint64, id identity.Identity, backend Backend, prev *Cart) {
	var restored *Cart
	for _, line := range prev.Lines() {
		remote, err := backend.Add(ctx, id.Scope(), AddRequest{
			RestaurantID: line.RestaurantID,
			MealID:       line.MealID,
			Quantity:     line.Quantity,
			Note:         line.Note,
			ScheduleDate: line.ScheduleDate,
		})
		if err != nil {
			log.Printf("[Cart] degraded: failed to restore meal %s after clear: %v", line.MealID, err)
			return
		}
		restored = remote
	}
	if restored == nil {
		return
	}
	c.decorate(ctx, id, restored)
	c.settle(ctx, seq, id, restored)
}

// Update applies upd optimistically and rolls back if the backend rejects it.
// A quantity of zero or less removes the line.
func (c *Container) Update(ctx context.Context, mealID string, upd ItemUpdate) (*Cart, error) {
	if mealID == "" {
		return nil, general("invalid item", ErrInvalidMeal)
	}
	if upd.Quantity != nil && *upd.Quantity <= 0 {
		return c.Remove(ctx, mealID)
	}
	if upd.IsZero() {
		return c.Cart(), nil
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	id, err := c.resolve(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := c.ensureCurrent(ctx, id); err != nil {
		return nil, err
	}

	prev := c.Cart()
	item, ok := prev.Items[mealID]
	if !ok {
		return nil, general("failed to update item", ErrItemNotFound)
	}

	seq := c.next()
	optimistic := prev.Clone()
	optimistic.Items[mealID] = upd.applyTo(item)
	optimistic.Normalize()
	c.applyOptimistic(ctx, seq, id, optimistic, prev)

	remote, err := c.backendFor(id).Update(ctx, id.Scope(), mealID, upd)
	if err != nil {
		c.rollback(ctx, seq, id, prev)
		return nil, general("failed to update item", err)
	}

	c.decorate(ctx, id, remote)
	result := c.settle(ctx, seq, id, remote)
	c.emit(ctx, id, seq, EventItemUpdated, CartItemUpdated{
		CartKey:   id.Key(),
		MealID:    mealID,
		Update:    upd,
		UpdatedAt: c.now(),
	})
	return result, nil
}

func (c *Container) UpdateQuantity(ctx context.Context, mealID string, quantity int) (*Cart, error) {
	return c.Update(ctx, mealID, ItemUpdate{Quantity: &quantity})
}

func (c *Container) UpdateNote(ctx context.Context, mealID, note string) (*Cart, error) {
	return c.Update(ctx, mealID, ItemUpdate{Note: &note})
}

func (c *Container) UpdateSchedule(ctx context.Context, mealID string, at time.Time) (*Cart, error) {
	return c.Update(ctx, mealID, ItemUpdate{ScheduleDate: &at})
}

func (c *Container) Remove(ctx context.Context, mealID string) (*Cart, error) {
	if mealID == "" {
		return nil, general("invalid item", ErrInvalidMeal)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	id, err := c.resolve(ctx, nil)
	if err != nil {
		return nil, err
	}

	seq := c.next()
	remote, err := c.backendFor(id).Remove(ctx, id.Scope(), mealID)
	if err != nil {
		return nil, general("failed to remove item", err)
	}
	c.decorate(ctx, id, remote)
	result := c.settle(ctx, seq, id, remote)
	c.emit(ctx, id, seq, EventItemRemoved, ItemRemovedFromCart{
		CartKey:   id.Key(),
		MealID:    mealID,
		RemovedAt: c.now(),
	})
	return result, nil
}

func (c *Container) Clear(ctx context.Context) (*Cart, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	id, err := c.resolve(ctx, nil)
	if err != nil {
		return nil, err
	}

	seq := c.next()
	remote, err := c.backendFor(id).Clear(ctx, id.Scope())
	if err != nil {
		return nil, general("failed to clear cart", err)
	}
	result := c.settle(ctx, seq, id, remote)
	c.emit(ctx, id, seq, EventCartCleared, CartCleared{CartKey: id.Key(), ClearedAt: c.now()})
	return result, nil
}

// Checkout places an order for the current cart and empties it. Only
// authenticated sessions can check out.
func (c *Container) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	if !req.PaymentMethod.Valid() {
		return nil, general("invalid checkout", ErrInvalidPaymentMethod)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	id, err := c.resolve(ctx, nil)
	if err != nil {
		return nil, err
	}
	if !id.IsAuthenticated() {
		return nil, loginRequired(nil)
	}
	if err := c.ensureCurrent(ctx, id); err != nil {
		return nil, err
	}

	current := c.Cart()
	if current.IsEmpty() {
		return nil, general("invalid checkout", ErrEmptyCart)
	}

	lines := current.Lines()
	orderReq := OrderRequest{
		UserID:        id.UserID,
		RestaurantID:  current.RestaurantID,
		Items:         make([]OrderItem, 0, len(lines)),
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
	}
	for _, line := range lines {
		orderReq.Items = append(orderReq.Items, OrderItem{MealID: line.MealID, Quantity: line.Quantity, Note: line.Note})
	}

	order, err := c.user.Checkout(ctx, orderReq)
	if err != nil {
		return nil, general("checkout failed", err)
	}
	log.Printf("[Cart] Order %d placed for user %s", order.ID, id.UserID)

	seq := c.next()
	cleared, err := c.user.Clear(ctx, id.UserID)
	if err != nil {
		log.Printf("[Cart] degraded: failed to clear cart after checkout: %v", err)
		cleared = NewEmpty()
	}
	c.settle(ctx, seq, id, cleared)

	c.emit(ctx, id, seq, EventOrderCheckout, OrderCheckedOut{
		UserID:    id.UserID,
		Email:     id.Email,
		Order:     *order,
		Lines:     lines,
		CheckedAt: c.now(),
	})
	return order, nil
}

func (c *Container) Orders(ctx context.Context) ([]Order, error) {
	id, err := c.resolve(ctx, nil)
	if err != nil {
		return nil, err
	}
	if !id.IsAuthenticated() {
		return nil, loginRequired(nil)
	}
	orders, err := c.user.Orders(ctx, id.UserID)
	if err != nil {
		return nil, general("failed to list orders", err)
	}
	return orders, nil
}

// ExtendExpiry pushes an anonymous cart's expiry out by days. It reports false
// for authenticated sessions, whose carts do not expire.
func (c *Container) ExtendExpiry(ctx context.Context, days int) bool {
	id, err := c.identities.Current(ctx)
	if err != nil || id.IsAuthenticated() {
		return false
	}
	if days <= 0 {
		days = DefaultExtendDays
	}
	return c.anon.ExtendExpiry(ctx, id.CartID, days)
}

// Logout drops the session identity together with the cart snapshot.
func (c *Container) Logout(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	err := c.identities.Logout(ctx)
	if delErr := c.store.Delete(ctx, KeySnapshot); delErr != nil && !errors.Is(delErr, store.ErrKeyNotFound) {
		err = errors.Join(err, fmt.Errorf("failed to delete snapshot: %w", delErr))
	}

	c.mu.Lock()
	c.cart = NewEmpty()
	c.key = ""
	c.settled = c.next()
	c.mu.Unlock()

	return err
}

// Quantity returns the quantity of mealID, zero when absent.
func (c *Container) Quantity(mealID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.Items[mealID].Quantity
}

func (c *Container) Contains(mealID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.cart.Items[mealID]
	return ok
}

func (c *Container) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.ItemCount
}

// ConflictsWith reports whether adding a meal of restaurantID would be rejected.
func (c *Container) ConflictsWith(restaurantID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.HasItemsFromDifferentRestaurant(restaurantID)
}

func (c *Container) resolve(ctx context.Context, pending *AddRequest) (identity.Identity, error) {
	id, err := c.identities.Current(ctx)
	if err != nil {
		log.Printf("[Cart] No usable session: %v", err)
		return identity.Identity{}, loginRequired(pending)
	}
	return id, nil
}

func (c *Container) backendFor(id identity.Identity) Backend {
	if id.IsAuthenticated() {
		return c.user
	}
	return c.anon
}

func (c *Container) next() uint64 {
	return c.seq.Add(1)
}

// ensureCurrent fetches the remote cart when the local one belongs to another
// identity, so conflict checks run against the right cart.
func (c *Container) ensureCurrent(ctx context.Context, id identity.Identity) error {
	c.mu.Lock()
	same := c.key == id.Key()
	c.mu.Unlock()
	if same {
		return nil
	}
	_, err := c.fetch(ctx, id)
	return err
}

func (c *Container) fetch(ctx context.Context, id identity.Identity) (*Cart, error) {
	seq := c.next()
	remote, err := c.backendFor(id).Get(ctx, id.Scope())
	if err != nil {
		return nil, general("failed to load cart", err)
	}
	c.decorate(ctx, id, remote)
	return c.settle(ctx, seq, id, remote), nil
}

// settle installs a confirmed remote cart unless a newer one already settled.
// It returns the resulting current cart either way.
func (c *Container) settle(ctx context.Context, seq uint64, id identity.Identity, remote *Cart) *Cart {
	next := remote.Clone()
	next.Normalize()
	if next.Mixed() {
		log.Printf("[Cart] Cart %s holds meals from %v", id.Key(), next.Restaurants())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq < c.settled {
		log.Printf("[Cart] Discarding stale response %d (settled %d)", seq, c.settled)
		return c.cart.Clone()
	}
	c.cart = next
	c.key = id.Key()
	c.settled = seq
	c.persistLocked(ctx)
	return c.cart.Clone()
}

func (c *Container) applyOptimistic(ctx context.Context, seq uint64, id identity.Identity, optimistic, prev *Cart) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cart = optimistic
	c.key = id.Key()
	c.settled = seq
	snap := snapshot{Key: c.key, Cart: optimistic, Sequence: seq, Pending: true, Rollback: prev}
	if err := saveSnapshot(ctx, c.store, snap); err != nil {
		log.Printf("[Cart] Failed to persist pending change: %v", err)
	}
}

// rollback restores prev unless something newer has settled since seq.
func (c *Container) rollback(ctx context.Context, seq uint64, id identity.Identity, prev *Cart) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.settled != seq || c.key != id.Key() {
		log.Printf("[Cart] Skipping rollback of %d: newer state settled", seq)
		return
	}
	log.Printf("[Cart] Rolling back change %d for %s", seq, id.Key())
	c.cart = prev
	c.persistLocked(ctx)
}

func (c *Container) persistLocked(ctx context.Context) {
	snap := snapshot{Key: c.key, Cart: c.cart, Sequence: c.settled}
	if err := saveSnapshot(ctx, c.store, snap); err != nil {
		log.Printf("[Cart] Failed to persist cart: %v", err)
	}
}

// decorate fills display fields the backend does not return, first from the
// local cart and then from the catalog.
func (c *Container) decorate(ctx context.Context, id identity.Identity, remote *Cart) {
	if remote == nil {
		return
	}
	c.mu.Lock()
	if c.key == id.Key() {
		carryDisplay(remote, c.cart)
	}
	c.mu.Unlock()
	c.hydrate(ctx, remote)
}

func (c *Container) hydrate(ctx context.Context, cart *Cart) {
	if c.catalog == nil {
		return
	}
	for mealID, item := range cart.Items {
		if item.Name != "" {
			continue
		}
		info, ok := c.catalog.Lookup(ctx, item.RestaurantID, mealID)
		if !ok {
			continue
		}
		item.Name = info.Name
		item.Price = info.Price
		item.ImageURL = info.ImageURL
		cart.Items[mealID] = item
	}
}

func (c *Container) emit(ctx context.Context, id identity.Identity, seq uint64, eventType string, payload any) {
	if c.publisher == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[Cart] Failed to marshal %s: %v", eventType, err)
		return
	}
	event := Event{
		ID:        uuid.New().String(),
		CartKey:   id.Key(),
		EventType: eventType,
		Data:      data,
		Timestamp: c.now(),
		Sequence:  seq,
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		log.Printf("[Cart] Failed to publish %s: %v", eventType, err)
	}
}

// overlay copies the request's display fields onto the added line.
func overlay(cart *Cart, req AddRequest) {
	if cart == nil {
		return
	}
	item, ok := cart.Items[req.MealID]
	if !ok {
		return
	}
	if req.Name != "" {
		item.Name = req.Name
	}
	if req.Price.Valid {
		item.Price = req.Price
	}
	if req.ImageURL != "" {
		item.ImageURL = req.ImageURL
	}
	cart.Items[req.MealID] = item
}

// carryDisplay keeps display fields the backend does not return.
func carryDisplay(next, prev *Cart) {
	for mealID, item := range next.Items {
		old, ok := prev.Items[mealID]
		if !ok {
			continue
		}
		if item.Name == "" {
			item.Name = old.Name
		}
		if !item.Price.Valid {
			item.Price = old.Price
		}
		if item.ImageURL == "" {
			item.ImageURL = old.ImageURL
		}
		next.Items[mealID] = item
	}
}
