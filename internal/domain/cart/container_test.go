package cart_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/food-cart/internal/domain/cart"
	"github.com/example/food-cart/internal/domain/cart/mocks"
	"github.com/example/food-cart/internal/identity"
	storemocks "github.com/example/food-cart/internal/infrastructure/store/mocks"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedGenerator string

func (g fixedGenerator) GenerateID(ctx context.Context) (string, error) {
	return string(g), nil
}

type testEnv struct {
	store     *storemocks.MockStore
	anon      *mocks.MockBackend
	user      *mocks.MockBackend
	resolver  *identity.Resolver
	publisher *mocks.MockPublisher
	catalog   *mocks.MockCatalog
	container *cart.Container
}

func newTestEnv(t *testing.T, allowAnonymous bool) *testEnv {
	t.Helper()
	env := &testEnv{
		store:     storemocks.NewMockStore(),
		anon:      mocks.NewMockBackend(),
		user:      mocks.NewMockBackend(),
		publisher: &mocks.MockPublisher{},
		catalog:   &mocks.MockCatalog{Meals: map[string]cart.MealInfo{}},
	}
	env.anon.MergeTarget = env.user
	env.resolver = identity.NewResolver(env.store, fixedGenerator("anon-1"), allowAnonymous)
	env.container = env.newContainer()
	return env
}

// newContainer builds a container over the same store and backends, as a
// restarted process would.
func (e *testEnv) newContainer() *cart.Container {
	return cart.NewContainer(e.resolver, e.anon, e.user, e.store,
		cart.WithPublisher(e.publisher),
		cart.WithCatalog(e.catalog),
	)
}

func accessToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, identity.Claims{
		Email: userID + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret-key"))
	require.NoError(t, err)
	return token
}

func (e *testEnv) login(t *testing.T, userID string) {
	t.Helper()
	_, err := e.resolver.Login(context.Background(), accessToken(t, userID))
	require.NoError(t, err)
}

func burger(qty int) cart.AddRequest {
	return cart.AddRequest{
		RestaurantID: "r1",
		MealID:       "m1",
		Quantity:     qty,
		Name:         "Burger",
		Price:        decimal.NewNullDecimal(decimal.RequireFromString("9.50")),
	}
}

// ============================================
// Add Tests
// ============================================

func TestContainer_AddToEmptyCart(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	c, err := env.container.Add(ctx, burger(2))

	require.NoError(t, err)
	assert.Equal(t, "r1", c.RestaurantID)
	assert.Equal(t, 2, c.ItemCount)
	assert.Equal(t, "Burger", c.Items["m1"].Name)
	assert.True(t, c.Subtotal().Equal(decimal.RequireFromString("19")))

	stored := env.anon.Stored("anon-1")
	require.NotNil(t, stored)
	assert.Equal(t, 2, stored.Items["m1"].Quantity)
	assert.Equal(t, []string{cart.EventItemAdded}, env.publisher.Types())
}

func TestContainer_AddDefaultsQuantityToOne(t *testing.T) {
	env := newTestEnv(t, true)

	c, err := env.container.Add(context.Background(), cart.AddRequest{RestaurantID: "r1", MealID: "m1"})

	require.NoError(t, err)
	assert.Equal(t, 1, c.Items["m1"].Quantity)
}

func TestContainer_AddSameMealSumsQuantity(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	_, err := env.container.Add(ctx, burger(2))
	require.NoError(t, err)
	c, err := env.container.Add(ctx, cart.AddRequest{RestaurantID: "r1", MealID: "m1", Quantity: 1})

	require.NoError(t, err)
	assert.Equal(t, 3, c.Items["m1"].Quantity)
	assert.Equal(t, 3, c.ItemCount)
	// Display fields survive responses that do not carry them.
	assert.Equal(t, "Burger", c.Items["m1"].Name)
}

func TestContainer_AddInvalid(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	tests := []struct {
		name string
		req  cart.AddRequest
		want error
	}{
		{"missing meal", cart.AddRequest{RestaurantID: "r1"}, cart.ErrInvalidMeal},
		{"missing restaurant", cart.AddRequest{MealID: "m1"}, cart.ErrInvalidRestaurant},
		{"negative quantity", cart.AddRequest{RestaurantID: "r1", MealID: "m1", Quantity: -2}, cart.ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.container.Add(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, cart.KindGeneral, cart.KindOf(err))
		})
	}
	assert.Zero(t, env.anon.CallCount("Add"))
}

func TestContainer_AddFromDifferentRestaurant(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, err := env.container.Add(ctx, burger(1))
	require.NoError(t, err)
	before := env.container.Cart()
	snapshotBefore, err := env.store.Get(ctx, cart.KeySnapshot)
	require.NoError(t, err)
	setCalls := len(env.store.SetCalls)

	pizza := cart.AddRequest{RestaurantID: "r2", MealID: "m9", Note: "extra cheese"}
	_, err = env.container.Add(ctx, pizza)

	require.Error(t, err)
	assert.True(t, cart.IsDifferentRestaurant(err))
	assert.ErrorIs(t, err, cart.ErrRestaurantConflict)

	pending, ok := cart.PendingItem(err)
	require.True(t, ok)
	assert.Equal(t, "m9", pending.MealID)
	assert.Equal(t, "r2", pending.RestaurantID)
	assert.Equal(t, "extra cheese", pending.Note)

	// Nothing changed locally or remotely.
	assert.Equal(t, 1, env.anon.CallCount("Add"))
	assert.Equal(t, "r1", env.container.Cart().RestaurantID)
	assert.False(t, env.container.Contains("m9"))
	assert.True(t, env.container.ConflictsWith("r2"))
	assert.False(t, env.container.ConflictsWith("r1"))
	assert.Equal(t, before, env.container.Cart())

	snapshotAfter, err := env.store.Get(ctx, cart.KeySnapshot)
	require.NoError(t, err)
	assert.Equal(t, snapshotBefore, snapshotAfter)
	assert.Len(t, env.store.SetCalls, setCalls)
}

func TestContainer_AddConflictReportedByBackend(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, err := env.container.Add(ctx, burger(1))
	require.NoError(t, err)

	// Another device replaced the cart with a different restaurant's meal.
	other := cart.NewEmpty()
	other.Items["m7"] = cart.CartItem{MealID: "m7", RestaurantID: "r3", Quantity: 1}
	env.anon.SetCart("anon-1", other)

	_, err = env.container.Add(ctx, cart.AddRequest{RestaurantID: "r1", MealID: "m2"})

	assert.True(t, cart.IsDifferentRestaurant(err))
	assert.True(t, env.container.Contains("m1"))
	assert.False(t, env.container.Contains("m2"))
}

func TestContainer_AddBackendFailure(t *testing.T) {
	env := newTestEnv(t, true)
	env.anon.AddErr = errors.New("service unavailable")

	_, err := env.container.Add(context.Background(), burger(1))

	assert.Equal(t, cart.KindGeneral, cart.KindOf(err))
	assert.True(t, env.container.Cart().IsEmpty())
	assert.Empty(t, env.publisher.Events)
}

func TestContainer_AddLoginRequired(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.container.Add(context.Background(), burger(1))

	assert.True(t, cart.IsLoginRequired(err))
	assert.ErrorIs(t, err, cart.ErrNoSession)
	pending, ok := cart.PendingItem(err)
	require.True(t, ok)
	assert.Equal(t, "m1", pending.MealID)
	assert.Empty(t, env.anon.Calls)
	assert.Empty(t, env.user.Calls)
}

func TestContainer_AuthenticatedUsesUserBackend(t *testing.T) {
	env := newTestEnv(t, true)
	env.login(t, "user-1")

	_, err := env.container.Add(context.Background(), burger(2))

	require.NoError(t, err)
	assert.Zero(t, env.anon.CallCount("Add"))
	stored := env.user.Stored("user-1")
	require.NotNil(t, stored)
	assert.Equal(t, 2, stored.Items["m1"].Quantity)
}

// ============================================
// ClearAndAdd Tests
// ============================================

func TestContainer_ClearAndAddReplaysPendingItem(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, err := env.container.Add(ctx, burger(4))
	require.NoError(t, err)

	_, err = env.container.Add(ctx, cart.AddRequest{RestaurantID: "r2", MealID: "m9", Quantity: 3})
	pending, ok := cart.PendingItem(err)
	require.True(t, ok)

	c, err := env.container.ClearAndAdd(ctx, pending)

	require.NoError(t, err)
	assert.Equal(t, "r2", c.RestaurantID)
	assert.Len(t, c.Items, 1)
	assert.Equal(t, 1, c.Items["m9"].Quantity)
	assert.Equal(t, 1, c.ItemCount)
	assert.Equal(t, []string{cart.EventItemAdded, cart.EventCartCleared, cart.EventItemAdded}, env.publisher.Types())
}

func TestContainer_ClearAndAddClearFails(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, err := env.container.Add(ctx, burger(1))
	require.NoError(t, err)
	env.anon.ClearErr = errors.New("timeout")

	_, err = env.container.ClearAndAdd(ctx, cart.AddRequest{RestaurantID: "r2", MealID: "m9"})

	assert.Equal(t, cart.KindGeneral, cart.KindOf(err))
	assert.True(t, env.container.Contains("m1"))
	assert.Equal(t, 1, env.anon.CallCount("Add"))
}

func TestContainer_ClearAndAddAddFailsRestoresCart(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, err := env.container.Add(ctx, burger(3))
	require.NoError(t, err)
	env.anon.AddErr = errors.New("timeout")
	env.anon.AddErrMeal = "m9"

	_, err = env.container.ClearAndAdd(ctx, cart.AddRequest{RestaurantID: "r2", MealID: "m9"})

	require.Error(t, err)
	assert.Equal(t, cart.KindGeneral, cart.KindOf(err))

	c := env.container.Cart()
	assert.Equal(t, "r1", c.RestaurantID)
	assert.Equal(t, 3, c.Items["m1"].Quantity)
	assert.Equal(t, "Burger", c.Items["m1"].Name)
	assert.False(t, env.container.Contains("m9"))

	stored := env.anon.Stored("anon-1")
	require.NotNil(t, stored)
	assert.Equal(t, 3, stored.Items["m1"].Quantity)
	assert.NotContains(t, stored.Items, "m9")
	assert.Equal(t, []string{cart.EventItemAdded}, env.publisher.Types())
}

func TestContainer_ClearAndAddKeepsLocalCartWhenRestoreFails(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, err := env.container.Add(ctx, burger(3))
	require.NoError(t, err)
	env.anon.AddErr = errors.New("timeout")

	_, err = env.container.ClearAndAdd(ctx, cart.AddRequest{RestaurantID: "r2", MealID: "m9"})

	assert.Equal(t, cart.KindGeneral, cart.KindOf(err))
	assert.Equal(t, 3, env.container.Quantity("m1"))
	assert.Equal(t, "r1", env.container.Cart().RestaurantID)

	// A restarted process sees the same cart.
	restarted := env.newContainer()
	require.NoError(t, restarted.Restore(ctx))
	assert.Equal(t, 3, restarted.Quantity("m1"))
}

// ============================================
// Update Tests
// ============================================

func TestContainer_UpdateQuantity(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, err := env.container.Add(ctx, burger(1))
	require.NoError(t, err)

	c, err := env.container.UpdateQuantity(ctx, "m1", 4)

	require.NoError(t, err)
	assert.Equal(t, 4, c.Items["m1"].Quantity)
	assert.Equal(t, 4, env.anon.Stored("anon-1").Items["m1"].Quantity)
	assert.Equal(t, "Burger", c.Items["m1"].Name)
}

func TestContainer_UpdateNoteAndSchedule(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, err := env.container.Add(ctx, burger(1))
	require.NoError(t, err)
	at := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)

	_, err = env.container.UpdateNote(ctx, "m1", "no onions")
	require.NoError(t, err)
	c, err := env.container.UpdateSchedule(ctx, "m1", at)
	require.NoError(t, err)

	item := c.Items["m1"]
	assert.Equal(t, "no onions", item.Note)
	require.NotNil(t, item.ScheduleDate)
	assert.True(t, item.ScheduleDate.Equal(at))
	assert.Equal(t, 1, item.Quantity)
}

func TestContainer_UpdateToZeroRemoves(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, err := env.container.Add(ctx, burger(2))
	require.NoError(t, err)

	c, err := env.container.UpdateQuantity(ctx, "m1", 0)

	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Empty(t, c.RestaurantID)
	assert.Equal(t, 1, env.anon.CallCount("Remove"))
	assert.Zero(t, env.anon.CallCount("Update"))
}

func TestContainer_UpdateMissingItem(t *testing.T) {
	env := newTestEnv(t, true)

	_, err := env.container.UpdateQuantity(context.Background(), "ghost", 2)

	assert.ErrorIs(t, err, cart.ErrItemNotFound)
	assert.Zero(t, env.anon.CallCount("Update"))
}

func TestContainer_UpdateIsOptimisticAndRollsBack(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, err := env.container.Add(ctx, burger(2))
	require.NoError(t, err)

	var inFlight int
	env.anon.BeforeUpdate = func() { inFlight = env.container.Quantity("m1") }
	env.anon.UpdateErr = errors.New("service unavailable")

	_, err = env.container.UpdateQuantity(ctx, "m1", 5)

	assert.Equal(t, cart.KindGeneral, cart.KindOf(err))
	assert.Equal(t, 5, inFlight)
	assert.Equal(t, 2, env.container.Quantity("m1"))
	assert.Equal(t, "Burger", env.container.Cart().Items["m1"].Name)

	// The rolled back value is what a restart sees.
	restarted := env.newContainer()
	require.NoError(t, restarted.Restore(ctx))
	assert.Equal(t, 2, restarted.Quantity("m1"))
}

func TestContainer_RestoreRollsBackInterruptedUpdate(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, err := env.container.Add(ctx, burger(2))
	require.NoError(t, err)

	// Simulate a crash while the update is in flight: a new process restores
	// from the pending snapshot.
	var restoredQty int
	env.anon.BeforeUpdate = func() {
		restarted := env.newContainer()
		require.NoError(t, restarted.Restore(ctx))
		restoredQty = restarted.Quantity("m1")
	}

	_, err = env.container.UpdateQuantity(ctx, "m1", 7)

	require.NoError(t, err)
	assert.Equal(t, 2, restoredQty)
}

// ============================================
// Remove / Clear Tests
// ============================================

func TestContainer_Remove(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, err := env.container.Add(ctx, burger(1))
	require.NoError(t, err)
	_, err = env.container.Add(ctx, cart.AddRequest{RestaurantID: "r1", MealID: "m2", Quantity: 2})
	require.NoError(t, err)

	c, err := env.container.Remove(ctx, "m1")

	require.NoError(t, err)
	assert.NotContains(t, c.Items, "m1")
	assert.Equal(t, 2, c.ItemCount)
	assert.Equal(t, "r1", c.RestaurantID)
}

func TestContainer_Clear(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, err := env.container.Add(ctx, burger(3))
	require.NoError(t, err)

	c, err := env.container.Clear(ctx)

	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Zero(t, env.container.ItemCount())
	assert.False(t, env.container.ConflictsWith("r2"))
}

func TestContainer_ClearFailureKeepsCart(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, err := env.container.Add(ctx, burger(3))
	require.NoError(t, err)
	env.anon.ClearErr = errors.New("timeout")

	_, err = env.container.Clear(ctx)

	assert.Error(t, err)
	assert.Equal(t, 3, env.container.ItemCount())
}

// ============================================
// Reload / Restore Tests
// ============================================

func TestContainer_ReloadHydratesFromCatalog(t *testing.T) {
	env := newTestEnv(t, true)
	seeded := cart.NewEmpty()
	seeded.Items["m1"] = cart.CartItem{MealID: "m1", RestaurantID: "r1", Quantity: 2}
	env.anon.SetCart("anon-1", seeded)
	env.catalog.Meals["m1"] = cart.MealInfo{
		ID:           "m1",
		RestaurantID: "r1",
		Name:         "Lentil Soup",
		Price:        decimal.NewNullDecimal(decimal.NewFromInt(4)),
	}

	c, err := env.container.Reload(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Lentil Soup", c.Items["m1"].Name)
	assert.True(t, c.Subtotal().Equal(decimal.NewFromInt(8)))
}

func TestContainer_ReloadFailure(t *testing.T) {
	env := newTestEnv(t, true)
	env.anon.GetErr = errors.New("bad gateway")

	_, err := env.container.Reload(context.Background())

	assert.Equal(t, cart.KindGeneral, cart.KindOf(err))
}

func TestContainer_ReloadWaitsForInFlightUpdate(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, err := env.container.Add(ctx, burger(1))
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	env.anon.BeforeUpdate = func() {
		close(started)
		<-release
	}

	updated := make(chan error, 1)
	go func() {
		_, err := env.container.UpdateQuantity(ctx, "m1", 5)
		updated <- err
	}()
	<-started

	reloaded := make(chan *cart.Cart, 1)
	go func() {
		c, err := env.container.Reload(ctx)
		if err != nil {
			reloaded <- nil
			return
		}
		reloaded <- c
	}()
	// Give the reload a chance to reach the backend before the PATCH lands.
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.NoError(t, <-updated)
	c := <-reloaded
	require.NotNil(t, c)
	assert.Equal(t, 5, c.Items["m1"].Quantity)
	assert.Equal(t, 5, env.container.Quantity("m1"))
}

func TestContainer_RestoreFromSnapshot(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	_, err := env.container.Add(ctx, burger(2))
	require.NoError(t, err)
	gets := env.anon.CallCount("Get")

	restarted := env.newContainer()
	require.NoError(t, restarted.Restore(ctx))

	assert.Equal(t, 2, restarted.Quantity("m1"))
	assert.Equal(t, "Burger", restarted.Cart().Items["m1"].Name)
	assert.Equal(t, gets, env.anon.CallCount("Get"))
}

func TestContainer_RestoreDiscardsCorruptSnapshot(t *testing.T) {
	env := newTestEnv(t, true)
	env.store.SetData(cart.KeySnapshot, []byte("{not json"))

	require.NoError(t, env.container.Restore(context.Background()))

	assert.True(t, env.container.Cart().IsEmpty())
	assert.False(t, env.store.Has(cart.KeySnapshot))
}

func TestContainer_RestoreStoreFailure(t *testing.T) {
	env := newTestEnv(t, true)
	env.store.KeyErr[cart.KeySnapshot] = errors.New("disk on fire")

	assert.Error(t, env.container.Restore(context.Background()))
}

// ============================================
// Checkout / Orders Tests
// ============================================

func TestContainer_Checkout(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	env.login(t, "user-1")
	_, err := env.container.Add(ctx, burger(2))
	require.NoError(t, err)
	_, err = env.container.Add(ctx, cart.AddRequest{RestaurantID: "r1", MealID: "m0", Note: "spicy"})
	require.NoError(t, err)

	order, err := env.container.Checkout(ctx, cart.CheckoutRequest{PaymentMethod: cart.PaymentCash, CouponCode: "WELCOME"})

	require.NoError(t, err)
	assert.Equal(t, int64(1), order.ID)

	require.Len(t, env.user.CheckoutCalls, 1)
	req := env.user.CheckoutCalls[0]
	assert.Equal(t, "user-1", req.UserID)
	assert.Equal(t, "r1", req.RestaurantID)
	assert.Equal(t, "WELCOME", req.CouponCode)
	assert.Equal(t, []cart.OrderItem{
		{MealID: "m0", Quantity: 1, Note: "spicy"},
		{MealID: "m1", Quantity: 2},
	}, req.Items)

	assert.True(t, env.container.Cart().IsEmpty())
	assert.True(t, env.user.Stored("user-1").IsEmpty())

	types := env.publisher.Types()
	assert.Equal(t, cart.EventOrderCheckout, types[len(types)-1])

	orders, err := env.container.Orders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestContainer_CheckoutRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		env := newTestEnv(t, true)
		_, err := env.container.Add(ctx, burger(1))
		require.NoError(t, err)

		_, err = env.container.Checkout(ctx, cart.CheckoutRequest{PaymentMethod: cart.PaymentPOS})
		assert.True(t, cart.IsLoginRequired(err))
	})

	t.Run("invalid payment method", func(t *testing.T) {
		env := newTestEnv(t, true)
		env.login(t, "user-1")

		_, err := env.container.Checkout(ctx, cart.CheckoutRequest{PaymentMethod: "bitcoin"})
		assert.ErrorIs(t, err, cart.ErrInvalidPaymentMethod)
	})

	t.Run("empty cart", func(t *testing.T) {
		env := newTestEnv(t, true)
		env.login(t, "user-1")

		_, err := env.container.Checkout(ctx, cart.CheckoutRequest{PaymentMethod: cart.PaymentCreditCard})
		assert.ErrorIs(t, err, cart.ErrEmptyCart)
		assert.Empty(t, env.user.CheckoutCalls)
	})

	t.Run("backend failure keeps cart", func(t *testing.T) {
		env := newTestEnv(t, true)
		env.login(t, "user-1")
		_, err := env.container.Add(ctx, burger(1))
		require.NoError(t, err)
		env.user.CheckoutErr = errors.New("payment declined")

		_, err = env.container.Checkout(ctx, cart.CheckoutRequest{PaymentMethod: cart.PaymentCash})
		assert.Equal(t, cart.KindGeneral, cart.KindOf(err))
		assert.Equal(t, 1, env.container.ItemCount())
	})
}

func TestContainer_OrdersRequiresLogin(t *testing.T) {
	env := newTestEnv(t, true)

	_, err := env.container.Orders(context.Background())

	assert.True(t, cart.IsLoginRequired(err))
}

// ============================================
// Expiry / Logout / Publishing Tests
// ============================================

func TestContainer_ExtendExpiry(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	assert.True(t, env.container.ExtendExpiry(ctx, 0))
	assert.True(t, env.container.ExtendExpiry(ctx, 7))
	assert.Equal(t, []mocks.ExtendCall{{CartID: "anon-1", Days: cart.DefaultExtendDays}, {CartID: "anon-1", Days: 7}}, env.anon.ExtendCalls)

	env.anon.ExtendOK = false
	assert.False(t, env.container.ExtendExpiry(ctx, 7))

	env.login(t, "user-1")
	assert.False(t, env.container.ExtendExpiry(ctx, 7))
	assert.Len(t, env.anon.ExtendCalls, 3)
}

func TestContainer_Logout(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	env.login(t, "user-1")
	_, err := env.container.Add(ctx, burger(1))
	require.NoError(t, err)
	require.True(t, env.store.Has(cart.KeySnapshot))

	require.NoError(t, env.container.Logout(ctx))

	assert.True(t, env.container.Cart().IsEmpty())
	assert.False(t, env.store.Has(cart.KeySnapshot))
	assert.False(t, env.store.Has(identity.KeyAccessToken))

	id, err := env.container.Identity(ctx)
	require.NoError(t, err)
	assert.False(t, id.IsAuthenticated())
}

func TestContainer_PublishFailureDoesNotFailMutation(t *testing.T) {
	env := newTestEnv(t, true)
	env.publisher.Err = errors.New("broker down")

	c, err := env.container.Add(context.Background(), burger(1))

	require.NoError(t, err)
	assert.Equal(t, 1, c.ItemCount)
}

func TestContainer_ConcurrentAdds(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.container.Add(ctx, cart.AddRequest{RestaurantID: "r1", MealID: "m1"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, env.container.Quantity("m1"))
	assert.Equal(t, 10, env.anon.Stored("anon-1").Items["m1"].Quantity)
}
