package cart

import (
	"context"
	"errors"

	"github.com/example/food-cart/internal/identity"
)

// Backend is the remote cart operation set shared by both identities.
// scope is the anonymous cart id or the user id.
type Backend interface {
	Get(ctx context.Context, scope string) (*Cart, error)
	Add(ctx context.Context, scope string, req AddRequest) (*Cart, error)
	Update(ctx context.Context, scope, mealID string, upd ItemUpdate) (*Cart, error)
	Remove(ctx context.Context, scope, mealID string) (*Cart, error)
	Clear(ctx context.Context, scope string) (*Cart, error)
}

// AnonymousBackend adds the operations only anonymous carts have.
// Validate and ExtendExpiry never fail; failures degrade to negative results.
type AnonymousBackend interface {
	Backend
	Validate(ctx context.Context, cartID string) Validation
	Merge(ctx context.Context, cartID, userID string, strategy MergeStrategy) (MergeResult, error)
	ExtendExpiry(ctx context.Context, cartID string, days int) bool
}

type UserBackend interface {
	Backend
	Checkout(ctx context.Context, req OrderRequest) (*Order, error)
	Orders(ctx context.Context, userID string) ([]Order, error)
}

// IdentitySource is satisfied by *identity.Resolver.
type IdentitySource interface {
	Current(ctx context.Context) (identity.Identity, error)
	AnonymousID(ctx context.Context) (string, bool, error)
	DiscardAnonymous(ctx context.Context) error
	Login(ctx context.Context, accessToken string) (identity.Identity, error)
	Logout(ctx context.Context) error
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Publishers fans every event out to each publisher in turn.
type Publishers []Publisher

func (ps Publishers) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range ps {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Catalog looks up display fields for a meal.
type Catalog interface {
	Lookup(ctx context.Context, restaurantID, mealID string) (MealInfo, bool)
}
