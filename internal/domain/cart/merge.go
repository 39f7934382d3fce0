package cart

import (
	"context"
	"fmt"
	"log"

	"github.com/example/food-cart/internal/identity"
)

// MergeCoordinator folds the anonymous cart into the user cart when a session
// logs in. A failed merge keeps the anonymous cart id so the next login can
// retry it.
type MergeCoordinator struct {
	identities IdentitySource
	anon       AnonymousBackend
	container  *Container
	strategy   MergeStrategy
}

func NewMergeCoordinator(identities IdentitySource, anon AnonymousBackend, container *Container, strategy MergeStrategy) *MergeCoordinator {
	if strategy == "" {
		strategy = StrategyAddQuantities
	}
	return &MergeCoordinator{
		identities: identities,
		anon:       anon,
		container:  container,
		strategy:   strategy,
	}
}

// Login stores the access token and runs the merge once for this transition.
// Merge problems are reported in the result; only a rejected token is an error.
func (m *MergeCoordinator) Login(ctx context.Context, accessToken string) (identity.Identity, MergeResult, error) {
	id, err := m.identities.Login(ctx, accessToken)
	if err != nil {
		return identity.Identity{}, MergeResult{}, err
	}

	result := m.Merge(ctx, id.UserID, m.strategy)
	if !result.Merged {
		if _, err := m.container.Reload(ctx); err != nil {
			log.Printf("[Merge] Failed to load cart for user %s: %v", id.UserID, err)
		}
	}
	return id, result, nil
}

// Merge folds the session's anonymous cart into userID's cart. It never
// panics or returns an error; failures come back with Merged false and Err set.
func (m *MergeCoordinator) Merge(ctx context.Context, userID string, strategy MergeStrategy) MergeResult {
	if strategy == "" {
		strategy = m.strategy
	}

	anonID, ok, err := m.identities.AnonymousID(ctx)
	if err != nil {
		log.Printf("[Merge] Failed to read anonymous cart id: %v", err)
		return MergeResult{Message: "could not read anonymous cart", Err: err}
	}
	if !ok {
		return MergeResult{Message: "no anonymous cart to merge"}
	}

	validation := m.anon.Validate(ctx, anonID)
	if !validation.Exists || validation.ItemCount == 0 {
		log.Printf("[Merge] Anonymous cart %s is empty or gone, nothing to merge", anonID)
		return MergeResult{Message: "anonymous cart is empty"}
	}

	// The cart service merges lines blindly, so the one restaurant rule is
	// checked here against the user's current cart.
	userCart, err := m.container.user.Get(ctx, userID)
	if err != nil {
		log.Printf("[Merge] Failed to load cart of user %s, keeping %s for retry: %v", userID, anonID, err)
		return MergeResult{
			Message: "could not merge anonymous cart",
			Err:     fmt.Errorf("failed to load user cart: %w", err),
		}
	}
	userCart.Normalize()
	if validation.RestaurantID != "" && userCart.HasItemsFromDifferentRestaurant(validation.RestaurantID) {
		log.Printf("[Merge] Anonymous cart %s is from restaurant %s, user %s holds %v; not merging",
			anonID, validation.RestaurantID, userID, userCart.Restaurants())
		return MergeResult{
			Message: "could not merge anonymous cart: it holds meals from a different restaurant",
			Err:     fmt.Errorf("failed to merge anonymous cart: %w", ErrRestaurantConflict),
		}
	}

	result, err := m.anon.Merge(ctx, anonID, userID, strategy)
	if err != nil {
		log.Printf("[Merge] Failed to merge cart %s into user %s, keeping it for retry: %v", anonID, userID, err)
		return MergeResult{
			Message: "could not merge anonymous cart",
			Err:     fmt.Errorf("failed to merge anonymous cart: %w", err),
		}
	}
	result.Merged = true
	log.Printf("[Merge] Merged cart %s into user %s (%d items, %d conflicts)", anonID, userID, result.MergedItemsCount, result.ConflictsResolved)

	if err := m.identities.DiscardAnonymous(ctx); err != nil {
		log.Printf("[Merge] Failed to discard anonymous cart id: %v", err)
	}
	if _, err := m.container.Reload(ctx); err != nil {
		log.Printf("[Merge] Failed to reload merged cart: %v", err)
	}

	m.container.emit(ctx, identity.Identity{Kind: identity.Authenticated, UserID: userID}, m.container.next(), EventCartMerged, AnonymousCartMerged{
		AnonymousCartID:   anonID,
		UserID:            userID,
		Strategy:          strategy,
		MergedItemsCount:  result.MergedItemsCount,
		ConflictsResolved: result.ConflictsResolved,
		MergedAt:          m.container.now(),
	})
	return result
}
