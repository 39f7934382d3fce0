package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/example/food-cart/internal/infrastructure/store"
	"github.com/google/uuid"
)

// Storage keys shared with the cart container.
const (
	KeyAccessToken     = "access_token"
	KeyAnonymousCartID = "anonymous_cart_id"
)

// ErrNoSession means neither an authenticated nor an anonymous identity could be produced.
var ErrNoSession = errors.New("no usable cart session")

type Kind int

const (
	Anonymous Kind = iota
	Authenticated
)

func (k Kind) String() string {
	if k == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Identity is either Anonymous(CartID) or Authenticated(UserID).
type Identity struct {
	Kind   Kind
	CartID string
	UserID string
	Email  string
}

func (i Identity) IsAuthenticated() bool {
	return i.Kind == Authenticated
}

// Scope is the id the backing client is scoped by.
func (i Identity) Scope() string {
	if i.Kind == Authenticated {
		return i.UserID
	}
	return i.CartID
}

// Key identifies the cart across identities, e.g. "user:42" or "anon:3f2c...".
func (i Identity) Key() string {
	if i.Kind == Authenticated {
		return "user:" + i.UserID
	}
	return "anon:" + i.CartID
}

// IDGenerator asks the remote cart service for a fresh anonymous cart id.
type IDGenerator interface {
	GenerateID(ctx context.Context) (string, error)
}

// Resolver decides which identity the current session has.
type Resolver struct {
	store          store.Store
	generator      IDGenerator
	allowAnonymous bool
	now            func() time.Time

	mu sync.Mutex // serializes lazy anonymous id generation
}

func NewResolver(st store.Store, generator IDGenerator, allowAnonymous bool) *Resolver {
	return &Resolver{
		store:          st,
		generator:      generator,
		allowAnonymous: allowAnonymous,
		now:            time.Now,
	}
}

// SetClock overrides the clock used for token expiry checks.
func (r *Resolver) SetClock(now func() time.Time) {
	r.now = now
}

// Current returns the active identity. A usable access token wins; otherwise
// an anonymous id is read or lazily generated and persisted.
func (r *Resolver) Current(ctx context.Context) (Identity, error) {
	claims, err := r.claims(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if claims != nil {
		return Identity{Kind: Authenticated, UserID: claims.UserID, Email: claims.Email}, nil
	}

	if !r.allowAnonymous {
		return Identity{}, ErrNoSession
	}

	cartID, err := r.anonymousID(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return Identity{Kind: Anonymous, CartID: cartID}, nil
}

// claims returns nil, nil when there is no usable token.
func (r *Resolver) claims(ctx context.Context) (*Claims, error) {
	raw, err := r.store.Get(ctx, KeyAccessToken)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read access token: %w", err)
	}

	claims, err := ParseAccessToken(string(raw), r.now())
	if err != nil {
		log.Printf("[Identity] Ignoring unusable access token: %v", err)
		return nil, nil
	}
	return claims, nil
}

func (r *Resolver) anonymousID(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := r.store.Get(ctx, KeyAnonymousCartID)
	if err == nil && len(raw) > 0 {
		return string(raw), nil
	}
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		return "", fmt.Errorf("failed to read anonymous cart id: %w", err)
	}

	cartID := ""
	if r.generator != nil {
		id, genErr := r.generator.GenerateID(ctx)
		if genErr == nil && id != "" {
			cartID = id
		} else {
			log.Printf("[Identity] degraded: cart service could not generate an anonymous cart id, using a local one: %v", genErr)
		}
	} else {
		log.Printf("[Identity] degraded: no cart id generator configured, using a local anonymous cart id")
	}
	if cartID == "" {
		cartID = uuid.New().String()
	}

	if err := r.store.Set(ctx, KeyAnonymousCartID, []byte(cartID)); err != nil {
		return "", fmt.Errorf("failed to persist anonymous cart id: %w", err)
	}
	log.Printf("[Identity] New anonymous cart %s", cartID)
	return cartID, nil
}

// AnonymousID returns the persisted anonymous cart id without generating one.
func (r *Resolver) AnonymousID(ctx context.Context) (string, bool, error) {
	raw, err := r.store.Get(ctx, KeyAnonymousCartID)
	if errors.Is(err, store.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read anonymous cart id: %w", err)
	}
	if len(raw) == 0 {
		return "", false, nil
	}
	return string(raw), true, nil
}

// DiscardAnonymous forgets the anonymous cart id so it is never re-derived.
func (r *Resolver) DiscardAnonymous(ctx context.Context) error {
	if err := r.store.Delete(ctx, KeyAnonymousCartID); err != nil {
		return fmt.Errorf("failed to discard anonymous cart id: %w", err)
	}
	return nil
}

// Login persists the access token marker and returns the authenticated identity.
func (r *Resolver) Login(ctx context.Context, accessToken string) (Identity, error) {
	claims, err := ParseAccessToken(accessToken, r.now())
	if err != nil {
		return Identity{}, err
	}
	if err := r.store.Set(ctx, KeyAccessToken, []byte(accessToken)); err != nil {
		return Identity{}, fmt.Errorf("failed to persist access token: %w", err)
	}
	return Identity{Kind: Authenticated, UserID: claims.UserID, Email: claims.Email}, nil
}

// Logout removes the access token and the anonymous cart id together, so the
// next Current call starts a fresh anonymous identity.
func (r *Resolver) Logout(ctx context.Context) error {
	var errs []error
	if err := r.store.Delete(ctx, KeyAccessToken); err != nil {
		errs = append(errs, err)
	}
	if err := r.store.Delete(ctx, KeyAnonymousCartID); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
