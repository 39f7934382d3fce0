package cart

import (
	"errors"
	"fmt"

	"github.com/example/food-cart/internal/identity"
)

var (
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrInvalidMeal          = errors.New("meal_id is required")
	ErrInvalidRestaurant    = errors.New("restaurant_id is required")
	ErrInvalidPaymentMethod = errors.New("payment method must be one of credit_card, cash, pos")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrItemNotFound         = errors.New("item not in cart")

	// Returned by backing clients.
	ErrRestaurantConflict = errors.New("cart already has items from a different restaurant")
	ErrCartNotFound       = errors.New("cart not found")

	ErrNoSession = identity.ErrNoSession
)

type ErrorKind int

const (
	KindGeneral ErrorKind = iota
	KindDifferentRestaurant
	KindLoginRequired
)

func (k ErrorKind) String() string {
	switch k {
	case KindDifferentRestaurant:
		return "different_restaurant"
	case KindLoginRequired:
		return "login_required"
	default:
		return "general"
	}
}

// Error is what the container surfaces to callers. PendingItem is set for
// KindDifferentRestaurant (and for KindLoginRequired on add) so the attempted
// operation can be replayed without re-deriving it.
type Error struct {
	Kind        ErrorKind
	Message     string
	PendingItem *AddRequest
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func differentRestaurant(pending AddRequest) *Error {
	return &Error{
		Kind:        KindDifferentRestaurant,
		Message:     "cart holds items from a different restaurant; clear it to add this meal",
		PendingItem: &pending,
		Err:         ErrRestaurantConflict,
	}
}

func loginRequired(pending *AddRequest) *Error {
	return &Error{
		Kind:        KindLoginRequired,
		Message:     "login is required for this cart operation",
		PendingItem: pending,
		Err:         ErrNoSession,
	}
}

func general(message string, err error) *Error {
	return &Error{Kind: KindGeneral, Message: message, Err: err}
}

// KindOf reports the kind of a container error; non-container errors are general.
func KindOf(err error) ErrorKind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return KindGeneral
}

func IsDifferentRestaurant(err error) bool {
	var cerr *Error
	return errors.As(err, &cerr) && cerr.Kind == KindDifferentRestaurant
}

func IsLoginRequired(err error) bool {
	var cerr *Error
	return errors.As(err, &cerr) && cerr.Kind == KindLoginRequired
}

// PendingItem extracts the replayable add request from a container error.
func PendingItem(err error) (AddRequest, bool) {
	var cerr *Error
	if errors.As(err, &cerr) && cerr.PendingItem != nil {
		return *cerr.PendingItem, true
	}
	return AddRequest{}, false
}
