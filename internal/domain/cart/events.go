package cart

import (
	"encoding/json"
	"time"
)

const (
	EventItemAdded     = "ItemAddedToCart"
	EventItemUpdated   = "CartItemUpdated"
	EventItemRemoved   = "ItemRemovedFromCart"
	EventCartCleared   = "CartCleared"
	EventCartMerged    = "AnonymousCartMerged"
	EventOrderCheckout = "OrderCheckedOut"
)

// Event is the envelope published for every settled cart mutation.
type Event struct {
	ID        string          `json:"id"`
	CartKey   string          `json:"cart_key"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  uint64          `json:"sequence"`
}

type ItemAddedToCart struct {
	CartKey      string    `json:"cart_key"`
	RestaurantID string    `json:"restaurant_id"`
	MealID       string    `json:"meal_id"`
	Quantity     int       `json:"quantity"`
	AddedAt      time.Time `json:"added_at"`
}

type CartItemUpdated struct {
	CartKey   string     `json:"cart_key"`
	MealID    string     `json:"meal_id"`
	Update    ItemUpdate `json:"update"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type ItemRemovedFromCart struct {
	CartKey   string    `json:"cart_key"`
	MealID    string    `json:"meal_id"`
	RemovedAt time.Time `json:"removed_at"`
}

type CartCleared struct {
	CartKey   string    `json:"cart_key"`
	ClearedAt time.Time `json:"cleared_at"`
}

type AnonymousCartMerged struct {
	AnonymousCartID   string        `json:"anonymous_cart_id"`
	UserID            string        `json:"user_id"`
	Strategy          MergeStrategy `json:"strategy"`
	MergedItemsCount  int           `json:"merged_items_count"`
	ConflictsResolved int           `json:"conflicts_resolved"`
	MergedAt          time.Time     `json:"merged_at"`
}

type OrderCheckedOut struct {
	UserID    string     `json:"user_id"`
	Email     string     `json:"email,omitempty"`
	Order     Order      `json:"order"`
	Lines     []CartItem `json:"lines"`
	CheckedAt time.Time  `json:"checked_at"`
}
