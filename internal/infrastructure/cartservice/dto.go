package cartservice

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/food-cart/internal/domain/cart"
	"github.com/shopspring/decimal"
)

// apiTime accepts RFC 3339 timestamps as well as the zone-less ISO form the
// cart service emits, which is read as UTC.
type apiTime struct {
	time.Time
}

var apiTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *apiTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range apiTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t *apiTime) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

type generateIDResponse struct {
	CartID  string `json:"cart_id"`
	Message string `json:"message"`
}

type anonymousAddRequest struct {
	CartID       string     `json:"cart_id"`
	RestaurantID string     `json:"restaurant_id"`
	MealID       string     `json:"meal_id"`
	Quantity     int        `json:"quantity"`
	Note         *string    `json:"note"`
	ScheduleDate *time.Time `json:"schedule_date"`
}

type anonymousItem struct {
	CartID       string   `json:"cart_id"`
	RestaurantID string   `json:"restaurant_id"`
	MealID       string   `json:"meal_id"`
	Quantity     int      `json:"quantity"`
	Note         *string  `json:"note"`
	ScheduleDate *apiTime `json:"schedule_date"`
	CreatedAt    *apiTime `json:"created_at"`
}

type anonymousCart struct {
	CartID       string          `json:"cart_id"`
	RestaurantID *string         `json:"restaurant_id"`
	Items        []anonymousItem `json:"items"`
	ItemCount    int             `json:"item_count"`
	ExpiresAt    *apiTime        `json:"expires_at"`
	CreatedAt    *apiTime        `json:"created_at"`
	UpdatedAt    *apiTime        `json:"updated_at"`
}

func (a anonymousCart) toCart() *cart.Cart {
	c := cart.NewEmpty()
	c.CartID = a.CartID
	if a.RestaurantID != nil {
		c.RestaurantID = *a.RestaurantID
	}
	c.ExpiresAt = a.ExpiresAt.ptr()
	for _, item := range a.Items {
		c.Items[item.MealID] = cart.CartItem{
			MealID:       item.MealID,
			RestaurantID: item.RestaurantID,
			Quantity:     item.Quantity,
			Note:         deref(item.Note),
			ScheduleDate: item.ScheduleDate.ptr(),
		}
	}
	c.Normalize()
	return c
}

// itemPatch is the PATCH body; absent fields are left unchanged server side.
type itemPatch struct {
	MealID       string     `json:"meal_id,omitempty"`
	Quantity     *int       `json:"quantity,omitempty"`
	Note         *string    `json:"note,omitempty"`
	ScheduleDate *time.Time `json:"schedule_date,omitempty"`
}

type validationResponse struct {
	CartID       string   `json:"cart_id"`
	IsValid      bool     `json:"is_valid"`
	Exists       bool     `json:"exists"`
	ItemCount    int      `json:"item_count"`
	RestaurantID *string  `json:"restaurant_id"`
	ExpiresAt    *apiTime `json:"expires_at"`
}

type mergeRequest struct {
	AnonymousCartID string             `json:"anonymous_cart_id"`
	UserID          string             `json:"user_id"`
	MergeStrategy   cart.MergeStrategy `json:"merge_strategy"`
}

type mergeResponse struct {
	Message           string            `json:"message"`
	UserCartItems     []json.RawMessage `json:"user_cart_items"`
	MergedItemsCount  int               `json:"merged_items_count"`
	ConflictsResolved int               `json:"conflicts_resolved"`
}

type userAddRequest struct {
	UserID       string     `json:"user_id"`
	RestaurantID string     `json:"restaurant_id"`
	MealID       string     `json:"meal_id"`
	Quantity     int        `json:"quantity"`
	Note         *string    `json:"note"`
	ScheduleDate *time.Time `json:"schedule_date"`
}

type userItem struct {
	ID           int64    `json:"id"`
	UserID       string   `json:"user_id"`
	RestaurantID string   `json:"restaurant_id"`
	MealID       string   `json:"meal_id"`
	Quantity     int      `json:"quantity"`
	Note         *string  `json:"note"`
	ScheduleDate *apiTime `json:"schedule_date"`
	CreatedAt    *apiTime `json:"created_at"`
}

func userItemsToCart(userID string, items []userItem) *cart.Cart {
	c := cart.NewEmpty()
	c.UserID = userID
	for _, item := range items {
		existing, ok := c.Items[item.MealID]
		if ok {
			// Older rows for the same meal fold into one line.
			existing.Quantity += item.Quantity
			c.Items[item.MealID] = existing
			continue
		}
		c.Items[item.MealID] = cart.CartItem{
			MealID:       item.MealID,
			RestaurantID: item.RestaurantID,
			Quantity:     item.Quantity,
			Note:         deref(item.Note),
			ScheduleDate: item.ScheduleDate.ptr(),
		}
	}
	c.Normalize()
	return c
}

type orderResponse struct {
	ID            int64              `json:"id"`
	UserID        string             `json:"user_id"`
	RestaurantID  string             `json:"restaurant_id"`
	Items         []cart.OrderItem   `json:"items"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	Discount      decimal.Decimal    `json:"discount"`
	Total         decimal.Decimal    `json:"total"`
	PaymentMethod cart.PaymentMethod `json:"payment_method"`
	CouponCode    *string            `json:"coupon_code"`
	CreatedAt     *apiTime           `json:"created_at"`
	Message       string             `json:"message"`
}

func (o orderResponse) toOrder() cart.Order {
	order := cart.Order{
		ID:            o.ID,
		UserID:        o.UserID,
		RestaurantID:  o.RestaurantID,
		Items:         o.Items,
		Subtotal:      o.Subtotal,
		Discount:      o.Discount,
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		CouponCode:    deref(o.CouponCode),
		Message:       o.Message,
	}
	if o.CreatedAt != nil {
		order.CreatedAt = o.CreatedAt.Time
	}
	return order
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
