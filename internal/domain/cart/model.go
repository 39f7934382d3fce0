package cart

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultExtendDays is how far ExtendExpiry pushes an anonymous cart's expiry when no value is given.
const DefaultExtendDays = 30

type MergeStrategy string

const (
	StrategyAddQuantities MergeStrategy = "add_quantities"
	StrategyReplace       MergeStrategy = "replace"
)

type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentCash       PaymentMethod = "cash"
	PaymentPOS        PaymentMethod = "pos"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCreditCard, PaymentCash, PaymentPOS:
		return true
	}
	return false
}

// CartItem is one meal line. Display fields are copied from the meal catalog
// when the line is added so the cart renders without a catalog round trip.
type CartItem struct {
	MealID       string              `json:"meal_id"`
	RestaurantID string              `json:"restaurant_id"`
	Quantity     int                 `json:"quantity"`
	Note         string              `json:"note,omitempty"`
	ScheduleDate *time.Time          `json:"schedule_date,omitempty"`
	Name         string              `json:"name,omitempty"`
	Price        decimal.NullDecimal `json:"price"`
	ImageURL     string              `json:"image_url,omitempty"`
}

// Cart holds at most one restaurant's meals. RestaurantID is empty iff Items is empty.
type Cart struct {
	CartID       string              `json:"cart_id,omitempty"`
	UserID       string              `json:"user_id,omitempty"`
	RestaurantID string              `json:"restaurant_id"`
	Items        map[string]CartItem `json:"items"` // mealID -> item
	ItemCount    int                 `json:"item_count"`
	ExpiresAt    *time.Time          `json:"expires_at,omitempty"`
}

func NewEmpty() *Cart {
	return &Cart{Items: make(map[string]CartItem)}
}

// Clone returns a deep copy safe to mutate.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return NewEmpty()
	}
	out := *c
	out.Items = make(map[string]CartItem, len(c.Items))
	for id, item := range c.Items {
		if item.ScheduleDate != nil {
			t := *item.ScheduleDate
			item.ScheduleDate = &t
		}
		out.Items[id] = item
	}
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		out.ExpiresAt = &t
	}
	return &out
}

// Normalize drops non-positive lines and recomputes ItemCount and RestaurantID.
// RestaurantID is kept while some line still belongs to it; otherwise it is
// taken from the line with the lowest meal id.
func (c *Cart) Normalize() {
	if c.Items == nil {
		c.Items = make(map[string]CartItem)
	}
	count := 0
	keep := false
	first := ""
	for id, item := range c.Items {
		if item.Quantity <= 0 {
			delete(c.Items, id)
			continue
		}
		count += item.Quantity
		if item.RestaurantID == c.RestaurantID {
			keep = true
		}
		if first == "" || id < first {
			first = id
		}
	}
	c.ItemCount = count
	switch {
	case len(c.Items) == 0:
		c.RestaurantID = ""
	case !keep:
		c.RestaurantID = c.Items[first].RestaurantID
	}
}

// Mixed reports whether the cart holds lines from more than one restaurant.
func (c *Cart) Mixed() bool {
	return len(c.Restaurants()) > 1
}

// Restaurants returns the distinct restaurant ids of the lines, sorted.
func (c *Cart) Restaurants() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 1)
	for _, item := range c.Items {
		if _, ok := seen[item.RestaurantID]; ok {
			continue
		}
		seen[item.RestaurantID] = struct{}{}
		out = append(out, item.RestaurantID)
	}
	sort.Strings(out)
	return out
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Lines returns the items ordered by meal id.
func (c *Cart) Lines() []CartItem {
	lines := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, item)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].MealID < lines[j].MealID })
	return lines
}

// Subtotal sums price*quantity over lines whose price is known.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		if !item.Price.Valid {
			continue
		}
		total = total.Add(item.Price.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func (c *Cart) HasItemsFromRestaurant(restaurantID string) bool {
	if c == nil {
		return false
	}
	for _, item := range c.Items {
		if item.RestaurantID == restaurantID {
			return true
		}
	}
	return false
}

// HasItemsFromDifferentRestaurant reports whether any line belongs to a
// restaurant other than restaurantID.
func (c *Cart) HasItemsFromDifferentRestaurant(restaurantID string) bool {
	if c == nil {
		return false
	}
	for _, item := range c.Items {
		if item.RestaurantID != restaurantID {
			return true
		}
	}
	return false
}

// AddRequest is the intent to add a meal. It doubles as the pending item of a
// DifferentRestaurant error so the caller can replay it through ClearAndAdd.
type AddRequest struct {
	RestaurantID string              `json:"restaurant_id"`
	MealID       string              `json:"meal_id"`
	Quantity     int                 `json:"quantity"`
	Note         string              `json:"note,omitempty"`
	ScheduleDate *time.Time          `json:"schedule_date,omitempty"`
	Name         string              `json:"name,omitempty"`
	Price        decimal.NullDecimal `json:"price"`
	ImageURL     string              `json:"image_url,omitempty"`
}

func (r AddRequest) Validate() error {
	if r.MealID == "" {
		return ErrInvalidMeal
	}
	if r.RestaurantID == "" {
		return ErrInvalidRestaurant
	}
	if r.Quantity < 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// withDefaults fills the quantity default of 1.
func (r AddRequest) withDefaults() AddRequest {
	if r.Quantity == 0 {
		r.Quantity = 1
	}
	return r
}

// Item builds the cart line the request would produce on an empty cart.
func (r AddRequest) Item() CartItem {
	return CartItem{
		MealID:       r.MealID,
		RestaurantID: r.RestaurantID,
		Quantity:     r.Quantity,
		Note:         r.Note,
		ScheduleDate: r.ScheduleDate,
		Name:         r.Name,
		Price:        r.Price,
		ImageURL:     r.ImageURL,
	}
}

// ItemUpdate is a partial update; nil fields are left unchanged.
type ItemUpdate struct {
	Quantity     *int       `json:"quantity,omitempty"`
	Note         *string    `json:"note,omitempty"`
	ScheduleDate *time.Time `json:"schedule_date,omitempty"`
}

func (u ItemUpdate) IsZero() bool {
	return u.Quantity == nil && u.Note == nil && u.ScheduleDate == nil
}

func (u ItemUpdate) applyTo(item CartItem) CartItem {
	if u.Quantity != nil {
		item.Quantity = *u.Quantity
	}
	if u.Note != nil {
		item.Note = *u.Note
	}
	if u.ScheduleDate != nil {
		t := *u.ScheduleDate
		item.ScheduleDate = &t
	}
	return item
}

// Validation is the anonymous cart's dry-run health check.
type Validation struct {
	CartID       string     `json:"cart_id"`
	Exists       bool       `json:"exists"`
	IsValid      bool       `json:"is_valid"`
	ItemCount    int        `json:"item_count"`
	RestaurantID string     `json:"restaurant_id"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

type MergeResult struct {
	Merged            bool   `json:"merged"`
	MergedItemsCount  int    `json:"merged_items_count"`
	ConflictsResolved int    `json:"conflicts_resolved"`
	Message           string `json:"message,omitempty"`
	Err               error  `json:"-"`
}

type OrderItem struct {
	MealID   string `json:"meal_id"`
	Quantity int    `json:"quantity"`
	Note     string `json:"note,omitempty"`
}

type OrderRequest struct {
	UserID        string        `json:"user_id"`
	RestaurantID  string        `json:"restaurant_id"`
	Items         []OrderItem   `json:"items"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	CouponCode    string        `json:"coupon_code,omitempty"`
}

type Order struct {
	ID            int64           `json:"id"`
	UserID        string          `json:"user_id"`
	RestaurantID  string          `json:"restaurant_id"`
	Items         []OrderItem     `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	CouponCode    string          `json:"coupon_code,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Message       string          `json:"message,omitempty"`
}

type CheckoutRequest struct {
	PaymentMethod PaymentMethod `json:"payment_method"`
	CouponCode    string        `json:"coupon_code,omitempty"`
}

// MealInfo carries the catalog display fields of a meal.
type MealInfo struct {
	ID           string              `json:"id"`
	RestaurantID string              `json:"restaurant_id"`
	Name         string              `json:"name"`
	Description  string              `json:"description,omitempty"`
	Price        decimal.NullDecimal `json:"price"`
	ImageURL     string              `json:"image_url,omitempty"`
}
