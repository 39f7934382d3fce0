package cartservice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/example/food-cart/internal/domain/cart"
)

// UserClient talks to the user cart endpoints, scoped by user id.
//
// The user endpoints work on single rows and their PATCH overwrites every
// field, so Add and Update read the cart first and send complete values.
type UserClient struct {
	client *Client
}

func NewUserClient(client *Client) *UserClient {
	return &UserClient{client: client}
}

func userQuery(userID string) url.Values {
	return url.Values{"user_id": []string{userID}}
}

func (u *UserClient) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	var items []userItem
	if err := u.client.do(ctx, http.MethodGet, "/carts/get", userQuery(userID), nil, &items); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return userItemsToCart(userID, nil), nil
		}
		return nil, fmt.Errorf("failed to get user cart: %w", err)
	}
	return userItemsToCart(userID, items), nil
}

// Add inserts the meal or, when it is already in the cart, raises its quantity.
// The service does not enforce the one restaurant rule for user carts, so it
// is checked here.
func (u *UserClient) Add(ctx context.Context, userID string, req cart.AddRequest) (*cart.Cart, error) {
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}

	current, err := u.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current.HasItemsFromDifferentRestaurant(req.RestaurantID) {
		return nil, cart.ErrRestaurantConflict
	}

	if existing, ok := current.Items[req.MealID]; ok {
		existing.Quantity += quantity
		if req.Note != "" {
			existing.Note = req.Note
		}
		if req.ScheduleDate != nil {
			existing.ScheduleDate = req.ScheduleDate
		}
		if err := u.patch(ctx, userID, existing); err != nil {
			return nil, err
		}
		return u.Get(ctx, userID)
	}

	body := userAddRequest{
		UserID:       userID,
		RestaurantID: req.RestaurantID,
		MealID:       req.MealID,
		Quantity:     quantity,
		Note:         optional(req.Note),
		ScheduleDate: req.ScheduleDate,
	}
	if err := u.client.do(ctx, http.MethodPost, "/carts/add", nil, body, nil); err != nil {
		return nil, fmt.Errorf("failed to add to user cart: %w", err)
	}
	return u.Get(ctx, userID)
}

// Update applies the partial update on top of the stored line.
func (u *UserClient) Update(ctx context.Context, userID, mealID string, upd cart.ItemUpdate) (*cart.Cart, error) {
	current, err := u.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, ok := current.Items[mealID]
	if !ok {
		return nil, fmt.Errorf("failed to update user cart item %s: %w", mealID, cart.ErrItemNotFound)
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

	if err := u.patch(ctx, userID, item); err != nil {
		return nil, err
	}
	return u.Get(ctx, userID)
}

func (u *UserClient) patch(ctx context.Context, userID string, item cart.CartItem) error {
	quantity := item.Quantity
	note := item.Note
	body := itemPatch{
		MealID:       item.MealID,
		Quantity:     &quantity,
		Note:         &note,
		ScheduleDate: item.ScheduleDate,
	}
	path := "/carts/update/" + url.PathEscape(item.MealID)
	if err := u.client.do(ctx, http.MethodPatch, path, userQuery(userID), body, nil); err != nil {
		return fmt.Errorf("failed to update user cart item: %w", err)
	}
	return nil
}

func (u *UserClient) Remove(ctx context.Context, userID, mealID string) (*cart.Cart, error) {
	path := "/carts/remove/" + url.PathEscape(mealID)
	if err := u.client.do(ctx, http.MethodDelete, path, userQuery(userID), nil, nil); err != nil {
		return nil, fmt.Errorf("failed to remove user cart item: %w", err)
	}
	return u.Get(ctx, userID)
}

func (u *UserClient) Clear(ctx context.Context, userID string) (*cart.Cart, error) {
	if err := u.client.do(ctx, http.MethodDelete, "/carts/clear", userQuery(userID), nil, nil); err != nil {
		return nil, fmt.Errorf("failed to clear user cart: %w", err)
	}
	return userItemsToCart(userID, nil), nil
}

func (u *UserClient) Checkout(ctx context.Context, req cart.OrderRequest) (*cart.Order, error) {
	var resp orderResponse
	if err := u.client.do(ctx, http.MethodPost, "/carts/checkout", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to checkout: %w", err)
	}
	order := resp.toOrder()
	return &order, nil
}

func (u *UserClient) Orders(ctx context.Context, userID string) ([]cart.Order, error) {
	var resp []orderResponse
	if err := u.client.do(ctx, http.MethodGet, "/carts/orders", userQuery(userID), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	orders := make([]cart.Order, 0, len(resp))
	for _, o := range resp {
		orders = append(orders, o.toOrder())
	}
	return orders, nil
}
