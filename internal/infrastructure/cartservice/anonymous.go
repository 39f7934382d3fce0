package cartservice

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/example/food-cart/internal/domain/cart"
)

const anonymousBase = "/carts/anonymous"

// MaxExtendDays is the largest expiry extension the cart service accepts.
const MaxExtendDays = 365

// AnonymousClient talks to the anonymous cart endpoints. It holds no state;
// every call is scoped by the cart id it is given.
type AnonymousClient struct {
	client *Client
}

func NewAnonymousClient(client *Client) *AnonymousClient {
	return &AnonymousClient{client: client}
}

// GenerateID asks the service for a fresh anonymous cart id.
func (a *AnonymousClient) GenerateID(ctx context.Context) (string, error) {
	var resp generateIDResponse
	if err := a.client.do(ctx, http.MethodPost, anonymousBase+"/generate-id", nil, nil, &resp); err != nil {
		return "", fmt.Errorf("failed to generate cart id: %w", err)
	}
	if resp.CartID == "" {
		return "", errors.New("failed to generate cart id: empty cart_id in response")
	}
	return resp.CartID, nil
}

// Get returns the cart, or an empty cart when the id is unknown or expired.
func (a *AnonymousClient) Get(ctx context.Context, cartID string) (*cart.Cart, error) {
	var resp anonymousCart
	err := a.client.do(ctx, http.MethodGet, anonymousBase+"/"+url.PathEscape(cartID), nil, nil, &resp)
	if errors.Is(err, cart.ErrCartNotFound) {
		empty := cart.NewEmpty()
		empty.CartID = cartID
		return empty, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get anonymous cart: %w", err)
	}
	return resp.toCart(), nil
}

func (a *AnonymousClient) Add(ctx context.Context, cartID string, req cart.AddRequest) (*cart.Cart, error) {
	body := anonymousAddRequest{
		CartID:       cartID,
		RestaurantID: req.RestaurantID,
		MealID:       req.MealID,
		Quantity:     req.Quantity,
		Note:         optional(req.Note),
		ScheduleDate: req.ScheduleDate,
	}
	if body.Quantity == 0 {
		body.Quantity = 1
	}

	var resp anonymousCart
	if err := a.client.do(ctx, http.MethodPost, anonymousBase+"/add", nil, body, &resp); err != nil {
		return nil, fmt.Errorf("failed to add to anonymous cart: %w", err)
	}
	return resp.toCart(), nil
}

func (a *AnonymousClient) Update(ctx context.Context, cartID, mealID string, upd cart.ItemUpdate) (*cart.Cart, error) {
	body := itemPatch{
		Quantity:     upd.Quantity,
		Note:         upd.Note,
		ScheduleDate: upd.ScheduleDate,
	}

	var resp anonymousCart
	if err := a.client.do(ctx, http.MethodPatch, itemPath(cartID, mealID), nil, body, &resp); err != nil {
		return nil, fmt.Errorf("failed to update anonymous cart item: %w", err)
	}
	return resp.toCart(), nil
}

func (a *AnonymousClient) Remove(ctx context.Context, cartID, mealID string) (*cart.Cart, error) {
	var resp anonymousCart
	if err := a.client.do(ctx, http.MethodDelete, itemPath(cartID, mealID), nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to remove anonymous cart item: %w", err)
	}
	return resp.toCart(), nil
}

// Clear empties the cart. A cart the service no longer knows is already empty.
func (a *AnonymousClient) Clear(ctx context.Context, cartID string) (*cart.Cart, error) {
	var resp anonymousCart
	err := a.client.do(ctx, http.MethodDelete, anonymousBase+"/"+url.PathEscape(cartID)+"/clear", nil, nil, &resp)
	if errors.Is(err, cart.ErrCartNotFound) {
		empty := cart.NewEmpty()
		empty.CartID = cartID
		return empty, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to clear anonymous cart: %w", err)
	}
	return resp.toCart(), nil
}

// Validate never fails; any error reads as a cart that does not exist.
func (a *AnonymousClient) Validate(ctx context.Context, cartID string) cart.Validation {
	var resp validationResponse
	if err := a.client.do(ctx, http.MethodGet, anonymousBase+"/"+url.PathEscape(cartID)+"/validate", nil, nil, &resp); err != nil {
		log.Printf("[CartService] Failed to validate anonymous cart %s: %v", cartID, err)
		return cart.Validation{CartID: cartID}
	}
	return cart.Validation{
		CartID:       cartID,
		Exists:       resp.Exists,
		IsValid:      resp.IsValid,
		ItemCount:    resp.ItemCount,
		RestaurantID: deref(resp.RestaurantID),
		ExpiresAt:    resp.ExpiresAt.ptr(),
	}
}

// Merge passes strategy through unchanged; conflict resolution is the service's job.
func (a *AnonymousClient) Merge(ctx context.Context, cartID, userID string, strategy cart.MergeStrategy) (cart.MergeResult, error) {
	if strategy == "" {
		strategy = cart.StrategyAddQuantities
	}
	body := mergeRequest{
		AnonymousCartID: cartID,
		UserID:          userID,
		MergeStrategy:   strategy,
	}

	var resp mergeResponse
	if err := a.client.do(ctx, http.MethodPost, anonymousBase+"/merge", nil, body, &resp); err != nil {
		return cart.MergeResult{}, fmt.Errorf("failed to merge anonymous cart: %w", err)
	}
	return cart.MergeResult{
		MergedItemsCount:  resp.MergedItemsCount,
		ConflictsResolved: resp.ConflictsResolved,
		Message:           resp.Message,
	}, nil
}

// ExtendExpiry is best effort and reports whether the service accepted it.
// days is clamped to [1, MaxExtendDays].
func (a *AnonymousClient) ExtendExpiry(ctx context.Context, cartID string, days int) bool {
	if days < 1 {
		days = cart.DefaultExtendDays
	}
	if days > MaxExtendDays {
		days = MaxExtendDays
	}
	query := url.Values{"days": []string{strconv.Itoa(days)}}
	if err := a.client.do(ctx, http.MethodPost, anonymousBase+"/"+url.PathEscape(cartID)+"/extend", query, nil, nil); err != nil {
		log.Printf("[CartService] Failed to extend anonymous cart %s: %v", cartID, err)
		return false
	}
	return true
}

func itemPath(cartID, mealID string) string {
	return anonymousBase + "/" + url.PathEscape(cartID) + "/items/" + url.PathEscape(mealID)
}
