package mealservice

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/example/food-cart/internal/domain/cart"
	"github.com/shopspring/decimal"
)

const DefaultTTL = 5 * time.Minute

type meal struct {
	ID           string           `json:"id"`
	RestaurantID string           `json:"restaurant_id"`
	Name         string           `json:"name"`
	Description  *string          `json:"description"`
	IsAvailable  *bool            `json:"is_available"`
	Price        *decimal.Decimal `json:"price"`
	ImageURL     *string          `json:"image_url"`
}

func (m meal) info() cart.MealInfo {
	info := cart.MealInfo{
		ID:           m.ID,
		RestaurantID: m.RestaurantID,
		Name:         m.Name,
	}
	if m.Description != nil {
		info.Description = *m.Description
	}
	if m.Price != nil {
		info.Price = decimal.NewNullDecimal(*m.Price)
	}
	if m.ImageURL != nil {
		info.ImageURL = *m.ImageURL
	}
	return info
}

type menu struct {
	meals     map[string]cart.MealInfo
	fetchedAt time.Time
}

// Catalog reads restaurant menus from the meal service and caches them per
// restaurant for ttl.
type Catalog struct {
	baseURL    string
	httpClient *http.Client
	ttl        time.Duration
	now        func() time.Time

	mu    sync.Mutex
	menus map[string]menu
}

func NewCatalog(baseURL string, timeout, ttl time.Duration) *Catalog {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Catalog{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		ttl:        ttl,
		now:        time.Now,
		menus:      make(map[string]menu),
	}
}

// Lookup returns the display fields of a meal. Failures are logged and read
// as unknown meals.
func (c *Catalog) Lookup(ctx context.Context, restaurantID, mealID string) (cart.MealInfo, bool) {
	meals, err := c.Menu(ctx, restaurantID)
	if err != nil {
		log.Printf("[MealService] Failed to load menu of restaurant %s: %v", restaurantID, err)
		return cart.MealInfo{}, false
	}
	info, ok := meals[mealID]
	return info, ok
}

// Menu returns the meals of a restaurant keyed by meal id.
func (c *Catalog) Menu(ctx context.Context, restaurantID string) (map[string]cart.MealInfo, error) {
	c.mu.Lock()
	cached, ok := c.menus[restaurantID]
	c.mu.Unlock()
	if ok && c.now().Sub(cached.fetchedAt) < c.ttl {
		return cached.meals, nil
	}

	meals, err := c.fetch(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.menus[restaurantID] = menu{meals: meals, fetchedAt: c.now()}
	c.mu.Unlock()
	return meals, nil
}

func (c *Catalog) fetch(ctx context.Context, restaurantID string) (map[string]cart.MealInfo, error) {
	target := fmt.Sprintf("%s/meals/restaurant/%s", c.baseURL, url.PathEscape(restaurantID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var list []meal
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	meals := make(map[string]cart.MealInfo, len(list))
	for _, m := range list {
		if m.RestaurantID == "" {
			m.RestaurantID = restaurantID
		}
		meals[m.ID] = m.info()
	}
	return meals, nil
}
