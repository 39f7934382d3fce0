package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/example/food-cart/internal/api/middleware"
	"github.com/example/food-cart/internal/domain/cart"
	"github.com/example/food-cart/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type CartHandlers struct {
	sessions *session.Manager
}

func NewCartHandlers(sessions *session.Manager) *CartHandlers {
	return &CartHandlers{sessions: sessions}
}

// CartResponse is the wire shape of a cart: lines ordered by meal id plus
// the derived totals.
type CartResponse struct {
	CartID       string          `json:"cart_id,omitempty"`
	UserID       string          `json:"user_id,omitempty"`
	RestaurantID string          `json:"restaurant_id"`
	Items        []cart.CartItem `json:"items"`
	ItemCount    int             `json:"item_count"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
}

func newCartResponse(c *cart.Cart) CartResponse {
	if c == nil {
		c = cart.NewEmpty()
	}
	return CartResponse{
		CartID:       c.CartID,
		UserID:       c.UserID,
		RestaurantID: c.RestaurantID,
		Items:        c.Lines(),
		ItemCount:    c.ItemCount,
		Subtotal:     c.Subtotal(),
		ExpiresAt:    c.ExpiresAt,
	}
}

func currentSession(c *gin.Context) (*session.Session, bool) {
	s, ok := middleware.GetSession(c)
	if !ok {
		middleware.RespondError(c, http.StatusInternalServerError, cart.KindGeneral.String(), "session missing")
	}
	return s, ok
}

func (h *CartHandlers) GetCart(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	result, err := s.Container.Reload(c.Request.Context())
	if err != nil {
		respondCartError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(result))
}

func (h *CartHandlers) AddItem(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	var req cart.AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	result, err := s.Container.Add(c.Request.Context(), req)
	if err != nil {
		respondCartError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(result))
}

// ReplaceCart clears the cart and adds the meal, resolving a
// different-restaurant conflict in favour of the new meal.
func (h *CartHandlers) ReplaceCart(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	var req cart.AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	result, err := s.Container.ClearAndAdd(c.Request.Context(), req)
	if err != nil {
		respondCartError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(result))
}

func (h *CartHandlers) UpdateItem(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	var upd cart.ItemUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		badRequest(c, "invalid json")
		return
	}
	result, err := s.Container.Update(c.Request.Context(), c.Param("meal_id"), upd)
	if err != nil {
		respondCartError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(result))
}

func (h *CartHandlers) RemoveItem(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	result, err := s.Container.Remove(c.Request.Context(), c.Param("meal_id"))
	if err != nil {
		respondCartError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(result))
}

func (h *CartHandlers) ClearCart(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	result, err := s.Container.Clear(c.Request.Context())
	if err != nil {
		respondCartError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(result))
}

func (h *CartHandlers) ExtendExpiry(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	days := h.sessions.ExtendDays()
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "days must be a positive integer")
			return
		}
		days = n
	}
	extended := s.Container.ExtendExpiry(c.Request.Context(), days)
	c.JSON(http.StatusOK, gin.H{"extended": extended, "days": days})
}

func (h *CartHandlers) Checkout(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	var req cart.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	order, err := s.Container.Checkout(c.Request.Context(), req)
	if err != nil {
		respondCartError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *CartHandlers) ListOrders(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	orders, err := s.Container.Orders(c.Request.Context())
	if err != nil {
		respondCartError(c, err)
		return
	}
	if orders == nil {
		orders = []cart.Order{}
	}
	c.JSON(http.StatusOK, orders)
}
