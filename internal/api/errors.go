package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/example/food-cart/internal/api/middleware"
	"github.com/example/food-cart/internal/domain/cart"
	"github.com/gin-gonic/gin"
)

// respondCartError maps a container error onto a status and the
// {error, type} body. Different-restaurant and login-required errors also
// return the pending item so the client can replay it.
func respondCartError(c *gin.Context, err error) {
	kind := cart.KindOf(err)
	body := gin.H{"error": err.Error(), "type": kind.String()}
	if pending, ok := cart.PendingItem(err); ok {
		body["pending_item"] = pending
	}

	status := statusFor(kind, err)
	if status >= http.StatusInternalServerError {
		log.Printf("[API] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, body)
}

func statusFor(kind cart.ErrorKind, err error) int {
	switch kind {
	case cart.KindDifferentRestaurant:
		return http.StatusConflict
	case cart.KindLoginRequired:
		return http.StatusUnauthorized
	}

	switch {
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidMeal),
		errors.Is(err, cart.ErrInvalidRestaurant),
		errors.Is(err, cart.ErrInvalidPaymentMethod),
		errors.Is(err, cart.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, cart.ErrItemNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func badRequest(c *gin.Context, message string) {
	middleware.RespondError(c, http.StatusBadRequest, cart.KindGeneral.String(), message)
}
