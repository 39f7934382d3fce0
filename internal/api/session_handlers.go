package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/example/food-cart/internal/api/middleware"
	"github.com/example/food-cart/internal/domain/cart"
	"github.com/example/food-cart/internal/identity"
	"github.com/gin-gonic/gin"
)

// SessionHandlers switch a session between anonymous and authenticated.
type SessionHandlers struct{}

func NewSessionHandlers() *SessionHandlers {
	return &SessionHandlers{}
}

type LoginRequest struct {
	AccessToken string `json:"access_token"`
}

type IdentityResponse struct {
	Kind   string `json:"kind"`
	CartID string `json:"cart_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

type MergeResponse struct {
	Merged            bool   `json:"merged"`
	MergedItemsCount  int    `json:"merged_items_count"`
	ConflictsResolved int    `json:"conflicts_resolved"`
	Message           string `json:"message,omitempty"`
	Error             string `json:"error,omitempty"`
}

type LoginResponse struct {
	Identity IdentityResponse `json:"identity"`
	Merge    MergeResponse    `json:"merge"`
	Cart     CartResponse     `json:"cart"`
}

func newIdentityResponse(id identity.Identity) IdentityResponse {
	return IdentityResponse{
		Kind:   id.Kind.String(),
		CartID: id.CartID,
		UserID: id.UserID,
		Email:  id.Email,
	}
}

func newMergeResponse(r cart.MergeResult) MergeResponse {
	resp := MergeResponse{
		Merged:            r.Merged,
		MergedItemsCount:  r.MergedItemsCount,
		ConflictsResolved: r.ConflictsResolved,
		Message:           r.Message,
	}
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	return resp
}

func (h *SessionHandlers) Current(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	id, err := s.Container.Identity(c.Request.Context())
	if err != nil {
		respondCartError(c, err)
		return
	}
	c.JSON(http.StatusOK, newIdentityResponse(id))
}

// Login accepts the token in the body, falling back to the access_token
// cookie or a Bearer header. The anonymous cart is merged on success.
func (h *SessionHandlers) Login(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	var req LoginRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json")
			return
		}
	}
	if req.AccessToken == "" {
		req.AccessToken = middleware.ExtractToken(c)
	}
	if req.AccessToken == "" {
		badRequest(c, "access_token is required")
		return
	}

	id, result, err := s.Merger.Login(c.Request.Context(), req.AccessToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) || errors.Is(err, identity.ErrExpiredToken) {
			middleware.RespondError(c, http.StatusUnauthorized, cart.KindLoginRequired.String(), err.Error())
			return
		}
		log.Printf("[API] Login failed for session %s: %v", s.ID, err)
		middleware.RespondError(c, http.StatusInternalServerError, cart.KindGeneral.String(), "login failed")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Identity: newIdentityResponse(id),
		Merge:    newMergeResponse(result),
		Cart:     newCartResponse(s.Container.Cart()),
	})
}

func (h *SessionHandlers) Logout(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	if err := s.Container.Logout(c.Request.Context()); err != nil {
		log.Printf("[API] Logout for session %s was incomplete: %v", s.ID, err)
		middleware.RespondError(c, http.StatusInternalServerError, cart.KindGeneral.String(), "logout failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
