package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/example/food-cart/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	SessionCookie = "cart_session"
	SessionHeader = "X-Cart-Session"

	sessionContextKey = "cart_session"
	sessionMaxAge     = 60 * 60 * 24 * 90
)

// RespondError writes the JSON error body shared by every endpoint.
func RespondError(c *gin.Context, status int, errType, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "type": errType})
}

// ExtractToken reads an access token from the access_token cookie or a
// Bearer Authorization header.
func ExtractToken(c *gin.Context) string {
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token
	}
	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// ExtractSessionID reads the session id from the header or the cookie.
// Ids that are not UUIDs are ignored.
func ExtractSessionID(c *gin.Context) string {
	candidates := []string{c.GetHeader(SessionHeader)}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		candidates = append(candidates, cookie)
	}
	for _, id := range candidates {
		if u, err := uuid.Parse(id); err == nil {
			return u.String()
		}
	}
	return ""
}

// Session attaches the caller's cart session, issuing a new id when the
// request carries none.
func Session(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ExtractSessionID(c)
		if id == "" {
			id = uuid.New().String()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, id, sessionMaxAge, "/", "", false, true)
		}
		c.Header(SessionHeader, id)

		s, err := manager.Get(c.Request.Context(), id)
		if err != nil {
			log.Printf("[API] Failed to open session %s: %v", id, err)
			RespondError(c, http.StatusInternalServerError, "general", "session unavailable")
			return
		}
		c.Set(sessionContextKey, s)
		c.Next()
	}
}

// GetSession returns the session attached by Session.
func GetSession(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*session.Session)
	return s, ok
}
