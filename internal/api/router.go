package api

import (
	"net/http"
	"time"

	"github.com/example/food-cart/internal/api/middleware"
	"github.com/example/food-cart/internal/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	Sessions *session.Manager
	// WebDir, when set, serves a static storefront for unmatched paths.
	WebDir string
	// AllowedOrigins enables CORS for a storefront served from elsewhere.
	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.SessionHeader},
			ExposeHeaders:    []string{"Content-Length", middleware.SessionHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	cartHandlers := NewCartHandlers(cfg.Sessions)
	sessionHandlers := NewSessionHandlers()

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Session(cfg.Sessions))
	{
		cart := v1.Group("/cart")
		cart.GET("", cartHandlers.GetCart)
		cart.DELETE("", cartHandlers.ClearCart)
		cart.POST("/items", cartHandlers.AddItem)
		cart.POST("/items/replace", cartHandlers.ReplaceCart)
		cart.PATCH("/items/:meal_id", cartHandlers.UpdateItem)
		cart.DELETE("/items/:meal_id", cartHandlers.RemoveItem)
		cart.POST("/extend", cartHandlers.ExtendExpiry)

		v1.POST("/checkout", cartHandlers.Checkout)
		v1.GET("/orders", cartHandlers.ListOrders)

		sess := v1.Group("/session")
		sess.GET("", sessionHandlers.Current)
		sess.POST("/login", sessionHandlers.Login)
		sess.POST("/logout", sessionHandlers.Logout)
	}

	if cfg.WebDir != "" {
		fs := http.FileServer(http.Dir(cfg.WebDir))
		r.NoRoute(gin.WrapH(fs))
	}

	return r
}
