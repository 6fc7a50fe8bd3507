package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouterConfig collects the handlers served by NewRouter. Nil handlers leave
// their routes unregistered.
type RouterConfig struct {
	Auth      *AuthHandler
	Bookings  *BookingHandler
	Resources *ResourceHandler
	Users     *UserHandler
	Sessions  SessionValidator
	Metrics   http.Handler
	Logger    *slog.Logger
}

// NewRouter builds the gin engine with logging, recovery and session middleware.
func NewRouter(cfg RouterConfig) *gin.Engine {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(RequestLogger(cfg.Logger), Recovery(cfg.Logger))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	authed := engine.Group("/")
	authed.Use(RequireSession(cfg.Sessions, cfg.Logger))

	if cfg.Auth != nil {
		engine.POST("/auth/login", cfg.Auth.Login)
		engine.POST("/auth/logout", cfg.Auth.Logout)
		engine.POST("/auth/register", cfg.Auth.Register)
		authed.GET("/auth/me", cfg.Auth.Me)
	}

	if cfg.Bookings != nil {
		bookings := authed.Group("/bookings")
		bookings.GET("", cfg.Bookings.List)
		bookings.POST("", cfg.Bookings.Create)
		bookings.GET("/availability", cfg.Bookings.Availability)
		bookings.GET("/user/:userId", cfg.Bookings.ListForUser)
		bookings.GET("/:id", cfg.Bookings.Get)
		bookings.PUT("/:id/cancel", cfg.Bookings.Cancel)
		bookings.PUT("/:id/approve", cfg.Bookings.Approve)
	}

	if cfg.Resources != nil {
		resources := authed.Group("/resources")
		resources.GET("", cfg.Resources.List)
		resources.POST("", cfg.Resources.Create)
		resources.GET("/:id", cfg.Resources.Get)
		resources.PUT("/:id", cfg.Resources.Update)
		resources.DELETE("/:id", cfg.Resources.Delete)
		resources.PUT("/:id/status", cfg.Resources.SetStatus)
	}

	if cfg.Users != nil {
		users := authed.Group("/users")
		users.GET("", cfg.Users.List)
		users.GET("/:id", cfg.Users.Get)
		users.PUT("/:id/role", cfg.Users.SetRole)
		users.PUT("/:id/capabilities", cfg.Users.SetCapabilities)
		users.PUT("/:id/deactivate", cfg.Users.Deactivate)
		users.PUT("/:id/reactivate", cfg.Users.Reactivate)
	}

	return engine
}
