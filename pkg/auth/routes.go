package auth

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/uptrace/bun"
)

// Registrar creates accounts for people signing themselves up. The returned
// user must carry its role and permissions.
type Registrar interface {
	RegisterMember(ctx context.Context, username string, email *string, password string) (*models.User, error)
}

// RegisterRoutes registers the auth routes and returns the middleware the
// rest of the API authenticates with.
func RegisterRoutes(e *echo.Echo, db *bun.DB, jwtSecret string, sessionDuration time.Duration, registrar Registrar) *Middleware {
	authService := NewService(db, jwtSecret, sessionDuration)
	authMiddleware := NewMiddleware(authService)

	h := &handler{
		authService: authService,
		registrar:   registrar,
		cookieAge:   sessionDuration,
	}

	g := e.Group("/auth")
	g.POST("/login", h.login)
	g.POST("/logout", h.logout)
	g.GET("/status", h.status)
	g.POST("/setup", h.setup)
	g.POST("/register", h.register)
	g.GET("/me", h.me, authMiddleware.Authenticate)

	return authMiddleware
}
