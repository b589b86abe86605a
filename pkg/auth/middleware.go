package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shelfwise/circulation/pkg/errcodes"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/shelfwise/circulation/pkg/policy"
)

const userKey = "user"

type Middleware struct {
	authService *Service
}

func NewMiddleware(authService *Service) *Middleware {
	return &Middleware{authService: authService}
}

// tokenFromRequest reads the session cookie, falling back to a bearer token
// for API clients.
func tokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// Authenticate validates the token and loads the user, who must still be
// active. Anything else is a 401.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := tokenFromRequest(c)
		if token == "" {
			return errcodes.Unauthorized("Authentication required")
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			return errcodes.Unauthorized("Invalid or expired token")
		}

		user, err := m.authService.GetUserByID(c.Request().Context(), claims.UserID)
		if err != nil {
			if errcodes.HasCode(err, "not_found") {
				return errcodes.Unauthorized("User not found or inactive")
			}
			return err
		}

		c.Set(userKey, user)

		return next(c)
	}
}

// RequirePermission must run after Authenticate.
func (m *Middleware) RequirePermission(resource, operation string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := c.Get(userKey).(*models.User)
			if !ok {
				return errcodes.Unauthorized("Authentication required")
			}

			if !user.HasPermission(resource, operation) {
				return errcodes.Forbidden("Trying to " + operation + " " + resource)
			}

			return next(c)
		}
	}
}

// UserFromContext returns the user Authenticate stored, or nil.
func UserFromContext(c echo.Context) *models.User {
	user, _ := c.Get(userKey).(*models.User)
	return user
}

// ActorFromContext returns the policy actor for the authenticated user.
func ActorFromContext(c echo.Context) (policy.Actor, error) {
	user := UserFromContext(c)
	if user == nil {
		return policy.Actor{}, errcodes.Unauthorized("Authentication required")
	}
	return user.Actor(), nil
}
