package roles

import (
	"github.com/labstack/echo/v4"
	"github.com/shelfwise/circulation/pkg/auth"
	"github.com/shelfwise/circulation/pkg/models"
)

// RegisterRoutesWithGroup registers the read-only role routes. Roles are part
// of user management, so they need users:read.
func RegisterRoutesWithGroup(g *echo.Group, roleService *Service, authMiddleware *auth.Middleware) {
	h := &handler{roleService: roleService}

	g.GET("", h.list, authMiddleware.RequirePermission(models.ResourceUsers, models.OperationRead))
	g.GET("/:id", h.retrieve, authMiddleware.RequirePermission(models.ResourceUsers, models.OperationRead))
}
