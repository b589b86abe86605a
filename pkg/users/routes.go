package users

import (
	"github.com/labstack/echo/v4"
	"github.com/shelfwise/circulation/pkg/auth"
	"github.com/shelfwise/circulation/pkg/models"
)

// RegisterRoutesWithGroup registers user routes on a group that already
// authenticates.
func RegisterRoutesWithGroup(g *echo.Group, userService *Service, authMiddleware *auth.Middleware) {
	h := &handler{
		userService: userService,
	}

	g.GET("", h.list, authMiddleware.RequirePermission(models.ResourceUsers, models.OperationRead))
	g.GET("/:id", h.retrieve, authMiddleware.RequirePermission(models.ResourceUsers, models.OperationRead))

	g.POST("", h.create, authMiddleware.RequirePermission(models.ResourceUsers, models.OperationWrite))
	g.POST("/:id", h.update, authMiddleware.RequirePermission(models.ResourceUsers, models.OperationWrite))
	g.DELETE("/:id", h.deactivate, authMiddleware.RequirePermission(models.ResourceUsers, models.OperationWrite))

	// Borrowers can read their own summary and reset their own password.
	g.GET("/:id/summary", h.summary)
	g.POST("/:id/reset-password", h.resetPassword)
}
