package categories

import (
	"github.com/labstack/echo/v4"
	"github.com/shelfwise/circulation/pkg/auth"
	"github.com/shelfwise/circulation/pkg/models"
)

func RegisterRoutesWithGroup(g *echo.Group, categoryService *Service, authMiddleware *auth.Middleware) {
	h := &handler{categoryService: categoryService}

	g.GET("", h.list, authMiddleware.RequirePermission(models.ResourceBooks, models.OperationRead))
	g.POST("", h.create, authMiddleware.RequirePermission(models.ResourceBooks, models.OperationWrite))
	g.DELETE("/:id", h.delete, authMiddleware.RequirePermission(models.ResourceBooks, models.OperationWrite))
}
