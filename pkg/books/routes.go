package books

import (
	"github.com/labstack/echo/v4"
	"github.com/shelfwise/circulation/pkg/auth"
	"github.com/shelfwise/circulation/pkg/models"
)

// RegisterRoutesWithGroup registers book routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, bookService *Service, authMiddleware *auth.Middleware) {
	h := &handler{bookService: bookService}

	read := authMiddleware.RequirePermission(models.ResourceBooks, models.OperationRead)
	write := authMiddleware.RequirePermission(models.ResourceBooks, models.OperationWrite)

	g.GET("", h.list, read)
	g.GET("/:id", h.retrieve, read)
	g.POST("", h.create, write)
	g.POST("/:id", h.update, write)
	g.DELETE("/:id", h.delete, write)
}
