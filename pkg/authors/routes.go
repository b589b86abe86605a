package authors

import (
	"github.com/labstack/echo/v4"
	"github.com/shelfwise/circulation/pkg/auth"
	"github.com/shelfwise/circulation/pkg/models"
)

func RegisterRoutesWithGroup(g *echo.Group, authorService *Service, authMiddleware *auth.Middleware) {
	h := &handler{authorService: authorService}

	read := authMiddleware.RequirePermission(models.ResourceBooks, models.OperationRead)
	write := authMiddleware.RequirePermission(models.ResourceBooks, models.OperationWrite)

	g.GET("", h.list, read)
	g.GET("/:id", h.retrieve, read)
	g.POST("", h.create, write)
	g.POST("/:id", h.update, write)
	g.DELETE("/:id", h.delete, write)
}
