package loans

import (
	"github.com/labstack/echo/v4"
	"github.com/shelfwise/circulation/pkg/auth"
	"github.com/shelfwise/circulation/pkg/models"
)

// RegisterRoutesWithGroup registers loan routes on a group that already
// authenticates.
func RegisterRoutesWithGroup(g *echo.Group, loanService *Service, authMiddleware *auth.Middleware) {
	h := &handler{loanService: loanService}

	read := authMiddleware.RequirePermission(models.ResourceLoans, models.OperationRead)
	write := authMiddleware.RequirePermission(models.ResourceLoans, models.OperationWrite)

	g.GET("", h.list, read)
	g.GET("/:id", h.retrieve, read)
	g.POST("", h.create, write)
	g.POST("/:id/return", h.returnLoan, write)
	g.POST("/:id/renew", h.renew, write)
}
