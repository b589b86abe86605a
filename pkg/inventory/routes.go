package inventory

import (
	"github.com/labstack/echo/v4"
	"github.com/shelfwise/circulation/pkg/auth"
	"github.com/shelfwise/circulation/pkg/binder"
	"github.com/shelfwise/circulation/pkg/models"
)

func RegisterRoutes(e *echo.Echo, ledger *Ledger, authMiddleware *auth.Middleware) {
	h := &handler{ledger: ledger}

	e.GET("/books/:id/availability", h.availability,
		authMiddleware.Authenticate,
		authMiddleware.RequirePermission(models.ResourceBooks, models.OperationRead))
	e.POST("/inventory/reconcile", h.reconcile,
		binder.AllowEmptyBody,
		authMiddleware.Authenticate,
		authMiddleware.RequirePermission(models.ResourceBooks, models.OperationWrite))
}
