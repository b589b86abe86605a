package reservations

import (
	"github.com/labstack/echo/v4"
	"github.com/shelfwise/circulation/pkg/auth"
	"github.com/shelfwise/circulation/pkg/binder"
	"github.com/shelfwise/circulation/pkg/models"
)

func RegisterRoutesWithGroup(g *echo.Group, reservationService *Service, authMiddleware *auth.Middleware) {
	h := &handler{reservationService: reservationService}

	read := authMiddleware.RequirePermission(models.ResourceReservations, models.OperationRead)
	write := authMiddleware.RequirePermission(models.ResourceReservations, models.OperationWrite)

	g.GET("", h.list, read)
	g.POST("/expire", h.expire, binder.AllowEmptyBody,
		authMiddleware.RequirePermission(models.ResourceJobs, models.OperationWrite))
	g.GET("/:id", h.retrieve, read)
	g.POST("", h.create, write)
	g.POST("/:id/cancel", h.cancel, write)
}
