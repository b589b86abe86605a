package stats

import (
	"github.com/labstack/echo/v4"
	"github.com/shelfwise/circulation/pkg/auth"
	"github.com/shelfwise/circulation/pkg/models"
)

func RegisterRoutesWithGroup(g *echo.Group, statsService *Service, authMiddleware *auth.Middleware) {
	h := &handler{statsService: statsService}

	read := authMiddleware.RequirePermission(models.ResourceStats, models.OperationRead)

	g.GET("", h.retrieve, read)
	g.GET("/report", h.report, read)
}
