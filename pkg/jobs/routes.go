package jobs

import (
	"github.com/labstack/echo/v4"
	"github.com/shelfwise/circulation/pkg/auth"
	"github.com/shelfwise/circulation/pkg/models"
)

// RegisterRoutesWithGroup registers job routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, jobService *Service, authMiddleware *auth.Middleware) {
	h := &handler{
		jobService: jobService,
	}

	g.GET("", h.list, authMiddleware.RequirePermission(models.ResourceJobs, models.OperationRead))
	g.GET("/:id", h.retrieve, authMiddleware.RequirePermission(models.ResourceJobs, models.OperationRead))
	g.POST("", h.create, authMiddleware.RequirePermission(models.ResourceJobs, models.OperationWrite))
}
