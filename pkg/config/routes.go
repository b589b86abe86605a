package config

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutesWithAuth registers the lending policy route behind the given
// authentication middleware.
func RegisterRoutesWithAuth(e *echo.Echo, cfg *Config, authenticate echo.MiddlewareFunc) {
	h := &handler{configService: NewService(cfg)}

	configGroup := e.Group("/config")
	configGroup.Use(authenticate)
	configGroup.GET("/policy", h.retrieve)
}
