package handler

import (
	"github.com/labstack/echo/v4"

	"gemini-proxy-go/internal/config"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// The proxy route accepts every method so that non-POST requests get the
// handler's own 405 body rather than the router's.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, proxy *ProxyHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	e.Any(cfg.Server.ProxyPath, proxy.Handle)
}
