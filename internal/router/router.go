package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/slot-booking/internal/handler"
)

// RegisterRoutes registers the operational endpoints: the health check and
// the Prometheus scrape endpoint for gatherer.
func RegisterRoutes(e *echo.Echo, gatherer prometheus.Gatherer) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// RegisterPublic registers the unauthenticated endpoints.  cache wraps the
// slot list; limit guards registration intake.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache, limit echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.GET("/slots", p.ListSlots, cache)
	g.GET("/slots/:id", p.GetSlot)
	g.POST("/registrations", p.Register, limit)
}
