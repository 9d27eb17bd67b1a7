// Package router registers the HTTP routes of the ticketing API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints:
// the health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterPublic registers guest endpoints.  Availability goes through the
// Redis response cache; rdb may be nil, which disables caching.
func RegisterPublic(e *echo.Echo, a *handler.AvailabilityHandler, v *handler.VoucherHandler, cacheCfg config.CacheConfig, rdb *redis.Client) {
	e.GET("/v1/events/:id/availability", a.Get, middleware.NewRedisCache(cacheCfg, rdb))
	e.POST("/v1/vouchers/validate", v.Validate)
}
