package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
)

// RegisterStaff registers the payment confirmation and door endpoints
// under /v1/staff.  All routes require a valid JWT with the STAFF or ADMIN
// role; the operator id is taken from the token subject.  Redemption is
// rate limited per staff member when rdb is available.
func RegisterStaff(e *echo.Echo, o *handler.OrderHandler, ci *handler.CheckInHandler, jwtSecret string, rl config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group(
		"/v1/staff",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("STAFF", "ADMIN"),
	)

	// ---- Orders ----
	g.POST("/orders/:id/confirm", o.Confirm)
	g.POST("/orders/confirm-bulk", o.ConfirmBulk)
	g.POST("/invitations", o.Invite)

	// ---- Door ----
	g.GET("/events/:event_id/tickets/:credential", ci.Lookup)
	g.POST("/tickets/:credential/redeem", ci.Redeem, middleware.NewTokenBucket(rl, rdb))
	g.POST("/tickets/:credential/disable", ci.Disable)
	g.POST("/tickets/:credential/enable", ci.Enable)
}
