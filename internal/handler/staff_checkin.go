package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// Gate is implemented by *service.CheckIn.
type Gate interface {
	Lookup(ctx context.Context, cred string, eventID uint64) (*service.LookupResult, error)
	Redeem(ctx context.Context, cred string, staffID uint64) (*service.RedeemResult, error)
	Disable(ctx context.Context, cred string) error
	Enable(ctx context.Context, cred string) error
}

// CheckInHandler serves the door endpoints.  Outcomes such as
// ALREADY_USED are answers, not errors, and come back as 200.
type CheckInHandler struct {
	Gate Gate
}

func NewCheckInHandler(g Gate) *CheckInHandler {
	if g == nil {
		panic("nil gate passed to NewCheckInHandler")
	}
	return &CheckInHandler{Gate: g}
}

func credentialParam(c echo.Context) string {
	return strings.TrimSpace(c.Param("credential"))
}

// Lookup handles GET /v1/staff/events/:event_id/tickets/:credential.
func (h *CheckInHandler) Lookup(c echo.Context) error {
	eventID, ok := parseIDParam(c, "event_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	res, err := h.Gate.Lookup(c.Request().Context(), credentialParam(c), eventID)
	if err != nil {
		return writeError(c, err, "failed to look up ticket")
	}
	return c.JSON(http.StatusOK, res)
}

// Redeem handles POST /v1/staff/tickets/:credential/redeem.
func (h *CheckInHandler) Redeem(c echo.Context) error {
	staffID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	res, err := h.Gate.Redeem(c.Request().Context(), credentialParam(c), staffID)
	if err != nil {
		return writeError(c, err, "failed to redeem ticket")
	}
	return c.JSON(http.StatusOK, res)
}

// Disable handles POST /v1/staff/tickets/:credential/disable.
func (h *CheckInHandler) Disable(c echo.Context) error {
	if err := h.Gate.Disable(c.Request().Context(), credentialParam(c)); err != nil {
		return writeError(c, err, "failed to disable ticket")
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "disabled"})
}

// Enable handles POST /v1/staff/tickets/:credential/enable.
func (h *CheckInHandler) Enable(c echo.Context) error {
	if err := h.Gate.Enable(c.Request().Context(), credentialParam(c)); err != nil {
		return writeError(c, err, "failed to enable ticket")
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "active"})
}
