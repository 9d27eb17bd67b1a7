package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// Settlement is implemented by *service.Settler.
type Settlement interface {
	Settle(ctx context.Context, orderID, operatorID uint64) (*service.SettlementResult, error)
	Invite(ctx context.Context, inv service.Invitation, operatorID uint64) ([]*service.SettlementResult, error)
}

// BulkSettlement is implemented by *service.BulkSettler.
type BulkSettlement interface {
	SettleBulk(ctx context.Context, orderIDs []uint64, operatorID uint64) (*service.BulkResult, error)
}

// OrderHandler serves the staff payment confirmation endpoints.
type OrderHandler struct {
	Settler Settlement
	Bulk    BulkSettlement
}

func NewOrderHandler(settler Settlement, bulk BulkSettlement) *OrderHandler {
	if settler == nil || bulk == nil {
		panic("nil dependency passed to NewOrderHandler")
	}
	return &OrderHandler{Settler: settler, Bulk: bulk}
}

// Confirm handles POST /v1/staff/orders/:id/confirm.  A skipped result
// (order not pending) is still 200; partial failures are listed under
// warnings.
func (h *OrderHandler) Confirm(c echo.Context) error {
	operatorID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	res, err := h.Settler.Settle(c.Request().Context(), orderID, operatorID)
	if err != nil {
		return writeError(c, err, "failed to confirm order")
	}
	return c.JSON(http.StatusOK, res)
}

type bulkConfirmRequest struct {
	OrderIDs []uint64 `json:"order_ids"`
}

// ConfirmBulk handles POST /v1/staff/orders/confirm-bulk.
func (h *OrderHandler) ConfirmBulk(c echo.Context) error {
	operatorID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req bulkConfirmRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json"})
	}
	if len(req.OrderIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_ids is required"})
	}
	res, err := h.Bulk.SettleBulk(c.Request().Context(), req.OrderIDs, operatorID)
	if err != nil {
		return writeError(c, err, "failed to confirm orders")
	}
	return c.JSON(http.StatusOK, res)
}

// Invite handles POST /v1/staff/invitations.  Results of guests already
// processed are returned even when a later guest fails.
func (h *OrderHandler) Invite(c echo.Context) error {
	operatorID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var inv service.Invitation
	if err := c.Bind(&inv); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json"})
	}
	results, err := h.Settler.Invite(c.Request().Context(), inv, operatorID)
	if err != nil && len(results) == 0 {
		return writeError(c, err, "failed to issue invitations")
	}
	if err != nil {
		// The orders already written stay; the caller must not retry
		// those guests.
		status, msg := errorStatus(err, "failed to issue invitations")
		c.Logger().Warnf("invitation stopped after %d guests: %v", len(results), err)
		return c.JSON(status, echo.Map{"error": msg, "items": results, "count": len(results)})
	}
	return c.JSON(http.StatusCreated, echo.Map{"items": results, "count": len(results)})
}
