package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// OrderPlacer is implemented by *service.Checkout.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error)
}

type CheckoutHandler struct {
	Checkout OrderPlacer
}

func NewCheckoutHandler(p OrderPlacer) *CheckoutHandler { return &CheckoutHandler{Checkout: p} }

type placeOrderRequest struct {
	Items       []service.CartLine `json:"items"`
	VoucherCode string             `json:"voucher_code"`
}

// PlaceOrder handles POST /v1/events/:id/orders for the authenticated
// customer.  A rejected voucher answers 422 with the decision so the shop
// can show the reason.
func (h *CheckoutHandler) PlaceOrder(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	eventID, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req placeOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json"})
	}
	res, err := h.Checkout.PlaceOrder(c.Request().Context(), service.CheckoutRequest{
		UserID:      userID,
		EventID:     eventID,
		Lines:       req.Items,
		VoucherCode: req.VoucherCode,
	})
	if errors.Is(err, service.ErrVoucherRejected) && res != nil && res.Decision != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "voucher rejected", "voucher": res.Decision})
	}
	if err != nil {
		return writeError(c, err, "failed to place order")
	}
	return c.JSON(http.StatusCreated, res)
}
