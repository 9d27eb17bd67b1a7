package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/service"
)

// VoucherValidator is implemented by *service.VoucherService.
type VoucherValidator interface {
	Validate(ctx context.Context, code string, amount int64, eventID uint64) (service.Decision, error)
}

type VoucherHandler struct {
	Vouchers VoucherValidator
}

func NewVoucherHandler(v VoucherValidator) *VoucherHandler { return &VoucherHandler{Vouchers: v} }

type validateVoucherRequest struct {
	Code    string `json:"code"`
	Amount  int64  `json:"amount"`
	EventID uint64 `json:"event_id"`
}

// Validate handles POST /v1/vouchers/validate.  It previews the discount
// without consuming a use.
func (h *VoucherHandler) Validate(c echo.Context) error {
	var req validateVoucherRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json"})
	}
	if strings.TrimSpace(req.Code) == "" || req.EventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code and event_id are required"})
	}
	d, err := h.Vouchers.Validate(c.Request().Context(), req.Code, req.Amount, req.EventID)
	if err != nil {
		return writeError(c, err, "failed to validate voucher")
	}
	return c.JSON(http.StatusOK, d)
}
