// Package handler defines the HTTP handlers of the ticketing API.  Each
// handler depends on a narrow interface over the service layer so it can
// be exercised with httptest.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// parseIDParam reads a positive numeric path parameter.
func parseIDParam(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// writeError maps service and repository sentinels to status codes.
// Anything unknown is logged by echo and reported as 500 with a generic
// message.
func writeError(c echo.Context, err error, fallback string) error {
	status, msg := errorStatus(err, fallback)
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("%s: %v", fallback, err)
	}
	return c.JSON(status, echo.Map{"error": msg})
}

// errorStatus maps a service error to its HTTP status and the message
// the client sees.  Unknown errors are a 500 carrying fallback.
func errorStatus(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrTicketNotFound),
		errors.Is(err, service.ErrEventNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidCart),
		errors.Is(err, service.ErrInvalidInvitation),
		errors.Is(err, service.ErrBatchTooLarge):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrEventClosed),
		errors.Is(err, service.ErrSoldOut),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, err.Error()
	}
	return http.StatusInternalServerError, fallback
}
