package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/service"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

type stubSettler struct{}

func (stubSettler) Settle(_ context.Context, orderID, _ uint64) (*service.SettlementResult, error) {
	return &service.SettlementResult{OrderID: orderID, Skipped: true}, nil
}

func (stubSettler) Invite(context.Context, service.Invitation, uint64) ([]*service.SettlementResult, error) {
	return nil, nil
}

func (stubSettler) SettleBulk(context.Context, []uint64, uint64) (*service.BulkResult, error) {
	return &service.BulkResult{}, nil
}

type stubGate struct{}

func (stubGate) Lookup(context.Context, string, uint64) (*service.LookupResult, error) {
	return &service.LookupResult{Result: service.ReasonInvalidTicket}, nil
}

func (stubGate) Redeem(context.Context, string, uint64) (*service.RedeemResult, error) {
	return &service.RedeemResult{Result: service.ReasonCheckInFailed}, nil
}

func (stubGate) Disable(context.Context, string) error { return nil }
func (stubGate) Enable(context.Context, string) error  { return nil }

func TestStaffRoutesRequireStaffRole(t *testing.T) {
	const secret = "router-secret"
	e := echo.New()
	RegisterRoutes(e, okPinger{})
	RegisterStaff(e, handler.NewOrderHandler(stubSettler{}, stubSettler{}), handler.NewCheckInHandler(stubGate{}), secret, config.RateLimitConfig{}, nil)

	staff, err := utils.NewAccessToken(secret, 1, "STAFF", 5)
	require.NoError(t, err)
	customer, err := utils.NewAccessToken(secret, 2, "CUSTOMER", 5)
	require.NoError(t, err)

	call := func(method, path, token string) int {
		req := httptest.NewRequest(method, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/healthz", ""))
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/metrics", ""))
	assert.Equal(t, http.StatusUnauthorized, call(http.MethodPost, "/v1/staff/orders/1/confirm", ""))
	assert.Equal(t, http.StatusForbidden, call(http.MethodPost, "/v1/staff/orders/1/confirm", customer.Token))
	assert.Equal(t, http.StatusOK, call(http.MethodPost, "/v1/staff/orders/1/confirm", staff.Token))
	assert.Equal(t, http.StatusOK, call(http.MethodPost, "/v1/staff/tickets/TKT1x/redeem", staff.Token))
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/v1/staff/events/3/tickets/TKT1x", staff.Token))
}
