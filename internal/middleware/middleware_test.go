package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

func whoami(c echo.Context) error {
	id, err := UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": id, "role": Role(c)})
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRole(t *testing.T) {
	const secret = "test-secret"
	e := echo.New()
	g := e.Group("/staff", JWTAuth(secret), RequireRole("STAFF", "ADMIN"))
	g.GET("/me", whoami)

	staff, err := utils.NewAccessToken(secret, 7, "STAFF", 5)
	require.NoError(t, err)
	customer, err := utils.NewAccessToken(secret, 8, "CUSTOMER", 5)
	require.NoError(t, err)
	forged, err := utils.NewAccessToken("other-secret", 7, "STAFF", 5)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged.Token, http.StatusUnauthorized},
		{"wrong role", "Bearer " + customer.Token, http.StatusForbidden},
		{"staff", "Bearer " + staff.Token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/staff/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := serve(e, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/staff/me", nil)
	req.Header.Set("Authorization", "Bearer "+staff.Token)
	rec := serve(e, req)
	assert.JSONEq(t, `{"user_id":7,"role":"STAFF"}`, rec.Body.String())
}

func TestUserIDConversions(t *testing.T) {
	e := echo.New()
	for _, tc := range []struct {
		in   interface{}
		want uint64
		ok   bool
	}{
		{float64(12), 12, true},
		{"13", 13, true},
		{uint64(14), 14, true},
		{float64(1.5), 0, false},
		{float64(0), 0, false},
		{"abc", 0, false},
		{nil, 0, false},
	} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.Set("user_id", tc.in)
		got, err := UserID(c)
		if tc.ok {
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		} else {
			assert.ErrorIs(t, err, ErrNoIdentity)
		}
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/staff/checkin/abc/redeem", nil)
	req.Header.Set("X-Real-IP", "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/staff/checkin/:token/redeem")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user_route"}
	assert.Equal(t, "rl:user:anon:route:POST /v1/staff/checkin/:token/redeem", buildRateKey(cfg, c))

	c.Set("user_id", float64(5))
	assert.Equal(t, "rl:user:5:route:POST /v1/staff/checkin/:token/redeem", buildRateKey(cfg, c))

	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.0.0.9", buildRateKey(cfg, c))
}

func TestTokenBucketFailsOpen(t *testing.T) {
	rdb, _ := redismock.NewClientMock()
	e := echo.New()
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"}
	e.POST("/redeem", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, rdb))

	// No expectation registered: the script call errors and the request
	// still goes through.
	rec := serve(e, httptest.NewRequest(http.MethodPost, "/redeem", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRedisCacheHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: 5 * time.Second, Prefix: "cache"}
	e := echo.New()
	calls := 0
	e.GET("/v1/events/:id/availability", func(c echo.Context) error {
		calls++
		return c.Blob(http.StatusOK, "application/json", []byte(`{"fresh":true}`))
	}, NewRedisCache(cfg, rdb))

	req := httptest.NewRequest(http.MethodGet, "/v1/events/3/availability", nil)
	key := cacheKeyFrom(cfg, e.NewContext(req, httptest.NewRecorder()))
	payload, err := encodePayload(http.StatusOK, http.Header{"Content-Type": {"application/json"}}, []byte(`{"cached":true}`))
	require.NoError(t, err)
	mock.ExpectGet(key).SetVal(string(payload))

	rec := serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"cached":true}`, rec.Body.String())
	assert.Zero(t, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheMissStores(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: 5 * time.Second, Prefix: "cache"}
	e := echo.New()
	e.GET("/v1/events/:id/availability", func(c echo.Context) error {
		return c.Blob(http.StatusOK, "application/json", []byte(`{"fresh":true}`))
	}, NewRedisCache(cfg, rdb))

	req := httptest.NewRequest(http.MethodGet, "/v1/events/4/availability", nil)
	key := cacheKeyFrom(cfg, e.NewContext(req, httptest.NewRecorder()))
	payload, err := encodePayload(http.StatusOK, http.Header{"Content-Type": {"application/json"}}, []byte(`{"fresh":true}`))
	require.NoError(t, err)
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSetEx(key, payload, 5*time.Second).SetVal("OK")

	rec := serve(e, req)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"fresh":true}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheKeyDistinguishesEvents(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache"}
	a := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/events/1/availability", nil), httptest.NewRecorder())
	b := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/events/2/availability", nil), httptest.NewRecorder())
	assert.NotEqual(t, cacheKeyFrom(cfg, a), cacheKeyFrom(cfg, b))
}

func TestDecodePayloadRejectsShortInput(t *testing.T) {
	_, _, _, ok := decodePayload([]byte{0, 0, 0, 200})
	assert.False(t, ok)
	_, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0})
	assert.False(t, ok)
}
