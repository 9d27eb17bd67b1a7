package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlementDefaults(t *testing.T) {
	s := LoadSettlementConfig()
	assert.False(t, s.EnforceCapacity)
	assert.False(t, s.EnforceVoucherLimit)
	assert.Equal(t, 300*time.Millisecond, s.BulkDelay)
	assert.Equal(t, 500, s.BulkMax)
	assert.Equal(t, time.Minute, s.ReconcileInterval)
	assert.Equal(t, 30*time.Second, s.ReconcileGrace)
	assert.Equal(t, 100, s.InviteMaxQuantity)
}

func TestOrderLimits(t *testing.T) {
	c := LoadCheckoutConfig()
	assert.Equal(t, 20, c.MaxLineQuantity)
	assert.Equal(t, 50, c.MaxOrderQuantity)

	t.Setenv("CHECKOUT_MAX_LINE_QUANTITY", "4")
	t.Setenv("NOTIFY_PUBLISH_TIMEOUT", "750ms")
	assert.Equal(t, 4, LoadCheckoutConfig().MaxLineQuantity)
	assert.Equal(t, 750*time.Millisecond, LoadNotifyConfig().PublishTimeout)
}

func TestSettlementFromEnv(t *testing.T) {
	t.Setenv("INVENTORY_ENFORCE_CAPACITY", "true")
	t.Setenv("VOUCHER_ENFORCE_LIMIT", "1")
	t.Setenv("BULK_SETTLE_DELAY", "1s")
	t.Setenv("BULK_SETTLE_MAX", "not-a-number")
	s := LoadSettlementConfig()
	assert.True(t, s.EnforceCapacity)
	assert.True(t, s.EnforceVoucherLimit)
	assert.Equal(t, time.Second, s.BulkDelay)
	assert.Equal(t, 500, s.BulkMax)
}

func TestNotifyFallsBackToAMQPURL(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://u:p@mq:5672/")
	n := LoadNotifyConfig()
	assert.Equal(t, "amqp://u:p@mq:5672/", n.RabbitURL)
	assert.Equal(t, "rabbitmq", n.Transport)
	assert.Equal(t, 5*time.Second, n.PublishTimeout)
}

func TestRateLimitClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	rl := LoadRateLimitConfig()
	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 2*time.Second, rl.RefillInterval)
	assert.Equal(t, 10*time.Second, rl.TTL)
}

func TestCacheMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head,")
	c := LoadCacheConfig()
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
}

func TestRedisAddrPrecedence(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	assert.Equal(t, "cache:6380", RedisOptions().Addr)
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	assert.Equal(t, "redis:6379", RedisOptions().Addr)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	l.Info("dropped")
	l.Warn("kept", "order_id", 7)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, float64(7), rec["order_id"])
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
