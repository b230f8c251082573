package app

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/ecommerce-accounts/internal/config"
	"github.com/utafrali/ecommerce-accounts/internal/notification"
	"github.com/utafrali/ecommerce-accounts/pkg/logger"
)

func TestNewSender_LogsWithoutSMTPHost(t *testing.T) {
	sender := newSender(&config.Config{}, prometheus.NewRegistry(), logger.Discard())

	assert.IsType(t, &notification.LogSender{}, sender)
	assert.Equal(t, "log", sender.Name())
}

func TestNewSender_WrapsSMTPInBreaker(t *testing.T) {
	cfg := &config.Config{SMTPHost: "smtp.example.com", SMTPPort: 587, SMTPFrom: "no-reply@example.com"}

	sender := newSender(cfg, prometheus.NewRegistry(), logger.Discard())

	assert.IsType(t, &notification.BreakerSender{}, sender)
	assert.Equal(t, "smtp", sender.Name())
}

func TestNewIdempotencyStore_MemoryWithoutRedis(t *testing.T) {
	a := &App{cfg: &config.Config{NotifyDedupTTL: time.Hour}, logger: logger.Discard()}

	store, err := a.newIdempotencyStore(context.Background())

	require.NoError(t, err)
	assert.IsType(t, &notification.MemoryIdempotencyStore{}, store)
	assert.Nil(t, a.redis)
}

func TestNewIdempotencyStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	a := &App{
		cfg:    &config.Config{RedisHost: mr.Host(), RedisPort: port, NotifyDedupTTL: time.Hour},
		logger: logger.Discard(),
	}

	store, err := a.newIdempotencyStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, a.redis)
	t.Cleanup(func() { _ = a.redis.Close() })

	assert.IsType(t, &notification.RedisIdempotencyStore{}, store)

	first, err := store.Reserve(context.Background(), "create_account:user-1")
	require.NoError(t, err)
	assert.True(t, first)
	assert.True(t, mr.Exists("notification:sent:create_account:user-1"))
}

func TestNewIdempotencyStore_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	mr.Close()

	a := &App{
		cfg:    &config.Config{RedisHost: mr.Host(), RedisPort: port, NotifyDedupTTL: time.Hour},
		logger: logger.Discard(),
	}

	_, err = a.newIdempotencyStore(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
	assert.Nil(t, a.redis)
}

func TestCloseResources_PartiallyInitialized(t *testing.T) {
	a := &App{cfg: &config.Config{}, logger: logger.Discard()}

	assert.NoError(t, a.closeResources())
}
