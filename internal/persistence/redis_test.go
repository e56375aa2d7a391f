package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldops/dispatch-service/internal/config"
)

func TestNewRedisReportsUnreachableServer(t *testing.T) {
	r, err := NewRedis(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1", OpTimeoutMS: 150}, zap.NewNop())
	require.Error(t, err)
	require.NotNil(t, r)
	t.Cleanup(r.Close)

	assert.Equal(t, 150*time.Millisecond, r.OpTimeout())
	assert.Error(t, r.Ping(context.Background()))
}

func TestNilRedisPing(t *testing.T) {
	var r *Redis
	assert.EqualError(t, r.Ping(context.Background()), "redis client not configured")
	assert.Zero(t, r.OpTimeout())
}
