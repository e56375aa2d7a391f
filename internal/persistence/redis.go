package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fieldops/dispatch-service/internal/config"
)

const redisConnectTimeout = 2 * time.Second

// Redis holds the client backing the geocode cache and the event stream.
type Redis struct {
	Client    *redis.Client
	opTimeout time.Duration
}

// NewRedis builds the client and checks that the server answers. The client is
// returned even when the check fails so readiness can keep reporting it; the
// error tells the caller to leave Redis-backed features off.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: redisConnectTimeout,
	})
	r := &Redis{Client: client, opTimeout: cfg.OpTimeout()}

	pingCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable", zap.String("addr", cfg.Addr), zap.Error(err))
		return r, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return r, nil
}

// OpTimeout is the per-command deadline configured for Redis callers.
func (r *Redis) OpTimeout() time.Duration {
	if r == nil {
		return 0
	}
	return r.opTimeout
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity for the readiness probe.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	if r.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opTimeout)
		defer cancel()
	}
	return r.Client.Ping(ctx).Err()
}
