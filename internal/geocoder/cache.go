package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "geocode:"

// CachedGeocoder memoizes successful lookups in Redis. Cache failures fall
// through to the wrapped geocoder.
type CachedGeocoder struct {
	next      Geocoder
	client    redis.Cmdable
	ttl       time.Duration
	opTimeout time.Duration
	logger    *zap.Logger
}

// NewCachedGeocoder wraps next with a Redis cache. Each cache command is
// bounded by opTimeout independently of the caller's deadline.
func NewCachedGeocoder(next Geocoder, client redis.Cmdable, ttl, opTimeout time.Duration, logger *zap.Logger) *CachedGeocoder {
	return &CachedGeocoder{next: next, client: client, ttl: ttl, opTimeout: opTimeout, logger: logger}
}

// Resolve serves from cache, then from the wrapped geocoder.
func (c *CachedGeocoder) Resolve(ctx context.Context, postalCode string) (*Result, error) {
	key := cacheKeyPrefix + strings.ToLower(strings.TrimSpace(postalCode))

	raw, err := c.get(ctx, key)
	switch {
	case err == nil:
		var cached Result
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil && cached.Location.Valid() {
			return &cached, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("geocode cache read failed", zap.String("key", key), zap.Error(err))
	}

	result, err := c.next.Resolve(ctx, postalCode)
	if err != nil {
		return nil, err
	}
	if !result.Location.Valid() {
		return result, nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return result, nil
	}
	if err := c.set(ctx, key, payload); err != nil {
		c.logger.Warn("geocode cache write failed", zap.String("key", key), zap.Error(err))
	}
	return result, nil
}

func (c *CachedGeocoder) get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()
	return c.client.Get(ctx, key).Bytes()
}

func (c *CachedGeocoder) set(ctx context.Context, key string, payload []byte) error {
	ctx, cancel := c.opContext(ctx)
	defer cancel()
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

func (c *CachedGeocoder) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opTimeout)
}
