package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldops/dispatch-service/internal/config"
	"github.com/fieldops/dispatch-service/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeoutMS int) *NominatimClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewNominatimClient(config.GeocoderConfig{BaseURL: srv.URL + "/search", UserAgent: "test-agent", TimeoutMS: timeoutMS})
}

func TestNominatimResolve(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "560001", r.URL.Query().Get("q"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`[{"lat":"12.97","lon":"77.59","display_name":"Bengaluru, Karnataka"},{"lat":"0","lon":"0","display_name":"other"}]`))
	}, 1000)

	res, err := client.Resolve(context.Background(), " 560001 ")
	require.NoError(t, err)
	assert.InDelta(t, 12.97, res.Location.Latitude, 1e-9)
	assert.InDelta(t, 77.59, res.Location.Longitude, 1e-9)
	assert.Equal(t, "Bengaluru, Karnataka", res.DisplayAddress)
}

func TestNominatimResolveNoResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, 1000)

	_, err := client.Resolve(context.Background(), "000000")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = client.Resolve(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNominatimResolveMalformedCoordinates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"north","lon":"77.59","display_name":"x"}]`))
	}, 1000)

	res, err := client.Resolve(context.Background(), "560001")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res.Location.Latitude))
	assert.False(t, res.Location.Valid())
}

func TestNominatimResolveTimesOut(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 50)

	start := time.Now()
	_, err := client.Resolve(context.Background(), "560001")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNominatimResolveUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, 1000)

	_, err := client.Resolve(context.Background(), "560001")
	assert.ErrorContains(t, err, "status 503")
}

type countingGeocoder struct {
	calls  int
	result *Result
	err    error
}

func (g *countingGeocoder) Resolve(context.Context, string) (*Result, error) {
	g.calls++
	return g.result, g.err
}

func TestCachedGeocoderMissThenStore(t *testing.T) {
	db, mock := redismock.NewClientMock()
	next := &countingGeocoder{result: &Result{Location: domain.Location{Latitude: 12.97, Longitude: 77.59}, DisplayAddress: "Bengaluru"}}
	cached := NewCachedGeocoder(next, db, time.Hour, time.Second, zap.NewNop())

	payload, err := json.Marshal(next.result)
	require.NoError(t, err)
	mock.ExpectGet("geocode:560001").RedisNil()
	mock.ExpectSet("geocode:560001", payload, time.Hour).SetVal("OK")

	res, err := cached.Resolve(context.Background(), "560001")
	require.NoError(t, err)
	assert.Equal(t, "Bengaluru", res.DisplayAddress)
	assert.Equal(t, 1, next.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedGeocoderHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	next := &countingGeocoder{}
	cached := NewCachedGeocoder(next, db, time.Hour, time.Second, zap.NewNop())

	mock.ExpectGet("geocode:560001").SetVal(`{"location":{"latitude":12.97,"longitude":77.59},"display_address":"Bengaluru"}`)

	res, err := cached.Resolve(context.Background(), "560001")
	require.NoError(t, err)
	assert.InDelta(t, 77.59, res.Location.Longitude, 1e-9)
	assert.Equal(t, 0, next.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedGeocoderPropagatesLookupFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	next := &countingGeocoder{err: ErrNotFound}
	cached := NewCachedGeocoder(next, db, time.Hour, time.Second, zap.NewNop())

	mock.ExpectGet("geocode:999999").SetErr(errors.New("connection refused"))

	_, err := cached.Resolve(context.Background(), "999999")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, next.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// stalledRedis returns a client whose connections never come up before the
// caller's deadline.
func stalledRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:       "redis.invalid:6379",
		MaxRetries: -1,
		Dialer: func(ctx context.Context, _, _ string) (net.Conn, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return nil, errors.New("dial stalled")
			}
		},
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCachedGeocoderBoundsStalledRedis(t *testing.T) {
	next := &countingGeocoder{result: &Result{Location: domain.Location{Latitude: 12.97, Longitude: 77.59}, DisplayAddress: "Bengaluru"}}
	cached := NewCachedGeocoder(next, stalledRedis(t), time.Hour, 50*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()

	res, err := cached.Resolve(ctx, "560001")
	require.NoError(t, err)
	assert.Equal(t, "Bengaluru", res.DisplayAddress)
	assert.Equal(t, 1, next.calls)
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, ctx.Err())
}
