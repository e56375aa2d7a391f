package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamRelay mirrors every published event onto a Redis stream so other
// services can follow ticket lifecycle changes.
type StreamRelay struct {
	client    redis.Cmdable
	stream    string
	opTimeout time.Duration
	logger    *zap.Logger
}

// NewStreamRelay creates a relay writing to stream. Each XADD is bounded by
// opTimeout when it is positive.
func NewStreamRelay(client redis.Cmdable, stream string, opTimeout time.Duration, logger *zap.Logger) *StreamRelay {
	return &StreamRelay{client: client, stream: stream, opTimeout: opTimeout, logger: logger}
}

// Register subscribes the relay to every event type.
func (r *StreamRelay) Register(dispatcher Dispatcher) {
	for _, eventType := range AllEventTypes {
		dispatcher.Subscribe(eventType, r.Handle)
	}
}

// Handle appends the event to the stream. Failures are returned to the
// dispatcher, which logs them.
func (r *StreamRelay) Handle(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}
	values := []interface{}{
		"event_id", event.ID,
		"event", string(event.Type),
		"ticket_id", strconv.FormatInt(event.TicketID, 10),
		"actor", event.Actor.Email,
		"created_at", event.Timestamp.UTC().Format(time.RFC3339),
		"payload", string(payload),
	}
	if r.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opTimeout)
		defer cancel()
	}
	if err := r.client.XAdd(ctx, &redis.XAddArgs{Stream: r.stream, Values: values}).Err(); err != nil {
		return err
	}
	r.logger.Debug("event relayed", zap.String("stream", r.stream), zap.String("event_id", event.ID))
	return nil
}
