package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fieldops/dispatch-service/internal/domain"
	"github.com/fieldops/dispatch-service/internal/events"
	"github.com/fieldops/dispatch-service/internal/notify"
	"github.com/fieldops/dispatch-service/internal/observability"
	"github.com/fieldops/dispatch-service/internal/repository"
	apperrors "github.com/fieldops/dispatch-service/pkg/util/errorutil"
)

// Deliverer hands an outbound message to the notification pipeline.
type Deliverer interface {
	Deliver(ctx context.Context, msg notify.Message) error
}

// ParseTicketID validates a ticket id taken from a path segment.
func ParseTicketID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("Invalid ticket ID", map[string]any{"ticket_id": raw})
	}
	return id, nil
}

// weekdays maps lower-cased day names to their canonical form.
var weekdays = map[string]string{
	"monday":    "Monday",
	"tuesday":   "Tuesday",
	"wednesday": "Wednesday",
	"thursday":  "Thursday",
	"friday":    "Friday",
	"saturday":  "Saturday",
	"sunday":    "Sunday",
}

// NormalizeWeekday returns the canonical English day name.
func NormalizeWeekday(raw string) (string, error) {
	day, ok := weekdays[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", apperrors.NewValidationError("Invalid day", map[string]any{"day": raw})
	}
	return day, nil
}

func normalizeAvailability(days []string) ([]string, error) {
	seen := make(map[string]bool, len(days))
	out := make([]string, 0, len(days))
	for _, raw := range days {
		day, err := NormalizeWeekday(raw)
		if err != nil {
			return nil, err
		}
		if seen[day] {
			continue
		}
		seen[day] = true
		out = append(out, day)
	}
	return out, nil
}

func parseSpecialization(raw string) (domain.Specialization, error) {
	st, ok := domain.ParseServiceType(raw)
	if !ok {
		return "", apperrors.NewValidationError("Invalid specialization", map[string]any{"specialization": raw})
	}
	if st == domain.ServiceTypeFault {
		return domain.SpecializationFault, nil
	}
	return domain.SpecializationInstallation, nil
}

// storeError converts repository failures into domain errors.
func storeError(err error, resource string, details map[string]any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound(resource, details)
	case errors.Is(err, repository.ErrStaleWrite):
		return apperrors.NewRetryableConflict(resource+" was modified concurrently", err)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", details)
	default:
		return apperrors.MapError(err)
	}
}

// retryStale runs fn until it succeeds, fails with a non-retryable error, or
// exhausts attempts.
func retryStale(ctx context.Context, attempts int, logger *zap.Logger, metrics *observability.Metrics, op string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !apperrors.IsRetryable(err) {
			return err
		}
		metrics.RecordDispatch(observability.OutcomeStaleRetry)
		logger.Warn("stale write, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if ctx.Err() != nil {
			return apperrors.MapError(ctx.Err())
		}
	}
	return err
}

func publish(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	_ = dispatcher.Publish(ctx, event)
}

func actorOf(principal domain.Principal) events.Actor {
	if principal == nil {
		return events.Actor{Role: "system"}
	}
	return events.Actor{Role: principal.Role(), Email: principal.Email()}
}

func defaultClock(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

func defaultLogger(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func ptr[T any](v T) *T {
	return &v
}
