package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fieldops/dispatch-service/internal/domain"
	"github.com/fieldops/dispatch-service/internal/geocoder"
	"github.com/fieldops/dispatch-service/internal/observability"
	"github.com/fieldops/dispatch-service/internal/repository"
	apperrors "github.com/fieldops/dispatch-service/pkg/util/errorutil"
)

// Profile is the account record for the signed-in principal. Exactly one field is set.
type Profile struct {
	User     *domain.User
	Engineer *domain.Engineer
	Admin    *domain.Admin
}

// ProfileInput carries raw editable fields. Nil fields are left untouched.
type ProfileInput struct {
	Name           *string
	Phone          *string
	Address        *string
	Pincode        *string
	City           *string
	Specialization *string
	Availability   []string
}

// ProfileService reads and edits the caller's own account.
type ProfileService struct {
	store    repository.Store
	geocoder geocoder.Geocoder
	metrics  *observability.Metrics
	logger   *zap.Logger
	retries  int
	now      func() time.Time
}

// ProfileDependencies bundles collaborators.
type ProfileDependencies struct {
	Store           repository.Store
	Geocoder        geocoder.Geocoder
	Metrics         *observability.Metrics
	Logger          *zap.Logger
	MaxWriteRetries int
	Clock           func() time.Time
}

// NewProfileService creates the service.
func NewProfileService(deps ProfileDependencies) *ProfileService {
	return &ProfileService{
		store:    deps.Store,
		geocoder: deps.Geocoder,
		metrics:  deps.Metrics,
		logger:   defaultLogger(deps.Logger),
		retries:  deps.MaxWriteRetries,
		now:      defaultClock(deps.Clock),
	}
}

// GetProfile loads the caller's account record.
func (s *ProfileService) GetProfile(ctx context.Context, principal domain.Principal) (*Profile, error) {
	switch p := principal.(type) {
	case domain.UserPrincipal:
		user, err := s.store.Users().GetByEmail(ctx, p.Email())
		if err != nil {
			return nil, storeError(err, "User", map[string]any{"email": p.Email()})
		}
		return &Profile{User: user}, nil
	case domain.EngineerPrincipal:
		engineer, err := s.store.Engineers().GetByEmail(ctx, p.Email())
		if err != nil {
			return nil, storeError(err, "Engineer", map[string]any{"email": p.Email()})
		}
		return &Profile{Engineer: engineer}, nil
	case domain.AdminPrincipal:
		admin, err := s.store.Admins().GetByEmail(ctx, p.Email())
		if err != nil {
			return nil, storeError(err, "Admin", map[string]any{"email": p.Email()})
		}
		return &Profile{Admin: admin}, nil
	default:
		return nil, apperrors.NewUnauthorized("authentication required")
	}
}

// UpdateProfile applies the patch to the caller's user or engineer record.
// An engineer whose pincode changes is geocoded again.
func (s *ProfileService) UpdateProfile(ctx context.Context, principal domain.Principal, input ProfileInput) (*Profile, error) {
	patch, err := toPatch(input)
	if err != nil {
		return nil, err
	}
	switch p := principal.(type) {
	case domain.UserPrincipal:
		return s.updateUser(ctx, p.Email(), patch)
	case domain.EngineerPrincipal:
		return s.updateEngineer(ctx, p.Email(), patch)
	case domain.AdminPrincipal:
		return nil, apperrors.NewForbidden("admin profiles cannot be edited")
	default:
		return nil, apperrors.NewUnauthorized("authentication required")
	}
}

func (s *ProfileService) updateUser(ctx context.Context, email string, patch domain.ProfilePatch) (*Profile, error) {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return nil, storeError(err, "User", map[string]any{"email": email})
	}
	setIf(&user.Name, patch.Name)
	setIf(&user.Phone, patch.Phone)
	setIf(&user.Address, patch.Address)
	setIf(&user.Pincode, patch.Pincode)
	user.UpdatedAt = s.now()
	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, storeError(err, "User", map[string]any{"email": email})
	}
	return &Profile{User: user}, nil
}

func (s *ProfileService) updateEngineer(ctx context.Context, email string, patch domain.ProfilePatch) (*Profile, error) {
	var relocated *domain.Location
	if patch.Pincode != nil {
		loc, err := s.locate(ctx, *patch.Pincode)
		if err != nil {
			return nil, err
		}
		relocated = loc
	}

	var updated *domain.Engineer
	err := retryStale(ctx, s.retries, s.logger, s.metrics, "update_profile", func() error {
		engineer, err := s.store.Engineers().GetByEmail(ctx, email)
		if err != nil {
			return storeError(err, "Engineer", map[string]any{"email": email})
		}
		setIf(&engineer.Name, patch.Name)
		setIf(&engineer.Phone, patch.Phone)
		setIf(&engineer.Address, patch.Address)
		setIf(&engineer.City, patch.City)
		setIf(&engineer.Pincode, patch.Pincode)
		if patch.Specialization != nil {
			engineer.Specialization = *patch.Specialization
		}
		if patch.Availability != nil {
			engineer.Availability = patch.Availability
		}
		if relocated != nil {
			engineer.Location = relocated
		}
		engineer.UpdatedAt = s.now()
		if err := s.store.Engineers().Update(ctx, engineer); err != nil {
			return storeError(err, "Engineer", map[string]any{"email": email})
		}
		updated = engineer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Profile{Engineer: updated}, nil
}

func (s *ProfileService) locate(ctx context.Context, pincode string) (*domain.Location, error) {
	if s.geocoder == nil {
		return nil, apperrors.NewValidationError("Invalid address. Unable to fetch coordinates.", nil)
	}
	resolved, err := s.geocoder.Resolve(ctx, pincode)
	if err != nil || !resolved.Location.Valid() {
		s.metrics.RecordDispatch(observability.OutcomeGeocodeMiss)
		s.logger.Warn("profile geocoding failed", zap.String("pincode", pincode), zap.Error(err))
		return nil, apperrors.NewValidationError("Invalid address. Unable to fetch coordinates.", map[string]any{"pincode": pincode})
	}
	loc := resolved.Location
	return &loc, nil
}

func toPatch(input ProfileInput) (domain.ProfilePatch, error) {
	patch := domain.ProfilePatch{
		Name:    trimmed(input.Name),
		Phone:   trimmed(input.Phone),
		Address: trimmed(input.Address),
		Pincode: trimmed(input.Pincode),
		City:    trimmed(input.City),
	}
	if patch.Pincode != nil && *patch.Pincode == "" {
		return patch, apperrors.NewValidationError("pincode cannot be empty", nil)
	}
	if input.Specialization != nil {
		spec, err := parseSpecialization(*input.Specialization)
		if err != nil {
			return patch, err
		}
		patch.Specialization = &spec
	}
	if input.Availability != nil {
		days, err := normalizeAvailability(input.Availability)
		if err != nil {
			return patch, err
		}
		patch.Availability = days
	}
	return patch, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
