package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldops/dispatch-service/internal/domain"
	"github.com/fieldops/dispatch-service/internal/geocoder"
	"github.com/fieldops/dispatch-service/internal/repository"
	apperrors "github.com/fieldops/dispatch-service/pkg/util/errorutil"
)

// HazardInput describes a hazard report. On update nil fields are left untouched.
type HazardInput struct {
	HazardType  *string
	Description *string
	RiskLevel   *string
	Address     *string
	Pincode     *string
}

// HazardService manages site hazard reports.
type HazardService struct {
	hazards  repository.HazardRepository
	geocoder geocoder.Geocoder
	logger   *zap.Logger
	now      func() time.Time
}

// HazardDependencies bundles collaborators.
type HazardDependencies struct {
	HazardRepo repository.HazardRepository
	Geocoder   geocoder.Geocoder
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewHazardService creates the service.
func NewHazardService(deps HazardDependencies) *HazardService {
	return &HazardService{
		hazards:  deps.HazardRepo,
		geocoder: deps.Geocoder,
		logger:   defaultLogger(deps.Logger),
		now:      defaultClock(deps.Clock),
	}
}

// Create stores a new hazard. The location is best effort.
func (s *HazardService) Create(ctx context.Context, input HazardInput) (*domain.Hazard, error) {
	details := map[string]any{}
	if value(input.HazardType) == "" {
		details["hazardType"] = "required"
	}
	if value(input.Pincode) == "" {
		details["pincode"] = "required"
	}
	risk, ok := domain.ParseRiskLevel(value(input.RiskLevel))
	if !ok {
		details["riskLevel"] = "must be low, medium or high"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid hazard", details)
	}

	now := s.now()
	hazard := &domain.Hazard{
		ID:          uuid.NewString(),
		HazardType:  value(input.HazardType),
		Description: value(input.Description),
		RiskLevel:   risk,
		Address:     value(input.Address),
		Pincode:     value(input.Pincode),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.locate(ctx, hazard)
	if err := s.hazards.Create(ctx, hazard); err != nil {
		return nil, storeError(err, "Hazard", map[string]any{"id": hazard.ID})
	}
	return hazard, nil
}

// Get returns a hazard by id.
func (s *HazardService) Get(ctx context.Context, id string) (*domain.Hazard, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewValidationError("invalid hazard id", map[string]any{"id": id})
	}
	hazard, err := s.hazards.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "Hazard", map[string]any{"id": id})
	}
	return hazard, nil
}

// List returns every hazard.
func (s *HazardService) List(ctx context.Context) ([]domain.Hazard, error) {
	hazards, err := s.hazards.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if hazards == nil {
		hazards = []domain.Hazard{}
	}
	return hazards, nil
}

// Update applies the non-nil fields of input.
func (s *HazardService) Update(ctx context.Context, id string, input HazardInput) (*domain.Hazard, error) {
	hazard, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.RiskLevel != nil {
		risk, ok := domain.ParseRiskLevel(value(input.RiskLevel))
		if !ok {
			return nil, apperrors.NewValidationError("invalid hazard", map[string]any{"riskLevel": "must be low, medium or high"})
		}
		hazard.RiskLevel = risk
	}
	setIf(&hazard.HazardType, trimmed(input.HazardType))
	setIf(&hazard.Description, trimmed(input.Description))
	setIf(&hazard.Address, trimmed(input.Address))
	if pin := trimmed(input.Pincode); pin != nil && *pin != hazard.Pincode {
		hazard.Pincode = *pin
		hazard.Location = nil
		s.locate(ctx, hazard)
	}
	hazard.UpdatedAt = s.now()
	if err := s.hazards.Update(ctx, hazard); err != nil {
		return nil, storeError(err, "Hazard", map[string]any{"id": id})
	}
	return hazard, nil
}

// Delete removes a hazard.
func (s *HazardService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewValidationError("invalid hazard id", map[string]any{"id": id})
	}
	if err := s.hazards.Delete(ctx, id); err != nil {
		return storeError(err, "Hazard", map[string]any{"id": id})
	}
	return nil
}

func (s *HazardService) locate(ctx context.Context, hazard *domain.Hazard) {
	if s.geocoder == nil {
		return
	}
	resolved, err := s.geocoder.Resolve(ctx, hazard.Pincode)
	if err != nil || !resolved.Location.Valid() {
		s.logger.Warn("hazard geocoding failed", zap.String("pincode", hazard.Pincode), zap.Error(err))
		return
	}
	loc := resolved.Location
	hazard.Location = &loc
	if hazard.Address == "" {
		hazard.Address = resolved.DisplayAddress
	}
}

func value(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
