package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fieldops/dispatch-service/internal/auth"
	"github.com/fieldops/dispatch-service/internal/config"
	"github.com/fieldops/dispatch-service/internal/domain"
	"github.com/fieldops/dispatch-service/internal/geocoder"
	"github.com/fieldops/dispatch-service/internal/repository"
	apperrors "github.com/fieldops/dispatch-service/pkg/util/errorutil"
)

// Auth messages shown to callers.
const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgAwaitingApproval   = "Access denied. Awaiting admin approval."
	MsgAnswerVerified     = "Security answer verified. Proceed to reset password."
	MsgPasswordReset      = "Password reset successfully"
	MsgIncorrectAnswer    = "Incorrect security answer"
)

// RegisterInput is the sign-up payload for every role.
type RegisterInput struct {
	Email            string
	Password         string
	Role             string
	Name             string
	Phone            string
	Address          string
	City             string
	Pincode          string
	SecurityQuestion string
	SecurityAnswer   string
	Specialization   string
	Availability     []string
}

// AuthResult is returned by registration and login.
type AuthResult struct {
	Email     string
	Role      domain.Role
	Token     string
	ExpiresAt time.Time
	// Pending is set for engineers that cannot log in until approved.
	Pending bool
}

// ResetInput drives the security-question password reset.
type ResetInput struct {
	Email          string
	SecurityAnswer string
	NewPassword    string
}

// ResetResult reports the reset step that was completed.
type ResetResult struct {
	Message          string
	SecurityQuestion string
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	store      repository.Store
	geocoder   geocoder.Geocoder
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators for auth service.
type AuthDependencies struct {
	Store    repository.Store
	Geocoder geocoder.Geocoder
	Logger   *zap.Logger
	Clock    func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		store:      deps.Store,
		geocoder:   deps.Geocoder,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
		logger:     defaultLogger(deps.Logger),
		now:        defaultClock(deps.Clock),
	}
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Register creates the account record for the role plus its credential.
// Engineers start unapproved and receive no token.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	role, ok := domain.ParseRole(input.Role)
	if !ok {
		return nil, apperrors.NewValidationError("Invalid role provided", map[string]any{"role": input.Role})
	}
	if len(input.Password) < 6 {
		return nil, apperrors.NewValidationError("password must be at least 6 characters", nil)
	}
	if strings.TrimSpace(input.SecurityQuestion) == "" || strings.TrimSpace(input.SecurityAnswer) == "" {
		return nil, apperrors.NewValidationError("security question and answer are required", nil)
	}

	if _, err := s.store.Credentials().GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("User with this email already exists", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	passwordHash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	answerHash, err := auth.HashSecurityAnswer(input.SecurityAnswer, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	var engineer *domain.Engineer
	if role == domain.RoleEngineer {
		engineer, err = s.newEngineer(ctx, email, input)
		if err != nil {
			return nil, err
		}
		engineer.SecurityAnswerHash = answerHash
	}

	now := s.now()
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		switch role {
		case domain.RoleUser:
			user := &domain.User{
				Email:              email,
				Name:               strings.TrimSpace(input.Name),
				Phone:              strings.TrimSpace(input.Phone),
				Address:            strings.TrimSpace(input.Address),
				Pincode:            strings.TrimSpace(input.Pincode),
				SecurityQuestion:   strings.TrimSpace(input.SecurityQuestion),
				SecurityAnswerHash: answerHash,
				CreatedAt:          now,
				UpdatedAt:          now,
			}
			if err := tx.Users().Create(ctx, user); err != nil {
				return storeError(err, "User", map[string]any{"email": email})
			}
		case domain.RoleEngineer:
			if err := tx.Engineers().Create(ctx, engineer); err != nil {
				return storeError(err, "Engineer", map[string]any{"email": email})
			}
		case domain.RoleAdmin:
			admin := &domain.Admin{
				Email:              email,
				Name:               strings.TrimSpace(input.Name),
				Phone:              strings.TrimSpace(input.Phone),
				SecurityQuestion:   strings.TrimSpace(input.SecurityQuestion),
				SecurityAnswerHash: answerHash,
				CreatedAt:          now,
			}
			if err := tx.Admins().Create(ctx, admin); err != nil {
				return storeError(err, "Admin", map[string]any{"email": email})
			}
		}
		cred := &domain.Credential{Email: email, PasswordHash: passwordHash, Role: role}
		if err := tx.Credentials().Create(ctx, cred); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.NewConflict("User with this email already exists", map[string]any{"email": email})
			}
			return apperrors.MapError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account registered", zap.String("email", email), zap.String("role", string(role)))
	if role == domain.RoleEngineer {
		return &AuthResult{Email: email, Role: role, Pending: true}, nil
	}
	return s.issue(email, role)
}

func (s *AuthService) newEngineer(ctx context.Context, email string, input RegisterInput) (*domain.Engineer, error) {
	specialization, err := parseSpecialization(input.Specialization)
	if err != nil {
		return nil, err
	}
	availability, err := normalizeAvailability(input.Availability)
	if err != nil {
		return nil, err
	}
	pincode := strings.TrimSpace(input.Pincode)
	if pincode == "" || s.geocoder == nil {
		return nil, apperrors.NewValidationError("Invalid address. Unable to fetch coordinates.", map[string]any{"pincode": pincode})
	}
	resolved, err := s.geocoder.Resolve(ctx, pincode)
	if err != nil || !resolved.Location.Valid() {
		s.logger.Warn("engineer geocoding failed", zap.String("pincode", pincode), zap.Error(err))
		return nil, apperrors.NewValidationError("Invalid address. Unable to fetch coordinates.", map[string]any{"pincode": pincode})
	}
	loc := resolved.Location
	address := strings.TrimSpace(input.Address)
	if address == "" {
		address = resolved.DisplayAddress
	}
	now := s.now()
	return &domain.Engineer{
		Email:            email,
		Name:             strings.TrimSpace(input.Name),
		Phone:            strings.TrimSpace(input.Phone),
		Specialization:   specialization,
		Availability:     availability,
		Address:          address,
		City:             strings.TrimSpace(input.City),
		Pincode:          pincode,
		Location:         &loc,
		AssignedTasks:    []int64{},
		SecurityQuestion: strings.TrimSpace(input.SecurityQuestion),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Login verifies the password and issues a token. Unapproved engineers are refused.
func (s *AuthService) Login(ctx context.Context, rawEmail, password string) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(rawEmail))
	cred, err := s.store.Credentials().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized(MsgInvalidCredentials)
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(cred.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized(MsgInvalidCredentials)
	}
	if cred.Role == domain.RoleEngineer {
		engineer, err := s.store.Engineers().GetByEmail(ctx, email)
		if err != nil {
			return nil, storeError(err, "Engineer", map[string]any{"email": email})
		}
		if !engineer.Approved {
			return nil, apperrors.NewForbidden(MsgAwaitingApproval)
		}
	}
	return s.issue(email, cred.Role)
}

// ResetPassword walks the security-question flow. With only an email it returns
// the question; with an answer it verifies it; with an answer and a new password
// it replaces the password.
func (s *AuthService) ResetPassword(ctx context.Context, input ResetInput) (*ResetResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	cred, err := s.store.Credentials().GetByEmail(ctx, email)
	if err != nil {
		return nil, storeError(err, "Email", map[string]any{"email": email})
	}
	question, answerHash, err := s.securityQuestion(ctx, cred)
	if err != nil {
		return nil, err
	}

	answer := strings.TrimSpace(input.SecurityAnswer)
	if answer == "" {
		if input.NewPassword != "" {
			return nil, apperrors.NewValidationError("security answer is required to reset password", nil)
		}
		return &ResetResult{SecurityQuestion: question}, nil
	}
	if err := auth.CompareSecurityAnswer(answerHash, answer); err != nil {
		return nil, apperrors.NewUnauthorized(MsgIncorrectAnswer)
	}
	if input.NewPassword == "" {
		return &ResetResult{Message: MsgAnswerVerified}, nil
	}
	if len(input.NewPassword) < 6 {
		return nil, apperrors.NewValidationError("password must be at least 6 characters", nil)
	}

	hash, err := auth.HashPassword(input.NewPassword, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.store.Credentials().UpdatePassword(ctx, email, hash); err != nil {
		return nil, storeError(err, "Email", map[string]any{"email": email})
	}
	s.logger.Info("password reset", zap.String("email", email))
	return &ResetResult{Message: MsgPasswordReset}, nil
}

func (s *AuthService) securityQuestion(ctx context.Context, cred *domain.Credential) (string, string, error) {
	switch cred.Role {
	case domain.RoleUser:
		user, err := s.store.Users().GetByEmail(ctx, cred.Email)
		if err != nil {
			return "", "", storeError(err, "Email", nil)
		}
		return user.SecurityQuestion, user.SecurityAnswerHash, nil
	case domain.RoleEngineer:
		engineer, err := s.store.Engineers().GetByEmail(ctx, cred.Email)
		if err != nil {
			return "", "", storeError(err, "Email", nil)
		}
		return engineer.SecurityQuestion, engineer.SecurityAnswerHash, nil
	default:
		admin, err := s.store.Admins().GetByEmail(ctx, cred.Email)
		if err != nil {
			return "", "", storeError(err, "Email", nil)
		}
		return admin.SecurityQuestion, admin.SecurityAnswerHash, nil
	}
}

func (s *AuthService) issue(email string, role domain.Role) (*AuthResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(email, role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{Email: email, Role: role, Token: token, ExpiresAt: exp}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperrors.NewValidationError("email is required", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperrors.NewValidationError("invalid email address", map[string]any{"email": raw})
	}
	return email, nil
}
