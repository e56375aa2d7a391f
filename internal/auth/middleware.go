package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/fieldops/dispatch-service/internal/domain"
	"github.com/fieldops/dispatch-service/internal/repository"
	apperrors "github.com/fieldops/dispatch-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// AuthMiddleware validates bearer tokens or the auth cookie and loads principals.
type AuthMiddleware struct {
	tokens      *TokenManager
	credentials repository.CredentialRepository
	cookieName  string
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, credentials repository.CredentialRepository, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, credentials: credentials, cookieName: cookieName}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, err := m.extractToken(c)
	if err != nil {
		return err
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	principal, err := claims.Principal()
	if err != nil {
		return apperrors.NewUnauthorized(err.Error())
	}

	cred, err := m.credentials.GetByEmail(c.UserContext(), principal.Email())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("account not found")
		}
		return apperrors.MapError(err)
	}
	if cred.Role != principal.Role() {
		return apperrors.NewUnauthorized("role mismatch")
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

func (m *AuthMiddleware) extractToken(c *fiber.Ctx) (string, error) {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", apperrors.NewUnauthorized("invalid authorization header")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if m.cookieName != "" {
		if cookie := c.Cookies(m.cookieName); cookie != "" {
			return cookie, nil
		}
	}
	return "", apperrors.NewUnauthorized("missing authorization header")
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(domain.Principal)
	return principal, ok && principal != nil
}

// WithPrincipal stores a principal on the request. Used by tests and internal callers.
func WithPrincipal(c *fiber.Ctx, principal domain.Principal) {
	c.Locals(principalKey, principal)
}
