package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/dispatch-service/internal/domain"
	apperrors "github.com/fieldops/dispatch-service/pkg/util/errorutil"
)

type stubCredentials map[string]domain.Credential

func (s stubCredentials) Create(context.Context, *domain.Credential) error { return nil }

func (s stubCredentials) GetByEmail(_ context.Context, email string) (*domain.Credential, error) {
	cred, ok := s[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &cred, nil
}

func (s stubCredentials) UpdatePassword(context.Context, string, string) error { return nil }

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, expires, err := tm.GenerateToken("eng@example.com", domain.RoleEngineer)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expires, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	principal, err := claims.Principal()
	require.NoError(t, err)
	assert.Equal(t, domain.EngineerPrincipal{EmailAddr: "eng@example.com"}, principal)
}

func TestTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	token, _, err := NewTokenManager("secret", 5).GenerateToken("u@example.com", domain.RoleUser)
	require.NoError(t, err)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)

	later := NewTokenManager("secret", 5)
	later.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = later.ParseToken(token)
	assert.Error(t, err)
}

func TestPasswordAndSecurityAnswer(t *testing.T) {
	hash, err := HashPassword("s3cret", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "s3cret"))
	assert.Error(t, ComparePassword(hash, "wrong"))

	answerHash, err := HashSecurityAnswer(" Fluffy ", 4)
	require.NoError(t, err)
	assert.NoError(t, CompareSecurityAnswer(answerHash, "fluffy"))
	assert.Error(t, CompareSecurityAnswer(answerHash, "rex"))
}

func newProtectedApp(tm *TokenManager, creds stubCredentials, roles ...domain.Role) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	mw := NewAuthMiddleware(tm, creds, "token")
	app.Get("/me", mw.Handle, RequireRole(roles...), func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(string(p.Role()) + ":" + p.Email())
	})
	return app
}

func TestMiddlewareAcceptsHeaderAndCookie(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	creds := stubCredentials{"u@example.com": {Email: "u@example.com", Role: domain.RoleUser}}
	app := newProtectedApp(tm, creds)
	token, _, err := tm.GenerateToken("u@example.com", domain.RoleUser)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMiddlewareRejects(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	creds := stubCredentials{"u@example.com": {Email: "u@example.com", Role: domain.RoleUser}}
	app := newProtectedApp(tm, creds, domain.RoleAdmin)

	userToken, _, _ := tm.GenerateToken("u@example.com", domain.RoleUser)
	ghostToken, _, _ := tm.GenerateToken("ghost@example.com", domain.RoleUser)
	spoofToken, _, _ := tm.GenerateToken("u@example.com", domain.RoleAdmin)

	cases := map[string]struct {
		header string
		status int
	}{
		"missing":      {"", http.StatusUnauthorized},
		"malformed":    {"Token abc", http.StatusUnauthorized},
		"garbage":      {"Bearer abc", http.StatusUnauthorized},
		"unknown user": {"Bearer " + ghostToken, http.StatusUnauthorized},
		"role spoof":   {"Bearer " + spoofToken, http.StatusUnauthorized},
		"wrong role":   {"Bearer " + userToken, http.StatusForbidden},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
