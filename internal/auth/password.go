package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// HashSecurityAnswer hashes a security answer. Answers compare case-insensitively.
func HashSecurityAnswer(answer string, cost int) (string, error) {
	return HashPassword(normalizeAnswer(answer), cost)
}

// CompareSecurityAnswer verifies a security answer.
func CompareSecurityAnswer(hashed, answer string) error {
	return ComparePassword(hashed, normalizeAnswer(answer))
}

func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
