// Package auth provides session value types and pure validation functions.
// This package has NO dependencies on I/O or external packages.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// Session represents a logged-in dashboard session (immutable value type).
type Session struct {
	ID        string
	UserID    string
	Email     string
	IPAddress string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// GenerateSession creates a new session starting at now.
func GenerateSession(userID, email, ipAddress, userAgent string, now time.Time, expiresIn time.Duration) Session {
	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		panic("crypto/rand failed")
	}

	now = now.UTC()
	return Session{
		ID:        "sess_" + hex.EncodeToString(idBytes),
		UserID:    userID,
		Email:     email,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		ExpiresAt: now.Add(expiresIn),
		CreatedAt: now,
	}
}

// IsExpired returns true if the session has expired at the given instant.
func (s Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// LoginRequest represents a login request (value type).
type LoginRequest struct {
	Email    string
	Password string
}

// LoginResult represents the outcome of login validation.
type LoginResult struct {
	Valid  bool
	Errors map[string]string // field -> error message
}

// ValidateLogin validates a login request (pure function).
func ValidateLogin(req LoginRequest) LoginResult {
	errs := make(map[string]string)

	email := strings.TrimSpace(req.Email)
	switch {
	case email == "":
		errs["email"] = "Email is required"
	case !IsValidEmail(email):
		errs["email"] = "Invalid email format"
	}

	if strings.TrimSpace(req.Password) == "" {
		errs["password"] = "Password is required"
	}

	return LoginResult{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IsValidEmail reports whether email looks like a deliverable address.
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(strings.TrimSpace(email))
}

// NormalizeEmail lowercases and trims an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
