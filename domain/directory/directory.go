// Package directory holds the organizational value types of the dashboard:
// units, users, roles and the modules enabled per unit.
// This package has NO dependencies on I/O or external packages.
package directory

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// DefaultPassword is assigned to users created without an explicit password.
const DefaultPassword = "123456"

// MinPasswordLength is the shortest password accepted on create or reset.
const MinPasswordLength = 6

// Validation errors. Callers map these to 400 responses.
var (
	ErrNameRequired  = errors.New("name is required")
	ErrCodeRequired  = errors.New("code is required")
	ErrInvalidCode   = errors.New("code may only contain A-Z, 0-9, '-' and '_'")
	ErrEmailRequired = errors.New("email is required")
	ErrInvalidEmail  = errors.New("invalid email format")
	ErrRoleRequired  = errors.New("role is required")
	ErrWeakPassword  = errors.New("password must be at least 6 characters")
)

// Role levels seeded by the initial migration.
const (
	LevelUser    = 10
	LevelManager = 50
	LevelAdmin   = 100
)

// Role ids seeded by the initial migration.
const (
	RoleAdminID   = "role_admin"
	RoleManagerID = "role_manager"
	RoleUserID    = "role_user"
)

// Role is a named permission level.
type Role struct {
	ID          string
	Name        string
	DisplayName string
	Level       int
	Description string
}

// Unit is an organizational unit (branch, store, department).
type Unit struct {
	ID             string
	Name           string
	Code           string
	Address        string
	Phone          string
	Email          string
	Active         bool
	EnabledModules []string // module ids enabled for the unit
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// User is a dashboard account.
type User struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	PasswordHash []byte
	RoleID       string
	RoleName     string // display name, filled on reads
	RoleLevel    int    // filled on reads
	Active       bool
	LastLogin    *time.Time
	UnitIDs      []string // active unit assignments, filled on reads
	UnitNames    []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Assignment links a user to a unit.
type Assignment struct {
	UserID     string
	UnitID     string
	AssignedBy string
	Active     bool
	CreatedAt  time.Time
}

// UnitMember is a user as seen from a unit listing.
type UnitMember struct {
	User       User
	AssignedAt time.Time
	AssignedBy string
}

// Module is a dashboard module known to the backend.
type Module struct {
	ID           string
	Name         string
	DisplayName  string
	Description  string
	Icon         string
	RequiredRole string
	OrderIndex   int
	Route        string
	Active       bool
	UnitActive   bool // filled when listing modules of a unit
}

var codeRegex = regexp.MustCompile(`^[A-Z0-9_-]+$`)
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NormalizeUnit trims fields and upper-cases the code.
func NormalizeUnit(u Unit) Unit {
	u.Name = strings.TrimSpace(u.Name)
	u.Code = strings.ToUpper(strings.TrimSpace(u.Code))
	u.Address = strings.TrimSpace(u.Address)
	u.Phone = strings.TrimSpace(u.Phone)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return u
}

// ValidateUnit checks a normalized unit.
func ValidateUnit(u Unit) error {
	if u.Name == "" {
		return ErrNameRequired
	}
	if u.Code == "" {
		return ErrCodeRequired
	}
	if !codeRegex.MatchString(u.Code) {
		return ErrInvalidCode
	}
	if u.Email != "" && !emailRegex.MatchString(u.Email) {
		return ErrInvalidEmail
	}
	return nil
}

// NormalizeUser trims fields and lowercases the email.
func NormalizeUser(u User) User {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Phone = strings.TrimSpace(u.Phone)
	u.RoleID = strings.TrimSpace(u.RoleID)
	return u
}

// ValidateUser checks a normalized user.
func ValidateUser(u User) error {
	if u.Name == "" {
		return ErrNameRequired
	}
	if u.Email == "" {
		return ErrEmailRequired
	}
	if !emailRegex.MatchString(u.Email) {
		return ErrInvalidEmail
	}
	if u.RoleID == "" {
		return ErrRoleRequired
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(p string) error {
	if len(p) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// IsValidation reports whether err is one of this package's validation errors.
func IsValidation(err error) bool {
	for _, e := range []error{
		ErrNameRequired, ErrCodeRequired, ErrInvalidCode,
		ErrEmailRequired, ErrInvalidEmail, ErrRoleRequired, ErrWeakPassword,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
