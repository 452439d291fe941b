// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/DromeProduto/DromeBoard/domain/auth"
	"github.com/DromeProduto/DromeBoard/domain/dashboard"
	"github.com/DromeProduto/DromeBoard/domain/directory"
	"github.com/DromeProduto/DromeBoard/domain/ratelimit"
)

// Errors every store implementation reports.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher provides password hashing.
type Hasher interface {
	// Hash generates a hash from a plaintext value.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// UnitStore persists organizational units and the modules enabled for them.
type UnitStore interface {
	// List returns every unit, active first, then by name.
	List(ctx context.Context) ([]directory.Unit, error)

	// Get retrieves a unit by ID.
	Get(ctx context.Context, id string) (directory.Unit, error)

	// Create stores a new unit together with its enabled modules, atomically.
	Create(ctx context.Context, u directory.Unit) error

	// Update modifies a unit and replaces its enabled modules.
	Update(ctx context.Context, u directory.Unit) error

	// Deactivate soft-deletes a unit and disables all its modules.
	Deactivate(ctx context.Context, id string, at time.Time) error

	// CountActiveUsers returns how many active assignments point at the unit.
	CountActiveUsers(ctx context.Context, id string) (int, error)

	// SetModule enables or disables one module for a unit (upsert).
	SetModule(ctx context.Context, unitID, moduleID string, active bool, at time.Time) error

	// Members lists the active users assigned to a unit.
	Members(ctx context.Context, unitID string) ([]directory.UnitMember, error)
}

// UserStore persists dashboard accounts and their unit assignments.
type UserStore interface {
	Get(ctx context.Context, id string) (directory.User, error)
	GetByEmail(ctx context.Context, email string) (directory.User, error)

	// List returns users, optionally restricted to one unit.
	List(ctx context.Context, unitID string) ([]directory.User, error)

	// Create stores a user and its unit assignments.
	Create(ctx context.Context, u directory.User, assignedBy string) error

	// Update modifies profile fields. A nil unitIDs keeps assignments unchanged.
	Update(ctx context.Context, u directory.User, unitIDs []string, assignedBy string) error

	SetPassword(ctx context.Context, id string, hash []byte, at time.Time) error
	Deactivate(ctx context.Context, id string, at time.Time) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

// RoleStore lists permission roles.
type RoleStore interface {
	List(ctx context.Context) ([]directory.Role, error)
	GetByName(ctx context.Context, name string) (directory.Role, error)
}

// ModuleStore lists dashboard modules.
type ModuleStore interface {
	// ListActive returns active modules ordered for navigation.
	ListActive(ctx context.Context) ([]directory.Module, error)

	// ListByUnit returns the active modules enabled for a unit.
	ListByUnit(ctx context.Context, unitID string) ([]directory.Module, error)
}

// SessionStore persists login sessions.
type SessionStore interface {
	Create(ctx context.Context, s auth.Session) error
	Get(ctx context.Context, id string) (auth.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AttemptStore keeps failed-login windows by key.
type AttemptStore interface {
	Get(ctx context.Context, key string) (ratelimit.WindowState, error)
	Set(ctx context.Context, key string, state ratelimit.WindowState) error
	Delete(ctx context.Context, key string) error
}

// ResultQuery selects stored uploads.
type ResultQuery struct {
	From   time.Time // zero = unbounded
	To     time.Time // zero = unbounded
	UnitID string
	UserID string
	Limit  int
}

// ResultStore persists uploaded results.
type ResultStore interface {
	Create(ctx context.Context, r dashboard.Result) error

	// Get returns one upload including its rows.
	Get(ctx context.Context, id string) (dashboard.Result, error)

	// List returns uploads newest first, without rows.
	List(ctx context.Context, q ResultQuery) ([]dashboard.Result, error)
	Summary(ctx context.Context, q ResultQuery) (dashboard.Metrics, error)
}

// -----------------------------------------------------------------------------
// Auth Ports
// -----------------------------------------------------------------------------

// TokenClaims are the verified contents of a session token.
type TokenClaims struct {
	SessionID string
	UserID    string
	Email     string
	Role      string
	ExpiresAt time.Time
}

// TokenService signs and verifies session tokens.
type TokenService interface {
	Issue(s auth.Session, role string) (string, error)
	Verify(token string) (TokenClaims, error)
}
