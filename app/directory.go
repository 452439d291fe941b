package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DromeProduto/DromeBoard/core/cache"
	"github.com/DromeProduto/DromeBoard/domain/directory"
	"github.com/DromeProduto/DromeBoard/ports"
	"github.com/rs/zerolog"
)

// Cache keys of the directory service.
const (
	keyUnits             = "units"
	keyRoles             = "roles"
	keyUsersPrefix       = "users:"      // + unit id, "" = all
	keyMembersPrefix     = "unit_users:" // + unit id
	keyModules           = "modules"
	keyUnitModulesPrefix = "modules:unit:" // + unit id
)

// ChangeFunc is told which API resources a write touched, e.g. "/units".
type ChangeFunc func(resources ...string)

// UnitInput is the editable part of a unit.
type UnitInput struct {
	Name    string
	Code    string
	Address string
	Phone   string
	Email   string
	Modules []string
}

// UserInput is the editable part of a user. On update an empty Password
// keeps the current one and a nil UnitIDs keeps the current assignments.
type UserInput struct {
	Name     string
	Email    string
	Phone    string
	RoleID   string
	Password string
	UnitIDs  *[]string
}

// DirectoryDeps contains dependencies for the directory service.
type DirectoryDeps struct {
	Units           ports.UnitStore
	Users           ports.UserStore
	Roles           ports.RoleStore
	Modules         ports.ModuleStore
	Cache           *cache.Cache
	Clock           ports.Clock
	IDs             ports.IDGenerator
	Hasher          ports.Hasher
	DefaultPassword string     // "" = directory.DefaultPassword
	Changed         ChangeFunc // optional
	Logger          zerolog.Logger
}

// DirectoryService manages units, users, roles and module enablement.
// Reads are served cache-aside from the data and modules regions. Returned
// slices are shared with the cache and must not be modified.
type DirectoryService struct {
	units       ports.UnitStore
	users       ports.UserStore
	roles       ports.RoleStore
	modules     ports.ModuleStore
	cache       *cache.Cache
	clock       ports.Clock
	ids         ports.IDGenerator
	hasher      ports.Hasher
	defaultPass string
	changed     ChangeFunc
	logger      zerolog.Logger
}

// NewDirectoryService creates a new directory service.
func NewDirectoryService(d DirectoryDeps) *DirectoryService {
	pass := d.DefaultPassword
	if pass == "" {
		pass = directory.DefaultPassword
	}
	changed := d.Changed
	if changed == nil {
		changed = func(...string) {}
	}
	return &DirectoryService{
		units:       d.Units,
		users:       d.Users,
		roles:       d.Roles,
		modules:     d.Modules,
		cache:       d.Cache,
		clock:       d.Clock,
		ids:         d.IDs,
		hasher:      d.Hasher,
		defaultPass: pass,
		changed:     changed,
		logger:      d.Logger.With().Str("component", "directory").Logger(),
	}
}

// -----------------------------------------------------------------------------
// Units
// -----------------------------------------------------------------------------

// ListUnits returns every unit, active first.
func (s *DirectoryService) ListUnits(ctx context.Context) ([]directory.Unit, error) {
	return cache.Remember(s.cache, cache.RegionData, keyUnits, 0, func() ([]directory.Unit, error) {
		return s.units.List(ctx)
	})
}

// GetUnit returns one unit.
func (s *DirectoryService) GetUnit(ctx context.Context, id string) (directory.Unit, error) {
	return s.units.Get(ctx, id)
}

// CreateUnit stores a new active unit and enables the given modules.
func (s *DirectoryService) CreateUnit(ctx context.Context, in UnitInput) (directory.Unit, error) {
	now := s.clock.Now()
	u := directory.NormalizeUnit(directory.Unit{
		ID:             s.ids.New(),
		Name:           in.Name,
		Code:           in.Code,
		Address:        in.Address,
		Phone:          in.Phone,
		Email:          in.Email,
		Active:         true,
		EnabledModules: dedupe(in.Modules),
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err := directory.ValidateUnit(u); err != nil {
		return directory.Unit{}, err
	}

	if err := s.units.Create(ctx, u); err != nil {
		return directory.Unit{}, referenceErr(err)
	}
	s.unitsChanged(u.ID)
	s.logger.Info().Str("unit_id", u.ID).Str("code", u.Code).Msg("unit created")
	return u, nil
}

// UpdateUnit replaces a unit's fields and enabled modules.
func (s *DirectoryService) UpdateUnit(ctx context.Context, id string, in UnitInput) (directory.Unit, error) {
	u, err := s.units.Get(ctx, id)
	if err != nil {
		return directory.Unit{}, err
	}
	u.Name, u.Code, u.Address, u.Phone, u.Email = in.Name, in.Code, in.Address, in.Phone, in.Email
	u.EnabledModules = dedupe(in.Modules)
	u.UpdatedAt = s.clock.Now()
	u = directory.NormalizeUnit(u)
	if err := directory.ValidateUnit(u); err != nil {
		return directory.Unit{}, err
	}

	if err := s.units.Update(ctx, u); err != nil {
		return directory.Unit{}, referenceErr(err)
	}
	s.unitsChanged(u.ID)
	return u, nil
}

// DeleteUnit deactivates a unit and disables its modules. It is refused with
// ErrUnitHasUsers while active users are assigned to the unit.
func (s *DirectoryService) DeleteUnit(ctx context.Context, id string) error {
	if _, err := s.units.Get(ctx, id); err != nil {
		return err
	}
	n, err := s.units.CountActiveUsers(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %d assigned", ErrUnitHasUsers, n)
	}

	if err := s.units.Deactivate(ctx, id, s.clock.Now()); err != nil {
		return err
	}
	s.unitsChanged(id)
	s.logger.Info().Str("unit_id", id).Msg("unit deactivated")
	return nil
}

// ToggleUnitModule enables or disables one module for a unit.
func (s *DirectoryService) ToggleUnitModule(ctx context.Context, unitID, moduleID string, active bool) error {
	if err := s.units.SetModule(ctx, unitID, moduleID, active, s.clock.Now()); err != nil {
		return err
	}
	s.unitsChanged(unitID)
	s.logger.Info().Str("unit_id", unitID).Str("module_id", moduleID).Bool("active", active).Msg("unit module toggled")
	return nil
}

// UnitUsers lists the active users assigned to a unit. An unknown unit has
// no users.
func (s *DirectoryService) UnitUsers(ctx context.Context, unitID string) ([]directory.UnitMember, error) {
	return cache.Remember(s.cache, cache.RegionData, keyMembersPrefix+unitID, 0, func() ([]directory.UnitMember, error) {
		return s.units.Members(ctx, unitID)
	})
}

func (s *DirectoryService) unitsChanged(unitID string) {
	s.cache.Delete(cache.RegionData, keyUnits)
	s.cache.Delete(cache.RegionData, keyMembersPrefix+unitID)
	s.cache.DeletePrefix(cache.RegionData, keyUsersPrefix)
	s.cache.Delete(cache.RegionModules, keyUnitModulesPrefix+unitID)
	s.changed("/units", "/users", "/modules")
}

// -----------------------------------------------------------------------------
// Users
// -----------------------------------------------------------------------------

// ListUsers returns users, optionally restricted to one unit.
func (s *DirectoryService) ListUsers(ctx context.Context, unitID string) ([]directory.User, error) {
	return cache.Remember(s.cache, cache.RegionData, keyUsersPrefix+unitID, 0, func() ([]directory.User, error) {
		return s.users.List(ctx, unitID)
	})
}

// GetUser returns one user.
func (s *DirectoryService) GetUser(ctx context.Context, id string) (directory.User, error) {
	return s.users.Get(ctx, id)
}

// CreateUser stores an active user. Without a password the default one is
// used. actorID is recorded as the assigner of the units.
func (s *DirectoryService) CreateUser(ctx context.Context, in UserInput, actorID string) (directory.User, error) {
	password := in.Password
	if password == "" {
		password = s.defaultPass
	}
	if err := directory.ValidatePassword(password); err != nil {
		return directory.User{}, err
	}

	now := s.clock.Now()
	u := directory.NormalizeUser(directory.User{
		ID:        s.ids.New(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		RoleID:    in.RoleID,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if in.UnitIDs != nil {
		u.UnitIDs = dedupe(*in.UnitIDs)
	}
	if err := directory.ValidateUser(u); err != nil {
		return directory.User{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return directory.User{}, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash

	if err := s.users.Create(ctx, u, actorID); err != nil {
		return directory.User{}, referenceErr(err)
	}
	s.usersChanged()
	s.logger.Info().Str("user_id", u.ID).Str("email", u.Email).Msg("user created")
	return s.users.Get(ctx, u.ID)
}

// UpdateUser modifies a user, optionally changing its password and units.
func (s *DirectoryService) UpdateUser(ctx context.Context, id string, in UserInput, actorID string) (directory.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return directory.User{}, err
	}
	u.Name, u.Email, u.Phone, u.RoleID = in.Name, in.Email, in.Phone, in.RoleID
	u.UpdatedAt = s.clock.Now()
	u = directory.NormalizeUser(u)
	if err := directory.ValidateUser(u); err != nil {
		return directory.User{}, err
	}

	var hash []byte
	if in.Password != "" {
		if err := directory.ValidatePassword(in.Password); err != nil {
			return directory.User{}, err
		}
		if hash, err = s.hasher.Hash(in.Password); err != nil {
			return directory.User{}, fmt.Errorf("hash password: %w", err)
		}
	}

	var unitIDs []string
	if in.UnitIDs != nil {
		unitIDs = dedupe(*in.UnitIDs)
		if unitIDs == nil {
			unitIDs = []string{}
		}
	}
	if err := s.users.Update(ctx, u, unitIDs, actorID); err != nil {
		return directory.User{}, referenceErr(err)
	}
	if hash != nil {
		if err := s.users.SetPassword(ctx, id, hash, u.UpdatedAt); err != nil {
			return directory.User{}, err
		}
	}
	s.usersChanged()
	return s.users.Get(ctx, id)
}

// DeleteUser deactivates a user.
func (s *DirectoryService) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.Deactivate(ctx, id, s.clock.Now()); err != nil {
		return err
	}
	s.usersChanged()
	s.logger.Info().Str("user_id", id).Msg("user deactivated")
	return nil
}

// ResetPassword sets a new password, or the default one when empty.
func (s *DirectoryService) ResetPassword(ctx context.Context, id, password string) error {
	if password == "" {
		password = s.defaultPass
	}
	if err := directory.ValidatePassword(password); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.SetPassword(ctx, id, hash, s.clock.Now()); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", id).Msg("password reset")
	return nil
}

func (s *DirectoryService) usersChanged() {
	s.cache.DeletePrefix(cache.RegionData, keyUsersPrefix)
	s.cache.DeletePrefix(cache.RegionData, keyMembersPrefix)
	s.cache.DeletePrefix(cache.RegionData, keySessionPrefix)
	s.changed("/users", "/units")
}

// -----------------------------------------------------------------------------
// Roles and modules
// -----------------------------------------------------------------------------

// ListRoles returns every role, highest level first.
func (s *DirectoryService) ListRoles(ctx context.Context) ([]directory.Role, error) {
	return cache.Remember(s.cache, cache.RegionData, keyRoles, time.Hour, func() ([]directory.Role, error) {
		return s.roles.List(ctx)
	})
}

// ListModules returns the active modules in navigation order.
func (s *DirectoryService) ListModules(ctx context.Context) ([]directory.Module, error) {
	return cache.Remember(s.cache, cache.RegionModules, keyModules, 0, func() ([]directory.Module, error) {
		return s.modules.ListActive(ctx)
	})
}

// ModulesByUnit returns the modules enabled for a unit.
func (s *DirectoryService) ModulesByUnit(ctx context.Context, unitID string) ([]directory.Module, error) {
	return cache.Remember(s.cache, cache.RegionModules, keyUnitModulesPrefix+unitID, 0, func() ([]directory.Module, error) {
		return s.modules.ListByUnit(ctx, unitID)
	})
}

// WarmupItems lists the directory reads worth preloading at startup.
func (s *DirectoryService) WarmupItems() []cache.WarmupItem {
	return []cache.WarmupItem{
		{Region: cache.RegionData, Key: keyUnits, Load: func(ctx context.Context) (any, error) { return s.units.List(ctx) }},
		{Region: cache.RegionData, Key: keyUsersPrefix, Load: func(ctx context.Context) (any, error) { return s.users.List(ctx, "") }},
		{Region: cache.RegionData, Key: keyRoles, TTL: time.Hour, Load: func(ctx context.Context) (any, error) { return s.roles.List(ctx) }},
		{Region: cache.RegionModules, Key: keyModules, Load: func(ctx context.Context) (any, error) { return s.modules.ListActive(ctx) }},
	}
}

// referenceErr turns a store's foreign-key ErrNotFound into ErrUnknownReference.
func referenceErr(err error) error {
	if errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrUnknownReference, err)
	}
	return err
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
