package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/DromeProduto/DromeBoard/domain/directory"
	"github.com/DromeProduto/DromeBoard/ports"
)

// RoleStore implements ports.RoleStore using SQLite.
type RoleStore struct {
	db *DB
}

// NewRoleStore creates a new SQLite role store.
func NewRoleStore(db *DB) *RoleStore {
	return &RoleStore{db: db}
}

// List returns all roles, highest level first.
func (s *RoleStore) List(ctx context.Context) ([]directory.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, display_name, level, description
		FROM roles
		ORDER BY level DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []directory.Role
	for rows.Next() {
		var r directory.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.DisplayName, &r.Level, &r.Description); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// GetByName retrieves a role by its name.
func (s *RoleStore) GetByName(ctx context.Context, name string) (directory.Role, error) {
	var r directory.Role
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, display_name, level, description
		FROM roles
		WHERE name = ?
	`, name).Scan(&r.ID, &r.Name, &r.DisplayName, &r.Level, &r.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Role{}, ErrNotFound
	}
	return r, err
}

// ModuleStore implements ports.ModuleStore using SQLite.
type ModuleStore struct {
	db *DB
}

// NewModuleStore creates a new SQLite module store.
func NewModuleStore(db *DB) *ModuleStore {
	return &ModuleStore{db: db}
}

const moduleColumns = `m.id, m.name, m.display_name, m.description, m.icon, m.required_role, m.order_index, m.route, m.is_active`

// ListActive returns active modules in navigation order.
func (s *ModuleStore) ListActive(ctx context.Context) ([]directory.Module, error) {
	return s.query(ctx, `
		SELECT `+moduleColumns+`, 0
		FROM modules m
		WHERE m.is_active = 1
		ORDER BY m.order_index ASC, m.display_name ASC
	`)
}

// ListByUnit returns the active modules enabled for a unit.
func (s *ModuleStore) ListByUnit(ctx context.Context, unitID string) ([]directory.Module, error) {
	return s.query(ctx, `
		SELECT `+moduleColumns+`, um.is_active
		FROM modules m
		JOIN unit_modules um ON um.module_id = m.id AND um.unit_id = ?
		WHERE m.is_active = 1 AND um.is_active = 1
		ORDER BY m.order_index ASC, m.display_name ASC
	`, unitID)
}

func (s *ModuleStore) query(ctx context.Context, query string, args ...any) ([]directory.Module, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mods []directory.Module
	for rows.Next() {
		var m directory.Module
		if err := rows.Scan(&m.ID, &m.Name, &m.DisplayName, &m.Description, &m.Icon,
			&m.RequiredRole, &m.OrderIndex, &m.Route, &m.Active, &m.UnitActive); err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}
	return mods, rows.Err()
}

// Ensure interface compliance.
var (
	_ ports.RoleStore   = (*RoleStore)(nil)
	_ ports.ModuleStore = (*ModuleStore)(nil)
)
