package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/DromeProduto/DromeBoard/domain/directory"
	"github.com/DromeProduto/DromeBoard/ports"
)

// UnitStore implements ports.UnitStore using SQLite.
type UnitStore struct {
	db *DB
}

// NewUnitStore creates a new SQLite unit store.
func NewUnitStore(db *DB) *UnitStore {
	return &UnitStore{db: db}
}

const unitColumns = `
	u.id, u.name, u.code, u.address, u.phone, u.email, u.is_active, u.created_at, u.updated_at,
	(SELECT GROUP_CONCAT(um.module_id, ',') FROM unit_modules um WHERE um.unit_id = u.id AND um.is_active = 1)`

// List returns every unit, active first, then by name.
func (s *UnitStore) List(ctx context.Context) ([]directory.Unit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+unitColumns+`
		FROM units u
		ORDER BY u.is_active DESC, u.name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []directory.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// Get retrieves a unit by ID.
func (s *UnitStore) Get(ctx context.Context, id string) (directory.Unit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+unitColumns+`
		FROM units u
		WHERE u.id = ?
	`, id)
	u, err := scanUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Unit{}, ErrNotFound
	}
	return u, err
}

// Create stores a new unit and its enabled modules in one transaction.
func (s *UnitStore) Create(ctx context.Context, u directory.Unit) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO units (id, name, code, address, phone, email, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, u.ID, u.Name, u.Code, u.Address, u.Phone, u.Email, u.Active, u.CreatedAt, u.UpdatedAt)
		if err != nil {
			if isUniqueConstraintError(err) {
				return ErrDuplicate
			}
			return err
		}
		return insertUnitModules(ctx, tx, u.ID, u.EnabledModules, u.CreatedAt)
	})
}

// Update modifies a unit and replaces its enabled modules.
func (s *UnitStore) Update(ctx context.Context, u directory.Unit) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE units
			SET name = ?, code = ?, address = ?, phone = ?, email = ?, is_active = ?, updated_at = ?
			WHERE id = ?
		`, u.Name, u.Code, u.Address, u.Phone, u.Email, u.Active, u.UpdatedAt, u.ID)
		if err != nil {
			if isUniqueConstraintError(err) {
				return ErrDuplicate
			}
			return err
		}
		if err := affected(res); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM unit_modules WHERE unit_id = ?`, u.ID); err != nil {
			return err
		}
		return insertUnitModules(ctx, tx, u.ID, u.EnabledModules, u.UpdatedAt)
	})
}

// Deactivate soft-deletes a unit and removes its module links.
func (s *UnitStore) Deactivate(ctx context.Context, id string, at time.Time) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE units SET is_active = 0, updated_at = ? WHERE id = ?
		`, at, id)
		if err != nil {
			return err
		}
		if err := affected(res); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM unit_modules WHERE unit_id = ?`, id)
		return err
	})
}

// CountActiveUsers returns how many active users are assigned to the unit.
func (s *UnitStore) CountActiveUsers(ctx context.Context, id string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM user_units uu
		JOIN users u ON u.id = uu.user_id
		WHERE uu.unit_id = ? AND uu.is_active = 1 AND u.is_active = 1
	`, id).Scan(&n)
	return n, err
}

// SetModule enables or disables one module for a unit.
func (s *UnitStore) SetModule(ctx context.Context, unitID, moduleID string, active bool, at time.Time) error {
	var enabledAt, disabledAt sql.NullTime
	if active {
		enabledAt = sql.NullTime{Time: at, Valid: true}
	} else {
		disabledAt = sql.NullTime{Time: at, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO unit_modules (unit_id, module_id, is_active, enabled_at, disabled_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (unit_id, module_id) DO UPDATE SET
			is_active = excluded.is_active,
			enabled_at = COALESCE(excluded.enabled_at, unit_modules.enabled_at),
			disabled_at = excluded.disabled_at
	`, unitID, moduleID, active, enabledAt, disabledAt, at)
	if isForeignKeyError(err) {
		return ErrNotFound
	}
	return err
}

// Members lists the active users assigned to a unit, newest assignment first.
func (s *UnitStore) Members(ctx context.Context, unitID string) ([]directory.UnitMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`, uu.created_at, uu.assigned_by
		FROM users u
		LEFT JOIN roles r ON r.id = u.role_id
		JOIN user_units uu ON uu.user_id = u.id
		WHERE uu.unit_id = ? AND uu.is_active = 1 AND u.is_active = 1
		ORDER BY uu.created_at DESC
	`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []directory.UnitMember
	for rows.Next() {
		var m directory.UnitMember
		dest := append(userDest(&m.User), &m.AssignedAt, &m.AssignedBy)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		finishUser(&m.User)
		members = append(members, m)
	}
	return members, rows.Err()
}

func insertUnitModules(ctx context.Context, tx *sql.Tx, unitID string, moduleIDs []string, at time.Time) error {
	for _, mid := range moduleIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO unit_modules (unit_id, module_id, is_active, enabled_at, created_at)
			VALUES (?, ?, 1, ?, ?)
		`, unitID, mid, at, at)
		if err != nil {
			if isForeignKeyError(err) {
				return ErrNotFound
			}
			if isUniqueConstraintError(err) {
				continue
			}
			return err
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUnit(row scanner) (directory.Unit, error) {
	var u directory.Unit
	var modules sql.NullString
	err := row.Scan(&u.ID, &u.Name, &u.Code, &u.Address, &u.Phone, &u.Email, &u.Active,
		&u.CreatedAt, &u.UpdatedAt, &modules)
	if err != nil {
		return directory.Unit{}, err
	}
	u.EnabledModules = splitList(modules, ",")
	return u, nil
}

// Ensure interface compliance.
var _ ports.UnitStore = (*UnitStore)(nil)
