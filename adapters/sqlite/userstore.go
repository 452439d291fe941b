package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/DromeProduto/DromeBoard/domain/directory"
	"github.com/DromeProduto/DromeBoard/ports"
)

// UserStore implements ports.UserStore using SQLite.
type UserStore struct {
	db *DB
}

// NewUserStore creates a new SQLite user store.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `
	u.id, u.name, u.email, u.phone, u.password_hash, u.role_id,
	COALESCE(r.display_name, ''), COALESCE(r.level, 0), u.is_active, u.last_login,
	u.created_at, u.updated_at`

// userDest returns scan destinations for userColumns.
func userDest(u *directory.User) []any {
	u.LastLogin = new(time.Time)
	return []any{
		&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.RoleID,
		&u.RoleName, &u.RoleLevel, &u.Active, nullTimeDest{u.LastLogin},
		&u.CreatedAt, &u.UpdatedAt,
	}
}

// finishUser clears a LastLogin that scanned as NULL.
func finishUser(u *directory.User) {
	if u.LastLogin != nil && u.LastLogin.IsZero() {
		u.LastLogin = nil
	}
}

// nullTimeDest scans a nullable DATETIME into a *time.Time, leaving it zero on NULL.
type nullTimeDest struct{ t *time.Time }

func (d nullTimeDest) Scan(src any) error {
	var nt sql.NullTime
	if err := nt.Scan(src); err != nil {
		return err
	}
	if nt.Valid {
		*d.t = nt.Time
	}
	return nil
}

// Get retrieves a user by ID, with its unit assignments.
func (s *UserStore) Get(ctx context.Context, id string) (directory.User, error) {
	return s.getOne(ctx, `u.id = ?`, id)
}

// GetByEmail retrieves a user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (directory.User, error) {
	return s.getOne(ctx, `u.email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *UserStore) getOne(ctx context.Context, where string, arg any) (directory.User, error) {
	var u directory.User
	err := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users u
		LEFT JOIN roles r ON r.id = u.role_id
		WHERE `+where, arg).Scan(userDest(&u)...)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, ErrNotFound
	}
	if err != nil {
		return directory.User{}, err
	}
	finishUser(&u)

	users := []directory.User{u}
	if err := s.attachUnits(ctx, users, u.ID); err != nil {
		return directory.User{}, err
	}
	return users[0], nil
}

// List returns users, newest first. A non-empty unitID restricts the list to
// users actively assigned to that unit.
func (s *UserStore) List(ctx context.Context, unitID string) ([]directory.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		LEFT JOIN roles r ON r.id = u.role_id`
	var args []any
	if unitID != "" {
		query += `
		WHERE u.id IN (SELECT user_id FROM user_units WHERE unit_id = ? AND is_active = 1)`
		args = append(args, unitID)
	}
	query += `
		ORDER BY u.created_at DESC, u.name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []directory.User
	for rows.Next() {
		var u directory.User
		if err := rows.Scan(userDest(&u)...); err != nil {
			return nil, err
		}
		finishUser(&u)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachUnits(ctx, users, ""); err != nil {
		return nil, err
	}
	return users, nil
}

// attachUnits fills UnitIDs and UnitNames. userID narrows the query when set.
func (s *UserStore) attachUnits(ctx context.Context, users []directory.User, userID string) error {
	if len(users) == 0 {
		return nil
	}
	query := `
		SELECT uu.user_id, uu.unit_id, un.name
		FROM user_units uu
		JOIN units un ON un.id = uu.unit_id
		WHERE uu.is_active = 1`
	var args []any
	if userID != "" {
		query += ` AND uu.user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY un.name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	idx := make(map[string]int, len(users))
	for i, u := range users {
		idx[u.ID] = i
	}
	for rows.Next() {
		var uid, unitID, name string
		if err := rows.Scan(&uid, &unitID, &name); err != nil {
			return err
		}
		if i, ok := idx[uid]; ok {
			users[i].UnitIDs = append(users[i].UnitIDs, unitID)
			users[i].UnitNames = append(users[i].UnitNames, name)
		}
	}
	return rows.Err()
}

// Create stores a new user and its unit assignments.
func (s *UserStore) Create(ctx context.Context, u directory.User, assignedBy string) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, name, email, password_hash, phone, role_id, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, u.ID, u.Name, u.Email, u.PasswordHash, u.Phone, u.RoleID, u.Active, u.CreatedAt, u.UpdatedAt)
		if err != nil {
			if isUniqueConstraintError(err) {
				return ErrDuplicate
			}
			if isForeignKeyError(err) {
				return ErrNotFound
			}
			return err
		}
		return assignUnits(ctx, tx, u.ID, u.UnitIDs, assignedBy, u.CreatedAt)
	})
}

// Update modifies profile fields. A nil unitIDs keeps assignments unchanged;
// an empty non-nil slice removes them all.
func (s *UserStore) Update(ctx context.Context, u directory.User, unitIDs []string, assignedBy string) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE users
			SET name = ?, email = ?, phone = ?, role_id = ?, is_active = ?, updated_at = ?
			WHERE id = ?
		`, u.Name, u.Email, u.Phone, u.RoleID, u.Active, u.UpdatedAt, u.ID)
		if err != nil {
			if isUniqueConstraintError(err) {
				return ErrDuplicate
			}
			if isForeignKeyError(err) {
				return ErrNotFound
			}
			return err
		}
		if err := affected(res); err != nil {
			return err
		}
		if unitIDs == nil {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM user_units WHERE user_id = ?`, u.ID); err != nil {
			return err
		}
		return assignUnits(ctx, tx, u.ID, unitIDs, assignedBy, u.UpdatedAt)
	})
}

// SetPassword replaces the password hash.
func (s *UserStore) SetPassword(ctx context.Context, id string, hash []byte, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?
	`, hash, at, id)
	if err != nil {
		return err
	}
	return affected(res)
}

// Deactivate soft-deletes a user.
func (s *UserStore) Deactivate(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_active = 0, updated_at = ? WHERE id = ?
	`, at, id)
	if err != nil {
		return err
	}
	return affected(res)
}

// TouchLogin records a successful login.
func (s *UserStore) TouchLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET last_login = ? WHERE id = ?
	`, at, id)
	if err != nil {
		return err
	}
	return affected(res)
}

func assignUnits(ctx context.Context, tx *sql.Tx, userID string, unitIDs []string, assignedBy string, at time.Time) error {
	for _, unitID := range unitIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_units (user_id, unit_id, assigned_by, is_active, created_at)
			VALUES (?, ?, ?, 1, ?)
		`, userID, unitID, assignedBy, at)
		if err != nil {
			if isUniqueConstraintError(err) {
				continue
			}
			if isForeignKeyError(err) {
				return ErrNotFound
			}
			return err
		}
	}
	return nil
}

// Ensure interface compliance.
var _ ports.UserStore = (*UserStore)(nil)
