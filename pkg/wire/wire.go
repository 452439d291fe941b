// Package wire holds the JSON shapes exchanged over the /api endpoints and
// their conversions to and from the domain types. Both the HTTP handlers and
// the remote client use it, so the two sides cannot drift apart.
package wire

import (
	"time"

	"github.com/DromeProduto/DromeBoard/domain/dashboard"
	"github.com/DromeProduto/DromeBoard/domain/directory"
)

// Role is a permission role.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Level       int    `json:"level"`
	Description string `json:"description,omitempty"`
}

// Unit is an organizational unit.
type Unit struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Code           string    `json:"code"`
	Address        string    `json:"address,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Email          string    `json:"email,omitempty"`
	Active         bool      `json:"is_active"`
	EnabledModules []string  `json:"enabled_modules"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// User is a dashboard account. The password hash never leaves the server.
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	RoleID    string     `json:"role_id"`
	RoleName  string     `json:"role_name,omitempty"`
	RoleLevel int        `json:"role_level,omitempty"`
	Active    bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	UnitIDs   []string   `json:"unit_ids"`
	UnitNames []string   `json:"unit_names"`
	CreatedAt time.Time  `json:"created_at"`
}

// UnitMember is a user listed under a unit.
type UnitMember struct {
	User
	AssignedAt time.Time `json:"assigned_at"`
	AssignedBy string    `json:"assigned_by,omitempty"`
}

// Module is a dashboard module known to the backend.
type Module struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DisplayName  string `json:"display_name"`
	Description  string `json:"description,omitempty"`
	Icon         string `json:"icon,omitempty"`
	RequiredRole string `json:"required_role,omitempty"`
	OrderIndex   int    `json:"order_index"`
	Route        string `json:"route,omitempty"`
	Active       bool   `json:"is_active"`
	UnitActive   bool   `json:"unit_active,omitempty"`
}

// Result is one stored upload.
type Result struct {
	ID           string           `json:"id"`
	UnitID       string           `json:"unit_id"`
	UserID       string           `json:"user_id"`
	FileName     string           `json:"file_name"`
	RowCount     int              `json:"row_count"`
	Status       string           `json:"status"`
	ProcessingMS int64            `json:"processing_ms"`
	Rows         []map[string]any `json:"rows,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionInfo describes the authenticated caller.
type SessionInfo struct {
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// UnitRequest is the body of POST /units and PUT /units/{id}.
type UnitRequest struct {
	Name    string   `json:"name"`
	Code    string   `json:"code"`
	Address string   `json:"address"`
	Phone   string   `json:"phone"`
	Email   string   `json:"email"`
	Modules []string `json:"modules"`
}

// UserRequest is the body of POST /users and PUT /users/{id}.
// On update a nil UnitIDs keeps the current assignments and an empty
// Password keeps the current password.
type UserRequest struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Phone    string    `json:"phone"`
	RoleID   string    `json:"role_id"`
	Password string    `json:"password,omitempty"`
	UnitIDs  *[]string `json:"unit_ids,omitempty"`
}

// ToggleModuleRequest is the body of POST /units/{id}/modules/{moduleID}.
type ToggleModuleRequest struct {
	Active bool `json:"active"`
}

// ResetPasswordRequest is the body of POST /users/{id}/reset-password.
// An empty password resets to the default password.
type ResetPasswordRequest struct {
	Password string `json:"password,omitempty"`
}

// UploadRequest is the body of POST /results. Rows are parsed on the client.
type UploadRequest struct {
	UnitID       string           `json:"unit_id"`
	FileName     string           `json:"file_name"`
	ProcessingMS int64            `json:"processing_ms"`
	Rows         []map[string]any `json:"rows"`
}

// FromRole converts a domain role.
func FromRole(r directory.Role) Role {
	return Role{ID: r.ID, Name: r.Name, DisplayName: r.DisplayName, Level: r.Level, Description: r.Description}
}

// FromRoles converts a slice of roles. The result is never nil.
func FromRoles(rs []directory.Role) []Role {
	out := make([]Role, 0, len(rs))
	for _, r := range rs {
		out = append(out, FromRole(r))
	}
	return out
}

// FromUnit converts a domain unit.
func FromUnit(u directory.Unit) Unit {
	mods := u.EnabledModules
	if mods == nil {
		mods = []string{}
	}
	return Unit{
		ID: u.ID, Name: u.Name, Code: u.Code, Address: u.Address, Phone: u.Phone, Email: u.Email,
		Active: u.Active, EnabledModules: mods, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}
}

// FromUnits converts a slice of units. The result is never nil.
func FromUnits(us []directory.Unit) []Unit {
	out := make([]Unit, 0, len(us))
	for _, u := range us {
		out = append(out, FromUnit(u))
	}
	return out
}

// Domain converts back to the domain type.
func (u Unit) Domain() directory.Unit {
	return directory.Unit{
		ID: u.ID, Name: u.Name, Code: u.Code, Address: u.Address, Phone: u.Phone, Email: u.Email,
		Active: u.Active, EnabledModules: u.EnabledModules, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}
}

// FromUser converts a domain user.
func FromUser(u directory.User) User {
	ids, names := u.UnitIDs, u.UnitNames
	if ids == nil {
		ids = []string{}
	}
	if names == nil {
		names = []string{}
	}
	return User{
		ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone,
		RoleID: u.RoleID, RoleName: u.RoleName, RoleLevel: u.RoleLevel,
		Active: u.Active, LastLogin: u.LastLogin,
		UnitIDs: ids, UnitNames: names, CreatedAt: u.CreatedAt,
	}
}

// FromUsers converts a slice of users. The result is never nil.
func FromUsers(us []directory.User) []User {
	out := make([]User, 0, len(us))
	for _, u := range us {
		out = append(out, FromUser(u))
	}
	return out
}

// Domain converts back to the domain type.
func (u User) Domain() directory.User {
	return directory.User{
		ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone,
		RoleID: u.RoleID, RoleName: u.RoleName, RoleLevel: u.RoleLevel,
		Active: u.Active, LastLogin: u.LastLogin,
		UnitIDs: u.UnitIDs, UnitNames: u.UnitNames, CreatedAt: u.CreatedAt,
	}
}

// FromMembers converts unit members. The result is never nil.
func FromMembers(ms []directory.UnitMember) []UnitMember {
	out := make([]UnitMember, 0, len(ms))
	for _, m := range ms {
		out = append(out, UnitMember{User: FromUser(m.User), AssignedAt: m.AssignedAt, AssignedBy: m.AssignedBy})
	}
	return out
}

// Domain converts back to the domain type.
func (m UnitMember) Domain() directory.UnitMember {
	return directory.UnitMember{User: m.User.Domain(), AssignedAt: m.AssignedAt, AssignedBy: m.AssignedBy}
}

// FromModule converts a domain module.
func FromModule(m directory.Module) Module {
	return Module{
		ID: m.ID, Name: m.Name, DisplayName: m.DisplayName, Description: m.Description,
		Icon: m.Icon, RequiredRole: m.RequiredRole, OrderIndex: m.OrderIndex, Route: m.Route,
		Active: m.Active, UnitActive: m.UnitActive,
	}
}

// FromModules converts a slice of modules. The result is never nil.
func FromModules(ms []directory.Module) []Module {
	out := make([]Module, 0, len(ms))
	for _, m := range ms {
		out = append(out, FromModule(m))
	}
	return out
}

// Domain converts back to the domain type.
func (m Module) Domain() directory.Module {
	return directory.Module{
		ID: m.ID, Name: m.Name, DisplayName: m.DisplayName, Description: m.Description,
		Icon: m.Icon, RequiredRole: m.RequiredRole, OrderIndex: m.OrderIndex, Route: m.Route,
		Active: m.Active, UnitActive: m.UnitActive,
	}
}

// FromResult converts a stored upload.
func FromResult(r dashboard.Result) Result {
	return Result{
		ID: r.ID, UnitID: r.UnitID, UserID: r.UserID, FileName: r.FileName, RowCount: r.RowCount,
		Status: r.Status, ProcessingMS: r.ProcessingMS, Rows: r.Rows, CreatedAt: r.CreatedAt,
	}
}

// FromResults converts a slice of uploads. The result is never nil.
func FromResults(rs []dashboard.Result) []Result {
	out := make([]Result, 0, len(rs))
	for _, r := range rs {
		out = append(out, FromResult(r))
	}
	return out
}

// Domain converts back to the domain type.
func (r Result) Domain() dashboard.Result {
	return dashboard.Result{
		ID: r.ID, UnitID: r.UnitID, UserID: r.UserID, FileName: r.FileName, RowCount: r.RowCount,
		Status: r.Status, ProcessingMS: r.ProcessingMS, Rows: r.Rows, CreatedAt: r.CreatedAt,
	}
}
