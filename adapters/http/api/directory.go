package api

import (
	"net/http"

	"github.com/DromeProduto/DromeBoard/app"
	"github.com/DromeProduto/DromeBoard/domain/directory"
	"github.com/DromeProduto/DromeBoard/pkg/envelope"
	"github.com/DromeProduto/DromeBoard/pkg/wire"
	"github.com/go-chi/chi/v5"
)

// -----------------------------------------------------------------------------
// Units
// -----------------------------------------------------------------------------

// ListUnits returns every unit.
//
//	@Summary		List units
//	@Tags			Units
//	@Produce		json
//	@Success		200	{object}	envelope.Response	"data: []wire.Unit"
//	@Security		BearerAuth
//	@Router			/api/units [get]
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.directory.ListUnits(r.Context())
	if err != nil {
		h.writeErr(w, err, "units")
		return
	}
	envelope.WriteData(w, http.StatusOK, wire.FromUnits(units))
}

// CreateUnit creates a unit and enables the listed modules.
//
//	@Summary		Create unit
//	@Tags			Units
//	@Accept			json
//	@Produce		json
//	@Param			request	body		wire.UnitRequest	true	"Unit data"
//	@Success		201		{object}	envelope.Response	"data: wire.Unit"
//	@Failure		400		{object}	envelope.Response
//	@Failure		409		{object}	envelope.Response	"Duplicate code"
//	@Security		BearerAuth
//	@Router			/api/units [post]
func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req wire.UnitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	u, err := h.directory.CreateUnit(r.Context(), unitInput(req))
	if err != nil {
		h.writeErr(w, err, "unit")
		return
	}
	envelope.WriteMessage(w, http.StatusCreated, "Unit created", wire.FromUnit(u))
}

// UpdateUnit replaces a unit's fields and modules.
//
//	@Summary		Update unit
//	@Tags			Units
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Unit ID"
//	@Param			request	body		wire.UnitRequest	true	"Unit data"
//	@Success		200		{object}	envelope.Response	"data: wire.Unit"
//	@Failure		404		{object}	envelope.Response
//	@Security		BearerAuth
//	@Router			/api/units/{id} [put]
func (h *Handler) UpdateUnit(w http.ResponseWriter, r *http.Request) {
	var req wire.UnitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	u, err := h.directory.UpdateUnit(r.Context(), chi.URLParam(r, "id"), unitInput(req))
	if err != nil {
		h.writeErr(w, err, "unit")
		return
	}
	envelope.WriteMessage(w, http.StatusOK, "Unit updated", wire.FromUnit(u))
}

// DeleteUnit deactivates a unit without assigned users.
//
//	@Summary		Delete unit
//	@Tags			Units
//	@Produce		json
//	@Param			id	path		string	true	"Unit ID"
//	@Success		200	{object}	envelope.Response
//	@Failure		409	{object}	envelope.Response	"Unit still has users"
//	@Security		BearerAuth
//	@Router			/api/units/{id} [delete]
func (h *Handler) DeleteUnit(w http.ResponseWriter, r *http.Request) {
	if err := h.directory.DeleteUnit(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeErr(w, err, "unit")
		return
	}
	envelope.WriteMessage(w, http.StatusOK, "Unit deleted", nil)
}

// UnitUsers lists the users assigned to a unit.
//
//	@Summary		Unit users
//	@Tags			Units
//	@Produce		json
//	@Param			id	path		string	true	"Unit ID"
//	@Success		200	{object}	envelope.Response	"data: []wire.UnitMember"
//	@Security		BearerAuth
//	@Router			/api/units/{id}/users [get]
func (h *Handler) UnitUsers(w http.ResponseWriter, r *http.Request) {
	members, err := h.directory.UnitUsers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err, "unit")
		return
	}
	envelope.WriteData(w, http.StatusOK, wire.FromMembers(members))
}

// ToggleUnitModule enables or disables a module for a unit.
//
//	@Summary		Toggle unit module
//	@Tags			Units
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string						true	"Unit ID"
//	@Param			moduleID	path		string						true	"Module ID"
//	@Param			request		body		wire.ToggleModuleRequest	true	"Desired state"
//	@Success		200			{object}	envelope.Response
//	@Failure		404			{object}	envelope.Response
//	@Security		BearerAuth
//	@Router			/api/units/{id}/modules/{moduleID} [post]
func (h *Handler) ToggleUnitModule(w http.ResponseWriter, r *http.Request) {
	var req wire.ToggleModuleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := h.directory.ToggleUnitModule(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "moduleID"), req.Active)
	if err != nil {
		h.writeErr(w, err, "unit or module")
		return
	}
	msg := "Module disabled"
	if req.Active {
		msg = "Module enabled"
	}
	envelope.WriteMessage(w, http.StatusOK, msg, nil)
}

func unitInput(req wire.UnitRequest) app.UnitInput {
	return app.UnitInput{
		Name:    req.Name,
		Code:    req.Code,
		Address: req.Address,
		Phone:   req.Phone,
		Email:   req.Email,
		Modules: req.Modules,
	}
}

// -----------------------------------------------------------------------------
// Users
// -----------------------------------------------------------------------------

// ListUsers returns users, optionally of one unit.
//
//	@Summary		List users
//	@Tags			Users
//	@Produce		json
//	@Param			unit_id	query		string	false	"Only users of this unit"
//	@Success		200		{object}	envelope.Response	"data: []wire.User"
//	@Security		BearerAuth
//	@Router			/api/users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.directory.ListUsers(r.Context(), r.URL.Query().Get("unit_id"))
	if err != nil {
		h.writeErr(w, err, "users")
		return
	}
	envelope.WriteData(w, http.StatusOK, wire.FromUsers(users))
}

// CreateUser creates a user. Without a password the default one is set.
//
//	@Summary		Create user
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		wire.UserRequest	true	"User data"
//	@Success		201		{object}	envelope.Response	"data: wire.User"
//	@Failure		400		{object}	envelope.Response
//	@Failure		409		{object}	envelope.Response	"Duplicate email"
//	@Security		BearerAuth
//	@Router			/api/users [post]
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req wire.UserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, _ := PrincipalFrom(r.Context())
	u, err := h.directory.CreateUser(r.Context(), userInput(req), p.UserID)
	if err != nil {
		h.writeErr(w, err, "user")
		return
	}
	envelope.WriteMessage(w, http.StatusCreated, "User created", wire.FromUser(u))
}

// UpdateUser modifies a user.
//
//	@Summary		Update user
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"User ID"
//	@Param			request	body		wire.UserRequest	true	"User data"
//	@Success		200		{object}	envelope.Response	"data: wire.User"
//	@Failure		404		{object}	envelope.Response
//	@Security		BearerAuth
//	@Router			/api/users/{id} [put]
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req wire.UserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, _ := PrincipalFrom(r.Context())
	u, err := h.directory.UpdateUser(r.Context(), chi.URLParam(r, "id"), userInput(req), p.UserID)
	if err != nil {
		h.writeErr(w, err, "user")
		return
	}
	envelope.WriteMessage(w, http.StatusOK, "User updated", wire.FromUser(u))
}

// DeleteUser deactivates a user. Callers cannot delete themselves.
//
//	@Summary		Delete user
//	@Tags			Users
//	@Produce		json
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	envelope.Response
//	@Failure		400	{object}	envelope.Response	"Own account"
//	@Security		BearerAuth
//	@Router			/api/users/{id} [delete]
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if p, _ := PrincipalFrom(r.Context()); p.UserID == id {
		envelope.WriteBadRequest(w, "Cannot delete your own account")
		return
	}
	if err := h.directory.DeleteUser(r.Context(), id); err != nil {
		h.writeErr(w, err, "user")
		return
	}
	envelope.WriteMessage(w, http.StatusOK, "User deleted", nil)
}

// ResetPassword sets a user's password, or the default one.
//
//	@Summary		Reset password
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"User ID"
//	@Param			request	body		wire.ResetPasswordRequest	false	"New password"
//	@Success		200		{object}	envelope.Response
//	@Security		BearerAuth
//	@Router			/api/users/{id}/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req wire.ResetPasswordRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	if err := h.directory.ResetPassword(r.Context(), chi.URLParam(r, "id"), req.Password); err != nil {
		h.writeErr(w, err, "user")
		return
	}
	envelope.WriteMessage(w, http.StatusOK, "Password reset", nil)
}

// ListRoles returns every role.
//
//	@Summary		List roles
//	@Tags			Users
//	@Produce		json
//	@Success		200	{object}	envelope.Response	"data: []wire.Role"
//	@Security		BearerAuth
//	@Router			/api/roles [get]
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.directory.ListRoles(r.Context())
	if err != nil {
		h.writeErr(w, err, "roles")
		return
	}
	envelope.WriteData(w, http.StatusOK, wire.FromRoles(roles))
}

func userInput(req wire.UserRequest) app.UserInput {
	return app.UserInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		RoleID:   req.RoleID,
		Password: req.Password,
		UnitIDs:  req.UnitIDs,
	}
}

// -----------------------------------------------------------------------------
// Modules
// -----------------------------------------------------------------------------

// ListModules returns the active modules, or those enabled for a unit.
//
//	@Summary		List modules
//	@Tags			Modules
//	@Produce		json
//	@Param			unit_id	query		string	false	"Only modules enabled for this unit"
//	@Success		200		{object}	envelope.Response	"data: []wire.Module"
//	@Security		BearerAuth
//	@Router			/api/modules [get]
func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	var (
		mods []directory.Module
		err  error
	)
	if unitID := r.URL.Query().Get("unit_id"); unitID != "" {
		mods, err = h.directory.ModulesByUnit(r.Context(), unitID)
	} else {
		mods, err = h.directory.ListModules(r.Context())
	}
	if err != nil {
		h.writeErr(w, err, "modules")
		return
	}
	envelope.WriteData(w, http.StatusOK, wire.FromModules(mods))
}
