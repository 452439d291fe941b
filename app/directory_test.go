package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DromeProduto/DromeBoard/app"
	"github.com/DromeProduto/DromeBoard/core/cache"
	"github.com/DromeProduto/DromeBoard/domain/directory"
	"github.com/DromeProduto/DromeBoard/ports"
	"github.com/google/go-cmp/cmp"
)

func unitIDs(units []directory.Unit) []string {
	var ids []string
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	return ids
}

func TestDirectory_CreateUnit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.dir.CreateUnit(ctx, app.UnitInput{
		Name:    " Centro ",
		Code:    "ctr-01",
		Modules: []string{"mod_dashboard_home", "mod_resultados", "mod_dashboard_home"},
	})
	if err != nil {
		t.Fatalf("CreateUnit() error = %v", err)
	}
	if u.Code != "CTR-01" || u.Name != "Centro" || !u.Active {
		t.Errorf("unit = %+v", u)
	}

	mods, err := h.dir.ModulesByUnit(ctx, u.ID)
	if err != nil {
		t.Fatalf("ModulesByUnit() error = %v", err)
	}
	if len(mods) != 2 {
		t.Errorf("enabled modules = %d, want 2", len(mods))
	}
	if diff := cmp.Diff([]string{"/units", "/users", "/modules"}, h.takeChanged()); diff != "" {
		t.Errorf("changed resources (-want +got):\n%s", diff)
	}
}

func TestDirectory_CreateUnitErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.dir.CreateUnit(ctx, app.UnitInput{Name: "A", Code: "A1"}); err != nil {
		t.Fatalf("CreateUnit() error = %v", err)
	}

	tests := []struct {
		name string
		in   app.UnitInput
		want error
	}{
		{"missing name", app.UnitInput{Code: "X"}, directory.ErrNameRequired},
		{"bad code", app.UnitInput{Name: "X", Code: "a b"}, directory.ErrInvalidCode},
		{"duplicate code", app.UnitInput{Name: "B", Code: "a1"}, ports.ErrDuplicate},
		{"unknown module", app.UnitInput{Name: "C", Code: "C1", Modules: []string{"mod_nope"}}, app.ErrUnknownReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.dir.CreateUnit(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("CreateUnit() error = %v, want %v", err, tt.want)
			}
		})
	}

	units, _ := h.dir.ListUnits(ctx)
	if len(units) != 1 {
		t.Errorf("units = %d, want 1 (failed creates leave nothing behind)", len(units))
	}
}

func TestDirectory_ListUnitsCacheAside(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.dir.CreateUnit(ctx, app.UnitInput{Name: "A", Code: "A"})

	first, _ := h.dir.ListUnits(ctx)
	h.cache.ResetStats()
	second, _ := h.dir.ListUnits(ctx)

	if diff := cmp.Diff(unitIDs(first), unitIDs(second)); diff != "" {
		t.Errorf("cached list differs:\n%s", diff)
	}
	if st := h.cache.Stats(); st.Hits != 1 {
		t.Errorf("hits = %d, want 1", st.Hits)
	}

	// A write invalidates the cached list.
	h.dir.CreateUnit(ctx, app.UnitInput{Name: "B", Code: "B"})
	if h.cache.Has(cache.RegionData, "units") {
		t.Error("units list should be invalidated by CreateUnit")
	}
	third, _ := h.dir.ListUnits(ctx)
	if len(third) != 2 {
		t.Errorf("units after create = %d, want 2", len(third))
	}
}

func TestDirectory_DeleteUnit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	busy, _ := h.dir.CreateUnit(ctx, app.UnitInput{Name: "Busy", Code: "BUSY", Modules: []string{"mod_resultados"}})
	empty, _ := h.dir.CreateUnit(ctx, app.UnitInput{Name: "Empty", Code: "EMPTY", Modules: []string{"mod_resultados"}})
	ids := []string{busy.ID}
	if _, err := h.dir.CreateUser(ctx, app.UserInput{Name: "Ana", Email: "ana@example.com", RoleID: "role_user", UnitIDs: &ids}, "admin"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if err := h.dir.DeleteUnit(ctx, busy.ID); !errors.Is(err, app.ErrUnitHasUsers) {
		t.Errorf("DeleteUnit(busy) error = %v, want ErrUnitHasUsers", err)
	}
	if err := h.dir.DeleteUnit(ctx, empty.ID); err != nil {
		t.Fatalf("DeleteUnit(empty) error = %v", err)
	}
	if err := h.dir.DeleteUnit(ctx, "missing"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("DeleteUnit(missing) error = %v, want ErrNotFound", err)
	}

	u, _ := h.dir.GetUnit(ctx, empty.ID)
	if u.Active {
		t.Error("deleted unit should be inactive")
	}
	mods, _ := h.dir.ModulesByUnit(ctx, empty.ID)
	if len(mods) != 0 {
		t.Errorf("deleted unit modules = %d, want 0", len(mods))
	}
}

func TestDirectory_ToggleUnitModule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u, _ := h.dir.CreateUnit(ctx, app.UnitInput{Name: "A", Code: "A"})

	before, _ := h.dir.ModulesByUnit(ctx, u.ID)
	if err := h.dir.ToggleUnitModule(ctx, u.ID, "mod_relatorios", true); err != nil {
		t.Fatalf("ToggleUnitModule() error = %v", err)
	}
	after, _ := h.dir.ModulesByUnit(ctx, u.ID)
	if len(after) != len(before)+1 {
		t.Errorf("modules after enable = %d, want %d", len(after), len(before)+1)
	}

	if err := h.dir.ToggleUnitModule(ctx, "missing", "mod_relatorios", true); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("ToggleUnitModule(missing unit) error = %v, want ErrNotFound", err)
	}
}

func TestDirectory_Users(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, _ := h.dir.CreateUnit(ctx, app.UnitInput{Name: "A", Code: "A"})
	b, _ := h.dir.CreateUnit(ctx, app.UnitInput{Name: "B", Code: "B"})

	ids := []string{a.ID}
	u, err := h.dir.CreateUser(ctx, app.UserInput{Name: "Bia", Email: "BIA@Example.com", RoleID: "role_manager", UnitIDs: &ids}, "admin")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if u.Email != "bia@example.com" {
		t.Errorf("Email = %q, want lowercased", u.Email)
	}
	if string(u.PasswordHash) != directory.DefaultPassword {
		t.Errorf("password hash = %q, want default password", u.PasswordHash)
	}
	if u.RoleLevel != directory.LevelManager {
		t.Errorf("RoleLevel = %d, want %d", u.RoleLevel, directory.LevelManager)
	}

	inA, _ := h.dir.UnitUsers(ctx, a.ID)
	if len(inA) != 1 {
		t.Fatalf("UnitUsers(a) = %d, want 1", len(inA))
	}

	// Move the user to unit B and change the password.
	moved := []string{b.ID}
	if _, err := h.dir.UpdateUser(ctx, u.ID, app.UserInput{Name: "Bia", Email: u.Email, RoleID: "role_manager", Password: "nova-senha", UnitIDs: &moved}, "admin"); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	inA, _ = h.dir.UnitUsers(ctx, a.ID)
	inB, _ := h.dir.UnitUsers(ctx, b.ID)
	if len(inA) != 0 || len(inB) != 1 {
		t.Errorf("members after move: a=%d b=%d, want 0 and 1", len(inA), len(inB))
	}
	got, _ := h.dir.GetUser(ctx, u.ID)
	if string(got.PasswordHash) != "nova-senha" {
		t.Errorf("password hash = %q, want nova-senha", got.PasswordHash)
	}

	// Update without unit ids keeps assignments.
	if _, err := h.dir.UpdateUser(ctx, u.ID, app.UserInput{Name: "Beatriz", Email: u.Email, RoleID: "role_manager"}, "admin"); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	inB, _ = h.dir.UnitUsers(ctx, b.ID)
	if len(inB) != 1 || inB[0].User.Name != "Beatriz" {
		t.Errorf("members of b = %+v", inB)
	}

	if err := h.dir.ResetPassword(ctx, u.ID, ""); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}
	got, _ = h.dir.GetUser(ctx, u.ID)
	if string(got.PasswordHash) != directory.DefaultPassword {
		t.Errorf("password after reset = %q, want default", got.PasswordHash)
	}

	if err := h.dir.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	inB, _ = h.dir.UnitUsers(ctx, b.ID)
	if len(inB) != 0 {
		t.Errorf("members after delete = %d, want 0", len(inB))
	}
}

func TestDirectory_CreateUserErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.dir.CreateUser(ctx, app.UserInput{Name: "A", Email: "a@example.com", RoleID: "role_user"}, "")

	ghost := []string{"unit_ghost"}
	tests := []struct {
		name string
		in   app.UserInput
		want error
	}{
		{"invalid email", app.UserInput{Name: "X", Email: "nope", RoleID: "role_user"}, directory.ErrInvalidEmail},
		{"weak password", app.UserInput{Name: "X", Email: "x@example.com", RoleID: "role_user", Password: "123"}, directory.ErrWeakPassword},
		{"duplicate email", app.UserInput{Name: "X", Email: "A@example.com", RoleID: "role_user"}, ports.ErrDuplicate},
		{"unknown role", app.UserInput{Name: "X", Email: "y@example.com", RoleID: "role_ghost"}, app.ErrUnknownReference},
		{"unknown unit", app.UserInput{Name: "X", Email: "z@example.com", RoleID: "role_user", UnitIDs: &ghost}, app.ErrUnknownReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.dir.CreateUser(ctx, tt.in, ""); !errors.Is(err, tt.want) {
				t.Errorf("CreateUser() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDirectory_RolesAndModules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	roles, err := h.dir.ListRoles(ctx)
	if err != nil {
		t.Fatalf("ListRoles() error = %v", err)
	}
	if len(roles) != 3 || roles[0].Name != "admin" {
		t.Errorf("roles = %+v", roles)
	}

	mods, err := h.dir.ListModules(ctx)
	if err != nil {
		t.Fatalf("ListModules() error = %v", err)
	}
	if len(mods) == 0 || mods[0].Name != "dashboard-home" {
		t.Errorf("first module = %+v, want dashboard-home", mods)
	}
	if !h.cache.Has(cache.RegionModules, "modules") {
		t.Error("modules list should be cached in the modules region")
	}
}

func TestDirectory_WarmupItems(t *testing.T) {
	h := newHarness(t)
	n := h.cache.Warmup(context.Background(), h.dir.WarmupItems())
	if n != len(h.dir.WarmupItems()) {
		t.Errorf("Warmup() = %d, want %d", n, len(h.dir.WarmupItems()))
	}
	h.cache.ResetStats()
	if _, err := h.dir.ListRoles(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st := h.cache.Stats(); st.Hits != 1 {
		t.Errorf("hits after warmup = %d, want 1", st.Hits)
	}
}
