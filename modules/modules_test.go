package modules_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DromeProduto/DromeBoard/adapters/clock"
	"github.com/DromeProduto/DromeBoard/adapters/remote"
	"github.com/DromeProduto/DromeBoard/core/loader"
	"github.com/DromeProduto/DromeBoard/domain/dashboard"
	"github.com/DromeProduto/DromeBoard/domain/directory"
	"github.com/DromeProduto/DromeBoard/modules"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

var _ modules.API = (*remote.Client)(nil)

var t0 = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu          sync.Mutex
	calls       map[string]int
	metrics     dashboard.Metrics
	results     []dashboard.Result
	units       []directory.Unit
	members     map[string][]directory.UnitMember
	mods        map[string][]directory.Module
	invalidated []string
	lastFilters dashboard.Filters
	err         error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		calls:   map[string]int{},
		members: map[string][]directory.UnitMember{},
		mods:    map[string][]directory.Module{},
	}
}

func (f *fakeAPI) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) Metrics(_ context.Context, fl dashboard.Filters) (dashboard.Metrics, error) {
	f.hit("metrics")
	f.lastFilters = fl
	return f.metrics, f.err
}

func (f *fakeAPI) Results(_ context.Context, fl dashboard.Filters, limit int) ([]dashboard.Result, error) {
	f.hit("results")
	f.lastFilters = fl
	return f.results, f.err
}

func (f *fakeAPI) Units(context.Context) ([]directory.Unit, error) {
	f.hit("units")
	return f.units, f.err
}

func (f *fakeAPI) UnitUsers(_ context.Context, unitID string) ([]directory.UnitMember, error) {
	f.hit("unit_users")
	return f.members[unitID], nil
}

func (f *fakeAPI) Modules(_ context.Context, unitID string) ([]directory.Module, error) {
	f.hit("modules")
	return f.mods[unitID], nil
}

func (f *fakeAPI) Invalidate(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, path)
	return 0
}

type fixture struct {
	api    *fakeAPI
	clock  *clock.Fake
	loader *loader.Loader
	filter dashboard.Filters
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{api: newFakeAPI(), clock: clock.NewFake(t0), filter: dashboard.Filters{DateRange: dashboard.Range30d}}

	reg := loader.NewRegistry()
	err := modules.Register(reg, modules.Deps{
		Client: func(loader.Env) modules.API { return fx.api },
		Clock:  fx.clock,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	fx.loader = loader.New(loader.Options{
		Descriptors: []loader.Descriptor{
			{Name: "dashboard-home", Title: "Dashboard", Constructor: modules.HomeConstructor},
			{Name: "resultados", Title: "Resultados", Constructor: modules.ResultsConstructor},
			{Name: "gestao-usuarios", Title: "Gestão de Usuários", Constructor: modules.UsersConstructor},
		},
		Resolvers: map[string]loader.Resolver{loader.RuntimeNative: reg},
		Env:       loader.Env{SessionID: "s1", Filters: func() dashboard.Filters { return fx.filter }},
		Clock:     fx.clock,
		Logger:    zerolog.Nop(),
	})
	return fx
}

func (fx *fixture) open(t *testing.T, name string) loader.Module {
	t.Helper()
	m, err := fx.loader.LoadModule(context.Background(), name)
	if err != nil {
		t.Fatalf("LoadModule(%s) error = %v", name, err)
	}
	return m
}

func (fx *fixture) html() string {
	return fx.loader.Container().String()
}

func TestRegister_Duplicate(t *testing.T) {
	reg := loader.NewRegistry()
	deps := modules.Deps{Client: func(loader.Env) modules.API { return newFakeAPI() }, Clock: clock.Real{}}
	if err := modules.Register(reg, deps); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := modules.Register(reg, deps); err == nil {
		t.Error("second Register() should fail")
	}
	want := []string{modules.HomeConstructor, modules.UsersConstructor, modules.ResultsConstructor}
	if diff := cmp.Diff(want, reg.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestHome_RendersCards(t *testing.T) {
	fx := newFixture(t)
	fx.api.metrics = dashboard.Metrics{TotalUploads: 4, TotalRecords: 120, SuccessRate: 75, AvgProcessingTime: 1.5}

	fx.open(t, "dashboard-home")
	out := fx.html()
	for _, want := range []string{"Últimos 30 dias", ">4<", ">120<", "75.0%", "1.50s", "10/06/2024 09:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("home missing %q in %s", want, out)
		}
	}
	if fx.api.count("metrics") != 1 {
		t.Errorf("metrics calls = %d, want 1", fx.api.count("metrics"))
	}
}

func TestHome_ReloadsWhenStale(t *testing.T) {
	fx := newFixture(t)
	fx.open(t, "dashboard-home")
	fx.open(t, "resultados")

	fx.clock.Advance(time.Minute)
	fx.open(t, "dashboard-home")
	if got := fx.api.count("metrics"); got != 1 {
		t.Errorf("metrics calls after fresh activation = %d, want 1", got)
	}

	fx.open(t, "resultados")
	fx.clock.Advance(modules.StaleAfter)
	fx.open(t, "dashboard-home")
	if got := fx.api.count("metrics"); got != 2 {
		t.Errorf("metrics calls after stale activation = %d, want 2", got)
	}
}

func TestHome_FiltersAndUploads(t *testing.T) {
	fx := newFixture(t)
	fx.open(t, "dashboard-home")

	fx.filter = dashboard.Filters{DateRange: dashboard.Range7d, UnitID: "u1"}
	_, err := fx.loader.Notify(context.Background(), loader.CapFilters, func(ctx context.Context, m loader.Module) error {
		return m.(loader.FiltersListener).OnFiltersChanged(ctx, fx.filter)
	})
	if err != nil {
		t.Fatalf("Notify(filters) error = %v", err)
	}
	if fx.api.lastFilters != fx.filter {
		t.Errorf("metrics filters = %+v, want %+v", fx.api.lastFilters, fx.filter)
	}
	if !strings.Contains(fx.html(), "Últimos 7 dias") {
		t.Error("home should render the new range")
	}
	before := fx.api.count("metrics")

	_, err = fx.loader.Notify(context.Background(), loader.CapUpload, func(ctx context.Context, m loader.Module) error {
		return m.(loader.UploadListener).OnDataUploaded(ctx, dashboard.UploadInfo{ResultID: "r1"})
	})
	if err != nil {
		t.Fatalf("Notify(upload) error = %v", err)
	}
	if got := fx.api.count("metrics"); got != before+1 {
		t.Errorf("metrics calls = %d, want %d", got, before+1)
	}
	if diff := cmp.Diff([]string{"/metrics"}, fx.api.invalidated); diff != "" {
		t.Errorf("invalidated mismatch (-want +got):\n%s", diff)
	}
}

func TestHome_ErrorPanel(t *testing.T) {
	fx := newFixture(t)
	fx.api.err = errors.New("api down")

	fx.open(t, "dashboard-home")
	if out := fx.html(); !strings.Contains(out, "Erro ao carregar dados: api down") {
		t.Errorf("html = %s", out)
	}
}

func TestResultados(t *testing.T) {
	fx := newFixture(t)
	fx.open(t, "resultados")
	if !strings.Contains(fx.html(), "Nenhum resultado no período.") {
		t.Errorf("empty table not rendered: %s", fx.html())
	}

	fx.api.results = []dashboard.Result{
		{ID: "r1", FileName: "<lote>.csv", RowCount: 12, Status: dashboard.StatusProcessed, CreatedAt: t0},
	}
	_, err := fx.loader.Notify(context.Background(), loader.CapUpload, func(ctx context.Context, m loader.Module) error {
		return m.(loader.UploadListener).OnDataUploaded(ctx, dashboard.UploadInfo{ResultID: "r1"})
	})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	out := fx.html()
	for _, want := range []string{"&lt;lote&gt;.csv", "<td>12</td>", "status-processed"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q", want)
		}
	}
	if diff := cmp.Diff([]string{"/results"}, fx.api.invalidated); diff != "" {
		t.Errorf("invalidated mismatch (-want +got):\n%s", diff)
	}
}

func TestGestaoUsuarios(t *testing.T) {
	fx := newFixture(t)
	fx.api.units = []directory.Unit{
		{ID: "u1", Name: "Centro", Code: "CEN", Active: true},
		{ID: "u2", Name: "Norte", Code: "NOR", Active: true},
	}
	fx.api.members["u1"] = []directory.UnitMember{
		{User: directory.User{Name: "Ana", Email: "ana@example.com", RoleName: "Gerente"}},
	}
	fx.api.mods["u1"] = []directory.Module{
		{DisplayName: "Resultados", UnitActive: true},
		{DisplayName: "Relatórios"},
	}

	fx.open(t, "gestao-usuarios")
	out := fx.html()
	for _, want := range []string{"Centro", "Norte", "Ana &lt;ana@example.com&gt;", `class="ativo">Resultados`, `class="inativo">Relatórios`, "Nenhum usuário."} {
		if !strings.Contains(out, want) {
			t.Errorf("html missing %q", want)
		}
	}

	fx.filter.UnitID = "u2"
	fx.open(t, "resultados")
	fx.open(t, "gestao-usuarios")
	if out := fx.html(); strings.Contains(out, "Centro") || !strings.Contains(out, "Norte") {
		t.Errorf("unit filter not applied: %s", out)
	}
}
