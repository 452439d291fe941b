// Package shell serves the server-side dashboard: one shell per session,
// with module navigation, filters and cache controls.
package shell

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"slices"

	"github.com/DromeProduto/DromeBoard/adapters/http/api"
	"github.com/DromeProduto/DromeBoard/adapters/metrics"
	"github.com/DromeProduto/DromeBoard/app"
	"github.com/DromeProduto/DromeBoard/core/cache"
	"github.com/DromeProduto/DromeBoard/core/loader"
	coreshell "github.com/DromeProduto/DromeBoard/core/shell"
	"github.com/DromeProduto/DromeBoard/domain/auth"
	"github.com/DromeProduto/DromeBoard/domain/dashboard"
	"github.com/DromeProduto/DromeBoard/domain/directory"
	"github.com/DromeProduto/DromeBoard/pkg/envelope"
	"github.com/DromeProduto/DromeBoard/web"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	basePath  = "/dashboard/"
	loginPath = "/dashboard/login"
)

// Handler serves the dashboard pages and shell actions.
type Handler struct {
	manager      *coreshell.Manager
	auth         *app.AuthService
	directory    *app.DirectoryService
	cache        *cache.Cache
	metrics      *metrics.Collector
	pages        map[string]*template.Template
	secureCookie bool
	logger       zerolog.Logger
}

// Deps contains dependencies for the dashboard handler.
type Deps struct {
	Manager      *coreshell.Manager
	Auth         *app.AuthService
	Directory    *app.DirectoryService
	Cache        *cache.Cache
	Metrics      *metrics.Collector // optional
	SecureCookie bool
	Logger       zerolog.Logger
}

// NewHandler creates the dashboard handler.
func NewHandler(deps Deps) (*Handler, error) {
	pages, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Handler{
		manager:      deps.Manager,
		auth:         deps.Auth,
		directory:    deps.Directory,
		cache:        deps.Cache,
		metrics:      deps.Metrics,
		pages:        pages,
		secureCookie: deps.SecureCookie,
		logger:       deps.Logger.With().Str("component", "dashboard").Logger(),
	}, nil
}

// Router returns the dashboard router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/login", h.LoginPage)
	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)

		r.Get("/", h.Page)
		r.Post("/logout", h.Logout)
		r.Post("/navigate/{module}", h.Navigate)
		r.Post("/filters", h.SetFilters)
		r.Post("/uploaded", h.Uploaded)
		r.Post("/reload", h.Reload)
		r.Get("/modules", h.Modules)
		r.Get("/cache", h.CacheStats)
		r.With(api.RequireLevel(directory.LevelManager)).Delete("/cache/{region}", h.ClearRegion)
	})

	return r
}

// requireSession sends anonymous page views to the login form and rejects
// anonymous actions.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := api.TokenFromRequest(r)
		p, err := h.auth.Authenticate(r.Context(), token)
		if err != nil {
			if !errors.Is(err, app.ErrUnauthenticated) {
				h.logger.Error().Err(err).Msg("failed to verify session")
				envelope.WriteInternalError(w, "Failed to verify session")
				return
			}
			if r.Method == http.MethodGet && !wantsFragment(r) {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			envelope.WriteUnauthorized(w, "Session expired or invalid")
			return
		}
		next.ServeHTTP(w, r.WithContext(api.ContextWithPrincipal(r.Context(), p, token)))
	})
}

// shellFor returns the caller's shell, opening it on first use.
func (h *Handler) shellFor(r *http.Request) (*coreshell.Shell, app.Principal) {
	p, _ := api.PrincipalFrom(r.Context())
	sh := h.manager.Open(auth.Session{
		ID:        p.SessionID,
		UserID:    p.UserID,
		Email:     p.Email,
		ExpiresAt: p.ExpiresAt,
	}, api.TokenFrom(r.Context()))
	if h.metrics != nil {
		h.metrics.ActiveShells.Set(float64(h.manager.Len()))
	}
	return sh, p
}

// -----------------------------------------------------------------------------
// Pages
// -----------------------------------------------------------------------------

type option struct {
	Value    string
	Label    string
	Selected bool
}

type pageData struct {
	User       app.Principal
	Current    string
	Content    template.HTML
	Styles     []template.CSS
	Modules    []coreshell.ModuleView
	Filters    dashboard.Filters
	DateRanges []option
	Units      []option
}

var dateRanges = []struct {
	r     dashboard.DateRange
	label string
}{
	{dashboard.Range7d, "Últimos 7 dias"},
	{dashboard.Range30d, "Últimos 30 dias"},
	{dashboard.Range90d, "Últimos 90 dias"},
	{dashboard.RangeAll, "Todo o período"},
}

// Page renders the dashboard. Without an active module the first one is
// opened; ?module= switches to another.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	sh, p := h.shellFor(r)
	ctx := r.Context()

	if name := r.URL.Query().Get("module"); name != "" && name != sh.Current() {
		h.navigate(r, sh, name)
	} else if sh.Current() == "" {
		if mods := sh.Modules(); len(mods) > 0 {
			h.navigate(r, sh, mods[0].Name)
		}
	}

	f := sh.Filters()
	data := pageData{
		User:    p,
		Current: sh.Current(),
		Content: template.HTML(sh.Render()),
		Modules: sh.Modules(),
		Filters: f,
	}
	for _, css := range sh.Loader().Stylesheets() {
		data.Styles = append(data.Styles, template.CSS(css))
	}
	for _, dr := range dateRanges {
		data.DateRanges = append(data.DateRanges, option{Value: string(dr.r), Label: dr.label, Selected: dr.r == f.DateRange})
	}

	units, err := h.directory.ListUnits(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to list units for filters")
	}
	for _, u := range units {
		if !u.Active || !canSeeUnit(p, u.ID) {
			continue
		}
		data.Units = append(data.Units, option{Value: u.ID, Label: u.Name, Selected: u.ID == f.UnitID})
	}

	h.render(w, http.StatusOK, "dashboard", data)
}

type loginData struct {
	Email string
	Error string
}

// LoginPage renders the login form, or skips it for a live session.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if token := api.TokenFromRequest(r); token != "" {
		if _, err := h.auth.Authenticate(r.Context(), token); err == nil {
			http.Redirect(w, r, basePath, http.StatusSeeOther)
			return
		}
	}
	h.render(w, http.StatusOK, "login", loginData{})
}

// Login handles the login form.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, "login", loginData{Error: "Formulário inválido"})
		return
	}
	email := r.PostForm.Get("email")

	res, err := h.auth.Login(r.Context(), app.LoginInput{
		Email:     email,
		Password:  r.PostForm.Get("password"),
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		status, msg := http.StatusInternalServerError, "Erro interno, tente novamente"
		switch {
		case errors.Is(err, app.ErrMissingCredentials):
			status, msg = http.StatusBadRequest, "Informe email e senha"
		case errors.Is(err, app.ErrInvalidCredentials):
			status, msg = http.StatusUnauthorized, "Email ou senha inválidos"
		case errors.Is(err, app.ErrInactiveUser):
			status, msg = http.StatusForbidden, "Conta inativa"
		case errors.Is(err, app.ErrTooManyAttempts):
			status, msg = http.StatusTooManyRequests, "Muitas tentativas, aguarde alguns minutos"
		default:
			h.logger.Error().Err(err).Msg("login failed")
		}
		if h.metrics != nil && status != http.StatusInternalServerError {
			h.metrics.AuthFailures.WithLabelValues("dashboard_login").Inc()
		}
		h.render(w, status, "login", loginData{Email: email, Error: msg})
		return
	}
	if h.metrics != nil {
		h.metrics.Logins.Inc()
	}

	api.SetSessionCookie(w, res.Token, res.Principal.ExpiresAt, h.secureCookie)
	http.Redirect(w, r, basePath, http.StatusSeeOther)
}

// Logout ends the session and drops its shell.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p, _ := api.PrincipalFrom(r.Context())
	if err := h.auth.Logout(r.Context(), api.TokenFrom(r.Context())); err != nil && !errors.Is(err, app.ErrUnauthenticated) {
		h.logger.Error().Err(err).Msg("logout failed")
	}
	h.manager.Close(p.SessionID)
	if h.metrics != nil {
		h.metrics.ActiveShells.Set(float64(h.manager.Len()))
	}
	api.ClearSessionCookie(w, h.secureCookie)
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

// -----------------------------------------------------------------------------
// Shell actions
// -----------------------------------------------------------------------------

// Navigate switches the container to another module.
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	sh, _ := h.shellFor(r)
	err := h.navigate(r, sh, chi.URLParam(r, "module"))
	h.respond(w, r, sh, err)
}

func (h *Handler) navigate(r *http.Request, sh *coreshell.Shell, name string) error {
	_, err := sh.Navigate(r.Context(), name)
	if err != nil {
		h.logger.Warn().Err(err).Str("module", name).Msg("navigation failed")
	}
	return err
}

// SetFilters applies the filter form. Users below manager level may only
// filter by their own units.
func (h *Handler) SetFilters(w http.ResponseWriter, r *http.Request) {
	sh, p := h.shellFor(r)
	if err := r.ParseForm(); err != nil {
		envelope.WriteBadRequest(w, "Invalid form")
		return
	}
	f, err := dashboard.ParseFilters(r.Form)
	if err != nil {
		envelope.WriteBadRequest(w, err.Error())
		return
	}
	if f.UnitID != "" && !canSeeUnit(p, f.UnitID) {
		envelope.WriteForbidden(w, "Unit not accessible")
		return
	}

	if err := sh.SetFilters(r.Context(), f); err != nil {
		h.logger.Warn().Err(err).Str("module", sh.Current()).Msg("filters listener failed")
	}
	h.respond(w, r, sh, nil)
}

// Uploaded tells the active module that an upload completed.
func (h *Handler) Uploaded(w http.ResponseWriter, r *http.Request) {
	sh, _ := h.shellFor(r)
	var info dashboard.UploadInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		envelope.WriteBadRequest(w, "Invalid JSON body")
		return
	}
	if err := sh.NotifyUpload(r.Context(), info); err != nil {
		h.logger.Warn().Err(err).Str("module", sh.Current()).Msg("upload listener failed")
		envelope.WriteInternalError(w, "Module failed to refresh")
		return
	}
	envelope.WriteMessage(w, http.StatusOK, "Module notified", map[string]string{"module": sh.Current()})
}

// Reload evicts every loaded module of the session.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	sh, _ := h.shellFor(r)
	n := sh.Close()
	if wantsFragment(r) || r.Header.Get("Accept") == envelope.ContentType {
		envelope.WriteData(w, http.StatusOK, map[string]int{"evicted": n})
		return
	}
	http.Redirect(w, r, basePath, http.StatusSeeOther)
}

// Modules lists the navigation entries with their load state.
func (h *Handler) Modules(w http.ResponseWriter, r *http.Request) {
	sh, _ := h.shellFor(r)
	envelope.WriteData(w, http.StatusOK, sh.Modules())
}

// CacheStatsResponse is returned by GET /cache.
type CacheStatsResponse struct {
	Cache  cache.Stats  `json:"cache"`
	Loader loader.Stats `json:"loader"`
}

// CacheStats reports the shared cache and the session loader.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	sh, _ := h.shellFor(r)
	envelope.WriteData(w, http.StatusOK, CacheStatsResponse{
		Cache:  h.cache.Stats(),
		Loader: sh.Loader().Stats(),
	})
}

// ClearRegion empties one cache region.
func (h *Handler) ClearRegion(w http.ResponseWriter, r *http.Request) {
	region, err := cache.ParseRegion(chi.URLParam(r, "region"))
	if err != nil {
		envelope.WriteBadRequest(w, err.Error())
		return
	}
	n := h.cache.Clear(region)
	p, _ := api.PrincipalFrom(r.Context())
	h.logger.Info().Str("region", string(region)).Int("removed", n).Str("user_id", p.UserID).Msg("cache region cleared")
	envelope.WriteData(w, http.StatusOK, map[string]any{"region": region, "removed": n})
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// wantsFragment reports whether the caller renders the container itself
// instead of following a redirect to the full page.
func wantsFragment(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true" || r.URL.Query().Has("fragment")
}

// respond returns the container HTML to script callers and redirects form
// posts back to the page. A failed navigation still shows the error panel.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, sh *coreshell.Shell, err error) {
	if !wantsFragment(r) {
		http.Redirect(w, r, basePath, http.StatusSeeOther)
		return
	}
	status := http.StatusOK
	switch {
	case err == nil:
	case loader.IsUnregistered(err):
		status = http.StatusNotFound
	default:
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Module", sh.Current())
	w.WriteHeader(status)
	w.Write([]byte(sh.Render()))
}

func (h *Handler) render(w http.ResponseWriter, status int, page string, data any) {
	tmpl, ok := h.pages[page]
	if !ok {
		h.logger.Error().Str("page", page).Msg("unknown page")
		envelope.WriteInternalError(w, "Internal server error")
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		h.logger.Error().Err(err).Str("page", page).Msg("render page")
		envelope.WriteInternalError(w, "Internal server error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func canSeeUnit(p app.Principal, unitID string) bool {
	return p.Can(directory.LevelManager) || slices.Contains(p.UnitIDs, unitID)
}
