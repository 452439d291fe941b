// Package api provides the JSON API behind the dashboard. Every response
// uses the {success, message, data} envelope.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/DromeProduto/DromeBoard/adapters/metrics"
	"github.com/DromeProduto/DromeBoard/app"
	"github.com/DromeProduto/DromeBoard/domain/dashboard"
	"github.com/DromeProduto/DromeBoard/domain/directory"
	"github.com/DromeProduto/DromeBoard/pkg/envelope"
	"github.com/DromeProduto/DromeBoard/ports"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "dromeboard_session"

// maxBodySize bounds request bodies; uploads carry parsed spreadsheet rows.
const maxBodySize = 32 << 20

// Handler provides the API endpoints.
type Handler struct {
	directory    *app.DirectoryService
	auth         *app.AuthService
	results      *app.ResultsService
	metrics      *metrics.Collector
	secureCookie bool
	logger       zerolog.Logger
}

// Deps contains dependencies for the API handler.
type Deps struct {
	Directory    *app.DirectoryService
	Auth         *app.AuthService
	Results      *app.ResultsService
	Metrics      *metrics.Collector // optional
	SecureCookie bool
	Logger       zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		directory:    deps.Directory,
		auth:         deps.Auth,
		results:      deps.Results,
		metrics:      deps.Metrics,
		secureCookie: deps.SecureCookie,
		logger:       deps.Logger.With().Str("component", "api").Logger(),
	}
}

// Router returns the API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.auth, h.onAuthFailure))

		r.Get("/auth/session", h.Session)

		r.Get("/units", h.ListUnits)
		r.Get("/units/{id}/users", h.UnitUsers)
		r.Get("/users", h.ListUsers)
		r.Get("/roles", h.ListRoles)
		r.Get("/modules", h.ListModules)

		r.Get("/results", h.ListResults)
		r.Get("/results/{id}", h.GetResult)
		r.Post("/results", h.Upload)
		r.Get("/metrics", h.Metrics)

		r.Group(func(r chi.Router) {
			r.Use(RequireLevel(directory.LevelManager))

			r.Post("/units", h.CreateUnit)
			r.Put("/units/{id}", h.UpdateUnit)
			r.Delete("/units/{id}", h.DeleteUnit)
			r.Post("/units/{id}/modules/{moduleID}", h.ToggleUnitModule)

			r.Post("/users", h.CreateUser)
			r.Put("/users/{id}", h.UpdateUser)
			r.Delete("/users/{id}", h.DeleteUser)
			r.Post("/users/{id}/reset-password", h.ResetPassword)
		})
	})

	return r
}

func (h *Handler) onAuthFailure(reason string) {
	if h.metrics != nil {
		h.metrics.AuthFailures.WithLabelValues(reason).Inc()
	}
}

// -----------------------------------------------------------------------------
// Authentication middleware
// -----------------------------------------------------------------------------

// Authenticator resolves a session token into the caller.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (app.Principal, error)
}

type ctxKey string

const (
	ctxPrincipalKey ctxKey = "principal"
	ctxTokenKey     ctxKey = "token"
)

// TokenFromRequest returns the bearer token or, failing that, the session
// cookie.
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth rejects requests without a valid session. onFailure, if set,
// is told the rejection reason.
func RequireAuth(authn Authenticator, onFailure func(reason string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				if onFailure != nil {
					onFailure("missing_token")
				}
				envelope.WriteUnauthorized(w, "Authentication required")
				return
			}

			p, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				if onFailure != nil {
					onFailure("invalid_session")
				}
				if errors.Is(err, app.ErrUnauthenticated) {
					envelope.WriteUnauthorized(w, "Session expired or invalid")
					return
				}
				envelope.WriteInternalError(w, "Failed to verify session")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p, token)))
		})
	}
}

// RequireLevel rejects callers whose role level is below level. It must run
// after RequireAuth.
func RequireLevel(level int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok || !p.Can(level) {
				envelope.WriteForbidden(w, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContextWithPrincipal stores the caller and the token it authenticated with.
func ContextWithPrincipal(ctx context.Context, p app.Principal, token string) context.Context {
	ctx = context.WithValue(ctx, ctxPrincipalKey, p)
	return context.WithValue(ctx, ctxTokenKey, token)
}

// PrincipalFrom returns the caller stored by RequireAuth.
func PrincipalFrom(ctx context.Context) (app.Principal, bool) {
	p, ok := ctx.Value(ctxPrincipalKey).(app.Principal)
	return p, ok
}

// TokenFrom returns the token the caller authenticated with.
func TokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(ctxTokenKey).(string)
	return t
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v); err != nil {
		envelope.WriteBadRequest(w, "Invalid JSON body")
		return false
	}
	return true
}

// writeErr maps service errors onto HTTP statuses.
func (h *Handler) writeErr(w http.ResponseWriter, err error, what string) {
	switch {
	case directory.IsValidation(err),
		errors.Is(err, app.ErrUnknownReference),
		errors.Is(err, app.ErrInvalidUpload),
		errors.Is(err, app.ErrMissingCredentials),
		errors.Is(err, dashboard.ErrInvalidDateRange):
		envelope.WriteBadRequest(w, err.Error())
	case errors.Is(err, ports.ErrNotFound):
		envelope.WriteNotFound(w, what+" not found")
	case errors.Is(err, ports.ErrDuplicate):
		envelope.WriteConflict(w, what+" already exists")
	case errors.Is(err, app.ErrUnitHasUsers):
		envelope.WriteConflict(w, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials), errors.Is(err, app.ErrUnauthenticated):
		envelope.WriteUnauthorized(w, err.Error())
	case errors.Is(err, app.ErrInactiveUser):
		envelope.WriteForbidden(w, err.Error())
	case errors.Is(err, app.ErrTooManyAttempts):
		envelope.WriteError(w, http.StatusTooManyRequests, err.Error())
	default:
		h.logger.Error().Err(err).Str("resource", what).Msg("request failed")
		envelope.WriteInternalError(w, "Internal server error")
	}
}

func parseIntQuery(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
