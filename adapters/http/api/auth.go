package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/DromeProduto/DromeBoard/app"
	"github.com/DromeProduto/DromeBoard/pkg/envelope"
	"github.com/DromeProduto/DromeBoard/pkg/wire"
)

// Login authenticates with email and password.
//
//	@Summary		Log in
//	@Description	Authenticate with email and password. The token is returned and set as a cookie.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		wire.LoginRequest	true	"Login credentials"
//	@Success		200		{object}	envelope.Response	"data: wire.SessionInfo"
//	@Failure		400		{object}	envelope.Response	"Missing credentials"
//	@Failure		401		{object}	envelope.Response	"Invalid credentials"
//	@Failure		403		{object}	envelope.Response	"Inactive account"
//	@Router			/api/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req wire.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.auth.Login(r.Context(), app.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidCredentials):
			h.onAuthFailure("invalid_credentials")
		case errors.Is(err, app.ErrInactiveUser):
			h.onAuthFailure("inactive_user")
		case errors.Is(err, app.ErrTooManyAttempts):
			h.onAuthFailure("throttled")
		}
		h.writeErr(w, err, "user")
		return
	}
	if h.metrics != nil {
		h.metrics.Logins.Inc()
	}

	SetSessionCookie(w, res.Token, res.Principal.ExpiresAt, h.secureCookie)
	envelope.WriteMessage(w, http.StatusOK, "Login successful", wire.SessionInfo{
		Token:     res.Token,
		ExpiresAt: res.Principal.ExpiresAt,
		User:      wire.FromUser(res.User),
	})
}

// Logout ends the current session. It succeeds without a session too.
//
//	@Summary		Log out
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	envelope.Response
//	@Router			/api/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := TokenFromRequest(r); token != "" {
		if err := h.auth.Logout(r.Context(), token); err != nil && !errors.Is(err, app.ErrUnauthenticated) {
			h.writeErr(w, err, "session")
			return
		}
	}

	ClearSessionCookie(w, h.secureCookie)
	envelope.WriteMessage(w, http.StatusOK, "Logged out", nil)
}

// Session returns the authenticated caller.
//
//	@Summary		Current session
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	envelope.Response	"data: wire.SessionInfo"
//	@Failure		401	{object}	envelope.Response
//	@Security		BearerAuth
//	@Router			/api/auth/session [get]
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	u, err := h.directory.GetUser(r.Context(), p.UserID)
	if err != nil {
		h.writeErr(w, err, "user")
		return
	}
	envelope.WriteData(w, http.StatusOK, wire.SessionInfo{ExpiresAt: p.ExpiresAt, User: wire.FromUser(u)})
}

// SetSessionCookie stores token in the session cookie until expires.
func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
