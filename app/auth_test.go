package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtauth "github.com/DromeProduto/DromeBoard/adapters/auth"
	"github.com/DromeProduto/DromeBoard/adapters/hasher"
	"github.com/DromeProduto/DromeBoard/adapters/memory"
	"github.com/DromeProduto/DromeBoard/adapters/sqlite"
	"github.com/DromeProduto/DromeBoard/app"
	"github.com/DromeProduto/DromeBoard/domain/directory"
	"github.com/DromeProduto/DromeBoard/domain/ratelimit"
	"github.com/rs/zerolog"
)

func seedUser(t *testing.T, h *harness, email, role string) directory.User {
	t.Helper()
	u, err := h.dir.CreateUser(context.Background(), app.UserInput{
		Name:     "Test",
		Email:    email,
		RoleID:   role,
		Password: "segredo1",
	}, "")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return u
}

func TestAuth_LoginAndAuthenticate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := seedUser(t, h, "ana@example.com", "role_manager")

	res, err := h.auth.Login(ctx, app.LoginInput{Email: " ANA@example.com ", Password: "segredo1", IPAddress: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Token == "" {
		t.Fatal("Login() returned an empty token")
	}
	if res.Principal.UserID != u.ID || res.Principal.RoleLevel != directory.LevelManager {
		t.Errorf("principal = %+v", res.Principal)
	}
	if !res.Principal.Can(directory.LevelManager) || res.Principal.Can(directory.LevelAdmin) {
		t.Errorf("Can() does not follow role level %d", res.Principal.RoleLevel)
	}

	p, err := h.auth.Authenticate(ctx, res.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if p.SessionID != res.Principal.SessionID {
		t.Errorf("SessionID = %q, want %q", p.SessionID, res.Principal.SessionID)
	}

	got, _ := h.dir.GetUser(ctx, u.ID)
	if got.LastLogin == nil || !got.LastLogin.Equal(t0) {
		t.Errorf("LastLogin = %v, want %v", got.LastLogin, t0)
	}
}

func TestAuth_LoginFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedUser(t, h, "ana@example.com", "role_user")
	gone := seedUser(t, h, "gone@example.com", "role_user")
	if err := h.dir.DeleteUser(ctx, gone.ID); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		email string
		pass  string
		want  error
	}{
		{"missing password", "ana@example.com", "", app.ErrMissingCredentials},
		{"unknown email", "bob@example.com", "segredo1", app.ErrInvalidCredentials},
		{"wrong password", "ana@example.com", "errado", app.ErrInvalidCredentials},
		{"inactive user", "gone@example.com", "segredo1", app.ErrInactiveUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.auth.Login(ctx, app.LoginInput{Email: tt.email, Password: tt.pass})
			if !errors.Is(err, tt.want) {
				t.Errorf("Login() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAuth_Logout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedUser(t, h, "ana@example.com", "role_user")
	res, _ := h.auth.Login(ctx, app.LoginInput{Email: "ana@example.com", Password: "segredo1"})

	if err := h.auth.Logout(ctx, res.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := h.auth.Authenticate(ctx, res.Token); !errors.Is(err, app.ErrUnauthenticated) {
		t.Errorf("Authenticate() after logout error = %v, want ErrUnauthenticated", err)
	}
	// A second logout is harmless.
	if err := h.auth.Logout(ctx, res.Token); err != nil {
		t.Errorf("second Logout() error = %v", err)
	}
	if err := h.auth.Logout(ctx, "garbage"); !errors.Is(err, app.ErrUnauthenticated) {
		t.Errorf("Logout(garbage) error = %v, want ErrUnauthenticated", err)
	}
}

func TestAuth_SessionExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedUser(t, h, "ana@example.com", "role_user")
	res, _ := h.auth.Login(ctx, app.LoginInput{Email: "ana@example.com", Password: "segredo1"})

	h.clock.Advance(7 * time.Hour)
	if _, err := h.auth.Authenticate(ctx, res.Token); err != nil {
		t.Fatalf("Authenticate() within session error = %v", err)
	}

	h.clock.Advance(2 * time.Hour)
	if _, err := h.auth.Authenticate(ctx, res.Token); !errors.Is(err, app.ErrUnauthenticated) {
		t.Errorf("Authenticate() after expiry error = %v, want ErrUnauthenticated", err)
	}

	n, err := h.auth.CleanupSessions(ctx)
	if err != nil {
		t.Fatalf("CleanupSessions() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CleanupSessions() = %d, want 1", n)
	}
}

func TestAuth_DeactivatedUserLosesSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := seedUser(t, h, "ana@example.com", "role_user")
	res, _ := h.auth.Login(ctx, app.LoginInput{Email: "ana@example.com", Password: "segredo1"})

	if err := h.dir.DeleteUser(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.auth.Authenticate(ctx, res.Token); !errors.Is(err, app.ErrUnauthenticated) {
		t.Errorf("Authenticate() error = %v, want ErrUnauthenticated", err)
	}
}

func TestAuth_RoleChangeVisibleImmediately(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := seedUser(t, h, "ana@example.com", "role_user")
	res, _ := h.auth.Login(ctx, app.LoginInput{Email: "ana@example.com", Password: "segredo1"})

	if _, err := h.dir.UpdateUser(ctx, u.ID, app.UserInput{Name: u.Name, Email: u.Email, RoleID: "role_admin"}, ""); err != nil {
		t.Fatal(err)
	}
	p, err := h.auth.Authenticate(ctx, res.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if p.RoleLevel != directory.LevelAdmin {
		t.Errorf("RoleLevel = %d, want %d", p.RoleLevel, directory.LevelAdmin)
	}
}

func TestAuth_LoginThrottle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedUser(t, h, "ana@example.com", "role_user")

	attempts := memory.NewAttemptStore()
	svc := app.NewAuthService(app.AuthDeps{
		Users:    sqlite.NewUserStore(h.db),
		Sessions: sqlite.NewSessionStore(h.db),
		Tokens:   jwtauth.NewTokenService("test-secret", h.clock),
		Hasher:   hasher.Plain{},
		Cache:    h.cache,
		Clock:    h.clock,
		Logger:   zerolog.Nop(),
		Attempts: attempts,
		Throttle: ratelimit.Config{Limit: 2, Window: 10 * time.Minute},
	})

	for i := 0; i < 2; i++ {
		if _, err := svc.Login(ctx, app.LoginInput{Email: "ana@example.com", Password: "errado"}); !errors.Is(err, app.ErrInvalidCredentials) {
			t.Fatalf("attempt %d error = %v, want ErrInvalidCredentials", i+1, err)
		}
	}
	// The right password is refused too while the window is full.
	if _, err := svc.Login(ctx, app.LoginInput{Email: "ANA@example.com", Password: "segredo1"}); !errors.Is(err, app.ErrTooManyAttempts) {
		t.Fatalf("Login() error = %v, want ErrTooManyAttempts", err)
	}

	h.clock.Advance(10 * time.Minute)
	if _, err := svc.Login(ctx, app.LoginInput{Email: "ana@example.com", Password: "segredo1"}); err != nil {
		t.Fatalf("Login() after window error = %v", err)
	}
	if attempts.Len() != 0 {
		t.Errorf("successful login should clear failures, %d keys left", attempts.Len())
	}
}
