package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DromeProduto/DromeBoard/core/cache"
	"github.com/DromeProduto/DromeBoard/domain/auth"
	"github.com/DromeProduto/DromeBoard/domain/directory"
	"github.com/DromeProduto/DromeBoard/domain/ratelimit"
	"github.com/DromeProduto/DromeBoard/ports"
	"github.com/rs/zerolog"
)

const keySessionPrefix = "session:" // + session id

// principalTTL bounds how long an authenticated session is trusted without
// re-reading the session and user rows.
const principalTTL = time.Minute

// Principal is the authenticated caller of a request.
type Principal struct {
	SessionID string
	UserID    string
	Email     string
	Name      string
	RoleID    string
	RoleName  string
	RoleLevel int
	UnitIDs   []string
	ExpiresAt time.Time
}

// Can reports whether the principal's role reaches level.
func (p Principal) Can(level int) bool {
	return p.RoleLevel >= level
}

// LoginInput is a login attempt.
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResult is a successful login.
type LoginResult struct {
	Token     string
	Principal Principal
	User      directory.User
}

// AuthDeps contains dependencies for the auth service.
type AuthDeps struct {
	Users      ports.UserStore
	Sessions   ports.SessionStore
	Tokens     ports.TokenService
	Hasher     ports.Hasher
	Cache      *cache.Cache
	Clock      ports.Clock
	SessionTTL time.Duration // 0 = 8h
	Logger     zerolog.Logger

	// Attempts enables login throttling per email; nil disables it.
	Attempts ports.AttemptStore
	Throttle ratelimit.Config
}

// AuthService logs users in and authenticates requests.
// The session row is authoritative: a valid token whose session was deleted
// is rejected.
type AuthService struct {
	users    ports.UserStore
	sessions ports.SessionStore
	tokens   ports.TokenService
	hasher   ports.Hasher
	cache    *cache.Cache
	clock    ports.Clock
	ttl      time.Duration
	logger   zerolog.Logger
	attempts ports.AttemptStore
	throttle ratelimit.Config
}

// NewAuthService creates a new auth service.
func NewAuthService(d AuthDeps) *AuthService {
	ttl := d.SessionTTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &AuthService{
		users:    d.Users,
		sessions: d.Sessions,
		tokens:   d.Tokens,
		hasher:   d.Hasher,
		cache:    d.Cache,
		clock:    d.Clock,
		ttl:      ttl,
		logger:   d.Logger.With().Str("component", "auth").Logger(),
		attempts: d.Attempts,
		throttle: d.Throttle,
	}
}

// Login checks credentials, opens a session and returns its token.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	if v := auth.ValidateLogin(auth.LoginRequest{Email: in.Email, Password: in.Password}); !v.Valid {
		return LoginResult{}, ErrMissingCredentials
	}

	email := auth.NormalizeEmail(in.Email)
	if err := s.checkThrottle(ctx, email); err != nil {
		return LoginResult{}, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ports.ErrNotFound) {
		s.recordFailure(ctx, email)
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if len(user.PasswordHash) == 0 || !s.hasher.Compare(user.PasswordHash, in.Password) {
		s.recordFailure(ctx, email)
		return LoginResult{}, ErrInvalidCredentials
	}
	if !user.Active {
		return LoginResult{}, ErrInactiveUser
	}
	if s.attempts != nil {
		s.attempts.Delete(ctx, email)
	}

	now := s.clock.Now()
	sess := auth.GenerateSession(user.ID, user.Email, in.IPAddress, in.UserAgent, now, s.ttl)
	if err := s.sessions.Create(ctx, sess); err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}
	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	}

	token, err := s.tokens.Issue(sess, user.RoleID)
	if err != nil {
		s.sessions.Delete(ctx, sess.ID)
		return LoginResult{}, err
	}

	p := principalOf(sess, user)
	s.cache.SetWithTTL(cache.RegionData, keySessionPrefix+sess.ID, p, principalTTL)
	s.logger.Info().Str("user_id", user.ID).Str("session_id", sess.ID).Msg("user logged in")
	return LoginResult{Token: token, Principal: p, User: user}, nil
}

func (s *AuthService) checkThrottle(ctx context.Context, email string) error {
	if s.attempts == nil {
		return nil
	}
	state, err := s.attempts.Get(ctx, email)
	if err != nil {
		return err
	}
	if d := ratelimit.Check(state, s.throttle, s.clock.Now()); !d.Allowed {
		s.logger.Warn().Str("email", email).Dur("retry_after", d.RetryAfter).Msg("login throttled")
		return fmt.Errorf("%w: retry in %s", ErrTooManyAttempts, d.RetryAfter.Round(time.Second))
	}
	return nil
}

func (s *AuthService) recordFailure(ctx context.Context, email string) {
	if s.attempts == nil {
		return
	}
	state, err := s.attempts.Get(ctx, email)
	if err != nil {
		return
	}
	if err := s.attempts.Set(ctx, email, ratelimit.Fail(state, s.throttle, s.clock.Now())); err != nil {
		s.logger.Warn().Err(err).Str("email", email).Msg("failed to record login failure")
	}
}

// Authenticate verifies a token and returns the caller.
// Every failure is reported as ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrUnauthenticated
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	now := s.clock.Now()
	key := keySessionPrefix + claims.SessionID
	if v, ok := s.cache.Get(cache.RegionData, key); ok {
		if p, ok := v.(Principal); ok && now.Before(p.ExpiresAt) {
			return p, nil
		}
	}

	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if errors.Is(err, ports.ErrNotFound) {
		return Principal{}, fmt.Errorf("%w: session ended", ErrUnauthenticated)
	}
	if err != nil {
		return Principal{}, err
	}
	if sess.IsExpired(now) {
		s.sessions.Delete(ctx, sess.ID)
		return Principal{}, fmt.Errorf("%w: session expired", ErrUnauthenticated)
	}

	user, err := s.users.Get(ctx, sess.UserID)
	if errors.Is(err, ports.ErrNotFound) {
		return Principal{}, fmt.Errorf("%w: user removed", ErrUnauthenticated)
	}
	if err != nil {
		return Principal{}, err
	}
	if !user.Active {
		return Principal{}, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrInactiveUser)
	}

	p := principalOf(sess, user)
	ttl := principalTTL
	if left := sess.ExpiresAt.Sub(now); left < ttl {
		ttl = left
	}
	s.cache.SetWithTTL(cache.RegionData, key, p, ttl)
	return p, nil
}

// Logout ends the session carried by token. Unknown sessions are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	s.cache.Delete(cache.RegionData, keySessionPrefix+claims.SessionID)
	if err := s.sessions.Delete(ctx, claims.SessionID); err != nil && !errors.Is(err, ports.ErrNotFound) {
		return err
	}
	s.logger.Info().Str("session_id", claims.SessionID).Msg("user logged out")
	return nil
}

// CleanupSessions deletes expired sessions and returns how many were removed.
func (s *AuthService) CleanupSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug().Int64("count", n).Msg("expired sessions removed")
	}
	return n, nil
}

func principalOf(sess auth.Session, u directory.User) Principal {
	return Principal{
		SessionID: sess.ID,
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.Name,
		RoleID:    u.RoleID,
		RoleName:  u.RoleName,
		RoleLevel: u.RoleLevel,
		UnitIDs:   u.UnitIDs,
		ExpiresAt: sess.ExpiresAt,
	}
}
