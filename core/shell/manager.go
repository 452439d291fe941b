package shell

import (
	"sort"
	"sync"
	"time"

	"github.com/DromeProduto/DromeBoard/core/loader"
	"github.com/DromeProduto/DromeBoard/domain/auth"
	"github.com/DromeProduto/DromeBoard/ports"
	"github.com/rs/zerolog"
)

// ManagerOptions configures a Manager. Everything except the per-session
// loader state is shared between shells.
type ManagerOptions struct {
	Descriptors    []loader.Descriptor
	Resolvers      map[string]loader.Resolver
	Assets         loader.Assets
	Clock          ports.Clock
	Logger         zerolog.Logger
	LoaderObserver loader.Observer // optional
}

type session struct {
	shell     *Shell
	expiresAt time.Time
}

// Manager keeps one Shell per authenticated session.
type Manager struct {
	opts   ManagerOptions
	logger zerolog.Logger

	mu     sync.Mutex
	shells map[string]*session
}

// NewManager creates an empty manager.
func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "shell_manager").Logger(),
		shells: make(map[string]*session),
	}
}

// Open returns the shell of sess, creating it on first use.
// token is forwarded to module constructors for their API calls.
func (m *Manager) Open(sess auth.Session, token string) *Shell {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.shells[sess.ID]; ok {
		s.expiresAt = sess.ExpiresAt
		return s.shell
	}

	filters := NewFilterState()
	l := loader.New(loader.Options{
		Descriptors: m.opts.Descriptors,
		Resolvers:   m.opts.Resolvers,
		Assets:      m.opts.Assets,
		Env: loader.Env{
			SessionID: sess.ID,
			Token:     token,
			Filters:   filters.Get,
		},
		Clock:    m.opts.Clock,
		Logger:   m.opts.Logger.With().Str("session", sess.ID).Logger(),
		Observer: m.opts.LoaderObserver,
	})
	sh := New(Options{
		Loader:  l,
		Filters: filters,
		Logger:  m.opts.Logger.With().Str("session", sess.ID).Logger(),
	})
	m.shells[sess.ID] = &session{shell: sh, expiresAt: sess.ExpiresAt}

	m.logger.Debug().Str("session", sess.ID).Str("user", sess.UserID).Msg("shell opened")
	return sh
}

// Get returns the shell of a session.
func (m *Manager) Get(sessionID string) (*Shell, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shells[sessionID]
	if !ok {
		return nil, false
	}
	return s.shell, true
}

// Close evicts a session's modules and forgets its shell.
func (m *Manager) Close(sessionID string) bool {
	m.mu.Lock()
	s, ok := m.shells[sessionID]
	delete(m.shells, sessionID)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.shell.Close()
	m.logger.Debug().Str("session", sessionID).Msg("shell closed")
	return true
}

// CloseExpired closes every shell whose session expired before now.
func (m *Manager) CloseExpired(now time.Time) int {
	m.mu.Lock()
	var expired []*Shell
	for id, s := range m.shells {
		if !s.expiresAt.IsZero() && now.After(s.expiresAt) {
			expired = append(expired, s.shell)
			delete(m.shells, id)
		}
	}
	m.mu.Unlock()

	for _, sh := range expired {
		sh.Close()
	}
	if len(expired) > 0 {
		m.logger.Info().Int("closed", len(expired)).Msg("expired shells closed")
	}
	return len(expired)
}

// Sessions returns the ids of open shells, sorted.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.shells))
	for id := range m.shells {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of open shells.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shells)
}
