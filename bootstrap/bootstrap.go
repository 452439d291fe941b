// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/DromeProduto/DromeBoard/adapters/assets"
	jwtauth "github.com/DromeProduto/DromeBoard/adapters/auth"
	"github.com/DromeProduto/DromeBoard/adapters/clock"
	"github.com/DromeProduto/DromeBoard/adapters/hasher"
	apihttp "github.com/DromeProduto/DromeBoard/adapters/http"
	"github.com/DromeProduto/DromeBoard/adapters/http/api"
	shellhttp "github.com/DromeProduto/DromeBoard/adapters/http/shell"
	"github.com/DromeProduto/DromeBoard/adapters/idgen"
	"github.com/DromeProduto/DromeBoard/adapters/memory"
	"github.com/DromeProduto/DromeBoard/adapters/metrics"
	"github.com/DromeProduto/DromeBoard/adapters/remote"
	"github.com/DromeProduto/DromeBoard/adapters/script"
	"github.com/DromeProduto/DromeBoard/adapters/sqlite"
	"github.com/DromeProduto/DromeBoard/app"
	"github.com/DromeProduto/DromeBoard/config"
	"github.com/DromeProduto/DromeBoard/core/cache"
	"github.com/DromeProduto/DromeBoard/core/loader"
	"github.com/DromeProduto/DromeBoard/core/shell"
	"github.com/DromeProduto/DromeBoard/domain/dashboard"
	"github.com/DromeProduto/DromeBoard/domain/ratelimit"
	"github.com/DromeProduto/DromeBoard/modules"
	"github.com/DromeProduto/DromeBoard/ports"
	"github.com/DromeProduto/DromeBoard/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	ConfigPath string         // YAML file; missing = environment only
	Config     *config.Config // takes precedence over ConfigPath
	HotReload  bool           // watch ConfigPath and SIGHUP
	Version    string
	LogOutput  io.Writer // nil = os.Stdout
}

// App represents the running application.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	DB         *sqlite.DB
	Cache      *cache.Cache
	Metrics    *metrics.Collector
	Directory  *app.DirectoryService
	Auth       *app.AuthService
	Results    *app.ResultsService
	Shells     *shell.Manager
	Handler    http.Handler
	HTTPServer *http.Server

	clock    ports.Clock
	fetcher  *cache.Fetcher
	holder   *config.Holder
	attempts *memory.AttemptStore

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown sync.Once
}

// New creates and initializes the application. It opens and migrates the
// database but starts nothing; call Run, or Start and Shutdown.
func New(opts Options) (*App, error) {
	a := &App{clock: clock.Real{}}

	if err := a.initConfig(opts); err != nil {
		return nil, err
	}
	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	a.Logger = SetupLogger(a.Config.Logging.Level, a.Config.Logging.Format, out)
	a.Logger.Info().Str("version", opts.Version).Msg("initializing dromeboard")

	if err := a.initDatabase(); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	var metricsHandler http.Handler
	if a.Config.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.NewWithRegistry(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		a.Logger.Info().Str("path", a.Config.Metrics.Path).Msg("prometheus metrics enabled")
	}

	a.initCache()
	a.initServices()

	mgr, err := a.initShells()
	if err != nil {
		a.DB.Close()
		return nil, err
	}
	a.Shells = mgr

	if err := a.initHTTP(opts.Version, metricsHandler); err != nil {
		a.DB.Close()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	if a.holder != nil {
		a.holder.OnChange(a.applyConfig)
		if a.Metrics != nil {
			a.holder.ObserveReloads(a.Metrics.ConfigReloaded)
		}
	}
	return a, nil
}

func (a *App) initConfig(opts Options) error {
	switch {
	case opts.Config != nil:
		a.Config = opts.Config
	case opts.HotReload && opts.ConfigPath != "":
		h, err := config.NewHolder(opts.ConfigPath, zerolog.Nop())
		if err != nil {
			return err
		}
		a.holder = h
		a.Config = h.Get()
	default:
		cfg, err := config.LoadWithFallback(opts.ConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.Config = cfg
	}
	return nil
}

func (a *App) initDatabase() error {
	db, err := sqlite.Open(a.Config.Database.DSN)
	if err != nil {
		return err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	a.DB = db
	a.Logger.Info().Msg("database initialized")
	return nil
}

func (a *App) initCache() {
	opts := cache.Options{
		Regions: a.regionConfigs(a.Config),
		Clock:   a.clock,
		Logger:  a.Logger,
	}
	if a.Metrics != nil {
		opts.Observer = a.Metrics
	}
	a.Cache = cache.New(opts)
	a.fetcher = cache.NewFetcher(a.Cache, &http.Client{Timeout: 10 * time.Second}, a.Logger)
}

// regionConfigs merges the configured overrides into the stock layout, so a
// region dropped from the file returns to its default on reload.
func (a *App) regionConfigs(cfg *config.Config) map[cache.Region]cache.RegionConfig {
	out := cache.DefaultRegions()
	for r, rc := range cfg.Cache.RegionConfigs() {
		out[r] = rc
	}
	return out
}

func (a *App) initServices() {
	cfg := a.Config
	ids := idgen.UUID{}
	passwords := hasher.NewBcrypt(cfg.Auth.BcryptCost)

	if cfg.Auth.JWTSecret == "" {
		a.Logger.Warn().Msg("auth.jwt_secret is not set, sessions will not survive a restart")
	}

	users := sqlite.NewUserStore(a.DB)
	a.Directory = app.NewDirectoryService(app.DirectoryDeps{
		Units:           sqlite.NewUnitStore(a.DB),
		Users:           users,
		Roles:           sqlite.NewRoleStore(a.DB),
		Modules:         sqlite.NewModuleStore(a.DB),
		Cache:           a.Cache,
		Clock:           a.clock,
		IDs:             ids,
		Hasher:          passwords,
		DefaultPassword: cfg.Auth.DefaultPassword,
		Changed:         a.invalidateAPI,
		Logger:          a.Logger,
	})
	deps := app.AuthDeps{
		Users:      users,
		Sessions:   sqlite.NewSessionStore(a.DB),
		Tokens:     jwtauth.NewTokenService(cfg.Auth.JWTSecret, a.clock),
		Hasher:     passwords,
		Cache:      a.Cache,
		Clock:      a.clock,
		SessionTTL: cfg.Auth.SessionTTL,
		Logger:     a.Logger,
	}
	if cfg.Auth.MaxLoginAttempts > 0 {
		a.attempts = memory.NewAttemptStore()
		deps.Attempts = a.attempts
		deps.Throttle = ratelimit.Config{Limit: cfg.Auth.MaxLoginAttempts, Window: cfg.Auth.LoginLockout}
	}
	a.Auth = app.NewAuthService(deps)
	a.Results = app.NewResultsService(app.ResultsDeps{
		Results: sqlite.NewResultStore(a.DB),
		Cache:   a.Cache,
		Clock:   a.clock,
		IDs:     ids,
		Changed: a.invalidateAPI,
		Logger:  a.Logger,
	})
}

// invalidateAPI drops cached module reads of resources a write touched.
func (a *App) invalidateAPI(resources ...string) {
	base := strings.TrimRight(a.Config.Dashboard.APIBaseURL, "/")
	for _, r := range resources {
		if n := a.fetcher.Invalidate(base + r); n > 0 {
			a.Logger.Debug().Str("resource", r).Int("removed", n).Msg("cached api reads invalidated")
		}
	}
}

// client builds the API client of one module instance.
func (a *App) client(env loader.Env) *remote.Client {
	return remote.NewClient(a.fetcher, remote.ClientConfig{
		BaseURL: a.Config.Dashboard.APIBaseURL,
		Token:   env.Token,
		Scope:   env.SessionID,
	})
}

func (a *App) initShells() (*shell.Manager, error) {
	registry := loader.NewRegistry()
	err := modules.Register(registry, modules.Deps{
		Client: func(env loader.Env) modules.API { return a.client(env) },
		Clock:  a.clock,
	})
	if err != nil {
		return nil, err
	}

	scripts := script.NewResolver(script.Options{
		RenderTimeout: a.Config.Dashboard.ScriptTimeout,
		Params:        a.scriptParams,
		Logger:        a.Logger,
	})

	src := assets.Mux{Local: assets.FS{Files: web.Files, Prefix: "/assets/"}}
	if base := a.Config.Dashboard.AssetsBaseURL; base != "" {
		src.Remote = &assets.HTTP{BaseURL: base}
	}

	opts := shell.ManagerOptions{
		Descriptors: a.Config.Modules,
		Resolvers: map[string]loader.Resolver{
			loader.RuntimeNative: registry,
			loader.RuntimeScript: scripts,
		},
		Assets: loader.NewAssetStore(a.Cache, src),
		Clock:  a.clock,
		Logger: a.Logger,
	}
	if a.Metrics != nil {
		opts.LoaderObserver = a.Metrics
	}
	a.Logger.Info().Int("modules", len(a.Config.Modules)).Strs("native", registry.Names()).Msg("module registry ready")
	return shell.NewManager(opts), nil
}

// scriptParams gives scripted modules the upload metrics for their filters.
func (a *App) scriptParams(ctx context.Context, env loader.Env, f dashboard.Filters) (map[string]string, error) {
	m, err := a.client(env).Metrics(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("load metrics: %w", err)
	}
	return map[string]string{
		"total_uploads": strconv.Itoa(m.TotalUploads),
		"total_records": strconv.Itoa(m.TotalRecords),
		"success_rate":  strconv.FormatFloat(m.SuccessRate, 'f', 1, 64),
		"avg_seconds":   strconv.FormatFloat(m.AvgProcessingTime, 'f', 2, 64),
	}, nil
}

func (a *App) initHTTP(version string, metricsHandler http.Handler) error {
	cfg := a.Config

	apiHandler := api.NewHandler(api.Deps{
		Directory:    a.Directory,
		Auth:         a.Auth,
		Results:      a.Results,
		Metrics:      a.Metrics,
		SecureCookie: cfg.Auth.SecureCookie,
		Logger:       a.Logger,
	})
	shellHandler, err := shellhttp.NewHandler(shellhttp.Deps{
		Manager:      a.Shells,
		Auth:         a.Auth,
		Directory:    a.Directory,
		Cache:        a.Cache,
		Metrics:      a.Metrics,
		SecureCookie: cfg.Auth.SecureCookie,
		Logger:       a.Logger,
	})
	if err != nil {
		return err
	}

	a.Handler = apihttp.NewRouter(apihttp.NewHealthHandler(a.DB), a.Logger, apihttp.RouterConfig{
		Version:        version,
		Metrics:        a.Metrics,
		MetricsHandler: metricsHandler,
		MetricsPath:    cfg.Metrics.Path,
		EnableOpenAPI:  cfg.OpenAPI.Enabled,
		RequestTimeout: cfg.Server.RequestTimeout,
		Assets:         web.Files,
		APIHandler:     apiHandler.Router(),
		ShellHandler:   shellHandler.Router(),
	})

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return nil
}

// Start warms the cache and starts the background workers: the cache
// sweeper, the session cleanup and the config watchers.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return errors.New("app already started")
	}
	ctx, a.cancel = context.WithCancel(ctx)

	if !a.Config.Dashboard.SkipWarmup {
		n := a.Cache.Warmup(ctx, a.Directory.WarmupItems())
		a.Logger.Info().Int("entries", n).Msg("cache warmed up")
	}

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.Cache.RunSweeper(ctx, a.Config.Cache.SweepInterval)
	}()
	go func() {
		defer a.wg.Done()
		a.runSessionCleanup(ctx, a.Config.Dashboard.SessionCleanupInterval)
	}()

	if a.holder != nil {
		if err := a.holder.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch disabled")
		}
		a.holder.WatchSignals()
	}
	return nil
}

func (a *App) runSessionCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.CleanupSessions(ctx)
		}
	}
}

// CleanupSessions deletes expired session rows and closes their shells.
func (a *App) CleanupSessions(ctx context.Context) {
	n, err := a.Auth.CleanupSessions(ctx)
	if err != nil {
		a.Logger.Error().Err(err).Msg("session cleanup failed")
	}
	closed := a.Shells.CloseExpired(a.clock.Now())
	if a.attempts != nil {
		a.attempts.Sweep(a.clock.Now())
	}
	if a.Metrics != nil {
		a.Metrics.ActiveShells.Set(float64(a.Shells.Len()))
	}
	if n > 0 || closed > 0 {
		a.Logger.Info().Int64("sessions", n).Int("shells", closed).Msg("expired sessions removed")
	}
}

// applyConfig applies the reloadable part of a new configuration.
func (a *App) applyConfig(cfg *config.Config) {
	if level, err := zerolog.ParseLevel(strings.ToLower(cfg.Logging.Level)); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	a.Cache.Configure(a.regionConfigs(cfg))
}

// Run starts the server and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	if err := a.Start(context.Background()); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application within 30 seconds.
// It is safe to call more than once.
func (a *App) Shutdown() error {
	var err error
	a.shutdown.Do(func() {
		err = a.stop()
	})
	return err
}

func (a *App) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
			errs = append(errs, err)
		}
	}

	if a.holder != nil {
		a.holder.Stop()
	}

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.Logger.Warn().Msg("background workers did not stop in time")
	}

	for _, id := range a.Shells.Sessions() {
		a.Shells.Close(id)
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return errors.Join(errs...)
}

// SetupLogger builds the process logger and sets the global level.
func SetupLogger(level, format string, out io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}
