package modules

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/DromeProduto/DromeBoard/core/loader"
	"github.com/DromeProduto/DromeBoard/domain/dashboard"
	"github.com/DromeProduto/DromeBoard/ports"
	"github.com/rs/zerolog"
)

// StaleAfter is how old the home metrics may get before an activation
// reloads them.
const StaleAfter = 5 * time.Minute

var homeTmpl = parse("home", `<section class="module dashboard-home">
<h2>{{.Title}}</h2>
<p class="periodo">{{.Range}}</p>
<div class="cards">
<div class="card"><span class="label">Uploads</span><span class="value">{{.Metrics.TotalUploads}}</span></div>
<div class="card"><span class="label">Registros</span><span class="value">{{.Metrics.TotalRecords}}</span></div>
<div class="card"><span class="label">Taxa de sucesso</span><span class="value">{{percent .Metrics.SuccessRate}}</span></div>
<div class="card"><span class="label">Tempo médio</span><span class="value">{{seconds .Metrics.AvgProcessingTime}}</span></div>
</div>
<p class="updated">Atualizado em {{formatDate .LoadedAt}}</p>
</section>`)

// home shows metric cards for the current filters.
type home struct {
	env    loader.Env
	api    API
	clock  ports.Clock
	logger zerolog.Logger

	mu       sync.Mutex
	metrics  dashboard.Metrics
	filters  dashboard.Filters
	loadedAt time.Time
	err      error
}

func newHome(env loader.Env, api API, clock ports.Clock) *home {
	return &home{
		env:    env,
		api:    api,
		clock:  clock,
		logger: env.Logger.With().Str("module", env.Descriptor.Name).Logger(),
	}
}

func (h *home) Name() string { return h.env.Descriptor.Name }

// Render draws the cards. Activation renders first, so this is also where
// stale or out-of-date metrics get reloaded.
func (h *home) Render(ctx context.Context, w io.Writer) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	f := h.env.CurrentFilters()
	if h.loadedAt.IsZero() || f != h.filters || h.clock.Now().Sub(h.loadedAt) > StaleAfter {
		h.load(ctx, f)
	}
	if h.err != nil {
		return renderError(w, h.err)
	}
	return homeTmpl.Execute(w, map[string]any{
		"Title":    h.env.Descriptor.Title,
		"Range":    rangeLabel(f.DateRange),
		"Metrics":  h.metrics,
		"LoadedAt": h.loadedAt,
	})
}

func (h *home) OnFiltersChanged(ctx context.Context, f dashboard.Filters) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.load(ctx, f)
	return nil
}

func (h *home) OnDataUploaded(ctx context.Context, info dashboard.UploadInfo) error {
	h.api.Invalidate("/metrics")

	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger.Debug().Str("upload", info.ResultID).Msg("reloading metrics after upload")
	h.load(ctx, h.env.CurrentFilters())
	return nil
}

// load must be called with mu held.
func (h *home) load(ctx context.Context, f dashboard.Filters) {
	m, err := h.api.Metrics(ctx, f)
	h.filters = f
	h.loadedAt = h.clock.Now()
	h.err = err
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to load metrics")
		return
	}
	h.metrics = m
}

func (h *home) Cleanup() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metrics = dashboard.Metrics{}
	h.loadedAt = time.Time{}
	return nil
}
