package modules

import (
	"context"
	"io"

	"github.com/DromeProduto/DromeBoard/core/loader"
	"github.com/DromeProduto/DromeBoard/domain/dashboard"
	"github.com/rs/zerolog"
)

// resultsLimit caps the rows shown in the table.
const resultsLimit = 100

var resultsTmpl = parse("resultados", `<section class="module resultados">
<h2>{{.Title}}</h2>
<p class="periodo">{{.Range}}</p>
{{if .Results}}<table>
<thead><tr><th>Arquivo</th><th>Registros</th><th>Status</th><th>Enviado em</th></tr></thead>
<tbody>{{range .Results}}
<tr class="status-{{.Status}}"><td>{{.FileName}}</td><td>{{.RowCount}}</td><td>{{.Status}}</td><td>{{formatDate .CreatedAt}}</td></tr>{{end}}
</tbody>
</table>{{else}}<p class="empty">Nenhum resultado no período.</p>{{end}}
</section>`)

// results lists uploads for the current filters.
type results struct {
	env    loader.Env
	api    API
	logger zerolog.Logger
}

func newResults(env loader.Env, api API) *results {
	return &results{
		env:    env,
		api:    api,
		logger: env.Logger.With().Str("module", env.Descriptor.Name).Logger(),
	}
}

func (r *results) Name() string { return r.env.Descriptor.Name }

func (r *results) Render(ctx context.Context, w io.Writer) error {
	f := r.env.CurrentFilters()
	rs, err := r.api.Results(ctx, f, resultsLimit)
	if err != nil {
		r.logger.Warn().Err(err).Msg("failed to list results")
		return renderError(w, err)
	}
	return resultsTmpl.Execute(w, map[string]any{
		"Title":   r.env.Descriptor.Title,
		"Range":   rangeLabel(f.DateRange),
		"Results": rs,
	})
}

// OnFiltersChanged is a no-op: the re-render that follows reads the new
// filters.
func (r *results) OnFiltersChanged(context.Context, dashboard.Filters) error { return nil }

func (r *results) OnDataUploaded(context.Context, dashboard.UploadInfo) error {
	r.api.Invalidate("/results")
	return nil
}
