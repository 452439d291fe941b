package modules

import (
	"context"
	"io"

	"github.com/DromeProduto/DromeBoard/core/loader"
	"github.com/DromeProduto/DromeBoard/domain/directory"
	"github.com/rs/zerolog"
)

var usersTmpl = parse("gestao", `<section class="module gestao-usuarios">
<h2>{{.Title}}</h2>
{{range .Units}}<article class="unidade{{if not .Unit.Active}} inativa{{end}}">
<h3>{{.Unit.Name}} <small>{{.Unit.Code}}</small></h3>
<h4>Usuários</h4>
{{if .Members}}<ul class="usuarios">{{range .Members}}
<li>{{.User.Name}} &lt;{{.User.Email}}&gt; <span class="papel">{{.User.RoleName}}</span></li>{{end}}
</ul>{{else}}<p class="empty">Nenhum usuário.</p>{{end}}
<h4>Módulos</h4>
<ul class="modulos">{{range .Modules}}
<li class="{{if .UnitActive}}ativo{{else}}inativo{{end}}">{{.DisplayName}}</li>{{end}}
</ul>
</article>{{else}}<p class="empty">Nenhuma unidade cadastrada.</p>{{end}}
</section>`)

type unitView struct {
	Unit    directory.Unit
	Members []directory.UnitMember
	Modules []directory.Module
}

// users shows every unit with its users and enabled modules. A unit filter
// narrows it to that unit.
type users struct {
	env    loader.Env
	api    API
	logger zerolog.Logger
}

func newUsers(env loader.Env, api API) *users {
	return &users{
		env:    env,
		api:    api,
		logger: env.Logger.With().Str("module", env.Descriptor.Name).Logger(),
	}
}

func (u *users) Name() string { return u.env.Descriptor.Name }

func (u *users) Render(ctx context.Context, w io.Writer) error {
	views, err := u.load(ctx, u.env.CurrentFilters().UnitID)
	if err != nil {
		u.logger.Warn().Err(err).Msg("failed to load units")
		return renderError(w, err)
	}
	return usersTmpl.Execute(w, map[string]any{
		"Title": u.env.Descriptor.Title,
		"Units": views,
	})
}

func (u *users) load(ctx context.Context, only string) ([]unitView, error) {
	units, err := u.api.Units(ctx)
	if err != nil {
		return nil, err
	}
	var views []unitView
	for _, unit := range units {
		if only != "" && unit.ID != only {
			continue
		}
		members, err := u.api.UnitUsers(ctx, unit.ID)
		if err != nil {
			return nil, err
		}
		mods, err := u.api.Modules(ctx, unit.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, unitView{Unit: unit, Members: members, Modules: mods})
	}
	return views, nil
}
