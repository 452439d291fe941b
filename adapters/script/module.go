package script

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/DromeProduto/DromeBoard/core/loader"
	"github.com/DromeProduto/DromeBoard/domain/dashboard"
)

// module adapts a script render function to the loader lifecycle.
type module struct {
	env     loader.Env
	render  RenderFunc
	timeout time.Duration
	params  ParamsFunc
}

func (m *module) Name() string { return m.env.Descriptor.Name }

// Render calls the script with the current filters. A script that does not
// return within the timeout fails the render; its goroutine is abandoned.
func (m *module) Render(ctx context.Context, w io.Writer) error {
	f := m.env.CurrentFilters()
	params := map[string]string{
		"module":     m.env.Descriptor.Name,
		"title":      m.env.Descriptor.Title,
		"date_range": string(f.DateRange),
		"unit_id":    f.UnitID,
		"user_id":    f.UserID,
	}
	if m.params != nil {
		extra, err := m.params(ctx, m.env, f)
		if err != nil {
			return fmt.Errorf("script params: %w", err)
		}
		for k, v := range extra {
			params[k] = v
		}
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	type result struct {
		html string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("script panic: %v", p)}
			}
		}()
		html, err := m.render(params)
		done <- result{html, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("script render: %w", res.err)
		}
		_, err := io.WriteString(w, res.html)
		return err
	case <-ctx.Done():
		return fmt.Errorf("script render: %w", ctx.Err())
	}
}

// OnFiltersChanged makes the loader re-render the script with the new filters.
func (m *module) OnFiltersChanged(ctx context.Context, f dashboard.Filters) error {
	m.env.Logger.Debug().Str("date_range", string(f.DateRange)).Msg("script filters changed")
	return nil
}

// OnDataUploaded makes the loader re-render the script after an upload.
func (m *module) OnDataUploaded(ctx context.Context, info dashboard.UploadInfo) error {
	return nil
}
