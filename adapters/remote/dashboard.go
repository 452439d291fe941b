package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/DromeProduto/DromeBoard/domain/dashboard"
	"github.com/DromeProduto/DromeBoard/domain/directory"
	"github.com/DromeProduto/DromeBoard/pkg/wire"
)

// Metrics returns the upload summary for the filters.
func (c *Client) Metrics(ctx context.Context, f dashboard.Filters) (dashboard.Metrics, error) {
	var m dashboard.Metrics
	err := c.Get(ctx, "/metrics", f.Query(), &m)
	return m, err
}

// Results lists uploads for the filters, newest first. limit <= 0 means no limit.
func (c *Client) Results(ctx context.Context, f dashboard.Filters, limit int) ([]dashboard.Result, error) {
	q := f.Query()
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var rs []wire.Result
	if err := c.Get(ctx, "/results", q, &rs); err != nil {
		return nil, err
	}
	out := make([]dashboard.Result, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Domain())
	}
	return out, nil
}

// Units lists every unit.
func (c *Client) Units(ctx context.Context) ([]directory.Unit, error) {
	var us []wire.Unit
	if err := c.Get(ctx, "/units", nil, &us); err != nil {
		return nil, err
	}
	out := make([]directory.Unit, 0, len(us))
	for _, u := range us {
		out = append(out, u.Domain())
	}
	return out, nil
}

// UnitUsers lists the users assigned to a unit.
func (c *Client) UnitUsers(ctx context.Context, unitID string) ([]directory.UnitMember, error) {
	var ms []wire.UnitMember
	if err := c.Get(ctx, "/units/"+url.PathEscape(unitID)+"/users", nil, &ms); err != nil {
		return nil, err
	}
	out := make([]directory.UnitMember, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Domain())
	}
	return out, nil
}

// Modules lists active modules, or those of one unit when unitID is set.
func (c *Client) Modules(ctx context.Context, unitID string) ([]directory.Module, error) {
	var q url.Values
	if unitID != "" {
		q = url.Values{"unit_id": {unitID}}
	}
	var ms []wire.Module
	if err := c.Get(ctx, "/modules", q, &ms); err != nil {
		return nil, err
	}
	out := make([]directory.Module, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Domain())
	}
	return out, nil
}

// ToggleUnitModule enables or disables a module for a unit.
func (c *Client) ToggleUnitModule(ctx context.Context, unitID, moduleID string, active bool) error {
	path := "/units/" + url.PathEscape(unitID) + "/modules/" + url.PathEscape(moduleID)
	if err := c.Send(ctx, http.MethodPost, path, wire.ToggleModuleRequest{Active: active}, nil); err != nil {
		return err
	}
	c.Invalidate("/modules")
	return nil
}
