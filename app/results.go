package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/DromeProduto/DromeBoard/core/cache"
	"github.com/DromeProduto/DromeBoard/domain/dashboard"
	"github.com/DromeProduto/DromeBoard/ports"
	"github.com/rs/zerolog"
)

const (
	keyResultsPrefix = "results:"
	keyMetricsPrefix = "metrics:"
)

// maxUploadRows bounds the rows accepted in a single upload.
const maxUploadRows = 50000

// UploadInput is a spreadsheet already parsed into rows by the client.
type UploadInput struct {
	UnitID       string
	FileName     string
	ProcessingMS int64
	Rows         []map[string]any
}

// ResultsDeps contains dependencies for the results service.
type ResultsDeps struct {
	Results ports.ResultStore
	Cache   *cache.Cache
	Clock   ports.Clock
	IDs     ports.IDGenerator
	Changed ChangeFunc // optional
	Logger  zerolog.Logger
}

// ResultsService stores uploads and computes dashboard metrics from them.
type ResultsService struct {
	results ports.ResultStore
	cache   *cache.Cache
	clock   ports.Clock
	ids     ports.IDGenerator
	changed ChangeFunc
	logger  zerolog.Logger
}

// NewResultsService creates a new results service.
func NewResultsService(d ResultsDeps) *ResultsService {
	changed := d.Changed
	if changed == nil {
		changed = func(...string) {}
	}
	return &ResultsService{
		results: d.Results,
		cache:   d.Cache,
		clock:   d.Clock,
		ids:     d.IDs,
		changed: changed,
		logger:  d.Logger.With().Str("component", "results").Logger(),
	}
}

// Upload stores an upload made by userID. An upload without rows is stored
// with StatusFailed so it still counts against the success rate.
func (s *ResultsService) Upload(ctx context.Context, userID string, in UploadInput) (dashboard.Result, error) {
	name := strings.TrimSpace(in.FileName)
	switch {
	case name == "":
		return dashboard.Result{}, fmt.Errorf("%w: file name is required", ErrInvalidUpload)
	case strings.TrimSpace(in.UnitID) == "":
		return dashboard.Result{}, fmt.Errorf("%w: unit is required", ErrInvalidUpload)
	case len(in.Rows) > maxUploadRows:
		return dashboard.Result{}, fmt.Errorf("%w: %d rows exceeds the limit of %d", ErrInvalidUpload, len(in.Rows), maxUploadRows)
	case in.ProcessingMS < 0:
		return dashboard.Result{}, fmt.Errorf("%w: negative processing time", ErrInvalidUpload)
	}

	status := dashboard.StatusProcessed
	if len(in.Rows) == 0 {
		status = dashboard.StatusFailed
	}
	r := dashboard.Result{
		ID:           s.ids.New(),
		UnitID:       strings.TrimSpace(in.UnitID),
		UserID:       userID,
		FileName:     name,
		RowCount:     len(in.Rows),
		Status:       status,
		ProcessingMS: in.ProcessingMS,
		Rows:         in.Rows,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.results.Create(ctx, r); err != nil {
		return dashboard.Result{}, referenceErr(err)
	}

	s.cache.DeletePrefix(cache.RegionData, keyResultsPrefix)
	s.cache.DeletePrefix(cache.RegionData, keyMetricsPrefix)
	s.changed("/results", "/metrics")
	s.logger.Info().Str("result_id", r.ID).Str("unit_id", r.UnitID).Int("rows", r.RowCount).Msg("results uploaded")
	return r, nil
}

// Get returns one upload including its rows.
func (s *ResultsService) Get(ctx context.Context, id string) (dashboard.Result, error) {
	return s.results.Get(ctx, id)
}

// List returns uploads matching the filters, newest first, without rows.
func (s *ResultsService) List(ctx context.Context, f dashboard.Filters, limit int) ([]dashboard.Result, error) {
	key := fmt.Sprintf("%s%s:%d", keyResultsPrefix, f.Query().Encode(), limit)
	return cache.Remember(s.cache, cache.RegionData, key, 0, func() ([]dashboard.Result, error) {
		q := s.query(f)
		q.Limit = limit
		return s.results.List(ctx, q)
	})
}

// Metrics summarizes uploads matching the filters.
func (s *ResultsService) Metrics(ctx context.Context, f dashboard.Filters) (dashboard.Metrics, error) {
	key := keyMetricsPrefix + f.Query().Encode()
	return cache.Remember(s.cache, cache.RegionData, key, 0, func() (dashboard.Metrics, error) {
		return s.results.Summary(ctx, s.query(f))
	})
}

func (s *ResultsService) query(f dashboard.Filters) ports.ResultQuery {
	q := ports.ResultQuery{UnitID: f.UnitID, UserID: f.UserID}
	if from, to, ok := f.DateRange.Window(s.clock.Now()); ok {
		q.From, q.To = from, to
	}
	return q
}
