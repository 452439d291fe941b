package api

import (
	"net/http"

	"github.com/DromeProduto/DromeBoard/app"
	"github.com/DromeProduto/DromeBoard/domain/dashboard"
	"github.com/DromeProduto/DromeBoard/pkg/envelope"
	"github.com/DromeProduto/DromeBoard/pkg/wire"
	"github.com/go-chi/chi/v5"
)

const (
	defaultResultsLimit = 50
	maxResultsLimit     = 500
)

// ListResults returns uploads matching the filters, newest first.
//
//	@Summary		List uploads
//	@Tags			Results
//	@Produce		json
//	@Param			date_range	query		string	false	"7d, 30d or 90d"
//	@Param			unit_id		query		string	false	"Unit"
//	@Param			user_id		query		string	false	"Uploader"
//	@Param			limit		query		int		false	"Max results"	default(50)
//	@Success		200			{object}	envelope.Response	"data: []wire.Result"
//	@Failure		400			{object}	envelope.Response	"Invalid date range"
//	@Security		BearerAuth
//	@Router			/api/results [get]
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	f, err := dashboard.ParseFilters(r.URL.Query())
	if err != nil {
		h.writeErr(w, err, "results")
		return
	}
	limit := parseIntQuery(r, "limit", defaultResultsLimit)
	if limit <= 0 || limit > maxResultsLimit {
		limit = defaultResultsLimit
	}

	results, err := h.results.List(r.Context(), f, limit)
	if err != nil {
		h.writeErr(w, err, "results")
		return
	}
	envelope.WriteData(w, http.StatusOK, wire.FromResults(results))
}

// GetResult returns one upload including its rows.
//
//	@Summary		Get upload
//	@Tags			Results
//	@Produce		json
//	@Param			id	path		string	true	"Result ID"
//	@Success		200	{object}	envelope.Response	"data: wire.Result"
//	@Failure		404	{object}	envelope.Response
//	@Security		BearerAuth
//	@Router			/api/results/{id} [get]
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.results.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err, "result")
		return
	}
	envelope.WriteData(w, http.StatusOK, wire.FromResult(res))
}

// Upload stores spreadsheet rows parsed by the client.
//
//	@Summary		Upload results
//	@Tags			Results
//	@Accept			json
//	@Produce		json
//	@Param			request	body		wire.UploadRequest	true	"Parsed rows"
//	@Success		201		{object}	envelope.Response	"data: wire.Result"
//	@Failure		400		{object}	envelope.Response
//	@Security		BearerAuth
//	@Router			/api/results [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var req wire.UploadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, _ := PrincipalFrom(r.Context())

	res, err := h.results.Upload(r.Context(), p.UserID, app.UploadInput{
		UnitID:       req.UnitID,
		FileName:     req.FileName,
		ProcessingMS: req.ProcessingMS,
		Rows:         req.Rows,
	})
	if err != nil {
		h.writeErr(w, err, "result")
		return
	}
	if h.metrics != nil {
		h.metrics.UploadsTotal.WithLabelValues(res.Status).Inc()
		h.metrics.UploadedRows.Add(float64(res.RowCount))
	}

	out := wire.FromResult(res)
	out.Rows = nil
	envelope.WriteMessage(w, http.StatusCreated, "Upload stored", out)
}

// Metrics summarizes uploads matching the filters.
//
//	@Summary		Dashboard metrics
//	@Tags			Results
//	@Produce		json
//	@Param			date_range	query		string	false	"7d, 30d or 90d"
//	@Param			unit_id		query		string	false	"Unit"
//	@Param			user_id		query		string	false	"Uploader"
//	@Success		200			{object}	envelope.Response	"data: dashboard.Metrics"
//	@Security		BearerAuth
//	@Router			/api/metrics [get]
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	f, err := dashboard.ParseFilters(r.URL.Query())
	if err != nil {
		h.writeErr(w, err, "metrics")
		return
	}
	m, err := h.results.Metrics(r.Context(), f)
	if err != nil {
		h.writeErr(w, err, "metrics")
		return
	}
	envelope.WriteData(w, http.StatusOK, m)
}
