package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/DromeProduto/DromeBoard/domain/dashboard"
	"github.com/DromeProduto/DromeBoard/ports"
)

// ResultStore implements ports.ResultStore using SQLite.
type ResultStore struct {
	db *DB
}

// NewResultStore creates a new SQLite result store.
func NewResultStore(db *DB) *ResultStore {
	return &ResultStore{db: db}
}

// Create stores an upload and its rows.
func (s *ResultStore) Create(ctx context.Context, r dashboard.Result) error {
	rows := r.Rows
	if rows == nil {
		rows = []map[string]any{}
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (id, unit_id, user_id, file_name, row_count, status, processing_ms, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.UnitID, r.UserID, r.FileName, r.RowCount, r.Status, r.ProcessingMS, string(payload), r.CreatedAt)
	if isUniqueConstraintError(err) {
		return ErrDuplicate
	}
	return err
}

// Get returns one upload with its rows.
func (s *ResultStore) Get(ctx context.Context, id string) (dashboard.Result, error) {
	var r dashboard.Result
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, unit_id, user_id, file_name, row_count, status, processing_ms, created_at, payload
		FROM results
		WHERE id = ?
	`, id).Scan(&r.ID, &r.UnitID, &r.UserID, &r.FileName, &r.RowCount, &r.Status,
		&r.ProcessingMS, &r.CreatedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return dashboard.Result{}, ErrNotFound
	}
	if err != nil {
		return dashboard.Result{}, err
	}
	if err := json.Unmarshal([]byte(payload), &r.Rows); err != nil {
		return dashboard.Result{}, fmt.Errorf("decode rows of %s: %w", id, err)
	}
	return r, nil
}

// List returns uploads matching q, newest first, without rows.
func (s *ResultStore) List(ctx context.Context, q ports.ResultQuery) ([]dashboard.Result, error) {
	where, args := resultFilter(q)
	query := `
		SELECT id, unit_id, user_id, file_name, row_count, status, processing_ms, created_at
		FROM results` + where + `
		ORDER BY created_at DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dashboard.Result
	for rows.Next() {
		var r dashboard.Result
		if err := rows.Scan(&r.ID, &r.UnitID, &r.UserID, &r.FileName, &r.RowCount,
			&r.Status, &r.ProcessingMS, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summary aggregates uploads matching q.
func (s *ResultStore) Summary(ctx context.Context, q ports.ResultQuery) (dashboard.Metrics, error) {
	where, args := resultFilter(q)

	var (
		total, records, processed int
		avgMS                     float64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(row_count), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(processing_ms), 0)
		FROM results`+where,
		append([]any{dashboard.StatusProcessed}, args...)...,
	).Scan(&total, &records, &processed, &avgMS)
	if err != nil {
		return dashboard.Metrics{}, err
	}

	m := dashboard.Metrics{
		TotalUploads:      total,
		TotalRecords:      records,
		AvgProcessingTime: avgMS / 1000,
	}
	if total > 0 {
		m.SuccessRate = float64(processed) / float64(total) * 100
	}
	return m, nil
}

func resultFilter(q ports.ResultQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !q.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, q.From.UTC())
	}
	if !q.To.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, q.To.UTC())
	}
	if q.UnitID != "" {
		conds = append(conds, "unit_id = ?")
		args = append(args, q.UnitID)
	}
	if q.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, q.UserID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "\n\t\tWHERE " + strings.Join(conds, " AND "), args
}

// Ensure interface compliance.
var _ ports.ResultStore = (*ResultStore)(nil)
