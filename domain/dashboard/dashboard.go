// Package dashboard provides the filter selection shared by the shell and its
// modules, plus the result and metric value types they display.
// This package has NO dependencies on I/O or external packages.
package dashboard

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidDateRange is returned when a date range is not one of the known values.
var ErrInvalidDateRange = errors.New("invalid date range")

// DateRange is the closed set of supported reporting windows.
type DateRange string

const (
	RangeAll DateRange = ""
	Range7d  DateRange = "7d"
	Range30d DateRange = "30d"
	Range90d DateRange = "90d"
)

// DefaultDateRange is used when a request names no range.
const DefaultDateRange = Range30d

// ParseDateRange converts a string into a DateRange.
func ParseDateRange(s string) (DateRange, error) {
	switch r := DateRange(strings.TrimSpace(strings.ToLower(s))); r {
	case RangeAll, Range7d, Range30d, Range90d:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDateRange, s)
	}
}

// Days returns the length of the range in days, or 0 for RangeAll.
func (r DateRange) Days() int {
	switch r {
	case Range7d:
		return 7
	case Range30d:
		return 30
	case Range90d:
		return 90
	default:
		return 0
	}
}

// Window returns the [start, end] instants covered by the range ending on now's day.
// The start is midnight N days before now. The end is the last second of now's day.
// ok is false for RangeAll.
func (r DateRange) Window(now time.Time) (start, end time.Time, ok bool) {
	days := r.Days()
	if days == 0 {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	start = midnight.AddDate(0, 0, -days)
	end = midnight.Add(24*time.Hour - time.Second)
	return start, end, true
}

// Filters is the user's current selection in the shell header.
type Filters struct {
	DateRange DateRange `json:"dateRange"`
	UnitID    string    `json:"unit"`
	UserID    string    `json:"user"`
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// Query encodes the filters as URL query parameters understood by the API.
func (f Filters) Query() url.Values {
	q := url.Values{}
	if f.DateRange != RangeAll {
		q.Set("date_range", string(f.DateRange))
	}
	if f.UnitID != "" {
		q.Set("unit_id", f.UnitID)
	}
	if f.UserID != "" {
		q.Set("user_id", f.UserID)
	}
	return q
}

// ParseFilters reads filters from URL query parameters.
func ParseFilters(q url.Values) (Filters, error) {
	r, err := ParseDateRange(q.Get("date_range"))
	if err != nil {
		return Filters{}, err
	}
	return Filters{
		DateRange: r,
		UnitID:    strings.TrimSpace(q.Get("unit_id")),
		UserID:    strings.TrimSpace(q.Get("user_id")),
	}, nil
}

// Upload status values.
const (
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// Result is one uploaded spreadsheet, already parsed into rows by the client.
type Result struct {
	ID           string
	UnitID       string
	UserID       string
	FileName     string
	RowCount     int
	Status       string
	ProcessingMS int64
	Rows         []map[string]any
	CreatedAt    time.Time
}

// Metrics summarizes uploads for the home module.
type Metrics struct {
	TotalUploads      int     `json:"totalUploads"`
	TotalRecords      int     `json:"totalRecords"`
	SuccessRate       float64 `json:"successRate"`
	AvgProcessingTime float64 `json:"avgProcessingTime"` // seconds
}

// UploadInfo is what the shell passes to modules after a successful upload.
type UploadInfo struct {
	ResultID string `json:"id"`
	FileName string `json:"file_name"`
	RowCount int    `json:"row_count"`
}
