// Package usage holds request log records and the pure aggregations the
// dashboard and reports are built from.
package usage

import (
	"fmt"
	"time"
)

// LogEntry is one recorded request. LedgerEntryID is nil when the request
// was not charged (a rejection logged for visibility).
type LogEntry struct {
	ID            int64     `json:"id"`
	AccountID     int64     `json:"account_id"`
	LedgerEntryID *int64    `json:"ledger_entry_id"`
	Path          string    `json:"path"`
	Method        string    `json:"method"`
	StatusCode    int       `json:"status_code"`
	Duration      float64   `json:"duration"` // seconds
	RequestTime   time.Time `json:"request_time"`
}

// Charged reports whether the request consumed ledger capacity.
func (l LogEntry) Charged() bool { return l.LedgerEntryID != nil }

// IsError reports a 4xx or 5xx outcome.
func (l LogEntry) IsError() bool { return l.StatusCode >= 400 }

// StatusClass groups status codes for dashboards and metrics labels.
type StatusClass string

const (
	Class1xx   StatusClass = "1xx"
	Class2xx   StatusClass = "2xx"
	Class3xx   StatusClass = "3xx"
	Class4xx   StatusClass = "4xx"
	Class5xx   StatusClass = "5xx"
	ClassOther StatusClass = "other"
)

// ClassOf returns the class of a status code.
func ClassOf(code int) StatusClass {
	switch {
	case code >= 100 && code < 200:
		return Class1xx
	case code >= 200 && code < 300:
		return Class2xx
	case code >= 300 && code < 400:
		return Class3xx
	case code >= 400 && code < 500:
		return Class4xx
	case code >= 500 && code < 600:
		return Class5xx
	default:
		return ClassOther
	}
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filter selects log entries for paged listing.
type Filter struct {
	AccountID  *int64
	From       *time.Time
	To         *time.Time
	ErrorsOnly bool
	Page       int
	PageSize   int
}

// Normalize clamps paging to sane values.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// Offset is the number of rows skipped for the current page.
func (f Filter) Offset() int {
	f = f.Normalize()
	return (f.Page - 1) * f.PageSize
}

// Matches reports whether l passes every criterion except paging.
// From is inclusive, To is exclusive.
func (f Filter) Matches(l LogEntry) bool {
	if f.AccountID != nil && l.AccountID != *f.AccountID {
		return false
	}
	if f.From != nil && l.RequestTime.Before(*f.From) {
		return false
	}
	if f.To != nil && !l.RequestTime.Before(*f.To) {
		return false
	}
	if f.ErrorsOnly && !l.IsError() {
		return false
	}
	return true
}

// ParseTime reads a YYYY-MM-DD date or an RFC 3339 timestamp as UTC. When
// upper is set a bare date moves to the following midnight, so an exclusive
// Filter.To still covers that whole day.
func ParseTime(s string, upper bool) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		if upper {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	return t.UTC(), nil
}
