package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ImagingSolutions/UsageMonitor/domain/usage"
	"github.com/ImagingSolutions/UsageMonitor/ports"
)

// LogStore implements ports.LogStore using SQLite.
//
// request_time is always written in UTC, so comparing the stored text
// against UTC bound parameters orders correctly.
type LogStore struct {
	db *DB
}

// NewLogStore creates a new SQLite log store.
func NewLogStore(db *DB) *LogStore {
	return &LogStore{db: db}
}

// Insert stores a row as-is.
func (s *LogStore) Insert(ctx context.Context, l usage.LogEntry) (usage.LogEntry, error) {
	return insertLog(ctx, s.db, l)
}

// Query returns one page of rows, most recent first.
func (s *LogStore) Query(ctx context.Context, f usage.Filter) ([]usage.LogEntry, int64, error) {
	f = f.Normalize()
	where, args := logWhere(f.AccountID, f.From, f.To, f.ErrorsOnly)

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM log_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count logs: %w", err)
	}

	query := logSelect + where + ` ORDER BY request_time DESC, id DESC LIMIT ? OFFSET ?`
	logs, err := s.list(ctx, query, append(args, f.PageSize, f.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// Range returns rows in [from, to), oldest first.
func (s *LogStore) Range(ctx context.Context, accountID *int64, from, to time.Time) ([]usage.LogEntry, error) {
	where, args := logWhere(accountID, &from, &to, false)
	return s.list(ctx, logSelect+where+` ORDER BY request_time, id`, args...)
}

func (s *LogStore) list(ctx context.Context, query string, args ...any) ([]usage.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var logs []usage.LogEntry
	for rows.Next() {
		var (
			l        usage.LogEntry
			ledgerID sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &l.AccountID, &ledgerID, &l.Path, &l.Method, &l.StatusCode, &l.Duration, &l.RequestTime); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		if ledgerID.Valid {
			id := ledgerID.Int64
			l.LedgerEntryID = &id
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

const logSelect = `
	SELECT id, account_id, ledger_entry_id, path, method, status_code, duration, request_time
	FROM log_entries`

func logWhere(accountID *int64, from, to *time.Time, errorsOnly bool) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if accountID != nil {
		conds = append(conds, "account_id = ?")
		args = append(args, *accountID)
	}
	if from != nil {
		conds = append(conds, "request_time >= ?")
		args = append(args, from.UTC())
	}
	if to != nil {
		conds = append(conds, "request_time < ?")
		args = append(args, to.UTC())
	}
	if errorsOnly {
		conds = append(conds, "status_code >= 400")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func insertLog(ctx context.Context, q queryer, l usage.LogEntry) (usage.LogEntry, error) {
	l.RequestTime = l.RequestTime.UTC()
	var ledgerID sql.NullInt64
	if l.LedgerEntryID != nil {
		ledgerID = sql.NullInt64{Int64: *l.LedgerEntryID, Valid: true}
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO log_entries (account_id, ledger_entry_id, path, method, status_code, duration, request_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, l.AccountID, ledgerID, l.Path, l.Method, l.StatusCode, l.Duration, l.RequestTime)
	if err != nil {
		return usage.LogEntry{}, fmt.Errorf("insert log: %w", err)
	}
	if l.ID, err = res.LastInsertId(); err != nil {
		return usage.LogEntry{}, err
	}
	return l, nil
}

var _ ports.LogStore = (*LogStore)(nil)
