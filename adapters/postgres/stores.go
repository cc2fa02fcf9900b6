package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ImagingSolutions/UsageMonitor/domain/account"
	"github.com/ImagingSolutions/UsageMonitor/domain/ledger"
	"github.com/ImagingSolutions/UsageMonitor/domain/meter"
	"github.com/ImagingSolutions/UsageMonitor/domain/usage"
	"github.com/ImagingSolutions/UsageMonitor/ports"
)

// -----------------------------------------------------------------------------
// Accounts
// -----------------------------------------------------------------------------

// AccountStore implements ports.AccountStore using PostgreSQL.
type AccountStore struct {
	db *sql.DB
}

// CreateWithEntry stores the account and its first ledger entry atomically.
// The accounts table is locked so concurrent provisioning cannot both pass
// the existence check.
func (s *AccountStore) CreateWithEntry(ctx context.Context, a account.Account, e ledger.Entry) (account.Account, ledger.Entry, error) {
	if err := ledger.Validate(e.Amount, e.UnitPrice); err != nil {
		return account.Account{}, ledger.Entry{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return account.Account{}, ledger.Entry{}, fmt.Errorf("begin create account: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `LOCK TABLE accounts IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return account.Account{}, ledger.Entry{}, fmt.Errorf("lock accounts: %w", err)
	}
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts)`).Scan(&exists); err != nil {
		return account.Account{}, ledger.Entry{}, fmt.Errorf("check accounts: %w", err)
	}
	if exists {
		return account.Account{}, ledger.Entry{}, account.ErrAccountExists
	}

	a.CreatedAt = a.CreatedAt.UTC()
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO accounts (name, email, created_at) VALUES ($1, $2, $3) RETURNING id
	`, a.Name, a.Email, a.CreatedAt).Scan(&a.ID); err != nil {
		return account.Account{}, ledger.Entry{}, fmt.Errorf("insert account: %w", err)
	}

	e.AccountID = a.ID
	if e, err = insertEntry(ctx, tx, e); err != nil {
		return account.Account{}, ledger.Entry{}, err
	}

	if err := tx.Commit(); err != nil {
		return account.Account{}, ledger.Entry{}, fmt.Errorf("commit create account: %w", err)
	}
	return a, e, nil
}

func (s *AccountStore) First(ctx context.Context) (account.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM accounts ORDER BY id LIMIT 1
	`))
}

func (s *AccountStore) Get(ctx context.Context, id int64) (account.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM accounts WHERE id = $1
	`, id))
}

func (s *AccountStore) Update(ctx context.Context, a account.Account) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET name = $1, email = $2 WHERE id = $3`, a.Name, a.Email, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func scanAccount(row rowScanner) (account.Account, error) {
	var a account.Account
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.CreatedAt); err != nil {
		return account.Account{}, notFound(err)
	}
	return a, nil
}

// -----------------------------------------------------------------------------
// Ledger
// -----------------------------------------------------------------------------

// LedgerStore implements ports.LedgerStore using PostgreSQL.
type LedgerStore struct {
	db *sql.DB
}

func (s *LedgerStore) Add(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	if err := ledger.Validate(e.Amount, e.UnitPrice); err != nil {
		return ledger.Entry{}, err
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, e.AccountID).Scan(&exists); err != nil {
		return ledger.Entry{}, err
	}
	if !exists {
		return ledger.Entry{}, ports.ErrNotFound
	}
	return insertEntry(ctx, s.db, e)
}

func (s *LedgerStore) Get(ctx context.Context, id int64) (ledger.Entry, error) {
	return scanEntry(s.db.QueryRowContext(ctx, entrySelect+` WHERE id = $1`, id))
}

func (s *LedgerStore) ListByAccount(ctx context.Context, accountID int64) ([]ledger.Entry, error) {
	return listEntries(ctx, s.db, entrySelect+` WHERE account_id = $1 ORDER BY created_at, id`, accountID)
}

// Charge locks the account's entries, increments the oldest one with
// capacity under a compare-and-swap and inserts the log row.
func (s *LedgerStore) Charge(ctx context.Context, l usage.LogEntry) (ledger.Entry, usage.LogEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Entry{}, usage.LogEntry{}, fmt.Errorf("begin charge: %w", err)
	}
	defer tx.Rollback()

	entries, err := listEntries(ctx, tx, entrySelect+` WHERE account_id = $1 ORDER BY created_at, id FOR UPDATE`, l.AccountID)
	if err != nil {
		return ledger.Entry{}, usage.LogEntry{}, err
	}
	entry, ok := ledger.SelectChargeable(entries)
	if !ok {
		return ledger.Entry{}, usage.LogEntry{}, meter.ErrNoCapacity
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries
		SET used_requests = used_requests + 1
		WHERE id = $1 AND used_requests = $2 AND used_requests < $3
	`, entry.ID, entry.UsedRequests, entry.TotalRequests())
	if err != nil {
		return ledger.Entry{}, usage.LogEntry{}, fmt.Errorf("increment entry %d: %w", entry.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return ledger.Entry{}, usage.LogEntry{}, err
	} else if n == 0 {
		return ledger.Entry{}, usage.LogEntry{}, meter.ErrRaceOnCharge
	}
	entry.UsedRequests++

	id := entry.ID
	l.LedgerEntryID = &id
	if l, err = insertLog(ctx, tx, l); err != nil {
		return ledger.Entry{}, usage.LogEntry{}, err
	}

	if err := tx.Commit(); err != nil {
		return ledger.Entry{}, usage.LogEntry{}, fmt.Errorf("commit charge: %w", err)
	}
	return entry, l, nil
}

const entrySelect = `SELECT id, account_id, amount, unit_price, used_requests, created_at FROM ledger_entries`

func insertEntry(ctx context.Context, q queryer, e ledger.Entry) (ledger.Entry, error) {
	e.CreatedAt = e.CreatedAt.UTC()
	err := q.QueryRowContext(ctx, `
		INSERT INTO ledger_entries (account_id, amount, unit_price, used_requests, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id
	`, e.AccountID, e.Amount, e.UnitPrice, e.UsedRequests, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	return e, nil
}

func listEntries(ctx context.Context, q queryer, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(row rowScanner) (ledger.Entry, error) {
	var e ledger.Entry
	if err := row.Scan(&e.ID, &e.AccountID, &e.Amount, &e.UnitPrice, &e.UsedRequests, &e.CreatedAt); err != nil {
		return ledger.Entry{}, notFound(err)
	}
	return e, nil
}

// -----------------------------------------------------------------------------
// Logs
// -----------------------------------------------------------------------------

// LogStore implements ports.LogStore using PostgreSQL.
type LogStore struct {
	db *sql.DB
}

func (s *LogStore) Insert(ctx context.Context, l usage.LogEntry) (usage.LogEntry, error) {
	return insertLog(ctx, s.db, l)
}

func (s *LogStore) Query(ctx context.Context, f usage.Filter) ([]usage.LogEntry, int64, error) {
	f = f.Normalize()
	where, args := logWhere(f.AccountID, f.From, f.To, f.ErrorsOnly)

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM log_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count logs: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf("%s%s ORDER BY request_time DESC, id DESC LIMIT $%d OFFSET $%d", logSelect, where, n+1, n+2)
	logs, err := s.list(ctx, query, append(args, f.PageSize, f.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

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

const logSelect = `SELECT id, account_id, ledger_entry_id, path, method, status_code, duration, request_time FROM log_entries`

func logWhere(accountID *int64, from, to *time.Time, errorsOnly bool) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if accountID != nil {
		add("account_id = $%d", *accountID)
	}
	if from != nil {
		add("request_time >= $%d", from.UTC())
	}
	if to != nil {
		add("request_time < $%d", to.UTC())
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
	err := q.QueryRowContext(ctx, `
		INSERT INTO log_entries (account_id, ledger_entry_id, path, method, status_code, duration, request_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id
	`, l.AccountID, ledgerID, l.Path, l.Method, l.StatusCode, l.Duration, l.RequestTime).Scan(&l.ID)
	if err != nil {
		return usage.LogEntry{}, fmt.Errorf("insert log: %w", err)
	}
	return l, nil
}

// -----------------------------------------------------------------------------
// Admins
// -----------------------------------------------------------------------------

// AdminStore implements ports.AdminStore using PostgreSQL.
type AdminStore struct {
	db *sql.DB
}

func (s *AdminStore) Exists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM admins)`).Scan(&exists)
	return exists, err
}

// Create relies on the singleton unique constraint to reject a second
// administrator.
func (s *AdminStore) Create(ctx context.Context, a account.Admin) (bool, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admins (singleton, username, password_hash, created_at) VALUES (1, $1, $2, $3)
	`, a.Username, a.PasswordHash, a.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert admin: %w", err)
	}
	return true, nil
}

func (s *AdminStore) GetByUsername(ctx context.Context, username string) (account.Admin, error) {
	var a account.Admin
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at FROM admins WHERE username = $1
	`, username).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		return account.Admin{}, notFound(err)
	}
	return a, nil
}

var (
	_ ports.AccountStore = (*AccountStore)(nil)
	_ ports.LedgerStore  = (*LedgerStore)(nil)
	_ ports.LogStore     = (*LogStore)(nil)
	_ ports.AdminStore   = (*AdminStore)(nil)
)
