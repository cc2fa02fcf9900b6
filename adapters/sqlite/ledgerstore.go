package sqlite

import (
	"context"
	"fmt"

	"github.com/ImagingSolutions/UsageMonitor/domain/ledger"
	"github.com/ImagingSolutions/UsageMonitor/domain/meter"
	"github.com/ImagingSolutions/UsageMonitor/domain/usage"
	"github.com/ImagingSolutions/UsageMonitor/ports"
)

// LedgerStore implements ports.LedgerStore using SQLite.
type LedgerStore struct {
	db *DB
}

// NewLedgerStore creates a new SQLite ledger store.
func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// Add stores a new entry for an existing account.
func (s *LedgerStore) Add(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	if err := ledger.Validate(e.Amount, e.UnitPrice); err != nil {
		return ledger.Entry{}, err
	}
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE id = ?`, e.AccountID).Scan(&exists)
	if err != nil {
		return ledger.Entry{}, err
	}
	if exists == 0 {
		return ledger.Entry{}, ports.ErrNotFound
	}
	return insertEntry(ctx, s.db, e)
}

// Get retrieves an entry by ID.
func (s *LedgerStore) Get(ctx context.Context, id int64) (ledger.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, amount, unit_price, used_requests, created_at
		FROM ledger_entries WHERE id = ?
	`, id)
	return scanEntry(row)
}

// ListByAccount returns entries oldest first.
func (s *LedgerStore) ListByAccount(ctx context.Context, accountID int64) ([]ledger.Entry, error) {
	return listEntries(ctx, s.db, accountID)
}

// Charge consumes one request of capacity and records l against it.
//
// The entry is chosen in Go from its stored amount, unit price and used
// count, then incremented only if used_requests still holds the value that
// was read. Losing that compare-and-swap yields meter.ErrRaceOnCharge.
func (s *LedgerStore) Charge(ctx context.Context, l usage.LogEntry) (ledger.Entry, usage.LogEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Entry{}, usage.LogEntry{}, fmt.Errorf("begin charge: %w", err)
	}
	defer tx.Rollback()

	entries, err := listEntries(ctx, tx, l.AccountID)
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
		WHERE id = ? AND used_requests = ? AND used_requests < ?
	`, entry.ID, entry.UsedRequests, entry.TotalRequests())
	if err != nil {
		return ledger.Entry{}, usage.LogEntry{}, fmt.Errorf("increment entry %d: %w", entry.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Entry{}, usage.LogEntry{}, err
	}
	if n == 0 {
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

func insertEntry(ctx context.Context, q queryer, e ledger.Entry) (ledger.Entry, error) {
	e.CreatedAt = e.CreatedAt.UTC()
	res, err := q.ExecContext(ctx, `
		INSERT INTO ledger_entries (account_id, amount, unit_price, used_requests, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.AccountID, e.Amount.String(), e.UnitPrice.String(), e.UsedRequests, e.CreatedAt)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return ledger.Entry{}, err
	}
	return e, nil
}

func listEntries(ctx context.Context, q queryer, accountID int64) ([]ledger.Entry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, account_id, amount, unit_price, used_requests, created_at
		FROM ledger_entries
		WHERE account_id = ?
		ORDER BY created_at, id
	`, accountID)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// created_at text ordering is not reliable across fractional precisions.
	ledger.SortOldestFirst(entries)
	return entries, nil
}

func scanEntry(row rowScanner) (ledger.Entry, error) {
	var e ledger.Entry
	if err := row.Scan(&e.ID, &e.AccountID, &e.Amount, &e.UnitPrice, &e.UsedRequests, &e.CreatedAt); err != nil {
		return ledger.Entry{}, notFound(err)
	}
	return e, nil
}

var _ ports.LedgerStore = (*LedgerStore)(nil)
