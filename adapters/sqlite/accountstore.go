package sqlite

import (
	"context"
	"fmt"

	"github.com/ImagingSolutions/UsageMonitor/domain/account"
	"github.com/ImagingSolutions/UsageMonitor/domain/ledger"
	"github.com/ImagingSolutions/UsageMonitor/ports"
)

// AccountStore implements ports.AccountStore using SQLite.
type AccountStore struct {
	db *DB
}

// NewAccountStore creates a new SQLite account store.
func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db}
}

// CreateWithEntry stores the account and its first ledger entry atomically.
func (s *AccountStore) CreateWithEntry(ctx context.Context, a account.Account, e ledger.Entry) (account.Account, ledger.Entry, error) {
	if err := ledger.Validate(e.Amount, e.UnitPrice); err != nil {
		return account.Account{}, ledger.Entry{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return account.Account{}, ledger.Entry{}, fmt.Errorf("begin create account: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return account.Account{}, ledger.Entry{}, fmt.Errorf("count accounts: %w", err)
	}
	if n > 0 {
		return account.Account{}, ledger.Entry{}, account.ErrAccountExists
	}

	a.CreatedAt = a.CreatedAt.UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (name, email, created_at) VALUES (?, ?, ?)
	`, a.Name, a.Email, a.CreatedAt)
	if err != nil {
		return account.Account{}, ledger.Entry{}, fmt.Errorf("insert account: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return account.Account{}, ledger.Entry{}, err
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

// First returns the account with the lowest ID.
func (s *AccountStore) First(ctx context.Context) (account.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM accounts ORDER BY id LIMIT 1
	`)
	return scanAccount(row)
}

// Get retrieves an account by ID.
func (s *AccountStore) Get(ctx context.Context, id int64) (account.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM accounts WHERE id = ?
	`, id)
	return scanAccount(row)
}

// Update modifies name and email.
func (s *AccountStore) Update(ctx context.Context, a account.Account) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET name = ?, email = ? WHERE id = ?
	`, a.Name, a.Email, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (account.Account, error) {
	var a account.Account
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.CreatedAt); err != nil {
		return account.Account{}, notFound(err)
	}
	return a, nil
}

var _ ports.AccountStore = (*AccountStore)(nil)
