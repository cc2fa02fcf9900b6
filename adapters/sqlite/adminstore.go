package sqlite

import (
	"context"
	"fmt"

	"github.com/ImagingSolutions/UsageMonitor/domain/account"
	"github.com/ImagingSolutions/UsageMonitor/ports"
)

// AdminStore implements ports.AdminStore using SQLite.
type AdminStore struct {
	db *DB
}

// NewAdminStore creates a new SQLite admin store.
func NewAdminStore(db *DB) *AdminStore {
	return &AdminStore{db: db}
}

// Exists reports whether an administrator has been set up.
func (s *AdminStore) Exists(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Create stores the administrator unless one exists. The singleton
// column rejects a second row even if two setups race past the check.
func (s *AdminStore) Create(ctx context.Context, a account.Admin) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin create admin: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO admins (singleton, username, password_hash, created_at) VALUES (1, ?, ?, ?)
	`, a.Username, a.PasswordHash, a.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert admin: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit create admin: %w", err)
	}
	return true, nil
}

// GetByUsername retrieves the administrator.
func (s *AdminStore) GetByUsername(ctx context.Context, username string) (account.Admin, error) {
	var a account.Admin
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at FROM admins WHERE username = ?
	`, username).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		return account.Admin{}, notFound(err)
	}
	return a, nil
}

var _ ports.AdminStore = (*AdminStore)(nil)
