// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/ImagingSolutions/UsageMonitor/domain/account"
	"github.com/ImagingSolutions/UsageMonitor/domain/ledger"
	"github.com/ImagingSolutions/UsageMonitor/domain/usage"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers (session tokens).
type IDGenerator interface {
	New() string
}

// Hasher hashes and verifies administrator passwords.
type Hasher interface {
	Hash(plaintext string) ([]byte, error)
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// AccountStore persists the metered account.
type AccountStore interface {
	// CreateWithEntry stores the account and its first ledger entry in one
	// transaction. Returns account.ErrAccountExists when one is provisioned.
	CreateWithEntry(ctx context.Context, a account.Account, e ledger.Entry) (account.Account, ledger.Entry, error)

	// First returns the active account (the lowest ID), or ErrNotFound.
	First(ctx context.Context) (account.Account, error)

	// Get retrieves an account by ID.
	Get(ctx context.Context, id int64) (account.Account, error)

	// Update modifies name and email.
	Update(ctx context.Context, a account.Account) error
}

// LedgerStore persists ledger entries. It is the sole source of truth for
// remaining capacity.
type LedgerStore interface {
	// Add stores a new entry for an existing account.
	Add(ctx context.Context, e ledger.Entry) (ledger.Entry, error)

	// Get retrieves an entry by ID.
	Get(ctx context.Context, id int64) (ledger.Entry, error)

	// ListByAccount returns entries oldest first.
	ListByAccount(ctx context.Context, accountID int64) ([]ledger.Entry, error)

	// Charge selects the oldest entry with capacity for l.AccountID,
	// increments its used count with a compare-and-swap and inserts l
	// pointing at that entry, all in one transaction.
	//
	// Returns meter.ErrNoCapacity when no entry has capacity and
	// meter.ErrRaceOnCharge when the compare-and-swap lost. Neither
	// leaves a log row behind.
	Charge(ctx context.Context, l usage.LogEntry) (ledger.Entry, usage.LogEntry, error)
}

// LogStore persists request log rows.
type LogStore interface {
	// Insert stores a row as-is (LedgerEntryID may be nil).
	Insert(ctx context.Context, l usage.LogEntry) (usage.LogEntry, error)

	// Query returns one page of rows most recent first, plus the total
	// number of matching rows.
	Query(ctx context.Context, f usage.Filter) ([]usage.LogEntry, int64, error)

	// Range returns rows with from <= request_time < to, oldest first.
	// A nil accountID selects every account.
	Range(ctx context.Context, accountID *int64, from, to time.Time) ([]usage.LogEntry, error)
}

// AdminStore persists the single administrator.
type AdminStore interface {
	// Exists reports whether an administrator has been set up.
	Exists(ctx context.Context) (bool, error)

	// Create stores the administrator. Returns false, nil when one already
	// exists; at most one can ever be stored.
	Create(ctx context.Context, a account.Admin) (bool, error)

	// GetByUsername retrieves the administrator, or ErrNotFound.
	GetByUsername(ctx context.Context, username string) (account.Admin, error)
}

// Store bundles every store of one storage engine.
type Store interface {
	Accounts() AccountStore
	Ledger() LedgerStore
	Logs() LogStore
	Admins() AdminStore

	// Ping checks the engine is reachable.
	Ping(ctx context.Context) error

	Close() error
}
