// Package memory provides in-memory implementations of storage ports.
// Intended for tests and single-process deployments without persistence.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ImagingSolutions/UsageMonitor/domain/account"
	"github.com/ImagingSolutions/UsageMonitor/domain/ledger"
	"github.com/ImagingSolutions/UsageMonitor/domain/meter"
	"github.com/ImagingSolutions/UsageMonitor/domain/usage"
	"github.com/ImagingSolutions/UsageMonitor/ports"
)

// Store keeps every table behind one mutex so a charge is atomic across
// the ledger and the log.
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	accounts []account.Account
	entries  map[int64]ledger.Entry
	logs     []usage.LogEntry
	admin    *account.Admin
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{entries: make(map[int64]ledger.Entry)}
}

func (s *Store) Accounts() ports.AccountStore { return accountStore{s} }
func (s *Store) Ledger() ports.LedgerStore     { return ledgerStore{s} }
func (s *Store) Logs() ports.LogStore          { return logStore{s} }
func (s *Store) Admins() ports.AdminStore      { return adminStore{s} }

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// id must be called with mu held.
func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// -----------------------------------------------------------------------------
// Accounts
// -----------------------------------------------------------------------------

type accountStore struct{ s *Store }

func (a accountStore) CreateWithEntry(_ context.Context, acct account.Account, e ledger.Entry) (account.Account, ledger.Entry, error) {
	if err := ledger.Validate(e.Amount, e.UnitPrice); err != nil {
		return account.Account{}, ledger.Entry{}, err
	}

	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	if len(a.s.accounts) > 0 {
		return account.Account{}, ledger.Entry{}, account.ErrAccountExists
	}
	acct.ID = a.s.id()
	a.s.accounts = append(a.s.accounts, acct)

	e.ID = a.s.id()
	e.AccountID = acct.ID
	a.s.entries[e.ID] = e
	return acct, e, nil
}

func (a accountStore) First(context.Context) (account.Account, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	if len(a.s.accounts) == 0 {
		return account.Account{}, ports.ErrNotFound
	}
	return a.s.accounts[0], nil
}

func (a accountStore) Get(_ context.Context, id int64) (account.Account, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	for _, acct := range a.s.accounts {
		if acct.ID == id {
			return acct, nil
		}
	}
	return account.Account{}, ports.ErrNotFound
}

func (a accountStore) Update(_ context.Context, acct account.Account) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	for i := range a.s.accounts {
		if a.s.accounts[i].ID == acct.ID {
			a.s.accounts[i].Name = acct.Name
			a.s.accounts[i].Email = acct.Email
			return nil
		}
	}
	return ports.ErrNotFound
}

// -----------------------------------------------------------------------------
// Ledger
// -----------------------------------------------------------------------------

type ledgerStore struct{ s *Store }

func (l ledgerStore) Add(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	if err := ledger.Validate(e.Amount, e.UnitPrice); err != nil {
		return ledger.Entry{}, err
	}
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	if !l.s.hasAccount(e.AccountID) {
		return ledger.Entry{}, ports.ErrNotFound
	}
	e.ID = l.s.id()
	l.s.entries[e.ID] = e
	return e, nil
}

func (l ledgerStore) Get(_ context.Context, id int64) (ledger.Entry, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	e, ok := l.s.entries[id]
	if !ok {
		return ledger.Entry{}, ports.ErrNotFound
	}
	return e, nil
}

func (l ledgerStore) ListByAccount(_ context.Context, accountID int64) ([]ledger.Entry, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	return l.s.entriesOf(accountID), nil
}

func (l ledgerStore) Charge(_ context.Context, entry usage.LogEntry) (ledger.Entry, usage.LogEntry, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	selected, ok := ledger.SelectChargeable(l.s.entriesOf(entry.AccountID))
	if !ok {
		return ledger.Entry{}, usage.LogEntry{}, meter.ErrNoCapacity
	}
	// Selection and increment happen under one lock, so the selected entry
	// still has capacity and this engine never reports ErrRaceOnCharge.
	charged, _ := selected.Charged()
	l.s.entries[charged.ID] = charged

	id := charged.ID
	entry.LedgerEntryID = &id
	entry = l.s.appendLog(entry)
	return charged, entry, nil
}

// entriesOf must be called with mu held.
func (s *Store) entriesOf(accountID int64) []ledger.Entry {
	var out []ledger.Entry
	for _, e := range s.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	ledger.SortOldestFirst(out)
	return out
}

func (s *Store) hasAccount(id int64) bool {
	for _, a := range s.accounts {
		if a.ID == id {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Logs
// -----------------------------------------------------------------------------

type logStore struct{ s *Store }

func (l logStore) Insert(_ context.Context, entry usage.LogEntry) (usage.LogEntry, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.appendLog(entry), nil
}

func (l logStore) Query(_ context.Context, f usage.Filter) ([]usage.LogEntry, int64, error) {
	f = f.Normalize()

	l.s.mu.RLock()
	var matched []usage.LogEntry
	for _, entry := range l.s.logs {
		if f.Matches(entry) {
			matched = append(matched, entry)
		}
	}
	l.s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].RequestTime.Equal(matched[j].RequestTime) {
			return matched[i].RequestTime.After(matched[j].RequestTime)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := f.Offset()
	if start >= len(matched) {
		return []usage.LogEntry{}, total, nil
	}
	end := start + f.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (l logStore) Range(_ context.Context, accountID *int64, from, to time.Time) ([]usage.LogEntry, error) {
	f := usage.Filter{AccountID: accountID, From: &from, To: &to}

	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	var out []usage.LogEntry
	for _, entry := range l.s.logs {
		if f.Matches(entry) {
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RequestTime.Before(out[j].RequestTime) })
	return out, nil
}

// appendLog must be called with mu held.
func (s *Store) appendLog(entry usage.LogEntry) usage.LogEntry {
	entry.ID = s.id()
	entry.RequestTime = entry.RequestTime.UTC()
	s.logs = append(s.logs, entry)
	return entry
}

// -----------------------------------------------------------------------------
// Admins
// -----------------------------------------------------------------------------

type adminStore struct{ s *Store }

func (a adminStore) Exists(context.Context) (bool, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	return a.s.admin != nil, nil
}

func (a adminStore) Create(_ context.Context, admin account.Admin) (bool, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if a.s.admin != nil {
		return false, nil
	}
	admin.ID = a.s.id()
	a.s.admin = &admin
	return true, nil
}

func (a adminStore) GetByUsername(_ context.Context, username string) (account.Admin, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	if a.s.admin == nil || a.s.admin.Username != username {
		return account.Admin{}, ports.ErrNotFound
	}
	return *a.s.admin, nil
}

var _ ports.Store = (*Store)(nil)
