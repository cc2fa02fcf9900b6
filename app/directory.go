package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ImagingSolutions/UsageMonitor/domain/account"
	"github.com/ImagingSolutions/UsageMonitor/domain/ledger"
	"github.com/ImagingSolutions/UsageMonitor/domain/meter"
	"github.com/ImagingSolutions/UsageMonitor/ports"
)

// Directory manages the administrator credential and the metered account.
type Directory struct {
	accounts ports.AccountStore
	ledger   ports.LedgerStore
	admins   ports.AdminStore
	hasher   ports.Hasher
	clock    ports.Clock
	logger   zerolog.Logger
}

// DirectoryDeps contains dependencies for Directory.
type DirectoryDeps struct {
	Accounts ports.AccountStore
	Ledger   ports.LedgerStore
	Admins   ports.AdminStore
	Hasher   ports.Hasher
	Clock    ports.Clock
	Logger   zerolog.Logger
}

// NewDirectory creates a directory service.
func NewDirectory(deps DirectoryDeps) *Directory {
	return &Directory{
		accounts: deps.Accounts,
		ledger:   deps.Ledger,
		admins:   deps.Admins,
		hasher:   deps.Hasher,
		clock:    deps.Clock,
		logger:   deps.Logger,
	}
}

// -----------------------------------------------------------------------------
// Administrator
// -----------------------------------------------------------------------------

// HasAdminAccount reports whether setup has been completed.
func (d *Directory) HasAdminAccount(ctx context.Context) (bool, error) {
	ok, err := d.admins.Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return ok, nil
}

// CreateAdminAccount stores the single administrator. It returns false
// when one already exists; the existing row is left untouched.
func (d *Directory) CreateAdminAccount(ctx context.Context, username, password string) (bool, error) {
	if err := account.ValidateCredentials(username, password); err != nil {
		return false, err
	}

	hash, err := d.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	created, err := d.admins.Create(ctx, account.Admin{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    d.clock.Now(),
	})
	if err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	if created {
		d.logger.Info().Str("username", username).Msg("administrator created")
	}
	return created, nil
}

// VerifyAdminCredentials checks a username and password. Unknown users
// and wrong passwords are indistinguishable to the caller.
func (d *Directory) VerifyAdminCredentials(ctx context.Context, username, password string) (bool, error) {
	admin, err := d.admins.GetByUsername(ctx, username)
	if errors.Is(err, ports.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load admin: %w", err)
	}
	return d.hasher.Compare(admin.PasswordHash, password), nil
}

// -----------------------------------------------------------------------------
// Account
// -----------------------------------------------------------------------------

// GetAccount returns the active account, or meter.ErrNotProvisioned.
func (d *Directory) GetAccount(ctx context.Context) (account.Account, error) {
	acct, err := d.accounts.First(ctx)
	if errors.Is(err, ports.ErrNotFound) {
		return account.Account{}, meter.ErrNotProvisioned
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("load account: %w", err)
	}
	return acct, nil
}

// CreateAccount provisions the account together with its first ledger
// entry. Fails with account.ErrAccountExists when one is provisioned.
func (d *Directory) CreateAccount(ctx context.Context, name, email string, amount, unitPrice decimal.Decimal) (account.Account, ledger.Entry, error) {
	name, email = account.Normalize(name, email)
	if err := account.Validate(name, email); err != nil {
		return account.Account{}, ledger.Entry{}, err
	}

	now := d.clock.Now()
	entry, err := ledger.New(0, amount, unitPrice, now)
	if err != nil {
		return account.Account{}, ledger.Entry{}, err
	}

	acct, entry, err := d.accounts.CreateWithEntry(ctx, account.Account{
		Name:      name,
		Email:     email,
		CreatedAt: now,
	}, entry)
	if err != nil {
		if errors.Is(err, account.ErrAccountExists) {
			return account.Account{}, ledger.Entry{}, err
		}
		return account.Account{}, ledger.Entry{}, fmt.Errorf("create account: %w", err)
	}

	d.logger.Info().
		Int64("account_id", acct.ID).
		Int64("ledger_entry_id", entry.ID).
		Int64("total_requests", entry.TotalRequests()).
		Msg("account provisioned")
	return acct, entry, nil
}

// UpdateAccount changes the account's name and email.
func (d *Directory) UpdateAccount(ctx context.Context, id int64, name, email string) (account.Account, error) {
	name, email = account.Normalize(name, email)
	if err := account.Validate(name, email); err != nil {
		return account.Account{}, err
	}

	acct, err := d.accounts.Get(ctx, id)
	if err != nil {
		return account.Account{}, err
	}
	acct.Name, acct.Email = name, email
	if err := d.accounts.Update(ctx, acct); err != nil {
		return account.Account{}, fmt.Errorf("update account: %w", err)
	}
	return acct, nil
}

// AddLedgerEntry adds prepaid capacity to an account.
func (d *Directory) AddLedgerEntry(ctx context.Context, accountID int64, amount, unitPrice decimal.Decimal) (ledger.Entry, error) {
	entry, err := ledger.New(accountID, amount, unitPrice, d.clock.Now())
	if err != nil {
		return ledger.Entry{}, err
	}

	entry, err = d.ledger.Add(ctx, entry)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return ledger.Entry{}, err
		}
		return ledger.Entry{}, fmt.Errorf("add ledger entry: %w", err)
	}

	d.logger.Info().
		Int64("account_id", accountID).
		Int64("ledger_entry_id", entry.ID).
		Str("amount", entry.Amount.String()).
		Int64("total_requests", entry.TotalRequests()).
		Msg("capacity added")
	return entry, nil
}
