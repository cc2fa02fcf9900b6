package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ImagingSolutions/UsageMonitor/adapters/postgres"
	"github.com/ImagingSolutions/UsageMonitor/domain/account"
	"github.com/ImagingSolutions/UsageMonitor/domain/ledger"
	"github.com/ImagingSolutions/UsageMonitor/domain/meter"
	"github.com/ImagingSolutions/UsageMonitor/domain/usage"
	"github.com/ImagingSolutions/UsageMonitor/ports"
)

var created = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*postgres.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return postgres.New(db), mock
}

func entryRows(used int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "account_id", "amount", "unit_price", "used_requests", "created_at"}).
		AddRow(int64(1), int64(7), "10", "1", used, created)
}

func TestLedgerStore_Charge(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, account_id, amount, unit_price, used_requests, created_at FROM ledger_entries WHERE account_id = .+ FOR UPDATE").
		WithArgs(int64(7)).
		WillReturnRows(entryRows(3))
	mock.ExpectExec("UPDATE ledger_entries").
		WithArgs(int64(1), int64(3), int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO log_entries").
		WithArgs(int64(7), int64(1), "/v1/ocr", "POST", 200, 0.25, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectCommit()

	e, l, err := store.Ledger().Charge(context.Background(), usage.LogEntry{
		AccountID: 7, Path: "/v1/ocr", Method: "POST", StatusCode: 200, Duration: 0.25, RequestTime: created,
	})
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if e.UsedRequests != 4 {
		t.Errorf("UsedRequests = %d, want 4", e.UsedRequests)
	}
	if l.ID != 42 || l.LedgerEntryID == nil || *l.LedgerEntryID != 1 {
		t.Errorf("log = %+v", l)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestLedgerStore_ChargeLostRace(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(7)).WillReturnRows(entryRows(3))
	mock.ExpectExec("UPDATE ledger_entries").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, _, err := store.Ledger().Charge(context.Background(), usage.LogEntry{AccountID: 7, Path: "/x", Method: "GET"})
	if !errors.Is(err, meter.ErrRaceOnCharge) {
		t.Fatalf("Charge() error = %v, want ErrRaceOnCharge", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestLedgerStore_ChargeExhausted(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(7)).WillReturnRows(entryRows(10))
	mock.ExpectRollback()

	_, _, err := store.Ledger().Charge(context.Background(), usage.LogEntry{AccountID: 7, Path: "/x", Method: "GET"})
	if !errors.Is(err, meter.ErrNoCapacity) {
		t.Fatalf("Charge() error = %v, want ErrNoCapacity", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAdminStore_CreateDuplicate(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec("INSERT INTO admins").
		WithArgs("root", []byte("hash"), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	ok, err := store.Admins().Create(context.Background(), account.Admin{Username: "root", PasswordHash: []byte("hash"), CreatedAt: created})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ok {
		t.Error("Create() = true, want false when an admin already exists")
	}
}

func TestAccountStore_FirstNotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery("SELECT id, name, email, created_at FROM accounts ORDER BY id LIMIT 1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "created_at"}))

	if _, err := store.Accounts().First(context.Background()); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("First() error = %v, want ErrNotFound", err)
	}
}

func TestAccountStore_CreateWithEntryExisting(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("LOCK TABLE accounts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, _, err := store.Accounts().CreateWithEntry(context.Background(),
		account.Account{Name: "Acme", Email: "ops@acme.test"},
		entryFixture())
	if !errors.Is(err, account.ErrAccountExists) {
		t.Errorf("CreateWithEntry() error = %v, want ErrAccountExists", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestLogStore_QueryPaging(t *testing.T) {
	store, mock := newMock(t)
	acct := int64(7)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM log_entries WHERE account_id = \$1 AND status_code >= 400`).
		WithArgs(acct).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(11)))
	mock.ExpectQuery(`ORDER BY request_time DESC, id DESC LIMIT \$2 OFFSET \$3`).
		WithArgs(acct, 5, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "ledger_entry_id", "path", "method", "status_code", "duration", "request_time"}).
			AddRow(int64(6), acct, nil, "/x", "GET", 402, 0.0, created))

	logs, total, err := store.Logs().Query(context.Background(), usage.Filter{AccountID: &acct, ErrorsOnly: true, Page: 2, PageSize: 5})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if total != 11 || len(logs) != 1 {
		t.Fatalf("Query() total=%d len=%d", total, len(logs))
	}
	if logs[0].LedgerEntryID != nil || logs[0].StatusCode != 402 {
		t.Errorf("log = %+v", logs[0])
	}
}

func entryFixture() ledger.Entry {
	return ledger.Entry{Amount: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(1), CreatedAt: created}
}
