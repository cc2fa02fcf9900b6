package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ImagingSolutions/UsageMonitor/adapters/clock"
	apihttp "github.com/ImagingSolutions/UsageMonitor/adapters/http"
	"github.com/ImagingSolutions/UsageMonitor/adapters/memory"
	"github.com/ImagingSolutions/UsageMonitor/app"
	"github.com/ImagingSolutions/UsageMonitor/domain/account"
	"github.com/ImagingSolutions/UsageMonitor/domain/ledger"
	"github.com/ImagingSolutions/UsageMonitor/domain/meter"
	"github.com/ImagingSolutions/UsageMonitor/domain/usage"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func newMonitor(t *testing.T, paths ...string) (*apihttp.Monitor, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	accountant := app.NewAccountant(app.AccountantDeps{
		Accounts: store.Accounts(),
		Ledger:   store.Ledger(),
		Logs:     store.Logs(),
		Clock:    clock.NewFake(baseTime),
		Logger:   zerolog.Nop(),
	}, app.DefaultPolicy())
	return apihttp.NewMonitor(accountant, paths, zerolog.Nop()), store
}

// provision creates the account with capacity for n requests at 0.01 each.
func provision(t *testing.T, store *memory.Store, n int64) {
	t.Helper()
	_, _, err := store.Accounts().CreateWithEntry(context.Background(),
		account.Account{Name: "Acme", Email: "ops@acme.test", CreatedAt: baseTime},
		ledger.Entry{
			Amount:    decimal.NewFromInt(n).Mul(decimal.RequireFromString("0.01")),
			UnitPrice: decimal.RequireFromString("0.01"),
			CreatedAt: baseTime,
		})
	if err != nil {
		t.Fatalf("CreateWithEntry() error = %v", err)
	}
}

func logsOf(t *testing.T, store *memory.Store) []usage.LogEntry {
	t.Helper()
	logs, _, err := store.Logs().Query(context.Background(), usage.Filter{PageSize: usage.MaxPageSize})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	return logs
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var doc struct {
		Errors []struct {
			Code string `json:"code"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil || len(doc.Errors) == 0 {
		t.Fatalf("not an error document: %q", rec.Body.String())
	}
	return doc.Errors[0].Code
}

func TestMonitor_Metered(t *testing.T) {
	m, _ := newMonitor(t, "/v1/", "/reports")

	tests := []struct {
		path string
		want bool
	}{
		{"/v1", true},
		{"/v1/users", true},
		{"/v10", false},
		{"/reports", true},
		{"/reports/2024", true},
		{"/reportsx", false},
		{"/health", false},
		{"/", false},
	}
	for _, tt := range tests {
		if got := m.Metered(tt.path); got != tt.want {
			t.Errorf("Metered(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMonitor_RootPrefixMetersEverything(t *testing.T) {
	m, _ := newMonitor(t, "/")
	if !m.Metered("/anything/at/all") {
		t.Error("root prefix should meter every path")
	}
}

func TestMonitor_SetPaths(t *testing.T) {
	m, _ := newMonitor(t, "/v1")
	m.SetPaths([]string{" /v2/ ", ""})

	if m.Metered("/v1/x") {
		t.Error("old prefix still metered")
	}
	if !m.Metered("/v2/x") {
		t.Error("new prefix not metered")
	}
	if got := m.Paths(); len(got) != 1 || got[0] != "/v2" {
		t.Errorf("Paths() = %v", got)
	}
}

func TestMonitor_UnmeteredPassThrough(t *testing.T) {
	m, store := newMonitor(t, "/v1")
	called := false
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	// No account provisioned, but the path is not metered.
	rec := serve(h, http.MethodGet, "/other")
	if !called || rec.Code != http.StatusOK {
		t.Errorf("called = %v, status = %d", called, rec.Code)
	}
	if n := len(logsOf(t, store)); n != 0 {
		t.Errorf("logs = %d, want 0", n)
	}
}

func TestMonitor_NotProvisioned(t *testing.T) {
	m, _ := newMonitor(t, "/v1")
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without an account")
	}))

	rec := serve(h, http.MethodGet, "/v1/items")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if code := errorCode(t, rec); code != "not_provisioned" {
		t.Errorf("code = %q", code)
	}
}

func TestMonitor_ChargesAndRecords(t *testing.T) {
	m, store := newMonitor(t, "/v1")
	provision(t, store, 2)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := serve(h, http.MethodPost, "/v1/items")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	logs := logsOf(t, store)
	if len(logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(logs))
	}
	l := logs[0]
	if l.Path != "/v1/items" || l.Method != http.MethodPost || l.StatusCode != http.StatusCreated {
		t.Errorf("log = %+v", l)
	}
	if !l.Charged() {
		t.Error("log is not charged")
	}
}

func TestMonitor_ExhaustedCapacity(t *testing.T) {
	m, store := newMonitor(t, "/v1")
	provision(t, store, 1)
	calls := 0
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	if rec := serve(h, http.MethodGet, "/v1/items"); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := serve(h, http.MethodGet, "/v1/items")
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("second request status = %d, want 402", rec.Code)
	}
	if code := errorCode(t, rec); code != "payment_required" {
		t.Errorf("code = %q", code)
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}

	// The rejection is logged uncharged.
	var charged, uncharged int
	for _, l := range logsOf(t, store) {
		if l.Charged() {
			charged++
		} else {
			uncharged++
		}
	}
	if charged != 1 || uncharged != 1 {
		t.Errorf("charged = %d, uncharged = %d", charged, uncharged)
	}
}

func TestMonitor_ServerErrorIsCharged(t *testing.T) {
	m, store := newMonitor(t, "/v1")
	provision(t, store, 5)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	if rec := serve(h, http.MethodGet, "/v1/items"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	logs := logsOf(t, store)
	if len(logs) != 1 || logs[0].StatusCode != http.StatusInternalServerError || !logs[0].Charged() {
		t.Errorf("logs = %+v", logs)
	}
}

func TestMonitor_BusinessErrorPanic(t *testing.T) {
	m, store := newMonitor(t, "/v1")
	provision(t, store, 5)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(meter.Business(errors.New("no such item"), http.StatusNotFound))
	}))

	rec := serve(h, http.MethodGet, "/v1/items/42")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if code := errorCode(t, rec); code != "not_found" {
		t.Errorf("code = %q", code)
	}

	// Answered with 404, logged as a successful charged request.
	logs := logsOf(t, store)
	if len(logs) != 1 || logs[0].StatusCode != http.StatusOK || !logs[0].Charged() {
		t.Errorf("logs = %+v", logs)
	}
}

func TestMonitor_PanicIsRecordedAndReraised(t *testing.T) {
	m, store := newMonitor(t, "/v1")
	provision(t, store, 5)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	func() {
		defer func() {
			if r := recover(); r != "kaboom" {
				t.Errorf("recovered %v, want kaboom", r)
			}
		}()
		serve(h, http.MethodGet, "/v1/items")
	}()

	logs := logsOf(t, store)
	if len(logs) != 1 || logs[0].StatusCode != http.StatusInternalServerError || !logs[0].Charged() {
		t.Errorf("logs = %+v", logs)
	}
}
