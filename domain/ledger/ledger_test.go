package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ImagingSolutions/UsageMonitor/domain/ledger"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEntryDerivedFields(t *testing.T) {
	tests := []struct {
		name          string
		amount, price string
		used          int64
		wantTotal     int64
		wantRemaining int64
		wantFull      bool
	}{
		{"even split", "100", "4", 0, 25, 25, false},
		{"floors fraction", "10", "3", 0, 3, 3, false},
		{"decimal prices", "0.3", "0.1", 1, 3, 2, false},
		{"exhausted", "10", "5", 2, 2, 0, true},
		{"overused clamps", "10", "5", 3, 2, 0, true},
		{"price above amount", "1", "2", 0, 0, 0, true},
		{"zero price", "10", "0", 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ledger.Entry{Amount: dec(tt.amount), UnitPrice: dec(tt.price), UsedRequests: tt.used}
			if got := e.TotalRequests(); got != tt.wantTotal {
				t.Errorf("TotalRequests() = %d, want %d", got, tt.wantTotal)
			}
			if got := e.RemainingRequests(); got != tt.wantRemaining {
				t.Errorf("RemainingRequests() = %d, want %d", got, tt.wantRemaining)
			}
			if got := e.IsFullyUtilized(); got != tt.wantFull {
				t.Errorf("IsFullyUtilized() = %v, want %v", got, tt.wantFull)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := ledger.New(1, dec("10"), dec("0"), now); !errors.Is(err, ledger.ErrInvalidUnitPrice) {
		t.Errorf("zero unit price: err = %v, want ErrInvalidUnitPrice", err)
	}
	if _, err := ledger.New(1, dec("10"), dec("-1"), now); !errors.Is(err, ledger.ErrInvalidUnitPrice) {
		t.Errorf("negative unit price: err = %v, want ErrInvalidUnitPrice", err)
	}
	if _, err := ledger.New(1, dec("0"), dec("1"), now); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("zero amount: err = %v, want ErrInvalidAmount", err)
	}

	e, err := ledger.New(7, dec("50"), dec("0.5"), now)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if e.AccountID != 7 || e.UsedRequests != 0 || !e.CreatedAt.Equal(now) {
		t.Errorf("New() = %+v", e)
	}
	if e.TotalRequests() != 100 {
		t.Errorf("TotalRequests() = %d, want 100", e.TotalRequests())
	}
}

func TestCharged(t *testing.T) {
	e := ledger.Entry{Amount: dec("2"), UnitPrice: dec("1")}

	e, ok := e.Charged()
	if !ok || e.UsedRequests != 1 {
		t.Fatalf("first charge: ok=%v used=%d", ok, e.UsedRequests)
	}
	e, ok = e.Charged()
	if !ok || e.UsedRequests != 2 {
		t.Fatalf("second charge: ok=%v used=%d", ok, e.UsedRequests)
	}
	e, ok = e.Charged()
	if ok || e.UsedRequests != 2 {
		t.Errorf("charge past total: ok=%v used=%d, want false 2", ok, e.UsedRequests)
	}
}

func TestSelectChargeable(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	full := ledger.Entry{ID: 1, Amount: dec("1"), UnitPrice: dec("1"), UsedRequests: 1, CreatedAt: base}
	newer := ledger.Entry{ID: 2, Amount: dec("5"), UnitPrice: dec("1"), CreatedAt: base.Add(2 * time.Hour)}
	older := ledger.Entry{ID: 3, Amount: dec("5"), UnitPrice: dec("1"), CreatedAt: base.Add(time.Hour)}

	got, ok := ledger.SelectChargeable([]ledger.Entry{newer, full, older})
	if !ok {
		t.Fatal("SelectChargeable() found nothing")
	}
	if got.ID != 3 {
		t.Errorf("SelectChargeable() ID = %d, want 3", got.ID)
	}

	if _, ok := ledger.SelectChargeable([]ledger.Entry{full}); ok {
		t.Error("exhausted entries must not be selectable")
	}
	if ledger.HasCapacity(nil) {
		t.Error("HasCapacity(nil) = true, want false")
	}
}

func TestSelectChargeable_TieBreaksOnID(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := ledger.Entry{ID: 9, Amount: dec("1"), UnitPrice: dec("1"), CreatedAt: at}
	b := ledger.Entry{ID: 4, Amount: dec("1"), UnitPrice: dec("1"), CreatedAt: at}

	got, _ := ledger.SelectChargeable([]ledger.Entry{a, b})
	if got.ID != 4 {
		t.Errorf("SelectChargeable() ID = %d, want 4", got.ID)
	}
}

func TestSortOldestFirst(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []ledger.Entry{
		{ID: 3, CreatedAt: at.Add(time.Minute)},
		{ID: 2, CreatedAt: at},
		{ID: 1, CreatedAt: at},
	}
	ledger.SortOldestFirst(entries)
	for i, want := range []int64{1, 2, 3} {
		if entries[i].ID != want {
			t.Errorf("entries[%d].ID = %d, want %d", i, entries[i].ID, want)
		}
	}
}

func TestSummarize(t *testing.T) {
	entries := []ledger.Entry{
		{Amount: dec("10"), UnitPrice: dec("1"), UsedRequests: 10},
		{Amount: dec("7.5"), UnitPrice: dec("2.5"), UsedRequests: 1},
	}
	b := ledger.Summarize(entries)

	if b.Entries != 2 || b.ActiveEntries != 1 {
		t.Errorf("Entries/Active = %d/%d, want 2/1", b.Entries, b.ActiveEntries)
	}
	if b.TotalRequests != 13 || b.UsedRequests != 11 || b.RemainingRequests != 2 {
		t.Errorf("totals = %d/%d/%d, want 13/11/2", b.TotalRequests, b.UsedRequests, b.RemainingRequests)
	}
	if !b.TotalAmount.Equal(dec("17.5")) {
		t.Errorf("TotalAmount = %s, want 17.5", b.TotalAmount)
	}
}

func TestStats(t *testing.T) {
	e := ledger.Entry{ID: 5, AccountID: 1, Amount: dec("3"), UnitPrice: dec("1"), UsedRequests: 3}
	s := e.Stats()
	if s.TotalRequests != 3 || s.RemainingRequests != 0 || !s.IsFullyUtilized {
		t.Errorf("Stats() = %+v", s)
	}
}
