package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stats is a read-only snapshot of an entry with its derived fields.
type Stats struct {
	ID                int64           `json:"id"`
	AccountID         int64           `json:"account_id"`
	Amount            decimal.Decimal `json:"amount"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	TotalRequests     int64           `json:"total_requests"`
	UsedRequests      int64           `json:"used_requests"`
	RemainingRequests int64           `json:"remaining_requests"`
	IsFullyUtilized   bool            `json:"is_fully_utilized"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (e Entry) Stats() Stats {
	return Stats{
		ID:                e.ID,
		AccountID:         e.AccountID,
		Amount:            e.Amount,
		UnitPrice:         e.UnitPrice,
		TotalRequests:     e.TotalRequests(),
		UsedRequests:      e.UsedRequests,
		RemainingRequests: e.RemainingRequests(),
		IsFullyUtilized:   e.IsFullyUtilized(),
		CreatedAt:         e.CreatedAt,
	}
}

// Balance sums capacity across all entries of an account.
type Balance struct {
	Entries           int             `json:"entries"`
	ActiveEntries     int             `json:"active_entries"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	TotalRequests     int64           `json:"total_requests"`
	UsedRequests      int64           `json:"used_requests"`
	RemainingRequests int64           `json:"remaining_requests"`
}

// Summarize computes the account balance. This is a PURE function.
func Summarize(entries []Entry) Balance {
	b := Balance{TotalAmount: decimal.Zero}
	for _, e := range entries {
		b.Entries++
		if e.HasCapacity() {
			b.ActiveEntries++
		}
		b.TotalAmount = b.TotalAmount.Add(e.Amount)
		b.TotalRequests += e.TotalRequests()
		b.UsedRequests += e.UsedRequests
		b.RemainingRequests += e.RemainingRequests()
	}
	return b
}
