package app

import (
	"context"
	"fmt"

	"github.com/ImagingSolutions/UsageMonitor/domain/ledger"
	"github.com/ImagingSolutions/UsageMonitor/ports"
)

// QuotaEvaluator answers capacity questions from the ledger.
//
// Selection here is advisory: the authoritative select-and-increment
// happens inside LedgerStore.Charge, which repeats the same oldest-first
// rule under a transaction.
type QuotaEvaluator struct {
	ledger ports.LedgerStore
}

// NewQuotaEvaluator creates a quota evaluator.
func NewQuotaEvaluator(ledger ports.LedgerStore) *QuotaEvaluator {
	return &QuotaEvaluator{ledger: ledger}
}

// HasCapacity reports whether any entry of the account has remaining capacity.
func (q *QuotaEvaluator) HasCapacity(ctx context.Context, accountID int64) (bool, error) {
	entries, err := q.ledger.ListByAccount(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("list ledger entries: %w", err)
	}
	return ledger.HasCapacity(entries), nil
}

// SelectChargeable returns the entry the next charge would draw from.
func (q *QuotaEvaluator) SelectChargeable(ctx context.Context, accountID int64) (ledger.Entry, bool, error) {
	entries, err := q.ledger.ListByAccount(ctx, accountID)
	if err != nil {
		return ledger.Entry{}, false, fmt.Errorf("list ledger entries: %w", err)
	}
	e, ok := ledger.SelectChargeable(entries)
	return e, ok, nil
}

// Balance sums capacity across the account's entries.
func (q *QuotaEvaluator) Balance(ctx context.Context, accountID int64) (ledger.Balance, error) {
	entries, err := q.ledger.ListByAccount(ctx, accountID)
	if err != nil {
		return ledger.Balance{}, fmt.Errorf("list ledger entries: %w", err)
	}
	return ledger.Summarize(entries), nil
}
