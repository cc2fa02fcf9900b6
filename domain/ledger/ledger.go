// Package ledger models prepaid purchases of request capacity.
//
// An Entry stores only its amount, unit price and used count. Total and
// remaining capacity are always derived, never persisted.
package ledger

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidUnitPrice = errors.New("unit price must be greater than zero")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
)

// Entry is a single purchase of request capacity.
type Entry struct {
	ID           int64
	AccountID    int64
	Amount       decimal.Decimal
	UnitPrice    decimal.Decimal
	UsedRequests int64
	CreatedAt    time.Time
}

// Validate checks the monetary fields of a new purchase.
func Validate(amount, unitPrice decimal.Decimal) error {
	if !unitPrice.IsPositive() {
		return ErrInvalidUnitPrice
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// New builds an unsaved entry with zero usage.
func New(accountID int64, amount, unitPrice decimal.Decimal, now time.Time) (Entry, error) {
	if err := Validate(amount, unitPrice); err != nil {
		return Entry{}, err
	}
	return Entry{
		AccountID: accountID,
		Amount:    amount,
		UnitPrice: unitPrice,
		CreatedAt: now.UTC(),
	}, nil
}

// TotalRequests is floor(amount / unit price). A non-positive unit price
// yields zero capacity.
func (e Entry) TotalRequests() int64 {
	if !e.UnitPrice.IsPositive() || !e.Amount.IsPositive() {
		return 0
	}
	return e.Amount.Div(e.UnitPrice).Floor().IntPart()
}

// RemainingRequests never goes below zero.
func (e Entry) RemainingRequests() int64 {
	if r := e.TotalRequests() - e.UsedRequests; r > 0 {
		return r
	}
	return 0
}

// IsFullyUtilized reports whether used has reached total.
func (e Entry) IsFullyUtilized() bool {
	return e.UsedRequests >= e.TotalRequests()
}

// HasCapacity reports whether one more request can be charged.
func (e Entry) HasCapacity() bool {
	return e.RemainingRequests() > 0
}

// Charged returns a copy with one more used request. ok is false when the
// entry has no capacity left; the entry is then returned unchanged.
func (e Entry) Charged() (Entry, bool) {
	if !e.HasCapacity() {
		return e, false
	}
	e.UsedRequests++
	return e, true
}

// SortOldestFirst orders entries by creation time, then by ID.
func SortOldestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return older(entries[i], entries[j])
	})
}

// SelectChargeable returns the oldest entry with remaining capacity.
// Ties on creation time are broken by the lower ID.
// This is a PURE function.
func SelectChargeable(entries []Entry) (Entry, bool) {
	var (
		best  Entry
		found bool
	)
	for _, e := range entries {
		if !e.HasCapacity() {
			continue
		}
		if !found || older(e, best) {
			best, found = e, true
		}
	}
	return best, found
}

// HasCapacity reports whether any entry can take one more request.
func HasCapacity(entries []Entry) bool {
	_, ok := SelectChargeable(entries)
	return ok
}

func older(a, b Entry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
