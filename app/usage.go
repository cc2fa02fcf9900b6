package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ImagingSolutions/UsageMonitor/domain/account"
	"github.com/ImagingSolutions/UsageMonitor/domain/ledger"
	"github.com/ImagingSolutions/UsageMonitor/domain/meter"
	"github.com/ImagingSolutions/UsageMonitor/domain/usage"
	"github.com/ImagingSolutions/UsageMonitor/ports"
)

// DefaultWindowDays is the analytics window when none is given.
const DefaultWindowDays = 7

// allTime is the lower bound used by unwindowed rollups.
var allTime = time.Unix(0, 0).UTC()

// UsageService answers read-only usage and billing queries.
type UsageService struct {
	accounts ports.AccountStore
	ledger   ports.LedgerStore
	logs     ports.LogStore
	clock    ports.Clock
}

// NewUsageService creates a usage service.
func NewUsageService(accounts ports.AccountStore, ledger ports.LedgerStore, logs ports.LogStore, clock ports.Clock) *UsageService {
	return &UsageService{
		accounts: accounts,
		ledger:   ledger,
		logs:     logs,
		clock:    clock,
	}
}

// window returns [first day of the window, midnight after today).
func (s *UsageService) window(days int) (time.Time, time.Time, int) {
	if days < 1 {
		days = DefaultWindowDays
	}
	now := s.clock.Now()
	return usage.WindowStart(now, days), usage.DayStart(now).AddDate(0, 0, 1), days
}

// -----------------------------------------------------------------------------
// Logs
// -----------------------------------------------------------------------------

// GetLogs returns one page of log rows, most recent first, with the total
// number of matching rows.
func (s *UsageService) GetLogs(ctx context.Context, f usage.Filter) ([]usage.LogEntry, int64, error) {
	logs, total, err := s.logs.Query(ctx, f.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("query logs: %w", err)
	}
	return logs, total, nil
}

// GetErrorLogs returns rows with status >= 400, most recent first.
func (s *UsageService) GetErrorLogs(ctx context.Context, f usage.Filter) ([]usage.LogEntry, int64, error) {
	f.ErrorsOnly = true
	return s.GetLogs(ctx, f)
}

// -----------------------------------------------------------------------------
// Ledger
// -----------------------------------------------------------------------------

// GetLedgerEntry returns one entry with derived fields, or ports.ErrNotFound.
func (s *UsageService) GetLedgerEntry(ctx context.Context, id int64) (ledger.Stats, error) {
	e, err := s.ledger.Get(ctx, id)
	if err != nil {
		return ledger.Stats{}, err
	}
	return e.Stats(), nil
}

// GetAllLedgerEntries returns every entry of an account, oldest first.
func (s *UsageService) GetAllLedgerEntries(ctx context.Context, accountID int64) ([]ledger.Stats, error) {
	entries, err := s.ledger.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	out := make([]ledger.Stats, len(entries))
	for i, e := range entries {
		out[i] = e.Stats()
	}
	return out, nil
}

// GetBalance sums capacity across the account's entries.
func (s *UsageService) GetBalance(ctx context.Context, accountID int64) (ledger.Balance, error) {
	entries, err := s.ledger.ListByAccount(ctx, accountID)
	if err != nil {
		return ledger.Balance{}, fmt.Errorf("list ledger entries: %w", err)
	}
	return ledger.Summarize(entries), nil
}

// -----------------------------------------------------------------------------
// Analytics
// -----------------------------------------------------------------------------

// GetOverview summarizes the last windowDays days.
func (s *UsageService) GetOverview(ctx context.Context, windowDays int) (usage.Overview, error) {
	from, to, _ := s.window(windowDays)
	logs, err := s.logs.Range(ctx, nil, from, to)
	if err != nil {
		return usage.Overview{}, fmt.Errorf("range logs: %w", err)
	}
	return usage.Summarize(logs, from, to), nil
}

// GetTimeline returns one entry per day of the window, oldest first,
// including days without traffic.
func (s *UsageService) GetTimeline(ctx context.Context, windowDays int) ([]usage.DayCount, error) {
	from, to, days := s.window(windowDays)
	logs, err := s.logs.Range(ctx, nil, from, to)
	if err != nil {
		return nil, fmt.Errorf("range logs: %w", err)
	}
	return usage.Timeline(logs, from, days), nil
}

// GetTopEndpoints ranks paths over all recorded traffic.
func (s *UsageService) GetTopEndpoints(ctx context.Context, limit int) ([]usage.EndpointStats, error) {
	logs, err := s.logs.Range(ctx, nil, allTime, s.clock.Now().Add(time.Second))
	if err != nil {
		return nil, fmt.Errorf("range logs: %w", err)
	}
	return usage.TopEndpoints(logs, limit), nil
}

// GetResponseTimeSeries returns daily latency percentiles for the window.
func (s *UsageService) GetResponseTimeSeries(ctx context.Context, windowDays int) ([]usage.ResponseTimePoint, error) {
	from, to, days := s.window(windowDays)
	logs, err := s.logs.Range(ctx, nil, from, to)
	if err != nil {
		return nil, fmt.Errorf("range logs: %w", err)
	}
	return usage.ResponseTimeSeries(logs, from, days), nil
}

// GetMonthlyUsage counts requests per day of the current UTC month.
func (s *UsageService) GetMonthlyUsage(ctx context.Context) ([]usage.DayUsage, error) {
	start := usage.MonthStart(s.clock.Now())
	logs, err := s.logs.Range(ctx, nil, start, start.AddDate(0, 1, 0))
	if err != nil {
		return nil, fmt.Errorf("range logs: %w", err)
	}
	return usage.MonthlyUsage(logs, start), nil
}

// GetErrorRates groups the window's errors by path.
func (s *UsageService) GetErrorRates(ctx context.Context, windowDays int) ([]usage.PathErrors, error) {
	from, to, _ := s.window(windowDays)
	logs, err := s.logs.Range(ctx, nil, from, to)
	if err != nil {
		return nil, fmt.Errorf("range logs: %w", err)
	}
	return usage.ErrorRates(logs), nil
}

// Dashboard bundles the rollups shown together on the overview page.
type Dashboard struct {
	Overview     usage.Overview        `json:"overview"`
	Timeline     []usage.DayCount      `json:"timeline"`
	TopEndpoints []usage.EndpointStats `json:"top_endpoints"`
	Balance      *ledger.Balance       `json:"balance,omitempty"`
}

// GetDashboard computes the dashboard rollups concurrently. Balance is
// omitted when no account is provisioned.
func (s *UsageService) GetDashboard(ctx context.Context, windowDays, topLimit int) (Dashboard, error) {
	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		o, err := s.GetOverview(gctx, windowDays)
		d.Overview = o
		return err
	})
	g.Go(func() error {
		tl, err := s.GetTimeline(gctx, windowDays)
		d.Timeline = tl
		return err
	})
	g.Go(func() error {
		top, err := s.GetTopEndpoints(gctx, topLimit)
		d.TopEndpoints = top
		return err
	})
	g.Go(func() error {
		acct, err := s.accounts.First(gctx)
		if errors.Is(err, ports.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		b, err := s.GetBalance(gctx, acct.ID)
		if err != nil {
			return err
		}
		d.Balance = &b
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// -----------------------------------------------------------------------------
// Report
// -----------------------------------------------------------------------------

// Report is the data behind a printable usage report.
type Report struct {
	Account     account.Account  `json:"account"`
	From        time.Time        `json:"from"`
	To          time.Time        `json:"to"`
	GeneratedAt time.Time        `json:"generated_at"`
	Overview    usage.Overview   `json:"overview"`
	Balance     ledger.Balance   `json:"balance"`
	Payments    []ledger.Stats   `json:"payments"`
	Daily       []usage.DayCount `json:"daily"`
}

// GetReport assembles report data for the active account over the days
// from..to inclusive. A zero from defaults to the start of the month; a
// zero to defaults to today.
func (s *UsageService) GetReport(ctx context.Context, from, to time.Time) (Report, error) {
	now := s.clock.Now()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = usage.MonthStart(to)
	}
	from, end := usage.DayStart(from), usage.DayStart(to).AddDate(0, 0, 1)
	if !from.Before(end) {
		return Report{}, fmt.Errorf("report range: from %s is after to %s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	days := int(end.Sub(from) / (24 * time.Hour))

	acct, err := s.accounts.First(ctx)
	if errors.Is(err, ports.ErrNotFound) {
		return Report{}, meter.ErrNotProvisioned
	}
	if err != nil {
		return Report{}, fmt.Errorf("load account: %w", err)
	}

	entries, err := s.ledger.ListByAccount(ctx, acct.ID)
	if err != nil {
		return Report{}, fmt.Errorf("list ledger entries: %w", err)
	}
	payments := make([]ledger.Stats, len(entries))
	for i, e := range entries {
		payments[i] = e.Stats()
	}

	logs, err := s.logs.Range(ctx, &acct.ID, from, end)
	if err != nil {
		return Report{}, fmt.Errorf("range logs: %w", err)
	}

	return Report{
		Account:     acct,
		From:        from,
		To:          end,
		GeneratedAt: now,
		Overview:    usage.Summarize(logs, from, end),
		Balance:     ledger.Summarize(entries),
		Payments:    payments,
		Daily:       usage.Timeline(logs, from, days),
	}, nil
}
