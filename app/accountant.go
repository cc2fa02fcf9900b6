// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/rs/zerolog"

	"github.com/ImagingSolutions/UsageMonitor/domain/account"
	"github.com/ImagingSolutions/UsageMonitor/domain/ledger"
	"github.com/ImagingSolutions/UsageMonitor/domain/meter"
	"github.com/ImagingSolutions/UsageMonitor/domain/usage"
	"github.com/ImagingSolutions/UsageMonitor/ports"
)

// Observer receives accounting events. *metrics.Collector implements it.
type Observer interface {
	ObserveCharge(remaining int64)
	ObserveRecorded(status int)
	ObserveRejection(reason string)
	ObserveRetry()
	ObservePersistenceFailure(op string)
}

type nopObserver struct{}

func (nopObserver) ObserveCharge(int64)              {}
func (nopObserver) ObserveRecorded(int)              {}
func (nopObserver) ObserveRejection(string)          {}
func (nopObserver) ObserveRetry()                    {}
func (nopObserver) ObservePersistenceFailure(string) {}

// Policy contains hot-reloadable accounting settings.
type Policy struct {
	// LogRejections writes an uncharged log row when a request is
	// turned away for lack of capacity.
	LogRejections bool

	// MaxChargeAttempts bounds how often a charge that lost a race is retried.
	MaxChargeAttempts int

	// RetryDelay is the initial backoff between charge attempts. Zero retries immediately.
	RetryDelay time.Duration

	// RecordTimeout bounds the charge-and-record step. Zero means no bound.
	RecordTimeout time.Duration
}

// DefaultPolicy is used when no configuration is supplied.
func DefaultPolicy() Policy {
	return Policy{
		LogRejections:     true,
		MaxChargeAttempts: 5,
		RetryDelay:        5 * time.Millisecond,
		RecordTimeout:     5 * time.Second,
	}
}

// Request identifies the guarded call being metered.
type Request struct {
	Path   string
	Method string
}

// Operation is the guarded work. It returns the status it produced.
// A zero status with a nil error records 200.
type Operation func(ctx context.Context) (int, error)

// Result describes how a guarded request was accounted.
type Result struct {
	State         meter.State
	Account       account.Account
	Status        int
	Duration      time.Duration
	LedgerEntryID *int64
}

// Accountant admits, executes and records metered requests.
type Accountant struct {
	accounts ports.AccountStore
	ledger   ports.LedgerStore
	logs     ports.LogStore
	quota    *QuotaEvaluator
	clock    ports.Clock
	logger   zerolog.Logger
	observer Observer

	state atomic.Pointer[accountingState]
}

type accountingState struct {
	policy Policy
	retry  retrypolicy.RetryPolicy[charged]
}

// charged is the outcome of one successful LedgerStore.Charge.
type charged struct {
	entry ledger.Entry
	log   usage.LogEntry
}

// AccountantDeps contains dependencies for Accountant.
type AccountantDeps struct {
	Accounts ports.AccountStore
	Ledger   ports.LedgerStore
	Logs     ports.LogStore
	Clock    ports.Clock
	Logger   zerolog.Logger
	Observer Observer // optional
}

// NewAccountant creates a request accountant.
func NewAccountant(deps AccountantDeps, policy Policy) *Accountant {
	a := &Accountant{
		accounts: deps.Accounts,
		ledger:   deps.Ledger,
		logs:     deps.Logs,
		quota:    NewQuotaEvaluator(deps.Ledger),
		clock:    deps.Clock,
		logger:   deps.Logger,
		observer: deps.Observer,
	}
	if a.observer == nil {
		a.observer = nopObserver{}
	}
	a.UpdatePolicy(policy)
	return a
}

// UpdatePolicy swaps the accounting policy. Safe while requests are in flight.
func (a *Accountant) UpdatePolicy(p Policy) {
	if p.MaxChargeAttempts < 1 {
		p.MaxChargeAttempts = 1
	}
	a.state.Store(&accountingState{policy: p, retry: a.buildRetry(p)})
}

// Policy returns the current accounting policy.
func (a *Accountant) Policy() Policy {
	return a.state.Load().policy
}

// Quota returns the evaluator used for capacity checks.
func (a *Accountant) Quota() *QuotaEvaluator {
	return a.quota
}

func (a *Accountant) buildRetry(p Policy) retrypolicy.RetryPolicy[charged] {
	builder := retrypolicy.NewBuilder[charged]().
		HandleErrors(meter.ErrRaceOnCharge).
		WithMaxAttempts(p.MaxChargeAttempts).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[charged]) {
			a.observer.ObserveRetry()
			a.logger.Debug().Int("attempt", e.Attempts()).Msg("charge lost a race, retrying")
		})
	if p.RetryDelay > 0 {
		builder = builder.WithBackoff(p.RetryDelay, 10*p.RetryDelay)
	}
	return builder.Build()
}

// -----------------------------------------------------------------------------
// Admission
// -----------------------------------------------------------------------------

// GetAccount returns the active account, or meter.ErrNotProvisioned.
func (a *Accountant) GetAccount(ctx context.Context) (account.Account, error) {
	acct, err := a.accounts.First(ctx)
	if errors.Is(err, ports.ErrNotFound) {
		return account.Account{}, meter.ErrNotProvisioned
	}
	if err != nil {
		return account.Account{}, meter.Persistence("load_account", err)
	}
	return acct, nil
}

// HasCapacity reports whether the account can absorb another request.
// A storage failure is a PersistenceError, never a silent yes.
func (a *Accountant) HasCapacity(ctx context.Context, accountID int64) (bool, error) {
	ok, err := a.quota.HasCapacity(ctx, accountID)
	if err != nil {
		return false, meter.Persistence("check_capacity", err)
	}
	return ok, nil
}

// Admit resolves the account and checks its capacity without charging.
func (a *Accountant) Admit(ctx context.Context, req Request) (account.Account, error) {
	acct, _, err := a.admit(ctx, req)
	return acct, err
}

func (a *Accountant) admit(ctx context.Context, req Request) (account.Account, meter.State, error) {
	acct, err := a.GetAccount(ctx)
	if err != nil {
		a.reject(err, req)
		return account.Account{}, meter.StateAdmissionFailed, err
	}

	ok, err := a.HasCapacity(ctx, acct.ID)
	if err != nil {
		a.reject(err, req)
		return acct, meter.StateCapacityRejected, err
	}
	if !ok {
		a.reject(meter.ErrNoCapacity, req)
		if a.state.Load().policy.LogRejections {
			a.logUncharged(ctx, usage.LogEntry{
				AccountID:   acct.ID,
				Path:        req.Path,
				Method:      req.Method,
				StatusCode:  http.StatusPaymentRequired,
				RequestTime: a.clock.Now(),
			})
		}
		return acct, meter.StateCapacityRejected, meter.ErrNoCapacity
	}
	return acct, meter.StateUnchecked, nil
}

func (a *Accountant) reject(err error, req Request) {
	reason := meter.RejectionReason(err)
	a.observer.ObserveRejection(reason)
	if errors.Is(err, meter.ErrPersistence) {
		a.observer.ObservePersistenceFailure("admit")
		a.logger.Error().Err(err).Str("path", req.Path).Msg("admission failed on storage error")
		return
	}
	a.logger.Debug().Str("reason", reason).Str("path", req.Path).Str("method", req.Method).Msg("request rejected")
}

// -----------------------------------------------------------------------------
// Guarded execution
// -----------------------------------------------------------------------------

// Guard meters one request: admit, run op, then charge and record the
// outcome exactly once. Recording happens even when op fails, is
// cancelled or panics. A panic is re-raised after recording; an error
// from op is returned joined with any recording error.
func (a *Accountant) Guard(ctx context.Context, req Request, op Operation) (Result, error) {
	acct, state, err := a.admit(ctx, req)
	if err != nil {
		return Result{State: state, Account: acct}, err
	}

	res := Result{State: meter.StateExecuting, Account: acct}
	start := a.clock.Now()
	status, opErr, recovered := run(ctx, op)
	res.Duration = a.clock.Now().Sub(start)
	res.Status = meter.Classify(status, opErr)

	if opErr != nil {
		var be *meter.BusinessError
		if !errors.As(opErr, &be) {
			a.logger.Warn().Err(opErr).Str("path", req.Path).Int("status", res.Status).Msg("guarded operation failed")
		}
	}

	// The caller may already be gone; the outcome is still recorded.
	rctx, cancel := a.recordContext(ctx)
	defer cancel()

	ledgerID, recErr := a.record(rctx, usage.LogEntry{
		AccountID:   acct.ID,
		Path:        req.Path,
		Method:      req.Method,
		StatusCode:  res.Status,
		Duration:    res.Duration.Seconds(),
		RequestTime: start,
	})
	res.LedgerEntryID = ledgerID
	if recErr == nil {
		res.State = meter.StateRecorded
	}

	if recovered != nil {
		panic(recovered)
	}
	return res, errors.Join(opErr, recErr)
}

// run invokes op, converting a panic into an error while keeping the
// original value for re-raising.
func run(ctx context.Context, op Operation) (status int, err error, recovered any) {
	defer func() {
		if r := recover(); r != nil {
			recovered = r
			err = meter.FromPanic(r)
		}
	}()
	status, err = op(ctx)
	return status, err, nil
}

func (a *Accountant) recordContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if d := a.state.Load().policy.RecordTimeout; d > 0 {
		return context.WithTimeout(base, d)
	}
	return context.WithCancel(base)
}

// -----------------------------------------------------------------------------
// Charge and record
// -----------------------------------------------------------------------------

// RecordRequest charges the account for one request and logs it against
// the charged ledger entry. It returns meter.ErrNoCapacity when nothing
// can be charged; the request is then logged uncharged if the policy
// says so.
func (a *Accountant) RecordRequest(ctx context.Context, accountID int64, path, method string, statusCode int, durationSeconds float64) (*int64, error) {
	return a.record(ctx, usage.LogEntry{
		AccountID:   accountID,
		Path:        path,
		Method:      method,
		StatusCode:  statusCode,
		Duration:    durationSeconds,
		RequestTime: a.clock.Now(),
	})
}

func (a *Accountant) record(ctx context.Context, entry usage.LogEntry) (*int64, error) {
	st := a.state.Load()

	res, err := failsafe.With[charged](st.retry).WithContext(ctx).Get(func() (charged, error) {
		e, l, err := a.ledger.Charge(ctx, entry)
		return charged{entry: e, log: l}, err
	})

	switch {
	case err == nil:
		a.observer.ObserveCharge(res.entry.RemainingRequests())
		a.observer.ObserveRecorded(entry.StatusCode)
		return res.log.LedgerEntryID, nil

	case errors.Is(err, meter.ErrNoCapacity), errors.Is(err, meter.ErrRaceOnCharge):
		// Exhausted retries are treated as exhausted capacity.
		a.observer.ObserveRejection(meter.RejectionReason(meter.ErrNoCapacity))
		a.logger.Debug().Int64("account_id", entry.AccountID).Str("path", entry.Path).Msg("no capacity to charge")
		if st.policy.LogRejections {
			a.logUncharged(ctx, entry)
		}
		return nil, meter.ErrNoCapacity

	default:
		a.observer.ObservePersistenceFailure("charge")
		a.logger.Error().Err(err).Int64("account_id", entry.AccountID).Str("path", entry.Path).Msg("charge failed")
		return nil, meter.Persistence("charge", err)
	}
}

func (a *Accountant) logUncharged(ctx context.Context, entry usage.LogEntry) {
	entry.LedgerEntryID = nil
	if _, err := a.logs.Insert(ctx, entry); err != nil {
		a.observer.ObservePersistenceFailure("log_rejection")
		a.logger.Error().Err(err).Str("path", entry.Path).Msg("failed to log rejected request")
		return
	}
	a.observer.ObserveRecorded(entry.StatusCode)
}
