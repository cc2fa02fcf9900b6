package http

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ImagingSolutions/UsageMonitor/app"
	"github.com/ImagingSolutions/UsageMonitor/domain/meter"
	"github.com/ImagingSolutions/UsageMonitor/pkg/jsonapi"
)

// Monitor meters requests whose path falls under one of its prefixes.
// Every metered request goes through the Accountant: it is admitted only
// with an account and remaining capacity, and its outcome is charged and
// logged once the handler returns.
type Monitor struct {
	accountant *app.Accountant
	logger     zerolog.Logger
	prefixes   atomic.Pointer[[]string]
}

// NewMonitor creates a monitor metering the given path prefixes.
func NewMonitor(accountant *app.Accountant, paths []string, logger zerolog.Logger) *Monitor {
	m := &Monitor{accountant: accountant, logger: logger}
	m.SetPaths(paths)
	return m
}

// SetPaths replaces the metered prefixes. Safe to call while serving.
func (m *Monitor) SetPaths(paths []string) {
	prefixes := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if p != "/" {
			p = strings.TrimSuffix(p, "/")
		}
		prefixes = append(prefixes, p)
	}
	m.prefixes.Store(&prefixes)
}

// Paths returns the metered prefixes.
func (m *Monitor) Paths() []string {
	return slices.Clone(*m.prefixes.Load())
}

// Metered reports whether path is under a metered prefix. A prefix
// matches whole segments: /v1 covers /v1 and /v1/users, not /v10.
func (m *Monitor) Metered(path string) bool {
	for _, p := range *m.prefixes.Load() {
		if p == "/" || path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Middleware wraps next with metering.
//
// A handler declares a business outcome by panicking with a
// *meter.BusinessError: it is answered with its own status as a JSON:API
// error but logged as a success. Any other panic is recorded as 500 and passed on
// to the recoverer.
func (m *Monitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Metered(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		req := app.Request{Path: r.URL.Path, Method: r.Method}

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			be, ok := rec.(*meter.BusinessError)
			if !ok {
				panic(rec)
			}
			if ww.Status() == 0 {
				writeBusinessError(ww, be)
			}
		}()

		res, err := m.accountant.Guard(r.Context(), req, func(ctx context.Context) (int, error) {
			next.ServeHTTP(ww, r.WithContext(ctx))
			return ww.Status(), ctx.Err()
		})
		if err == nil {
			return
		}

		switch res.State {
		case meter.StateAdmissionFailed, meter.StateCapacityRejected:
			writeMeterError(ww, err)
			return
		}

		if errors.Is(err, context.Canceled) && res.State == meter.StateRecorded {
			m.logger.Debug().Str("path", req.Path).Msg("client went away during metered request")
			return
		}

		// Served but not recorded. Too late to refuse unless nothing was written.
		m.logger.Warn().
			Err(err).
			Str("path", req.Path).
			Str("method", req.Method).
			Str("state", res.State.String()).
			Int("status", res.Status).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("metered request not recorded")
		if ww.Status() == 0 {
			writeMeterError(ww, err)
		}
	})
}

// writeMeterError answers a request the accountant turned away.
func writeMeterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, meter.ErrNotProvisioned):
		jsonapi.WriteError(w, jsonapi.ErrNotProvisioned())
	case errors.Is(err, meter.ErrNoCapacity):
		jsonapi.WriteError(w, jsonapi.ErrPaymentRequired())
	case errors.Is(err, meter.ErrPersistence):
		jsonapi.WriteError(w, jsonapi.ErrPersistenceFailure())
	default:
		jsonapi.WriteError(w, jsonapi.ErrInternal(""))
	}
}

func writeBusinessError(w http.ResponseWriter, be *meter.BusinessError) {
	status := be.StatusCode()
	if status < 400 {
		w.WriteHeader(status)
		return
	}
	title := http.StatusText(status)
	code := strings.ToLower(strings.ReplaceAll(title, " ", "_"))
	if code == "" {
		code = "business_error"
	}
	jsonapi.WriteError(w, jsonapi.NewError(status, code, title).Detail(be.Error()).Build())
}
