// Package admin provides the management API: administrator setup and
// login, account and payment management, request logs, analytics and
// reports.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ImagingSolutions/UsageMonitor/app"
	"github.com/ImagingSolutions/UsageMonitor/domain/account"
	"github.com/ImagingSolutions/UsageMonitor/domain/ledger"
	"github.com/ImagingSolutions/UsageMonitor/domain/meter"
	"github.com/ImagingSolutions/UsageMonitor/domain/usage"
	"github.com/ImagingSolutions/UsageMonitor/pkg/jsonapi"
	"github.com/ImagingSolutions/UsageMonitor/ports"
)

// DefaultCookieName is used when Deps.CookieName is empty.
const DefaultCookieName = "usagemonitor_session"

// Handler provides management API endpoints.
type Handler struct {
	directory    *app.Directory
	usage        *app.UsageService
	sessions     *SessionStore
	logger       zerolog.Logger
	cookieName   string
	secureCookie bool
}

// Deps contains dependencies for the admin handler.
type Deps struct {
	Directory    *app.Directory
	Usage        *app.UsageService
	IDGen        ports.IDGenerator
	Clock        ports.Clock
	Logger       zerolog.Logger
	SessionTTL   time.Duration
	CookieName   string
	SecureCookie bool
}

// NewHandler creates a new admin API handler.
func NewHandler(deps Deps) *Handler {
	cookie := deps.CookieName
	if cookie == "" {
		cookie = DefaultCookieName
	}
	return &Handler{
		directory:    deps.Directory,
		usage:        deps.Usage,
		sessions:     NewSessionStore(deps.IDGen, deps.Clock, deps.SessionTTL),
		logger:       deps.Logger,
		cookieName:   cookie,
		secureCookie: deps.SecureCookie,
	}
}

// Sessions exposes the session store.
func (h *Handler) Sessions() *SessionStore {
	return h.sessions
}

// Router returns the admin API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	// Public endpoints (setup and login)
	r.Get("/admin/exists", h.AdminExists)
	r.Post("/admin/setup", h.SetupAdmin)
	r.Post("/admin/login", h.Login)

	// Protected endpoints (require a session)
	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Post("/admin/logout", h.Logout)

		// Account
		r.Get("/account", h.GetAccount)
		r.Post("/account", h.CreateAccount)
		r.Put("/account", h.UpdateAccount)

		// Payments (ledger entries)
		r.Get("/payments", h.ListPayments)
		r.Post("/payments", h.AddPayment)
		r.Get("/payments/{id}", h.GetPayment)

		// Logs
		r.Get("/logs", h.ListLogs)
		r.Get("/logs/errors", h.ListErrorLogs)

		// Analytics
		r.Get("/analytics/overview", h.Overview)
		r.Get("/analytics/timeline", h.Timeline)
		r.Get("/analytics/endpoints", h.TopEndpoints)
		r.Get("/analytics/response-times", h.ResponseTimes)
		r.Get("/analytics/usage", h.MonthlyUsage)
		r.Get("/analytics/errors", h.ErrorRates)
		r.Get("/analytics/dashboard", h.Dashboard)

		// Report
		r.Get("/report", h.Report)
	})

	return r
}

// -----------------------------------------------------------------------------
// Administrator
// -----------------------------------------------------------------------------

// CredentialsRequest carries an administrator username and password.
type CredentialsRequest struct {
	Username string `json:"username" example:"admin"`
	Password string `json:"password" example:"correct horse battery"`
}

// AdminExists reports whether setup has been completed.
//
//	@Summary		Check administrator
//	@Description	Reports whether the administrator account exists
//	@Tags			Admin
//	@Produce		json
//	@Success		200	{object}	jsonapi.Document	"meta.exists"
//	@Router			/api/usage-monitor/admin/exists [get]
func (h *Handler) AdminExists(w http.ResponseWriter, r *http.Request) {
	exists, err := h.directory.HasAdminAccount(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{"exists": exists})
}

// SetupAdmin creates the single administrator.
//
//	@Summary		Set up administrator
//	@Description	Creates the administrator. Only possible once.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CredentialsRequest	true	"Administrator credentials"
//	@Success		201		{object}	jsonapi.Document	"Administrator created"
//	@Failure		409		{object}	jsonapi.Document	"Administrator already exists"
//	@Failure		422		{object}	jsonapi.Document	"Invalid credentials"
//	@Router			/api/usage-monitor/admin/setup [post]
func (h *Handler) SetupAdmin(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decode(w, r, &req) {
		return
	}

	created, err := h.directory.CreateAdminAccount(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !created {
		jsonapi.WriteError(w, jsonapi.ErrConflict("Admin account already exists"))
		return
	}
	jsonapi.WriteMeta(w, http.StatusCreated, jsonapi.Meta{"created": true})
}

// Login verifies credentials and starts a session. The token is returned
// and set as a cookie.
//
//	@Summary		Administrator login
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CredentialsRequest	true	"Administrator credentials"
//	@Success		200		{object}	jsonapi.Document	"meta.token, meta.expires_at"
//	@Failure		401		{object}	jsonapi.Document	"Invalid credentials"
//	@Router			/api/usage-monitor/admin/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decode(w, r, &req) {
		return
	}

	ok, err := h.directory.VerifyAdminCredentials(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		h.logger.Warn().Str("username", req.Username).Str("remote_ip", r.RemoteAddr).Msg("admin login failed")
		jsonapi.WriteError(w, jsonapi.ErrUnauthorized("Invalid username or password"))
		return
	}

	sess := h.sessions.Create(strings.TrimSpace(req.Username))
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt.Format(time.RFC3339),
	})
}

// Logout ends the current session.
//
//	@Summary		Administrator logout
//	@Tags			Admin
//	@Success		204	"Logged out"
//	@Security		AdminAuth
//	@Router			/api/usage-monitor/admin/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := r.Context().Value(ctxSessionKey).(string); ok {
		h.sessions.Delete(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
	})
	jsonapi.WriteNoContent(w)
}

// AuthMiddleware accepts the session cookie or "Authorization: Bearer <token>".
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if cookie, err := r.Cookie(h.cookieName); err == nil {
			token = cookie.Value
		}
		if auth := r.Header.Get("Authorization"); token == "" && strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}

		sess, ok := h.sessions.Get(token)
		if !ok {
			jsonapi.WriteError(w, jsonapi.ErrUnauthorized("Valid session required"))
			return
		}

		ctx := context.WithValue(r.Context(), ctxSessionKey, sess.Token)
		ctx = context.WithValue(ctx, ctxUsernameKey, sess.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Context keys
type ctxKey string

const (
	ctxSessionKey  ctxKey = "session_token"
	ctxUsernameKey ctxKey = "username"
)

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// writeError maps service errors to JSON:API errors. Unrecognized errors
// are logged and answered with 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, meter.ErrNotProvisioned):
		jsonapi.WriteError(w, jsonapi.ErrNotProvisioned())
	case errors.Is(err, ports.ErrNotFound):
		jsonapi.WriteError(w, jsonapi.ErrNotFound("resource"))
	case errors.Is(err, account.ErrAccountExists):
		jsonapi.WriteError(w, jsonapi.ErrConflict(err.Error()))
	case errors.Is(err, account.ErrInvalidName):
		jsonapi.WriteError(w, jsonapi.ErrValidation("name", err.Error()))
	case errors.Is(err, account.ErrInvalidEmail):
		jsonapi.WriteError(w, jsonapi.ErrValidation("email", err.Error()))
	case errors.Is(err, account.ErrInvalidUsername):
		jsonapi.WriteError(w, jsonapi.ErrValidation("username", err.Error()))
	case errors.Is(err, account.ErrWeakPassword):
		jsonapi.WriteError(w, jsonapi.ErrValidation("password", err.Error()))
	case errors.Is(err, ledger.ErrInvalidUnitPrice):
		jsonapi.WriteError(w, jsonapi.ErrValidation("unit_price", err.Error()))
	case errors.Is(err, ledger.ErrInvalidAmount):
		jsonapi.WriteError(w, jsonapi.ErrValidation("amount", err.Error()))
	default:
		h.logger.Error().
			Err(err).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("management request failed")
		jsonapi.WriteError(w, jsonapi.ErrInternal(""))
	}
}

// decode reads a JSON body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("Invalid JSON body: "+err.Error()))
		return false
	}
	return true
}

func parseIntQuery(r *http.Request, name string, defaultVal int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 1 {
		return defaultVal
	}
	return n
}

// parseTimeQuery accepts RFC 3339 timestamps and YYYY-MM-DD dates (UTC).
// A missing parameter yields nil. With upper set a bare date covers the
// whole day.
func parseTimeQuery(r *http.Request, name string, upper bool) (*time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	t, err := usage.ParseTime(s, upper)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// resource converts v to a JSON:API resource, answering 500 on failure.
func (h *Handler) resource(w http.ResponseWriter, r *http.Request, typ, id string, v any) (jsonapi.Resource, bool) {
	res, err := jsonapi.ResourceFrom(typ, id, v)
	if err != nil {
		h.writeError(w, r, err)
		return jsonapi.Resource{}, false
	}
	return res, true
}
