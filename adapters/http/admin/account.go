package admin

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ImagingSolutions/UsageMonitor/domain/account"
	"github.com/ImagingSolutions/UsageMonitor/domain/ledger"
	"github.com/ImagingSolutions/UsageMonitor/pkg/jsonapi"
)

const (
	typeAccount = "accounts"
	typePayment = "payments"
)

// -----------------------------------------------------------------------------
// Account
// -----------------------------------------------------------------------------

// CreateAccountRequest provisions the account with its first payment.
type CreateAccountRequest struct {
	Name      string          `json:"name" example:"Acme"`
	Email     string          `json:"email" example:"ops@acme.test"`
	Amount    decimal.Decimal `json:"amount" swaggertype:"string" example:"100.00"`
	UnitPrice decimal.Decimal `json:"unit_price" swaggertype:"string" example:"0.01"`
}

// UpdateAccountRequest changes account metadata.
type UpdateAccountRequest struct {
	Name  string `json:"name" example:"Acme Ltd"`
	Email string `json:"email" example:"billing@acme.test"`
}

// GetAccount returns the account with its balance in meta.
//
//	@Summary		Get account
//	@Tags			Account
//	@Produce		json
//	@Success		200	{object}	jsonapi.Document	"Account resource, meta.balance"
//	@Failure		503	{object}	jsonapi.Document	"No account provisioned"
//	@Security		AdminAuth
//	@Router			/api/usage-monitor/account [get]
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.directory.GetAccount(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	balance, err := h.usage.GetBalance(r.Context(), acct.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, ok := h.resource(w, r, typeAccount, jsonapi.ID(acct.ID), acct)
	if !ok {
		return
	}
	res.Meta = jsonapi.Meta{"balance": balance}
	jsonapi.WriteResource(w, http.StatusOK, res)
}

// CreateAccount provisions the account and its first ledger entry.
//
//	@Summary		Create account
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateAccountRequest	true	"Account and first payment"
//	@Success		201		{object}	jsonapi.Document		"Account resource, meta.payment"
//	@Failure		409		{object}	jsonapi.Document		"Account already provisioned"
//	@Failure		422		{object}	jsonapi.Document		"Validation error"
//	@Security		AdminAuth
//	@Router			/api/usage-monitor/account [post]
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !decode(w, r, &req) {
		return
	}

	acct, entry, err := h.directory.CreateAccount(r.Context(), req.Name, req.Email, req.Amount, req.UnitPrice)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, ok := h.resource(w, r, typeAccount, jsonapi.ID(acct.ID), acct)
	if !ok {
		return
	}
	res.Meta = jsonapi.Meta{"payment": entry.Stats()}
	jsonapi.WriteCreated(w, res, "")
}

// UpdateAccount changes the account name and email.
//
//	@Summary		Update account
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			request	body		UpdateAccountRequest	true	"New contact details"
//	@Success		200		{object}	jsonapi.Document		"Account resource"
//	@Failure		422		{object}	jsonapi.Document		"Validation error"
//	@Security		AdminAuth
//	@Router			/api/usage-monitor/account [put]
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req UpdateAccountRequest
	if !decode(w, r, &req) {
		return
	}

	current, err := h.directory.GetAccount(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	acct, err := h.directory.UpdateAccount(r.Context(), current.ID, req.Name, req.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeAccount(w, r, acct)
}

func (h *Handler) writeAccount(w http.ResponseWriter, r *http.Request, acct account.Account) {
	if res, ok := h.resource(w, r, typeAccount, jsonapi.ID(acct.ID), acct); ok {
		jsonapi.WriteResource(w, http.StatusOK, res)
	}
}

// -----------------------------------------------------------------------------
// Payments
// -----------------------------------------------------------------------------

// AddPaymentRequest adds prepaid capacity.
type AddPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" swaggertype:"string" example:"50.00"`
	UnitPrice decimal.Decimal `json:"unit_price" swaggertype:"string" example:"0.01"`
}

// ListPayments lists the account's ledger entries, oldest first.
//
//	@Summary		List payments
//	@Tags			Payments
//	@Produce		json
//	@Success		200	{object}	jsonapi.Document	"Payment resources, meta.balance"
//	@Security		AdminAuth
//	@Router			/api/usage-monitor/payments [get]
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	acct, err := h.directory.GetAccount(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stats, err := h.usage.GetAllLedgerEntries(r.Context(), acct.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	balance, err := h.usage.GetBalance(r.Context(), acct.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(stats))
	for _, s := range stats {
		res, ok := h.resource(w, r, typePayment, jsonapi.ID(s.ID), s)
		if !ok {
			return
		}
		resources = append(resources, res)
	}

	doc := jsonapi.NewDocument().
		Data(resources).
		Meta("balance", balance).
		Build()
	jsonapi.WriteDocument(w, http.StatusOK, doc)
}

// AddPayment adds a ledger entry to the account.
//
//	@Summary		Add payment
//	@Tags			Payments
//	@Accept			json
//	@Produce		json
//	@Param			request	body		AddPaymentRequest	true	"Amount and unit price"
//	@Success		201		{object}	jsonapi.Document	"Payment resource"
//	@Failure		422		{object}	jsonapi.Document	"Validation error"
//	@Security		AdminAuth
//	@Router			/api/usage-monitor/payments [post]
func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	var req AddPaymentRequest
	if !decode(w, r, &req) {
		return
	}

	acct, err := h.directory.GetAccount(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entry, err := h.directory.AddLedgerEntry(r.Context(), acct.ID, req.Amount, req.UnitPrice)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writePayment(w, r, http.StatusCreated, entry.Stats())
}

// GetPayment returns one ledger entry with its derived usage.
//
//	@Summary		Get payment
//	@Tags			Payments
//	@Produce		json
//	@Param			id	path		int					true	"Payment ID"
//	@Success		200	{object}	jsonapi.Document	"Payment resource"
//	@Failure		404	{object}	jsonapi.Document	"Not found"
//	@Security		AdminAuth
//	@Router			/api/usage-monitor/payments/{id} [get]
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrInvalidParameter("id", "Payment id must be an integer"))
		return
	}

	stats, err := h.usage.GetLedgerEntry(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writePayment(w, r, http.StatusOK, stats)
}

func (h *Handler) writePayment(w http.ResponseWriter, r *http.Request, status int, s ledger.Stats) {
	res, ok := h.resource(w, r, typePayment, jsonapi.ID(s.ID), s)
	if !ok {
		return
	}
	if status == http.StatusCreated {
		jsonapi.WriteCreated(w, res, "/api/usage-monitor/payments/"+res.ID)
		return
	}
	jsonapi.WriteResource(w, status, res)
}
