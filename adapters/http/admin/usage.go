package admin

import (
	"net/http"
	"time"

	"github.com/ImagingSolutions/UsageMonitor/app"
	"github.com/ImagingSolutions/UsageMonitor/domain/usage"
	"github.com/ImagingSolutions/UsageMonitor/pkg/jsonapi"
)

const (
	typeRequestLog = "request-logs"

	defaultTopLimit = 10
	maxWindowDays   = 366
)

// -----------------------------------------------------------------------------
// Logs
// -----------------------------------------------------------------------------

// ListLogs returns request logs, most recent first.
//
//	@Summary		List request logs
//	@Tags			Logs
//	@Produce		json
//	@Param			from		query		string				false	"Start (RFC 3339 or YYYY-MM-DD), inclusive"
//	@Param			to			query		string				false	"End (RFC 3339, exclusive) or last day (YYYY-MM-DD, inclusive)"
//	@Param			page		query		int					false	"Page number"	default(1)
//	@Param			pageSize	query		int					false	"Page size"		default(20)	maximum(100)
//	@Success		200			{object}	jsonapi.Document	"Request log resources with pagination"
//	@Failure		400			{object}	jsonapi.Document	"Invalid parameter"
//	@Security		AdminAuth
//	@Router			/api/usage-monitor/logs [get]
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	h.listLogs(w, r, false)
}

// ListErrorLogs returns request logs with a status of 400 or above.
//
//	@Summary		List error logs
//	@Tags			Logs
//	@Produce		json
//	@Param			from		query		string				false	"Start (RFC 3339 or YYYY-MM-DD), inclusive"
//	@Param			to			query		string				false	"End (RFC 3339, exclusive) or last day (YYYY-MM-DD, inclusive)"
//	@Param			page		query		int					false	"Page number"	default(1)
//	@Param			pageSize	query		int					false	"Page size"		default(20)	maximum(100)
//	@Success		200			{object}	jsonapi.Document	"Request log resources with pagination"
//	@Security		AdminAuth
//	@Router			/api/usage-monitor/logs/errors [get]
func (h *Handler) ListErrorLogs(w http.ResponseWriter, r *http.Request) {
	h.listLogs(w, r, true)
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request, errorsOnly bool) {
	from, err := parseTimeQuery(r, "from", false)
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrInvalidParameter("from", err.Error()))
		return
	}
	to, err := parseTimeQuery(r, "to", true)
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrInvalidParameter("to", err.Error()))
		return
	}
	page, size := jsonapi.ParsePaginationParams(r.URL.Query(), usage.DefaultPageSize, usage.MaxPageSize)

	f := usage.Filter{From: from, To: to, Page: page, PageSize: size}
	var (
		logs  []usage.LogEntry
		total int64
	)
	if errorsOnly {
		logs, total, err = h.usage.GetErrorLogs(r.Context(), f)
	} else {
		logs, total, err = h.usage.GetLogs(r.Context(), f)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(logs))
	for _, l := range logs {
		res, ok := h.resource(w, r, typeRequestLog, jsonapi.ID(l.ID), l)
		if !ok {
			return
		}
		resources = append(resources, res)
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, jsonapi.NewPagination(total, page, size, r.URL.String()))
}

// -----------------------------------------------------------------------------
// Analytics
// -----------------------------------------------------------------------------

func windowDays(r *http.Request) int {
	return min(parseIntQuery(r, "days", app.DefaultWindowDays), maxWindowDays)
}

// Overview returns request totals over the last days.
//
//	@Summary		Usage overview
//	@Tags			Analytics
//	@Produce		json
//	@Param			days	query		int					false	"Window in days"	default(7)
//	@Success		200		{object}	jsonapi.Document	"meta.overview"
//	@Security		AdminAuth
//	@Router			/api/usage-monitor/analytics/overview [get]
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	o, err := h.usage.GetOverview(r.Context(), windowDays(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{"overview": o})
}

// Timeline returns per-day request counts.
//
//	@Summary		Request timeline
//	@Tags			Analytics
//	@Produce		json
//	@Param			days	query		int					false	"Window in days"	default(7)
//	@Success		200		{object}	jsonapi.Document	"meta.timeline"
//	@Security		AdminAuth
//	@Router			/api/usage-monitor/analytics/timeline [get]
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	tl, err := h.usage.GetTimeline(r.Context(), windowDays(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{"timeline": tl})
}

// TopEndpoints returns the most requested endpoints.
//
//	@Summary		Top endpoints
//	@Tags			Analytics
//	@Produce		json
//	@Param			limit	query		int					false	"Number of endpoints"	default(10)
//	@Success		200		{object}	jsonapi.Document	"meta.endpoints"
//	@Security		AdminAuth
//	@Router			/api/usage-monitor/analytics/endpoints [get]
func (h *Handler) TopEndpoints(w http.ResponseWriter, r *http.Request) {
	top, err := h.usage.GetTopEndpoints(r.Context(), parseIntQuery(r, "limit", defaultTopLimit))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{"endpoints": top})
}

// ResponseTimes returns per-day latency percentiles.
//
//	@Summary		Response times
//	@Tags			Analytics
//	@Produce		json
//	@Param			days	query		int					false	"Window in days"	default(7)
//	@Success		200		{object}	jsonapi.Document	"meta.response_times"
//	@Security		AdminAuth
//	@Router			/api/usage-monitor/analytics/response-times [get]
func (h *Handler) ResponseTimes(w http.ResponseWriter, r *http.Request) {
	series, err := h.usage.GetResponseTimeSeries(r.Context(), windowDays(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{"response_times": series})
}

// MonthlyUsage returns per-day usage since the start of the month.
//
//	@Summary		Monthly usage
//	@Tags			Analytics
//	@Produce		json
//	@Success		200	{object}	jsonapi.Document	"meta.usage"
//	@Security		AdminAuth
//	@Router			/api/usage-monitor/analytics/usage [get]
func (h *Handler) MonthlyUsage(w http.ResponseWriter, r *http.Request) {
	days, err := h.usage.GetMonthlyUsage(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{"usage": days})
}

// ErrorRates returns error ratios per path.
//
//	@Summary		Error rates
//	@Tags			Analytics
//	@Produce		json
//	@Param			days	query		int					false	"Window in days"	default(7)
//	@Success		200		{object}	jsonapi.Document	"meta.errors"
//	@Security		AdminAuth
//	@Router			/api/usage-monitor/analytics/errors [get]
func (h *Handler) ErrorRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.usage.GetErrorRates(r.Context(), windowDays(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{"errors": rates})
}

// Dashboard returns the overview, timeline, top endpoints and balance.
//
//	@Summary		Dashboard
//	@Tags			Analytics
//	@Produce		json
//	@Param			days	query		int					false	"Window in days"		default(7)
//	@Param			limit	query		int					false	"Number of endpoints"	default(10)
//	@Success		200		{object}	jsonapi.Document	"meta.dashboard"
//	@Security		AdminAuth
//	@Router			/api/usage-monitor/analytics/dashboard [get]
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.usage.GetDashboard(r.Context(), windowDays(r), parseIntQuery(r, "limit", defaultTopLimit))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{"dashboard": d})
}

// -----------------------------------------------------------------------------
// Report
// -----------------------------------------------------------------------------

// Report returns usage report data for a date range. Both ends are
// inclusive days; from defaults to the start of the month, to to today.
//
//	@Summary		Usage report
//	@Tags			Report
//	@Produce		json
//	@Param			from	query		string				false	"First day (YYYY-MM-DD)"
//	@Param			to		query		string				false	"Last day (YYYY-MM-DD)"
//	@Success		200		{object}	jsonapi.Document	"meta.report"
//	@Failure		400		{object}	jsonapi.Document	"Invalid range"
//	@Failure		503		{object}	jsonapi.Document	"No account provisioned"
//	@Security		AdminAuth
//	@Router			/api/usage-monitor/report [get]
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeQuery(r, "from", false)
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrInvalidParameter("from", err.Error()))
		return
	}
	to, err := parseTimeQuery(r, "to", false)
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrInvalidParameter("to", err.Error()))
		return
	}

	var fromT, toT time.Time
	if from != nil {
		fromT = *from
	}
	if to != nil {
		toT = *to
	}
	if from != nil && to != nil && usage.DayStart(fromT).After(usage.DayStart(toT)) {
		jsonapi.WriteError(w, jsonapi.ErrInvalidParameter("from", "from must not be after to"))
		return
	}

	report, err := h.usage.GetReport(r.Context(), fromT, toT)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{"report": report})
}
