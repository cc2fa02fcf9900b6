package usage

import (
	"math"
	"sort"
	"time"
)

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WindowStart returns the first day of a window of days ending on now's day.
func WindowStart(now time.Time, days int) time.Time {
	if days < 1 {
		days = 1
	}
	return DayStart(now).AddDate(0, 0, -(days - 1))
}

// MonthStart returns midnight UTC on the first of now's month.
func MonthStart(now time.Time) time.Time {
	y, m, _ := now.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// Overview summarizes a window of traffic.
type Overview struct {
	From             time.Time             `json:"from"`
	To               time.Time             `json:"to"`
	TotalRequests    int64                 `json:"total_requests"`
	SuccessCount     int64                 `json:"success_count"`
	ClientErrorCount int64                 `json:"client_error_count"`
	ServerErrorCount int64                 `json:"server_error_count"`
	ChargedRequests  int64                 `json:"charged_requests"`
	SuccessRate      float64               `json:"success_rate"`
	ErrorRate        float64               `json:"error_rate"`
	AvgDuration      float64               `json:"avg_duration"`
	ByClass          map[StatusClass]int64 `json:"by_class"`
}

// Summarize builds an Overview of logs. This is a PURE function.
func Summarize(logs []LogEntry, from, to time.Time) Overview {
	o := Overview{From: from, To: to, ByClass: map[StatusClass]int64{}}

	var totalDuration float64
	for _, l := range logs {
		o.TotalRequests++
		o.ByClass[ClassOf(l.StatusCode)]++
		totalDuration += l.Duration
		if l.Charged() {
			o.ChargedRequests++
		}
		switch {
		case l.StatusCode >= 500:
			o.ServerErrorCount++
		case l.StatusCode >= 400:
			o.ClientErrorCount++
		default:
			o.SuccessCount++
		}
	}

	if o.TotalRequests > 0 {
		n := float64(o.TotalRequests)
		o.SuccessRate = ratio(o.SuccessCount, o.TotalRequests)
		o.ErrorRate = ratio(o.ClientErrorCount+o.ServerErrorCount, o.TotalRequests)
		o.AvgDuration = totalDuration / n
	}
	return o
}

// DayCount is one day of a timeline.
type DayCount struct {
	Date       time.Time `json:"date"`
	Total      int64     `json:"total"`
	Successful int64     `json:"successful"`
	Failed     int64     `json:"failed"`
}

// Timeline buckets logs per UTC day from start for days days, oldest
// first. Days without traffic are present with zero counts.
// This is a PURE function.
func Timeline(logs []LogEntry, start time.Time, days int) []DayCount {
	start = DayStart(start)
	out := make([]DayCount, days)
	for i := range out {
		out[i].Date = start.AddDate(0, 0, i)
	}

	for _, l := range logs {
		i, ok := dayIndex(start, days, l.RequestTime)
		if !ok {
			continue
		}
		out[i].Total++
		if l.IsError() {
			out[i].Failed++
		} else {
			out[i].Successful++
		}
	}
	return out
}

// EndpointStats describes traffic on one path.
type EndpointStats struct {
	Path        string  `json:"path"`
	Requests    int64   `json:"requests"`
	Errors      int64   `json:"errors"`
	SuccessRate float64 `json:"success_rate"`
	AvgDuration float64 `json:"avg_duration"`
}

// TopEndpoints ranks paths by request count, most used first. Equal counts
// are ordered by path. A non-positive limit returns every path.
// This is a PURE function.
func TopEndpoints(logs []LogEntry, limit int) []EndpointStats {
	type acc struct {
		requests, errors int64
		duration         float64
	}
	byPath := map[string]*acc{}
	for _, l := range logs {
		a, ok := byPath[l.Path]
		if !ok {
			a = &acc{}
			byPath[l.Path] = a
		}
		a.requests++
		a.duration += l.Duration
		if l.IsError() {
			a.errors++
		}
	}

	out := make([]EndpointStats, 0, len(byPath))
	for path, a := range byPath {
		out = append(out, EndpointStats{
			Path:        path,
			Requests:    a.requests,
			Errors:      a.errors,
			SuccessRate: ratio(a.requests-a.errors, a.requests),
			AvgDuration: a.duration / float64(a.requests),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Requests != out[j].Requests {
			return out[i].Requests > out[j].Requests
		}
		return out[i].Path < out[j].Path
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ResponseTimePoint holds latency percentiles for one day, in seconds.
type ResponseTimePoint struct {
	Date     time.Time `json:"date"`
	Requests int64     `json:"requests"`
	Avg      float64   `json:"avg"`
	P50      float64   `json:"p50"`
	P95      float64   `json:"p95"`
	P99      float64   `json:"p99"`
	Max      float64   `json:"max"`
}

// ResponseTimeSeries computes daily latency percentiles, zero-filled.
// This is a PURE function.
func ResponseTimeSeries(logs []LogEntry, start time.Time, days int) []ResponseTimePoint {
	start = DayStart(start)
	buckets := make([][]float64, days)
	for _, l := range logs {
		if i, ok := dayIndex(start, days, l.RequestTime); ok {
			buckets[i] = append(buckets[i], l.Duration)
		}
	}

	out := make([]ResponseTimePoint, days)
	for i, b := range buckets {
		p := ResponseTimePoint{Date: start.AddDate(0, 0, i), Requests: int64(len(b))}
		if len(b) > 0 {
			sort.Float64s(b)
			var sum float64
			for _, d := range b {
				sum += d
			}
			p.Avg = sum / float64(len(b))
			p.P50 = Percentile(b, 50)
			p.P95 = Percentile(b, 95)
			p.P99 = Percentile(b, 99)
			p.Max = b[len(b)-1]
		}
		out[i] = p
	}
	return out
}

// Percentile returns the nearest-rank percentile of an ascending slice.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p * float64(len(sorted)) / 100))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

// DayUsage is the request count on one day of a month.
type DayUsage struct {
	Day      int   `json:"day"`
	Requests int64 `json:"requests"`
}

// MonthlyUsage counts requests per day of month for the month starting at
// monthStart. Only days with traffic appear, in day order.
// This is a PURE function.
func MonthlyUsage(logs []LogEntry, monthStart time.Time) []DayUsage {
	monthStart = MonthStart(monthStart)
	monthEnd := monthStart.AddDate(0, 1, 0)

	counts := map[int]int64{}
	for _, l := range logs {
		t := l.RequestTime.UTC()
		if t.Before(monthStart) || !t.Before(monthEnd) {
			continue
		}
		counts[t.Day()]++
	}

	out := make([]DayUsage, 0, len(counts))
	for day, n := range counts {
		out = append(out, DayUsage{Day: day, Requests: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

// PathErrors is the error share of one path.
type PathErrors struct {
	Path      string  `json:"path"`
	Requests  int64   `json:"requests"`
	Errors    int64   `json:"errors"`
	ErrorRate float64 `json:"error_rate"`
}

// ErrorRates reports per-path error rates for paths with at least one
// error, highest rate first. This is a PURE function.
func ErrorRates(logs []LogEntry) []PathErrors {
	var out []PathErrors
	for _, e := range TopEndpoints(logs, 0) {
		if e.Errors == 0 {
			continue
		}
		out = append(out, PathErrors{
			Path:      e.Path,
			Requests:  e.Requests,
			Errors:    e.Errors,
			ErrorRate: ratio(e.Errors, e.Requests),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ErrorRate != out[j].ErrorRate {
			return out[i].ErrorRate > out[j].ErrorRate
		}
		return out[i].Path < out[j].Path
	})
	return out
}

func dayIndex(start time.Time, days int, t time.Time) (int, bool) {
	t = t.UTC()
	if t.Before(start) {
		return 0, false
	}
	i := int(t.Sub(start) / (24 * time.Hour))
	if i >= days {
		return 0, false
	}
	return i, true
}

func ratio(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
