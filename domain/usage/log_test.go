package usage_test

import (
	"testing"
	"time"

	"github.com/ImagingSolutions/UsageMonitor/domain/usage"
)

func TestClassOf(t *testing.T) {
	tests := map[int]usage.StatusClass{
		101: usage.Class1xx,
		200: usage.Class2xx,
		304: usage.Class3xx,
		402: usage.Class4xx,
		499: usage.Class4xx,
		504: usage.Class5xx,
		0:   usage.ClassOther,
	}
	for code, want := range tests {
		if got := usage.ClassOf(code); got != want {
			t.Errorf("ClassOf(%d) = %s, want %s", code, got, want)
		}
	}
}

func TestFilterNormalize(t *testing.T) {
	f := usage.Filter{Page: 0, PageSize: 500}.Normalize()
	if f.Page != 1 || f.PageSize != usage.MaxPageSize {
		t.Errorf("Normalize() = %+v", f)
	}
	f = usage.Filter{}.Normalize()
	if f.PageSize != usage.DefaultPageSize {
		t.Errorf("PageSize = %d, want %d", f.PageSize, usage.DefaultPageSize)
	}
	if off := (usage.Filter{Page: 3, PageSize: 10}).Offset(); off != 20 {
		t.Errorf("Offset() = %d, want 20", off)
	}
}

func TestFilterMatches(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	acct := int64(2)
	f := usage.Filter{AccountID: &acct, From: &from, To: &to, ErrorsOnly: true}

	tests := []struct {
		name string
		l    usage.LogEntry
		want bool
	}{
		{"match", usage.LogEntry{AccountID: 2, StatusCode: 500, RequestTime: from}, true},
		{"other account", usage.LogEntry{AccountID: 1, StatusCode: 500, RequestTime: from}, false},
		{"success filtered", usage.LogEntry{AccountID: 2, StatusCode: 200, RequestTime: from}, false},
		{"upper bound exclusive", usage.LogEntry{AccountID: 2, StatusCode: 400, RequestTime: to}, false},
		{"before window", usage.LogEntry{AccountID: 2, StatusCode: 400, RequestTime: from.Add(-time.Second)}, false},
	}
	for _, tt := range tests {
		if got := f.Matches(tt.l); got != tt.want {
			t.Errorf("%s: Matches() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in      string
		upper   bool
		want    time.Time
		wantErr bool
	}{
		{"2024-03-16", false, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), false},
		{"2024-03-16", true, time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), false},
		{"2024-03-16T10:30:00+02:00", true, time.Date(2024, 3, 16, 8, 30, 0, 0, time.UTC), false},
		{"16/03/2024", false, time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := usage.ParseTime(tt.in, tt.upper)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTime(%q) error = %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTime(%q, %v) = %s, want %s", tt.in, tt.upper, got, tt.want)
		}
	}
}

func TestFilterMatches_DateOnlyToCoversTheDay(t *testing.T) {
	to, err := usage.ParseTime("2024-03-16", true)
	if err != nil {
		t.Fatal(err)
	}
	f := usage.Filter{To: &to}
	if !f.Matches(usage.LogEntry{RequestTime: time.Date(2024, 3, 16, 23, 59, 0, 0, time.UTC)}) {
		t.Error("late request on the to day excluded")
	}
	if f.Matches(usage.LogEntry{RequestTime: time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)}) {
		t.Error("request on the following day included")
	}
}
