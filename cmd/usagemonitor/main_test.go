package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ImagingSolutions/UsageMonitor/adapters/clock"
	"github.com/ImagingSolutions/UsageMonitor/app"
	"github.com/ImagingSolutions/UsageMonitor/bootstrap"
	"github.com/ImagingSolutions/UsageMonitor/config"
	"github.com/ImagingSolutions/UsageMonitor/domain/ledger"
	"github.com/ImagingSolutions/UsageMonitor/domain/meter"
)

// newConfig writes a config file backed by a fresh SQLite database.
func newConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "usagemonitor.yaml")
	body := fmt.Sprintf("database:\n  driver: sqlite\n  dsn: %s\nlogging:\n  level: error\n", filepath.Join(dir, "usage.db"))
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	out, err := run(t, cfgPath, args...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

// record meters requests directly against the configured store.
func record(t *testing.T, cfgPath string, statuses ...int) {
	t.Helper()
	ctx := context.Background()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	store, err := bootstrap.OpenStore(ctx, cfg.Database)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	defer store.Close()

	svc := bootstrap.NewServices(store, cfg, clock.Real{}, zerolog.Nop(), nil)
	acct, err := svc.Directory.GetAccount(ctx)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	for _, status := range statuses {
		if _, err := svc.Accountant.RecordRequest(ctx, acct.ID, "/v1/items", http.MethodGet, status, 0.05); err != nil {
			t.Fatalf("RecordRequest() error = %v", err)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out := mustRun(t, newConfig(t), "version")
	if !strings.Contains(out, "usagemonitor dev") {
		t.Errorf("output = %q", out)
	}
}

func TestUnknownOutputFormat(t *testing.T) {
	_, err := run(t, newConfig(t), "admin", "exists", "-o", "xml")
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("err = %v", err)
	}
}

func TestValidateCmd(t *testing.T) {
	cfg := newConfig(t)
	out := mustRun(t, cfg, "validate", "--check-database")
	if !strings.Contains(out, "Configuration is valid.") || !strings.Contains(out, "Database usable") {
		t.Errorf("output = %q", out)
	}

	if _, err := run(t, filepath.Join(t.TempDir(), "missing.yaml"), "validate"); err == nil {
		t.Error("validate of a missing file succeeded")
	}
}

func TestAdminCmds(t *testing.T) {
	cfg := newConfig(t)

	var exists map[string]bool
	if err := json.Unmarshal([]byte(mustRun(t, cfg, "admin", "exists", "-o", "json")), &exists); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if exists["exists"] {
		t.Fatal("administrator exists before setup")
	}

	out := mustRun(t, cfg, "admin", "setup", "--username", "admin", "--password", "correct-horse-9")
	if !strings.Contains(out, "Created administrator: admin") {
		t.Errorf("output = %q", out)
	}

	if _, err := run(t, cfg, "admin", "setup", "--username", "other", "--password", "correct-horse-9"); err == nil {
		t.Error("second setup succeeded")
	}

	out = mustRun(t, cfg, "admin", "exists")
	if !strings.Contains(out, "Administrator exists: true") {
		t.Errorf("output = %q", out)
	}
}

func TestAccountAndPaymentCmds(t *testing.T) {
	cfg := newConfig(t)

	if _, err := run(t, cfg, "account", "show"); !errors.Is(err, meter.ErrNotProvisioned) {
		t.Fatalf("show before create: err = %v, want ErrNotProvisioned", err)
	}

	out := mustRun(t, cfg, "account", "create", "--name", " Acme ", "--email", "OPS@Acme.test", "--amount", "10", "--unit-price", "0.01")
	if !strings.Contains(out, "1000 requests") {
		t.Errorf("create output = %q", out)
	}

	if _, err := run(t, cfg, "account", "create", "--name", "Again", "--email", "a@b.test", "--amount", "1", "--unit-price", "0.01"); err == nil {
		t.Error("second create succeeded")
	}
	if _, err := run(t, cfg, "payments", "add", "--amount", "ten", "--unit-price", "0.01"); err == nil {
		t.Error("non-numeric amount accepted")
	}

	mustRun(t, cfg, "account", "update", "--name", "Acme Corp")
	mustRun(t, cfg, "payments", "add", "--amount", "5", "--unit-price", "0.05")

	var view accountView
	if err := json.Unmarshal([]byte(mustRun(t, cfg, "account", "show", "-o", "json")), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Account.Name != "Acme Corp" || view.Account.Email != "ops@acme.test" {
		t.Errorf("account = %+v", view.Account)
	}
	if view.Balance.Entries != 2 || view.Balance.TotalRequests != 1100 {
		t.Errorf("balance = %+v", view.Balance)
	}

	var payments []ledger.Stats
	if err := json.Unmarshal([]byte(mustRun(t, cfg, "payments", "list", "-o", "json")), &payments); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payments) != 2 || payments[1].TotalRequests != 100 {
		t.Errorf("payments = %+v", payments)
	}

	out = mustRun(t, cfg, "payments", "show", fmt.Sprint(payments[1].ID), "-o", "yaml")
	if !strings.Contains(out, "total_requests: 100") || !strings.Contains(out, "unit_price: ") {
		t.Errorf("yaml output = %q", out)
	}

	if _, err := run(t, cfg, "payments", "show", "999"); err == nil {
		t.Error("missing payment shown")
	}
}

func TestLogsStatsAndReportCmds(t *testing.T) {
	cfg := newConfig(t)
	mustRun(t, cfg, "account", "create", "--name", "Acme", "--email", "ops@acme.test", "--amount", "1", "--unit-price", "0.01")
	record(t, cfg, http.StatusOK, http.StatusOK, http.StatusInternalServerError)

	var page logPage
	if err := json.Unmarshal([]byte(mustRun(t, cfg, "logs", "list", "-o", "json", "--page-size", "2")), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 3 || len(page.Logs) != 2 || page.PageSize != 2 {
		t.Errorf("page = total %d, %d rows, size %d", page.Total, len(page.Logs), page.PageSize)
	}

	if err := json.Unmarshal([]byte(mustRun(t, cfg, "logs", "errors", "-o", "json")), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 || page.Logs[0].StatusCode != http.StatusInternalServerError {
		t.Errorf("errors page = %+v", page)
	}

	if _, err := run(t, cfg, "logs", "list", "--from", "yesterday"); err == nil {
		t.Error("bad --from accepted")
	}

	today := time.Now().UTC().Format(time.DateOnly)
	if err := json.Unmarshal([]byte(mustRun(t, cfg, "logs", "list", "-o", "json", "--from", today, "--to", today)), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 3 {
		t.Errorf("--to %s total = %d, want 3", today, page.Total)
	}

	var overview struct {
		TotalRequests   int64 `json:"total_requests"`
		ChargedRequests int64 `json:"charged_requests"`
	}
	if err := json.Unmarshal([]byte(mustRun(t, cfg, "stats", "overview", "-o", "json")), &overview); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if overview.TotalRequests != 3 || overview.ChargedRequests != 3 {
		t.Errorf("overview = %+v", overview)
	}

	out := mustRun(t, cfg, "stats", "endpoints")
	if !strings.Contains(out, "/v1/items") {
		t.Errorf("endpoints output = %q", out)
	}
	for _, sub := range []string{"timeline", "response-times", "usage", "errors", "dashboard"} {
		mustRun(t, cfg, "stats", sub)
	}

	var report app.Report
	if err := json.Unmarshal([]byte(mustRun(t, cfg, "report", "-o", "json")), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Account.Name != "Acme" || len(report.Payments) != 1 || report.Balance.UsedRequests != 3 {
		t.Errorf("report = %+v", report)
	}

	out = mustRun(t, cfg, "report")
	if !strings.Contains(out, "Usage report for Acme <ops@acme.test>") {
		t.Errorf("report output = %q", out)
	}

	if _, err := run(t, cfg, "report", "--from", "2024-03-10", "--to", "2024-03-01"); err == nil {
		t.Error("inverted report range accepted")
	}
}

func TestWriteYAML_UsesJSONNames(t *testing.T) {
	var buf bytes.Buffer
	err := writeYAML(&buf, struct {
		UsedRequests int64    `json:"used_requests"`
		Paths        []string `json:"paths"`
	}{UsedRequests: 7, Paths: []string{"/v1"}})
	if err != nil {
		t.Fatalf("writeYAML() error = %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "used_requests: 7\npaths:\n") || !strings.Contains(out, "- /v1") {
		t.Errorf("yaml = %q", out)
	}
	if strings.ContainsAny(out, "{[\"") {
		t.Errorf("yaml kept JSON flow style: %q", out)
	}
}

func TestParseEndDate(t *testing.T) {
	got, err := parseEndDate("2024-03-15")
	if err != nil {
		t.Fatalf("parseEndDate() error = %v", err)
	}
	if want := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("parseEndDate() = %s, want %s", got, want)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "0001-01-01T00:00:00Z", false},
		{"2024-03-15", "2024-03-15T00:00:00Z", false},
		{"2024-03-15T10:30:00Z", "2024-03-15T10:30:00Z", false},
		{"2024-03-15T12:30:00+02:00", "2024-03-15T10:30:00Z", false},
		{"15/03/2024", "", true},
	}
	for _, tt := range tests {
		got, err := parseDate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDate(%q) error = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got.Format("2006-01-02T15:04:05Z07:00") != tt.want {
			t.Errorf("parseDate(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
