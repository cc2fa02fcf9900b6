package clock_test

import (
	"testing"
	"time"

	"github.com/ImagingSolutions/UsageMonitor/adapters/clock"
	"github.com/ImagingSolutions/UsageMonitor/ports"
)

var (
	_ ports.Clock = clock.Real{}
	_ ports.Clock = (*clock.Fake)(nil)
)

func TestReal_UTC(t *testing.T) {
	if loc := (clock.Real{}).Now().Location(); loc != time.UTC {
		t.Errorf("Location() = %v, want UTC", loc)
	}
}

func TestFake(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	f := clock.NewFake(start)

	if !f.Now().Equal(start) || f.Now().Location() != time.UTC {
		t.Errorf("Now() = %v, want %v in UTC", f.Now(), start)
	}

	got := f.Advance(90 * time.Second)
	if !got.Equal(start.Add(90*time.Second)) || !f.Now().Equal(got) {
		t.Errorf("Advance() = %v", got)
	}

	later := start.Add(24 * time.Hour)
	f.Set(later)
	if !f.Now().Equal(later) {
		t.Errorf("Set() then Now() = %v, want %v", f.Now(), later)
	}
}
